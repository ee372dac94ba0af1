// Package monocache implements the monolithic baseline backend: every
// sequence eagerly reserves a fixed max-context-sized buffer, so physical
// bytes never depend on how many tokens a sequence actually produced.
//
// Grounded on the source's mono_kv.c and, for the ambient Go shape, the
// teacher's simplest backend-style structs (a mutex-guarded slice of
// per-sequence state, teacher precedent: runner/llamarunner/types.go).
package monocache

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kvsim/kvsim/backend"
)

// seqState is one sequence's reservation. kvBuffer is allocated eagerly
// and real (not just counted) so that an operator watching resident-set
// size from outside the process observes the predicted footprint.
// curTokens is atomic for the same reason as kvcache's pagedSeq: it is
// written by the sequence's own worker goroutine and read by Stats from
// whichever goroutine calls it.
type seqState struct {
	curTokens atomic.Int64
	kvBuffer  []byte
}

var _ backend.Backend = (*Backend)(nil)

// Backend is the monolithic baseline. It never reclaims a buffer until
// Destroy, so Stats observes peak reservation across the whole run.
type Backend struct {
	cfg backend.Config

	mu   sync.Mutex
	seqs []*seqState
}

// NewBackend pre-sizes the sequence slice to cfg.NumSequences, since the
// monolithic backend's whole point is that capacity is known up front.
func NewBackend(cfg backend.Config) *Backend {
	return &Backend{
		cfg:  cfg,
		seqs: make([]*seqState, 0, cfg.NumSequences),
	}
}

// InitSequence allocates max_context_tokens*bytes_per_token eagerly.
func (b *Backend) InitSequence(_ backend.SequenceWork) backend.SeqID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := backend.SeqID(len(b.seqs))
	b.seqs = append(b.seqs, &seqState{
		kvBuffer: make([]byte, int64(b.cfg.MaxContextTokens)*b.cfg.BytesPerToken()),
	})
	return id
}

// AppendToken increments cur_tokens, clamped at max_context_tokens.
func (b *Backend) AppendToken(id backend.SeqID) {
	s := b.seqAt(id)
	if s == nil {
		return
	}
	cur := s.curTokens.Load()
	if cur < int64(b.cfg.MaxContextTokens) {
		s.curTokens.Store(cur + 1)
	}
}

func (b *Backend) seqAt(id backend.SeqID) *seqState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(id) < 0 || int(id) >= len(b.seqs) {
		if b.cfg.Strict {
			slog.Error("out-of-range sequence id", "id", id, "num_sequences", len(b.seqs))
			panic(fmt.Errorf("monocache: out-of-range sequence id %d (have %d sequences)", id, len(b.seqs)))
		}
		return nil
	}
	return b.seqs[id]
}

// FinishSequence is a no-op: buffers persist until Destroy so that Stats
// can observe peak reservation, matching the baseline's purpose. Still
// validates id under Strict so an out-of-range id panics consistently with
// AppendToken instead of being silently ignored.
func (b *Backend) FinishSequence(id backend.SeqID) {
	b.seqAt(id)
}

// Stats sums logical bytes produced against the fixed capacity reserved
// for every sequence, independent of the actual workload.
func (b *Backend) Stats() backend.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var logicalTokens int64
	for _, s := range b.seqs {
		logicalTokens += s.curTokens.Load()
	}

	physical := int64(len(b.seqs)) * int64(b.cfg.MaxContextTokens) * b.cfg.BytesPerToken()

	return backend.Stats{
		LogicalTokens: logicalTokens,
		LogicalBytes:  logicalTokens * b.cfg.BytesPerToken(),
		PhysicalBytes: physical,
	}
}

// Destroy drops every buffer.
func (b *Backend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seqs = nil
}
