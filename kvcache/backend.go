// backend.go - the paged backend: composes the allocator, the
// shared-prefix table, and per-sequence slot tables behind the
// backend.Backend contract.
//
// Follows the same shape as a Server struct guarding a growable sequence
// slice with a single mutex, keeping the expensive per-token work outside
// the lock, and mirrors paged_init_sequence/paged_append_token in
// page_kv.c.
package kvcache

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kvsim/kvsim/backend"
)

var _ backend.Backend = (*PagedBackend)(nil)

// PagedBackend implements backend.Backend by slicing a fixed arena into
// pages and allocating them lazily as sequences grow, sharing
// reference-counted prefix pages across sequences in the same group.
type PagedBackend struct {
	cfg   backend.Config
	alloc *Allocator

	// mu guards the sequences vector's growth and every mutation of
	// prefix. It is also held across the allocator call on append's slow
	// path, per the single-backend-mutex simplification documented in
	// spec §4.4: only the allocator call and the sequences-vector growth
	// ever need synchronizing, since a sequence's own slot table has
	// exactly one writer.
	mu     sync.Mutex
	seqs   []*pagedSeq
	prefix *prefixTable
}

// NewPagedBackend builds the paged backend's allocator and group table from
// cfg. It fails only if the arena cannot be reserved.
func NewPagedBackend(cfg backend.Config) (*PagedBackend, error) {
	alloc, err := NewAllocator(cfg.PageBytes(), cfg.ArenaBytes)
	if err != nil {
		return nil, err
	}

	return &PagedBackend{
		cfg:    cfg,
		alloc:  alloc,
		prefix: newPrefixTable(cfg.NumGroups),
	}, nil
}

// InitSequence implements backend.Backend. See spec §4.4.
func (b *PagedBackend) InitSequence(work backend.SequenceWork) backend.SeqID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := backend.SeqID(len(b.seqs))
	s := newPagedSeq()
	b.seqs = append(b.seqs, s)

	sharedTokens := 0
	if work.SharedPromptID >= 0 && b.cfg.NumGroups > 0 {
		sharedTokens = floorToPage(work.SharedPromptTokens, b.cfg.TokensPerPage)
	}

	if sharedTokens > 0 {
		gid := work.SharedPromptID % b.cfg.NumGroups
		entry := b.prefix.attach(b.alloc, gid, b.cfg.TokensPerPage, sharedTokens)
		s.attachPrefix(b.alloc, entry)
	}

	slog.Info("init_sequence", "id", id, "shared_prompt_tokens", sharedTokens, "shared_prompt_id", work.SharedPromptID)

	return id
}

// floorToPage rounds tokens down to the nearest multiple of tokensPerPage,
// enforcing that sharing only ever happens at page granularity.
func floorToPage(tokens, tokensPerPage int) int {
	if tokensPerPage <= 0 {
		return 0
	}
	return (tokens / tokensPerPage) * tokensPerPage
}

// seqAt fetches the sequence's stable pointer. The lookup itself is a
// brief locked read of the sequences slice header; once obtained, the
// pointer is safe to use without the lock because only its owning
// goroutine ever writes to it (see pagedSeq).
func (b *PagedBackend) seqAt(id backend.SeqID) *pagedSeq {
	b.mu.Lock()
	defer b.mu.Unlock()

	if int(id) < 0 || int(id) >= len(b.seqs) {
		if b.cfg.Strict {
			slog.Error("out-of-range sequence id", "id", id, "num_sequences", len(b.seqs))
			panic(fmt.Errorf("kvcache: out-of-range sequence id %d (have %d sequences)", id, len(b.seqs)))
		}
		return nil
	}
	return b.seqs[id]
}

// AppendToken implements backend.Backend. See spec §4.4: the common path
// only increments the token counter; the slow path (first token of a new
// page) allocates under the backend mutex.
func (b *PagedBackend) AppendToken(id backend.SeqID) {
	s := b.seqAt(id)
	if s == nil {
		return
	}

	idx := int(s.curTokens.Load())
	if idx >= b.cfg.MaxContextTokens {
		return
	}

	pageIdx := idx / b.cfg.TokensPerPage
	if !s.populated(pageIdx) {
		b.mu.Lock()
		s.reserve(pageIdx + 1)
		if s.slots[pageIdx] == noPage {
			s.slots[pageIdx] = b.alloc.Alloc()
		}
		b.mu.Unlock()
	}

	s.curTokens.Store(int64(idx + 1))
}

// FinishSequence implements backend.Backend. Idempotent: finishing an
// already-finished sequence is a no-op because every slot is already
// empty.
func (b *PagedBackend) FinishSequence(id backend.SeqID) {
	s := b.seqAt(id)
	if s == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s.finish(b.alloc)

	slog.Info("finish_sequence", "id", id)
}

// Stats implements backend.Backend. logical_tokens sums cur_tokens across
// every live sequence under the backend mutex; physical_bytes is the
// global pages-in-use count, so a page shared by many sequences still
// contributes exactly once.
func (b *PagedBackend) Stats() backend.Stats {
	b.mu.Lock()
	var logicalTokens int64
	for _, s := range b.seqs {
		logicalTokens += s.curTokens.Load()
	}
	b.mu.Unlock()

	pagesInUse := int64(b.alloc.PagesInUse())

	return backend.Stats{
		LogicalTokens: logicalTokens,
		LogicalBytes:  logicalTokens * b.cfg.BytesPerToken(),
		PhysicalBytes: pagesInUse * b.alloc.PageBytes(),
	}
}

// Destroy implements backend.Backend: finishes every sequence (releasing
// their page and prefix shares), releases the table's own prefix shares,
// and tears down the allocator.
func (b *PagedBackend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.seqs {
		s.finish(b.alloc)
	}
	b.prefix.releaseAll(b.alloc)
	b.alloc.Destroy()
}

// String renders a short diagnostic summary, useful in logs.
func (b *PagedBackend) String() string {
	return fmt.Sprintf("kvcache.PagedBackend{pages=%d, page_bytes=%d}", b.alloc.NumPages(), b.alloc.PageBytes())
}
