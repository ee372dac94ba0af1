// sequence.go - per-sequence page-slot table.
//
// Mirrors PagedSeqState in page_kv.c (sparse slot vector, geometric
// doubling from capacity 4), relying on the same single-writer-per-sequence
// discipline documented for a Sequence struct elsewhere in this corpus.
package kvcache

import "sync/atomic"

// noPage marks an empty slot. PageHandle 0 is a valid handle, so empty
// slots use -1 rather than the zero value.
const noPage PageHandle = -1

// pagedSeq is the per-sequence page-slot table: a sparse, growable vector
// mapping logical page index to page handle, plus the running token count.
// It is written only by the sequence's own worker goroutine; the backend
// mutex protects only the allocator call and the slot-vector growth that
// happen on the slow path of append (see backend.go), not concurrent
// access from other sequences, since there is none. curTokens is atomic
// so that Stats, called concurrently from another goroutine, always reads
// a whole value rather than risking a torn read.
type pagedSeq struct {
	slots              []PageHandle
	curTokens          atomic.Int64
	sharedPrefixTokens int
}

func newPagedSeq() *pagedSeq {
	return &pagedSeq{}
}

// populated reports whether slot i exists and holds a page.
func (s *pagedSeq) populated(i int) bool {
	return i < len(s.slots) && s.slots[i] != noPage
}

// reserve grows the slot vector to hold at least n entries, doubling
// geometrically from an initial capacity of 4. New entries are
// initialized to empty (noPage).
func (s *pagedSeq) reserve(n int) {
	if n <= len(s.slots) {
		return
	}

	newCap := len(s.slots)
	if newCap == 0 {
		newCap = 4
	}
	for newCap < n {
		newCap *= 2
	}

	grown := make([]PageHandle, newCap)
	copy(grown, s.slots)
	for i := len(s.slots); i < newCap; i++ {
		grown[i] = noPage
	}
	s.slots = grown
}

// attachPrefix reserves slots for the group's shared pages, takes one
// refcount share on each (the sequence's own share, on top of the table's
// share held for the lifetime of the backend), and records how many
// tokens of the sequence's prefix are shared.
func (s *pagedSeq) attachPrefix(alloc *Allocator, entry prefixEntry) {
	if len(entry.pages) == 0 {
		return
	}

	s.reserve(len(entry.pages))
	for i, p := range entry.pages {
		alloc.IncRef(p)
		s.slots[i] = p
	}
	s.sharedPrefixTokens = entry.prefixTokens
}

// finish releases every populated slot's page, shared-prefix pages
// included, and resets the token count and shared-prefix length to zero.
// Idempotent: once every slot is empty, a second call is a no-op.
func (s *pagedSeq) finish(alloc *Allocator) {
	for i, h := range s.slots {
		if h == noPage {
			continue
		}
		alloc.DecRef(h)
		s.slots[i] = noPage
	}
	s.curTokens.Store(0)
	s.sharedPrefixTokens = 0
}
