// allocator.go - fixed-arena page allocator with refcount-based reclamation.
//
// Follows the mutex-guarded bookkeeping style of kvcache/constructors.go
// and mirrors page_alloc.c: one contiguous arena sliced into equal pages,
// a LIFO free list, and a single mutex serializing free-list mutation and
// first/last refcount transitions.
package kvcache

import (
	"fmt"
	"log/slog"
	"sync"
)

// PageHandle identifies a page within an Allocator's descriptor table. It
// is never a pointer: sharing a page across sequences means sharing this
// handle, never aliasing memory directly, so there is no risk of a page
// pointing back at a sequence.
type PageHandle int32

// page is the descriptor for one arena slot. Its content is never read by
// the simulator; only base and ref matter.
type page struct {
	base int64
	ref  uint32
}

// Allocator owns one contiguous byte arena sliced into num_pages pages of
// page_bytes each. alloc/decRef are serialized by mu; incRef is safe
// without the lock only because the caller is required to already hold a
// live reference to the page (see IncRef).
type Allocator struct {
	mu sync.Mutex

	arena     []byte
	pageBytes int64
	numPages  int

	pages    []page
	freeList []PageHandle // LIFO stack of free page handles
}

// NewAllocator reserves an arena of numPages*pageBytes bytes, all pages
// initially free. It fails if either dimension is non-positive or the
// arena would hold no pages at all.
func NewAllocator(pageBytes, arenaBytes int64) (*Allocator, error) {
	if pageBytes <= 0 || arenaBytes <= 0 {
		return nil, fmt.Errorf("%w: page_bytes=%d arena_bytes=%d", ErrArenaMapping, pageBytes, arenaBytes)
	}

	numPages := int(arenaBytes / pageBytes)
	if numPages <= 0 {
		return nil, fmt.Errorf("%w: arena_bytes=%d too small for page_bytes=%d", ErrArenaMapping, arenaBytes, pageBytes)
	}

	a := &Allocator{
		pageBytes: pageBytes,
		numPages:  numPages,
		pages:     make([]page, numPages),
		freeList:  make([]PageHandle, numPages),
		arena:     make([]byte, int64(numPages)*pageBytes),
	}

	for i := 0; i < numPages; i++ {
		a.pages[i] = page{base: int64(i) * pageBytes}
		a.freeList[i] = PageHandle(i)
	}

	return a, nil
}

// Alloc pops a page off the free list and sets its refcount to 1. Running
// out of pages is fatal by design: the simulator's purpose is to surface
// the capacity envelope, not to model eviction, so this panics rather than
// returning an error that might be silently ignored or retried.
func (a *Allocator) Alloc() PageHandle {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.freeList)
	if n == 0 {
		slog.Error("out of pages", "num_pages", a.numPages)
		panic(fmt.Errorf("%w (num_pages: %d)", ErrOutOfPages, a.numPages))
	}

	h := a.freeList[n-1]
	a.freeList = a.freeList[:n-1]
	a.pages[h].ref = 1

	slog.Debug("alloc", "page", h, "pages_in_use", a.numPages-len(a.freeList))

	return h
}

// IncRef increments a page's refcount without locking. This is safe only
// because the caller already holds at least one reference to the page: the
// refcount cannot reach zero (and the page cannot be reclaimed) while any
// holder is alive, so there is no reclaimer to race with. Callers that do
// not already hold a reference must not call IncRef.
func (a *Allocator) IncRef(h PageHandle) {
	a.pages[h].ref++
}

// DecRef decrements a page's refcount and returns it to the free list once
// the count reaches zero. Calling DecRef on a page already at refcount
// zero indicates a bookkeeping bug and is fatal.
func (a *Allocator) DecRef(h PageHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pages[h].ref == 0 {
		slog.Error("refcount underflow", "page", h)
		panic(fmt.Errorf("%w (page: %d)", ErrRefcountUnderflow, h))
	}

	a.pages[h].ref--
	if a.pages[h].ref == 0 {
		a.freeList = append(a.freeList, h)
		slog.Debug("dec_ref freed page", "page", h, "pages_in_use", a.numPages-len(a.freeList))
	}
}

// PagesInUse returns the number of descriptors with a positive refcount.
func (a *Allocator) PagesInUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pages == nil {
		return 0
	}
	return a.numPages - len(a.freeList)
}

// PageBytes returns the configured page size.
func (a *Allocator) PageBytes() int64 {
	return a.pageBytes
}

// NumPages returns the number of pages the arena was sliced into.
func (a *Allocator) NumPages() int {
	return a.numPages
}

// Destroy releases the arena and descriptor table.
func (a *Allocator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.arena = nil
	a.pages = nil
	a.freeList = nil
}
