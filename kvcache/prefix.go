// prefix.go - per-group shared-prefix table.
//
// Uses the same lazy-build-once-under-the-caller's-lock pattern as
// kvcache/constructors.go, and mirrors
// build_shared_prefix/paged_init_sequence in page_kv.c. All methods here
// assume the backend's mutex is already held by the caller (see
// backend.go) rather than taking their own lock, keeping a single
// backend-wide mutex instead of a separate one per table.
package kvcache

// prefixEntry is one group's shared prefix: an ordered list of pages
// encoding prefixTokens tokens. Once initialized it is immutable for the
// lifetime of the backend.
type prefixEntry struct {
	pages        []PageHandle
	prefixTokens int
	initialized  bool
}

// prefixTable holds one prefixEntry per group id in [0, numGroups).
type prefixTable struct {
	entries []prefixEntry
}

func newPrefixTable(numGroups int) *prefixTable {
	if numGroups <= 0 {
		return &prefixTable{}
	}
	return &prefixTable{entries: make([]prefixEntry, numGroups)}
}

func (t *prefixTable) numGroups() int {
	return len(t.entries)
}

// attach builds the group's prefix (if this is the first sequence to touch
// it) with enough pages to hold prefixTokens tokens, or adopts whatever the table already built
// if a later caller's prefixTokens disagrees. prefixTokens must already be
// page-aligned (floored to a multiple of tokensPerPage by the caller).
func (t *prefixTable) attach(alloc *Allocator, gid, tokensPerPage, prefixTokens int) prefixEntry {
	e := &t.entries[gid]
	if !e.initialized {
		*e = buildPrefix(alloc, tokensPerPage, prefixTokens)
	}
	// Divergence policy: a later sequence silently adopts the table's
	// existing value rather than retroactively splitting the group.
	return *e
}

// buildPrefix allocates pages_needed = prefixTokens/tokensPerPage fresh
// pages and returns the entry that owns one reference on each, on behalf
// of the table itself (released in (*PagedBackend).Destroy).
func buildPrefix(alloc *Allocator, tokensPerPage, prefixTokens int) prefixEntry {
	if prefixTokens == 0 {
		return prefixEntry{initialized: true}
	}

	pagesNeeded := prefixTokens / tokensPerPage
	pages := make([]PageHandle, pagesNeeded)
	for i := range pages {
		pages[i] = alloc.Alloc()
	}

	return prefixEntry{
		pages:        pages,
		prefixTokens: prefixTokens,
		initialized:  true,
	}
}

// releaseAll drops the table's own reference share on every initialized
// group's prefix pages. Called once from (*PagedBackend).Destroy.
func (t *prefixTable) releaseAll(alloc *Allocator) {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.initialized {
			continue
		}
		for _, p := range e.pages {
			alloc.DecRef(p)
		}
		e.pages = nil
	}
}
