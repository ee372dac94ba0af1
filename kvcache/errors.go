package kvcache

import "errors"

// Sentinel errors for the paged backend's fallible paths. Out-of-pages and
// refcount-underflow are not returned to callers: they indicate a
// bookkeeping bug or a capacity envelope that was never meant to be
// retried, so the allocator panics with them instead (see allocator.go).
var (
	// ErrArenaMapping is returned by NewAllocator when the arena cannot be
	// reserved (the notional equivalent of an OS mmap failure).
	ErrArenaMapping = errors.New("kvcache: failed to reserve arena")

	// ErrOutOfPages is the fatal error raised when alloc finds the free
	// list empty. The simulator surfaces capacity faults rather than
	// evicting pages under pressure.
	ErrOutOfPages = errors.New("kvcache: out of pages")

	// ErrRefcountUnderflow is the fatal error raised when decRef is called
	// on a page that is already at refcount zero.
	ErrRefcountUnderflow = errors.New("kvcache: refcount underflow")
)
