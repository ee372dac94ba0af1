package kvcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvsim/kvsim/backend"
)

func exampleConfig() backend.Config {
	return backend.Config{
		NumLayers:        4,
		NumHeads:         8,
		HeadDim:          64,
		TokensPerPage:    16,
		ArenaBytes:       2 << 30,
		MaxContextTokens: 2048,
	}
}

func appendN(b *PagedBackend, id backend.SeqID, n int) {
	for i := 0; i < n; i++ {
		b.AppendToken(id)
	}
}

// TestPagedBackendNoSharingScenario reproduces spec scenario 1: 128
// sequences, no sharing, 512 tokens each.
func TestPagedBackendNoSharingScenario(t *testing.T) {
	cfg := exampleConfig()
	cfg.NumSequences = 128
	cfg.NumGroups = 0

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)
	defer b.Destroy()

	for i := 0; i < 128; i++ {
		id := b.InitSequence(backend.SequenceWork{SharedPromptID: backend.NoSharing})
		appendN(b, id, 512)
	}

	stats := b.Stats()
	require.Equal(t, int64(128*512), stats.LogicalTokens)
	require.Equal(t, int64(536870912), stats.PhysicalBytes)
	require.Equal(t, stats.LogicalBytes, stats.PhysicalBytes, "exact page fit means no paged waste")
}

// TestPagedBackendOneGroupSharingScenario reproduces spec scenario 2: one
// shared group, 128 sequences, 256 shared prefix tokens, 256 generated.
func TestPagedBackendOneGroupSharingScenario(t *testing.T) {
	cfg := exampleConfig()
	cfg.NumSequences = 128
	cfg.NumGroups = 1

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)
	defer b.Destroy()

	for i := 0; i < 128; i++ {
		id := b.InitSequence(backend.SequenceWork{SharedPromptID: 0, SharedPromptTokens: 256})
		// cur_tokens counts every logical token including the shared
		// prefix; appending across the already-populated prefix slots
		// just increments the counter without allocating.
		appendN(b, id, 512)
	}

	stats := b.Stats()
	require.Equal(t, int64(2064), int64(b.alloc.PagesInUse()))
	require.Equal(t, int64(2064)*131072, stats.PhysicalBytes)
	require.Less(t, stats.PhysicalBytes, stats.LogicalBytes, "sharing must reduce physical bytes below logical")
}

// TestPagedBackendContextClamp reproduces spec scenario 6: appending past
// max_context_tokens clamps cur_tokens and stops allocating new pages.
func TestPagedBackendContextClamp(t *testing.T) {
	cfg := exampleConfig()
	cfg.NumSequences = 1
	cfg.NumGroups = 0

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)
	defer b.Destroy()

	id := b.InitSequence(backend.SequenceWork{SharedPromptID: backend.NoSharing})
	appendN(b, id, cfg.MaxContextTokens+100)

	s := b.seqAt(id)
	require.Equal(t, int64(cfg.MaxContextTokens), s.curTokens.Load())

	populated := 0
	for i := range s.slots {
		if s.populated(i) {
			populated++
		}
	}
	wantSlots := (cfg.MaxContextTokens + cfg.TokensPerPage - 1) / cfg.TokensPerPage
	require.Equal(t, wantSlots, populated)
}

// TestPagedBackendSharingIsAliasing covers invariant 6: two sequences in
// the same group alias identical page handles across the shared prefix.
func TestPagedBackendSharingIsAliasing(t *testing.T) {
	cfg := exampleConfig()
	cfg.NumSequences = 2
	cfg.NumGroups = 1

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)
	defer b.Destroy()

	idA := b.InitSequence(backend.SequenceWork{SharedPromptID: 0, SharedPromptTokens: 32})
	idB := b.InitSequence(backend.SequenceWork{SharedPromptID: 0, SharedPromptTokens: 32})

	sa, sb := b.seqAt(idA), b.seqAt(idB)
	prefixPages := 32 / cfg.TokensPerPage
	for i := 0; i < prefixPages; i++ {
		require.Equal(t, sa.slots[i], sb.slots[i])
	}
}

// TestPagedBackendLifecycleDrainsToGroupShares covers the round-trip
// property: finishing every sequence drives pages_in_use down to exactly
// the initialized groups' prefix-page counts, and Destroy drains it to
// zero.
func TestPagedBackendLifecycleDrainsToGroupShares(t *testing.T) {
	cfg := exampleConfig()
	cfg.NumSequences = 4
	cfg.NumGroups = 1

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)

	ids := make([]backend.SeqID, 4)
	for i := range ids {
		ids[i] = b.InitSequence(backend.SequenceWork{SharedPromptID: 0, SharedPromptTokens: 32})
		appendN(b, ids[i], 64)
	}

	for _, id := range ids {
		b.FinishSequence(id)
	}

	wantPrefixPages := 32 / cfg.TokensPerPage
	require.Equal(t, wantPrefixPages, b.alloc.PagesInUse())

	b.Destroy()
	require.Equal(t, 0, b.alloc.PagesInUse())
}

// TestPagedBackendFinishIsIdempotent calls FinishSequence twice on the
// same id and expects the second call to be a no-op.
func TestPagedBackendFinishIsIdempotent(t *testing.T) {
	cfg := exampleConfig()
	cfg.NumSequences = 1
	cfg.NumGroups = 0

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)
	defer b.Destroy()

	id := b.InitSequence(backend.SequenceWork{SharedPromptID: backend.NoSharing})
	appendN(b, id, 100)

	b.FinishSequence(id)
	before := b.alloc.PagesInUse()
	b.FinishSequence(id)
	require.Equal(t, before, b.alloc.PagesInUse())
}

// TestPagedBackendOutOfPagesIsFatal reproduces spec scenario 4: an arena
// too small for the requested workload panics rather than evicting.
func TestPagedBackendOutOfPagesIsFatal(t *testing.T) {
	cfg := exampleConfig()
	cfg.ArenaBytes = cfg.PageBytes() // room for exactly one page
	cfg.NumSequences = 2
	cfg.NumGroups = 0

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)
	defer func() { _ = recover() }()

	idA := b.InitSequence(backend.SequenceWork{SharedPromptID: backend.NoSharing})
	idB := b.InitSequence(backend.SequenceWork{SharedPromptID: backend.NoSharing})
	appendN(b, idA, 1)

	require.Panics(t, func() { appendN(b, idB, 1) })
}

// TestPagedBackendStrictPanicsOnOutOfRangeID checks spec §7's
// debug-validation requirement: a Strict backend panics on an
// out-of-range sequence id instead of silently no-oping.
func TestPagedBackendStrictPanicsOnOutOfRangeID(t *testing.T) {
	cfg := exampleConfig()
	cfg.NumSequences = 1
	cfg.NumGroups = 0
	cfg.Strict = true

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)
	defer b.Destroy()

	require.Panics(t, func() { b.AppendToken(backend.SeqID(99)) })
}

// TestPagedBackendNonStrictNoOpsOnOutOfRangeID checks the non-Strict
// default: the same out-of-range id is silently ignored.
func TestPagedBackendNonStrictNoOpsOnOutOfRangeID(t *testing.T) {
	cfg := exampleConfig()
	cfg.NumSequences = 1
	cfg.NumGroups = 0

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)
	defer b.Destroy()

	require.NotPanics(t, func() { b.AppendToken(backend.SeqID(99)) })
}

// TestPagedBackendConcurrentAppends drives many sequences concurrently,
// mirroring the one-worker-per-sequence scheduling model from §5, and
// checks the allocator stays internally consistent afterward.
func TestPagedBackendConcurrentAppends(t *testing.T) {
	cfg := exampleConfig()
	cfg.NumSequences = 32
	cfg.NumGroups = 4
	cfg.ArenaBytes = 64 << 20

	b, err := NewPagedBackend(cfg)
	require.NoError(t, err)
	defer b.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < cfg.NumSequences; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := b.InitSequence(backend.SequenceWork{SharedPromptID: i % cfg.NumGroups, SharedPromptTokens: 32})
			appendN(b, id, 200)
		}()
	}
	wg.Wait()

	stats := b.Stats()
	require.Equal(t, int64(cfg.NumSequences*200), stats.LogicalTokens)

	used := b.alloc.PagesInUse()
	free := len(b.alloc.freeList)
	require.Equal(t, b.alloc.NumPages(), used+free, "allocator conservation invariant")
}
