// Package backend defines the contract that both KV cache strategies
// (kvcache.PagedBackend and monocache.Backend) implement, plus the
// configuration and workload types a driver passes across that contract.
//
// Nothing in this package touches real tensors or GPUs: bytes are notional,
// tracked only for accounting purposes.
package backend

// Config holds the options recognized by both backends. The fields not used
// by the core (MaxPromptExtra, MinGenTokens, MaxGenTokens) exist only for the
// external workload generator.
type Config struct {
	NumLayers int
	NumHeads  int
	HeadDim   int

	TokensPerPage int
	ArenaBytes    int64

	MaxContextTokens int
	NumSequences     int
	NumGroups        int

	MaxPromptExtra int
	MinGenTokens   int
	MaxGenTokens   int

	// MaxInFlight bounds how many sequence workers the driver runs
	// concurrently. Zero means unbounded.
	MaxInFlight int

	// Strict enables extra validation (out-of-range sequence ids panic
	// instead of silently no-oping). Intended for debug builds.
	Strict bool
}

// BytesPerToken is the notional per-token KV footprint: K and V, two bytes
// per half-precision element, for every layer and head.
func (c Config) BytesPerToken() int64 {
	return int64(c.NumLayers) * int64(c.NumHeads) * int64(c.HeadDim) * 2 * 2
}

// PageBytes is the size, in bytes, of one page under the paged backend.
func (c Config) PageBytes() int64 {
	return int64(c.TokensPerPage) * c.BytesPerToken()
}

// NumPages is how many fixed-size pages fit in the configured arena.
func (c Config) NumPages() int64 {
	pageBytes := c.PageBytes()
	if pageBytes <= 0 {
		return 0
	}
	return c.ArenaBytes / pageBytes
}

// SequenceWork is the per-sequence input the driver builds from the
// workload generator and passes to InitSequence. The backend reads only
// SharedPromptTokens and SharedPromptID; PromptTokens and GenTokens tell the
// driver how many times to call AppendToken.
type SequenceWork struct {
	PromptTokens       int
	GenTokens          int
	SharedPromptTokens int
	SharedPromptID     int // negative means "no sharing"
}

// NoSharing is the sentinel SharedPromptID meaning a sequence attaches no
// group prefix regardless of NumGroups.
const NoSharing = -1

// Stats is the statistics record a backend reports: the logical tokens and
// bytes actually produced by live sequences, and the physical bytes the
// backend had to reserve to hold them.
type Stats struct {
	LogicalTokens int64
	LogicalBytes  int64
	PhysicalBytes int64
}

// SeqID identifies a sequence within one backend instance. It is only ever
// valid for the backend that issued it.
type SeqID int

// Backend is the contract a KV cache strategy provides to a driver. A
// driver must depend only on this interface, never on which concrete
// variant backs it.
type Backend interface {
	// InitSequence registers a new sequence described by work and returns
	// the id the driver must use for subsequent calls.
	InitSequence(work SequenceWork) SeqID

	// AppendToken records one more token produced for id. It is a no-op
	// once the sequence has reached Config.MaxContextTokens.
	AppendToken(id SeqID)

	// FinishSequence releases every page slot id holds. Idempotent.
	FinishSequence(id SeqID)

	// Stats returns a point-in-time snapshot across all live sequences.
	Stats() Stats

	// Destroy releases every resource the backend owns. The backend must
	// not be used afterward.
	Destroy()
}
