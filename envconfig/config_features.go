// config_features.go - strategy selection and latency emulation flags.
package envconfig

// =============================================================================
// Strategy selection
// =============================================================================

var (
	// Backend selects which backend a run exercises: "paged", "mono", or
	// "both" (default) to run the comparison.
	Backend = String("KVSIM_BACKEND")
)

// =============================================================================
// Latency emulation
// =============================================================================

var (
	// TokenLatencyMicros, when non-zero, makes the driver sleep that many
	// microseconds between AppendToken calls, to produce a realistic
	// wall-clock duration. The core itself has no notion of time.
	TokenLatencyMicros = Uint64("KVSIM_TOKEN_LATENCY_US", 0)
)
