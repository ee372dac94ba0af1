// config_utils.go - getter machinery and config export.
//
// This module contains:
// - BoolWithDefault/Bool: boolean getters with a default value
// - String: string getter
// - Uint/Uint64: integer getters with a default value
// - EnvVar: metadata struct for one environment variable
// - AsMap: every recognized configuration as a map
// - Values: every recognized configuration's current value, stringified
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Integer-Getter
// =============================================================================

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Uint64 gibt eine Funktion zurueck, die einen uint64 mit Default-Wert liest
func Uint64(key string, defaultValue uint64) func() uint64 {
	return func() uint64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return n
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every recognized configuration option, its current value,
// and a one-line description.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"KVSIM_DEBUG":             {"KVSIM_DEBUG", LogLevel(), "Show additional debug information (e.g. KVSIM_DEBUG=1)"},
		"KVSIM_NUM_LAYERS":        {"KVSIM_NUM_LAYERS", NumLayers(), "Model layer count (default: 4)"},
		"KVSIM_NUM_HEADS":         {"KVSIM_NUM_HEADS", NumHeads(), "Attention head count (default: 8)"},
		"KVSIM_HEAD_DIM":          {"KVSIM_HEAD_DIM", HeadDim(), "Per-head dimension (default: 64)"},
		"KVSIM_TOKENS_PER_PAGE":   {"KVSIM_TOKENS_PER_PAGE", TokensPerPage(), "Paged backend page granularity in tokens (default: 16)"},
		"KVSIM_ARENA_BYTES":       {"KVSIM_ARENA_BYTES", ArenaBytes(), "Paged backend arena size in bytes (default: 2 GiB)"},
		"KVSIM_MAX_CONTEXT_TOKENS": {"KVSIM_MAX_CONTEXT_TOKENS", MaxContextTokens(), "Per-sequence token ceiling (default: 2048)"},
		"KVSIM_NUM_SEQUENCES":     {"KVSIM_NUM_SEQUENCES", NumSequences(), "Simulated batch size (default: 128)"},
		"KVSIM_NUM_GROUPS":        {"KVSIM_NUM_GROUPS", NumGroups(), "Group-id modulus; 0 disables sharing (default: 4)"},
		"KVSIM_MAX_PROMPT_EXTRA":  {"KVSIM_MAX_PROMPT_EXTRA", MaxPromptExtra(), "Max prompt tokens past the shared prefix (default: 128)"},
		"KVSIM_MIN_GEN_TOKENS":    {"KVSIM_MIN_GEN_TOKENS", MinGenTokens(), "Minimum generated tokens per sequence (default: 128)"},
		"KVSIM_MAX_GEN_TOKENS":    {"KVSIM_MAX_GEN_TOKENS", MaxGenTokens(), "Maximum generated tokens per sequence (default: 512)"},
		"KVSIM_MAX_IN_FLIGHT":     {"KVSIM_MAX_IN_FLIGHT", MaxInFlight(), "Concurrent sequence workers; 0 means unbounded"},
		"KVSIM_STRICT":            {"KVSIM_STRICT", Strict(), "Panic on out-of-range sequence ids instead of no-oping"},
		"KVSIM_SEED":              {"KVSIM_SEED", RandSeed(), "Workload PRNG seed; 0 means random"},
		"KVSIM_BACKEND":           {"KVSIM_BACKEND", Backend(), "Which backend to run: paged, mono, or both"},
		"KVSIM_TOKEN_LATENCY_US":  {"KVSIM_TOKEN_LATENCY_US", TokenLatencyMicros(), "Per-token sleep in microseconds, for wall-clock realism"},
	}
}

// Values returns every recognized configuration's current value, stringified.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
