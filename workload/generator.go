// Package workload generates synthetic per-sequence work for the
// simulator driver. It is one of the external collaborators spec.md keeps
// out of the core: the backends read only SharedPromptTokens and
// SharedPromptID from what this package produces.
//
// Grounded on the source's generate_workload in workload.c — the coherent
// variant that sets shared_prompt_tokens whenever it assigns a group id,
// as opposed to main.c's hand-built work records, which assign a group id
// without setting shared_prompt_tokens and would therefore attach no
// prefix under spec.md §9's chosen convention. This package always
// follows workload.c's convention.
package workload

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/kvsim/kvsim/backend"
)

// RunID tags one generated workload for log correlation, teacher precedent
// google/uuid usage in app/store/store_core.go.
type RunID = uuid.UUID

// NewRunID returns a fresh run identifier.
func NewRunID() RunID {
	return uuid.New()
}

// Generate builds cfg.NumSequences work records. Sequences are spread as
// evenly as possible across cfg.NumGroups groups (group id i%NumGroups);
// when NumGroups is zero no sequence shares a prefix. Every sequence in a
// group shares the same page-aligned prefix length, derived from
// cfg.TokensPerPage; prompt length past the shared prefix and generation
// length are drawn uniformly from the configured ranges.
func Generate(cfg backend.Config, rng *rand.Rand) []backend.SequenceWork {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}

	work := make([]backend.SequenceWork, cfg.NumSequences)

	sharedPrefix := sharedPrefixLen(cfg)

	for i := range work {
		group := backend.NoSharing
		if cfg.NumGroups > 0 {
			group = i % cfg.NumGroups
		}

		w := backend.SequenceWork{SharedPromptID: group}
		if group >= 0 {
			w.SharedPromptTokens = sharedPrefix
		}

		extraPrompt := 0
		if cfg.MaxPromptExtra > 0 {
			extraPrompt = rng.IntN(cfg.MaxPromptExtra + 1)
		}
		w.PromptTokens = w.SharedPromptTokens + extraPrompt

		w.GenTokens = randomGenTokens(cfg, rng)

		work[i] = w
	}

	return work
}

// sharedPrefixLen picks a fixed, page-aligned shared prefix length: 128
// pages worth of tokens, the same default the source uses, floored to fit
// a page boundary.
func sharedPrefixLen(cfg backend.Config) int {
	if cfg.TokensPerPage <= 0 {
		return 0
	}
	base := cfg.TokensPerPage * 128
	return (base / cfg.TokensPerPage) * cfg.TokensPerPage
}

func randomGenTokens(cfg backend.Config, rng *rand.Rand) int {
	lo, hi := cfg.MinGenTokens, cfg.MaxGenTokens
	if hi < lo {
		return lo
	}
	span := hi - lo + 1
	return lo + rng.IntN(span)
}
