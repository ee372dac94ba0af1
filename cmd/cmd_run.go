// cmd_run.go - the run command: builds a config from the environment,
// generates a workload, drives it against one or both backends, and
// prints the comparison.
package cmd

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/kvsim/kvsim/backend"
	"github.com/kvsim/kvsim/driver"
	"github.com/kvsim/kvsim/envconfig"
	"github.com/kvsim/kvsim/kvcache"
	"github.com/kvsim/kvsim/monocache"
	"github.com/kvsim/kvsim/simstats"
	"github.com/kvsim/kvsim/workload"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the memory-accounting simulation and print the comparison",
		RunE:  RunHandler,
	}

	runCmd.Flags().String("backend", "", "Which backend to run: paged, mono, or both (overrides KVSIM_BACKEND)")
	runCmd.Flags().Uint64("seed", 0, "Workload PRNG seed; 0 means random (overrides KVSIM_SEED)")

	return runCmd
}

func configFromEnv() backend.Config {
	return backend.Config{
		NumLayers:        int(envconfig.NumLayers()),
		NumHeads:         int(envconfig.NumHeads()),
		HeadDim:          int(envconfig.HeadDim()),
		TokensPerPage:    int(envconfig.TokensPerPage()),
		ArenaBytes:       int64(envconfig.ArenaBytes()),
		MaxContextTokens: int(envconfig.MaxContextTokens()),
		NumSequences:     int(envconfig.NumSequences()),
		NumGroups:        int(envconfig.NumGroups()),
		MaxPromptExtra:   int(envconfig.MaxPromptExtra()),
		MinGenTokens:     int(envconfig.MinGenTokens()),
		MaxGenTokens:     int(envconfig.MaxGenTokens()),
		MaxInFlight:      int(envconfig.MaxInFlight()),
		Strict:           envconfig.Strict(),
	}
}

// RunHandler implements the run command.
func RunHandler(cmd *cobra.Command, args []string) error {
	cfg := configFromEnv()

	which, _ := cmd.Flags().GetString("backend")
	if which == "" {
		which = envconfig.Backend()
	}
	if which == "" {
		which = "both"
	}

	seedFlag, _ := cmd.Flags().GetUint64("seed")
	seed := seedFlag
	if seed == 0 {
		seed = envconfig.RandSeed()
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	runID := workload.NewRunID()
	work := workload.Generate(cfg, rng)

	opts := driver.Options{}
	if us := envconfig.TokenLatencyMicros(); us > 0 {
		opts.TokenLatency = time.Duration(us) * time.Microsecond
	}

	var reports []simstats.Report

	if which == "mono" || which == "both" {
		b := monocache.NewBackend(cfg)
		result, err := driver.Run(cmd.Context(), b, cfg, work, opts)
		if err != nil {
			b.Destroy()
			return fmt.Errorf("run id %s: monolithic backend: %w", runID, err)
		}
		reports = append(reports, simstats.Report{Name: "Monolithic", Stats: result.Stats})
		b.Destroy()
	}

	if which == "paged" || which == "both" {
		b, err := kvcache.NewPagedBackend(cfg)
		if err != nil {
			return fmt.Errorf("run id %s: paged backend: %w", runID, err)
		}
		result, err := driver.Run(cmd.Context(), b, cfg, work, opts)
		if err != nil {
			b.Destroy()
			return fmt.Errorf("run id %s: paged backend: %w", runID, err)
		}
		reports = append(reports, simstats.Report{Name: "Paged+Prefix", Stats: result.Stats})
		b.Destroy()
	}

	if len(reports) == 0 {
		return fmt.Errorf("unrecognized backend selection %q: want paged, mono, or both", which)
	}

	cmd.Printf("run %s: bytes_per_token = %d\n", runID, cfg.BytesPerToken())
	simstats.Print(cmd.OutOrStdout(), reports)

	return nil
}
