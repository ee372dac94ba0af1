// Package driver runs a workload against a backend.Backend: one goroutine
// per sequence, each calling AppendToken in a loop, optionally bounded by
// cfg.MaxInFlight concurrent workers.
//
// Grounded on the source's decode_thread/run_simulation in sim.c (one
// pthread per sequence, joined at the end, no mid-run finish) and on the
// teacher's semaphore-gated goroutine dispatch in
// runner/ollamarunner/runner_handlers.go.
package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kvsim/kvsim/backend"
)

// Options configures one simulation run.
type Options struct {
	// TokenLatency, when positive, sleeps between AppendToken calls to
	// emulate per-token decode cost. The core itself has no notion of
	// time; this exists only so a run can produce a realistic wall-clock
	// duration when asked.
	TokenLatency time.Duration
}

// Result is what Run reports once every sequence has finished.
type Result struct {
	Stats    backend.Stats
	Duration time.Duration
}

// Run drives work against b to completion and returns a snapshot of
// backend.Stats taken after every worker has quiesced, per §5's guidance
// that stats is safe to read without a global barrier only once workers
// have settled. Sequences are never finished mid-run; matching sim.c's
// decode_thread, which measures peak reservation by destroying sequences
// only at the very end, finishing is the caller's responsibility after
// Run returns.
func Run(ctx context.Context, b backend.Backend, cfg backend.Config, work []backend.SequenceWork, opts Options) (Result, error) {
	start := time.Now()

	var sem *semaphore.Weighted
	if cfg.MaxInFlight > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}

	var wg sync.WaitGroup
	for _, w := range work {
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return Result{}, err
			}
		}

		wg.Add(1)
		go func(w backend.SequenceWork) {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			runOne(b, w, opts)
		}(w)
	}
	wg.Wait()

	stats := b.Stats()
	slog.Debug("driver run complete", "sequences", len(work), "duration", time.Since(start))

	return Result{Stats: stats, Duration: time.Since(start)}, nil
}

// runOne is the per-sequence worker: exactly one goroutine ever calls
// AppendToken for a given sequence id, matching the single-writer
// discipline the backends rely on.
func runOne(b backend.Backend, w backend.SequenceWork, opts Options) {
	id := b.InitSequence(w)
	total := w.PromptTokens + w.GenTokens
	for i := 0; i < total; i++ {
		b.AppendToken(id)
		if opts.TokenLatency > 0 {
			time.Sleep(opts.TokenLatency)
		}
	}
}
