package hrd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchConfig configures the batch evaluator.
type BatchConfig struct {
	// Solver configures each independent minimum-rate search.
	Solver SolverConfig

	// Workers bounds the number of searches running at once.
	// Default: runtime.NumCPU()
	Workers int

	// TaskTimeout bounds each search individually. Zero means no limit.
	TaskTimeout time.Duration
}

// DefaultBatchConfig returns the default batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Solver:  DefaultSolverConfig(),
		Workers: runtime.NumCPU(),
	}
}

// BatchResult is the outcome of one target in a batch.
type BatchResult struct {
	// Target is the buffer size in bits this entry was solved for.
	Target int64

	// Solution holds the minimum rate when Err is nil.
	Solution Solution

	// Err is the failure of this target alone, such as ErrTargetUnreachable
	// or a per-task timeout.
	Err error
}

// BatchEvaluator solves many target buffer sizes for one schedule in
// parallel. Every target is an independent Solver call sharing nothing but
// the read-only schedule.
type BatchEvaluator struct {
	config BatchConfig
	solver *Solver
}

// NewBatchEvaluator creates a new batch evaluator with the given configuration.
func NewBatchEvaluator(config BatchConfig) *BatchEvaluator {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.TaskTimeout < 0 {
		config.TaskTimeout = 0
	}
	return &BatchEvaluator{
		config: config,
		solver: NewSolver(config.Solver),
	}
}

// Evaluate returns one BatchResult per target, in target order regardless of
// completion order. It waits for every started task before returning.
//
// A failing target does not affect its siblings. The returned error is
// non-nil only when ctx is done before all targets finish; results of
// targets that were never started then carry ctx's error.
func (b *BatchEvaluator) Evaluate(ctx context.Context, s *Schedule, targets []int64) ([]BatchResult, error) {
	results := make([]BatchResult, len(targets))
	for i, target := range targets {
		results[i] = BatchResult{Target: target}
	}

	var g errgroup.Group
	g.SetLimit(b.config.Workers)

	for i := range targets {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(targets); j++ {
				results[j].Err = err
			}
			break
		}
		i := i
		g.Go(func() error {
			results[i].Solution, results[i].Err = b.run(ctx, s, targets[i])
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// run executes one target inside its own timeout and turns a panic into an
// error on that target.
func (b *BatchEvaluator) run(ctx context.Context, s *Schedule, target int64) (sol Solution, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("solve target %d: panic: %v", target, r)
		}
	}()

	if b.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.TaskTimeout)
		defer cancel()
	}

	sol, err = b.solver.Solve(ctx, s, target)
	if err != nil {
		return sol, fmt.Errorf("solve target %d: %w", target, err)
	}
	return sol, nil
}

// Rates returns the solved rate of each result in order, or the first error.
func Rates(results []BatchResult) ([]float64, error) {
	rates := make([]float64, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		rates[i] = r.Solution.Rate
	}
	return rates, nil
}
