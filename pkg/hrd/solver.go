package hrd

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrTargetUnreachable is returned when no channel rate can keep the peak
// occupancy within the target buffer.
var ErrTargetUnreachable = errors.New("target buffer is unreachable at any rate")

// Strategy selects how the solver narrows the rate bracket.
type Strategy int

const (
	// StrategyBisection halves the bracket with one simulation per iteration.
	StrategyBisection Strategy = iota
	// StrategySpeculative evaluates Workers evenly spaced candidates per
	// round in parallel and keeps the narrowest bracket they establish.
	StrategySpeculative
)

// String returns a string representation of the Strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyBisection:
		return "bisection"
	case StrategySpeculative:
		return "speculative"
	default:
		return "unknown"
	}
}

// ParseStrategy returns the Strategy named by name.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "bisection":
		return StrategyBisection, nil
	case "speculative":
		return StrategySpeculative, nil
	default:
		return StrategyBisection, fmt.Errorf("unknown strategy %q", name)
	}
}

// SolverConfig configures the minimum-rate search.
type SolverConfig struct {
	// Simulator configures the simulations run by the search.
	Simulator SimulatorConfig

	// Accuracy is the bracket width in bits per second at which the search
	// stops.
	// Default: 1
	Accuracy float64

	// Strategy selects plain or speculative bisection.
	// Default: StrategyBisection
	Strategy Strategy

	// Workers is the number of candidates evaluated per round by
	// StrategySpeculative.
	// Default: runtime.NumCPU()
	Workers int

	// MinRate is the floor used when the average rate already satisfies the
	// target, in bits per second.
	// Default: 1
	MinRate float64

	// MaxRate caps the upper bracket expansion, in bits per second.
	// Default: 1e12 (1 Tbps)
	MaxRate float64
}

// DefaultSolverConfig returns the default solver configuration.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Simulator: DefaultSimulatorConfig(),
		Accuracy:  1,
		Strategy:  StrategyBisection,
		Workers:   runtime.NumCPU(),
		MinRate:   1,
		MaxRate:   1e12,
	}
}

// Solution is the result of a minimum-rate search.
type Solution struct {
	// Rate is the smallest rate found that keeps the peak occupancy within
	// the target, in bits per second. It is the upper end of the final
	// bracket and always satisfies the target.
	Rate float64

	// Low is the lower end of the final bracket. It does not satisfy the
	// target, unless it equals MinRate.
	Low float64

	// Iterations is the number of bracket-narrowing rounds.
	Iterations int

	// Simulations is the number of simulations run, including bracket
	// validation.
	Simulations int
}

// Solver finds the minimum channel rate for a target buffer size by
// inverting the Simulator.
//
// The search relies on the peak occupancy being non-increasing in rate, and
// on a rate existing above which the schedule is always feasible.
//
// A Solver holds only configuration and is safe for concurrent use.
type Solver struct {
	config SolverConfig
	sim    *Simulator
}

// NewSolver creates a new solver with the given configuration.
func NewSolver(config SolverConfig) *Solver {
	// Apply defaults for zero values
	if config.Accuracy <= 0 {
		config.Accuracy = 1
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.MinRate <= 0 {
		config.MinRate = 1
	}
	if config.MaxRate <= config.MinRate {
		config.MaxRate = 1e12
	}

	return &Solver{
		config: config,
		sim:    NewSimulator(config.Simulator),
	}
}

// Simulator returns the simulator used by the search.
func (sv *Solver) Simulator() *Simulator {
	return sv.sim
}

// Config returns the solver configuration.
func (sv *Solver) Config() SolverConfig {
	return sv.config
}

// Solve returns the minimum rate in bits per second at which s never holds
// more than target bits.
//
// The context is checked between iterations; a single simulation always runs
// to completion.
func (sv *Solver) Solve(ctx context.Context, s *Schedule, target int64) (Solution, error) {
	// Peak occupancy never drops below the largest frame, which has to sit in
	// the buffer whole at its removal instant.
	if target < s.MaxFrameSize() {
		return Solution{}, fmt.Errorf("%w: target %d bits is below largest frame %d bits",
			ErrTargetUnreachable, target, s.MaxFrameSize())
	}

	sol := Solution{}
	fits := func(rate float64) bool {
		sol.Simulations++
		return sv.sim.Simulate(s, rate).Fits(target)
	}

	low, high, err := sv.bracket(ctx, s, target, fits)
	if err != nil {
		return sol, err
	}
	if low == high {
		sol.Rate, sol.Low = high, low
		return sol, nil
	}

	switch sv.config.Strategy {
	case StrategySpeculative:
		low, high, err = sv.speculative(ctx, s, target, low, high, &sol)
	default:
		low, high, err = sv.bisect(ctx, low, high, fits, &sol)
	}
	if err != nil {
		return sol, err
	}

	// Return the higher of the two bracketing values
	sol.Rate, sol.Low = high, low
	return sol, nil
}

// bracket returns rates low < high with fits(high) true and fits(low)
// false, starting from [avg*fps, max*fps]. When even MinRate fits, both
// ends equal MinRate.
func (sv *Solver) bracket(ctx context.Context, s *Schedule, target int64, fits func(float64) bool) (float64, float64, error) {
	low := s.AverageRate()
	high := s.PeakRate()

	for !fits(high) {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		low = high
		high *= 2
		if high > sv.config.MaxRate {
			return 0, 0, fmt.Errorf("%w: target %d bits not met at %.0f b/s",
				ErrTargetUnreachable, target, sv.config.MaxRate)
		}
	}

	for fits(low) {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		high = low
		if low <= sv.config.MinRate {
			return sv.config.MinRate, sv.config.MinRate, nil
		}
		low = max(low/2, sv.config.MinRate)
	}

	return low, high, nil
}

// bisect narrows [low, high] one midpoint at a time.
func (sv *Solver) bisect(ctx context.Context, low, high float64, fits func(float64) bool, sol *Solution) (float64, float64, error) {
	for high-low >= sv.config.Accuracy {
		if err := ctx.Err(); err != nil {
			return low, high, err
		}
		mid := (low + high) * 0.5
		if fits(mid) {
			high = mid
		} else {
			// Infeasible or over target: the rate is too low
			low = mid
		}
		sol.Iterations++
	}
	return low, high, nil
}

// speculative narrows [low, high] by evaluating Workers interior candidates
// concurrently each round. Each candidate's simulation is independent and
// writes only its own slot.
func (sv *Solver) speculative(ctx context.Context, s *Schedule, target int64, low, high float64, sol *Solution) (float64, float64, error) {
	n := sv.config.Workers
	candidates := make([]float64, n)
	fit := make([]bool, n)

	for high-low >= sv.config.Accuracy {
		if err := ctx.Err(); err != nil {
			return low, high, err
		}

		for k := range candidates {
			candidates[k] = low + (high-low)*float64(k+1)/float64(n+1)
		}

		var g errgroup.Group
		for k := range candidates {
			k := k
			g.Go(func() error {
				fit[k] = sv.sim.Simulate(s, candidates[k]).Fits(target)
				return nil
			})
		}
		_ = g.Wait()
		sol.Simulations += n

		// Candidates ascend, so the first fitting one is the new high and
		// its predecessor the new low.
		next := high
		for k, c := range candidates {
			if fit[k] {
				next = c
				break
			}
			low = c
		}
		high = next
		sol.Iterations++
	}
	return low, high, nil
}
