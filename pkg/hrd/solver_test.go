package hrd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gopSizes returns a short closed-GOP sequence: a large intra frame every
// gop frames and small predicted frames in between.
func gopSizes(count, gop int) []int64 {
	sizes := make([]int64, count)
	for i := range sizes {
		if i%gop == 0 {
			sizes[i] = 600_000
		} else {
			sizes[i] = 90_000
		}
	}
	return sizes
}

// =============================================================================
// Configuration Tests
// =============================================================================

func TestNewSolver_AppliesDefaults(t *testing.T) {
	sv := NewSolver(SolverConfig{})
	cfg := sv.Config()

	assert.Equal(t, 1.0, cfg.Accuracy)
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, 1.0, cfg.MinRate)
	assert.Equal(t, 1e12, cfg.MaxRate)
	assert.Equal(t, DelayFixed, sv.Simulator().Config().DelayPolicy)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyBisection, s)

	s, err = ParseStrategy("speculative")
	require.NoError(t, err)
	assert.Equal(t, StrategySpeculative, s)
	assert.Equal(t, "speculative", s.String())

	_, err = ParseStrategy("golden-section")
	assert.Error(t, err)
}

// =============================================================================
// Search Tests
// =============================================================================

func TestSolver_RoundTrip(t *testing.T) {
	sv := NewSolver(DefaultSolverConfig())
	s := mustSchedule(t, gopSizes(240, 24), 24, 2)
	target := int64(2_000_000)

	sol, err := sv.Solve(context.Background(), s, target)
	require.NoError(t, err)

	assert.True(t, sv.Simulator().Simulate(s, sol.Rate).Fits(target), "returned rate satisfies target")
	assert.False(t, sv.Simulator().Simulate(s, sol.Low).Fits(target), "lower bracket does not")
	assert.Less(t, sol.Rate-sol.Low, 1.0)
	assert.Positive(t, sol.Iterations)
	assert.GreaterOrEqual(t, sol.Simulations, sol.Iterations)
}

func TestSolver_UniformFramesNeedAverageRate(t *testing.T) {
	sv := NewSolver(DefaultSolverConfig())
	s := mustSchedule(t, uniformSizes(30, 100000), 30, 1.0)

	sol, err := sv.Solve(context.Background(), s, 100000)
	require.NoError(t, err)
	assert.InDelta(t, 3_000_000, sol.Rate, 2, "one frame of buffer needs the sustained rate")
}

func TestSolver_LargerBufferNeedsLowerRate(t *testing.T) {
	sv := NewSolver(DefaultSolverConfig())
	s := mustSchedule(t, gopSizes(240, 24), 24, 2)

	small, err := sv.Solve(context.Background(), s, 1_000_000)
	require.NoError(t, err)
	large, err := sv.Solve(context.Background(), s, 4_000_000)
	require.NoError(t, err)

	assert.Less(t, large.Rate, small.Rate)
}

func TestSolver_TargetBelowLargestFrame(t *testing.T) {
	sv := NewSolver(DefaultSolverConfig())
	s := mustSchedule(t, gopSizes(48, 24), 24, 2)

	_, err := sv.Solve(context.Background(), s, 599_999)
	assert.ErrorIs(t, err, ErrTargetUnreachable)
}

func TestSolver_HugeTargetLowersBelowAverageRate(t *testing.T) {
	sv := NewSolver(DefaultSolverConfig())
	s := mustSchedule(t, gopSizes(48, 24), 24, 5)

	sol, err := sv.Solve(context.Background(), s, s.TotalBits())
	require.NoError(t, err)
	assert.Less(t, sol.Rate, s.AverageRate(), "whole stream fits, delay does the work")
	assert.True(t, sv.Simulator().Simulate(s, sol.Rate).Fits(s.TotalBits()))
}

func TestSolver_UpperBracketExpands(t *testing.T) {
	sv := NewSolver(DefaultSolverConfig())
	// Half-frame delay: frame 0 needs twice max*fps to arrive in time.
	s := mustSchedule(t, []int64{1000, 1000}, 1, 0.5)

	sol, err := sv.Solve(context.Background(), s, 2000)
	require.NoError(t, err)
	assert.Greater(t, sol.Rate, s.PeakRate())
	assert.True(t, sv.Simulator().Simulate(s, sol.Rate).Fits(2000))
}

func TestSolver_ContextCancelled(t *testing.T) {
	sv := NewSolver(DefaultSolverConfig())
	s := mustSchedule(t, gopSizes(240, 24), 24, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sv.Solve(ctx, s, 2_000_000)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Speculative Strategy Tests
// =============================================================================

func TestSolver_SpeculativeMatchesBisection(t *testing.T) {
	s := mustSchedule(t, gopSizes(240, 24), 24, 2)
	target := int64(2_000_000)

	plain := NewSolver(DefaultSolverConfig())
	cfg := DefaultSolverConfig()
	cfg.Strategy = StrategySpeculative
	cfg.Workers = 4
	sv := NewSolver(cfg)

	a, err := plain.Solve(context.Background(), s, target)
	require.NoError(t, err)
	b, err := sv.Solve(context.Background(), s, target)
	require.NoError(t, err)

	assert.InDelta(t, a.Rate, b.Rate, 1.0)
	assert.True(t, sv.Simulator().Simulate(s, b.Rate).Fits(target))
	assert.Less(t, b.Iterations, a.Iterations, "more candidates per round, fewer rounds")
}
