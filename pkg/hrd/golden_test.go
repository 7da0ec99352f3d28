package hrd_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinpickett/Plex-Tools/pkg/hrd"
	"github.com/martinpickett/Plex-Tools/pkg/hrd/testutil"
)

// Expected values below come from an independent computation of the same
// leaky-bucket model. Every delay here is long enough that the first frame
// never stretches it, so both delay policies agree.

// cutSchedule is four minutes of 24 fps video with a 48-frame GOP: two quiet
// minutes followed by a cut into two minutes of heavy motion.
func cutSchedule() *hrd.Schedule {
	quiet := testutil.GOP(2880, 48, 400_000, 20_000)
	heavy := testutil.GOP(2880, 48, 6_000_000, 2_800_000)
	return testutil.Schedule(append(quiet, heavy...), 24, hrd.DefaultDelay)
}

// =============================================================================
// Reference Buffer Sizes
// =============================================================================

func TestGolden_Simulate(t *testing.T) {
	sim := hrd.NewSimulator(hrd.DefaultSimulatorConfig())
	gop := testutil.Schedule(testutil.GOP(240, 48, 2_400_000, 150_000), 24, hrd.DefaultDelay)
	cut := cutSchedule()

	tests := []struct {
		name string
		s    *hrd.Schedule
		rate float64
		want int64
	}{
		{"gop 5 Mb/s", gop, 5_000_000, 3_900_000},
		{"gop 8 Mb/s", gop, 8_000_000, 3_300_000},
		{"cut 40 Mb/s", cut, 40_000_000, 3_457_666_667},
		{"cut 60 Mb/s", cut, 60_000_000, 1_058_500_000},
		{"cut 80 Mb/s", cut, 80_000_000, 6_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bits, ok := sim.Simulate(tt.s, tt.rate).Bits()
			require.True(t, ok)
			assert.Equal(t, tt.want, bits)
		})
	}
}

// =============================================================================
// Reference Rates
// =============================================================================

func TestGolden_Solve(t *testing.T) {
	solver := hrd.NewSolver(hrd.DefaultSolverConfig())
	gop := testutil.Schedule(testutil.GOP(240, 48, 2_400_000, 150_000), 24, hrd.DefaultDelay)

	tests := []struct {
		target int64
		want   float64
	}{
		{3_000_000, 9_600_000.732},
		{3_500_000, 6_400_000.571},
	}
	for _, tt := range tests {
		sol, err := solver.Solve(context.Background(), gop, tt.target)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, sol.Rate, 0.01, "target %d", tt.target)
	}
}

func TestGolden_PlexMenu(t *testing.T) {
	be := hrd.NewBatchEvaluator(hrd.DefaultBatchConfig())
	results, err := be.Evaluate(context.Background(), cutSchedule(), hrd.MenuTargets())
	require.NoError(t, err)
	rates, err := hrd.Rates(results)
	require.NoError(t, err)

	// Plex Buffer (MB): 5, 10, 25, 50, 75, 100, 250, 500
	want := []int64{68557, 68241, 67326, 65823, 64323, 62822, 53821, 38821}
	got := make([]int64, len(rates))
	for i, rate := range rates {
		got[i] = hrd.CeilKbps(rate)
	}
	assert.Equal(t, want, got)
}
