package hrd_test

import (
	"context"
	"testing"

	"github.com/martinpickett/Plex-Tools/pkg/hrd"
	"github.com/martinpickett/Plex-Tools/pkg/hrd/testutil"
)

// benchResult is a package-level variable to prevent compiler optimizations
// from eliminating benchmark loops that produce unused results.
var benchResult hrd.Result

var benchRate float64

// Two hours at 24 fps.
func benchSchedule() *hrd.Schedule {
	return testutil.Schedule(testutil.Random(1, 172_800, 40_000, 2_000_000), 24, hrd.DefaultDelay)
}

func BenchmarkSimulator_Simulate(b *testing.B) {
	s := benchSchedule()
	sim := hrd.NewSimulator(hrd.DefaultSimulatorConfig())
	rate := s.AverageRate() * 1.5

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchResult = sim.Simulate(s, rate)
	}
}

func BenchmarkSolver_Bisection(b *testing.B) {
	s := benchSchedule()
	solver := hrd.NewSolver(hrd.DefaultSolverConfig())
	target := hrd.MenuTargets()[2]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sol, err := solver.Solve(context.Background(), s, target)
		if err != nil {
			b.Fatal(err)
		}
		benchRate = sol.Rate
	}
}

func BenchmarkSolver_Speculative(b *testing.B) {
	s := benchSchedule()
	cfg := hrd.DefaultSolverConfig()
	cfg.Strategy = hrd.StrategySpeculative
	solver := hrd.NewSolver(cfg)
	target := hrd.MenuTargets()[2]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sol, err := solver.Solve(context.Background(), s, target)
		if err != nil {
			b.Fatal(err)
		}
		benchRate = sol.Rate
	}
}
