// Soak test runner for the buffer simulator and rate solver.
//
// This tool solves random frame schedules back to back and checks every
// answer against the simulator, watching for wrong rates, monotonicity
// violations and memory growth in the scratch pool over extended periods.
//
// Usage:
//
//	go run ./cmd/soak -duration 1h
//	go run ./cmd/soak -duration 5m -frames 2000
//
// Exposes pprof endpoint at :6060 for live profiling:
//
//	curl http://localhost:6060/debug/pprof/heap > heap.pprof
//	go tool pprof heap.pprof
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // Enable pprof endpoints
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/martinpickett/Plex-Tools/pkg/hrd"
	"github.com/martinpickett/Plex-Tools/pkg/hrd/testutil"
)

const (
	statusInterval = time.Minute
	heapLimitMB    = 100
)

var frameRates = []float64{23.976, 24, 25, 29.97, 30, 50, 60}

// SoakResult contains the results of a soak test run.
type SoakResult struct {
	Duration       time.Duration
	Schedules      int
	Simulations    int
	Unreachable    int
	PeakHeapMB     float64
	TotalGCCycles  uint32
	RateViolations int
	Monotonicity   int
	StrategyMisses int
	Status         string
}

func main() {
	// Parse flags
	duration := flag.Duration("duration", time.Hour, "Test duration (e.g., 5m, 1h, 24h)")
	frames := flag.Int("frames", 1000, "Frames per random schedule")
	seed := flag.Int64("seed", 1, "Seed of the first schedule")
	pprofPort := flag.Int("pprof-port", 6060, "Port for pprof HTTP server")
	flag.Parse()

	fmt.Printf("HRD Soak Test Runner\n")
	fmt.Printf("====================\n")
	fmt.Printf("Duration: %v\n", *duration)
	fmt.Printf("Frames:   %d per schedule\n", *frames)
	fmt.Printf("Pprof:    http://localhost:%d/debug/pprof/\n", *pprofPort)
	fmt.Printf("\n")

	// Start pprof server in background
	go func() {
		addr := fmt.Sprintf(":%d", *pprofPort)
		if err := http.ListenAndServe(addr, nil); err != nil {
			fmt.Printf("Warning: pprof server failed: %v\n", err)
		}
	}()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived %v, shutting down gracefully...\n", sig)
		cancel()
	}()

	result := runSoakTest(ctx, *duration, *frames, *seed)

	printSummary(result)

	if result.Status == "PASS" {
		os.Exit(0)
	}
	os.Exit(1)
}

func runSoakTest(ctx context.Context, duration time.Duration, frames int, seed int64) SoakResult {
	bisection := hrd.NewSolver(hrd.DefaultSolverConfig())
	fastConfig := hrd.DefaultSolverConfig()
	fastConfig.Strategy = hrd.StrategySpeculative
	speculative := hrd.NewSolver(fastConfig)
	sim := bisection.Simulator()

	result := SoakResult{Status: "PASS"}
	rng := rand.New(rand.NewSource(seed))

	var memStats runtime.MemStats
	startTime := time.Now()
	lastStatusTime := startTime

	fmt.Printf("[%s] Starting soak test...\n", formatDuration(0))

	for {
		if ctx.Err() != nil {
			result.Duration = time.Since(startTime)
			return result
		}
		now := time.Now()
		elapsed := now.Sub(startTime)
		if elapsed >= duration {
			result.Duration = elapsed
			return result
		}

		sizes := testutil.Random(seed+int64(result.Schedules), frames, 5_000, 800_000)
		fps := frameRates[rng.Intn(len(frameRates))]
		delay := 0.5 + 4.5*rng.Float64()
		s := testutil.Schedule(sizes, fps, delay)
		target := s.MaxFrameSize() * int64(1+rng.Intn(40))
		result.Schedules++

		sol, err := bisection.Solve(ctx, s, target)
		result.Simulations += sol.Simulations
		if errors.Is(err, hrd.ErrTargetUnreachable) {
			result.Unreachable++
			continue
		}
		if err != nil {
			// Only cancellation ends a solve early.
			continue
		}

		// The solved rate must satisfy the target it was solved for.
		if !sim.Simulate(s, sol.Rate).Fits(target) {
			fmt.Printf("[%s] ERROR: rate %.3f does not fit target %d (seed %d)\n",
				formatDuration(elapsed), sol.Rate, target, seed+int64(result.Schedules-1))
			result.RateViolations++
			result.Status = "FAIL"
		}

		// Doubling the rate never raises the peak beyond rounding.
		base, _ := sim.Simulate(s, sol.Rate).Bits()
		doubled, ok := sim.Simulate(s, 2*sol.Rate).Bits()
		result.Simulations += 3
		if !ok || doubled > base+int64(s.Len()) {
			fmt.Printf("[%s] ERROR: peak %d at %.0f b/s exceeds %d at %.0f b/s\n",
				formatDuration(elapsed), doubled, 2*sol.Rate, base, sol.Rate)
			result.Monotonicity++
			result.Status = "FAIL"
		}

		if result.Schedules%10 == 0 {
			fast, err := speculative.Solve(ctx, s, target)
			result.Simulations += fast.Simulations
			if err == nil && !speculative.Simulator().Simulate(s, fast.Rate).Fits(target) {
				fmt.Printf("[%s] WARNING: speculative rate %.3f does not fit target %d\n",
					formatDuration(elapsed), fast.Rate, target)
				result.StrategyMisses++
			}
		}

		// Periodic status output
		if now.Sub(lastStatusTime) >= statusInterval {
			lastStatusTime = now
			runtime.ReadMemStats(&memStats)

			heapMB := float64(memStats.HeapAlloc) / (1024 * 1024)
			if heapMB > result.PeakHeapMB {
				result.PeakHeapMB = heapMB
			}
			result.TotalGCCycles = memStats.NumGC

			fmt.Printf("[%s] Schedules: %d, Simulations: %d, Last rate: %.0f b/s, HeapAlloc: %.2f MB, NumGC: %d\n",
				formatDuration(elapsed),
				result.Schedules,
				result.Simulations,
				sol.Rate,
				heapMB,
				memStats.NumGC)

			if heapMB > heapLimitMB {
				fmt.Printf("[%s] ERROR: Memory limit exceeded: %.2f MB\n", formatDuration(elapsed), heapMB)
				result.Status = "FAIL"
			}
		}
	}
}

func printSummary(result SoakResult) {
	fmt.Printf("\n")
	fmt.Printf("Soak Test Complete\n")
	fmt.Printf("==================\n")
	fmt.Printf("Duration:            %v\n", result.Duration.Round(time.Second))
	fmt.Printf("Schedules:           %d\n", result.Schedules)
	fmt.Printf("Simulations:         %d\n", result.Simulations)
	fmt.Printf("Unreachable targets: %d\n", result.Unreachable)
	fmt.Printf("Peak HeapAlloc:      %.2f MB\n", result.PeakHeapMB)
	fmt.Printf("Total GC cycles:     %d\n", result.TotalGCCycles)
	fmt.Printf("Status:              %s\n", result.Status)
	fmt.Printf("\n")

	// Pass criteria
	fmt.Printf("Pass Criteria:\n")
	fmt.Printf("  - No panics:              %s\n", checkMark(true))
	fmt.Printf("  - Solved rates fit:       %s\n", checkMark(result.RateViolations == 0))
	fmt.Printf("  - Peak monotone in rate:  %s\n", checkMark(result.Monotonicity == 0))
	fmt.Printf("  - Peak memory < %d MB:   %s\n", heapLimitMB, checkMark(result.PeakHeapMB < heapLimitMB))
	fmt.Printf("  - Speculative rates fit:  %s\n", checkMark(result.StrategyMisses == 0))
}

func formatDuration(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func checkMark(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
