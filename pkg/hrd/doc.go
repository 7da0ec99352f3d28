// Package hrd determines the relationship between channel rate, decoder
// buffer size and initial buffering delay for a sequence of compressed video
// frames. Given any two, it derives the third.
//
// # Model
//
// Frames leave the buffer in decode order at removal times
//
//	t_remove[n] = delay + n/fps
//
// and arrive over a constant-rate channel as late as possible: frame n
// finishes arriving at its removal time and takes size[n]/rate seconds to
// receive. Windows that overlap are pushed earlier so the channel carries one
// frame at a time. If this pushes frame 0 before t=0 the schedule is
// Infeasible at that rate and delay.
//
// # Quick Start
//
// Rate to buffer:
//
//	s, err := hrd.NewSchedule(sizes, 23.976, hrd.DefaultDelay)
//	if err != nil {
//	    return err
//	}
//	sim := hrd.NewSimulator(hrd.DefaultSimulatorConfig())
//	if bits, ok := sim.Simulate(s, 8_000_000).Bits(); ok {
//	    fmt.Printf("buffer: %d bits\n", bits)
//	}
//
// Buffer to rate:
//
//	solver := hrd.NewSolver(hrd.DefaultSolverConfig())
//	sol, err := solver.Solve(ctx, s, 40_000_000)
//
// Every Plex buffer size at once:
//
//	be := hrd.NewBatchEvaluator(hrd.DefaultBatchConfig())
//	results, err := be.Evaluate(ctx, s, hrd.MenuTargets())
//
// # Concurrency
//
// Schedules are read-only and Simulator, Solver and BatchEvaluator hold only
// configuration, so all of them may be shared between goroutines.
package hrd
