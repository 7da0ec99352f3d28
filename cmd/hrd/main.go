// Command hrd computes the decoder buffer needed to stream a video at a
// given rate, or the minimum rate that fits a given buffer.
//
// Frame sizes come from an x265 CSV log, saved ffprobe JSON, an IVF file, a
// raw H.264 stream, an RTP capture, or any container ffprobe can read.
//
// Usage:
//
//	hrd -rate 8000 movie.mkv           # peak buffer at 8000 kb/s
//	hrd -buffer 36000 movie.mkv        # minimum rate for a 36000 kb buffer
//	hrd -buffer 36000 -fps 23.976 encode.csv
//
// The delay is fixed by default, so a rate too slow for the first frame is
// reported as not possible. -extend-delay raises the delay to the first
// frame's arrival time instead, which gives the same numbers as H264_HRD.py.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/martinpickett/Plex-Tools/internal/platform/logger"
	"github.com/martinpickett/Plex-Tools/internal/report"
	"github.com/martinpickett/Plex-Tools/pkg/hrd"
	"github.com/martinpickett/Plex-Tools/pkg/source"

	"github.com/sirupsen/logrus"
)

var (
	errRateAndBuffer = errors.New("cannot input both rate and buffer; pick one to calculate the other")
	errNoMode        = errors.New("one of -rate or -buffer is required")
	errNoFile        = errors.New("exactly one input file is required")
	errInvalidRate   = errors.New("rate must be greater than 0")
	errInvalidBuffer = errors.New("buffer must be greater than 0")
	errInvalidDelay  = errors.New("delay must be greater than 0")
	errInvalidFPS    = errors.New("fps must not be negative")
)

// cliConfig holds the parsed command line.
type cliConfig struct {
	path        string
	rateKbps    float64
	bufferKb    float64
	rateSet     bool
	bufferSet   bool
	delay       float64
	fps         float64
	extendDelay bool
	strategy    string
	workers     int
	logLevel    string
	verbose     bool
}

// Validate checks that exactly one mode is selected and every value is in
// range.
func (c cliConfig) Validate() error {
	if c.path == "" {
		return errNoFile
	}
	if c.rateSet && c.bufferSet {
		return errRateAndBuffer
	}
	if !c.rateSet && !c.bufferSet {
		return errNoMode
	}
	if c.rateSet && c.rateKbps <= 0 {
		return fmt.Errorf("%w: %g", errInvalidRate, c.rateKbps)
	}
	if c.bufferSet && c.bufferKb <= 0 {
		return fmt.Errorf("%w: %g", errInvalidBuffer, c.bufferKb)
	}
	if c.delay <= 0 {
		return fmt.Errorf("%w: %g", errInvalidDelay, c.delay)
	}
	if c.fps < 0 {
		return fmt.Errorf("%w: %g", errInvalidFPS, c.fps)
	}
	if _, err := hrd.ParseStrategy(c.strategy); err != nil {
		return err
	}
	return nil
}

// parseFlags parses args, accepting flags before and after the file name.
func parseFlags(args []string, stderr io.Writer) (cliConfig, error) {
	var c cliConfig
	fs := flag.NewFlagSet("hrd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Func("rate", "channel rate in kb/s; prints the peak buffer", func(s string) error {
		c.rateSet = true
		v, err := strconv.ParseFloat(s, 64)
		c.rateKbps = v
		return err
	})
	fs.Func("buffer", "buffer size in kilobits; prints the minimum rate", func(s string) error {
		c.bufferSet = true
		v, err := strconv.ParseFloat(s, 64)
		c.bufferKb = v
		return err
	})
	fs.Float64Var(&c.delay, "delay", hrd.DefaultDelay, "initial removal delay in seconds")
	fs.Float64Var(&c.fps, "fps", 0, "frame rate override (required for x265 CSV and H.264 input)")
	fs.BoolVar(&c.extendDelay, "extend-delay", false, "let the delay grow until the first frame can arrive (the H264_HRD.py behaviour)")
	fs.StringVar(&c.strategy, "strategy", "bisection", "rate search strategy: bisection or speculative")
	fs.IntVar(&c.workers, "workers", 0, "parallel candidates per round for -strategy speculative (default NumCPU)")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&c.verbose, "v", false, "print a simulation trace")

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return c, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(positional) > 1 {
		return c, errNoFile
	}
	if len(positional) == 1 {
		c.path = positional[0]
	}
	return c, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(cfg.logLevel, "text")

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Warn("interrupted")
		cancel()
	}()

	if err := run(ctx, cfg, os.Stdout, log); err != nil {
		log.WithError(err).Error("calculation failed")
		os.Exit(1)
	}
}

// run loads the file and performs the selected calculation, writing results
// to out.
func run(ctx context.Context, cfg cliConfig, out io.Writer, log logrus.FieldLogger) error {
	log.WithField("file", cfg.path).Info("Reading file...")
	frames, err := source.Open(ctx, cfg.path)
	if err != nil {
		return err
	}
	s, err := frames.Schedule(cfg.fps, cfg.delay)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.path, err)
	}
	log.WithField("format", frames.Format).
		Infof("Media has %d frames at %.3f frames per second", s.Len(), s.FPS)

	policy := hrd.DelayFixed
	if cfg.extendDelay {
		policy = hrd.DelayExtend
	}

	if cfg.rateSet {
		log.Info("Starting buffer size calculations...")
		sim := hrd.NewSimulator(hrd.SimulatorConfig{DelayPolicy: policy})
		rate := hrd.KilobitsToBits(cfg.rateKbps)

		var result hrd.Result
		if cfg.verbose {
			tr := sim.Trace(s, rate)
			report.Trace(out, s, rate, tr)
			result = tr.Result
		} else {
			result = sim.Simulate(s, rate)
		}
		report.Buffer(out, result, rate, cfg.delay)
		return nil
	}

	log.Info("Starting rate value calculations...")
	strategy, err := hrd.ParseStrategy(cfg.strategy)
	if err != nil {
		return err
	}
	solver := hrd.NewSolver(hrd.SolverConfig{
		Simulator: hrd.SimulatorConfig{DelayPolicy: policy},
		Strategy:  strategy,
		Workers:   cfg.workers,
	})
	target := int64(hrd.KilobitsToBits(cfg.bufferKb))
	sol, err := solver.Solve(ctx, s, target)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"iterations":  sol.Iterations,
		"simulations": sol.Simulations,
		"strategy":    strategy.String(),
	}).Debug("search finished")

	if cfg.verbose {
		report.Trace(out, s, sol.Rate, solver.Simulator().Trace(s, sol.Rate))
	}
	report.Rate(out, sol.Rate)
	return nil
}
