// Command plex-bitrate prints the Plex required bitrate of a video for every
// client buffer size Plex offers.
//
// Usage:
//
//	plex-bitrate movie.mkv
//	plex-bitrate -fps 23.976 -timeout 10m encode.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/martinpickett/Plex-Tools/internal/platform/logger"
	"github.com/martinpickett/Plex-Tools/internal/report"
	"github.com/martinpickett/Plex-Tools/pkg/hrd"
	"github.com/martinpickett/Plex-Tools/pkg/source"

	"github.com/sirupsen/logrus"
)

const version = "2022.02.19"

var errNoFile = errors.New("exactly one input file is required")

type cliConfig struct {
	path     string
	delay    float64
	fps      float64
	workers  int
	timeout  time.Duration
	logLevel string
	version  bool
}

func parseFlags(args []string, stderr io.Writer) (cliConfig, error) {
	var c cliConfig
	fs := flag.NewFlagSet("plex-bitrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Float64Var(&c.delay, "delay", hrd.DefaultDelay, "initial removal delay in seconds")
	fs.Float64Var(&c.fps, "fps", 0, "frame rate override")
	fs.IntVar(&c.workers, "workers", runtime.NumCPU(), "buffer sizes solved at once")
	fs.DurationVar(&c.timeout, "timeout", 0, "per buffer size time limit (0 for none)")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&c.version, "version", false, "print version information and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Calculate the Plex Required Bitrates for the video stream in a video file.\n\n")
		fmt.Fprintf(stderr, "Usage: plex-bitrate [OPTIONS] FILE\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nRequires FFprobe for container formats.\n")
	}

	if err := fs.Parse(args); err != nil {
		return c, err
	}
	if c.version {
		return c, nil
	}
	if fs.NArg() != 1 {
		return c, errNoFile
	}
	c.path = fs.Arg(0)
	if c.delay <= 0 {
		return c, fmt.Errorf("invalid delay %g: must be greater than 0", c.delay)
	}
	return c, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if cfg.version {
		fmt.Printf("plex-bitrate %s\n", version)
		return
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

// run solves every Plex buffer size in parallel and prints the table.
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

	log.Info("Starting rate value calculations for Plex buffer sizes...")
	start := time.Now()
	eval := hrd.NewBatchEvaluator(hrd.BatchConfig{
		Solver:      hrd.DefaultSolverConfig(),
		Workers:     cfg.workers,
		TaskTimeout: cfg.timeout,
	})
	results, err := eval.Evaluate(ctx, s, hrd.MenuTargets())
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			log.WithError(r.Err).WithField("buffer_bits", r.Target).Warn("buffer size failed")
		}
	}
	rates, err := hrd.Rates(results)
	if err != nil {
		return err
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Debug("menu solved")

	return report.PlexTable(out, hrd.PlexBufferSizesMB, rates)
}
