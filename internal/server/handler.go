// Package server exposes the HRD calculations over HTTP using go-chi.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/martinpickett/Plex-Tools/internal/platform/clock"
	"github.com/martinpickett/Plex-Tools/internal/platform/metrics"
	"github.com/martinpickett/Plex-Tools/pkg/hrd"

	"github.com/sirupsen/logrus"
)

// maxBatchTargets bounds the number of targets in one batch request.
const maxBatchTargets = 64

var (
	errRateNotPositive   = errors.New("rate must be a positive number of bits per second")
	errBufferNotPositive = errors.New("buffer_bits must be positive")
	errTooManyTargets    = fmt.Errorf("at most %d targets per batch", maxBatchTargets)
)

// Config configures the HTTP handlers.
type Config struct {
	// Workers bounds concurrent searches in a batch.
	// Default: runtime.NumCPU()
	Workers int

	// TaskTimeout bounds each search of a batch. Zero means no limit.
	TaskTimeout time.Duration

	// RequestTimeout bounds a whole calculation request.
	// Default: 30s
	RequestTimeout time.Duration

	// MaxBodyBytes limits the size of a request body.
	// Default: 8 MiB
	MaxBodyBytes int64

	// Strategy is used when a rate request names none.
	// Default: hrd.StrategyBisection
	Strategy hrd.Strategy

	// Delay is the initial removal delay in seconds used when a request
	// names none.
	// Default: hrd.DefaultDelay
	Delay float64
}

// DefaultConfig returns the default handler configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        runtime.NumCPU(),
		RequestTimeout: 30 * time.Second,
		MaxBodyBytes:   8 << 20,
		Strategy:       hrd.StrategyBisection,
		Delay:          hrd.DefaultDelay,
	}
}

// Handler serves the buffer, rate and batch calculations.
type Handler struct {
	config  Config
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	clock   clock.Clock
}

// NewHandler returns a Handler. Metrics may be nil to disable metric
// recording; a nil clock uses the system clock.
func NewHandler(config Config, log logrus.FieldLogger, m *metrics.Metrics, clk clock.Clock) *Handler {
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if !positive(config.Delay) {
		config.Delay = defaults.Delay
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Handler{config: config, log: log, metrics: m, clock: clk}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Menu handles GET /v1/menu.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MenuResponse{
		SizesMB:    hrd.PlexBufferSizesMB,
		TargetBits: hrd.MenuTargets(),
	})
}

// Buffer handles POST /v1/buffer: the peak occupancy at a given rate.
// An infeasible schedule is a 200 response with "feasible": false.
func (h *Handler) Buffer(w http.ResponseWriter, r *http.Request) {
	start := h.clock.Now()

	var req BufferRequest
	if err := h.decode(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	s, policy, err := req.schedule(h.config.Delay)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	if !positive(req.Rate) {
		h.badRequest(w, errRateNotPositive)
		return
	}

	sim := hrd.NewSimulator(hrd.SimulatorConfig{DelayPolicy: policy})
	resp := BufferResponse{
		Rate:           req.Rate,
		EffectiveDelay: sim.EffectiveDelay(s, req.Rate),
	}

	var result hrd.Result
	if req.Trace {
		tr := sim.Trace(s, req.Rate)
		result = tr.Result
		resp.Windows = make([]Window, len(tr.Windows))
		for i, win := range tr.Windows {
			resp.Windows[i] = Window{Start: win.Start, End: win.End}
		}
	} else {
		result = sim.Simulate(s, req.Rate)
	}

	if bits, ok := result.Bits(); ok {
		resp.Feasible = true
		resp.BufferBits = bits
		resp.BufferMB = hrd.BitsToMegabytes(bits)
	} else if h.metrics != nil {
		h.metrics.IncInfeasible()
	}

	h.observe(metrics.ModeBuffer, start)
	h.log.WithFields(logrus.Fields{
		"frames":   s.Len(),
		"rate":     req.Rate,
		"feasible": resp.Feasible,
		"buffer":   resp.BufferBits,
	}).Debug("buffer calculated")
	writeJSON(w, http.StatusOK, resp)
}

// Rate handles POST /v1/rate: the minimum rate for a target buffer.
// Body: { "frames": [...], "fps": 24, "buffer_bits": 36000000 }.
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	start := h.clock.Now()

	var req RateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	s, policy, err := req.schedule(h.config.Delay)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	if req.BufferBits <= 0 {
		h.badRequest(w, errBufferNotPositive)
		return
	}
	strategy := h.config.Strategy
	if req.Strategy != "" {
		if strategy, err = hrd.ParseStrategy(req.Strategy); err != nil {
			h.badRequest(w, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.RequestTimeout)
	defer cancel()

	solver := hrd.NewSolver(hrd.SolverConfig{
		Simulator: hrd.SimulatorConfig{DelayPolicy: policy},
		Strategy:  strategy,
		Workers:   h.config.Workers,
	})
	sol, err := solver.Solve(ctx, s, req.BufferBits)
	if err != nil {
		h.solveFailed(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveIterations(sol.Iterations)
	}
	h.observe(metrics.ModeRate, start)
	h.log.WithFields(logrus.Fields{
		"frames":     s.Len(),
		"buffer":     req.BufferBits,
		"rate":       sol.Rate,
		"iterations": sol.Iterations,
		"strategy":   strategy.String(),
	}).Debug("rate calculated")
	writeJSON(w, http.StatusOK, RateResponse{
		Rate:        sol.Rate,
		RateKbps:    hrd.CeilKbps(sol.Rate),
		BufferBits:  req.BufferBits,
		Iterations:  sol.Iterations,
		Simulations: sol.Simulations,
	})
}

// Batch handles POST /v1/batch: the minimum rate for many targets at once,
// the Plex buffer menu by default. A target that fails alone is reported in
// its own entry.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	start := h.clock.Now()

	var req BatchRequest
	if err := h.decode(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	s, policy, err := req.schedule(h.config.Delay)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	targets := req.Targets
	if len(targets) == 0 {
		targets = hrd.MenuTargets()
	}
	if len(targets) > maxBatchTargets {
		h.badRequest(w, errTooManyTargets)
		return
	}
	for _, t := range targets {
		if t <= 0 {
			h.badRequest(w, errBufferNotPositive)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.RequestTimeout)
	defer cancel()

	eval := hrd.NewBatchEvaluator(hrd.BatchConfig{
		Solver: hrd.SolverConfig{
			Simulator: hrd.SimulatorConfig{DelayPolicy: policy},
			Strategy:  h.config.Strategy,
		},
		Workers:     h.config.Workers,
		TaskTimeout: h.config.TaskTimeout,
	})
	results, err := eval.Evaluate(ctx, s, targets)
	if err != nil {
		h.solveFailed(w, err)
		return
	}

	resp := BatchResponse{Results: make([]BatchEntry, len(results))}
	for i, res := range results {
		entry := BatchEntry{
			BufferBits: res.Target,
			NominalMB:  float64(res.Target) / hrd.BitsPerNominalMegabyte,
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		} else {
			entry.Rate = res.Solution.Rate
			entry.RateKbps = hrd.CeilKbps(res.Solution.Rate)
			if h.metrics != nil {
				h.metrics.ObserveIterations(res.Solution.Iterations)
			}
		}
		resp.Results[i] = entry
	}

	h.observe(metrics.ModeBatch, start)
	h.log.WithFields(logrus.Fields{
		"frames":  s.Len(),
		"targets": len(targets),
	}).Debug("batch calculated")
	writeJSON(w, http.StatusOK, resp)
}

// schedule validates the shared fields and builds the schedule, using
// defaultDelay when the request names no delay.
func (req scheduleRequest) schedule(defaultDelay float64) (*hrd.Schedule, hrd.DelayPolicy, error) {
	policy, err := hrd.ParseDelayPolicy(req.DelayPolicy)
	if err != nil {
		return nil, policy, err
	}
	delay := defaultDelay
	if req.Delay != nil {
		delay = *req.Delay
	}
	s, err := hrd.NewSchedule(req.Frames, req.FPS, delay)
	if err != nil {
		return nil, policy, err
	}
	return s, policy, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	h.log.WithError(err).Debug("rejected request")
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// solveFailed maps a search error to a status code.
func (h *Handler) solveFailed(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hrd.ErrTargetUnreachable):
		h.log.WithError(err).Info("target unreachable")
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		h.log.WithError(err).Warn("calculation timed out")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "calculation timed out"})
	case errors.Is(err, context.Canceled):
		h.log.WithError(err).Debug("client went away")
	default:
		h.log.WithError(err).Error("calculation failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (h *Handler) observe(mode string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveCalculation(mode, clock.Since(h.clock, start))
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
