package hrd

import (
	"fmt"
	"math"
)

// DelayPolicy selects how the initial delay is derived for a candidate rate.
type DelayPolicy int

const (
	// DelayFixed removes frame 0 at exactly Schedule.Delay. A rate too slow to
	// deliver the first frame by then is Infeasible.
	DelayFixed DelayPolicy = iota
	// DelayExtend raises the delay to size0/rate when the requested delay is
	// shorter than the time needed to receive frame 0.
	DelayExtend
)

// String returns a string representation of the DelayPolicy.
func (p DelayPolicy) String() string {
	switch p {
	case DelayFixed:
		return "Fixed"
	case DelayExtend:
		return "Extend"
	default:
		return "Unknown"
	}
}

// ParseDelayPolicy maps a policy name ("fixed" or "extend") to a
// DelayPolicy. The empty string selects DelayFixed.
func ParseDelayPolicy(name string) (DelayPolicy, error) {
	switch name {
	case "", "fixed":
		return DelayFixed, nil
	case "extend":
		return DelayExtend, nil
	default:
		return DelayFixed, fmt.Errorf("unknown delay policy %q", name)
	}
}

// SimulatorConfig configures the buffer simulator.
type SimulatorConfig struct {
	// DelayPolicy decides whether the initial delay may grow to fit frame 0.
	// Default: DelayFixed
	DelayPolicy DelayPolicy
}

// DefaultSimulatorConfig returns the default simulator configuration.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		DelayPolicy: DelayFixed,
	}
}

// ArrivalWindow is the interval during which a frame's bits arrive over the
// channel.
type ArrivalWindow struct {
	Start float64
	End   float64
}

// Trace is the full working of one simulation, for diagnostics.
type Trace struct {
	// EffectiveDelay is the removal time of frame 0 actually used.
	EffectiveDelay float64

	// Windows are the corrected arrival windows, one per frame.
	Windows []ArrivalWindow

	// Timeline is the signed delta sequence: positive values are arriving
	// bits, negative values are removed frames. Empty when infeasible.
	Timeline []int64

	// Result is the simulation outcome.
	Result Result
}

// Simulator computes the peak decoder buffer occupancy of a schedule at a
// given channel rate.
//
// The model is a leaky bucket: bits arrive at the channel rate as late as the
// decode clock allows, and each frame leaves the buffer in full at its
// removal time delay + n/fps.
//
// A Simulator holds only configuration and is safe for concurrent use.
type Simulator struct {
	config SimulatorConfig
}

// NewSimulator creates a new simulator with the given configuration.
func NewSimulator(config SimulatorConfig) *Simulator {
	if config.DelayPolicy != DelayExtend {
		config.DelayPolicy = DelayFixed
	}
	return &Simulator{config: config}
}

// Config returns the simulator configuration.
func (sim *Simulator) Config() SimulatorConfig {
	return sim.config
}

// EffectiveDelay returns the removal time of frame 0 at the given rate.
func (sim *Simulator) EffectiveDelay(s *Schedule, rate float64) float64 {
	if sim.config.DelayPolicy == DelayExtend {
		return math.Max(s.Delay, float64(s.Frames[0].Size)/rate)
	}
	return s.Delay
}

// Simulate returns the maximum number of bits held in the buffer when s is
// delivered at rate bits per second, or Infeasible when frame 0 cannot
// arrive by its removal time.
//
// Preconditions: rate > 0 and s built by NewSchedule.
func (sim *Simulator) Simulate(s *Schedule, rate float64) Result {
	sc := getScratch(len(s.Frames))
	defer putScratch(sc)

	if !sim.arrivals(s, rate, sc) {
		return Infeasible
	}
	sim.timeline(s, rate, sc)
	return Occupancy(peak(sc.timeline))
}

// Trace runs one simulation and returns its intermediate state.
// Unlike Simulate it allocates fresh slices for the caller.
func (sim *Simulator) Trace(s *Schedule, rate float64) Trace {
	sc := getScratch(len(s.Frames))
	defer putScratch(sc)

	tr := Trace{EffectiveDelay: sim.EffectiveDelay(s, rate)}
	feasible := sim.arrivals(s, rate, sc)

	tr.Windows = make([]ArrivalWindow, len(s.Frames))
	for i := range tr.Windows {
		tr.Windows[i] = ArrivalWindow{Start: sc.start[i], End: sc.end[i]}
	}
	if !feasible {
		tr.Result = Infeasible
		return tr
	}

	sim.timeline(s, rate, sc)
	tr.Timeline = append([]int64(nil), sc.timeline...)
	tr.Result = Occupancy(peak(sc.timeline))
	return tr
}

// arrivals fills removal times and corrected arrival windows. It reports
// false when the first frame would have to start arriving before t=0.
func (sim *Simulator) arrivals(s *Schedule, rate float64, sc *scratch) bool {
	frames := s.Frames
	delay := sim.EffectiveDelay(s, rate)

	for i, f := range frames {
		sc.removal[i] = s.RemovalTime(i, delay)
		sc.end[i] = sc.removal[i]
		sc.start[i] = sc.end[i] - float64(f.Size)/rate
	}

	// Walk backward so every frame sees its successor's final window. An
	// overlap pushes the earlier frame back to end where the later one
	// starts; a gap pulls the later frame's start back so the channel never
	// idles between consecutive frames.
	for i := len(frames) - 1; i > 0; i-- {
		if sc.start[i] < sc.end[i-1] {
			sc.end[i-1] = sc.start[i]
			sc.start[i-1] = sc.end[i-1] - float64(frames[i-1].Size)/rate
		} else {
			sc.start[i] = sc.end[i-1]
		}
	}

	return sc.start[0] >= 0
}

// timeline emits signed deltas in event order into sc.timeline.
//
// removeNext points at the next frame due to leave the buffer. Removals whose
// instant precedes a frame's arrival start fire before that frame. A frame
// still arriving at the pending removal is split once: the bits received by
// that instant, the removal, then the rest of the frame. Any later removals
// the window spans fire ahead of the next frame.
func (sim *Simulator) timeline(s *Schedule, rate float64, sc *scratch) {
	frames := s.Frames
	tl := sc.timeline
	removeNext := 0

	for i, f := range frames {
		start, end := sc.start[i], sc.end[i]

		for removeNext < i && start >= sc.removal[removeNext] {
			tl = append(tl, -frames[removeNext].Size)
			removeNext++
		}

		if removeNext >= i || end <= sc.removal[removeNext] {
			tl = append(tl, f.Size)
			continue
		}

		// Half-bit ties round to even.
		received := int64(math.RoundToEven((sc.removal[removeNext] - start) * rate))
		received = min(max(received, 0), f.Size)
		tl = append(tl, received, -frames[removeNext].Size, f.Size-received)
		removeNext++
	}

	sc.timeline = tl
}

// peak returns the maximum running sum of the timeline.
func peak(timeline []int64) int64 {
	var sum, best int64
	for _, delta := range timeline {
		sum += delta
		if sum > best {
			best = sum
		}
	}
	return best
}
