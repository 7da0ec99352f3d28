package hrd

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrames is returned when a schedule is built from an empty frame list.
	ErrNoFrames = errors.New("schedule has no frames")
	// ErrInvalidFPS is returned when the frame rate is not positive.
	ErrInvalidFPS = errors.New("frame rate must be positive")
	// ErrInvalidFrameSize is returned when a frame size is not positive.
	ErrInvalidFrameSize = errors.New("frame size must be positive")
	// ErrInvalidDelay is returned when the initial delay is negative.
	ErrInvalidDelay = errors.New("initial delay must not be negative")
)

// DefaultDelay is the initial buffering delay in seconds used when the caller
// does not supply one.
const DefaultDelay = 5.0

// Frame is a single compressed picture in decode order.
type Frame struct {
	// Index is the decode-order position of the frame, starting at 0.
	Index int

	// Size is the coded size of the frame in bits.
	Size int64
}

// Schedule is the input to the simulator: frames in decode order, the frame
// rate that spaces their removal, and the initial buffering delay.
//
// A Schedule is read-only once built and may be shared between goroutines.
type Schedule struct {
	// Frames holds every frame in decode order. Never empty.
	Frames []Frame

	// FPS is the constant frame rate in frames per second.
	FPS float64

	// Delay is the initial buffering delay in seconds: the removal time of
	// frame 0.
	Delay float64
}

// NewSchedule validates sizes, fps and delay and builds a Schedule.
// Sizes are frame sizes in bits, in decode order.
func NewSchedule(sizes []int64, fps, delay float64) (*Schedule, error) {
	if len(sizes) == 0 {
		return nil, ErrNoFrames
	}
	if !(fps > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFPS, fps)
	}
	if delay < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDelay, delay)
	}

	frames := make([]Frame, len(sizes))
	for i, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("%w: frame %d has size %d", ErrInvalidFrameSize, i, size)
		}
		frames[i] = Frame{Index: i, Size: size}
	}

	return &Schedule{Frames: frames, FPS: fps, Delay: delay}, nil
}

// WithDelay returns a copy of the schedule sharing the same frames but with a
// different initial delay.
func (s *Schedule) WithDelay(delay float64) *Schedule {
	return &Schedule{Frames: s.Frames, FPS: s.FPS, Delay: delay}
}

// Len returns the number of frames.
func (s *Schedule) Len() int {
	return len(s.Frames)
}

// RemovalTime returns the instant frame n leaves the buffer when the first
// frame is removed at delay.
func (s *Schedule) RemovalTime(n int, delay float64) float64 {
	return delay + float64(n)/s.FPS
}

// TotalBits returns the sum of all frame sizes.
func (s *Schedule) TotalBits() int64 {
	var total int64
	for _, f := range s.Frames {
		total += f.Size
	}
	return total
}

// AverageFrameSize returns the mean frame size in bits.
func (s *Schedule) AverageFrameSize() float64 {
	return float64(s.TotalBits()) / float64(len(s.Frames))
}

// MaxFrameSize returns the largest frame size in bits.
func (s *Schedule) MaxFrameSize() int64 {
	var largest int64
	for _, f := range s.Frames {
		if f.Size > largest {
			largest = f.Size
		}
	}
	return largest
}

// Duration returns the playback duration of the schedule in seconds.
func (s *Schedule) Duration() float64 {
	return float64(len(s.Frames)) / s.FPS
}

// AverageRate returns the sustained bitrate average_frame_size * fps, the
// lowest rate that can carry the stream without unbounded buffering.
func (s *Schedule) AverageRate() float64 {
	return s.AverageFrameSize() * s.FPS
}

// PeakRate returns max_frame_size * fps, a rate that delivers the largest
// frame within one frame interval.
func (s *Schedule) PeakRate() float64 {
	return float64(s.MaxFrameSize()) * s.FPS
}
