package capture

import (
	"sync"
	"time"

	"github.com/martinpickett/Plex-Tools/pkg/source"
)

// streamState is the recording of one remote video stream.
//
// The reader goroutine adds packets while callers may snapshot the log at
// any time, so every field behind mu is accessed under it.
type streamState struct {
	ssrc      uint32
	clockRate uint32

	mu         sync.Mutex
	frames     source.FrameAssembler
	packets    int
	lastPacket time.Time
	ended      bool
}

func newStreamState(ssrc, clockRate uint32, now time.Time) *streamState {
	if clockRate == 0 {
		clockRate = source.VideoClockRate
	}
	return &streamState{ssrc: ssrc, clockRate: clockRate, lastPacket: now}
}

// add records one packet's payload.
func (s *streamState) add(timestamp uint32, payload int, now time.Time) {
	s.mu.Lock()
	s.frames.Add(timestamp, payload)
	s.packets++
	s.lastPacket = now
	s.mu.Unlock()
}

// snapshot returns the frames recorded so far.
func (s *streamState) snapshot() (*source.FrameLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames.FrameLog("capture", s.clockRate)
}

// end marks the stream finished and reports whether it was still open.
func (s *streamState) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	return true
}

// Stats is a summary of one recorded stream.
type Stats struct {
	SSRC       uint32
	ClockRate  uint32
	Packets    int
	Frames     int
	LastPacket time.Time
	Ended      bool
}

func (s *streamState) stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		SSRC:       s.ssrc,
		ClockRate:  s.clockRate,
		Packets:    s.packets,
		Frames:     s.frames.Frames(),
		LastPacket: s.lastPacket,
		Ended:      s.ended,
	}
}
