package capture

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"

	"github.com/martinpickett/Plex-Tools/internal/platform/clock"
	"github.com/martinpickett/Plex-Tools/pkg/source"
)

// DefaultIdleTimeout is how long a stream may go without packets before its
// recording is ended.
const DefaultIdleTimeout = 5 * time.Second

// minIdleCheckInterval bounds how often idle streams are checked.
const minIdleCheckInterval = 10 * time.Millisecond

// ErrUnknownStream is returned for an SSRC that was never recorded.
var ErrUnknownStream = errors.New("capture: unknown stream")

// Recorder is a Pion interceptor that records the frame sizes of every
// remote video stream it is bound to. Recordings outlive their streams and
// can be read at any time, including while packets are still arriving.
type Recorder struct {
	interceptor.NoOp // Embed for interface compliance

	streams sync.Map // SSRC (uint32) -> *streamState

	clock       clock.Clock
	idleTimeout time.Duration
	onStreamEnd func(ssrc uint32, log *source.FrameLog)

	// Lifecycle
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	startOnce sync.Once // Ensures idle loop starts only once
}

// RecorderOption is a functional option for configuring Recorder.
type RecorderOption func(*Recorder)

// WithIdleTimeout ends a stream's recording after d without packets.
// Zero disables idle detection.
// Default: DefaultIdleTimeout
func WithIdleTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.idleTimeout = d
	}
}

// WithOnStreamEnd sets a callback invoked once per stream, when it is
// unbound or goes idle, with the recorded frames. Streams that recorded no
// frames are not reported.
func WithOnStreamEnd(fn func(ssrc uint32, log *source.FrameLog)) RecorderOption {
	return func(r *Recorder) {
		r.onStreamEnd = fn
	}
}

// WithClock sets the clock used for idle detection.
func WithClock(c clock.Clock) RecorderOption {
	return func(r *Recorder) {
		r.clock = c
	}
}

// NewRecorder creates a new frame size recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		clock:       clock.System{},
		idleTimeout: DefaultIdleTimeout,
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close stops idle detection. Recordings remain readable.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	r.wg.Wait()
	return nil
}

// BindRemoteStream is called by Pion when a new remote stream is detected.
// Video streams are wrapped to observe packets; others pass through.
func (r *Recorder) BindRemoteStream(info *interceptor.StreamInfo, reader interceptor.RTPReader) interceptor.RTPReader {
	if !strings.HasPrefix(strings.ToLower(info.MimeType), "video/") {
		return reader
	}

	if r.idleTimeout > 0 {
		r.startOnce.Do(func() {
			r.wg.Add(1)
			go r.idleLoop()
		})
	}

	state := newStreamState(info.SSRC, info.ClockRate, r.clock.Now())
	r.streams.Store(info.SSRC, state)

	return interceptor.RTPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, a, err := reader.Read(b, a)
		if err == nil && n > 0 {
			r.processRTP(b[:n], state)
		}
		return n, a, err
	})
}

// UnbindRemoteStream is called by Pion when a remote stream is removed.
func (r *Recorder) UnbindRemoteStream(info *interceptor.StreamInfo) {
	if v, ok := r.streams.Load(info.SSRC); ok {
		r.endStream(v.(*streamState))
	}
}

// processRTP adds the payload of one packet to its stream.
func (r *Recorder) processRTP(raw []byte, state *streamState) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(raw); err != nil {
		return // Invalid RTP, skip
	}
	state.add(pkt.Timestamp, len(pkt.Payload), r.clock.Now())
}

// FrameLog returns the frames recorded for ssrc so far.
func (r *Recorder) FrameLog(ssrc uint32) (*source.FrameLog, error) {
	v, ok := r.streams.Load(ssrc)
	if !ok {
		return nil, ErrUnknownStream
	}
	return v.(*streamState).snapshot()
}

// Stats returns a summary of every recorded stream, ordered by SSRC.
func (r *Recorder) Stats() []Stats {
	var out []Stats
	r.streams.Range(func(_, value any) bool {
		out = append(out, value.(*streamState).stats())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SSRC < out[j].SSRC })
	return out
}

func (r *Recorder) endStream(state *streamState) {
	if !state.end() || r.onStreamEnd == nil {
		return
	}
	if log, err := state.snapshot(); err == nil {
		r.onStreamEnd(state.ssrc, log)
	}
}

// idleLoop periodically ends streams that stopped sending.
func (r *Recorder) idleLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.idleCheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-r.closed:
			return
		case <-ticker.C:
			r.endIdleStreams(r.clock.Now())
		}
	}
}

// idleCheckInterval is half the idle timeout, but never below
// minIdleCheckInterval.
func (r *Recorder) idleCheckInterval() time.Duration {
	return max(r.idleTimeout/2, minIdleCheckInterval)
}

// endIdleStreams ends every open stream without packets for longer than the
// idle timeout.
func (r *Recorder) endIdleStreams(now time.Time) {
	r.streams.Range(func(_, value any) bool {
		state := value.(*streamState)
		st := state.stats()
		if !st.Ended && now.Sub(st.LastPacket) > r.idleTimeout {
			r.endStream(state)
		}
		return true // Continue iteration
	})
}
