package capture

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinpickett/Plex-Tools/internal/platform/clock"
	"github.com/martinpickett/Plex-Tools/pkg/source"
)

// makeRTP creates a marshaled RTP packet with the given payload size.
func makeRTP(t *testing.T, ssrc uint32, seq uint16, ts uint32, payload int) []byte {
	t.Helper()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
		},
		Payload: make([]byte, payload),
	}
	data, err := pkt.Marshal()
	require.NoError(t, err)
	return data
}

// mockRTPReader is a test reader that returns pre-defined packets, then EOF.
type mockRTPReader struct {
	packets [][]byte
	index   int
}

func (m *mockRTPReader) Read(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
	if m.index >= len(m.packets) {
		return 0, nil, io.EOF
	}
	pkt := m.packets[m.index]
	m.index++
	n := copy(b, pkt)
	return n, a, nil
}

func drain(t *testing.T, reader interceptor.RTPReader) {
	t.Helper()
	buf := make([]byte, 1500)
	for {
		if _, _, err := reader.Read(buf, nil); err != nil {
			require.ErrorIs(t, err, io.EOF)
			return
		}
	}
}

func videoInfo(ssrc uint32) *interceptor.StreamInfo {
	return &interceptor.StreamInfo{SSRC: ssrc, MimeType: "video/H264", ClockRate: 90000}
}

// =============================================================================
// Recorder Tests
// =============================================================================

func TestNewRecorder_Defaults(t *testing.T) {
	r := NewRecorder()
	assert.Equal(t, DefaultIdleTimeout, r.idleTimeout)
	assert.IsType(t, clock.System{}, r.clock)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "Close is idempotent")
}

func TestRecorder_RecordsFramesPerTimestamp(t *testing.T) {
	r := NewRecorder(WithIdleTimeout(0))
	defer r.Close()

	reader := r.BindRemoteStream(videoInfo(1), &mockRTPReader{packets: [][]byte{
		makeRTP(t, 1, 1, 0, 1000),
		makeRTP(t, 1, 2, 0, 500),
		makeRTP(t, 1, 3, 3750, 200),
		makeRTP(t, 1, 4, 7500, 300),
	}})
	drain(t, reader)

	log, err := r.FrameLog(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{12000, 1600, 2400}, log.Sizes)
	assert.InDelta(t, 24.0, log.FPS, 1e-9)
	assert.Equal(t, "capture", log.Format)

	s, err := log.Schedule(0, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	stats := r.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 4, stats[0].Packets)
	assert.Equal(t, 3, stats[0].Frames)
	assert.False(t, stats[0].Ended)
}

func TestRecorder_IgnoresAudioAndInvalidPackets(t *testing.T) {
	r := NewRecorder(WithIdleTimeout(0))
	defer r.Close()

	audio := &mockRTPReader{}
	got := r.BindRemoteStream(&interceptor.StreamInfo{SSRC: 2, MimeType: "audio/opus", ClockRate: 48000}, audio)
	assert.Same(t, audio, got, "audio streams pass through unwrapped")

	_, err := r.FrameLog(2)
	assert.ErrorIs(t, err, ErrUnknownStream)

	reader := r.BindRemoteStream(videoInfo(3), &mockRTPReader{packets: [][]byte{
		{0x80}, // truncated header
	}})
	drain(t, reader)

	_, err = r.FrameLog(3)
	assert.ErrorIs(t, err, source.ErrNoFrames)
}

func TestRecorder_UnbindReportsOnce(t *testing.T) {
	var (
		mu    sync.Mutex
		ended []uint32
		sizes []int64
	)
	r := NewRecorder(WithIdleTimeout(0), WithOnStreamEnd(func(ssrc uint32, log *source.FrameLog) {
		mu.Lock()
		defer mu.Unlock()
		ended = append(ended, ssrc)
		sizes = log.Sizes
	}))
	defer r.Close()

	info := videoInfo(7)
	drain(t, r.BindRemoteStream(info, &mockRTPReader{packets: [][]byte{
		makeRTP(t, 7, 1, 0, 100),
		makeRTP(t, 7, 2, 3000, 100),
	}}))

	r.UnbindRemoteStream(info)
	r.UnbindRemoteStream(info)

	assert.Equal(t, []uint32{7}, ended)
	assert.Equal(t, []int64{800, 800}, sizes)

	log, err := r.FrameLog(7)
	require.NoError(t, err, "recording survives unbind")
	assert.Len(t, log.Sizes, 2)
	assert.True(t, r.Stats()[0].Ended)
}

func TestRecorder_EndIdleStreams(t *testing.T) {
	clk := clock.NewMock(time.Time{})
	var ended []uint32
	r := NewRecorder(
		WithClock(clk),
		WithIdleTimeout(time.Hour), // loop never fires during the test
		WithOnStreamEnd(func(ssrc uint32, _ *source.FrameLog) { ended = append(ended, ssrc) }),
	)
	defer r.Close()

	drain(t, r.BindRemoteStream(videoInfo(1), &mockRTPReader{packets: [][]byte{makeRTP(t, 1, 1, 0, 100)}}))
	clk.Advance(30 * time.Minute)
	drain(t, r.BindRemoteStream(videoInfo(2), &mockRTPReader{packets: [][]byte{makeRTP(t, 2, 1, 0, 100)}}))

	clk.Advance(31 * time.Minute)
	r.endIdleStreams(clk.Now())
	assert.Equal(t, []uint32{1}, ended, "only the stream idle past the timeout ends")

	clk.Advance(time.Hour)
	r.endIdleStreams(clk.Now())
	assert.Equal(t, []uint32{1, 2}, ended)
}

func TestRecorder_TinyIdleTimeout(t *testing.T) {
	r := NewRecorder(WithIdleTimeout(time.Nanosecond))
	defer r.Close()
	assert.Equal(t, minIdleCheckInterval, r.idleCheckInterval())

	drain(t, r.BindRemoteStream(videoInfo(1), &mockRTPReader{packets: [][]byte{makeRTP(t, 1, 1, 0, 100)}}))

	// The idle loop keeps running and ends the stream on its next check
	require.Eventually(t, func() bool {
		stats := r.Stats()
		return len(stats) == 1 && stats[0].Ended
	}, time.Second, 5*time.Millisecond)
}

func TestRecorder_IdleCheckInterval(t *testing.T) {
	assert.Equal(t, 2500*time.Millisecond, NewRecorder().idleCheckInterval())
	assert.Equal(t, minIdleCheckInterval, NewRecorder(WithIdleTimeout(15*time.Millisecond)).idleCheckInterval())
}

func TestRecorder_ConcurrentStreams(t *testing.T) {
	r := NewRecorder(WithIdleTimeout(0))
	defer r.Close()

	const streams = 8
	var wg sync.WaitGroup
	for s := uint32(1); s <= streams; s++ {
		packets := make([][]byte, 0, 60)
		for f := 0; f < 60; f++ {
			packets = append(packets, makeRTP(t, s, uint16(f), uint32(f)*3000, 100*int(s)))
		}
		reader := r.BindRemoteStream(videoInfo(s), &mockRTPReader{packets: packets})

		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 1500)
			for {
				if _, _, err := reader.Read(buf, nil); err != nil {
					return
				}
				_ = r.Stats()
			}
		}()
	}
	wg.Wait()

	for s := uint32(1); s <= streams; s++ {
		log, err := r.FrameLog(s)
		require.NoError(t, err)
		assert.Len(t, log.Sizes, 60)
		assert.Equal(t, int64(800*s), log.Sizes[0])
		assert.InDelta(t, 30.0, log.FPS, 1e-9)
	}
}

// =============================================================================
// Factory Tests
// =============================================================================

func TestRecorderFactory(t *testing.T) {
	var called bool
	f, err := NewRecorderFactory(
		WithFactoryIdleTimeout(time.Minute),
		WithFactoryOnStreamEnd(func(uint32, *source.FrameLog) { called = true }),
	)
	require.NoError(t, err)

	i, err := f.NewInterceptor("pc-1")
	require.NoError(t, err)
	defer i.Close()

	rec, ok := f.Recorder("pc-1")
	require.True(t, ok)
	assert.Same(t, i, interceptor.Interceptor(rec))
	assert.Equal(t, time.Minute, rec.idleTimeout)

	info := videoInfo(9)
	drain(t, i.BindRemoteStream(info, &mockRTPReader{packets: [][]byte{makeRTP(t, 9, 1, 0, 10)}}))
	i.UnbindRemoteStream(info)
	assert.True(t, called)

	_, ok = f.Recorder("pc-2")
	assert.False(t, ok)
}

func TestRecorderFactory_InvalidOption(t *testing.T) {
	_, err := NewRecorderFactory(WithFactoryIdleTimeout(-time.Second))
	assert.Error(t, err)
}
