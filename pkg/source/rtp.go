package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// VideoClockRate is the RTP clock rate of every common video payload format.
const VideoClockRate = 90000

// FrameAssembler groups RTP payloads into frames by timestamp. Packets must
// be added in decode order. It is not safe for concurrent use.
type FrameAssembler struct {
	sizes   []int64
	steps   []uint32
	current int64
	lastTS  uint32
	started bool
}

// Add counts payload bytes of one packet carrying the given RTP timestamp.
// A timestamp change closes the previous frame.
func (a *FrameAssembler) Add(timestamp uint32, payload int) {
	if a.started && timestamp != a.lastTS {
		a.sizes = append(a.sizes, a.current)
		a.steps = append(a.steps, timestamp-a.lastTS)
		a.current = 0
	}
	a.started = true
	a.lastTS = timestamp
	a.current += int64(payload) * 8
}

// Frames returns the number of frames seen so far, including the open one.
func (a *FrameAssembler) Frames() int {
	if !a.started {
		return 0
	}
	return len(a.sizes) + 1
}

// FrameLog returns the frames assembled so far, with the open frame closed.
// Frames without payload, such as padding-only packets, are dropped. The
// frame rate is clockRate over the median timestamp step.
func (a *FrameAssembler) FrameLog(format string, clockRate uint32) (*FrameLog, error) {
	log := &FrameLog{Format: format}
	all := a.sizes
	if a.started {
		all = append(all[:len(all):len(all)], a.current)
	}
	for _, size := range all {
		if size > 0 {
			log.Sizes = append(log.Sizes, size)
		}
	}
	if len(log.Sizes) == 0 {
		return nil, ErrNoFrames
	}
	if step := medianStep(a.steps); step > 0 && clockRate > 0 {
		log.FPS = float64(clockRate) / float64(step)
	}
	return log, nil
}

// ReadRTP reads a capture of RTP packets, each preceded by its length as a
// big-endian uint16, and sums payload sizes per RTP timestamp. Packets are
// taken in capture order, which is decode order for a single video stream.
// RTCP packets multiplexed into the capture are not counted.
//
// The frame rate is the clock rate divided by the median timestamp step. A
// zero clockRate is derived from the first and last RTCP sender reports,
// falling back to VideoClockRate when the capture has fewer than two.
func ReadRTP(r io.Reader, clockRate uint32) (*FrameLog, error) {
	var (
		lenBuf  [2]byte
		pkt     rtp.Packet
		frames  FrameAssembler
		reports []*rtcp.SenderReport
	)

	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("rtp packet %d length: %w", frames.Frames(), err)
		}
		buf := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("rtp packet body: %w", err)
		}
		if isRTCP(buf) {
			pkts, err := rtcp.Unmarshal(buf)
			if err != nil {
				return nil, fmt.Errorf("rtcp unmarshal: %w", err)
			}
			for _, p := range pkts {
				if sr, ok := p.(*rtcp.SenderReport); ok {
					reports = append(reports, sr)
				}
			}
			continue
		}
		if err := pkt.Unmarshal(buf); err != nil {
			return nil, fmt.Errorf("rtp unmarshal: %w", err)
		}
		frames.Add(pkt.Timestamp, len(pkt.Payload))
	}

	if clockRate == 0 {
		clockRate = senderReportClock(reports)
	}
	return frames.FrameLog("rtp", clockRate)
}

// isRTCP reports whether a muxed packet is RTCP: packet types 192-223
// collide with no dynamic or static RTP payload type in use.
func isRTCP(buf []byte) bool {
	return len(buf) >= 2 && buf[1] >= 192 && buf[1] <= 223
}

// senderReportClock estimates the RTP clock rate from the NTP and RTP
// timestamps of the first and last sender reports.
func senderReportClock(reports []*rtcp.SenderReport) uint32 {
	if len(reports) < 2 {
		return VideoClockRate
	}
	first, last := reports[0], reports[len(reports)-1]
	elapsed := ntpSeconds(last.NTPTime) - ntpSeconds(first.NTPTime)
	ticks := last.RTPTime - first.RTPTime
	if elapsed <= 0 || ticks == 0 {
		return VideoClockRate
	}
	return uint32(math.Round(float64(ticks) / elapsed))
}

// ntpSeconds converts a 64-bit NTP timestamp to seconds.
func ntpSeconds(ntp uint64) float64 {
	return float64(ntp>>32) + float64(ntp&0xFFFFFFFF)/(1<<32)
}

func medianStep(steps []uint32) uint32 {
	if len(steps) == 0 {
		return 0
	}
	sorted := append([]uint32(nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}
