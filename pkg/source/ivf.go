package source

import (
	"errors"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
)

// ReadIVF reads frame sizes from an IVF container.
//
// The frame rate is the header timebase (denominator/numerator) divided by
// the timestamp step between the first two frames, so files written with a
// millisecond timebase still report frames per second.
func ReadIVF(r io.Reader) (*FrameLog, error) {
	reader, header, err := ivfreader.NewWith(r)
	if err != nil {
		return nil, fmt.Errorf("ivf header: %w", err)
	}

	log := &FrameLog{Format: "ivf"}
	var timestamps []uint64
	for {
		_, frameHeader, err := reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ivf frame %d: %w", len(log.Sizes), err)
		}
		if frameHeader.FrameSize == 0 {
			continue
		}
		log.Sizes = append(log.Sizes, int64(frameHeader.FrameSize)*8)
		if len(timestamps) < 2 {
			timestamps = append(timestamps, frameHeader.Timestamp)
		}
	}

	if len(log.Sizes) == 0 {
		return nil, ErrNoFrames
	}
	log.FPS = ivfFrameRate(header, timestamps)
	return log, nil
}

func ivfFrameRate(header *ivfreader.IVFFileHeader, timestamps []uint64) float64 {
	if header.TimebaseNumerator == 0 || header.TimebaseDenominator == 0 {
		return 0
	}
	rate := float64(header.TimebaseDenominator) / float64(header.TimebaseNumerator)
	if len(timestamps) == 2 && timestamps[1] > timestamps[0] {
		rate /= float64(timestamps[1] - timestamps[0])
	}
	return rate
}
