// Package source extracts per-frame sizes and frame rate from media files and
// encoder logs, producing the input of the hrd package.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/martinpickett/Plex-Tools/pkg/hrd"
)

var (
	// ErrNoFrames is returned when a file yields no video frames.
	ErrNoFrames = errors.New("no video frames found")
	// ErrUnknownFPS is returned when a frame log carries no frame rate and the
	// caller did not supply one.
	ErrUnknownFPS = errors.New("frame rate unknown; specify it explicitly")
)

// FrameLog is the raw extraction result: frame sizes in bits in decode order
// and the frame rate, if the format records one.
type FrameLog struct {
	// Sizes are frame sizes in bits, decode order.
	Sizes []int64

	// FPS is the frame rate in frames per second, or 0 when unknown.
	FPS float64

	// Format names the reader that produced the log, e.g. "ffprobe" or "ivf".
	Format string
}

// Schedule converts the log to an hrd.Schedule with the given delay. A
// positive fps overrides the detected frame rate.
func (l *FrameLog) Schedule(fps, delay float64) (*hrd.Schedule, error) {
	if len(l.Sizes) == 0 {
		return nil, ErrNoFrames
	}
	if fps <= 0 {
		fps = l.FPS
	}
	if fps <= 0 {
		return nil, ErrUnknownFPS
	}
	return hrd.NewSchedule(l.Sizes, fps, delay)
}

// Open reads frame sizes from path, choosing the reader by file extension:
//
//	.csv         x265 CSV log
//	.json        saved ffprobe packet output
//	.ivf         IVF container (VP8, VP9, AV1)
//	.h264 .264   raw H.264 Annex-B elementary stream
//	.rtp         length-prefixed RTP capture, optionally with muxed RTCP
//
// Anything else is probed with ffprobe.
func Open(ctx context.Context, path string) (*FrameLog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".csv" || ext == ".json" || ext == ".ivf" || ext == ".h264" || ext == ".264" || ext == ".rtp" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		var log *FrameLog
		switch ext {
		case ".csv":
			log, err = ReadX265CSV(f)
		case ".json":
			log, err = ParseProbeJSON(f)
		case ".ivf":
			log, err = ReadIVF(f)
		case ".h264", ".264":
			log, err = ReadAnnexB(f)
		case ".rtp":
			log, err = ReadRTP(f, 0)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return log, nil
	}

	return NewProber(DefaultProberConfig()).Probe(ctx, path)
}
