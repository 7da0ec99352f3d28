package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os/exec"
	"strconv"
)

// ProberConfig configures the ffprobe runner.
type ProberConfig struct {
	// Binary is the ffprobe executable name or path.
	// Default: "ffprobe"
	Binary string
}

// DefaultProberConfig returns the default ffprobe configuration.
func DefaultProberConfig() ProberConfig {
	return ProberConfig{
		Binary: "ffprobe",
	}
}

// runFunc executes a command and returns its standard output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Prober extracts packet sizes of the first video stream with ffprobe.
type Prober struct {
	config ProberConfig
	run    runFunc
}

// NewProber creates a prober with the given configuration.
func NewProber(config ProberConfig) *Prober {
	if config.Binary == "" {
		config.Binary = "ffprobe"
	}
	return &Prober{config: config, run: execRun}
}

// probeArgs asks for the average frame rate of v:0 and the size of every
// packet, as JSON.
func probeArgs(path string) []string {
	return []string{
		"-loglevel", "quiet",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate:packet=size",
		"-print_format", "json",
		path,
	}
}

// Probe runs ffprobe on path. Packet sizes are converted from bytes to bits;
// the frame rate is the stream's avg_frame_rate.
func (p *Prober) Probe(ctx context.Context, path string) (*FrameLog, error) {
	out, err := p.run(ctx, p.config.Binary, probeArgs(path)...)
	if err != nil {
		return nil, err
	}
	log, err := ParseProbeJSON(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return log, nil
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// probeOutput is the subset of ffprobe's JSON output we request.
type probeOutput struct {
	Streams []struct {
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Packets []struct {
		Size string `json:"size"`
	} `json:"packets"`
}

// ParseProbeJSON decodes ffprobe JSON output as produced by Probe.
func ParseProbeJSON(r io.Reader) (*FrameLog, error) {
	var data probeOutput
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(data.Packets) == 0 {
		return nil, ErrNoFrames
	}

	log := &FrameLog{
		Sizes:  make([]int64, len(data.Packets)),
		Format: "ffprobe",
	}
	for i, pkt := range data.Packets {
		n, err := strconv.ParseInt(pkt.Size, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("packet %d: invalid size %q", i, pkt.Size)
		}
		log.Sizes[i] = n * 8
	}

	if len(data.Streams) > 0 {
		fps, err := parseRational(data.Streams[0].AvgFrameRate)
		if err != nil {
			return nil, fmt.Errorf("avg_frame_rate: %w", err)
		}
		log.FPS = fps
	}
	return log, nil
}

// parseRational parses "30000/1001" or "25". ffprobe reports "0/0" for an
// unknown rate, which maps to 0.
func parseRational(s string) (float64, error) {
	if s == "" || s == "0/0" {
		return 0, nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("invalid rational %q", s)
	}
	f, _ := r.Float64()
	return f, nil
}
