package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Prober reads media metadata from a file on disk.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFprobe probes files with the ffprobe binary on PATH.
type FFprobe struct{}

func (FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeDuration(out)
}

type probeData struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeDuration(out string) (float64, error) {
	var pd probeData
	if err := json.Unmarshal([]byte(out), &pd); err != nil {
		return 0, fmt.Errorf("cannot parse ffprobe output: %w", err)
	}
	if pd.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}
	d, err := strconv.ParseFloat(pd.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", pd.Format.Duration, err)
	}
	return d, nil
}
