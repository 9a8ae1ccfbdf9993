package engine

import (
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ThumbnailPattern is the output pattern frame extraction writes to; frames
// are numbered from 1.
const ThumbnailPattern = "output%d.png"

// DefaultThumbnailFPS extracts one frame per second.
const DefaultThumbnailFPS = 1.0

// Re-encode defaults.
const (
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultCRF        = 23
)

// TrimMode selects how a trim is produced.
type TrimMode string

const (
	// TrimCopy cuts without re-encoding; fast, cut points snap to keyframes.
	TrimCopy TrimMode = "copy"
	// TrimReencode re-encodes for frame-accurate cut points.
	TrimReencode TrimMode = "reencode"
)

// ParseTrimMode accepts "copy" or "reencode"; empty means copy.
func ParseTrimMode(s string) (TrimMode, error) {
	switch TrimMode(s) {
	case "", TrimCopy:
		return TrimCopy, nil
	case TrimReencode:
		return TrimReencode, nil
	}
	return "", fmt.Errorf("unknown trim mode %q", s)
}

// ThumbnailName returns the virtual file name of frame i.
func ThumbnailName(i int) string {
	return fmt.Sprintf(ThumbnailPattern, i)
}

// ThumbnailArgs builds the frame extraction command for input.
func ThumbnailArgs(input string, fps float64) ([]string, error) {
	if err := ValidateName(input); err != nil {
		return nil, err
	}
	if fps <= 0 {
		fps = DefaultThumbnailFPS
	}
	return ffmpeg.Input(input).
		Output(ThumbnailPattern, ffmpeg.KwArgs{"vf": "fps=" + formatSeconds(fps)}).
		GetArgs(), nil
}

// TrimSpec describes one trim command.
type TrimSpec struct {
	Input      string
	Output     string
	Start      float64
	End        float64
	Mode       TrimMode
	VideoCodec string
	AudioCodec string
	CRF        int
}

// TrimArgs builds the trim command for spec.
func TrimArgs(spec TrimSpec) ([]string, error) {
	if err := ValidateName(spec.Input); err != nil {
		return nil, err
	}
	if err := ValidateName(spec.Output); err != nil {
		return nil, err
	}
	if spec.Input == spec.Output {
		return nil, fmt.Errorf("output %q would overwrite the input", spec.Output)
	}
	if spec.Start < 0 {
		return nil, fmt.Errorf("invalid trim start %v", spec.Start)
	}
	if spec.End <= spec.Start {
		return nil, fmt.Errorf("invalid trim range: end %v must be after start %v", spec.End, spec.Start)
	}

	kwargs := ffmpeg.KwArgs{
		"ss": formatSeconds(spec.Start),
		"to": formatSeconds(spec.End),
	}

	switch spec.Mode {
	case "", TrimCopy:
		kwargs["c"] = "copy"
	case TrimReencode:
		vcodec := spec.VideoCodec
		if vcodec == "" {
			vcodec = DefaultVideoCodec
		}
		acodec := spec.AudioCodec
		if acodec == "" {
			acodec = DefaultAudioCodec
		}
		crf := spec.CRF
		if crf == 0 {
			crf = DefaultCRF
		}
		kwargs["c:v"] = vcodec
		kwargs["c:a"] = acodec
		kwargs["crf"] = strconv.Itoa(crf)
	default:
		return nil, fmt.Errorf("unknown trim mode %q", spec.Mode)
	}

	return ffmpeg.Input(spec.Input).Output(spec.Output, kwargs).GetArgs(), nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
