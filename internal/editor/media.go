package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nfnt/resize"

	"github.com/heimdex/trimmer/internal/engine"
	"github.com/heimdex/trimmer/internal/export"
	"github.com/heimdex/trimmer/internal/slider"
)

// GenerateThumbnails extracts frames from the selected asset at the
// configured rate, scales them to the thumbnail height and stores them on
// the session.
func (s *Session) GenerateThumbnails(ctx context.Context) ([]Thumbnail, error) {
	asset, duration, ferr := s.selected()
	if ferr != nil {
		return nil, s.fail(ferr)
	}
	if ferr := s.engineReady(); ferr != nil {
		return nil, s.fail(ferr)
	}
	if duration <= 0 {
		return nil, s.fail(newError(KindThumbnails, ErrNoDuration))
	}

	fps := s.opts.ThumbnailFPS
	count := int(math.Round(duration * fps))
	if count < 1 {
		count = 1
	}

	name := export.EngineName(asset.Name)
	args, err := engine.ThumbnailArgs(name, fps)
	if err != nil {
		return nil, s.fail(newError(KindThumbnails, err))
	}

	s.setGenerating(true)
	defer s.setGenerating(false)

	start := time.Now()
	var frames [][]byte
	err = s.engine.Do(ctx, func(ops engine.Ops) error {
		defer func() {
			ops.Remove(ctx, name)
			// ffmpeg may emit one frame past the rounded count.
			for i := 1; i <= count+1; i++ {
				ops.Remove(ctx, engine.ThumbnailName(i))
			}
		}()

		if err := writeAsset(ctx, ops, name, asset.Path); err != nil {
			return err
		}
		if err := ops.Exec(ctx, args...); err != nil {
			return err
		}
		for i := 1; i <= count; i++ {
			data, err := ops.ReadFile(ctx, engine.ThumbnailName(i))
			if err != nil {
				if i > 1 && errors.Is(err, engine.ErrFileNotFound) {
					s.log().Warn("fewer frames than expected", "expected", count, "got", i-1)
					break
				}
				return err
			}
			frames = append(frames, data)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(classify(KindThumbnails, err))
	}
	if len(frames) == 0 {
		return nil, s.fail(newError(KindThumbnails, ErrNoThumbnails))
	}

	thumbs := make([]Thumbnail, 0, len(frames))
	for i, data := range frames {
		scaled, err := scaleFrame(data, s.opts.ThumbnailHeight)
		if err != nil {
			return nil, s.fail(newError(KindThumbnails, fmt.Errorf("frame %d: %w", i+1, err)))
		}
		thumbs = append(thumbs, Thumbnail{
			Index: i + 1,
			Time:  float64(i) / fps,
			Data:  scaled,
		})
	}

	s.mu.Lock()
	s.thumbs = thumbs
	s.mu.Unlock()

	s.log().Info("thumbnails generated", "count", len(thumbs), "duration_ms", time.Since(start).Milliseconds())
	return append([]Thumbnail(nil), thumbs...), nil
}

func (s *Session) setGenerating(v bool) {
	s.mu.Lock()
	s.generating = v
	s.mu.Unlock()
}

// Export trims the selected asset to the current trim range.
func (s *Session) Export(ctx context.Context) (*Clip, error) {
	return s.ExportRange(ctx, s.Trim())
}

// ExportRange trims the selected asset to r. The output is named after the
// source with its extension replaced by -trimmed.mp4.
func (s *Session) ExportRange(ctx context.Context, r slider.Range) (*Clip, error) {
	asset, _, ferr := s.selected()
	if ferr != nil {
		return nil, s.fail(ferr)
	}
	if ferr := s.engineReady(); ferr != nil {
		return nil, s.fail(ferr)
	}
	if !(r.End > r.Start) || r.Start < 0 {
		return nil, s.fail(newError(KindExport, fmt.Errorf("%w: %v-%v", ErrInvalidTrim, r.Start, r.End)))
	}

	input := export.EngineName(asset.Name)
	output := export.TrimmedName(input)
	args, err := engine.TrimArgs(engine.TrimSpec{
		Input:  input,
		Output: output,
		Start:  r.Start,
		End:    r.End,
		Mode:   s.opts.TrimMode,
	})
	if err != nil {
		return nil, s.fail(newError(KindExport, err))
	}

	start := time.Now()
	var data []byte
	err = s.engine.Do(ctx, func(ops engine.Ops) error {
		defer func() {
			ops.Remove(ctx, input)
			ops.Remove(ctx, output)
		}()

		if err := writeAsset(ctx, ops, input, asset.Path); err != nil {
			return err
		}
		if err := ops.Exec(ctx, args...); err != nil {
			return err
		}
		var err error
		data, err = ops.ReadFile(ctx, output)
		return err
	})
	if err != nil {
		return nil, s.fail(classify(KindExport, err))
	}

	s.log().Info("export finished",
		"output", output,
		"start", r.Start,
		"end", r.End,
		"size", humanize.Bytes(uint64(len(data))),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Clip{
		Name:        output,
		ContentType: export.ContentType,
		Range:       r,
		Data:        data,
	}, nil
}

// classify reports a not-ready engine as the load error and everything else
// as kind.
func classify(kind Kind, err error) *Error {
	if errors.Is(err, engine.ErrNotReady) {
		return newError(KindEngineLoad, err)
	}
	return newError(kind, err)
}

func writeAsset(ctx context.Context, ops engine.Ops, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open asset: %w", err)
	}
	defer f.Close()
	return ops.WriteFile(ctx, name, f)
}

// scaleFrame downsizes a PNG frame to height, keeping its aspect ratio.
// Frames already no taller than height are returned unchanged.
func scaleFrame(data []byte, height int) ([]byte, error) {
	if height <= 0 {
		return data, nil
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot decode frame: %w", err)
	}
	if img.Bounds().Dy() <= height {
		return data, nil
	}

	scaled := resize.Resize(0, uint(height), img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("cannot encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
