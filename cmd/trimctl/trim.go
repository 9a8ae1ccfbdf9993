package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heimdex/trimmer/internal/editor"
	"github.com/heimdex/trimmer/internal/engine"
	"github.com/heimdex/trimmer/internal/export"
	"github.com/heimdex/trimmer/internal/slider"
)

var (
	trimStart  string
	trimEnd    string
	trimOutDir string
	trimMode   string
)

var trimCmd = &cobra.Command{
	Use:   "trim <video>",
	Short: "Cut a video to a start and end time",
	Long: `Cut a video to the given range and write <name>-trimmed.mp4 into the
output directory. Times are seconds (12.5) or [HH:]MM:SS[.f].

Example:
  trimctl trim holiday.mov --start 1:05 --end 1:42.5 --out ./clips`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start, err := parseTimestamp(trimStart)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		end := math.Inf(1)
		if trimEnd != "" {
			if end, err = parseTimestamp(trimEnd); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
		}
		mode, err := engine.ParseTrimMode(trimMode)
		if err != nil {
			return err
		}

		eng, err := loadEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		return runTrim(ctx, eng, engine.FFprobe{}, trimRequest{
			Source: args[0],
			OutDir: trimOutDir,
			Range:  slider.Range{Start: start, End: end},
			Mode:   mode,
		}, cmd.OutOrStdout())
	},
}

func init() {
	trimCmd.Flags().StringVar(&trimStart, "start", "0", "start time")
	trimCmd.Flags().StringVar(&trimEnd, "end", "", "end time (default: end of video)")
	trimCmd.Flags().StringVarP(&trimOutDir, "out", "o", ".", "output directory")
	trimCmd.Flags().StringVar(&trimMode, "mode", string(engine.TrimCopy), "copy (keyframe cuts) or reencode (exact cuts)")
}

type trimRequest struct {
	Source string
	OutDir string
	Range  slider.Range
	Mode   engine.TrimMode
}

// runTrim exports req.Range of the source through an editor session, so the
// range is clamped and quantized exactly like the agent does it.
func runTrim(ctx context.Context, eng editor.Engine, prober engine.Prober, req trimRequest, out io.Writer) error {
	outDir := filepath.Clean(req.OutDir)
	if err := export.ValidateOutputDir(outDir); err != nil {
		return err
	}

	sess, err := openSession(ctx, eng, prober, req.Source, editor.Options{TrimMode: req.Mode, Logger: logger})
	if err != nil {
		return err
	}

	r := req.Range
	if math.IsInf(r.End, 1) {
		r.End = sess.Snapshot().Duration
	}
	applied, err := sess.SetTrim(r)
	if err != nil {
		return err
	}

	clip, err := sess.Export(ctx)
	if err != nil {
		return err
	}

	name := export.SanitizeName(clip.Name, 200)
	dest := filepath.Join(outDir, name)
	if err := os.WriteFile(dest, clip.Data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	fmt.Fprintf(out, "%s -> %s (%s, %s)\n",
		formatTimestamp(applied.Start), formatTimestamp(applied.End),
		dest, humanize.Bytes(uint64(len(clip.Data))))
	return nil
}

func openSession(ctx context.Context, eng editor.Engine, prober engine.Prober, path string, opts editor.Options) (*editor.Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	d, err := prober.Duration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read duration of %s: %w", filepath.Base(path), err)
	}

	sess := editor.NewSession(eng, opts)
	err = sess.Select(&editor.Asset{
		ID:       "cli",
		Name:     filepath.Base(path),
		Path:     path,
		Duration: d,
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// parseTimestamp accepts plain seconds or [HH:]MM:SS[.fraction].
func parseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

func formatTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	whole := int(sec)
	frac := sec - float64(whole)
	h, m, s := whole/3600, (whole/60)%60, whole%60
	tenths := int(math.Round(frac * 10))
	if tenths == 10 {
		return formatTimestamp(float64(whole + 1))
	}
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%d", h, m, s, tenths)
	}
	return fmt.Sprintf("%02d:%02d.%d", m, s, tenths)
}
