package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heimdex/trimmer/internal/editor"
	"github.com/heimdex/trimmer/internal/engine"
	"github.com/heimdex/trimmer/internal/export"
)

var (
	thumbsOutDir string
	thumbsFPS    float64
	thumbsHeight int
)

var thumbsCmd = &cobra.Command{
	Use:   "thumbs <video>",
	Short: "Extract timeline thumbnails as PNG files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := loadEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		opts := editor.Options{ThumbnailFPS: thumbsFPS, ThumbnailHeight: thumbsHeight, Logger: logger}
		return runThumbs(ctx, eng, engine.FFprobe{}, args[0], thumbsOutDir, opts, cmd.OutOrStdout())
	},
}

func init() {
	thumbsCmd.Flags().StringVarP(&thumbsOutDir, "out", "o", ".", "output directory")
	thumbsCmd.Flags().Float64Var(&thumbsFPS, "fps", engine.DefaultThumbnailFPS, "frames per second of video")
	thumbsCmd.Flags().IntVar(&thumbsHeight, "height", 0, "scale frames to this height (0 = original)")
}

func runThumbs(ctx context.Context, eng editor.Engine, prober engine.Prober, src, outDir string, opts editor.Options, out io.Writer) error {
	outDir = filepath.Clean(outDir)
	if err := export.ValidateOutputDir(outDir); err != nil {
		return err
	}

	sess, err := openSession(ctx, eng, prober, src, opts)
	if err != nil {
		return err
	}
	thumbs, err := sess.GenerateThumbnails(ctx)
	if err != nil {
		return err
	}

	for _, t := range thumbs {
		name := engine.ThumbnailName(t.Index)
		if err := os.WriteFile(filepath.Join(outDir, name), t.Data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		fmt.Fprintf(out, "%s\t%s\n", name, formatTimestamp(t.Time))
	}
	fmt.Fprintf(out, "%d thumbnails written to %s\n", len(thumbs), outDir)
	return nil
}
