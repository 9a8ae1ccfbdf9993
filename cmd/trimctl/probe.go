package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heimdex/trimmer/internal/catalog"
	"github.com/heimdex/trimmer/internal/engine"
)

var probeCmd = &cobra.Command{
	Use:   "probe <video>",
	Short: "Print the duration and size of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd.Context(), engine.FFprobe{}, args[0], cmd.OutOrStdout())
	},
}

func runProbe(ctx context.Context, prober engine.Prober, path string, out io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !catalog.IsVideoFile(path) {
		return fmt.Errorf("%s: %w", filepath.Base(path), catalog.ErrUnsupportedMedia)
	}

	d, err := prober.Duration(ctx, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "file:     %s\n", filepath.Base(path))
	fmt.Fprintf(out, "size:     %s\n", humanize.Bytes(uint64(info.Size())))
	fmt.Fprintf(out, "duration: %s (%.3fs)\n", formatTimestamp(d), d)
	return nil
}
