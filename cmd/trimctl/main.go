// Command trimctl trims videos and extracts thumbnail strips from the
// command line using the same engine as the trimmer agent.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/trimmer/internal/config"
	"github.com/heimdex/trimmer/internal/editor"
	"github.com/heimdex/trimmer/internal/engine"
	"github.com/heimdex/trimmer/internal/logging"
)

var (
	ffmpegPath  string
	logLevel    string
	execTimeout time.Duration

	logger *slog.Logger
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "trimctl",
	Short:        "Trim videos and extract thumbnails with ffmpeg",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(logLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ffmpegPath, "ffmpeg", os.Getenv(config.EnvFFmpegPath), "ffmpeg binary (default: ffmpeg on PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().DurationVar(&execTimeout, "timeout", 0, "per-command ffmpeg timeout (0 = none)")

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(trimCmd)
	rootCmd.AddCommand(thumbsCmd)
}

// loadEngine starts an ffmpeg-backed engine in a throwaway workspace.
func loadEngine(ctx context.Context) (*engine.Adapter, error) {
	backend := engine.NewFFmpegBackend(engine.FFmpegConfig{
		FFmpegPath:  ffmpegPath,
		ExecTimeout: execTimeout,
		Logger:      logging.WithComponent(logger, "ffmpeg"),
	})
	adapter := engine.NewAdapter(backend, logging.WithComponent(logger, "engine"))
	if err := adapter.Load(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", editor.KindEngineLoad.Message(), err)
	}
	return adapter, nil
}
