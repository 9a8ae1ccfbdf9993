// Package config provides configuration management for the trimmer agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// Default values
	DefaultPort            = 8790
	DefaultLogLevel        = "info"
	DefaultDataDir         = ".trimmer"
	DefaultTrimMode        = "copy"
	DefaultSliderStep      = 0.1
	DefaultThumbnailFPS    = 1.0
	DefaultThumbnailHeight = 48
	DefaultMaxUploadBytes  = 100 * 1000 * 1000 // 100 MB

	// Environment variable names
	EnvPort            = "TRIMMER_PORT"
	EnvLogLevel        = "TRIMMER_LOG_LEVEL"
	EnvDataDir         = "TRIMMER_DATA_DIR"
	EnvFFmpegPath      = "TRIMMER_FFMPEG_PATH"
	EnvHeadless        = "TRIMMER_HEADLESS"
	EnvTrimMode        = "TRIMMER_TRIM_MODE"
	EnvSliderStep      = "TRIMMER_SLIDER_STEP"
	EnvThumbnailFPS    = "TRIMMER_THUMB_FPS"
	EnvThumbnailHeight = "TRIMMER_THUMB_HEIGHT"
	EnvMaxUploadBytes  = "TRIMMER_MAX_UPLOAD_BYTES"
	EnvExecTimeout     = "TRIMMER_EXEC_TIMEOUT"

	// Database filename
	DBFilename = "trimmer.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	AssetsDir() string
	ExportsDir() string
	WorkDir() string
	FFmpegPath() string
	Headless() bool
	TrimMode() string
	SliderStep() float64
	ThumbnailFPS() float64
	ThumbnailHeight() int
	MaxUploadBytes() int64
	ExecTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port            int
	logLevel        string
	dataDir         string
	ffmpegPath      string
	headless        bool
	trimMode        string
	sliderStep      float64
	thumbnailFPS    float64
	thumbnailHeight int
	maxUploadBytes  int64
	execTimeout     time.Duration
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		logLevel:        DefaultLogLevel,
		dataDir:         defaultDataDir(),
		trimMode:        DefaultTrimMode,
		sliderStep:      DefaultSliderStep,
		thumbnailFPS:    DefaultThumbnailFPS,
		thumbnailHeight: DefaultThumbnailHeight,
		maxUploadBytes:  DefaultMaxUploadBytes,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	if m := os.Getenv(EnvTrimMode); m != "" {
		m = strings.ToLower(m)
		if m != "copy" && m != "reencode" {
			return nil, fmt.Errorf("invalid %s: must be copy or reencode", EnvTrimMode)
		}
		cfg.trimMode = m
	}

	if s := os.Getenv(EnvSliderStep); s != "" {
		step, err := strconv.ParseFloat(s, 64)
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive number", EnvSliderStep)
		}
		cfg.sliderStep = step
	}

	if f := os.Getenv(EnvThumbnailFPS); f != "" {
		fps, err := strconv.ParseFloat(f, 64)
		if err != nil || fps <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive number", EnvThumbnailFPS)
		}
		cfg.thumbnailFPS = fps
	}

	if h := os.Getenv(EnvThumbnailHeight); h != "" {
		height, err := strconv.Atoi(h)
		if err != nil || height < 0 {
			return nil, fmt.Errorf("invalid %s: must be a non-negative integer", EnvThumbnailHeight)
		}
		cfg.thumbnailHeight = height
	}

	// Accepts plain byte counts or sizes like "250MB".
	if u := os.Getenv(EnvMaxUploadBytes); u != "" {
		n, err := humanize.ParseBytes(u)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid %s: %q", EnvMaxUploadBytes, u)
		}
		cfg.maxUploadBytes = int64(n)
	}

	if t := os.Getenv(EnvExecTimeout); t != "" {
		secs, err := strconv.Atoi(t)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("invalid %s: must be a non-negative number of seconds", EnvExecTimeout)
		}
		cfg.execTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// AssetsDir holds uploaded source videos.
func (c *EnvConfig) AssetsDir() string {
	return filepath.Join(c.dataDir, "assets")
}

// ExportsDir holds trimmed clips, one directory per export job.
func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// WorkDir is the parent of the engine workspace.
func (c *EnvConfig) WorkDir() string {
	return filepath.Join(c.dataDir, "work")
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) TrimMode() string {
	return c.trimMode
}

func (c *EnvConfig) SliderStep() float64 {
	return c.sliderStep
}

func (c *EnvConfig) ThumbnailFPS() float64 {
	return c.thumbnailFPS
}

func (c *EnvConfig) ThumbnailHeight() int {
	return c.thumbnailHeight
}

func (c *EnvConfig) MaxUploadBytes() int64 {
	return c.maxUploadBytes
}

// ExecTimeout bounds a single engine command; 0 means no timeout.
func (c *EnvConfig) ExecTimeout() time.Duration {
	return c.execTimeout
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
