package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	for _, env := range []string{
		EnvPort, EnvLogLevel, EnvDataDir, EnvFFmpegPath, EnvHeadless, EnvTrimMode,
		EnvSliderStep, EnvThumbnailFPS, EnvThumbnailHeight, EnvMaxUploadBytes, EnvExecTimeout,
	} {
		t.Setenv(env, "")
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel())
	}
	if cfg.TrimMode() != "copy" {
		t.Errorf("TrimMode = %q, want copy", cfg.TrimMode())
	}
	if cfg.SliderStep() != 0.1 {
		t.Errorf("SliderStep = %v, want 0.1", cfg.SliderStep())
	}
	if cfg.ThumbnailFPS() != 1 || cfg.ThumbnailHeight() != 48 {
		t.Errorf("thumbnails = %v fps %d px, want 1 fps 48 px", cfg.ThumbnailFPS(), cfg.ThumbnailHeight())
	}
	if cfg.MaxUploadBytes() != DefaultMaxUploadBytes {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes(), DefaultMaxUploadBytes)
	}
	if cfg.ExecTimeout() != 0 {
		t.Errorf("ExecTimeout = %v, want 0", cfg.ExecTimeout())
	}
	if cfg.Headless() {
		t.Error("Headless = true, want false")
	}
}

func TestNew_FromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvDataDir, dir)
	t.Setenv(EnvFFmpegPath, "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv(EnvHeadless, "true")
	t.Setenv(EnvTrimMode, "ReEncode")
	t.Setenv(EnvSliderStep, "0.5")
	t.Setenv(EnvThumbnailFPS, "2")
	t.Setenv(EnvThumbnailHeight, "72")
	t.Setenv(EnvMaxUploadBytes, "250MB")
	t.Setenv(EnvExecTimeout, "120")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port())
	}
	if cfg.DBPath() != filepath.Join(dir, DBFilename) {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
	if cfg.ExportsDir() != filepath.Join(dir, "exports") {
		t.Errorf("ExportsDir = %q", cfg.ExportsDir())
	}
	if cfg.FFmpegPath() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath = %q", cfg.FFmpegPath())
	}
	if !cfg.Headless() {
		t.Error("Headless = false, want true")
	}
	if cfg.TrimMode() != "reencode" {
		t.Errorf("TrimMode = %q, want reencode", cfg.TrimMode())
	}
	if cfg.SliderStep() != 0.5 {
		t.Errorf("SliderStep = %v, want 0.5", cfg.SliderStep())
	}
	if cfg.ThumbnailFPS() != 2 || cfg.ThumbnailHeight() != 72 {
		t.Errorf("thumbnails = %v fps %d px", cfg.ThumbnailFPS(), cfg.ThumbnailHeight())
	}
	if cfg.MaxUploadBytes() != 250*1000*1000 {
		t.Errorf("MaxUploadBytes = %d, want 250000000", cfg.MaxUploadBytes())
	}
	if cfg.ExecTimeout() != 2*time.Minute {
		t.Errorf("ExecTimeout = %v, want 2m", cfg.ExecTimeout())
	}
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{EnvPort, "abc"},
		{EnvPort, "70000"},
		{EnvHeadless, "maybe"},
		{EnvTrimMode, "fast"},
		{EnvSliderStep, "0"},
		{EnvSliderStep, "-0.1"},
		{EnvThumbnailFPS, "x"},
		{EnvThumbnailHeight, "-5"},
		{EnvMaxUploadBytes, "lots"},
		{EnvExecTimeout, "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.env+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			if _, err := New(); err == nil {
				t.Fatalf("New() with %s=%q should fail", tt.env, tt.value)
			}
		})
	}
}
