package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heimdex/trimmer/internal/api"
	"github.com/heimdex/trimmer/internal/catalog"
	"github.com/heimdex/trimmer/internal/config"
	"github.com/heimdex/trimmer/internal/db"
	"github.com/heimdex/trimmer/internal/editor"
	"github.com/heimdex/trimmer/internal/engine"
	"github.com/heimdex/trimmer/internal/logging"
	"github.com/heimdex/trimmer/internal/playback"
	"github.com/heimdex/trimmer/internal/ui"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.AssetsDir(), cfg.ExportsDir(), cfg.WorkDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting video trimmer", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                   VIDEO TRIMMER v%-24s ║\n", Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	trimMode, err := engine.ParseTrimMode(cfg.TrimMode())
	if err != nil {
		return err
	}

	backend := engine.NewFFmpegBackend(engine.FFmpegConfig{
		FFmpegPath:  cfg.FFmpegPath(),
		WorkDir:     cfg.WorkDir(),
		ExecTimeout: cfg.ExecTimeout(),
		Logger:      logging.WithComponent(logger, "ffmpeg"),
	})
	adapter := engine.NewAdapter(backend, logging.WithComponent(logger, "engine"))

	editors := editor.NewManager(adapter, editor.Options{
		Step:            cfg.SliderStep(),
		ThumbnailFPS:    cfg.ThumbnailFPS(),
		ThumbnailHeight: cfg.ThumbnailHeight(),
		TrimMode:        trimMode,
		Logger:          logging.WithComponent(logger, "editor"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The engine loads once at startup; failures surface through /status
	// and can be retried with POST /engine/load.
	go func() {
		if err := editors.LoadEngine(ctx); err != nil {
			logger.Error("engine load failed", "error", err)
			return
		}
		logger.Info("engine ready")
	}()

	catalogSvc := catalog.NewService(repo, editors, engine.FFprobe{}, catalog.ServiceConfig{
		AssetsDir:      cfg.AssetsDir(),
		ExportsDir:     cfg.ExportsDir(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, logger)
	playbackSvc := playback.NewServer(logger)

	runner := catalog.NewRunner(catalogSvc, repo, logger)
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        Version,
		CatalogService: catalogSvc,
		Editors:        editors,
		PlaybackServer: playbackSvc,
		Repository:     repo,
		Runner:         runner,
		Logger:         logger,
		StartTime:      startTime,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			CatalogService: catalogSvc,
			Editors:        editors,
			Runner:         runner,
			Logger:         logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
	}

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			if tray != nil {
				tray.Quit()
			}
			close(quitCh)
		case <-quitCh:
		}
	}()

	if tray != nil {
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := adapter.Close(shutdownCtx); err != nil {
		logger.Error("failed to close engine", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo catalog.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
