package ui

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/heimdex/trimmer/internal/catalog"
	"github.com/heimdex/trimmer/internal/editor"
	"github.com/heimdex/trimmer/internal/engine"
)

const statusRefresh = 2 * time.Second

type Tray struct {
	catalogSvc catalog.CatalogService
	editors    *editor.Manager
	runner     *catalog.Runner
	logger     *slog.Logger

	statusItem *systray.MenuItem
	jobsItem   *systray.MenuItem
	reloadItem *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu sync.Mutex

	onQuit func()
	done   chan struct{}
}

type TrayConfig struct {
	CatalogService catalog.CatalogService
	Editors        *editor.Manager
	Runner         *catalog.Runner
	Logger         *slog.Logger
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		catalogSvc: cfg.CatalogService,
		editors:    cfg.Editors,
		runner:     cfg.Runner,
		logger:     cfg.Logger,
		onQuit:     cfg.OnQuit,
		done:       make(chan struct{}),
	}
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Trimmer")
	systray.SetTooltip("Video Trimmer")

	t.statusItem = systray.AddMenuItem("Status: "+editor.StatusLoadingEngine, "Editor status")
	t.statusItem.Disable()

	t.jobsItem = systray.AddMenuItem("Jobs: 0 pending", "Queued thumbnail and export jobs")
	t.jobsItem.Disable()

	systray.AddSeparator()

	t.reloadItem = systray.AddMenuItem("Reload FFmpeg", "Load the media engine again")
	t.reloadItem.Hide()

	t.pauseItem = systray.AddMenuItem("Pause Jobs", "Pause thumbnail and export jobs")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Video Trimmer")

	go func() {
		ticker := time.NewTicker(statusRefresh)
		defer ticker.Stop()
		t.refresh()

		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-t.reloadItem.ClickedCh:
				go t.reloadEngine()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.done:
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.editors != nil {
		title := "Status: " + t.editors.Status()
		if t.runner != nil && t.runner.IsPaused() {
			title += " (paused)"
		}
		t.statusItem.SetTitle(title)

		if t.editors.EngineState() == engine.StateError {
			t.reloadItem.Show()
			t.statusItem.SetTooltip(t.editors.EngineError())
		} else {
			t.reloadItem.Hide()
		}
	}

	if t.catalogSvc == nil {
		return
	}
	counts, err := t.catalogSvc.JobCounts(context.Background())
	if err != nil {
		t.logger.Debug("tray job counts failed", "error", err)
		return
	}
	pending := counts[catalog.JobStatusPending]
	if running := counts[catalog.JobStatusRunning]; running > 0 {
		t.jobsItem.SetTitle(fmt.Sprintf("Jobs: %d running, %d pending", running, pending))
		return
	}
	t.jobsItem.SetTitle(fmt.Sprintf("Jobs: %d pending", pending))
}

func (t *Tray) reloadEngine() {
	if t.editors == nil {
		return
	}
	t.logger.Info("engine reload requested from tray")
	if err := t.editors.LoadEngine(context.Background()); err != nil {
		t.logger.Error("engine reload failed", "error", err)
	}
	t.refresh()
}

func (t *Tray) togglePause() {
	if t.runner == nil {
		return
	}

	t.mu.Lock()
	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause Jobs")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume Jobs")
	}
	t.mu.Unlock()

	t.refresh()
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
	systray.Quit()
}

var iconBytes = drawIcon()

// drawIcon renders the tray icon: a film strip with a highlighted cut region.
func drawIcon() []byte {
	const size = 32
	img := image.NewNRGBA(image.Rect(0, 0, size, size))

	strip := color.NRGBA{0x30, 0x30, 0x38, 0xff}
	hole := color.NRGBA{0xe8, 0xe8, 0xe8, 0xff}
	cut := color.NRGBA{0xf5, 0xa6, 0x23, 0xff}

	for y := 6; y < size-6; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, strip)
		}
	}
	for x := 2; x < size; x += 6 {
		for _, y := range []int{8, size - 10} {
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 3; dx++ {
					img.Set(x+dx, y+dy, hole)
				}
			}
		}
	}
	for y := 11; y < size-11; y++ {
		for x := 9; x < size-9; x++ {
			img.Set(x, y, cut)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
