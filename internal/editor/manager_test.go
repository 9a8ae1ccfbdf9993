package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/heimdex/trimmer/internal/engine"
)

func TestManager_LoadEngine(t *testing.T) {
	eng := newFakeEngine()
	eng.state = engine.StateUninitialized
	m := NewManager(eng, Options{})

	if got := m.Status(); got != StatusLoading {
		t.Errorf("status before load = %q, want %q", got, StatusLoading)
	}
	if err := m.LoadEngine(context.Background()); err != nil {
		t.Fatalf("LoadEngine() error = %v", err)
	}
	if got := m.Status(); got != StatusIdle {
		t.Errorf("status after load = %q, want %q", got, StatusIdle)
	}
	if m.EngineError() != "" {
		t.Errorf("EngineError() = %q, want empty", m.EngineError())
	}
}

func TestManager_LoadEngineFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.loadErr = errors.New("no ffmpeg")
	m := NewManager(eng, Options{})

	err := m.LoadEngine(context.Background())
	if kind, ok := KindOf(err); !ok || kind != KindEngineLoad {
		t.Fatalf("LoadEngine() error = %v, want engine load error", err)
	}
	if !errors.Is(err, engine.ErrLoad) {
		t.Errorf("LoadEngine() error = %v, should wrap engine.ErrLoad", err)
	}
	if m.EngineError() != "Failed to load FFmpeg" {
		t.Errorf("EngineError() = %q", m.EngineError())
	}

	eng.loadErr = nil
	if err := m.LoadEngine(context.Background()); err != nil {
		t.Fatalf("retry LoadEngine() error = %v", err)
	}
}

func TestManager_Sessions(t *testing.T) {
	m := NewManager(newFakeEngine(), Options{})

	if _, err := m.Open(nil); err == nil {
		t.Fatal("Open(nil) should fail")
	}

	asset := testAsset(t, "clip.mp4", 8)
	s, err := m.Open(asset)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got, ok := m.Get(asset.ID); !ok || got != s {
		t.Fatalf("Get() = %v, %v", got, ok)
	}
	if st := s.Snapshot(); st.AssetID != asset.ID || st.Duration != 8 {
		t.Errorf("snapshot = %+v", st)
	}

	replacement, _ := m.Open(asset)
	if got, _ := m.Get(asset.ID); got != replacement {
		t.Error("Open() did not replace the existing session")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}

	m.Close(asset.ID)
	if _, ok := m.Get(asset.ID); ok {
		t.Error("session still present after Close")
	}
}

func TestError_Message(t *testing.T) {
	err := newError(KindExport, errors.New("exit 1"))

	if err.Message() != "Failed to export video" {
		t.Errorf("Message() = %q", err.Message())
	}
	if err.Error() != "Failed to export video: exit 1" {
		t.Errorf("Error() = %q", err.Error())
	}
	if newError(KindNoFile, nil).Error() != "No selected file" {
		t.Errorf("Error() without cause = %q", newError(KindNoFile, nil).Error())
	}
}
