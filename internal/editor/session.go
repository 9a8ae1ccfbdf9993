// Package editor holds the state of one trimming session: the selected
// asset, player position, trim range and thumbnails, and runs the thumbnail
// and export sequences through the media engine.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/heimdex/trimmer/internal/engine"
	"github.com/heimdex/trimmer/internal/logging"
	"github.com/heimdex/trimmer/internal/slider"
)

// Status strings reported to the front end.
const (
	StatusLoading       = "loading"
	StatusLoadingEngine = "loading ffmpeg..."
	StatusIdle          = "idle"
	StatusError         = "error"
)

// StatusFor maps an engine state to the status shown to the user.
func StatusFor(s engine.State) string {
	switch s {
	case engine.StateLoading:
		return StatusLoadingEngine
	case engine.StateReady:
		return StatusIdle
	case engine.StateError:
		return StatusError
	default:
		return StatusLoading
	}
}

// Engine is the part of engine.Adapter the editor drives.
type Engine interface {
	Load(ctx context.Context) error
	State() engine.State
	Err() error
	Do(ctx context.Context, fn func(engine.Ops) error) error
}

// Asset is the media a session edits.
type Asset struct {
	ID       string
	Name     string  // name the user uploaded it under
	Path     string  // location on disk
	Duration float64 // seconds, 0 until known
}

type Thumbnail struct {
	Index int     `json:"index"`
	Time  float64 `json:"time"`
	Data  []byte  `json:"-"`
}

// Clip is an exported trim.
type Clip struct {
	Name        string
	ContentType string
	Range       slider.Range
	Data        []byte
}

type Options struct {
	Step            float64
	ThumbnailFPS    float64
	ThumbnailHeight int
	TrimMode        engine.TrimMode
	Logger          *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Step <= 0 {
		o.Step = slider.DefaultStep
	}
	if o.ThumbnailFPS <= 0 {
		o.ThumbnailFPS = engine.DefaultThumbnailFPS
	}
	if o.TrimMode == "" {
		o.TrimMode = engine.TrimCopy
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return o
}

// State is a point-in-time view of a session.
type State struct {
	AssetID     string       `json:"asset_id,omitempty"`
	Filename    string       `json:"filename,omitempty"`
	Status      string       `json:"status"`
	Error       string       `json:"error,omitempty"`
	Playing     bool         `json:"playing"`
	TrimRange   slider.Range `json:"trim_range"`
	CurrentTime float64      `json:"current_time"`
	Duration    float64      `json:"duration"`
	Playhead    float64      `json:"playhead_percent"`
	SlotWidth   float64      `json:"thumbnail_slot_percent"`
	Thumbnails  int          `json:"thumbnails"`
	Generating  bool         `json:"generating"`
}

type Session struct {
	engine Engine
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	asset      *Asset
	bounds     slider.Bounds
	trim       slider.Range
	current    float64
	duration   float64
	playing    bool
	thumbs     []Thumbnail
	generating bool
	lastErr    *Error
}

func NewSession(eng Engine, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		engine: eng,
		opts:   opts,
		logger: opts.Logger,
		bounds: slider.NewBounds(0, 0, opts.Step),
	}
}

// Select makes asset the edited media and resets the player state. A nil
// asset is the no-file error.
func (s *Session) Select(asset *Asset) error {
	if asset == nil {
		return s.fail(newError(KindNoFile, nil))
	}

	a := *asset
	s.mu.Lock()
	s.asset = &a
	s.bounds = slider.NewBounds(0, 0, s.opts.Step)
	s.trim = slider.Range{}
	s.current = 0
	s.duration = 0
	s.playing = false
	s.thumbs = nil
	s.lastErr = nil
	s.logger = logging.WithAssetID(s.opts.Logger, a.ID)
	s.mu.Unlock()

	if a.Duration > 0 {
		return s.LoadMetadata(a.Duration)
	}
	return nil
}

// LoadMetadata records the media duration and selects the whole clip.
func (s *Session) LoadMetadata(duration float64) error {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return fmt.Errorf("%w: %v", ErrNoDuration, duration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.asset == nil {
		return s.failLocked(newError(KindNoFile, nil))
	}
	s.asset.Duration = duration
	s.duration = duration
	s.bounds = slider.NewBounds(0, duration, s.opts.Step)
	s.trim = slider.Range{Start: 0, End: duration}
	if s.current > duration {
		s.current = duration
	}
	return nil
}

// SetTrim clamps and quantizes r, stores it and seeks to its start.
func (s *Session) SetTrim(r slider.Range) (slider.Range, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.duration <= 0 {
		return s.trim, ErrNoDuration
	}
	applied := s.bounds.Normalize(r)
	s.trim = applied
	s.current = applied.Start
	return applied, nil
}

func (s *Session) applyDrag(r slider.Range) {
	s.mu.Lock()
	s.trim = r
	s.current = r.Start
	s.mu.Unlock()
}

// NewSlider returns a slider bound to the session's trim range. Every change
// it emits is applied to the session before onChange runs.
func (s *Session) NewSlider(tracker slider.PointerTracker, onChange func(slider.Range)) *slider.Slider {
	s.mu.Lock()
	b, v := s.bounds, s.trim
	s.mu.Unlock()

	return slider.New(slider.Options{
		Bounds:  b,
		Value:   v,
		Tracker: tracker,
		OnChange: func(r slider.Range) {
			s.applyDrag(r)
			if onChange != nil {
				onChange(r)
			}
		},
	})
}

// SyncSlider copies the session's current bounds and trim range into sl.
// It fails while the duration is unknown.
func (s *Session) SyncSlider(sl *slider.Slider) error {
	s.mu.Lock()
	b, v, d := s.bounds, s.trim, s.duration
	s.mu.Unlock()

	if d <= 0 {
		return ErrNoDuration
	}
	sl.SetBounds(b)
	sl.SetValue(v)
	return nil
}

// TimeUpdate records the player position.
func (s *Session) TimeUpdate(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.clampTime(t)
}

// TimelineClick seeks to the clicked timeline position and starts playback.
func (s *Session) TimelineClick(clientX, width float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := slider.TimelineTime(clientX, width, s.duration)
	s.current = t
	s.playing = true
	return t
}

func (s *Session) SetPlaying(playing bool) {
	s.mu.Lock()
	s.playing = playing
	s.mu.Unlock()
}

func (s *Session) clampTime(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if s.duration > 0 && t > s.duration {
		return s.duration
	}
	return t
}

// Asset returns a copy of the selected asset.
func (s *Session) Asset() (Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asset == nil {
		return Asset{}, false
	}
	return *s.asset, true
}

func (s *Session) Trim() slider.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trim
}

func (s *Session) Thumbnails() []Thumbnail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Thumbnail(nil), s.thumbs...)
}

// Thumbnail returns frame n, counted from 1.
func (s *Session) Thumbnail(n int) (Thumbnail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > len(s.thumbs) {
		return Thumbnail{}, false
	}
	return s.thumbs[n-1], true
}

// Err returns the last user-visible error, if any.
func (s *Session) Err() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *Session) Snapshot() State {
	engineState := s.engine.State()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Status:      StatusFor(engineState),
		Playing:     s.playing,
		TrimRange:   s.trim,
		CurrentTime: s.current,
		Duration:    s.duration,
		Playhead:    slider.PlayheadPercent(s.current, s.duration),
		SlotWidth:   slider.ThumbnailSlotPercent(s.duration),
		Thumbnails:  len(s.thumbs),
		Generating:  s.generating,
	}
	if s.asset != nil {
		st.AssetID = s.asset.ID
		st.Filename = s.asset.Name
	}
	switch {
	case s.lastErr != nil:
		st.Error = s.lastErr.Message()
	case engineState == engine.StateError:
		st.Error = KindEngineLoad.Message()
	}
	return st
}

func (s *Session) fail(e *Error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failLocked(e)
}

func (s *Session) failLocked(e *Error) error {
	s.lastErr = e
	s.logger.Warn("editor operation failed", "kind", e.Kind, "error", e)
	return e
}

// engineReady reports the engine-load error without touching the engine
// when it is not ready.
func (s *Session) engineReady() *Error {
	return readyError(s.engine)
}

func readyError(eng Engine) *Error {
	if eng.State() == engine.StateReady {
		return nil
	}
	if err := eng.Err(); err != nil {
		return newError(KindEngineLoad, err)
	}
	return newError(KindEngineLoad, engine.ErrNotReady)
}

// selected returns the asset and duration, or the no-file error.
func (s *Session) selected() (Asset, float64, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asset == nil {
		return Asset{}, 0, newError(KindNoFile, nil)
	}
	return *s.asset, s.duration, nil
}

func (s *Session) log() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}
