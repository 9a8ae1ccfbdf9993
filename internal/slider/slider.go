package slider

import (
	"math"
	"sync"
)

// PointerTracker attaches pointer listeners that live for the duration of a
// drag. The returned release func detaches them and is called exactly once.
type PointerTracker interface {
	Attach(move func(clientX float64), up func()) (release func())
}

// PointerTrackerFunc adapts a function to PointerTracker.
type PointerTrackerFunc func(move func(clientX float64), up func()) func()

func (f PointerTrackerFunc) Attach(move func(clientX float64), up func()) func() {
	return f(move, up)
}

type dragSession struct {
	handle  Handle
	release func()
	once    sync.Once
}

func (d *dragSession) detach() {
	d.once.Do(func() {
		if d.release != nil {
			d.release()
		}
	})
}

// Slider is a two-handle range control. It is idle until BeginDrag and stays
// dragging until EndDrag or Close, whatever the pointer does in between.
type Slider struct {
	mu       sync.Mutex
	bounds   Bounds
	value    Range
	track    Track
	tracker  PointerTracker
	onChange func(Range)
	drag     *dragSession
}

// Options configures a Slider.
type Options struct {
	Bounds   Bounds
	Value    Range
	Track    Track
	Tracker  PointerTracker
	OnChange func(Range)
}

func New(opts Options) *Slider {
	b := opts.Bounds
	if b.Step <= 0 {
		b = NewBounds(b.Min, b.Max, b.Step)
	}
	return &Slider{
		bounds:   b,
		value:    opts.Value,
		track:    opts.Track,
		tracker:  opts.Tracker,
		onChange: opts.OnChange,
	}
}

// BeginDrag makes h the active handle and attaches the pointer listeners.
// An unknown handle is ignored. Beginning a new drag while one is active
// releases the previous session first.
func (s *Slider) BeginDrag(h Handle) {
	if !h.Valid() {
		return
	}

	session := &dragSession{handle: h}

	s.mu.Lock()
	prev := s.drag
	s.drag = session
	tracker := s.tracker
	s.mu.Unlock()

	if prev != nil {
		prev.detach()
	}
	if tracker == nil {
		return
	}

	release := tracker.Attach(s.OnPointerMove, s.EndDrag)

	s.mu.Lock()
	current := s.drag == session
	if current {
		session.release = release
	}
	s.mu.Unlock()

	// Session already ended while attaching.
	if !current && release != nil {
		release()
	}
}

// OnPointerMove updates the active handle from a pointer position and emits
// the new range. It does nothing while idle.
func (s *Slider) OnPointerMove(clientX float64) {
	s.mu.Lock()
	if s.drag == nil {
		s.mu.Unlock()
		return
	}
	next := s.move(s.drag.handle, clientX)
	s.value = next
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(next)
	}
}

func (s *Slider) move(h Handle, clientX float64) Range {
	b := s.bounds
	pos := b.FromPointer(clientX, s.track)
	next := s.value

	switch h {
	case HandleStart:
		next.Start = math.Min(pos, b.startLimit(s.value.End))
	case HandleEnd:
		next.End = math.Max(pos, b.endLimit(s.value.Start))
	}
	return next
}

// EndDrag clears the active handle and detaches the listeners.
func (s *Slider) EndDrag() {
	s.mu.Lock()
	session := s.drag
	s.drag = nil
	s.mu.Unlock()

	if session != nil {
		session.detach()
	}
}

// Close tears the slider down, releasing any live drag session.
func (s *Slider) Close() {
	s.EndDrag()
}

// Dragging reports the active handle, if any.
func (s *Slider) Dragging() (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return 0, false
	}
	return s.drag.handle, true
}

func (s *Slider) Value() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// SetValue replaces the current range without emitting a change.
func (s *Slider) SetValue(r Range) {
	s.mu.Lock()
	s.value = r
	s.mu.Unlock()
}

func (s *Slider) Bounds() Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

func (s *Slider) SetBounds(b Bounds) {
	s.mu.Lock()
	s.bounds = NewBounds(b.Min, b.Max, b.Step)
	s.mu.Unlock()
}

// SetTrack records the current track geometry.
func (s *Slider) SetTrack(t Track) {
	s.mu.Lock()
	s.track = t
	s.mu.Unlock()
}

// HandlePercents returns the left and right handle offsets in percent of the
// track width.
func (s *Slider) HandlePercents() (left, right float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds.Percent(s.value.Start), s.bounds.Percent(s.value.End)
}
