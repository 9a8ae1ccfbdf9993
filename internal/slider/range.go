// Package slider implements the dual-handle trim range control: pointer to
// value mapping, clamping, step quantization and the drag session that ties
// them together.
package slider

import (
	"math"
	"strconv"
	"strings"
)

// DefaultStep is the quantization step used for trim ranges, in seconds.
const DefaultStep = 0.1

// Handle identifies one end of the range.
type Handle int

const (
	HandleStart Handle = 0
	HandleEnd   Handle = 1
)

func (h Handle) Valid() bool {
	return h == HandleStart || h == HandleEnd
}

func (h Handle) String() string {
	switch h {
	case HandleStart:
		return "start"
	case HandleEnd:
		return "end"
	default:
		return "handle(" + strconv.Itoa(int(h)) + ")"
	}
}

// Range is a trim interval.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (r Range) Duration() float64 {
	return r.End - r.Start
}

// Bounds holds the slider props: the value domain and its step.
type Bounds struct {
	Min  float64
	Max  float64
	Step float64
}

// NewBounds returns bounds for [min, max]. A non-positive step falls back to
// DefaultStep and an inverted domain is swapped.
func NewBounds(min, max, step float64) Bounds {
	if max < min {
		min, max = max, min
	}
	if step <= 0 || math.IsNaN(step) {
		step = DefaultStep
	}
	return Bounds{Min: min, Max: max, Step: step}
}

// Span returns Max - Min.
func (b Bounds) Span() float64 {
	return b.Max - b.Min
}

// Clamp limits v to [Min, Max]. NaN maps to Min.
func (b Bounds) Clamp(v float64) float64 {
	if math.IsNaN(v) || v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Quantize rounds v to the nearest multiple of Step and keeps the result
// inside [Min, Max]. Quantizing an already quantized value returns it
// unchanged.
func (b Bounds) Quantize(v float64) float64 {
	step := b.step()
	q := b.round(math.Round(v/step) * step)

	if q > b.Max {
		q = b.round(math.Floor(b.Max/step+1e-9) * step)
	}
	if q < b.Min {
		q = b.round(math.Ceil(b.Min/step-1e-9) * step)
	}
	// Domain narrower than one step: no multiple fits.
	if q > b.Max || q < b.Min {
		q = b.Clamp(v)
	}
	return q
}

// FromPointer maps a pointer x coordinate on a track to a clamped, quantized
// value.
func (b Bounds) FromPointer(clientX float64, track Track) float64 {
	pos := track.Fraction(clientX)*b.Span() + b.Min
	return b.Quantize(b.Clamp(pos))
}

// Percent returns where v sits in the domain, 0..100.
func (b Bounds) Percent(v float64) float64 {
	span := b.Span()
	if span <= 0 {
		return 0
	}
	return (v - b.Min) / span * 100
}

// Normalize turns an arbitrary range into one that honours the bounds and
// the one-step separation. The start wins when both cannot be kept.
func (b Bounds) Normalize(r Range) Range {
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	start := b.Quantize(r.Start)
	end := b.Quantize(r.End)
	if end-start < b.step()-1e-9 {
		end = b.endLimit(start)
	}
	if end-start < b.step()-1e-9 {
		start = b.startLimit(end)
	}
	return Range{Start: start, End: end}
}

// startLimit is the largest start on the grid that still sits a full step
// before end, never below Min. An off-grid end rounds the limit down.
func (b Bounds) startLimit(end float64) float64 {
	step := b.step()
	v := b.round(math.Floor((end-step)/step+1e-9) * step)
	return math.Max(v, b.Min)
}

// endLimit is the smallest end on the grid a full step after start, never
// above Max.
func (b Bounds) endLimit(start float64) float64 {
	step := b.step()
	v := b.round(math.Ceil((start+step)/step-1e-9) * step)
	return math.Min(v, b.Max)
}

func (b Bounds) step() float64 {
	if b.Step <= 0 {
		return DefaultStep
	}
	return b.Step
}

// round strips floating point noise below the step's precision.
func (b Bounds) round(v float64) float64 {
	p := math.Pow(10, float64(decimals(b.step())))
	return math.Round(v*p) / p
}

func decimals(step float64) int {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

// Track is the on-screen geometry of the slider, in client coordinates.
type Track struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Fraction maps clientX into the track's local space. The result is not
// clamped; a degenerate track maps everything to 0.
func (t Track) Fraction(clientX float64) float64 {
	if t.Width <= 0 || math.IsNaN(t.Width) {
		return 0
	}
	return (clientX - t.Left) / t.Width
}
