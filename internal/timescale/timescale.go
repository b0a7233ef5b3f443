// Package timescale maps event timestamps onto horizontal pixel offsets for
// the timeline and produces the tick marks drawn along its axis.
package timescale

import (
	"fmt"
	"iter"
	"math"

	"gqlscope/internal/model"
)

const (
	// Padding is the lead-in margin (ms) kept before the earliest event.
	Padding int64 = 100
	// ZoomFactor is applied by every ZoomIn/ZoomOut step.
	ZoomFactor = 1.5
	// MinZoom and MaxZoom clamp the zoom level.
	MinZoom = 0.25
	MaxZoom = 512.0
)

// Domain is the time window, in ms, mapped onto the viewport at zoom 1.
type Domain struct {
	Start int64
	End   int64
}

// Span returns the domain width in ms.
func (d Domain) Span() int64 { return d.End - d.Start }

// ComputeDomain spans from the earliest event minus Padding to now.
func ComputeDomain(events []model.Event, now int64) Domain {
	if len(events) == 0 {
		return Domain{Start: now - Padding, End: now}
	}
	start := events[0].Timestamp
	for _, event := range events[1:] {
		start = min(start, event.Timestamp)
	}
	return Domain{Start: start - Padding, End: now}
}

// Tick is a labeled marker on the time axis.
type Tick struct {
	Label    string
	Time     int64
	Position float64
}

// Scale is the timeline's time-to-pixel mapping. Position and Invert are pure
// functions of the scale's fields.
type Scale struct {
	Domain      Domain
	RangeStart  float64
	Width       float64
	Zoom        float64
	Pan         float64
	AnchorRatio float64
}

// New returns a scale for domain at zoom 1 with no pan.
func New(domain Domain, width float64) Scale {
	return Scale{Domain: domain, Width: width, Zoom: 1}
}

// Position returns the pixel offset of timestamp t. It is monotonic
// non-decreasing in t.
func (s Scale) Position(t int64) float64 {
	span := s.Domain.Span()
	if span <= 0 {
		return s.RangeStart + s.Pan
	}
	ratio := float64(t-s.Domain.Start) / float64(span)
	return s.RangeStart + ratio*s.Width*s.zoom() + s.Pan
}

// Invert returns the timestamp drawn at pixel offset px.
func (s Scale) Invert(px float64) float64 {
	span := s.Domain.Span()
	if span <= 0 || s.Width <= 0 {
		return float64(s.Domain.Start)
	}
	ratio := (px - s.RangeStart - s.Pan) / (s.Width * s.zoom())
	return float64(s.Domain.Start) + ratio*float64(span)
}

func (s Scale) zoom() float64 {
	if s.Zoom <= 0 {
		return 1
	}
	return s.Zoom
}

// ZoomIn multiplies the zoom level by ZoomFactor. The domain is left as is.
func (s *Scale) ZoomIn() {
	s.Zoom = clampZoom(s.zoom() * ZoomFactor)
}

// ZoomOut divides the zoom level by ZoomFactor.
func (s *Scale) ZoomOut() {
	s.Zoom = clampZoom(s.zoom() / ZoomFactor)
}

func clampZoom(z float64) float64 {
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

// SetPosition pans so that timestamp t is drawn at the anchor point.
func (s *Scale) SetPosition(t int64) {
	s.Pan = 0
	s.Pan = s.anchor() - s.Position(t)
}

func (s Scale) anchor() float64 {
	return s.RangeStart + s.AnchorRatio*s.Width
}

// SetDomain replaces the domain without touching zoom or pan.
func (s *Scale) SetDomain(d Domain) {
	s.Domain = d
}

// TickCount returns how many ticks fit a viewport of the given width.
func TickCount(width float64) int {
	switch {
	case width < 600:
		return 2
	case width < 1300:
		return 5
	default:
		return 10
	}
}

// Ticks spreads TickCount(width) ticks across the visible window. Labels are
// offsets from startTime rounded to whole seconds so rapid zooming does not
// produce jittery sub-second labels.
func (s Scale) Ticks(width float64, startTime int64) iter.Seq[Tick] {
	count := TickCount(width)
	from := s.Invert(s.RangeStart)
	to := s.Invert(s.RangeStart + width)
	step := (to - from) / float64(count)

	return func(yield func(Tick) bool) {
		for i := range count {
			t := from + float64(i)*step
			delta := int64(math.Round((t-float64(startTime))/1000)) * 1000
			tick := Tick{
				Label:    fmt.Sprintf("%dms", delta),
				Time:     startTime + delta,
				Position: s.Position(startTime + delta),
			}
			if !yield(tick) {
				return
			}
		}
	}
}
