package pacing

import (
	"context"
	"math/rand/v2"
	"time"
)

// Band is an inclusive range of durations.
type Band struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Schedule is an inclusive range of item counts.
type Schedule struct {
	MinItems int `yaml:"min_items"`
	MaxItems int `yaml:"max_items"`
}

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// ViewportRange bounds the randomized window size.
type ViewportRange struct {
	MinWidth  int `yaml:"min_width"`
	MaxWidth  int `yaml:"max_width"`
	MinHeight int `yaml:"min_height"`
	MaxHeight int `yaml:"max_height"`
}

// ScrollRange bounds a humanized scroll: pixels per step and the pause between steps.
type ScrollRange struct {
	MinStep  int  `yaml:"min_step"`
	MaxStep  int  `yaml:"max_step"`
	Interval Band `yaml:"interval"`
	// StableChecks is how many consecutive steps must leave the scroll
	// position unchanged before the bottom is considered reached.
	StableChecks int `yaml:"stable_checks"`
}

// Point is a pointer position inside a Viewport.
type Point struct {
	X int
	Y int
}

// Controller draws the randomized values that pace the crawl.
type Controller interface {
	// Jitter returns an integer in [min, max].
	Jitter(minValue, maxValue int) int
	// Delay returns a duration inside b.
	Delay(b Band) time.Duration
	// LongPauseAfter returns how many items to process before the next long pause.
	// Zero disables long pauses.
	LongPauseAfter(s Schedule) int
	// Pointer returns a micro-interaction target inside v.
	Pointer(v Viewport) Point
	// Size returns a window size inside r.
	Size(r ViewportRange) Viewport
}

// Human is a Controller backed by math/rand/v2.
// It keeps no state between calls and is safe for concurrent use.
type Human struct{}

// NewHuman returns a randomized Controller.
func NewHuman() Human {
	return Human{}
}

// Jitter implements Controller. Swapped bounds are normalized.
func (Human) Jitter(minValue, maxValue int) int {
	if maxValue < minValue {
		minValue, maxValue = maxValue, minValue
	}
	if maxValue == minValue {
		return minValue
	}
	return minValue + rand.IntN(maxValue-minValue+1) //nolint:gosec // pacing, not security
}

// Delay implements Controller.
func (Human) Delay(b Band) time.Duration {
	lo, hi := b.Min, b.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1) //nolint:gosec // pacing, not security
}

// LongPauseAfter implements Controller.
func (h Human) LongPauseAfter(s Schedule) int {
	if s.MinItems <= 0 && s.MaxItems <= 0 {
		return 0
	}
	n := h.Jitter(s.MinItems, s.MaxItems)
	if n < 1 {
		n = 1
	}
	return n
}

// Pointer implements Controller. The target avoids the outer tenth of the window.
func (h Human) Pointer(v Viewport) Point {
	if v.Width <= 0 || v.Height <= 0 {
		return Point{}
	}
	return Point{
		X: h.Jitter(v.Width/10, v.Width-v.Width/10),
		Y: h.Jitter(v.Height/10, v.Height-v.Height/10),
	}
}

// Size implements Controller.
func (h Human) Size(r ViewportRange) Viewport {
	return Viewport{
		Width:  h.Jitter(r.MinWidth, r.MaxWidth),
		Height: h.Jitter(r.MinHeight, r.MaxHeight),
	}
}

// Zero is a Controller that never waits and never pauses.
type Zero struct{}

// Jitter implements Controller by returning the lower bound.
func (Zero) Jitter(minValue, maxValue int) int {
	return min(minValue, maxValue)
}

// Delay implements Controller.
func (Zero) Delay(Band) time.Duration { return 0 }

// LongPauseAfter implements Controller.
func (Zero) LongPauseAfter(Schedule) int { return 0 }

// Pointer implements Controller.
func (Zero) Pointer(Viewport) Point { return Point{} }

// Size implements Controller by returning the smallest window.
func (Zero) Size(r ViewportRange) Viewport {
	return Viewport{Width: min(r.MinWidth, r.MaxWidth), Height: min(r.MinHeight, r.MaxHeight)}
}

// Wait sleeps for a duration drawn from b, or until ctx is done.
func Wait(ctx context.Context, c Controller, b Band) error {
	d := c.Delay(b)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
