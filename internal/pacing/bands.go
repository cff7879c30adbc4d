package pacing

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidBand is returned by Bands.Validate for a negative or inverted range.
var ErrInvalidBand = errors.New("invalid pacing band")

// Bands groups the named ranges used by the crawl engine.
type Bands struct {
	Action       Band `yaml:"action"`
	Settle       Band `yaml:"settle"`
	PreExtract   Band `yaml:"pre_extract"`
	Hover        Band `yaml:"hover"`
	BetweenItems Band `yaml:"between_items"`
	LongPause    Band `yaml:"long_pause"`
	BetweenPages Band `yaml:"between_pages"`
	AfterAdvance Band `yaml:"after_advance"`
	Retry        Band `yaml:"retry"`

	LongPauseEvery Schedule      `yaml:"long_pause_every"`
	Viewport       ViewportRange `yaml:"viewport"`
	Scroll         ScrollRange   `yaml:"scroll"`
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// DefaultBands returns the production pacing profile.
func DefaultBands() Bands {
	return Bands{
		Action:         Band{Min: ms(800), Max: ms(1500)},
		Settle:         Band{Min: ms(1000), Max: ms(2500)},
		PreExtract:     Band{Min: ms(200), Max: ms(600)},
		Hover:          Band{Min: ms(200), Max: ms(600)},
		BetweenItems:   Band{Min: ms(1500), Max: ms(4000)},
		LongPause:      Band{Min: ms(8000), Max: ms(15000)},
		BetweenPages:   Band{Min: ms(3000), Max: ms(8000)},
		AfterAdvance:   Band{Min: ms(1500), Max: ms(3000)},
		Retry:          Band{Min: ms(5000), Max: ms(7000)},
		LongPauseEvery: Schedule{MinItems: 3, MaxItems: 7},
		Viewport: ViewportRange{
			MinWidth: 1200, MaxWidth: 1800,
			MinHeight: 800, MaxHeight: 1200,
		},
		Scroll: ScrollRange{
			MinStep:      80,
			MaxStep:      120,
			Interval:     Band{Min: ms(150), Max: ms(300)},
			StableChecks: 3,
		},
	}
}

// Validate checks every band for negative or inverted bounds.
func (b Bands) Validate() error {
	named := []struct {
		name string
		band Band
	}{
		{"action", b.Action},
		{"settle", b.Settle},
		{"pre_extract", b.PreExtract},
		{"hover", b.Hover},
		{"between_items", b.BetweenItems},
		{"long_pause", b.LongPause},
		{"between_pages", b.BetweenPages},
		{"after_advance", b.AfterAdvance},
		{"retry", b.Retry},
		{"scroll.interval", b.Scroll.Interval},
	}
	for _, n := range named {
		if n.band.Min < 0 || n.band.Max < n.band.Min {
			return fmt.Errorf("%w: %s [%s, %s]", ErrInvalidBand, n.name, n.band.Min, n.band.Max)
		}
	}
	if b.LongPauseEvery.MinItems < 0 || b.LongPauseEvery.MaxItems < b.LongPauseEvery.MinItems {
		return fmt.Errorf("%w: long_pause_every [%d, %d]", ErrInvalidBand,
			b.LongPauseEvery.MinItems, b.LongPauseEvery.MaxItems)
	}
	if b.Scroll.MinStep <= 0 || b.Scroll.MaxStep < b.Scroll.MinStep {
		return fmt.Errorf("%w: scroll step [%d, %d]", ErrInvalidBand, b.Scroll.MinStep, b.Scroll.MaxStep)
	}
	return nil
}
