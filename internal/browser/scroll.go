package browser

import (
	"context"

	"github.com/nao1215/connharvest/internal/pacing"
)

// maxScrollSteps bounds a scroll on pages that keep growing.
const maxScrollSteps = 300

type scroller interface {
	scrollBy(dy int) error
	position() (int, error)
}

// humanScroll scrolls by a random step, pauses, and repeats until the
// position has not moved for r.StableChecks consecutive steps.
func humanScroll(ctx context.Context, s scroller, pace pacing.Controller, r pacing.ScrollRange) error {
	stableNeeded := max(r.StableChecks, 1)
	last, err := s.position()
	if err != nil {
		return err
	}

	stable := 0
	for range maxScrollSteps {
		if err := s.scrollBy(pace.Jitter(r.MinStep, r.MaxStep)); err != nil {
			return err
		}
		if err := pacing.Wait(ctx, pace, r.Interval); err != nil {
			return err
		}
		pos, err := s.position()
		if err != nil {
			return err
		}
		if pos == last {
			stable++
			if stable >= stableNeeded {
				return nil
			}
			continue
		}
		stable = 0
		last = pos
	}
	return nil
}
