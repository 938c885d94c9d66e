package scoring

import (
	"context"
	"math"

	"cricket-sim/models"

	"github.com/sirupsen/logrus"
)

const maxRainReduction = 0.35

// RainDue reports whether the pre-committed interruption should fire now
func RainDue(m *models.Match, currentOver, currentInnings int) bool {
	w := m.Weather
	if w == nil || w.Applied || m.Status != models.StatusInProgress {
		return false
	}
	return w.Innings == currentInnings && m.CurrentInnings == currentInnings && currentOver >= w.TriggerOver
}

// HandleRainInterruption shortens the innings once play reaches the
// pre-committed rain over. Earlier interruptions cost more overs, never more
// than 35% of the allocation. Rain in the chase also revises the target in
// proportion to the overs left, scaled by a small random factor. Calling it
// before the trigger returns an unchanged copy.
func (e *Engine) HandleRainInterruption(ctx context.Context, m *models.Match, currentOver, currentInnings int) (*models.Match, error) {
	next := m.Clone()
	if !RainDue(next, currentOver, currentInnings) {
		return next, nil
	}

	inn := next.Current()
	original := next.OversPerInnings
	progress := float64(currentOver) / float64(original)

	var fraction float64
	switch {
	case progress < 0.3:
		fraction = 0.35
	case progress < 0.6:
		fraction = 0.25
	default:
		fraction = 0.15
	}

	reduction := int(math.Round(float64(original) * fraction))
	reduction = min(reduction, int(math.Floor(float64(original)*maxRainReduction)))
	newMax := max(original-reduction, currentOver+1)
	newMax = min(newMax, inn.MaxOvers)

	w := next.Weather
	w.Applied = true
	w.ReducedOvers = newMax
	w.OversLost = inn.MaxOvers - newMax
	inn.MaxOvers = newMax

	if currentInnings == 1 {
		first := next.Innings[0]
		adjustment := 1.0
		if e.opts.RainTargetJitter > 0 {
			adjustment += (e.float64()*2 - 1) * e.opts.RainTargetJitter
		}
		par := float64(first.Score) * float64(newMax) / float64(first.MaxOvers) * adjustment
		inn.Target = int(math.Round(par)) + 1
		w.RevisedTarget = inn.Target
		w.Adjustment = adjustment
	}

	e.log.WithFields(logrus.Fields{
		"match_id":       next.ID,
		"innings":        currentInnings + 1,
		"overs_lost":     w.OversLost,
		"reduced_overs":  newMax,
		"revised_target": w.RevisedTarget,
	}).Info("Rain interruption")

	e.checkInningsEnd(next)
	if next.IsComplete() {
		e.updateRatings(ctx, next)
	}

	e.touch(next)
	return next, nil
}
