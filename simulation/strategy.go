package simulation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cricket-sim/models"
)

// Strategy names
const (
	StrategyCache       = "cache"
	StrategyGenerative  = "generative"
	StrategyStatistical = "statistical"
	StrategyTemplate    = "template"
	StrategyRule        = "rule"
)

var (
	ErrNoStrategy        = errors.New("no strategy can simulate this situation")
	ErrMalformedResponse = errors.New("malformed generative response")
	ErrCacheMiss         = errors.New("over evicted from cache")
)

// Strategy synthesises one over for a situation it claims
type Strategy interface {
	Name() string
	// Priority orders strategies; lower values are asked first
	Priority() int
	CanHandle(c CricketContext) bool
	Simulate(ctx context.Context, c CricketContext) (models.OverSimulationResult, error)
}

// describeOver renders a one-line summary such as "Over 7: 1 . 4 W (5 runs, 1 wicket)"
func describeOver(c CricketContext, outcomes []models.BallOutcome) string {
	tokens := make([]string, 0, len(outcomes))
	runs, wickets := 0, 0
	for _, o := range outcomes {
		runs += o.Total()
		if o.Kind == models.OutcomeWicket {
			wickets++
		}
		d, err := o.Details()
		if err != nil {
			tokens = append(tokens, "?")
			continue
		}
		tokens = append(tokens, models.DisplayToken(d, o.Kind == models.OutcomeWicket))
	}

	summary := fmt.Sprintf("%d %s", runs, pluralise(runs, "run"))
	if wickets > 0 {
		summary += fmt.Sprintf(", %d %s", wickets, pluralise(wickets, "wicket"))
	}
	return fmt.Sprintf("Over %d: %s (%s)", c.Over+1, strings.Join(tokens, " "), summary)
}

func pluralise(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// legalLimit trims outcomes so the over never runs past its sixth legal ball
func legalLimit(outcomes []models.BallOutcome, legalLeft int) []models.BallOutcome {
	out := make([]models.BallOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if legalLeft <= 0 {
			break
		}
		out = append(out, o)
		if o.Legal() {
			legalLeft--
		}
	}
	return out
}
