package simulation

import (
	"context"
	"math/rand/v2"
	"sync"

	"cricket-sim/models"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	openingUpBalls  = 20
	openingUpChance = 0.35
)

// TemplateStrategy picks a ready-made over from the pattern library for
// low-stakes situations
type TemplateStrategy struct {
	patterns []Pattern
	below    int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTemplateStrategy claims complexities below the given value
func NewTemplateStrategy(patterns []Pattern, src rand.Source, below int) *TemplateStrategy {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &TemplateStrategy{patterns: patterns, below: below, rng: rand.New(src)}
}

func (s *TemplateStrategy) Name() string  { return StrategyTemplate }
func (s *TemplateStrategy) Priority() int { return 4 }

func (s *TemplateStrategy) CanHandle(c CricketContext) bool {
	return c.Complexity < s.below
}

func (s *TemplateStrategy) Simulate(_ context.Context, c CricketContext) (models.OverSimulationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.candidates(c)

	// a batter who has been in a while opens up
	openingUp := false
	if c.Striker.Balls > openingUpBalls && s.rng.Float64() < openingUpChance {
		var swing []Pattern
		for _, p := range candidates {
			if p.HasTag(TagMomentumSwing) {
				swing = append(swing, p)
			}
		}
		if len(swing) > 0 {
			candidates = swing
			openingUp = true
		}
	}

	p := s.pick(c, candidates)
	seq := p.Sequences[s.rng.IntN(len(p.Sequences))]
	outcomes := legalLimit(append([]models.BallOutcome(nil), seq...), c.BallsLeftInOver())

	return models.OverSimulationResult{
		Outcomes:   outcomes,
		Commentary: p.Name + ". " + describeOver(c, outcomes),
		Strategy:   StrategyTemplate,
		PatternID:  p.ID,
		Debug: map[string]interface{}{
			"pattern":    p.ID,
			"opening_up": openingUp,
		},
	}, nil
}

// candidates drops the previous over's pattern unless nothing else is left
func (s *TemplateStrategy) candidates(c CricketContext) []Pattern {
	out := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		if p.ID != c.PreviousPatternID {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return s.patterns
	}
	return out
}

// PatternWeight scores how well a pattern suits a situation
func PatternWeight(p Pattern, c CricketContext) float64 {
	w := 1.0
	if p.FitsPhase(c.Phase) {
		w++
	} else {
		w *= 0.25
	}

	squeezed := c.Pressure.DotBallPressure >= 3 || (c.Chasing() && c.Pressure.RequiredRunRate > 10)
	if squeezed && p.HasTag(TagPressure) {
		w++
	}
	if c.Momentum.Batting > 3 && p.HasTag(TagAggressive) {
		w++
	}
	if c.Momentum.Bowling > 3 && (p.HasTag(TagDefensive) || p.HasTag(TagWicket)) {
		w++
	}
	if c.Pressure.BoundaryPressure > 12 && p.HasTag(TagAggressive) {
		w += 0.5
	}
	return w
}

func (s *TemplateStrategy) pick(c CricketContext, candidates []Pattern) Pattern {
	weights := make([]float64, len(candidates))
	for i, p := range candidates {
		weights[i] = PatternWeight(p, c)
	}
	return candidates[int(distuv.NewCategorical(weights, s.rng).Rand())]
}

// RuleStrategy is the catch-all: a single off every ball
type RuleStrategy struct{}

func (RuleStrategy) Name() string                  { return StrategyRule }
func (RuleStrategy) Priority() int                 { return 5 }
func (RuleStrategy) CanHandle(CricketContext) bool { return true }

func (RuleStrategy) Simulate(_ context.Context, c CricketContext) (models.OverSimulationResult, error) {
	outcomes := make([]models.BallOutcome, c.BallsLeftInOver())
	for i := range outcomes {
		outcomes[i] = models.Single()
	}
	return models.OverSimulationResult{
		Outcomes:   outcomes,
		Commentary: describeOver(c, outcomes),
		Strategy:   StrategyRule,
	}, nil
}
