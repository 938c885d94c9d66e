package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"cricket-sim/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	maxOutcomesPerOver = 6
	setBatterBalls     = 15
	maxAggression      = 2.5
)

// StatisticalStrategy samples each delivery from phase tables adjusted for
// the situation, re-reading the situation after every ball.
type StatisticalStrategy struct {
	analyzer     *Analyzer
	lower, upper int // claims lower <= complexity < upper; upper 0 is unbounded

	mu  sync.Mutex
	rng *rand.Rand
}

// NewStatisticalStrategy claims complexities in [lower, upper). Pass upper 0
// to claim everything from lower upwards.
func NewStatisticalStrategy(a *Analyzer, src rand.Source, lower, upper int) *StatisticalStrategy {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &StatisticalStrategy{analyzer: a, lower: lower, upper: upper, rng: rand.New(src)}
}

func (s *StatisticalStrategy) Name() string  { return StrategyStatistical }
func (s *StatisticalStrategy) Priority() int { return 3 }

func (s *StatisticalStrategy) CanHandle(c CricketContext) bool {
	return c.Complexity >= s.lower && (s.upper == 0 || c.Complexity < s.upper)
}

func (s *StatisticalStrategy) Simulate(ctx context.Context, c CricketContext) (models.OverSimulationResult, error) {
	work := c.Clone()
	legalLeft := c.BallsLeftInOver()
	outcomes := make([]models.BallOutcome, 0, maxOutcomesPerOver)

	var last []float64
	for len(outcomes) < maxOutcomesPerOver && legalLeft > 0 && !work.Finished() {
		if err := ctx.Err(); err != nil {
			return models.OverSimulationResult{}, err
		}

		last = s.Adjusted(work)
		o := s.sample(work, last)
		outcomes = append(outcomes, o)
		if o.Legal() {
			legalLeft--
		}
		work = s.analyzer.UpdateContextAfterBall(work, o)
	}

	return models.OverSimulationResult{
		Outcomes:   outcomes,
		Commentary: describeOver(c, outcomes),
		Strategy:   StrategyStatistical,
		Debug: map[string]interface{}{
			"phase":         c.Phase,
			"complexity":    c.Complexity,
			"probabilities": last,
		},
	}, nil
}

// Adjusted returns the normalised outcome weights for a situation, indexed
// like outcomeOrder.
func (s *StatisticalStrategy) Adjusted(c CricketContext) []float64 {
	base := BaseTable(c.Phase)
	w := base[:]

	if c.Chasing() {
		rrr := c.Pressure.RequiredRunRate
		switch {
		case rrr > 10:
			f := 1 + math.Min((rrr-10)/10, 0.8)
			w[idxFour] *= f
			w[idxSix] *= f
			w[idxWicket] *= 1 + (f-1)/2
			w[idxDot] *= 0.9
		case rrr < 6:
			w[idxSingle] *= 1.2
			w[idxSix] *= 0.8
		}
	}

	if dp := c.Pressure.DotBallPressure; dp >= 3 {
		f := 1 + math.Min(float64(dp-2)*0.05, 0.3)
		w[idxFour] *= f
		w[idxSix] *= f
		w[idxWicket] *= f
	}

	if m := c.Momentum.Batting; m > 0 {
		w[idxFour] *= 1 + m/20
		w[idxSix] *= 1 + m/20
	}
	if m := c.Momentum.Bowling; m > 0 {
		w[idxWicket] *= 1 + m/20
		w[idxDot] *= 1 + m/40
	}

	agg := Aggression(c.Striker.Balls) * s.analyzer.Modifiers.Batting(c.Striker.ID)
	w[idxFour] *= agg
	w[idxSix] *= agg
	w[idxWicket] *= s.analyzer.Modifiers.Bowling(c.Bowler.ID)

	if g := c.Ground; g != nil {
		for i, kind := range outcomeOrder {
			w[i] *= g.Pitch.Multiplier(kind)
		}
		w[idxSix] *= models.AltitudeCarry(g.Altitude)
	}

	// only a run out stands on a free hit
	if c.FreeHit {
		w[idxWicket] *= 0.1
	}

	floats.Scale(1/floats.Sum(w), w)
	return w
}

// Aggression is the boundary multiplier for a batter who has faced the given
// number of balls. It ramps after fifteen balls and tops out at 2.5.
func Aggression(balls int) float64 {
	if balls <= setBatterBalls {
		return 1
	}
	return math.Min(1+float64(balls-setBatterBalls)*0.05, maxAggression)
}

func (s *StatisticalStrategy) sample(c CricketContext, weights []float64) models.BallOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := outcomeAt(int(distuv.NewCategorical(weights, s.rng).Rand()))
	if o.Kind != models.OutcomeWicket {
		return o
	}

	if c.FreeHit {
		o.WicketType = models.WicketRunOut
	} else {
		kinds := make([]float64, len(wicketTypes))
		for i, wt := range wicketTypes {
			kinds[i] = wt.weight
		}
		o.WicketType = wicketTypes[int(distuv.NewCategorical(kinds, s.rng).Rand())].kind
	}

	switch o.WicketType {
	case models.WicketCaught, models.WicketRunOut, models.WicketStumped:
		if len(c.Fielders) > 0 {
			id := c.Fielders[s.rng.IntN(len(c.Fielders))]
			o.FielderID = &id
		}
	}
	return o
}
