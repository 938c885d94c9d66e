package simulation

import (
	"cricket-sim/models"
)

// outcomeOrder indexes every probability table
var outcomeOrder = []models.OutcomeKind{
	models.OutcomeDot,
	models.OutcomeSingle,
	models.OutcomeDouble,
	models.OutcomeFour,
	models.OutcomeSix,
	models.OutcomeWicket,
	models.OutcomeWide,
	models.OutcomeNoBall,
	models.OutcomeBye,
	models.OutcomeLegBye,
}

const (
	idxDot = iota
	idxSingle
	idxDouble
	idxFour
	idxSix
	idxWicket
	idxWide
	idxNoBall
	idxBye
	idxLegBye
)

// ProbabilityTable holds one weight per entry of outcomeOrder
type ProbabilityTable [10]float64

// phaseTables are per-delivery base rates for a typical T20 innings
var phaseTables = map[Phase]ProbabilityTable{
	//                dot   1     2     4     6     W      wd     nb     b      lb
	PhasePowerplay: {0.42, 0.28, 0.06, 0.12, 0.04, 0.045, 0.02, 0.005, 0.005, 0.005},
	PhaseMiddle:    {0.38, 0.35, 0.08, 0.08, 0.03, 0.04, 0.02, 0.005, 0.005, 0.01},
	PhaseDeath:     {0.28, 0.30, 0.08, 0.13, 0.09, 0.07, 0.025, 0.01, 0.005, 0.01},
}

// BaseTable returns a copy of the table for a phase, falling back to middle overs
func BaseTable(p Phase) ProbabilityTable {
	if t, ok := phaseTables[p]; ok {
		return t
	}
	return phaseTables[PhaseMiddle]
}

// wicketTypes is the share of each mode of dismissal
var wicketTypes = []struct {
	kind   models.WicketType
	weight float64
}{
	{models.WicketCaught, 0.52},
	{models.WicketBowled, 0.22},
	{models.WicketLBW, 0.14},
	{models.WicketRunOut, 0.07},
	{models.WicketStumped, 0.04},
	{models.WicketHitWicket, 0.01},
}

// outcomeAt builds the outcome for a sampled table index
func outcomeAt(i int) models.BallOutcome {
	switch i {
	case idxSingle:
		return models.Single()
	case idxDouble:
		return models.Double()
	case idxFour:
		return models.Four()
	case idxSix:
		return models.Six()
	case idxWicket:
		return models.Out(models.WicketBowled)
	case idxWide:
		return models.Wide()
	case idxNoBall:
		return models.NoBall()
	case idxBye:
		return models.BallOutcome{Kind: models.OutcomeBye, Runs: 1}
	case idxLegBye:
		return models.BallOutcome{Kind: models.OutcomeLegBye, Runs: 1}
	default:
		return models.Dot()
	}
}
