package simulation

import (
	"slices"

	"cricket-sim/models"
)

// Pattern tags
const (
	TagDefensive     = "defensive"
	TagRotation      = "rotation"
	TagPressure      = "pressure"
	TagWicket        = "wicket"
	TagAggressive    = "aggressive"
	TagMomentumSwing = "momentum-swing"
	TagExtras        = "extras"
)

// Pattern is a named shape of over with a few concrete ball sequences
type Pattern struct {
	ID        string
	Name      string
	Tags      []string
	Phases    []Phase // empty means any phase
	Sequences [][]models.BallOutcome
}

// HasTag reports whether the pattern carries a tag
func (p Pattern) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// FitsPhase reports whether the pattern suits a phase
func (p Pattern) FitsPhase(ph Phase) bool {
	return len(p.Phases) == 0 || slices.Contains(p.Phases, ph)
}

var (
	pDot    = models.Dot()
	p1      = models.Single()
	p2      = models.Double()
	p4      = models.Four()
	p6      = models.Six()
	pWide   = models.Wide()
	pNoBall = models.NoBall()

	pBowled = models.Out(models.WicketBowled)
	pCaught = models.Out(models.WicketCaught)
	pLBW    = models.Out(models.WicketLBW)
)

// DefaultPatterns is the built-in pattern library
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			ID:   "tight-over",
			Name: "Tight over",
			Tags: []string{TagDefensive, TagPressure},
			Sequences: [][]models.BallOutcome{
				{pDot, pDot, p1, pDot, pDot, pDot},
				{pDot, p1, pDot, pDot, pDot, p1},
				{pDot, pDot, pDot, p1, pDot, pDot},
			},
		},
		{
			ID:     "steady-accumulation",
			Name:   "Steady accumulation",
			Tags:   []string{TagRotation},
			Phases: []Phase{PhaseMiddle},
			Sequences: [][]models.BallOutcome{
				{p1, p1, pDot, p2, p1, p1},
				{p1, pDot, p1, p1, p2, p1},
				{p2, p1, p1, pDot, p1, p1},
			},
		},
		{
			ID:   "quiet-consolidation",
			Name: "Quiet consolidation",
			Tags: []string{TagDefensive, TagRotation},
			Sequences: [][]models.BallOutcome{
				{pDot, p1, pDot, p1, pDot, p1},
				{p1, pDot, pDot, p1, p1, pDot},
			},
		},
		{
			ID:   "pressure-wicket",
			Name: "Pressure wicket",
			Tags: []string{TagPressure, TagWicket},
			Sequences: [][]models.BallOutcome{
				{pDot, pDot, pDot, pCaught, p1, pDot},
				{pDot, p1, pDot, pDot, pBowled, pDot},
				{pDot, pDot, pLBW, pDot, p1, pDot},
			},
		},
		{
			ID:     "powerplay-burst",
			Name:   "Powerplay burst",
			Tags:   []string{TagAggressive, TagMomentumSwing},
			Phases: []Phase{PhasePowerplay},
			Sequences: [][]models.BallOutcome{
				{p4, pDot, p1, p4, p1, pDot},
				{pDot, p4, p4, p1, pDot, p1},
			},
		},
		{
			ID:     "big-over",
			Name:   "Big over",
			Tags:   []string{TagAggressive, TagMomentumSwing},
			Phases: []Phase{PhaseMiddle, PhaseDeath},
			Sequences: [][]models.BallOutcome{
				{p6, p1, p4, pDot, p6, p1},
				{p1, p4, p6, p2, p1, p4},
			},
		},
		{
			ID:   "comeback-over",
			Name: "Comeback over",
			Tags: []string{TagMomentumSwing, TagWicket},
			Sequences: [][]models.BallOutcome{
				{p4, pDot, pCaught, pDot, p1, pDot},
				{p6, p1, pDot, pBowled, pDot, pDot},
			},
		},
		{
			ID:   "loose-over",
			Name: "Loose over",
			Tags: []string{TagExtras},
			Sequences: [][]models.BallOutcome{
				{pWide, p1, p4, pNoBall, p1, p2},
				{p1, pWide, p2, p1, p4, pDot},
			},
		},
	}
}
