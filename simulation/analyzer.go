package simulation

import (
	"math"

	"cricket-sim/models"
	"cricket-sim/scoring"
)

// Phase is the stage of an innings
type Phase string

const (
	PhasePowerplay Phase = "POWERPLAY"
	PhaseMiddle    Phase = "MIDDLE_OVERS"
	PhaseDeath     Phase = "DEATH_OVERS"
)

const (
	powerplayEnd   = 6
	deathStart     = 15
	referenceOvers = 20

	momentumWindow     = 12
	overMomentumWindow = 6
	momentumLimit      = 10

	minComplexity = 1
	maxComplexity = 10
)

// PlayerSnapshot is what the strategies know about a player in the middle
type PlayerSnapshot struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Rating   float64 `json:"rating"`
	Runs     int     `json:"runs"`
	Balls    int     `json:"balls"` // faced when batting, legal balls bowled when bowling
	Wickets  int     `json:"wickets"`
	Conceded int     `json:"conceded"`
}

// Pressure summarises the scoreboard squeeze on the batting side
type Pressure struct {
	CurrentRunRate   float64 `json:"current_run_rate"`
	RequiredRunRate  float64 `json:"required_run_rate"`
	DotBallPressure  int     `json:"dot_ball_pressure"` // consecutive dots up to now
	BoundaryPressure int     `json:"boundary_pressure"` // deliveries since the last boundary
	WicketsInHand    int     `json:"wickets_in_hand"`
}

// Momentum is bounded to [-10, 10] on every axis
type Momentum struct {
	Batting float64 `json:"batting"`
	Bowling float64 `json:"bowling"`
	Over    float64 `json:"over"`
}

// CricketContext is the situation handed to a strategy
type CricketContext struct {
	MatchID           string         `json:"match_id"`
	Innings           int            `json:"innings"`
	SuperOver         bool           `json:"super_over"`
	Phase             Phase          `json:"phase"`
	Over              int            `json:"over"` // completed overs
	Ball              int            `json:"ball"` // legal balls into the current over
	MaxOvers          int            `json:"max_overs"`
	Score             int            `json:"score"`
	Wickets           int            `json:"wickets"`
	Target            int            `json:"target,omitempty"`
	WicketLimit       int            `json:"wicket_limit,omitempty"` // 0 means ten
	FreeHit           bool           `json:"free_hit"`
	Pressure          Pressure       `json:"pressure"`
	Momentum          Momentum       `json:"momentum"`
	Complexity        int            `json:"complexity"`
	Striker           PlayerSnapshot `json:"striker"`
	NonStriker        PlayerSnapshot `json:"non_striker"`
	Bowler            PlayerSnapshot `json:"bowler"`
	Fielders          []int          `json:"fielders,omitempty"`
	Recent            []models.Ball  `json:"recent,omitempty"`
	PreviousPatternID string         `json:"previous_pattern_id,omitempty"`
	Ground            *Ground        `json:"ground,omitempty"`
}

// Ground is the venue's effect on scoring
type Ground struct {
	Pitch    models.PitchFactors `json:"pitch"`
	Altitude int                 `json:"altitude,omitempty"`
}

// Clone copies the context without sharing slices
func (c CricketContext) Clone() CricketContext {
	out := c
	out.Fielders = append([]int(nil), c.Fielders...)
	out.Recent = append([]models.Ball(nil), c.Recent...)
	if c.Ground != nil {
		g := *c.Ground
		out.Ground = &g
	}
	return out
}

// BallsLeftInOver is the number of legal deliveries still due this over
func (c CricketContext) BallsLeftInOver() int {
	return 6 - c.Ball
}

// Chasing reports whether the batting side has a target
func (c CricketContext) Chasing() bool {
	return c.Target > 0
}

// Finished reports whether the working innings can take no more deliveries
func (c CricketContext) Finished() bool {
	limit := c.WicketLimit
	if limit == 0 {
		limit = 10
	}
	if c.Wickets >= limit || (c.MaxOvers > 0 && c.Over >= c.MaxOvers) {
		return true
	}
	return c.Chasing() && c.Score >= c.Target
}

// Analyzer derives a CricketContext from match state
type Analyzer struct {
	Modifiers    Modifiers
	PhaseScaling bool // scale the 6/15 over phase boundaries by overs/20
}

// NewAnalyzer creates an analyzer with the given player modifiers
func NewAnalyzer(mods Modifiers, phaseScaling bool) *Analyzer {
	if mods == nil {
		mods = Modifiers{}
	}
	return &Analyzer{Modifiers: mods, PhaseScaling: phaseScaling}
}

// Phase classifies completed overs into powerplay, middle or death
func (a *Analyzer) Phase(over, maxOvers int) Phase {
	pp, death := float64(powerplayEnd), float64(deathStart)
	if a.PhaseScaling && maxOvers > 0 {
		scale := float64(maxOvers) / referenceOvers
		pp *= scale
		death *= scale
	}

	switch {
	case float64(over) < pp:
		return PhasePowerplay
	case float64(over) >= death:
		return PhaseDeath
	default:
		return PhaseMiddle
	}
}

// Analyze builds the context for the innings in play, following the match
// into its super over when there is one.
func (a *Analyzer) Analyze(m *models.Match) (CricketContext, error) {
	if m.IsComplete() {
		return CricketContext{}, scoring.ErrMatchFinished
	}
	play := m.Active()
	inn := play.Current()
	if inn == nil {
		return CricketContext{}, scoring.ErrMatchFinished
	}

	c := a.AnalyzeInnings(play, inn, &inn.BattingTeam, &inn.BowlingTeam,
		slotPlayer(&inn.BattingTeam, inn.Striker),
		slotPlayer(&inn.BattingTeam, inn.NonStriker),
		slotPlayer(&inn.BowlingTeam, inn.Bowler))
	c.MatchID = m.ID
	c.SuperOver = play != m
	return c, nil
}

// AnalyzeInnings derives a context from an explicit innings and players.
// Any of the players may be nil while a selection is pending.
func (a *Analyzer) AnalyzeInnings(m *models.Match, inn *models.Innings, batting, bowling *models.Team,
	striker, nonStriker, bowler *models.Player) CricketContext {

	c := CricketContext{
		MatchID:     m.ID,
		Innings:     m.CurrentInnings,
		Over:        inn.Overs,
		Ball:        inn.BallsThisOver,
		MaxOvers:    inn.MaxOvers,
		Score:       inn.Score,
		Wickets:     inn.Wickets,
		Target:      inn.Target,
		WicketLimit: inn.WicketLimit,
		FreeHit:     inn.FreeHit,
		Striker:     battingSnapshot(striker),
		NonStriker:  battingSnapshot(nonStriker),
		Bowler:      bowlingSnapshot(bowler),
	}
	if m.Venue != nil {
		c.Ground = &Ground{Pitch: m.Venue.Pitch, Altitude: m.Venue.Altitude}
	}

	for _, p := range bowling.Players {
		if p.Eligible() && (bowler == nil || p.ID != bowler.ID) {
			c.Fielders = append(c.Fielders, p.ID)
		}
	}

	tl := inn.Timeline
	c.Recent = append([]models.Ball(nil), tl[max(len(tl)-momentumWindow, 0):]...)
	for i := len(tl) - 1; i >= 0 && tl[i].Dot(); i-- {
		c.Pressure.DotBallPressure++
	}
	for i := len(tl) - 1; i >= 0 && !tl[i].Boundary(); i-- {
		c.Pressure.BoundaryPressure++
	}

	a.refresh(&c)
	return c
}

// UpdateContextAfterBall advances a working copy of the context by one
// simulated delivery so the next ball of the over sees the new pressure.
func (a *Analyzer) UpdateContextAfterBall(c CricketContext, o models.BallOutcome) CricketContext {
	next := c.Clone()
	d, err := o.Details()
	if err != nil {
		return next
	}

	legal := d.Event.Legal()
	b := models.Ball{
		Event:      d.Event,
		Runs:       d.Runs,
		Extras:     d.Extras,
		WicketType: d.WicketType,
		StrikerID:  c.Striker.ID,
		NonStriker: c.NonStriker.ID,
		BowlerID:   c.Bowler.ID,
		OverIndex:  c.Over,
		FreeHit:    c.FreeHit,
	}
	b.IsWicket = d.Event == models.EventWicket && (!c.FreeHit || d.WicketType == models.WicketRunOut)

	next.Score += b.Total()
	next.Striker.Runs += d.Runs
	if d.Event != models.EventBye && d.Event != models.EventLegBye {
		next.Bowler.Conceded += b.Total()
	}
	if legal {
		next.Striker.Balls++
		next.Bowler.Balls++
		next.Ball++
		next.FreeHit = false
	}
	if d.Event == models.EventNoBall {
		next.FreeHit = true
	}

	if b.IsWicket {
		next.Wickets++
		if d.WicketType.CreditsBowler() {
			next.Bowler.Wickets++
		}
		next.Striker = PlayerSnapshot{}
	}

	if b.Dot() {
		next.Pressure.DotBallPressure++
	} else {
		next.Pressure.DotBallPressure = 0
	}
	if b.Boundary() {
		next.Pressure.BoundaryPressure = 0
	} else {
		next.Pressure.BoundaryPressure++
	}

	if legal && d.RunsRun()%2 == 1 {
		next.Striker, next.NonStriker = next.NonStriker, next.Striker
	}
	if next.Ball == 6 {
		next.Over++
		next.Ball = 0
		next.Striker, next.NonStriker = next.NonStriker, next.Striker
	}

	next.Recent = append(next.Recent, b)
	if len(next.Recent) > momentumWindow {
		next.Recent = next.Recent[len(next.Recent)-momentumWindow:]
	}

	a.refresh(&next)
	return next
}

// refresh recomputes everything derived from the counters and recent balls
func (a *Analyzer) refresh(c *CricketContext) {
	inn := models.Innings{
		Score:         c.Score,
		Overs:         c.Over,
		BallsThisOver: c.Ball,
		MaxOvers:      c.MaxOvers,
		Target:        c.Target,
	}
	c.Pressure.CurrentRunRate = scoring.CurrentRunRate(&inn)
	c.Pressure.RequiredRunRate = scoring.RequiredRunRate(&inn)
	c.Pressure.WicketsInHand = max(10-c.Wickets, 0)
	c.Phase = a.Phase(c.Over, c.MaxOvers)
	c.Momentum = a.momentum(c.Recent)
	c.Complexity = complexity(*c)
}

func (a *Analyzer) momentum(recent []models.Ball) Momentum {
	var bat, bowl float64
	for _, b := range recent[max(len(recent)-momentumWindow, 0):] {
		batImpact, bowlImpact := impact(b)
		bat += batImpact * a.Modifiers.Batting(b.StrikerID)
		bowl += bowlImpact * a.Modifiers.Bowling(b.BowlerID)
	}

	var over float64
	for _, b := range recent[max(len(recent)-overMomentumWindow, 0):] {
		switch {
		case b.IsWicket:
			over -= 3 * a.Modifiers.Bowling(b.BowlerID)
		case b.Boundary():
			over += float64(b.Runs) / 2 * a.Modifiers.Batting(b.StrikerID)
		case b.Dot():
			over -= 0.5 * a.Modifiers.Bowling(b.BowlerID)
		}
	}

	return Momentum{
		Batting: clampMomentum(bat - bowl/2),
		Bowling: clampMomentum(bowl - bat/2),
		Over:    clampMomentum(over),
	}
}

// impact scores one delivery for each side. A wicket weighs ten dots.
func impact(b models.Ball) (bat, bowl float64) {
	switch {
	case b.IsWicket:
		return 0, 10
	case b.Boundary():
		return float64(b.Runs) / 2, 0
	case b.Runs > 0:
		return 0.5, 0
	case b.Dot():
		return 0, 1
	}
	return 0, 0
}

func complexity(c CricketContext) int {
	score := minComplexity
	switch c.Phase {
	case PhaseDeath:
		score += 3
	case PhasePowerplay:
		score++
	}

	if c.Chasing() {
		if c.Pressure.RequiredRunRate > 12 {
			score += 2
		}
		if c.Pressure.RequiredRunRate > 15 {
			score++
		}
	}
	if c.Pressure.WicketsInHand <= 3 {
		score += 2
	}
	if math.Abs(c.Momentum.Batting) > 7 {
		score++
	}

	return min(max(score, minComplexity), maxComplexity)
}

func clampMomentum(v float64) float64 {
	return math.Max(-momentumLimit, math.Min(momentumLimit, v))
}

func slotPlayer(t *models.Team, s models.Slot) *models.Player {
	if s.Empty() {
		return nil
	}
	return t.Player(s.ID)
}

func battingSnapshot(p *models.Player) PlayerSnapshot {
	if p == nil {
		return PlayerSnapshot{}
	}
	return PlayerSnapshot{ID: p.ID, Name: p.Name, Rating: p.Rating, Runs: p.Batting.Runs, Balls: p.Batting.Balls}
}

func bowlingSnapshot(p *models.Player) PlayerSnapshot {
	if p == nil {
		return PlayerSnapshot{}
	}
	return PlayerSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Rating:   p.Rating,
		Balls:    p.Bowling.Balls,
		Wickets:  p.Bowling.Wickets,
		Conceded: p.Bowling.Runs,
	}
}
