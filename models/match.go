package models

import (
	"time"
)

// MatchStatus is the lifecycle state of a match
type MatchStatus string

const (
	StatusInProgress MatchStatus = "in_progress"
	StatusFinished   MatchStatus = "finished"
	StatusSuperOver  MatchStatus = "super_over"
)

// TossDecision is what the toss winner chose to do
type TossDecision string

const (
	DecisionBat  TossDecision = "bat"
	DecisionBowl TossDecision = "bowl"
)

// Toss records who won the toss and their choice
type Toss struct {
	WinnerID string       `json:"winner_id"`
	Decision TossDecision `json:"decision"`
}

// Match is the root aggregate of a limited-overs game
type Match struct {
	ID              string               `json:"id"`
	Format          string               `json:"format"`
	Teams           [2]Team              `json:"teams"`
	OversPerInnings int                  `json:"overs_per_innings"`
	Toss            Toss                 `json:"toss"`
	Innings         []Innings            `json:"innings"`
	CurrentInnings  int                  `json:"current_innings"`
	Status          MatchStatus          `json:"status"`
	Result          string               `json:"result,omitempty"`
	WinnerID        string               `json:"winner_id,omitempty"`
	Weather         *WeatherInterruption `json:"weather,omitempty"`
	SuperOver       *Match               `json:"super_over,omitempty"`
	Venue           *Venue               `json:"venue,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Innings is one side's turn to bat
type Innings struct {
	BattingTeam     Team             `json:"batting_team"`
	BowlingTeam     Team             `json:"bowling_team"`
	Score           int              `json:"score"`
	Wickets         int              `json:"wickets"`
	Overs           int              `json:"overs"`
	BallsThisOver   int              `json:"balls_this_over"`
	MaxOvers        int              `json:"max_overs"`
	Target          int              `json:"target,omitempty"`       // runs required to win, 0 when setting a total
	WicketLimit     int              `json:"wicket_limit,omitempty"` // 0 means eligible batters minus one
	Timeline        []Ball           `json:"timeline"`
	FallOfWickets   []FallOfWicket   `json:"fall_of_wickets"`
	Partnership     Partnership      `json:"partnership"`
	Striker         Slot             `json:"striker"`
	NonStriker      Slot             `json:"non_striker"`
	Bowler          Slot             `json:"bowler"`
	FieldPlacements []FieldPlacement `json:"field_placements"`
	FreeHit         bool             `json:"free_hit"`
}

// WeatherInterruption is the pre-committed rain event for a match
type WeatherInterruption struct {
	Innings       int     `json:"innings"`      // zero-based innings index the rain falls in
	TriggerOver   int     `json:"trigger_over"` // completed overs at which play stops
	Applied       bool    `json:"applied"`
	OversLost     int     `json:"overs_lost,omitempty"`
	ReducedOvers  int     `json:"reduced_overs,omitempty"`
	RevisedTarget int     `json:"revised_target,omitempty"`
	Adjustment    float64 `json:"adjustment,omitempty"`
}

// LegalBalls is the number of legal deliveries bowled so far
func (inn *Innings) LegalBalls() int {
	return inn.Overs*6 + inn.BallsThisOver
}

// BallsRemaining is how many legal deliveries are left in the innings
func (inn *Innings) BallsRemaining() int {
	remaining := inn.MaxOvers*6 - inn.LegalBalls()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OversExhausted reports whether the innings has used its allocation
func (inn *Innings) OversExhausted() bool {
	return inn.Overs >= inn.MaxOvers
}

// AllOut reports whether the batting side has run out of partners
func (inn *Innings) AllOut() bool {
	limit := inn.WicketLimit
	if limit == 0 {
		limit = inn.BattingTeam.EligibleCount() - 1
	}
	return inn.Wickets >= limit
}

// OverNotation renders completed overs plus spare balls, e.g. 12.3
func (inn *Innings) OverNotation() float64 {
	return float64(inn.Overs) + float64(inn.BallsThisOver)/10
}

// Clone returns a deep copy with no shared slices
func (inn Innings) Clone() Innings {
	out := inn
	out.BattingTeam = inn.BattingTeam.Clone()
	out.BowlingTeam = inn.BowlingTeam.Clone()
	out.Timeline = append([]Ball(nil), inn.Timeline...)
	out.FallOfWickets = append([]FallOfWicket(nil), inn.FallOfWickets...)
	out.FieldPlacements = append([]FieldPlacement(nil), inn.FieldPlacements...)
	return out
}

// Clone returns a deep copy of the match. Operations that produce a new
// snapshot start from this so the caller's value is never aliased.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	out := *m
	out.Teams = [2]Team{m.Teams[0].Clone(), m.Teams[1].Clone()}
	out.Innings = make([]Innings, len(m.Innings))
	for i := range m.Innings {
		out.Innings[i] = m.Innings[i].Clone()
	}
	if m.Weather != nil {
		w := *m.Weather
		out.Weather = &w
	}
	if m.Venue != nil {
		v := *m.Venue
		out.Venue = &v
	}
	out.SuperOver = m.SuperOver.Clone()
	return &out
}

// Current returns the innings in play, or nil before the first ball exists
func (m *Match) Current() *Innings {
	if m.CurrentInnings < 0 || m.CurrentInnings >= len(m.Innings) {
		return nil
	}
	return &m.Innings[m.CurrentInnings]
}

// Active resolves the match actually being played: the super over while
// one is in progress, otherwise the match itself.
func (m *Match) Active() *Match {
	if m.Status == StatusSuperOver && m.SuperOver != nil {
		return m.SuperOver
	}
	return m
}

// Team returns the squad with the given id
func (m *Match) Team(id string) *Team {
	for i := range m.Teams {
		if m.Teams[i].ID == id {
			return &m.Teams[i]
		}
	}
	return nil
}

// IsComplete reports whether the match has a result
func (m *Match) IsComplete() bool {
	return m.Status == StatusFinished
}
