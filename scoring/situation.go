package scoring

import (
	"math"

	"cricket-sim/models"
)

// UnreachableRate is the required run rate reported when runs are still
// needed but no balls remain
const UnreachableRate = 999.0

// Situation summarises where the match stands
type Situation struct {
	Innings         int                `json:"innings"` // 1-based
	SuperOver       bool               `json:"super_over"`
	Status          models.MatchStatus `json:"status"`
	BattingTeamName string             `json:"batting_team_name"`
	BowlingTeamName string             `json:"bowling_team_name"`
	Score           int                `json:"score"`
	Wickets         int                `json:"wickets"`
	Overs           float64            `json:"overs"`
	OversLeft       float64            `json:"overs_left"`
	IsChasing       bool               `json:"is_chasing"`
	Target          int                `json:"target,omitempty"`
	RunsNeeded      int                `json:"runs_needed,omitempty"`
	BallsRemaining  int                `json:"balls_remaining,omitempty"`
	CurrentRunRate  float64            `json:"current_run_rate"`
	RequiredRunRate float64            `json:"required_run_rate,omitempty"`
	Powerplay       bool               `json:"powerplay"`
	Result          string             `json:"result,omitempty"`
}

// MatchSituation derives the live situation of the innings in play
func MatchSituation(m *models.Match) Situation {
	play := m.Active()
	s := Situation{
		SuperOver: play != m,
		Status:    m.Status,
		Result:    m.Result,
	}

	inn := play.Current()
	if inn == nil {
		return s
	}

	remaining := inn.BallsRemaining()
	s.Innings = play.CurrentInnings + 1
	s.BattingTeamName = inn.BattingTeam.Name
	s.BowlingTeamName = inn.BowlingTeam.Name
	s.Score = inn.Score
	s.Wickets = inn.Wickets
	s.Overs = inn.OverNotation()
	s.OversLeft = float64(remaining/6) + float64(remaining%6)/10
	s.CurrentRunRate = CurrentRunRate(inn)
	s.Powerplay = inn.Overs < PowerplayOvers(inn.MaxOvers)

	if inn.Target > 0 {
		s.IsChasing = true
		s.Target = inn.Target
		s.RunsNeeded = max(inn.Target-inn.Score, 0)
		s.BallsRemaining = remaining
		s.RequiredRunRate = RequiredRunRate(inn)
	}
	return s
}

// PowerplayOvers is the length of the fielding-restriction period for a
// given innings length
func PowerplayOvers(overs int) int {
	switch {
	case overs >= 50:
		return 10
	case overs >= 20:
		return 6
	default:
		return max(1, int(math.Round(float64(overs)*0.3)))
	}
}

// CurrentRunRate is runs per six legal balls
func CurrentRunRate(inn *models.Innings) float64 {
	balls := inn.LegalBalls()
	if balls == 0 {
		return 0
	}
	return float64(inn.Score) / float64(balls) * 6
}

// RequiredRunRate is runs needed per six remaining balls. Zero outside a
// chase or once the target is reached.
func RequiredRunRate(inn *models.Innings) float64 {
	if inn.Target == 0 {
		return 0
	}
	needed := inn.Target - inn.Score
	if needed <= 0 {
		return 0
	}
	balls := inn.BallsRemaining()
	if balls == 0 {
		return UnreachableRate
	}
	return float64(needed) / float64(balls) * 6
}
