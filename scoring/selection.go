package scoring

import (
	"fmt"
	"math"

	"cricket-sim/models"
)

// ChangeBowler puts a bowler on. Nobody may bowl two overs in a row.
func (e *Engine) ChangeBowler(m *models.Match, playerID int) (*models.Match, error) {
	if m.IsComplete() {
		return nil, ErrMatchFinished
	}

	next := m.Clone()
	inn := next.Active().Current()
	if inn == nil {
		return nil, ErrMatchFinished
	}

	p := inn.BowlingTeam.Player(playerID)
	if p == nil || !p.Eligible() {
		return nil, fmt.Errorf("%w: player %d cannot bowl for %s", ErrInvalidSelection, playerID, inn.BowlingTeam.Name)
	}
	if prev, ok := previousOverBowler(inn); ok && prev == playerID && inn.BallsThisOver == 0 {
		return nil, fmt.Errorf("%w: %s bowled the previous over", ErrInvalidSelection, p.Name)
	}

	inn.Bowler = models.Selected(playerID)
	e.touch(next)
	return next, nil
}

// previousOverBowler returns who bowled the last ball of the previous over
func previousOverBowler(inn *models.Innings) (int, bool) {
	for i := len(inn.Timeline) - 1; i >= 0; i-- {
		b := inn.Timeline[i]
		if b.OverIndex < inn.Overs {
			return b.BowlerID, b.OverIndex == inn.Overs-1
		}
	}
	return 0, false
}

// SelectNextBatter sends in a new batter after a wicket left the striker's end empty
func (e *Engine) SelectNextBatter(m *models.Match, playerID int) (*models.Match, error) {
	if m.IsComplete() {
		return nil, ErrMatchFinished
	}

	next := m.Clone()
	inn := next.Active().Current()
	if inn == nil {
		return nil, ErrMatchFinished
	}
	if !inn.Striker.Empty() {
		return nil, fmt.Errorf("%w: a striker is already at the crease", ErrInvalidSelection)
	}

	p := inn.BattingTeam.Player(playerID)
	if p == nil || !p.Eligible() || p.Batting.Out || inn.NonStriker.Is(playerID) {
		return nil, fmt.Errorf("%w: player %d cannot bat for %s", ErrInvalidSelection, playerID, inn.BattingTeam.Name)
	}

	inn.Striker = models.Selected(playerID)
	inn.Partnership = models.Partnership{BatterA: playerID, BatterB: inn.NonStriker.ID}
	e.touch(next)
	return next, nil
}

// ReplaceIncomingBatter overrules the batter sent in automatically after the
// last delivery's wicket. The incoming batter must not have faced a ball.
func (e *Engine) ReplaceIncomingBatter(m *models.Match, playerID int) (*models.Match, error) {
	if m.IsComplete() {
		return nil, ErrMatchFinished
	}

	next := m.Clone()
	inn := next.Active().Current()
	if inn == nil || len(inn.Timeline) == 0 || !inn.Timeline[len(inn.Timeline)-1].IsWicket {
		return nil, fmt.Errorf("%w: no batter has just come in", ErrInvalidSelection)
	}
	last := inn.Timeline[len(inn.Timeline)-1]

	var slot *models.Slot
	for _, s := range []*models.Slot{&inn.Striker, &inn.NonStriker} {
		if s.Empty() || s.ID == last.StrikerID || s.ID == last.NonStriker {
			continue
		}
		if p := inn.BattingTeam.Player(s.ID); p != nil && p.Batting.Balls == 0 {
			slot = s
		}
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: the incoming batter has already faced", ErrInvalidSelection)
	}
	if slot.ID == playerID {
		return next, nil
	}

	p := inn.BattingTeam.Player(playerID)
	if p == nil || !p.Eligible() || p.Batting.Out || inn.Striker.Is(playerID) || inn.NonStriker.Is(playerID) {
		return nil, fmt.Errorf("%w: player %d cannot bat for %s", ErrInvalidSelection, playerID, inn.BattingTeam.Name)
	}

	*slot = models.Selected(playerID)
	inn.Partnership = models.Partnership{BatterA: inn.Striker.ID, BatterB: inn.NonStriker.ID}
	e.touch(next)
	return next, nil
}

// UseImpactPlayer swaps a substitute into a team's eleven. Each team gets one
// swap per match and neither player may be batting or bowling right now.
func (e *Engine) UseImpactPlayer(m *models.Match, teamID string, outID, inID int) (*models.Match, error) {
	if m.IsComplete() {
		return nil, ErrMatchFinished
	}

	next := m.Clone()
	team := next.Team(teamID)
	if team == nil {
		return nil, fmt.Errorf("%w: unknown team %q", ErrInvalidSelection, teamID)
	}
	if team.ImpactPlayerUsed {
		return nil, ErrImpactPlayerUsed
	}

	out, in := team.Player(outID), team.Player(inID)
	if out == nil || !out.Eligible() {
		return nil, fmt.Errorf("%w: player %d is not in the eleven", ErrInvalidSelection, outID)
	}
	if in == nil || !in.IsSubstitute || in.IsImpactPlayer {
		return nil, fmt.Errorf("%w: player %d is not an available substitute", ErrInvalidSelection, inID)
	}

	if inn := next.Active().Current(); inn != nil {
		if inn.Striker.Is(outID) || inn.NonStriker.Is(outID) || inn.Bowler.Is(outID) {
			return nil, fmt.Errorf("%w: player %d is on the field in an active role", ErrInvalidSelection, outID)
		}
	}

	swap := func(t *models.Team) {
		if t.ID != teamID {
			return
		}
		t.ImpactPlayerUsed = true
		if p := t.Player(outID); p != nil {
			p.IsSubstitute = true
			p.IsImpactPlayer = false
		}
		if p := t.Player(inID); p != nil {
			p.IsImpactPlayer = true
		}
	}

	for _, match := range []*models.Match{next, next.SuperOver} {
		if match == nil {
			continue
		}
		for i := range match.Teams {
			swap(&match.Teams[i])
		}
		for i := range match.Innings {
			swap(&match.Innings[i].BattingTeam)
			swap(&match.Innings[i].BowlingTeam)
		}
	}

	e.touch(next)
	return next, nil
}

// BowlingQuota is the most overs one bowler may bowl in an innings
func BowlingQuota(overs int) int {
	return int(math.Ceil(float64(overs) / 5))
}

// NextBowler picks a bowler for the coming over: whoever has bowled least,
// has quota left and did not bowl the previous over. Ties go to the player
// lowest in the order, where specialist bowlers usually sit.
func NextBowler(m *models.Match) (models.Slot, error) {
	inn := m.Active().Current()
	if inn == nil || m.IsComplete() {
		return models.Slot{}, ErrMatchFinished
	}

	prev, hasPrev := previousOverBowler(inn)
	quota := BowlingQuota(inn.MaxOvers) * 6

	pick := func(respectQuota bool) models.Slot {
		best := models.Slot{}
		bestBalls := math.MaxInt
		players := inn.BowlingTeam.Players
		for i := len(players) - 1; i >= 0; i-- {
			p := players[i]
			if !p.Eligible() || (hasPrev && p.ID == prev) {
				continue
			}
			if respectQuota && p.Bowling.Balls >= quota {
				continue
			}
			if p.Bowling.Balls < bestBalls {
				best = models.Selected(p.ID)
				bestBalls = p.Bowling.Balls
			}
		}
		return best
	}

	if s := pick(true); !s.Empty() {
		return s, nil
	}
	if s := pick(false); !s.Empty() {
		return s, nil
	}
	return models.Slot{}, fmt.Errorf("%w: no bowler available", ErrInvalidSelection)
}
