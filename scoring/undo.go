package scoring

import (
	"cricket-sim/models"
)

// UndoLastBall reverses the most recent delivery anywhere in the match. An
// empty second innings is discarded first, and an untouched super over is
// dropped so the last ball of the main match can be undone.
//
// Undoing a wicket restores the dismissed batter but leaves the partnership
// as the restored pair with no runs or balls; the earlier stand is not rebuilt.
func (e *Engine) UndoLastBall(m *models.Match) (*models.Match, error) {
	next := m.Clone()

	if next.SuperOver != nil {
		if hasBalls(next.SuperOver) {
			if err := undoIn(next.SuperOver); err != nil {
				return nil, err
			}
			next.Status = models.StatusSuperOver
			next.Result = "Match tied"
			next.WinnerID = ""
			e.touch(next)
			return next, nil
		}
		next.SuperOver = nil
	}

	if err := undoIn(next); err != nil {
		return nil, err
	}

	e.touch(next)
	return next, nil
}

func hasBalls(m *models.Match) bool {
	for _, inn := range m.Innings {
		if len(inn.Timeline) > 0 {
			return true
		}
	}
	return false
}

// undoIn pops the last ball of the match and reopens it if it had finished
func undoIn(m *models.Match) error {
	idx := m.CurrentInnings
	for len(m.Innings[idx].Timeline) == 0 {
		if idx == 0 {
			return ErrNothingToUndo
		}
		m.Innings = m.Innings[:idx]
		idx--
	}
	m.CurrentInnings = idx

	m.Status = models.StatusInProgress
	m.Result = ""
	m.WinnerID = ""

	reverseBall(&m.Innings[idx])
	return nil
}

// reverseBall removes the tail of the timeline and backs out everything it
// contributed
func reverseBall(inn *models.Innings) {
	last := len(inn.Timeline) - 1
	b := inn.Timeline[last]
	legal := b.Event.Legal()

	striker := inn.BattingTeam.Player(b.StrikerID)
	bowler := inn.BowlingTeam.Player(b.BowlerID)

	// Roll back into the over the ball completed
	if legal && inn.BallsThisOver == 0 {
		if bowler != nil && isMaiden(inn.Timeline, b.OverIndex, b.BowlerID) {
			bowler.Bowling.Maidens--
		}
		inn.Overs--
		inn.BallsThisOver = 6
	}
	if legal {
		inn.BallsThisOver--
	}

	inn.Timeline = inn.Timeline[:last]
	inn.Score -= b.Total()

	if bowler != nil {
		bowler.Bowling.Runs -= chargedToBowler(b.Event, b.Runs, b.Extras)
		if legal {
			bowler.Bowling.Balls--
		}
		if b.IsWicket && b.WicketType.CreditsBowler() {
			bowler.Bowling.Wickets--
		}
	}

	if striker != nil {
		striker.Batting.Runs -= b.Runs
		switch b.Runs {
		case 4:
			striker.Batting.Fours--
		case 6:
			striker.Batting.Sixes--
		}
		if legal {
			striker.Batting.Balls--
		}
	}

	if b.IsWicket {
		inn.Wickets--
		if striker != nil {
			striker.Batting.Out = false
			striker.Batting.Dismissal = ""
		}
		if n := len(inn.FallOfWickets); n > 0 {
			inn.FallOfWickets = inn.FallOfWickets[:n-1]
		}
		inn.Partnership = models.Partnership{BatterA: b.StrikerID, BatterB: b.NonStriker}
	} else {
		inn.Partnership.Runs -= b.Runs
		if legal {
			inn.Partnership.Balls--
		}
	}

	// The ball record knows who stood where before it was bowled
	inn.Striker = models.Selected(b.StrikerID)
	inn.NonStriker = models.Selected(b.NonStriker)
	inn.Bowler = models.Selected(b.BowlerID)
	inn.FreeHit = b.FreeHit

	recalculate(inn)
}
