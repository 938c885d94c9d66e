package scoring

import (
	"context"
	"fmt"

	"cricket-sim/models"
)

// ProcessBall applies one delivery and returns the resulting snapshot. While a
// super over is in progress the ball is scored in the super over. A nil match
// is returned together with ErrBowlerNotSelected or ErrStrikerNotSelected when
// the delivery cannot be bowled yet; the caller must not advance any state.
func (e *Engine) ProcessBall(ctx context.Context, m *models.Match, d models.BallDetails) (*models.Match, error) {
	if m.IsComplete() {
		return nil, ErrMatchFinished
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBall, err)
	}

	next := m.Clone()
	play := next.Active()
	inn := play.Current()
	if inn == nil {
		return nil, ErrMatchFinished
	}
	if inn.Bowler.Empty() {
		return nil, ErrBowlerNotSelected
	}
	if inn.Striker.Empty() || inn.NonStriker.Empty() {
		return nil, ErrStrikerNotSelected
	}

	if err := applyBall(inn, d); err != nil {
		return nil, err
	}
	e.checkInningsEnd(play)

	if play != next && play.IsComplete() {
		e.settleSuperOver(next)
	}
	if next.IsComplete() {
		e.updateRatings(ctx, next)
	}

	e.touch(next)
	return next, nil
}

// applyBall scores a delivery into the innings. The ball is appended to this
// innings' timeline before any innings transition happens.
func applyBall(inn *models.Innings, d models.BallDetails) error {
	striker := inn.BattingTeam.Player(inn.Striker.ID)
	bowler := inn.BowlingTeam.Player(inn.Bowler.ID)
	if striker == nil || bowler == nil {
		return fmt.Errorf("%w: striker or bowler is not in the innings squads", ErrInvalidSelection)
	}

	legal := d.Event.Legal()
	ball := models.Ball{
		Event:      d.Event,
		Runs:       d.Runs,
		Extras:     d.Extras,
		StrikerID:  inn.Striker.ID,
		NonStriker: inn.NonStriker.ID,
		BowlerID:   inn.Bowler.ID,
		OverIndex:  inn.Overs,
		FreeHit:    inn.FreeHit,
	}
	if d.FielderID != nil {
		ball.Fielder = models.Selected(*d.FielderID)
	}

	inn.Score += d.Runs + d.Extras
	bowler.Bowling.Runs += chargedToBowler(d.Event, d.Runs, d.Extras)
	if legal {
		bowler.Bowling.Balls++
		inn.BallsThisOver++
	}

	switch {
	case d.Event == models.EventNoBall:
		inn.FreeHit = true
	case legal:
		inn.FreeHit = false
	}

	// Batting
	striker.Batting.Runs += d.Runs
	switch d.Runs {
	case 4:
		striker.Batting.Fours++
	case 6:
		striker.Batting.Sixes++
	}
	inn.Partnership.Runs += d.Runs
	if legal {
		striker.Batting.Balls++
		inn.Partnership.Balls++
	}

	if d.Event == models.EventWicket {
		ball.WicketType = d.WicketType
		// Only a run out stands on a free hit
		if !ball.FreeHit || d.WicketType == models.WicketRunOut {
			ball.IsWicket = true
			inn.Wickets++
			striker.Batting.Out = true
			var fielder *models.Player
			if !ball.Fielder.Empty() {
				fielder = inn.BowlingTeam.Player(ball.Fielder.ID)
			}
			striker.Batting.Dismissal = dismissalText(d.WicketType, bowler, fielder)
			if d.WicketType.CreditsBowler() {
				bowler.Bowling.Wickets++
			}

			inn.FallOfWickets = append(inn.FallOfWickets, models.FallOfWicket{
				Score:    inn.Score,
				Wicket:   inn.Wickets,
				Over:     inn.OverNotation(),
				PlayerID: striker.ID,
				Name:     striker.Name,
			})

			inn.Striker = nextBatter(inn)
			inn.Partnership = models.Partnership{BatterA: inn.Striker.ID, BatterB: inn.NonStriker.ID}
		}
	}

	ball.Display = models.DisplayToken(d, ball.IsWicket)
	ball.Over = inn.OverNotation()

	if legal && d.RunsRun()%2 == 1 {
		inn.Striker, inn.NonStriker = inn.NonStriker, inn.Striker
	}

	inn.Timeline = append(inn.Timeline, ball)

	// End of over
	if inn.BallsThisOver == 6 {
		inn.Overs++
		inn.BallsThisOver = 0
		inn.Striker, inn.NonStriker = inn.NonStriker, inn.Striker
		if isMaiden(inn.Timeline, ball.OverIndex, bowler.ID) {
			bowler.Bowling.Maidens++
		}
		inn.FieldPlacements = nil
		if !inn.OversExhausted() {
			inn.Bowler = models.Slot{}
		}
	}

	recalculate(inn)
	return nil
}

// chargedToBowler is what a delivery adds to the bowler's figures. Byes and
// leg-byes are not the bowler's fault.
func chargedToBowler(event models.EventKind, runs, extras int) int {
	if event == models.EventBye || event == models.EventLegBye {
		return runs
	}
	return runs + extras
}

// isMaiden reports whether a completed over conceded nothing at all and was
// bowled entirely by one bowler
func isMaiden(timeline []models.Ball, overIndex, bowlerID int) bool {
	legal := 0
	for i := len(timeline) - 1; i >= 0; i-- {
		b := timeline[i]
		if b.OverIndex != overIndex {
			break
		}
		if b.BowlerID != bowlerID || b.Total() > 0 {
			return false
		}
		if b.Event.Legal() {
			legal++
		}
	}
	return legal == 6
}

// nextBatter finds the first not-out player who is not already at the crease
func nextBatter(inn *models.Innings) models.Slot {
	for _, p := range inn.BattingTeam.Players {
		if !p.Eligible() || p.Batting.Out || inn.NonStriker.Is(p.ID) {
			continue
		}
		if p.ID == inn.Striker.ID {
			continue
		}
		return models.Selected(p.ID)
	}
	return models.Slot{}
}

func dismissalText(wt models.WicketType, bowler, fielder *models.Player) string {
	fielderName := "sub"
	if fielder != nil {
		fielderName = fielder.Name
	}

	switch wt {
	case models.WicketCaught:
		if fielder != nil && fielder.ID == bowler.ID {
			return fmt.Sprintf("c. & b. %s", bowler.Name)
		}
		return fmt.Sprintf("c. %s b. %s", fielderName, bowler.Name)
	case models.WicketRunOut:
		if fielder == nil {
			return "run out"
		}
		return fmt.Sprintf("run out (%s)", fielderName)
	case models.WicketStumped:
		return fmt.Sprintf("st. %s b. %s", fielderName, bowler.Name)
	default:
		return fmt.Sprintf("%s b. %s", wt, bowler.Name)
	}
}

// recalculate derives every strike rate and economy from the totals
func recalculate(inn *models.Innings) {
	for i := range inn.BattingTeam.Players {
		inn.BattingTeam.Players[i].Batting.Recalculate()
		inn.BattingTeam.Players[i].Bowling.Recalculate()
	}
	for i := range inn.BowlingTeam.Players {
		inn.BowlingTeam.Players[i].Batting.Recalculate()
		inn.BowlingTeam.Players[i].Bowling.Recalculate()
	}
}
