package scoring

import (
	"fmt"

	"cricket-sim/models"

	"github.com/sirupsen/logrus"
)

const superOverWickets = 2

// checkInningsEnd ends the current innings when the chase is complete, the
// batting side is all out or the overs have run out
func (e *Engine) checkInningsEnd(m *models.Match) {
	inn := m.Current()
	if inn == nil || m.IsComplete() {
		return
	}

	chased := inn.Target > 0 && inn.Score >= inn.Target
	if chased || inn.AllOut() || inn.OversExhausted() {
		e.endInnings(m)
	}
}

// endInnings swaps the sides over, or finishes the match after the second innings
func (e *Engine) endInnings(m *models.Match) {
	if m.CurrentInnings > 0 {
		e.finishMatch(m)
		return
	}

	first := m.Current()
	batting := m.Team(first.BowlingTeam.ID)
	bowling := m.Team(first.BattingTeam.ID)

	// A rain-shortened first innings shortens the reply too
	overs := first.MaxOvers
	wicketLimit := first.WicketLimit

	m.Innings = append(m.Innings, newInnings(*batting, *bowling, overs, first.Score+1, wicketLimit))
	m.CurrentInnings = 1

	e.log.WithFields(logrus.Fields{
		"match_id": m.ID,
		"score":    first.Score,
		"wickets":  first.Wickets,
		"target":   first.Score + 1,
	}).Info("Innings complete")
}

// finishMatch records the result. A tie in the main match starts a super over.
func (e *Engine) finishMatch(m *models.Match) {
	winnerID, result := matchResult(m)
	m.Result = result
	m.WinnerID = winnerID

	if winnerID == "" && m.Format != superOverFormat {
		m.SuperOver = newSuperOver(m)
		m.Status = models.StatusSuperOver
		e.log.WithField("match_id", m.ID).Info("Match tied, super over to follow")
		return
	}

	m.Status = models.StatusFinished
	e.log.WithFields(logrus.Fields{
		"match_id": m.ID,
		"result":   result,
	}).Info("Match finished")
}

// matchResult describes the outcome of a completed two-innings contest
func matchResult(m *models.Match) (winnerID, result string) {
	if len(m.Innings) < 2 {
		return "", ""
	}
	chase := m.Innings[1]

	switch {
	case chase.Score >= chase.Target:
		limit := chase.WicketLimit
		if limit == 0 {
			limit = chase.BattingTeam.EligibleCount() - 1
		}
		margin := limit - chase.Wickets
		return chase.BattingTeam.ID, fmt.Sprintf("%s won by %d %s", chase.BattingTeam.Name, margin, plural(margin, "wicket"))
	case chase.Score == chase.Target-1:
		return "", "Match tied"
	default:
		margin := chase.Target - 1 - chase.Score
		return chase.BowlingTeam.ID, fmt.Sprintf("%s won by %d %s", chase.BowlingTeam.Name, margin, plural(margin, "run"))
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

const superOverFormat = "super_over"

// newSuperOver builds the one-over decider. The side that batted second bats first.
func newSuperOver(m *models.Match) *models.Match {
	batting := m.Team(m.Innings[1].BattingTeam.ID).Clone()
	bowling := m.Team(m.Innings[1].BowlingTeam.ID).Clone()
	batting.ResetRecords()
	bowling.ResetRecords()

	so := &models.Match{
		ID:              m.ID + "-super-over",
		Format:          superOverFormat,
		Teams:           [2]models.Team{m.Teams[0].Clone(), m.Teams[1].Clone()},
		OversPerInnings: 1,
		Toss:            m.Toss,
		Status:          models.StatusInProgress,
		CreatedAt:       m.UpdatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	so.Innings = []models.Innings{newInnings(batting, bowling, 1, 0, superOverWickets)}
	return so
}

// settleSuperOver copies a decided super over back onto the main match
func (e *Engine) settleSuperOver(m *models.Match) {
	so := m.SuperOver
	m.Status = models.StatusFinished
	m.WinnerID = so.WinnerID

	if so.WinnerID == "" {
		m.Result = "Match tied (super over tied)"
	} else {
		m.Result = fmt.Sprintf("%s won the super over", m.Team(so.WinnerID).Name)
	}

	e.log.WithFields(logrus.Fields{
		"match_id": m.ID,
		"result":   m.Result,
	}).Info("Super over decided")
}
