package scoring

import (
	"context"
	"math"
	"time"

	"cricket-sim/models"

	"github.com/sirupsen/logrus"
)

const (
	minRating = 1.0
	maxRating = 100.0
)

// performance is one player's whole-match contribution
type performance struct {
	player  models.Player
	batting models.BattingRecord
	bowling models.BowlingRecord
}

// RatingDelta scores a match performance. Runs, a strike rate above 150,
// wickets, maidens and economy below 4 earn credit; a strike rate below 80
// and economy above 10 cost it. The result is bounded by limit either way.
func RatingDelta(bat models.BattingRecord, bowl models.BowlingRecord, limit float64) float64 {
	bat.Recalculate()
	bowl.Recalculate()

	delta := math.Min(float64(bat.Runs)/10, 5)
	if bat.Balls >= 6 && bat.StrikeRate > 150 {
		delta += 2
	}
	if bat.Balls >= 10 && bat.StrikeRate < 80 {
		delta -= 2
	}

	delta += 1.5 * float64(bowl.Wickets)
	delta += float64(bowl.Maidens)
	if bowl.Balls >= 6 {
		switch {
		case bowl.Economy < 4:
			delta += 2
		case bowl.Economy > 10:
			delta -= 2
		}
	}

	return math.Max(-limit, math.Min(limit, delta))
}

// ClampRating keeps a rating inside [1, 100]
func ClampRating(r float64) float64 {
	return math.Max(minRating, math.Min(maxRating, r))
}

// updateRatings folds every innings into per-player totals and saves the new
// ratings. A failed save is logged; the match result stands regardless.
func (e *Engine) updateRatings(ctx context.Context, m *models.Match) {
	if e.ratings == nil {
		return
	}
	ratings := MatchRatings(m, e.opts.MaxRatingDelta, e.opts.Now())
	if len(ratings) == 0 {
		return
	}

	if err := e.ratings.SaveRatings(ctx, ratings); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"match_id": m.ID,
			"players":  len(ratings),
		}).Error("Failed to save player ratings")
		return
	}

	e.log.WithFields(logrus.Fields{
		"match_id": m.ID,
		"players":  len(ratings),
	}).Debug("Player ratings saved")
}

// MatchRatings computes the new rating for every player in either eleven.
// Ratings start from the values seeded at creation, so finishing the same
// match twice produces the same numbers. The super over does not count.
func MatchRatings(m *models.Match, limit float64, now time.Time) []models.PlayerRating {
	perf := make(map[int]*performance)
	var order []int
	for _, team := range m.Teams {
		for _, p := range team.Players {
			if !p.Eligible() {
				continue
			}
			perf[p.ID] = &performance{player: p}
			order = append(order, p.ID)
		}
	}

	for _, inn := range m.Innings {
		for _, p := range inn.BattingTeam.Players {
			if pf, ok := perf[p.ID]; ok {
				pf.batting.Runs += p.Batting.Runs
				pf.batting.Balls += p.Batting.Balls
			}
		}
		for _, p := range inn.BowlingTeam.Players {
			if pf, ok := perf[p.ID]; ok {
				pf.bowling.Runs += p.Bowling.Runs
				pf.bowling.Balls += p.Bowling.Balls
				pf.bowling.Wickets += p.Bowling.Wickets
				pf.bowling.Maidens += p.Bowling.Maidens
			}
		}
	}

	ratings := make([]models.PlayerRating, 0, len(order))
	for _, id := range order {
		pf := perf[id]
		delta := RatingDelta(pf.batting, pf.bowling, limit)
		ratings = append(ratings, models.PlayerRating{
			PlayerID:      id,
			Name:          pf.player.Name,
			Rating:        ClampRating(pf.player.Rating + delta),
			MatchesPlayed: 1,
			LastDelta:     delta,
			UpdatedAt:     now,
		})
	}
	return ratings
}
