package scoring

import (
	"context"
	"fmt"

	"cricket-sim/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	playingXI     = 11
	maxOvers      = 100
	defaultRating = 50.0
)

// Settings configures a new match
type Settings struct {
	Format          string              `json:"format"`
	Overs           int                 `json:"overs"`
	TeamNames       [2]string           `json:"team_names,omitempty"` // optional display overrides
	TossWinnerID    string              `json:"toss_winner_id"`
	TossDecision    models.TossDecision `json:"toss_decision"`
	RainProbability float64             `json:"rain_probability"` // percent, 0-100
	Venue           *models.Venue       `json:"venue,omitempty"`
}

// Validate checks settings against the two teams taking part
func (s Settings) Validate(teams [2]models.Team) error {
	if s.Overs < 1 || s.Overs > maxOvers {
		return fmt.Errorf("%w: overs must be between 1 and %d, got %d", ErrInvalidSettings, maxOvers, s.Overs)
	}
	if s.RainProbability < 0 || s.RainProbability > 100 {
		return fmt.Errorf("%w: rain probability must be between 0 and 100, got %v", ErrInvalidSettings, s.RainProbability)
	}
	if s.TossDecision != "" && s.TossDecision != models.DecisionBat && s.TossDecision != models.DecisionBowl {
		return fmt.Errorf("%w: unknown toss decision %q", ErrInvalidSettings, s.TossDecision)
	}
	if s.TossWinnerID != "" && s.TossWinnerID != teams[0].ID && s.TossWinnerID != teams[1].ID {
		return fmt.Errorf("%w: toss winner %q is not playing", ErrInvalidSettings, s.TossWinnerID)
	}

	if teams[0].ID == "" || teams[1].ID == "" {
		return fmt.Errorf("%w: both teams need an id", ErrInvalidSettings)
	}
	if teams[0].ID == teams[1].ID {
		return fmt.Errorf("%w: a team cannot play itself", ErrInvalidSettings)
	}

	seen := make(map[int]bool)
	for _, team := range teams {
		if len(team.Players) < playingXI {
			return fmt.Errorf("%w: %s has %d players, need at least %d",
				ErrInvalidSettings, team.Name, len(team.Players), playingXI)
		}
		for _, p := range team.Players {
			if seen[p.ID] {
				return fmt.Errorf("%w: player id %d appears twice", ErrInvalidSettings, p.ID)
			}
			seen[p.ID] = true
		}
	}
	return nil
}

// CreateMatch builds a new match after the toss. Stored ratings seed each
// player's reputation when a repository is configured; failing to read them
// never blocks the match. Any rain interruption is decided here, up front.
func (e *Engine) CreateMatch(ctx context.Context, teams [2]models.Team, settings Settings) (*models.Match, error) {
	if err := settings.Validate(teams); err != nil {
		return nil, err
	}

	// Freeze the squads: first eleven play, the rest are substitutes
	for i := range teams {
		teams[i] = teams[i].Clone()
		teams[i].ImpactPlayerUsed = false
		teams[i].ResetRecords()
		if settings.TeamNames[i] != "" {
			teams[i].Name = settings.TeamNames[i]
		}
		for j := range teams[i].Players {
			p := &teams[i].Players[j]
			p.IsSubstitute = j >= playingXI
			p.IsImpactPlayer = false
			if p.Rating <= 0 {
				p.Rating = defaultRating
			}
		}
	}

	e.seedRatings(ctx, &teams)

	toss := models.Toss{WinnerID: settings.TossWinnerID, Decision: settings.TossDecision}
	if toss.WinnerID == "" {
		toss.WinnerID = teams[0].ID
	}
	if toss.Decision == "" {
		toss.Decision = models.DecisionBat
	}

	batFirst := 0
	if (toss.WinnerID == teams[1].ID) == (toss.Decision == models.DecisionBat) {
		batFirst = 1
	}

	now := e.opts.Now()
	m := &models.Match{
		ID:              uuid.New().String(),
		Format:          settings.Format,
		Teams:           teams,
		OversPerInnings: settings.Overs,
		Toss:            toss,
		Status:          models.StatusInProgress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if settings.Venue != nil {
		v := *settings.Venue
		m.Venue = &v
	}

	m.Innings = []models.Innings{newInnings(teams[batFirst], teams[1-batFirst], settings.Overs, 0, 0)}
	m.Weather = e.rollRain(settings)

	e.log.WithFields(logrus.Fields{
		"match_id":   m.ID,
		"batting":    teams[batFirst].Name,
		"overs":      settings.Overs,
		"rain_match": m.Weather != nil,
	}).Info("Match created")

	return m, nil
}

// seedRatings overwrites squad ratings with anything previously saved
func (e *Engine) seedRatings(ctx context.Context, teams *[2]models.Team) {
	if e.ratings == nil {
		return
	}

	var ids []int
	for _, team := range teams {
		for _, p := range team.Players {
			ids = append(ids, p.ID)
		}
	}

	saved, err := e.ratings.LoadRatings(ctx, ids)
	if err != nil {
		// Treated as nothing saved yet
		e.log.WithError(err).Warn("Failed to load player ratings")
		return
	}

	for i := range teams {
		for j := range teams[i].Players {
			p := &teams[i].Players[j]
			if r, ok := saved[p.ID]; ok && r.Rating > 0 {
				p.Rating = r.Rating
			}
		}
	}
}

// rollRain pre-commits the innings and over at which rain will stop play
func (e *Engine) rollRain(settings Settings) *models.WeatherInterruption {
	if settings.RainProbability <= 0 || settings.Overs < 2 {
		return nil
	}
	if settings.Venue != nil && settings.Venue.Indoor() {
		return nil
	}
	if e.float64()*100 >= settings.RainProbability {
		return nil
	}

	return &models.WeatherInterruption{
		Innings:     e.intN(2),
		TriggerOver: 1 + e.intN(settings.Overs-1),
	}
}

// newInnings opens an innings with the first two available batters at the
// crease and the bowler still to be chosen
func newInnings(batting, bowling models.Team, overs, target, wicketLimit int) models.Innings {
	inn := models.Innings{
		BattingTeam: batting.Clone(),
		BowlingTeam: bowling.Clone(),
		MaxOvers:    overs,
		Target:      target,
		WicketLimit: wicketLimit,
	}

	var openers []int
	for _, p := range inn.BattingTeam.Players {
		if p.Eligible() {
			openers = append(openers, p.ID)
		}
		if len(openers) == 2 {
			break
		}
	}
	if len(openers) == 2 {
		inn.Striker = models.Selected(openers[0])
		inn.NonStriker = models.Selected(openers[1])
		inn.Partnership = models.Partnership{BatterA: openers[0], BatterB: openers[1]}
	}

	return inn
}
