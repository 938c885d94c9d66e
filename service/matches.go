// Package service runs live matches for the API. Calls on one match are
// serialized; different matches proceed in parallel.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cricket-sim/models"
	"cricket-sim/scoring"
	"cricket-sim/simulation"
	"cricket-sim/store"

	"github.com/sirupsen/logrus"
)

// RainForecaster turns a venue forecast into a rain probability
type RainForecaster interface {
	RainProbability(ctx context.Context, venue models.Venue, start time.Time) (float64, error)
}

// ProjectionRecorder keeps projections for later comparison
type ProjectionRecorder interface {
	SaveProjection(ctx context.Context, p *simulation.Projection) error
}

// Deps are the collaborators of a MatchService. Weather and Projections are optional.
type Deps struct {
	Engine      *scoring.Engine
	Analyzer    *simulation.Analyzer
	Dispatcher  *simulation.Dispatcher
	Projector   *simulation.Projector
	Store       store.MatchStore
	Weather     RainForecaster
	Projections ProjectionRecorder
}

// Config tunes a MatchService
type Config struct {
	BallDelay time.Duration // pacing between simulated balls when a caller asks for it
	Now       func() time.Time
}

// CreateRequest is everything needed to start a match
type CreateRequest struct {
	Teams    [2]models.Team   `json:"teams"`
	Settings scoring.Settings `json:"settings"`
	// ForecastRain replaces Settings.RainProbability with the venue forecast
	ForecastRain bool      `json:"forecast_rain,omitempty"`
	Start        time.Time `json:"start,omitempty"`
}

// SimulateRequest tunes one simulated over
type SimulateRequest struct {
	AutoBowler bool `json:"auto_bowler"`
	Paced      bool `json:"paced"`
}

// MatchService owns live matches
type MatchService struct {
	deps Deps
	cfg  Config
	log  *logrus.Entry
	flow *simulation.Flow
	feed *Feed

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMatchService creates a service
func NewMatchService(deps Deps, cfg Config, log *logrus.Entry) *MatchService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log = log.WithField("component", "match_service")
	return &MatchService{
		deps:  deps,
		cfg:   cfg,
		log:   log,
		flow:  simulation.NewFlow(deps.Engine, deps.Analyzer, deps.Dispatcher, log),
		feed:  NewFeed(),
		locks: make(map[string]*sync.Mutex),
	}
}

// Feed returns the live event feed
func (s *MatchService) Feed() *Feed {
	return s.feed
}

func (s *MatchService) lock(id string) func() {
	for {
		s.locksMu.Lock()
		mu, ok := s.locks[id]
		if !ok {
			mu = &sync.Mutex{}
			s.locks[id] = mu
		}
		s.locksMu.Unlock()

		mu.Lock()
		// Delete may have retired mu while we waited on it.
		s.locksMu.Lock()
		current := s.locks[id] == mu
		s.locksMu.Unlock()
		if current {
			return mu.Unlock
		}
		mu.Unlock()
	}
}

// Create starts a new match and stores it
func (s *MatchService) Create(ctx context.Context, req CreateRequest) (*models.Match, error) {
	settings := req.Settings
	if req.ForecastRain && settings.Venue != nil && s.deps.Weather != nil {
		start := req.Start
		if start.IsZero() {
			start = s.cfg.Now()
		}
		p, err := s.deps.Weather.RainProbability(ctx, *settings.Venue, start)
		if err != nil {
			s.log.WithError(err).WithField("venue", settings.Venue.Name).Warn("Rain forecast unavailable, keeping requested probability")
		} else {
			settings.RainProbability = p
		}
	}

	m, err := s.deps.Engine.CreateMatch(ctx, req.Teams, settings)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Store.Put(ctx, m); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"match_id":         m.ID,
		"overs":            m.OversPerInnings,
		"rain_probability": settings.RainProbability,
		"rain_scheduled":   m.Weather != nil,
	}).Debug("Match stored")
	s.feed.Publish(Event{Type: EventCreated, MatchID: m.ID, Match: m, At: s.cfg.Now()})
	return m, nil
}

// Get returns the latest snapshot of a match
func (s *MatchService) Get(ctx context.Context, id string) (*models.Match, error) {
	return s.deps.Store.Get(ctx, id)
}

// List returns the ids of every stored match
func (s *MatchService) List(ctx context.Context) ([]string, error) {
	return s.deps.Store.List(ctx)
}

// Delete drops a match and everything remembered about it
func (s *MatchService) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()
	if err := s.deps.Store.Delete(ctx, id); err != nil {
		return err
	}

	s.locksMu.Lock()
	delete(s.locks, id)
	s.locksMu.Unlock()
	s.deps.Dispatcher.Forget(id)
	return nil
}

// update applies fn to the stored match and saves the result
func (s *MatchService) update(ctx context.Context, id string, kind EventType, fn func(*models.Match) (*models.Match, error)) (*models.Match, error) {
	unlock := s.lock(id)
	defer unlock()

	m, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(m)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Store.Put(ctx, next); err != nil {
		return nil, err
	}

	s.feed.Publish(Event{Type: kind, MatchID: id, Match: next, At: s.cfg.Now()})
	s.announceFinish(m, next)
	return next, nil
}

func (s *MatchService) announceFinish(before, after *models.Match) {
	if before.IsComplete() || !after.IsComplete() {
		return
	}
	s.log.WithFields(logrus.Fields{
		"match_id": after.ID,
		"result":   after.Result,
	}).Info("Match finished")
	s.feed.Publish(Event{Type: EventFinished, MatchID: after.ID, Match: after, At: s.cfg.Now()})
}

// Ball scores one delivery, then lets the scheduled rain fall if it is due
func (s *MatchService) Ball(ctx context.Context, id string, d models.BallDetails) (*models.Match, error) {
	var rained bool
	next, err := s.update(ctx, id, EventBall, func(m *models.Match) (*models.Match, error) {
		next, err := s.deps.Engine.ProcessBall(ctx, m, d)
		if err != nil {
			return nil, err
		}
		if inn := next.Current(); inn != nil && scoring.RainDue(next, inn.Overs, next.CurrentInnings) {
			rained = true
			return s.deps.Engine.HandleRainInterruption(ctx, next, inn.Overs, next.CurrentInnings)
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	if rained {
		s.feed.Publish(Event{Type: EventRain, MatchID: id, Match: next, At: s.cfg.Now()})
	}
	return next, nil
}

// Undo reverts the last delivery
func (s *MatchService) Undo(ctx context.Context, id string) (*models.Match, error) {
	return s.update(ctx, id, EventUndo, s.deps.Engine.UndoLastBall)
}

// ChangeBowler puts a bowler on for the next over
func (s *MatchService) ChangeBowler(ctx context.Context, id string, playerID int) (*models.Match, error) {
	return s.update(ctx, id, EventUpdated, func(m *models.Match) (*models.Match, error) {
		return s.deps.Engine.ChangeBowler(m, playerID)
	})
}

// SelectBatter sends in the next batter. When the engine has already sent
// someone in after the last wicket, that choice is overruled instead.
func (s *MatchService) SelectBatter(ctx context.Context, id string, playerID int) (*models.Match, error) {
	return s.update(ctx, id, EventUpdated, func(m *models.Match) (*models.Match, error) {
		if inn := m.Active().Current(); inn != nil && !inn.Striker.Empty() {
			return s.deps.Engine.ReplaceIncomingBatter(m, playerID)
		}
		return s.deps.Engine.SelectNextBatter(m, playerID)
	})
}

// UpdateField replaces the fielding positions
func (s *MatchService) UpdateField(ctx context.Context, id string, placements []models.FieldPlacement) (*models.Match, error) {
	return s.update(ctx, id, EventUpdated, func(m *models.Match) (*models.Match, error) {
		return s.deps.Engine.UpdateFieldPlacements(m, placements)
	})
}

// ImpactPlayer swaps a substitute into a team's XI
func (s *MatchService) ImpactPlayer(ctx context.Context, id, teamID string, outID, inID int) (*models.Match, error) {
	return s.update(ctx, id, EventUpdated, func(m *models.Match) (*models.Match, error) {
		return s.deps.Engine.UseImpactPlayer(m, teamID, outID, inID)
	})
}

// Situation summarises the innings in play
func (s *MatchService) Situation(ctx context.Context, id string) (scoring.Situation, error) {
	m, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return scoring.Situation{}, err
	}
	return scoring.MatchSituation(m), nil
}

// Context is the strategy-level view of the match
func (s *MatchService) Context(ctx context.Context, id string) (simulation.CricketContext, error) {
	m, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return simulation.CricketContext{}, err
	}
	c, err := s.deps.Analyzer.Analyze(m)
	if err != nil {
		return simulation.CricketContext{}, err
	}
	c.PreviousPatternID = s.deps.Dispatcher.LastPattern(id)
	return c, nil
}

// SimulateOver plays the rest of the current over. Balls already applied
// are kept even when a later step fails.
func (s *MatchService) SimulateOver(ctx context.Context, id string, req SimulateRequest) (*simulation.OverReport, error) {
	unlock := s.lock(id)
	defer unlock()

	m, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	opts := simulation.PlayOptions{
		AutoBowler: req.AutoBowler,
		Observe: func(m *models.Match, b models.Ball) {
			ball := b
			s.feed.Publish(Event{Type: EventBall, MatchID: id, Match: m, Ball: &ball, At: s.cfg.Now()})
		},
	}
	if req.Paced {
		opts.BallDelay = s.cfg.BallDelay
	}

	report, err := s.flow.PlayOver(ctx, m, opts)
	if report == nil {
		return nil, err
	}

	if report.Match != m {
		// the caller going away must not lose balls already bowled
		if perr := s.deps.Store.Put(context.WithoutCancel(ctx), report.Match); perr != nil {
			return nil, errors.Join(err, perr)
		}
		if report.Rain {
			s.feed.Publish(Event{Type: EventRain, MatchID: id, Match: report.Match, At: s.cfg.Now()})
		}
		s.announceFinish(m, report.Match)
	}
	if err != nil {
		return report, err
	}

	s.log.WithFields(logrus.Fields{
		"match_id": id,
		"strategy": report.Simulation.Strategy,
		"applied":  report.Applied,
		"stop":     report.Stop,
	}).Debug("Simulated over")
	return report, nil
}

// Project estimates the result by playing the match out many times
func (s *MatchService) Project(ctx context.Context, id string, runs int) (*simulation.Projection, error) {
	if s.deps.Projector == nil {
		return nil, fmt.Errorf("projections are not enabled")
	}
	m, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := s.deps.Projector.Project(ctx, m, runs)
	if err != nil {
		return nil, err
	}

	if s.deps.Projections != nil {
		if err := s.deps.Projections.SaveProjection(ctx, p); err != nil {
			s.log.WithError(err).WithField("match_id", id).Warn("Failed to record projection")
		}
	}
	return p, nil
}

// CacheStats exposes the over cache counters
func (s *MatchService) CacheStats() simulation.CacheStats {
	return s.deps.Dispatcher.CacheStats()
}

// Strategies lists the registered strategies in dispatch order
func (s *MatchService) Strategies() []string {
	return s.deps.Dispatcher.Strategies()
}
