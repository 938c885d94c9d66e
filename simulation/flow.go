package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cricket-sim/models"
	"cricket-sim/scoring"

	"github.com/sirupsen/logrus"
)

// StopReason says why PlayOver stopped feeding deliveries
type StopReason string

const (
	StopOverComplete      StopReason = "over_complete"
	StopInningsComplete   StopReason = "innings_complete"
	StopMatchComplete     StopReason = "match_complete"
	StopBowlerNeeded      StopReason = "bowler_needed"
	StopBatterNeeded      StopReason = "batter_needed"
	StopOutcomesExhausted StopReason = "outcomes_exhausted"
	StopCancelled         StopReason = "cancelled"
)

// BatterSelector picks the batter to come in after a wicket. Returning 0
// keeps the batter the engine sent in.
type BatterSelector func(ctx context.Context, m *models.Match) (int, error)

// BallObserver sees every delivery the flow applies
type BallObserver func(m *models.Match, b models.Ball)

// PlayOptions tune a single PlayOver call
type PlayOptions struct {
	AutoBowler   bool // pick a bowler when none is selected
	SelectBatter BatterSelector
	Observe      BallObserver
	BallDelay    time.Duration
}

// OverReport is the outcome of PlayOver. Match is the last valid snapshot.
type OverReport struct {
	Match      *models.Match               `json:"match"`
	Simulation models.OverSimulationResult `json:"simulation"`
	Applied    int                         `json:"applied"`
	Stop       StopReason                  `json:"stop"`
	Rain       bool                        `json:"rain"`
}

// Flow drives simulated overs through the match engine
type Flow struct {
	engine     *scoring.Engine
	analyzer   *Analyzer
	dispatcher *Dispatcher
	log        *logrus.Entry
}

// NewFlow creates a simulation flow
func NewFlow(engine *scoring.Engine, analyzer *Analyzer, dispatcher *Dispatcher, log *logrus.Entry) *Flow {
	return &Flow{engine: engine, analyzer: analyzer, dispatcher: dispatcher, log: log}
}

type position struct {
	superOver bool
	innings   int
	overs     int
}

func positionOf(m *models.Match) position {
	play := m.Active()
	p := position{superOver: play != m, innings: play.CurrentInnings}
	if inn := play.Current(); inn != nil {
		p.overs = inn.Overs
	}
	return p
}

// PlayOver simulates the rest of the current over and applies it ball by
// ball. If no over can be simulated the error is returned with a nil report
// and the caller's match stands. Once deliveries are being applied the report
// always carries the latest valid snapshot.
func (f *Flow) PlayOver(ctx context.Context, m *models.Match, opts PlayOptions) (*OverReport, error) {
	if m.IsComplete() {
		return nil, scoring.ErrMatchFinished
	}

	current := m
	if inn := current.Active().Current(); inn != nil && inn.Bowler.Empty() {
		if !opts.AutoBowler {
			return nil, scoring.ErrBowlerNotSelected
		}
		slot, err := scoring.NextBowler(current)
		if err != nil {
			return nil, err
		}
		if current, err = f.engine.ChangeBowler(current, slot.ID); err != nil {
			return nil, err
		}
	}

	cctx, err := f.analyzer.Analyze(current)
	if err != nil {
		return nil, err
	}
	sim, err := f.dispatcher.SimulateOver(ctx, cctx)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate over: %w", err)
	}

	report := &OverReport{Match: current, Simulation: sim}
	start := positionOf(current)

	for i, o := range sim.Outcomes {
		if i > 0 && opts.BallDelay > 0 {
			if !pause(ctx, opts.BallDelay) {
				report.Stop = StopCancelled
				return report, nil
			}
		}
		if ctx.Err() != nil {
			report.Stop = StopCancelled
			return report, nil
		}

		d, err := o.Details()
		if err != nil {
			return report, err
		}
		before := positionOf(current)
		next, err := f.engine.ProcessBall(ctx, current, d)
		if errors.Is(err, scoring.ErrBowlerNotSelected) {
			report.Stop = StopBowlerNeeded
			return report, nil
		}
		if errors.Is(err, scoring.ErrStrikerNotSelected) {
			report.Stop = StopBatterNeeded
			return report, nil
		}
		if err != nil {
			return report, err
		}
		current = next
		report.Match = current
		report.Applied++

		ball := lastBall(current, before)
		if opts.Observe != nil {
			opts.Observe(current, ball)
		}

		if ball.IsWicket && opts.SelectBatter != nil && !current.IsComplete() && sameInnings(positionOf(current), before) {
			id, err := opts.SelectBatter(ctx, current)
			if err != nil {
				return report, fmt.Errorf("failed to select next batter: %w", err)
			}
			if id != 0 {
				if current, err = f.engine.ReplaceIncomingBatter(current, id); err != nil {
					return report, err
				}
				report.Match = current
			}
		}

		if inn := current.Current(); inn != nil && scoring.RainDue(current, inn.Overs, current.CurrentInnings) {
			if current, err = f.engine.HandleRainInterruption(ctx, current, inn.Overs, current.CurrentInnings); err != nil {
				return report, err
			}
			report.Match = current
			report.Rain = true
		}

		now := positionOf(current)
		switch {
		case current.IsComplete():
			report.Stop = StopMatchComplete
		case !sameInnings(now, start):
			report.Stop = StopInningsComplete
		case now.overs > start.overs:
			report.Stop = StopOverComplete
		}
		if report.Stop != "" {
			f.log.WithFields(logrus.Fields{
				"match_id": m.ID,
				"applied":  report.Applied,
				"stop":     report.Stop,
				"strategy": sim.Strategy,
			}).Debug("Over played")
			return report, nil
		}
	}

	report.Stop = StopOutcomesExhausted
	return report, nil
}

func sameInnings(a, b position) bool {
	return a.superOver == b.superOver && a.innings == b.innings
}

// lastBall finds the delivery just bowled in the innings it was bowled in
func lastBall(m *models.Match, at position) models.Ball {
	play := m
	if at.superOver && m.SuperOver != nil {
		play = m.SuperOver
	}
	if at.innings >= len(play.Innings) {
		return models.Ball{}
	}
	tl := play.Innings[at.innings].Timeline
	if len(tl) == 0 {
		return models.Ball{}
	}
	return tl[len(tl)-1]
}

// pause waits for d unless the context ends first
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
