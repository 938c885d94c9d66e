package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"cricket-sim/models"
	"cricket-sim/scoring"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// maxProjectedOvers stops a run that somehow never finishes
const maxProjectedOvers = 1000

var ErrProjectionFailed = errors.New("no projection run completed")

// ScoreSummary describes the spread of one team's final totals
type ScoreSummary struct {
	Expected     float64     `json:"expected"`
	StdDev       float64     `json:"std_dev"`
	P10          float64     `json:"p10"`
	Median       float64     `json:"median"`
	P90          float64     `json:"p90"`
	Distribution map[int]int `json:"distribution"`
}

// Projection is the aggregate of many simulated finishes of one match
type Projection struct {
	MatchID        string                  `json:"match_id"`
	Runs           int                     `json:"runs"`
	WinProbability map[string]float64      `json:"win_probability"`
	TieProbability float64                 `json:"tie_probability"`
	SuperOverRate  float64                 `json:"super_over_rate"`
	Scores         map[string]ScoreSummary `json:"scores"`
	Duration       time.Duration           `json:"duration"`
}

type projectedFinish struct {
	winnerID  string
	superOver bool
	scores    map[string]int
}

// ProjectorConfig tunes a Projector
type ProjectorConfig struct {
	Workers          int
	Runs             int
	RainTargetJitter float64
	Rand             rand.Source
}

// Projector plays the rest of a match many times over across a pool of
// workers, sampling every over from the statistical model.
type Projector struct {
	analyzer *Analyzer
	cfg      ProjectorConfig
	log      *logrus.Entry
	quiet    *logrus.Entry

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProjector creates a projector
func NewProjector(analyzer *Analyzer, cfg ProjectorConfig, log *logrus.Entry) *Projector {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Runs <= 0 {
		cfg.Runs = 1000
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	// simulated matches would otherwise log every innings change
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	return &Projector{
		analyzer: analyzer,
		cfg:      cfg,
		log:      log,
		quiet:    logrus.NewEntry(discard),
		rng:      rand.New(cfg.Rand),
	}
}

func (p *Projector) source() rand.Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return rand.NewPCG(p.rng.Uint64(), p.rng.Uint64())
}

// Project simulates runs finishes of the match from its current state. runs
// of zero uses the configured default.
func (p *Projector) Project(ctx context.Context, m *models.Match, runs int) (*Projection, error) {
	if m.IsComplete() {
		return nil, scoring.ErrMatchFinished
	}
	if runs <= 0 {
		runs = p.cfg.Runs
	}
	started := time.Now()

	resultsChan := make(chan projectedFinish, runs)
	var wg sync.WaitGroup

	workers := min(p.cfg.Workers, runs)
	runsPerWorker := runs / workers
	remainder := runs % workers

	for i := 0; i < workers; i++ {
		wg.Add(1)

		workerRuns := runsPerWorker
		if i < remainder {
			workerRuns++
		}

		opts := scoring.DefaultOptions()
		opts.RainTargetJitter = p.cfg.RainTargetJitter
		opts.Rand = rand.New(p.source())
		engine := scoring.NewEngine(nil, p.quiet, opts)
		sampler := NewStatisticalStrategy(p.analyzer, p.source(), 0, 0)

		go func(workerID, count int) {
			defer wg.Done()

			for j := 0; j < count; j++ {
				if ctx.Err() != nil {
					return
				}
				finish, err := p.playOut(ctx, engine, sampler, m)
				if err != nil {
					p.log.WithFields(logrus.Fields{
						"match_id": m.ID,
						"worker":   workerID,
					}).WithError(err).Warn("Projection run failed")
					continue
				}
				resultsChan <- finish
			}
		}(i, workerRuns)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var results []projectedFinish
	for r := range resultsChan {
		results = append(results, r)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrProjectionFailed
	}

	proj := aggregateProjection(m, results)
	proj.Duration = time.Since(started)

	p.log.WithFields(logrus.Fields{
		"match_id": m.ID,
		"runs":     proj.Runs,
		"duration": proj.Duration,
	}).Info("Projection completed")
	return proj, nil
}

// playOut finishes one copy of the match
func (p *Projector) playOut(ctx context.Context, engine *scoring.Engine, sampler *StatisticalStrategy, m *models.Match) (projectedFinish, error) {
	current := m
	for overs := 0; !current.IsComplete(); overs++ {
		if overs > maxProjectedOvers {
			return projectedFinish{}, fmt.Errorf("match %s did not finish", m.ID)
		}

		if current.Active().Current().Bowler.Empty() {
			slot, err := scoring.NextBowler(current)
			if err != nil {
				return projectedFinish{}, err
			}
			if current, err = engine.ChangeBowler(current, slot.ID); err != nil {
				return projectedFinish{}, err
			}
		}

		c, err := p.analyzer.Analyze(current)
		if err != nil {
			return projectedFinish{}, err
		}
		sim, err := sampler.Simulate(ctx, c)
		if err != nil {
			return projectedFinish{}, err
		}
		if len(sim.Outcomes) == 0 {
			return projectedFinish{}, fmt.Errorf("no deliveries sampled at over %d", c.Over)
		}

		start := positionOf(current)
		for _, o := range sim.Outcomes {
			d, err := o.Details()
			if err != nil {
				return projectedFinish{}, err
			}
			if current, err = engine.ProcessBall(ctx, current, d); err != nil {
				return projectedFinish{}, err
			}
			if inn := current.Current(); inn != nil && scoring.RainDue(current, inn.Overs, current.CurrentInnings) {
				if current, err = engine.HandleRainInterruption(ctx, current, inn.Overs, current.CurrentInnings); err != nil {
					return projectedFinish{}, err
				}
			}

			now := positionOf(current)
			if current.IsComplete() || !sameInnings(now, start) || now.overs > start.overs {
				break
			}
		}
	}

	finish := projectedFinish{
		winnerID:  current.WinnerID,
		superOver: current.SuperOver != nil,
		scores:    make(map[string]int, 2),
	}
	for _, inn := range current.Innings {
		finish.scores[inn.BattingTeam.ID] = inn.Score
	}
	return finish, nil
}

func aggregateProjection(m *models.Match, results []projectedFinish) *Projection {
	proj := &Projection{
		MatchID:        m.ID,
		Runs:           len(results),
		WinProbability: make(map[string]float64, 2),
		Scores:         make(map[string]ScoreSummary, 2),
	}

	wins := make(map[string]int, 2)
	ties, superOvers := 0, 0
	scores := make(map[string][]float64, 2)
	for _, r := range results {
		if r.winnerID == "" {
			ties++
		} else {
			wins[r.winnerID]++
		}
		if r.superOver {
			superOvers++
		}
		for team, s := range r.scores {
			scores[team] = append(scores[team], float64(s))
		}
	}

	total := float64(len(results))
	for _, t := range m.Teams {
		proj.WinProbability[t.ID] = float64(wins[t.ID]) / total
	}
	proj.TieProbability = float64(ties) / total
	proj.SuperOverRate = float64(superOvers) / total

	for team, xs := range scores {
		sort.Float64s(xs)
		summary := ScoreSummary{
			Expected:     stat.Mean(xs, nil),
			P10:          stat.Quantile(0.1, stat.Empirical, xs, nil),
			Median:       stat.Quantile(0.5, stat.Empirical, xs, nil),
			P90:          stat.Quantile(0.9, stat.Empirical, xs, nil),
			Distribution: make(map[int]int),
		}
		if len(xs) > 1 {
			summary.StdDev = stat.StdDev(xs, nil)
		}
		for _, x := range xs {
			summary.Distribution[int(x)]++
		}
		proj.Scores[team] = summary
	}
	return proj
}
