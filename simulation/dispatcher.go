package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"cricket-sim/models"

	"github.com/sirupsen/logrus"
)

const statisticalFloor = 4

// Dispatcher asks each strategy in priority order and returns the first
// claimant's over. Errors from that strategy are not retried elsewhere.
type Dispatcher struct {
	strategies []Strategy
	cache      *Cache
	log        *logrus.Entry

	mu       sync.Mutex
	patterns map[string]string // match id -> pattern of the last simulated over
}

// DispatcherConfig describes the default strategy line-up
type DispatcherConfig struct {
	Analyzer            *Analyzer
	Cache               *Cache
	Generator           Generator // nil leaves the generative strategy out
	GenerativeThreshold int
	Patterns            []Pattern
	Rand                rand.Source
}

// NewDispatcher orders the given strategies by priority
func NewDispatcher(cache *Cache, log *logrus.Entry, strategies ...Strategy) *Dispatcher {
	sorted := append([]Strategy(nil), strategies...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Dispatcher{
		strategies: sorted,
		cache:      cache,
		log:        log,
		patterns:   make(map[string]string),
	}
}

// NewDefaultDispatcher wires cache, generative, statistical, template and
// rule-based strategies. Without a generator the statistical strategy also
// takes the most complex situations.
func NewDefaultDispatcher(cfg DispatcherConfig, log *logrus.Entry) *Dispatcher {
	if cfg.Analyzer == nil {
		cfg.Analyzer = NewAnalyzer(nil, false)
	}
	if cfg.Cache == nil {
		cfg.Cache = NewCache(DefaultCacheCapacity)
	}
	if cfg.GenerativeThreshold <= 0 {
		cfg.GenerativeThreshold = DefaultGenerativeThreshold
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	rng := rand.New(cfg.Rand)

	strategies := []Strategy{NewCacheStrategy(cfg.Cache)}
	upper := 0
	if cfg.Generator != nil {
		strategies = append(strategies, NewGenerativeStrategy(cfg.Generator, cfg.GenerativeThreshold,
			cfg.Analyzer.Modifiers, log.WithField("strategy", StrategyGenerative)))
		upper = cfg.GenerativeThreshold
	}
	strategies = append(strategies,
		NewStatisticalStrategy(cfg.Analyzer, rand.NewPCG(rng.Uint64(), rng.Uint64()), statisticalFloor, upper),
		NewTemplateStrategy(cfg.Patterns, rand.NewPCG(rng.Uint64(), rng.Uint64()), statisticalFloor),
		RuleStrategy{},
	)
	return NewDispatcher(cfg.Cache, log, strategies...)
}

// SimulateOver returns an over from the first strategy that claims the
// situation. Fresh overs are cached under the situation's fingerprint.
func (d *Dispatcher) SimulateOver(ctx context.Context, c CricketContext) (models.OverSimulationResult, error) {
	if c.PreviousPatternID == "" {
		c.PreviousPatternID = d.LastPattern(c.MatchID)
	}

	for _, s := range d.strategies {
		if !s.CanHandle(c) {
			continue
		}

		res, err := s.Simulate(ctx, c)
		if err != nil {
			return models.OverSimulationResult{}, fmt.Errorf("%s strategy: %w", s.Name(), err)
		}
		if res.Strategy == "" {
			res.Strategy = s.Name()
		}
		if !res.Cached && d.cache != nil {
			d.cache.Put(Fingerprint(c), res)
		}
		d.rememberPattern(c.MatchID, res.PatternID)

		d.log.WithFields(logrus.Fields{
			"match_id":   c.MatchID,
			"over":       c.Over + 1,
			"complexity": c.Complexity,
			"strategy":   res.Strategy,
			"cached":     res.Cached,
			"runs":       res.Runs(),
		}).Debug("Simulated over")
		return res, nil
	}

	return models.OverSimulationResult{}, ErrNoStrategy
}

// LastPattern returns the pattern id of the last over simulated for a match
func (d *Dispatcher) LastPattern(matchID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.patterns[matchID]
}

func (d *Dispatcher) rememberPattern(matchID, patternID string) {
	if matchID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns[matchID] = patternID
}

// Forget drops what the dispatcher remembers about a match
func (d *Dispatcher) Forget(matchID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.patterns, matchID)
}

// Strategies lists strategy names in the order they are asked
func (d *Dispatcher) Strategies() []string {
	names := make([]string, len(d.strategies))
	for i, s := range d.strategies {
		names[i] = s.Name()
	}
	return names
}

// CacheStats reports the over cache counters
func (d *Dispatcher) CacheStats() CacheStats {
	if d.cache == nil {
		return CacheStats{}
	}
	return d.cache.Stats()
}
