package scoring

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"cricket-sim/models"

	"github.com/sirupsen/logrus"
)

var (
	// ErrBowlerNotSelected is returned when a ball is scored before a bowler is chosen
	ErrBowlerNotSelected = errors.New("no bowler selected")
	// ErrStrikerNotSelected is returned when a ball is scored before a batter is chosen
	ErrStrikerNotSelected = errors.New("no striker selected")
	// ErrMatchFinished is returned for any scoring operation on a completed match
	ErrMatchFinished = errors.New("match already finished")
	// ErrNothingToUndo is returned when no ball has been bowled anywhere in the match
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrInvalidBall is returned for inconsistent ball details
	ErrInvalidBall = errors.New("invalid ball")
	// ErrInvalidSettings is returned by CreateMatch for bad teams or settings
	ErrInvalidSettings = errors.New("invalid match settings")
	// ErrInvalidSelection is returned when a chosen player cannot take the role
	ErrInvalidSelection = errors.New("invalid player selection")
	// ErrImpactPlayerUsed is returned on a second impact substitution by the same team
	ErrImpactPlayerUsed = errors.New("impact player already used")
)

// RatingRepository loads and saves player reputations between matches
type RatingRepository interface {
	LoadRatings(ctx context.Context, playerIDs []int) (map[int]models.PlayerRating, error)
	SaveRatings(ctx context.Context, ratings []models.PlayerRating) error
}

// Options tunes the engine
type Options struct {
	// RainTargetJitter is the half-width of the random multiplier applied to a
	// rain-revised target. 0.05 gives 0.95-1.05x; zero disables it.
	RainTargetJitter float64
	// MaxRatingDelta bounds how far one match can move a rating
	MaxRatingDelta float64
	// Rand overrides the random source, mainly for tests
	Rand *rand.Rand
	// Now overrides the clock
	Now func() time.Time
}

// DefaultOptions returns the standard engine tuning
func DefaultOptions() Options {
	return Options{
		RainTargetJitter: 0.05,
		MaxRatingDelta:   5,
	}
}

// Engine is the match state machine. Every operation takes a match snapshot
// and returns a new one; the caller's value is never modified.
type Engine struct {
	ratings RatingRepository
	log     *logrus.Entry
	opts    Options

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewEngine creates a match engine. ratings may be nil when no store is configured.
func NewEngine(ratings RatingRepository, log *logrus.Entry, opts Options) *Engine {
	if opts.MaxRatingDelta <= 0 {
		opts.MaxRatingDelta = 5
	}
	if opts.RainTargetJitter < 0 {
		opts.RainTargetJitter = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Engine{
		ratings: ratings,
		log:     log.WithField("component", "match_engine"),
		opts:    opts,
		rng:     rng,
	}
}

func (e *Engine) float64() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// intN returns a value in [0, n)
func (e *Engine) intN(n int) int {
	if n <= 0 {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.IntN(n)
}

func (e *Engine) touch(m *models.Match) {
	m.UpdatedAt = e.opts.Now()
}
