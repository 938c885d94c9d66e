package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"cricket-sim/models"
	"cricket-sim/scoring"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func testLog() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

func newEngine() *scoring.Engine {
	log, _ := testLog()
	opts := scoring.DefaultOptions()
	opts.Rand = rand.New(rand.NewPCG(3, 5))
	return scoring.NewEngine(nil, log, opts)
}

func seeded(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed*31+7)
}

func testTeam(id, name string, base int) models.Team {
	team := models.Team{ID: id, Name: name}
	for i := 0; i < 12; i++ {
		team.Players = append(team.Players, models.Player{
			ID:     base + i,
			Name:   fmt.Sprintf("%s %d", name, i+1),
			Rating: 60,
		})
	}
	return team
}

// newMatch creates a match with team A (ids 100-111) batting against team B (200-211)
func newMatch(t *testing.T, e *scoring.Engine, overs int) *models.Match {
	t.Helper()
	m, err := e.CreateMatch(context.Background(),
		[2]models.Team{testTeam("a", "Team A", 100), testTeam("b", "Team B", 200)},
		scoring.Settings{Format: "T20", Overs: overs, TossWinnerID: "a", TossDecision: models.DecisionBat})
	require.NoError(t, err)
	return m
}

func bowl(t *testing.T, e *scoring.Engine, m *models.Match, id int) *models.Match {
	t.Helper()
	next, err := e.ChangeBowler(m, id)
	require.NoError(t, err)
	return next
}

func play(t *testing.T, e *scoring.Engine, m *models.Match, outcomes ...models.BallOutcome) *models.Match {
	t.Helper()
	for _, o := range outcomes {
		d, err := o.Details()
		require.NoError(t, err)
		m, err = e.ProcessBall(context.Background(), m, d)
		require.NoError(t, err)
	}
	return m
}

// scriptStrategy hands out prepared overs in order, repeating the last one
type scriptStrategy struct {
	mu    sync.Mutex
	overs [][]models.BallOutcome
	err   error
	calls int
}

func (s *scriptStrategy) Name() string                  { return "script" }
func (s *scriptStrategy) Priority() int                 { return 0 }
func (s *scriptStrategy) CanHandle(CricketContext) bool { return true }

func (s *scriptStrategy) Simulate(_ context.Context, c CricketContext) (models.OverSimulationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return models.OverSimulationResult{}, s.err
	}
	i := min(s.calls-1, len(s.overs)-1)
	outcomes := append([]models.BallOutcome(nil), s.overs[i]...)
	return models.OverSimulationResult{
		Outcomes:   outcomes,
		Commentary: describeOver(c, outcomes),
		Strategy:   "script",
	}, nil
}

// fakeGenerator returns a canned response
type fakeGenerator struct {
	mu      sync.Mutex
	text    string
	cost    float64
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.text, g.cost, g.err
}

func legalCount(outcomes []models.BallOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Legal() {
			n++
		}
	}
	return n
}
