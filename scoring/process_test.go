package scoring

import (
	"context"
	"errors"
	"testing"

	"cricket-sim/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertInvariants(t *testing.T, inn *models.Innings) {
	t.Helper()
	score, wickets := 0, 0
	for _, b := range inn.Timeline {
		score += b.Runs + b.Extras
		if b.IsWicket {
			wickets++
		}
	}
	assert.Equal(t, score, inn.Score, "score equals the timeline total")
	assert.Equal(t, wickets, inn.Wickets, "wickets equal dismissals in the timeline")
}

func TestProcessBallNeedsBowler(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := newMatch(t, e, 20)

	for _, d := range []models.BallDetails{runs(1), runs(4), dot, runs(6), wicket(models.WicketBowled), runs(1)} {
		next, err := e.ProcessBall(context.Background(), m, d)
		assert.Nil(t, next)
		assert.ErrorIs(t, err, ErrBowlerNotSelected)
	}
	assert.Empty(t, m.Current().Timeline)
}

func TestSampleOver(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := newMatch(t, e, 20)
	m = bowl(t, e, m, 210)

	startStriker := m.Current().Striker
	for _, r := range []int{4, 6, 1, 0, 0, 0} {
		m = ball(t, e, m, runs(r))
	}

	inn := m.Current()
	assert.Equal(t, 11, inn.Score)
	assert.Equal(t, 0, inn.Wickets)
	assert.Equal(t, 1, inn.Overs)
	assert.Equal(t, 0, inn.BallsThisOver)
	assert.Equal(t, startStriker, inn.Striker, "odd run and over break rotate back")
	assert.True(t, inn.Bowler.Empty())
	assertInvariants(t, inn)

	opener := inn.BattingTeam.Player(100)
	assert.Equal(t, 11, opener.Batting.Runs)
	assert.Equal(t, 1, opener.Batting.Fours)
	assert.Equal(t, 1, opener.Batting.Sixes)
	assert.Equal(t, 3, opener.Batting.Balls)

	bowler := inn.BowlingTeam.Player(210)
	assert.Equal(t, 6, bowler.Bowling.Balls)
	assert.Equal(t, 11, bowler.Bowling.Runs)
	assert.InDelta(t, 11.0, bowler.Bowling.Economy, 1e-9)

	_, err := e.ProcessBall(context.Background(), m, dot)
	assert.ErrorIs(t, err, ErrBowlerNotSelected)
}

func TestProcessBallDoesNotTouchInput(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := bowl(t, e, newMatch(t, e, 20), 210)
	before := m.Clone()

	next := ball(t, e, m, runs(4))
	next = ball(t, e, next, wicket(models.WicketCaught))

	assert.Equal(t, before, m)
	assert.NotSame(t, m, next)
}

func TestProcessBallRejectsBadDetails(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := bowl(t, e, newMatch(t, e, 20), 210)

	next, err := e.ProcessBall(context.Background(), m, models.BallDetails{Event: models.EventWicket})
	assert.Nil(t, next)
	assert.ErrorIs(t, err, ErrInvalidBall)
}

func TestExtras(t *testing.T) {
	tests := []struct {
		name        string
		details     models.BallDetails
		score       int
		bowlerRuns  int
		legal       bool
		batterRuns  int
		swapsStrike bool
		display     string
	}{
		{"wide", wide, 1, 1, false, 0, false, "wd"},
		{"wides run", models.BallDetails{Event: models.EventWide, Extras: 3}, 3, 3, false, 0, false, "3wd"},
		{"no-ball hit for four", models.BallDetails{Event: models.EventNoBall, Extras: 1, Runs: 4}, 5, 5, false, 4, false, "nb+4"},
		{"single bye", models.BallDetails{Event: models.EventBye, Extras: 1}, 1, 0, true, 0, true, "1b"},
		{"two leg-byes", models.BallDetails{Event: models.EventLegBye, Extras: 2}, 2, 0, true, 0, false, "2lb"},
		{"three", runs(3), 3, 3, true, 3, true, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(nil)
			m := bowl(t, e, newMatch(t, e, 20), 210)
			m = ball(t, e, m, tt.details)

			inn := m.Current()
			assert.Equal(t, tt.score, inn.Score)
			assert.Equal(t, tt.bowlerRuns, inn.BowlingTeam.Player(210).Bowling.Runs)
			assert.Equal(t, tt.batterRuns, inn.BattingTeam.Player(100).Batting.Runs)
			assert.Equal(t, tt.display, inn.Timeline[0].Display)

			wantBalls := 0
			if tt.legal {
				wantBalls = 1
			}
			assert.Equal(t, wantBalls, inn.BallsThisOver)
			assert.Equal(t, wantBalls, inn.BattingTeam.Player(100).Batting.Balls)
			assert.Equal(t, wantBalls, inn.BowlingTeam.Player(210).Bowling.Balls)

			if tt.swapsStrike {
				assert.True(t, inn.Striker.Is(101))
			} else {
				assert.True(t, inn.Striker.Is(100))
			}
			assertInvariants(t, inn)
		})
	}
}

func TestWicket(t *testing.T) {
	fielder := 205

	tests := []struct {
		name          string
		details       models.BallDetails
		dismissal     string
		bowlerWickets int
	}{
		{"bowled", wicket(models.WicketBowled), "Bowled b. Team B 11", 1},
		{"lbw", wicket(models.WicketLBW), "LBW b. Team B 11", 1},
		{"caught", models.BallDetails{Event: models.EventWicket, WicketType: models.WicketCaught, FielderID: &fielder}, "c. Team B 6 b. Team B 11", 1},
		{"stumped", models.BallDetails{Event: models.EventWicket, WicketType: models.WicketStumped, FielderID: &fielder}, "st. Team B 6 b. Team B 11", 1},
		{"run out", models.BallDetails{Event: models.EventWicket, WicketType: models.WicketRunOut, FielderID: &fielder}, "run out (Team B 6)", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(nil)
			m := bowl(t, e, newMatch(t, e, 20), 210)
			m = ball(t, e, m, runs(2))
			m = ball(t, e, m, tt.details)

			inn := m.Current()
			out := inn.BattingTeam.Player(100)
			assert.True(t, out.Batting.Out)
			assert.Equal(t, tt.dismissal, out.Batting.Dismissal)
			assert.Equal(t, tt.bowlerWickets, inn.BowlingTeam.Player(210).Bowling.Wickets)

			require.Len(t, inn.FallOfWickets, 1)
			assert.Equal(t, models.FallOfWicket{Score: 2, Wicket: 1, Over: 0.2, PlayerID: 100, Name: "Team A 1"}, inn.FallOfWickets[0])

			assert.True(t, inn.Striker.Is(102), "next batter comes in")
			assert.True(t, inn.NonStriker.Is(101))
			assert.Equal(t, models.Partnership{BatterA: 102, BatterB: 101}, inn.Partnership)
			assert.Equal(t, "W", inn.Timeline[1].Display)
			assertInvariants(t, inn)
		})
	}
}

func TestFreeHit(t *testing.T) {
	tests := []struct {
		wicketType models.WicketType
		counts     bool
	}{
		{models.WicketBowled, false},
		{models.WicketCaught, false},
		{models.WicketLBW, false},
		{models.WicketStumped, false},
		{models.WicketRunOut, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.wicketType), func(t *testing.T) {
			e, _ := newTestEngine(nil)
			m := bowl(t, e, newMatch(t, e, 20), 210)
			m = ball(t, e, m, noBall)
			require.True(t, m.Current().FreeHit)

			m = ball(t, e, m, wicket(tt.wicketType))
			inn := m.Current()
			striker := inn.BattingTeam.Player(100)

			if tt.counts {
				assert.Equal(t, 1, inn.Wickets)
				assert.True(t, striker.Batting.Out)
			} else {
				assert.Equal(t, 0, inn.Wickets)
				assert.False(t, striker.Batting.Out)
				assert.False(t, inn.Timeline[1].IsWicket)
				assert.Equal(t, models.EventWicket, inn.Timeline[1].Event)
				assert.True(t, inn.Striker.Is(100))
			}
			assert.False(t, inn.FreeHit, "a legal delivery uses up the free hit")
			assertInvariants(t, inn)
		})
	}
}

func TestFreeHitSurvivesWide(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := bowl(t, e, newMatch(t, e, 20), 210)
	m = ball(t, e, m, noBall)
	m = ball(t, e, m, wide)
	assert.True(t, m.Current().FreeHit)

	m = ball(t, e, m, dot)
	assert.False(t, m.Current().FreeHit)
}

func TestMaiden(t *testing.T) {
	tests := []struct {
		name   string
		balls  []models.BallDetails
		maiden bool
	}{
		{"six dots", []models.BallDetails{dot, dot, dot, dot, dot, dot}, true},
		{"wicket maiden", []models.BallDetails{dot, wicket(models.WicketBowled), dot, dot, dot, dot}, true},
		{"a wide spoils it", []models.BallDetails{dot, wide, dot, dot, dot, dot, dot}, false},
		{"a leg-bye spoils it", []models.BallDetails{dot, dot, {Event: models.EventLegBye, Extras: 1}, dot, dot, dot}, false},
		{"a single spoils it", []models.BallDetails{dot, dot, dot, dot, dot, runs(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(nil)
			m := bowl(t, e, newMatch(t, e, 20), 210)
			for _, d := range tt.balls {
				m = ball(t, e, m, d)
			}

			inn := m.Current()
			require.Equal(t, 1, inn.Overs)
			want := 0
			if tt.maiden {
				want = 1
			}
			assert.Equal(t, want, inn.BowlingTeam.Player(210).Bowling.Maidens)
		})
	}
}

func TestOverEndClearsField(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := bowl(t, e, newMatch(t, e, 20), 210)

	m, err := e.UpdateFieldPlacements(m, []models.FieldPlacement{{PlayerID: 201, Position: "slip"}})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		m = ball(t, e, m, dot)
	}
	assert.Len(t, m.Current().FieldPlacements, 1)

	m = ball(t, e, m, dot)
	assert.Empty(t, m.Current().FieldPlacements)
}

func TestLastOverKeepsBowler(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := bowl(t, e, newMatch(t, e, 2), 210)
	for i := 0; i < 6; i++ {
		m = ball(t, e, m, dot)
	}
	assert.True(t, m.Current().Bowler.Empty())

	m = bowl(t, e, m, 209)
	for i := 0; i < 6; i++ {
		m = ball(t, e, m, dot)
	}
	// Overs ran out, so the innings moved on with the last bowler still recorded
	require.Len(t, m.Innings, 2)
	assert.True(t, m.Innings[0].Bowler.Is(209))
	assert.Len(t, m.Innings[0].Timeline, 12)
	assert.Equal(t, 1, m.CurrentInnings)
}

func TestAllOut(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := bowl(t, e, newMatch(t, e, 20), 210)

	bowlers := []int{210, 209}
	for w := 0; w < 10; w++ {
		m = ball(t, e, m, runs(1))
		if m.Current().Bowler.Empty() {
			m = bowl(t, e, m, bowlers[m.Current().Overs%2])
		}
		m = ball(t, e, m, wicket(models.WicketBowled))
		if m.CurrentInnings == 0 && m.Current().Bowler.Empty() {
			m = bowl(t, e, m, bowlers[m.Current().Overs%2])
		}
	}

	require.Len(t, m.Innings, 2)
	first := m.Innings[0]
	assert.Equal(t, 10, first.Wickets)
	assert.Equal(t, 10, first.Score)
	assert.True(t, first.Striker.Empty(), "nobody left to come in")
	assertInvariants(t, &first)

	second := m.Innings[1]
	assert.Equal(t, 11, second.Target)
	assert.Equal(t, "b", second.BattingTeam.ID)
	assert.True(t, second.Striker.Is(200))
	assert.True(t, second.Bowler.Empty())
}

// playFirstInnings bats team A through a one-over innings
func playFirstInnings(t *testing.T, e *Engine, overBalls ...models.BallDetails) *models.Match {
	t.Helper()
	m := bowl(t, e, newMatch(t, e, 1), 210)
	for _, d := range overBalls {
		m = ball(t, e, m, d)
	}
	require.Equal(t, 1, m.CurrentInnings)
	return bowl(t, e, m, 110)
}

func TestChaseEndsMidOver(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := playFirstInnings(t, e, runs(4), dot, dot, dot, dot, dot)

	chase := m.Current()
	assert.Equal(t, 5, chase.Target)

	m = ball(t, e, m, runs(1))
	assert.Equal(t, models.StatusInProgress, m.Status)
	m = ball(t, e, m, runs(4))

	assert.Equal(t, models.StatusFinished, m.Status)
	assert.Equal(t, "b", m.WinnerID)
	assert.Equal(t, "Team B won by 10 wickets", m.Result)
	assert.Equal(t, 0, m.Innings[1].Overs)
	assert.Equal(t, 2, m.Innings[1].BallsThisOver)
	assert.Len(t, m.Innings[1].Timeline, 2)

	_, err := e.ProcessBall(context.Background(), m, dot)
	assert.ErrorIs(t, err, ErrMatchFinished)
}

func TestDefendedTotal(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := playFirstInnings(t, e, runs(6), runs(6), dot, dot, dot, dot)

	for _, d := range []models.BallDetails{runs(1), dot, wicket(models.WicketBowled), dot, runs(2), dot} {
		m = ball(t, e, m, d)
	}

	assert.Equal(t, models.StatusFinished, m.Status)
	assert.Equal(t, "a", m.WinnerID)
	assert.Equal(t, "Team A won by 9 runs", m.Result)
}

func TestTieGoesToSuperOver(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := playFirstInnings(t, e, runs(4), dot, dot, dot, dot, dot)
	for _, d := range []models.BallDetails{runs(4), dot, dot, dot, dot, dot} {
		m = ball(t, e, m, d)
	}

	require.Equal(t, models.StatusSuperOver, m.Status)
	assert.Equal(t, "Match tied", m.Result)
	require.NotNil(t, m.SuperOver)

	so := m.SuperOver
	require.Len(t, so.Innings, 1)
	assert.Equal(t, "b", so.Innings[0].BattingTeam.ID, "side batting second goes first")
	assert.Equal(t, 1, so.Innings[0].MaxOvers)
	assert.Equal(t, 2, so.Innings[0].WicketLimit)
	assert.Zero(t, so.Innings[0].BattingTeam.Player(200).Batting.Runs)

	// Team B sets 6 in the super over
	m = bowl(t, e, m, 110)
	for _, d := range []models.BallDetails{runs(6), dot, dot, dot, dot, dot} {
		m = ball(t, e, m, d)
	}
	require.Equal(t, models.StatusSuperOver, m.Status)
	require.Len(t, m.SuperOver.Innings, 2)
	assert.Equal(t, 7, m.SuperOver.Innings[1].Target)

	// Team A gets there off the last ball
	m = bowl(t, e, m, 210)
	for _, d := range []models.BallDetails{runs(6), dot, dot, dot, dot, runs(1)} {
		m = ball(t, e, m, d)
	}

	assert.Equal(t, models.StatusFinished, m.Status)
	assert.Equal(t, "a", m.WinnerID)
	assert.Equal(t, "Team A won the super over", m.Result)
	assert.Len(t, m.Innings, 2, "super over balls never reach the main innings")
}

func TestSuperOverTwoWickets(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := playFirstInnings(t, e, runs(4), dot, dot, dot, dot, dot)
	for _, d := range []models.BallDetails{runs(4), dot, dot, dot, dot, dot} {
		m = ball(t, e, m, d)
	}

	m = bowl(t, e, m, 110)
	m = ball(t, e, m, wicket(models.WicketBowled))
	m = ball(t, e, m, wicket(models.WicketBowled))

	require.Len(t, m.SuperOver.Innings, 2, "two wickets end a super over innings")
	assert.Equal(t, 1, m.SuperOver.Innings[1].Target)
}

func TestRatingsSavedOnFinish(t *testing.T) {
	repo := &fakeRatings{}
	e, _ := newTestEngine(repo)
	m := playFirstInnings(t, e, runs(4), dot, dot, dot, dot, dot)
	m = ball(t, e, m, runs(6))
	require.True(t, m.IsComplete())

	require.Len(t, repo.saved, 1)
	saved := repo.saved[0]
	assert.Len(t, saved, 22)

	byID := make(map[int]models.PlayerRating)
	for _, r := range saved {
		assert.GreaterOrEqual(t, r.Rating, 1.0)
		assert.LessOrEqual(t, r.Rating, 100.0)
		byID[r.PlayerID] = r
	}
	// 6 off 1 ball: 0.6 for runs, too few balls for the strike-rate bonus
	assert.InDelta(t, 0.6, byID[200].LastDelta, 1e-9)
	assert.InDelta(t, 60.6, byID[200].Rating, 1e-9)
}

func TestRatingSaveFailureIsLogged(t *testing.T) {
	repo := &fakeRatings{saveErr: errors.New("disk full")}
	e, hook := newTestEngine(repo)
	m := playFirstInnings(t, e, runs(4), dot, dot, dot, dot, dot)
	m = ball(t, e, m, runs(6))

	assert.True(t, m.IsComplete(), "the result stands when ratings cannot be saved")

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Failed to save player ratings" {
			logged = true
			assert.Equal(t, "disk full", entry.Data["error"].(error).Error())
		}
	}
	assert.True(t, logged)
}

func TestNoStrikerAfterAllOutInput(t *testing.T) {
	e, _ := newTestEngine(nil)
	m := bowl(t, e, newMatch(t, e, 20), 210)
	m.Innings[0].Striker = models.Slot{}

	next, err := e.ProcessBall(context.Background(), m, dot)
	assert.Nil(t, next)
	assert.True(t, errors.Is(err, ErrStrikerNotSelected))
}
