package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTeam(id string, base int) Team {
	team := Team{ID: id, Name: "Team " + id}
	for i := 0; i < 12; i++ {
		team.Players = append(team.Players, Player{ID: base + i, Name: "P", IsSubstitute: i >= 11})
	}
	return team
}

func TestMatchCloneSharesNothing(t *testing.T) {
	m := &Match{
		ID:    "m1",
		Teams: [2]Team{sampleTeam("a", 1), sampleTeam("b", 100)},
		Innings: []Innings{{
			BattingTeam:     sampleTeam("a", 1),
			BowlingTeam:     sampleTeam("b", 100),
			Timeline:        []Ball{{Event: EventRun, Runs: 1}},
			FallOfWickets:   []FallOfWicket{{Score: 10}},
			FieldPlacements: []FieldPlacement{{PlayerID: 101, Position: "slip"}},
		}},
		Weather:   &WeatherInterruption{Innings: 1, TriggerOver: 5},
		SuperOver: &Match{ID: "so"},
	}

	c := m.Clone()
	c.Teams[0].Players[0].Batting.Runs = 50
	c.Innings[0].Timeline[0].Runs = 6
	c.Innings[0].BattingTeam.Players[0].Name = "changed"
	c.Innings[0].FallOfWickets[0].Score = 99
	c.Innings[0].FieldPlacements[0].Position = "gully"
	c.Weather.Applied = true
	c.SuperOver.ID = "changed"

	assert.Equal(t, 0, m.Teams[0].Players[0].Batting.Runs)
	assert.Equal(t, 1, m.Innings[0].Timeline[0].Runs)
	assert.Equal(t, "P", m.Innings[0].BattingTeam.Players[0].Name)
	assert.Equal(t, 10, m.Innings[0].FallOfWickets[0].Score)
	assert.Equal(t, "slip", m.Innings[0].FieldPlacements[0].Position)
	assert.False(t, m.Weather.Applied)
	assert.Equal(t, "so", m.SuperOver.ID)
}

func TestSlot(t *testing.T) {
	var awaiting Slot
	assert.True(t, awaiting.Empty())
	assert.False(t, awaiting.Is(0))

	s := Selected(0)
	assert.False(t, s.Empty())
	assert.True(t, s.Is(0))
	assert.False(t, s.Is(1))
}

func TestInningsCounters(t *testing.T) {
	inn := Innings{
		BattingTeam:   sampleTeam("a", 1),
		Overs:         3,
		BallsThisOver: 4,
		MaxOvers:      20,
	}

	assert.Equal(t, 22, inn.LegalBalls())
	assert.Equal(t, 98, inn.BallsRemaining())
	assert.InDelta(t, 3.4, inn.OverNotation(), 1e-9)
	assert.False(t, inn.OversExhausted())

	inn.Wickets = 9
	assert.False(t, inn.AllOut())
	inn.Wickets = 10
	assert.True(t, inn.AllOut(), "eleven eligible batters means ten wickets ends it")

	inn.WicketLimit = 2
	inn.Wickets = 2
	assert.True(t, inn.AllOut())
}

func TestActiveResolvesSuperOver(t *testing.T) {
	so := &Match{ID: "so"}
	m := &Match{ID: "main", Status: StatusInProgress, SuperOver: so}
	assert.Equal(t, "main", m.Active().ID)

	m.Status = StatusSuperOver
	assert.Equal(t, "so", m.Active().ID)
}

func TestBallDetailsValidate(t *testing.T) {
	tests := []struct {
		name    string
		details BallDetails
		wantErr bool
	}{
		{"dot", BallDetails{Event: EventRun}, false},
		{"boundary", BallDetails{Event: EventRun, Runs: 4}, false},
		{"wide", BallDetails{Event: EventWide, Extras: 1}, false},
		{"wide without extra", BallDetails{Event: EventWide}, true},
		{"no-ball with runs", BallDetails{Event: EventNoBall, Extras: 1, Runs: 4}, false},
		{"wicket", BallDetails{Event: EventWicket, WicketType: WicketCaught}, false},
		{"wicket without type", BallDetails{Event: EventWicket}, true},
		{"unknown event", BallDetails{Event: "x"}, true},
		{"negative runs", BallDetails{Event: EventRun, Runs: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.details.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOutcomeDetails(t *testing.T) {
	tests := []struct {
		outcome BallOutcome
		want    BallDetails
	}{
		{Dot(), BallDetails{Event: EventRun}},
		{Four(), BallDetails{Event: EventRun, Runs: 4}},
		{Wide(), BallDetails{Event: EventWide, Extras: 1}},
		{BallOutcome{Kind: OutcomeNoBall, Runs: 5}, BallDetails{Event: EventNoBall, Extras: 1, Runs: 4}},
		{BallOutcome{Kind: OutcomeLegBye, Runs: 1}, BallDetails{Event: EventLegBye, Extras: 1}},
		{Out(WicketLBW), BallDetails{Event: EventWicket, WicketType: WicketLBW}},
		{BallOutcome{Kind: OutcomeWicket}, BallDetails{Event: EventWicket, WicketType: WicketBowled}},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome.Kind), func(t *testing.T) {
			got, err := tt.outcome.Details()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, got.Validate())
		})
	}

	_, err := BallOutcome{Kind: "TRIPLE"}.Details()
	assert.Error(t, err)
}

func TestDisplayToken(t *testing.T) {
	assert.Equal(t, ".", DisplayToken(BallDetails{Event: EventRun}, false))
	assert.Equal(t, "6", DisplayToken(BallDetails{Event: EventRun, Runs: 6}, false))
	assert.Equal(t, "W", DisplayToken(BallDetails{Event: EventWicket}, true))
	assert.Equal(t, "wd", DisplayToken(BallDetails{Event: EventWide, Extras: 1}, false))
	assert.Equal(t, "5wd", DisplayToken(BallDetails{Event: EventWide, Extras: 5}, false))
	assert.Equal(t, "nb+4", DisplayToken(BallDetails{Event: EventNoBall, Extras: 1, Runs: 4}, false))
	assert.Equal(t, "2lb", DisplayToken(BallDetails{Event: EventLegBye, Extras: 2}, false))
}

func TestRecordRecalculate(t *testing.T) {
	bat := BattingRecord{Runs: 45, Balls: 30}
	bat.Recalculate()
	assert.InDelta(t, 150.0, bat.StrikeRate, 1e-9)

	bowl := BowlingRecord{Runs: 24, Balls: 18}
	bowl.Recalculate()
	assert.InDelta(t, 8.0, bowl.Economy, 1e-9)
	assert.InDelta(t, 3.0, bowl.Overs(), 1e-9)

	bowl = BowlingRecord{Balls: 0}
	bowl.Recalculate()
	assert.Zero(t, bowl.Economy)
}
