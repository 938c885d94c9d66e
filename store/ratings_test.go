package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"cricket-sim/models"
	"cricket-sim/simulation"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*RatingStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger, _ := test.NewNullLogger()
	return NewRatingStore(mock, logrus.NewEntry(logger)), mock
}

func TestLoadRatings(t *testing.T) {
	s, mock := newMockStore(t)
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"player_id", "name", "rating", "matches_played", "last_delta", "updated_at"}).
		AddRow(100, "Opener", 72.5, 14, 1.5, updated).
		AddRow(210, "Quick", 64.0, 3, -2.0, updated)
	mock.ExpectQuery("SELECT player_id, name, rating").
		WithArgs([]int{100, 101, 210}).
		WillReturnRows(rows)

	got, err := s.LoadRatings(context.Background(), []int{100, 101, 210})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, models.PlayerRating{
		PlayerID:      100,
		Name:          "Opener",
		Rating:        72.5,
		MatchesPlayed: 14,
		LastDelta:     1.5,
		UpdatedAt:     updated,
	}, got[100])
	_, ok := got[101]
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRatingsEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	got, err := s.LoadRatings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRatingsQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT player_id").WithArgs([]int{1}).WillReturnError(errors.New("connection reset"))

	_, err := s.LoadRatings(context.Background(), []int{1})
	assert.ErrorContains(t, err, "failed to query ratings")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRatings(t *testing.T) {
	s, mock := newMockStore(t)
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ratings := []models.PlayerRating{
		{PlayerID: 100, Name: "Opener", Rating: 74, LastDelta: 1.5, UpdatedAt: updated},
		{PlayerID: 210, Name: "Quick", Rating: 62, LastDelta: -2, UpdatedAt: updated},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO player_ratings").
		WithArgs(100, "Opener", 74.0, 1.5, updated).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO player_ratings").
		WithArgs(210, "Quick", 62.0, -2.0, updated).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRatings(context.Background(), ratings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRatingsRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO player_ratings").
		WithArgs(100, "Opener", 74.0, 0.0, pgxmock.AnyArg()).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := s.SaveRatings(context.Background(), []models.PlayerRating{{PlayerID: 100, Name: "Opener", Rating: 74}})
	assert.ErrorContains(t, err, "player 100")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRatingsNothingToDo(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.SaveRatings(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveProjection(t *testing.T) {
	s, mock := newMockStore(t)
	p := &simulation.Projection{
		MatchID:        "m1",
		Runs:           500,
		WinProbability: map[string]float64{"a": 0.6, "b": 0.38},
		TieProbability: 0.02,
		SuperOverRate:  0.02,
		Scores:         map[string]simulation.ScoreSummary{"a": {Expected: 160}},
	}

	mock.ExpectExec("INSERT INTO match_projections").
		WithArgs("m1", 500, pgxmock.AnyArg(), 0.02, 0.02, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveProjection(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS player_ratings").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
