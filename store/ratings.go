// Package store persists player ratings, match projections and live match
// snapshots.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cricket-sim/models"
	"cricket-sim/simulation"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// DB is the subset of *pgxpool.Pool the store needs
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const schema = `
	CREATE TABLE IF NOT EXISTS player_ratings (
		player_id      INTEGER PRIMARY KEY,
		name           TEXT NOT NULL,
		rating         DOUBLE PRECISION NOT NULL,
		matches_played INTEGER NOT NULL DEFAULT 0,
		last_delta     DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS match_projections (
		id              BIGSERIAL PRIMARY KEY,
		match_id        TEXT NOT NULL,
		runs            INTEGER NOT NULL,
		win_probability JSONB NOT NULL,
		tie_probability DOUBLE PRECISION NOT NULL,
		super_over_rate DOUBLE PRECISION NOT NULL,
		scores          JSONB NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS match_projections_match_id ON match_projections (match_id);
`

// RatingStore keeps player reputations in PostgreSQL
type RatingStore struct {
	db  DB
	log *logrus.Entry
}

// NewRatingStore creates a rating store on top of a pool
func NewRatingStore(db DB, log *logrus.Entry) *RatingStore {
	return &RatingStore{db: db, log: log}
}

// Migrate creates the tables the store uses
func (s *RatingStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// LoadRatings returns the stored ratings for the given players. Players
// without a row are absent from the map.
func (s *RatingStore) LoadRatings(ctx context.Context, playerIDs []int) (map[int]models.PlayerRating, error) {
	out := make(map[int]models.PlayerRating, len(playerIDs))
	if len(playerIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT player_id, name, rating, matches_played, last_delta, updated_at
		FROM player_ratings
		WHERE player_id = ANY($1)
	`

	rows, err := s.db.Query(ctx, query, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.PlayerRating
		if err := rows.Scan(&r.PlayerID, &r.Name, &r.Rating, &r.MatchesPlayed, &r.LastDelta, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		out[r.PlayerID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ratings: %w", err)
	}
	return out, nil
}

// SaveRatings upserts ratings after a match in one transaction, counting the
// match towards each player's total
func (s *RatingStore) SaveRatings(ctx context.Context, ratings []models.PlayerRating) error {
	if len(ratings) == 0 {
		return nil
	}

	query := `
		INSERT INTO player_ratings (player_id, name, rating, matches_played, last_delta, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (player_id) DO UPDATE SET
			name = EXCLUDED.name,
			rating = EXCLUDED.rating,
			matches_played = player_ratings.matches_played + 1,
			last_delta = EXCLUDED.last_delta,
			updated_at = EXCLUDED.updated_at
	`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, r := range ratings {
		updated := r.UpdatedAt
		if updated.IsZero() {
			updated = time.Now().UTC()
		}
		if _, err := tx.Exec(ctx, query, r.PlayerID, r.Name, r.Rating, r.LastDelta, updated); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.log.WithError(rbErr).Error("Failed to roll back rating update")
			}
			return fmt.Errorf("failed to save rating for player %d: %w", r.PlayerID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ratings: %w", err)
	}

	s.log.WithField("players", len(ratings)).Debug("Saved player ratings")
	return nil
}

// SaveProjection records an aggregated projection for later comparison
func (s *RatingStore) SaveProjection(ctx context.Context, p *simulation.Projection) error {
	winJSON, err := json.Marshal(p.WinProbability)
	if err != nil {
		return fmt.Errorf("failed to marshal win probability: %w", err)
	}
	scoresJSON, err := json.Marshal(p.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal score summaries: %w", err)
	}

	query := `
		INSERT INTO match_projections (
			match_id, runs, win_probability, tie_probability, super_over_rate, scores, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	if _, err := s.db.Exec(ctx, query,
		p.MatchID,
		p.Runs,
		winJSON,
		p.TieProbability,
		p.SuperOverRate,
		scoresJSON,
	); err != nil {
		return fmt.Errorf("failed to store projection: %w", err)
	}
	return nil
}
