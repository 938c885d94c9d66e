package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cricket-sim/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("match not found")

// MatchStore keeps the latest snapshot of each live match
type MatchStore interface {
	Get(ctx context.Context, id string) (*models.Match, error)
	Put(ctx context.Context, m *models.Match) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// MemoryMatchStore is a process-local MatchStore
type MemoryMatchStore struct {
	mu      sync.RWMutex
	matches map[string]*models.Match
}

// NewMemoryMatchStore creates an empty in-memory store
func NewMemoryMatchStore() *MemoryMatchStore {
	return &MemoryMatchStore{matches: make(map[string]*models.Match)}
}

func (s *MemoryMatchStore) Get(_ context.Context, id string) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryMatchStore) Put(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m.Clone()
	return nil
}

func (s *MemoryMatchStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[id]; !ok {
		return ErrNotFound
	}
	delete(s.matches, id)
	return nil
}

func (s *MemoryMatchStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.matches))
	for id := range s.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// RedisMatchStore keeps snapshots as JSON in Redis so several API instances
// can share matches
type RedisMatchStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	log       *logrus.Entry
}

// NewRedisMatchStore creates a store. A zero ttl keeps snapshots forever.
func NewRedisMatchStore(client *redis.Client, keyPrefix string, ttl time.Duration, log *logrus.Entry) *RedisMatchStore {
	if keyPrefix == "" {
		keyPrefix = "cricket"
	}
	return &RedisMatchStore{client: client, keyPrefix: keyPrefix, ttl: ttl, log: log}
}

func (s *RedisMatchStore) key(id string) string {
	return fmt.Sprintf("%s:match:%s", s.keyPrefix, id)
}

func (s *RedisMatchStore) indexKey() string {
	return s.keyPrefix + ":matches"
}

func (s *RedisMatchStore) Get(ctx context.Context, id string) (*models.Match, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read match %s: %w", id, err)
	}

	var m models.Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode match %s: %w", id, err)
	}
	return &m, nil
}

func (s *RedisMatchStore) Put(ctx context.Context, m *models.Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode match %s: %w", m.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(m.ID), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store match %s: %w", m.ID, err)
	}

	s.log.WithFields(logrus.Fields{
		"match_id": m.ID,
		"bytes":    len(data),
	}).Debug("Stored match snapshot")
	return nil
}

func (s *RedisMatchStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(id))
	pipe.SRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete match %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the ids of stored matches, dropping index entries whose
// snapshot has expired
func (s *RedisMatchStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.client.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check match %s: %w", id, err)
		}
		if n == 0 {
			if err := s.client.SRem(ctx, s.indexKey(), id).Err(); err != nil {
				s.log.WithError(err).WithField("match_id", id).Debug("Failed to drop expired match from index")
			}
			continue
		}
		live = append(live, id)
	}
	sort.Strings(live)
	return live, nil
}
