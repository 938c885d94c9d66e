package service

import (
	"sync"
	"time"

	"cricket-sim/models"
	"cricket-sim/scoring"
)

// EventType names a change to a live match
type EventType string

const (
	EventCreated  EventType = "created"
	EventBall     EventType = "ball"
	EventUndo     EventType = "undo"
	EventUpdated  EventType = "updated"
	EventRain     EventType = "rain"
	EventFinished EventType = "finished"
)

// Event is one entry on the live feed
type Event struct {
	Type      EventType         `json:"type"`
	MatchID   string            `json:"match_id"`
	Ball      *models.Ball      `json:"ball,omitempty"`
	Situation scoring.Situation `json:"situation"`
	Match     *models.Match     `json:"-"`
	At        time.Time         `json:"at"`
}

// Feed fans match events out to subscribers. Subscribers are called
// synchronously and must not block.
type Feed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscriber
}

type subscriber struct {
	matchID string // empty follows every match
	fn      func(Event)
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]subscriber)}
}

// Subscribe registers fn for events of one match, or of all matches when
// matchID is empty. The returned func removes the subscription.
func (f *Feed) Subscribe(matchID string, fn func(Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = subscriber{matchID: matchID, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish fills in the situation and delivers the event
func (f *Feed) Publish(e Event) {
	if e.Match != nil {
		e.Situation = scoring.MatchSituation(e.Match)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.subs {
		if s.matchID == "" || s.matchID == e.MatchID {
			s.fn(e)
		}
	}
}

// Subscribers returns the number of live subscriptions
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
