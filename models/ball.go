package models

import "fmt"

// EventKind identifies what happened on a delivery
type EventKind string

const (
	EventRun    EventKind = "run"
	EventWide   EventKind = "wd"
	EventNoBall EventKind = "nb"
	EventLegBye EventKind = "lb"
	EventBye    EventKind = "b"
	EventWicket EventKind = "w"
)

// Valid reports whether the kind is one of the known events
func (e EventKind) Valid() bool {
	switch e {
	case EventRun, EventWide, EventNoBall, EventLegBye, EventBye, EventWicket:
		return true
	}
	return false
}

// Legal reports whether the delivery counts toward the six-ball over
func (e EventKind) Legal() bool {
	return e != EventWide && e != EventNoBall
}

// WicketType is the mode of dismissal
type WicketType string

const (
	WicketBowled    WicketType = "Bowled"
	WicketCaught    WicketType = "Caught"
	WicketLBW       WicketType = "LBW"
	WicketRunOut    WicketType = "Run Out"
	WicketStumped   WicketType = "Stumped"
	WicketHitWicket WicketType = "Hit Wicket"
)

// Valid reports whether the wicket type is recognised
func (w WicketType) Valid() bool {
	switch w {
	case WicketBowled, WicketCaught, WicketLBW, WicketRunOut, WicketStumped, WicketHitWicket:
		return true
	}
	return false
}

// CreditsBowler reports whether the bowler is credited with the dismissal
func (w WicketType) CreditsBowler() bool {
	return w != WicketRunOut
}

// Slot holds a player selection that may still be awaiting a choice.
// The zero value means nobody has been selected.
type Slot struct {
	ID    int  `json:"id"`
	Valid bool `json:"valid"`
}

// Selected returns a filled slot
func Selected(id int) Slot {
	return Slot{ID: id, Valid: true}
}

// Empty reports whether the slot awaits a selection
func (s Slot) Empty() bool {
	return !s.Valid
}

// Is reports whether the slot holds the given player
func (s Slot) Is(id int) bool {
	return s.Valid && s.ID == id
}

// BallDetails is the scorer's input for one delivery
type BallDetails struct {
	Event      EventKind  `json:"event"`
	Runs       int        `json:"runs"`
	Extras     int        `json:"extras"`
	WicketType WicketType `json:"wicket_type,omitempty"`
	FielderID  *int       `json:"fielder_id,omitempty"`
}

// Validate checks the input is internally consistent
func (d BallDetails) Validate() error {
	if !d.Event.Valid() {
		return fmt.Errorf("unknown event %q", d.Event)
	}
	if d.Runs < 0 || d.Runs > 7 {
		return fmt.Errorf("runs must be between 0 and 7, got %d", d.Runs)
	}
	if d.Extras < 0 || d.Extras > 7 {
		return fmt.Errorf("extras must be between 0 and 7, got %d", d.Extras)
	}
	if (d.Event == EventWide || d.Event == EventNoBall) && d.Extras < 1 {
		return fmt.Errorf("%s must carry at least one extra", d.Event)
	}
	if d.Event == EventWicket && !d.WicketType.Valid() {
		return fmt.Errorf("wicket requires a valid wicket type, got %q", d.WicketType)
	}
	return nil
}

// Ball is one delivery in an innings timeline. Immutable once appended.
type Ball struct {
	Event      EventKind  `json:"event"`
	Runs       int        `json:"runs"`
	Extras     int        `json:"extras"`
	IsWicket   bool       `json:"is_wicket"`
	WicketType WicketType `json:"wicket_type,omitempty"`
	StrikerID  int        `json:"striker_id"`
	NonStriker int        `json:"non_striker_id"`
	BowlerID   int        `json:"bowler_id"`
	Fielder    Slot       `json:"fielder"`
	Display    string     `json:"display"`
	Over       float64    `json:"over"`       // e.g. 4.3
	OverIndex  int        `json:"over_index"` // zero-based over the ball belongs to
	FreeHit    bool       `json:"free_hit"`   // bowled as a free hit
}

// Total is everything the delivery added to the score
func (b Ball) Total() int {
	return b.Runs + b.Extras
}

// Dot reports a legal delivery that produced nothing
func (b Ball) Dot() bool {
	return b.Event.Legal() && b.Total() == 0 && !b.IsWicket
}

// Boundary reports a four or six off the bat
func (b Ball) Boundary() bool {
	return b.Runs >= 4
}

// RunsRun is the number of runs the batters physically completed
func (b Ball) RunsRun() int {
	return runsRun(b.Event, b.Runs, b.Extras)
}

// RunsRun is the number of runs the batters physically completed
func (d BallDetails) RunsRun() int {
	return runsRun(d.Event, d.Runs, d.Extras)
}

func runsRun(event EventKind, runs, extras int) int {
	switch event {
	case EventBye, EventLegBye:
		return extras
	default:
		return runs
	}
}

// DisplayToken renders the compact scorecard token for a delivery
func DisplayToken(d BallDetails, wicket bool) string {
	switch {
	case wicket:
		return "W"
	case d.Event == EventWide:
		if d.Extras > 1 {
			return fmt.Sprintf("%dwd", d.Extras)
		}
		return "wd"
	case d.Event == EventNoBall:
		if d.Runs > 0 {
			return fmt.Sprintf("nb+%d", d.Runs)
		}
		return "nb"
	case d.Event == EventBye:
		return fmt.Sprintf("%db", d.Extras)
	case d.Event == EventLegBye:
		return fmt.Sprintf("%dlb", d.Extras)
	case d.Runs == 0:
		return "."
	default:
		return fmt.Sprintf("%d", d.Runs)
	}
}

// FallOfWicket records the score when a batter was dismissed
type FallOfWicket struct {
	Score    int     `json:"score"`
	Wicket   int     `json:"wicket"`
	Over     float64 `json:"over"`
	PlayerID int     `json:"player_id"`
	Name     string  `json:"name"`
}

// Partnership is the stand between the two batters at the crease
type Partnership struct {
	BatterA int `json:"batter_a"`
	BatterB int `json:"batter_b"`
	Runs    int `json:"runs"`
	Balls   int `json:"balls"`
}

// FieldPlacement puts a fielder at a named position
type FieldPlacement struct {
	PlayerID int    `json:"player_id"`
	Position string `json:"position"`
}
