package models

import "time"

// Player represents a cricketer in a match squad
type Player struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	Rating         float64       `json:"rating"` // 1-100, seeds reputation only
	IsSubstitute   bool          `json:"is_substitute"`
	IsImpactPlayer bool          `json:"is_impact_player"`
	Batting        BattingRecord `json:"batting"`
	Bowling        BowlingRecord `json:"bowling"`
}

// BattingRecord accumulates a player's innings with the bat
type BattingRecord struct {
	Runs       int     `json:"runs"`
	Balls      int     `json:"balls"`
	Fours      int     `json:"fours"`
	Sixes      int     `json:"sixes"`
	StrikeRate float64 `json:"strike_rate"`
	Out        bool    `json:"out"`
	Dismissal  string  `json:"dismissal,omitempty"`
}

// BowlingRecord accumulates a player's spell with the ball
type BowlingRecord struct {
	Balls   int     `json:"balls"` // legal deliveries
	Runs    int     `json:"runs"`
	Wickets int     `json:"wickets"`
	Maidens int     `json:"maidens"`
	Economy float64 `json:"economy"`
}

// Eligible reports whether the player may bat or bowl in the current XI
func (p Player) Eligible() bool {
	return !p.IsSubstitute || p.IsImpactPlayer
}

// Overs returns completed overs and spare balls bowled, e.g. 3.4
func (b BowlingRecord) Overs() float64 {
	return float64(b.Balls/6) + float64(b.Balls%6)/10
}

// Recalculate derives strike rate from the accumulated totals
func (b *BattingRecord) Recalculate() {
	if b.Balls == 0 {
		b.StrikeRate = 0
		return
	}
	b.StrikeRate = float64(b.Runs) / float64(b.Balls) * 100
}

// Recalculate derives economy from the accumulated totals
func (b *BowlingRecord) Recalculate() {
	if b.Balls == 0 {
		b.Economy = 0
		return
	}
	b.Economy = float64(b.Runs) / (float64(b.Balls) / 6)
}

// Team represents one side's squad for a match
type Team struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Players          []Player `json:"players"`
	ImpactPlayerUsed bool     `json:"impact_player_used"`
}

// Player returns a pointer into the squad for the given id
func (t *Team) Player(id int) *Player {
	for i := range t.Players {
		if t.Players[i].ID == id {
			return &t.Players[i]
		}
	}
	return nil
}

// EligibleCount returns how many players are in the playing XI
func (t *Team) EligibleCount() int {
	count := 0
	for _, p := range t.Players {
		if p.Eligible() {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the team
func (t Team) Clone() Team {
	out := t
	out.Players = append([]Player(nil), t.Players...)
	return out
}

// ResetRecords clears every accumulated batting and bowling record
func (t *Team) ResetRecords() {
	for i := range t.Players {
		t.Players[i].Batting = BattingRecord{}
		t.Players[i].Bowling = BowlingRecord{}
	}
}

// PlayerRating is the persisted reputation of a player across matches
type PlayerRating struct {
	PlayerID      int       `json:"player_id"`
	Name          string    `json:"name"`
	Rating        float64   `json:"rating"`
	MatchesPlayed int       `json:"matches_played"`
	LastDelta     float64   `json:"last_delta"`
	UpdatedAt     time.Time `json:"updated_at"`
}
