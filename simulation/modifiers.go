package simulation

import (
	"encoding/json"
	"fmt"
	"os"
)

// PlayerModifier tunes how strongly a player's deliveries swing momentum
// and the outcome tables. A zero boost means no adjustment.
type PlayerModifier struct {
	PlayerID     int     `json:"player_id"`
	BattingBoost float64 `json:"batting_boost"`
	BowlingBoost float64 `json:"bowling_boost"`
	Narrative    string  `json:"narrative,omitempty"`
}

// Modifiers maps player id to its modifier
type Modifiers map[int]PlayerModifier

// Batting returns the batting multiplier for a player, 1 when unset
func (m Modifiers) Batting(id int) float64 {
	if mod, ok := m[id]; ok && mod.BattingBoost > 0 {
		return mod.BattingBoost
	}
	return 1
}

// Bowling returns the bowling multiplier for a player, 1 when unset
func (m Modifiers) Bowling(id int) float64 {
	if mod, ok := m[id]; ok && mod.BowlingBoost > 0 {
		return mod.BowlingBoost
	}
	return 1
}

// Narrative returns the free-text hint passed to the generative strategy
func (m Modifiers) Narrative(id int) string {
	return m[id].Narrative
}

// LoadModifiers reads a JSON array of player modifiers. An empty path yields
// an empty table.
func LoadModifiers(path string) (Modifiers, error) {
	if path == "" {
		return Modifiers{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read player modifiers: %w", err)
	}

	var list []PlayerModifier
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse player modifiers: %w", err)
	}

	out := make(Modifiers, len(list))
	for _, mod := range list {
		if mod.BattingBoost < 0 || mod.BowlingBoost < 0 {
			return nil, fmt.Errorf("player %d: boosts must not be negative", mod.PlayerID)
		}
		out[mod.PlayerID] = mod
	}
	return out, nil
}
