package scoring

import (
	"fmt"
	"strings"

	"cricket-sim/models"
)

const maxFielders = 10

// UpdateFieldPlacements replaces the field for the current over. The bowler
// is not part of the placement and the list clears itself at the end of the over.
func (e *Engine) UpdateFieldPlacements(m *models.Match, placements []models.FieldPlacement) (*models.Match, error) {
	if m.IsComplete() {
		return nil, ErrMatchFinished
	}
	if len(placements) > maxFielders {
		return nil, fmt.Errorf("%w: at most %d fielders can be placed, got %d", ErrInvalidSelection, maxFielders, len(placements))
	}

	next := m.Clone()
	inn := next.Active().Current()
	if inn == nil {
		return nil, ErrMatchFinished
	}

	seen := make(map[int]bool, len(placements))
	for _, fp := range placements {
		p := inn.BowlingTeam.Player(fp.PlayerID)
		switch {
		case p == nil || !p.Eligible():
			return nil, fmt.Errorf("%w: player %d is not fielding", ErrInvalidSelection, fp.PlayerID)
		case inn.Bowler.Is(fp.PlayerID):
			return nil, fmt.Errorf("%w: %s is bowling", ErrInvalidSelection, p.Name)
		case seen[fp.PlayerID]:
			return nil, fmt.Errorf("%w: %s placed twice", ErrInvalidSelection, p.Name)
		case strings.TrimSpace(fp.Position) == "":
			return nil, fmt.Errorf("%w: %s needs a position", ErrInvalidSelection, p.Name)
		}
		seen[fp.PlayerID] = true
	}

	inn.FieldPlacements = append([]models.FieldPlacement(nil), placements...)
	e.touch(next)
	return next, nil
}
