package models

// Venue is the ground a match is played at
type Venue struct {
	Name      string       `json:"name"`
	City      string       `json:"city,omitempty"`
	Latitude  float64      `json:"latitude,omitempty"`
	Longitude float64      `json:"longitude,omitempty"`
	RoofType  string       `json:"roof_type,omitempty"` // "open", "retractable", "dome"
	Altitude  int          `json:"altitude,omitempty"`  // feet
	Pitch     PitchFactors `json:"pitch"`
}

// PitchFactors represents how a ground affects different outcomes.
// 100 is neutral, above favours batting, below favours bowling.
type PitchFactors struct {
	RunsFactor     float64 `json:"runs_factor"`
	BoundaryFactor float64 `json:"boundary_factor"`
	SixFactor      float64 `json:"six_factor"`
	WicketFactor   float64 `json:"wicket_factor"`
	ExtrasFactor   float64 `json:"extras_factor"`
}

// Multiplier returns the ground's effect on a ball outcome kind
func (pf PitchFactors) Multiplier(kind OutcomeKind) float64 {
	var factor float64
	switch kind {
	case OutcomeSix:
		factor = pf.SixFactor
		if factor == 0 {
			factor = pf.BoundaryFactor
		}
	case OutcomeFour:
		factor = pf.BoundaryFactor
	case OutcomeSingle, OutcomeDouble:
		factor = pf.RunsFactor
	case OutcomeWicket:
		factor = pf.WicketFactor
	case OutcomeWide, OutcomeNoBall, OutcomeBye, OutcomeLegBye:
		factor = pf.ExtrasFactor
	}
	if factor <= 0 {
		return 1.0
	}
	return factor / 100.0
}

// IsBattingFriendly returns true if the ground significantly favours batters
func (pf PitchFactors) IsBattingFriendly() bool {
	return pf.RunsFactor >= 105 && pf.BoundaryFactor >= 105
}

// IsBowlingFriendly returns true if the ground significantly favours bowlers
func (pf PitchFactors) IsBowlingFriendly() bool {
	return pf.RunsFactor <= 95 && pf.WicketFactor >= 105
}

// AltitudeCarry returns the six-hitting boost from thin air.
// Roughly 2% per 1000 feet above 1000 feet, capped at 20%.
func AltitudeCarry(altitude int) float64 {
	if altitude <= 1000 {
		return 1.0
	}

	boost := float64(altitude-1000) / 1000.0 * 0.02
	if boost > 0.20 {
		boost = 0.20
	}

	return 1.0 + boost
}

// Indoor reports whether play cannot be rained off
func (v Venue) Indoor() bool {
	switch v.RoofType {
	case "dome", "indoor", "fixed_roof", "closed":
		return true
	default:
		return false
	}
}

// DefaultPitchFactors returns a neutral surface
func DefaultPitchFactors() PitchFactors {
	return PitchFactors{
		RunsFactor:     100.0,
		BoundaryFactor: 100.0,
		SixFactor:      100.0,
		WicketFactor:   100.0,
		ExtrasFactor:   100.0,
	}
}
