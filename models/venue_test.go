package models

import (
	"testing"
)

// TestPitchMultiplier tests pitch factor retrieval
func TestPitchMultiplier(t *testing.T) {
	pf := PitchFactors{
		RunsFactor:     102.0,
		BoundaryFactor: 110.0,
		WicketFactor:   95.0,
	}

	tests := []struct {
		outcome     OutcomeKind
		expectedMin float64
		expectedMax float64
	}{
		{OutcomeFour, 1.09, 1.11},
		{OutcomeSix, 1.09, 1.11}, // falls back to boundary factor
		{OutcomeSingle, 1.01, 1.03},
		{OutcomeWicket, 0.94, 0.96},
		{OutcomeWide, 1.0, 1.0}, // unset factor is neutral
		{OutcomeDot, 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			multiplier := pf.Multiplier(tt.outcome)
			if multiplier < tt.expectedMin || multiplier > tt.expectedMax {
				t.Errorf("Multiplier(%s) = %f, want between %f and %f",
					tt.outcome, multiplier, tt.expectedMin, tt.expectedMax)
			}
		})
	}
}

// TestAltitudeCarry tests altitude effects on six hitting
func TestAltitudeCarry(t *testing.T) {
	tests := []struct {
		altitude int
		expected float64
		desc     string
	}{
		{0, 1.0, "sea level"},
		{1000, 1.0, "threshold"},
		{3000, 1.04, "moderate elevation"},
		{5700, 1.094, "highveld"},
		{12000, 1.20, "extreme altitude (capped)"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			effect := AltitudeCarry(tt.altitude)
			if effect < tt.expected-0.01 || effect > tt.expected+0.01 {
				t.Errorf("AltitudeCarry(%d) = %f, want ~%f", tt.altitude, effect, tt.expected)
			}
		})
	}
}

func TestPitchCharacter(t *testing.T) {
	flat := PitchFactors{RunsFactor: 110, BoundaryFactor: 112}
	if !flat.IsBattingFriendly() {
		t.Error("expected flat deck to be batting friendly")
	}

	green := PitchFactors{RunsFactor: 92, WicketFactor: 110}
	if !green.IsBowlingFriendly() {
		t.Error("expected green top to be bowling friendly")
	}

	if DefaultPitchFactors().IsBattingFriendly() || DefaultPitchFactors().IsBowlingFriendly() {
		t.Error("neutral pitch should favour nobody")
	}
}

func TestVenueIndoor(t *testing.T) {
	tests := []struct {
		roofType string
		expected bool
	}{
		{"dome", true},
		{"fixed_roof", true},
		{"retractable", false},
		{"open", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.roofType, func(t *testing.T) {
			if got := (Venue{RoofType: tt.roofType}).Indoor(); got != tt.expected {
				t.Errorf("Indoor(%s) = %v, want %v", tt.roofType, got, tt.expected)
			}
		})
	}
}
