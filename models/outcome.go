package models

import "fmt"

// OutcomeKind tags a simulated delivery
type OutcomeKind string

const (
	OutcomeDot    OutcomeKind = "DOT"
	OutcomeSingle OutcomeKind = "SINGLE"
	OutcomeDouble OutcomeKind = "DOUBLE"
	OutcomeFour   OutcomeKind = "FOUR"
	OutcomeSix    OutcomeKind = "SIX"
	OutcomeWicket OutcomeKind = "WICKET"
	OutcomeWide   OutcomeKind = "WIDE"
	OutcomeNoBall OutcomeKind = "NO_BALL"
	OutcomeBye    OutcomeKind = "BYE"
	OutcomeLegBye OutcomeKind = "LEG_BYE"
)

// BallOutcome is one synthesised delivery
type BallOutcome struct {
	Kind       OutcomeKind `json:"kind"`
	Runs       int         `json:"runs"`
	WicketType WicketType  `json:"wicket_type,omitempty"`
	FielderID  *int        `json:"fielder_id,omitempty"`
}

// Dot returns a dot-ball outcome
func Dot() BallOutcome { return BallOutcome{Kind: OutcomeDot} }

// Single returns a one-run outcome
func Single() BallOutcome { return BallOutcome{Kind: OutcomeSingle, Runs: 1} }

// Double returns a two-run outcome
func Double() BallOutcome { return BallOutcome{Kind: OutcomeDouble, Runs: 2} }

// Four returns a boundary outcome
func Four() BallOutcome { return BallOutcome{Kind: OutcomeFour, Runs: 4} }

// Six returns a maximum outcome
func Six() BallOutcome { return BallOutcome{Kind: OutcomeSix, Runs: 6} }

// Wide returns a one-extra wide
func Wide() BallOutcome { return BallOutcome{Kind: OutcomeWide, Runs: 1} }

// NoBall returns a one-extra no-ball
func NoBall() BallOutcome { return BallOutcome{Kind: OutcomeNoBall, Runs: 1} }

// Out returns a dismissal
func Out(wt WicketType) BallOutcome {
	return BallOutcome{Kind: OutcomeWicket, WicketType: wt}
}

// Legal reports whether the outcome counts toward the six-ball over
func (o BallOutcome) Legal() bool {
	return o.Kind != OutcomeWide && o.Kind != OutcomeNoBall
}

// Total is everything the outcome adds to the score
func (o BallOutcome) Total() int {
	return o.Runs
}

// Details converts the outcome into scorer input for the match engine
func (o BallOutcome) Details() (BallDetails, error) {
	switch o.Kind {
	case OutcomeDot:
		return BallDetails{Event: EventRun}, nil
	case OutcomeSingle, OutcomeDouble, OutcomeFour, OutcomeSix:
		return BallDetails{Event: EventRun, Runs: o.Runs}, nil
	case OutcomeWicket:
		wt := o.WicketType
		if wt == "" {
			wt = WicketBowled
		}
		return BallDetails{Event: EventWicket, WicketType: wt, FielderID: o.FielderID}, nil
	case OutcomeWide:
		return BallDetails{Event: EventWide, Extras: max(o.Runs, 1)}, nil
	case OutcomeNoBall:
		// runs beyond the penalty were struck off the bat
		return BallDetails{Event: EventNoBall, Extras: 1, Runs: max(o.Runs-1, 0)}, nil
	case OutcomeBye:
		return BallDetails{Event: EventBye, Extras: max(o.Runs, 1)}, nil
	case OutcomeLegBye:
		return BallDetails{Event: EventLegBye, Extras: max(o.Runs, 1)}, nil
	}
	return BallDetails{}, fmt.Errorf("unknown outcome kind %q", o.Kind)
}

// OverSimulationResult is a synthesised over
type OverSimulationResult struct {
	Outcomes   []BallOutcome          `json:"outcomes"`
	Commentary string                 `json:"commentary"`
	Cost       float64                `json:"cost"`
	Strategy   string                 `json:"strategy"`
	PatternID  string                 `json:"pattern_id,omitempty"`
	Cached     bool                   `json:"cached"`
	Debug      map[string]interface{} `json:"debug,omitempty"`
}

// Clone returns a copy that shares no slices or maps with the original
func (r OverSimulationResult) Clone() OverSimulationResult {
	out := r
	out.Outcomes = append([]BallOutcome(nil), r.Outcomes...)
	if r.Debug != nil {
		out.Debug = make(map[string]interface{}, len(r.Debug))
		for k, v := range r.Debug {
			out.Debug[k] = v
		}
	}
	return out
}

// Runs totals the runs in the simulated over
func (r OverSimulationResult) Runs() int {
	total := 0
	for _, o := range r.Outcomes {
		total += o.Total()
	}
	return total
}
