package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cricket-sim/models"

	"github.com/sirupsen/logrus"
)

// DefaultGenerativeThreshold is the complexity from which overs are generated
const DefaultGenerativeThreshold = 7

// Generator turns a prompt into text. Cost is whatever the provider billed.
type Generator interface {
	Generate(ctx context.Context, prompt string) (text string, cost float64, err error)
}

// GenerativeStrategy hands high-stakes overs to an external text generator
type GenerativeStrategy struct {
	gen       Generator
	threshold int
	mods      Modifiers
	log       *logrus.Entry
}

// NewGenerativeStrategy claims complexities at or above threshold
func NewGenerativeStrategy(gen Generator, threshold int, mods Modifiers, log *logrus.Entry) *GenerativeStrategy {
	if threshold <= 0 {
		threshold = DefaultGenerativeThreshold
	}
	return &GenerativeStrategy{gen: gen, threshold: threshold, mods: mods, log: log}
}

func (s *GenerativeStrategy) Name() string  { return StrategyGenerative }
func (s *GenerativeStrategy) Priority() int { return 2 }

func (s *GenerativeStrategy) CanHandle(c CricketContext) bool {
	return c.Complexity >= s.threshold
}

func (s *GenerativeStrategy) Simulate(ctx context.Context, c CricketContext) (models.OverSimulationResult, error) {
	prompt := BuildPrompt(c, s.mods)

	text, cost, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return models.OverSimulationResult{}, fmt.Errorf("failed to generate over: %w", err)
	}

	outcomes, commentary, err := ParseOverResponse(text, c.BallsLeftInOver())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"match_id":   c.MatchID,
			"over":       c.Over,
			"complexity": c.Complexity,
		}).WithError(err).Warn("Rejected generated over")
		return models.OverSimulationResult{}, err
	}
	if commentary == "" {
		commentary = describeOver(c, outcomes)
	}

	return models.OverSimulationResult{
		Outcomes:   outcomes,
		Commentary: commentary,
		Cost:       cost,
		Strategy:   StrategyGenerative,
		Debug: map[string]interface{}{
			"complexity": c.Complexity,
			"prompt":     prompt,
		},
	}, nil
}

// BuildPrompt summarises the situation for the generator and states the
// response format it must follow.
func BuildPrompt(c CricketContext, mods Modifiers) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are simulating a limited-overs cricket match ball by ball.\n\n")
	fmt.Fprintf(&b, "Phase: %s. Over %d.%d of %d.\n", c.Phase, c.Over, c.Ball, c.MaxOvers)
	fmt.Fprintf(&b, "Score: %d/%d. Current run rate %.2f.\n", c.Score, c.Wickets, c.Pressure.CurrentRunRate)
	if c.Chasing() {
		fmt.Fprintf(&b, "Chasing %d: %d needed, required rate %.2f.\n",
			c.Target, max(c.Target-c.Score, 0), c.Pressure.RequiredRunRate)
	}
	if c.SuperOver {
		fmt.Fprintf(&b, "This is a super over.\n")
	}
	fmt.Fprintf(&b, "Wickets in hand: %d. Dot balls in a row: %d. Balls since a boundary: %d.\n",
		c.Pressure.WicketsInHand, c.Pressure.DotBallPressure, c.Pressure.BoundaryPressure)
	fmt.Fprintf(&b, "Momentum (-10 to 10): batting %.1f, bowling %.1f, this over %.1f.\n",
		c.Momentum.Batting, c.Momentum.Bowling, c.Momentum.Over)
	if c.FreeHit {
		fmt.Fprintf(&b, "The next delivery is a free hit.\n")
	}
	if c.Ground != nil {
		writeGround(&b, *c.Ground)
	}

	writePlayer(&b, "Striker", c.Striker, fmt.Sprintf("%d (%d balls)", c.Striker.Runs, c.Striker.Balls), mods)
	writePlayer(&b, "Non-striker", c.NonStriker, fmt.Sprintf("%d (%d balls)", c.NonStriker.Runs, c.NonStriker.Balls), mods)
	writePlayer(&b, "Bowler", c.Bowler, fmt.Sprintf("%d-%d off %d balls", c.Bowler.Wickets, c.Bowler.Conceded, c.Bowler.Balls), mods)

	fmt.Fprintf(&b, "\nSimulate the next %d legal deliveries of this over (at most 6 deliveries in total).\n", c.BallsLeftInOver())
	fmt.Fprintf(&b, "Reply with JSON only, no prose, in exactly this shape:\n")
	fmt.Fprintf(&b, `{"balls":[{"event":"run","runs":1},{"event":"w","runs":0,"wicket_type":"Caught","fielder_id":7}],"commentary":"..."}`+"\n")
	fmt.Fprintf(&b, "event is one of run, wd, nb, b, lb, w. For run, runs is 0, 1, 2, 4 or 6. ")
	fmt.Fprintf(&b, "For wd, nb, b and lb, runs is the total the delivery added. ")
	fmt.Fprintf(&b, "For w, runs is 0 and wicket_type is one of Bowled, Caught, LBW, Run Out, Stumped, Hit Wicket.\n")
	return b.String()
}

func writeGround(b *strings.Builder, g Ground) {
	switch {
	case g.Pitch.IsBattingFriendly():
		b.WriteString("Pitch: batting-friendly, expect runs.\n")
	case g.Pitch.IsBowlingFriendly():
		b.WriteString("Pitch: bowling-friendly, wickets come easier and runs are hard to find.\n")
	default:
		b.WriteString("Pitch: even contest between bat and ball.\n")
	}
	if carry := models.AltitudeCarry(g.Altitude); carry > 1 {
		fmt.Fprintf(b, "Altitude %d ft, the ball carries further.\n", g.Altitude)
	}
}

func writePlayer(b *strings.Builder, role string, p PlayerSnapshot, figures string, mods Modifiers) {
	if p.Name == "" {
		fmt.Fprintf(b, "%s: to be decided.\n", role)
		return
	}
	fmt.Fprintf(b, "%s: %s (rating %.0f), %s.", role, p.Name, p.Rating, figures)
	if n := mods.Narrative(p.ID); n != "" {
		fmt.Fprintf(b, " %s", n)
	}
	b.WriteString("\n")
}

type generatedBall struct {
	Event      models.EventKind  `json:"event"`
	Runs       int               `json:"runs"`
	WicketType models.WicketType `json:"wicket_type,omitempty"`
	FielderID  *int              `json:"fielder_id,omitempty"`
}

type generatedOver struct {
	Balls      []generatedBall `json:"balls"`
	Commentary string          `json:"commentary"`
}

// ParseOverResponse validates a generated over against the response schema.
// Nothing is defaulted: any deviation is an ErrMalformedResponse.
func ParseOverResponse(text string, legalLeft int) ([]models.BallOutcome, string, error) {
	body := stripFence(strings.TrimSpace(text))

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var over generatedOver
	if err := dec.Decode(&over); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if dec.More() {
		return nil, "", fmt.Errorf("%w: trailing data after the over", ErrMalformedResponse)
	}
	if len(over.Balls) == 0 || len(over.Balls) > maxOutcomesPerOver {
		return nil, "", fmt.Errorf("%w: expected 1 to %d balls, got %d", ErrMalformedResponse, maxOutcomesPerOver, len(over.Balls))
	}

	outcomes := make([]models.BallOutcome, 0, len(over.Balls))
	legal := 0
	for i, gb := range over.Balls {
		o, err := gb.outcome()
		if err != nil {
			return nil, "", fmt.Errorf("%w: ball %d: %v", ErrMalformedResponse, i+1, err)
		}
		if o.Legal() {
			legal++
		}
		outcomes = append(outcomes, o)
	}
	if legal > legalLeft {
		return nil, "", fmt.Errorf("%w: %d legal balls but only %d left in the over", ErrMalformedResponse, legal, legalLeft)
	}

	return outcomes, strings.TrimSpace(over.Commentary), nil
}

func (gb generatedBall) outcome() (models.BallOutcome, error) {
	if gb.FielderID != nil && gb.Event != models.EventWicket {
		return models.BallOutcome{}, fmt.Errorf("fielder given for %q", gb.Event)
	}

	switch gb.Event {
	case models.EventRun:
		switch gb.Runs {
		case 0:
			return models.Dot(), nil
		case 1:
			return models.Single(), nil
		case 2:
			return models.Double(), nil
		case 4:
			return models.Four(), nil
		case 6:
			return models.Six(), nil
		}
		return models.BallOutcome{}, fmt.Errorf("runs %d off the bat", gb.Runs)
	case models.EventWide:
		if gb.Runs < 1 || gb.Runs > 5 {
			return models.BallOutcome{}, fmt.Errorf("wide worth %d", gb.Runs)
		}
		return models.BallOutcome{Kind: models.OutcomeWide, Runs: gb.Runs}, nil
	case models.EventNoBall:
		if gb.Runs < 1 || gb.Runs > 7 {
			return models.BallOutcome{}, fmt.Errorf("no-ball worth %d", gb.Runs)
		}
		return models.BallOutcome{Kind: models.OutcomeNoBall, Runs: gb.Runs}, nil
	case models.EventBye, models.EventLegBye:
		if gb.Runs < 1 || gb.Runs > 4 {
			return models.BallOutcome{}, fmt.Errorf("%s worth %d", gb.Event, gb.Runs)
		}
		kind := models.OutcomeBye
		if gb.Event == models.EventLegBye {
			kind = models.OutcomeLegBye
		}
		return models.BallOutcome{Kind: kind, Runs: gb.Runs}, nil
	case models.EventWicket:
		if !gb.WicketType.Valid() {
			return models.BallOutcome{}, fmt.Errorf("wicket type %q", gb.WicketType)
		}
		if gb.Runs != 0 {
			return models.BallOutcome{}, fmt.Errorf("wicket worth %d", gb.Runs)
		}
		o := models.Out(gb.WicketType)
		o.FielderID = gb.FielderID
		return o, nil
	}
	return models.BallOutcome{}, fmt.Errorf("unknown event %q", gb.Event)
}

// stripFence removes a markdown code fence wrapped around the JSON
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}
