// Package sm2 implements the two-phase spaced-repetition scheduler: a card
// walks a short sequence of fixed learning steps, graduates, and from then on
// grows its interval by an ease factor adjusted on every review.
//
// Review is a pure state transition with no I/O; callers own the surrounding
// read-modify-write of the persisted state row.
package sm2

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Quality is the user's response to a review. Exactly three coarse buckets
// are accepted; anything else is a contract violation.
type Quality int

const (
	Again Quality = 1 // failed to recall
	Good  Quality = 2 // recalled acceptably
	Easy  Quality = 3 // recalled without effort
)

// ErrInvalidQuality is returned when Review is called with a value outside
// the three-bucket enum. The engine rejects rather than clamps.
var ErrInvalidQuality = errors.New("sm2: invalid quality")

var qualityNames = map[Quality]string{Again: "again", Good: "good", Easy: "easy"}

// IsValid reports whether q is one of Again, Good or Easy.
func (q Quality) IsValid() bool {
	_, ok := qualityNames[q]
	return ok
}

func (q Quality) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// ParseQuality converts a textual rating ("again", "good", "easy") into a
// Quality. Matching is case-insensitive.
func ParseQuality(s string) (Quality, error) {
	for q, name := range qualityNames {
		if strings.EqualFold(s, name) {
			return q, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidQuality, s)
}

// StepGraduated is the sentinel learning-step value of a card that has left
// the learning phase.
const StepGraduated = -1

// Phase identifies which scheduling regime a state is in.
type Phase string

const (
	PhaseNew      Phase = "new"
	PhaseLearning Phase = "learning"
	PhaseReview   Phase = "review"
)

// Params holds the scheduler's tunables. The three-bucket quality enum and
// the transition shape are fixed; only these values are configurable.
type Params struct {
	LearningSteps      []float64 // days per learning step
	GraduatingInterval float64   // days, the first review-phase interval
	StartingEase       float64
	MinEase            float64
	MaxEase            float64
	LapsePenalty       float64 // subtracted from ease on a review-phase failure
	EasyBonus          float64 // added to ease on a review-phase Easy
}

// DefaultParams returns the stock scheduler configuration: two learning steps
// of half a day and three days, a 7.5 day graduating interval, and ease
// bounded to [1.3, 3.0] around a 2.5 starting point.
func DefaultParams() *Params {
	return &Params{
		LearningSteps:      []float64{0.5, 3},
		GraduatingInterval: 7.5,
		StartingEase:       2.5,
		MinEase:            1.3,
		MaxEase:            3.0,
		LapsePenalty:       0.2,
		EasyBonus:          0.15,
	}
}

// State is the scheduling state the engine reads and rewrites.
type State struct {
	Phase        Phase
	Ease         float64
	IntervalDays float64
	Repetitions  int
	LearningStep int
	Due          time.Time
	LastReviewed time.Time
	Lapses       int
	TotalReviews int
}

// Result is the outcome of one review. InSession signals that the caller
// should re-present the card within the same study session instead of
// waiting for the due timestamp.
type Result struct {
	State     State
	InSession bool
}

// NewCardState returns the initial state of a freshly created card: learning
// phase at step 0, default ease, due after the first learning step.
func (p *Params) NewCardState(now time.Time) State {
	return State{
		Phase:        PhaseLearning,
		Ease:         p.StartingEase,
		IntervalDays: 0,
		LearningStep: 0,
		Due:          dueAfter(now, p.LearningSteps[0]),
	}
}

// Review applies one quality rating to a state and returns the next state.
//
// The next due timestamp is always computed from now, the wall clock of the
// review event, never from the previous due date. Reviewing early therefore
// does not compound drift, and does not preserve a fixed cadence either;
// this is intentional, not a scheduling bug.
func (p *Params) Review(s State, q Quality, now time.Time) (Result, error) {
	if !q.IsValid() {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidQuality, int(q))
	}

	next := s
	next.LastReviewed = now
	next.TotalReviews++

	// A seeded card that has never been reviewed behaves as learning at
	// its current step; the new phase only marks "no review yet".
	if next.Phase == PhaseNew {
		next.Phase = PhaseLearning
	}

	inSession := false
	if next.Phase == PhaseLearning {
		switch q {
		case Again:
			next.LearningStep = 0
			next.IntervalDays = p.LearningSteps[0]
			inSession = true
		case Good:
			step := next.LearningStep + 1
			if step >= len(p.LearningSteps) {
				p.graduate(&next)
			} else {
				next.LearningStep = step
				next.IntervalDays = p.LearningSteps[step]
				inSession = true
			}
		case Easy:
			p.graduate(&next)
		}
	} else {
		switch q {
		case Again:
			// Lapse: back to learning at step 0 with a penalized ease.
			next.Phase = PhaseLearning
			next.LearningStep = 0
			next.IntervalDays = p.LearningSteps[0]
			next.Repetitions = 0
			next.Lapses++
			next.Ease = math.Max(p.MinEase, next.Ease-p.LapsePenalty)
			inSession = true
		case Good:
			next.Repetitions++
			next.IntervalDays = round1(next.IntervalDays * next.Ease)
		case Easy:
			next.Repetitions++
			next.Ease = math.Min(p.MaxEase, next.Ease+p.EasyBonus)
			next.IntervalDays = round1(next.IntervalDays * next.Ease)
		}
	}

	next.Due = dueAfter(now, next.IntervalDays)
	return Result{State: next, InSession: inSession}, nil
}

// graduate moves a state from the learning phase into the review phase.
func (p *Params) graduate(s *State) {
	s.Phase = PhaseReview
	s.LearningStep = StepGraduated
	s.IntervalDays = p.GraduatingInterval
	s.Repetitions = 1
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// dueAfter converts a fractional day interval into a duration without
// rounding, so sub-day learning steps and fractional-hour intervals land at
// the right time of day.
func dueAfter(now time.Time, intervalDays float64) time.Time {
	return now.Add(time.Duration(intervalDays * 24 * float64(time.Hour)))
}
