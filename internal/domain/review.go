package domain

import "time"

// Phase identifies which scheduling regime a card or concept is in.
type Phase string

const (
	PhaseNew      Phase = "new"
	PhaseLearning Phase = "learning"
	PhaseReview   Phase = "review"
)

// CardReviewState is the per-(user, card) scheduling state. It is seeded once
// at import time and rewritten by the engine on every review event; nothing
// else mutates it.
//
// LearningStep is a step index (>= 0) while the card walks the learning
// steps, and -1 once it has graduated to the review phase. The two are
// mutually exclusive: a graduated card is never mid-step.
type CardReviewState struct {
	ID           int64
	UserID       string
	CardID       int64
	Ease         float64 // kept within [1.3, 3.0]
	IntervalDays float64 // fractional, learning steps are sub-day
	Repetitions  int
	LearningStep int
	Due          *time.Time // nil until the first review of a new card
	LastReviewed *time.Time
	Lapses       int
	TotalReviews int
	Phase        Phase
}

// ConceptReviewState is the same scheduling state keyed by (user, grammar
// concept) instead of (user, card). It is created lazily on the concept's
// first review rather than seeded by an import.
type ConceptReviewState struct {
	ID           int64
	UserID       string
	ConceptID    string
	Ease         float64
	IntervalDays float64
	Repetitions  int
	LearningStep int
	Due          *time.Time
	LastReviewed *time.Time
	Lapses       int
	TotalReviews int
	Phase        Phase
}

// ReviewLog is an append-only record of a single review event and the
// interval/ease that resulted from it. Exactly one of CardID and ConceptID
// is set.
type ReviewLog struct {
	ID           int64
	UserID       string
	CardID       int64
	ConceptID    string
	Quality      string
	ReviewedAt   time.Time
	IntervalDays float64
	Ease         float64
}
