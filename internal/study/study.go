// Package study is the review surface the surrounding application calls:
// due-item queries and the read-modify-write around the scheduling engine,
// for flashcards and grammar concepts alike.
package study

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/decker/internal/domain"
	"github.com/conorfennell/decker/internal/sm2"
	"github.com/conorfennell/decker/internal/storage"
)

// Service wires the engine to persisted review state.
//
// Concurrent reviews of the same card by the same user are not serialized;
// review is expected to be serialized per user session, matching the
// original behavior.
type Service struct {
	db     *storage.DB
	params *sm2.Params
	logger *slog.Logger
}

// New creates a Service.
func New(db *storage.DB, params *sm2.Params, logger *slog.Logger) *Service {
	return &Service{db: db, params: params, logger: logger}
}

// CardReview is the outcome of reviewing one card. InSession signals that
// the card should be re-presented within the same study session.
type CardReview struct {
	State     *domain.CardReviewState
	InSession bool
}

// ConceptReview is the outcome of reviewing one grammar concept. Label is a
// display-only classification with no effect on scheduling.
type ConceptReview struct {
	State     *domain.ConceptReviewState
	Label     sm2.MasteryLabel
	InSession bool
}

// ReviewCard applies a quality rating to a card's scheduling state and
// persists the new state plus a review log entry.
func (s *Service) ReviewCard(ctx context.Context, userID string, cardID int64, quality sm2.Quality) (*CardReview, error) {
	state, err := s.db.GetCardReviewState(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res, err := s.params.Review(engineState(
		state.Phase, state.Ease, state.IntervalDays, state.Repetitions,
		state.LearningStep, state.Lapses, state.TotalReviews,
	), quality, now)
	if err != nil {
		return nil, err
	}

	applyCard(state, res.State)
	if err := s.db.UpdateCardReviewState(ctx, state); err != nil {
		return nil, err
	}

	if err := s.db.InsertReviewLog(ctx, &domain.ReviewLog{
		UserID:       userID,
		CardID:       cardID,
		Quality:      quality.String(),
		ReviewedAt:   now,
		IntervalDays: state.IntervalDays,
		Ease:         state.Ease,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("reviewed card",
		"card_id", cardID,
		"quality", quality.String(),
		"phase", state.Phase,
		"interval_days", state.IntervalDays,
		"in_session", res.InSession,
	)
	return &CardReview{State: state, InSession: res.InSession}, nil
}

// ReviewConcept applies a quality rating to a grammar concept. The state row
// is created on the concept's first review; there is no import to seed it.
func (s *Service) ReviewConcept(ctx context.Context, userID, conceptID string, quality sm2.Quality) (*ConceptReview, error) {
	// Validate before touching storage so a bad rating never creates a row.
	if !quality.IsValid() {
		return nil, fmt.Errorf("%w: %d", sm2.ErrInvalidQuality, int(quality))
	}

	state, err := s.db.FindConceptReviewState(ctx, userID, conceptID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	created := false
	if state == nil {
		created = true
		initial := s.params.NewCardState(now)
		state = &domain.ConceptReviewState{
			UserID:       userID,
			ConceptID:    conceptID,
			Ease:         initial.Ease,
			LearningStep: initial.LearningStep,
			Phase:        domain.PhaseNew,
		}
	}

	res, err := s.params.Review(engineState(
		state.Phase, state.Ease, state.IntervalDays, state.Repetitions,
		state.LearningStep, state.Lapses, state.TotalReviews,
	), quality, now)
	if err != nil {
		return nil, err
	}

	applyConcept(state, res.State)
	if created {
		err = s.db.InsertConceptReviewState(ctx, state)
	} else {
		err = s.db.UpdateConceptReviewState(ctx, state)
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.InsertReviewLog(ctx, &domain.ReviewLog{
		UserID:       userID,
		ConceptID:    conceptID,
		Quality:      quality.String(),
		ReviewedAt:   now,
		IntervalDays: state.IntervalDays,
		Ease:         state.Ease,
	}); err != nil {
		return nil, err
	}

	label := sm2.Mastery(res.State)
	s.logger.Info("reviewed concept",
		"concept_id", conceptID,
		"quality", quality.String(),
		"phase", state.Phase,
		"mastery", label,
	)
	return &ConceptReview{State: state, Label: label, InSession: res.InSession}, nil
}

// DueCards returns the user's cards due for review, most overdue first,
// with new cards at the end.
func (s *Service) DueCards(ctx context.Context, userID string, limit int) ([]storage.DueCard, error) {
	return s.db.DueCards(ctx, userID, time.Now(), limit)
}

// DueConcepts returns the user's concepts due for practice.
func (s *Service) DueConcepts(ctx context.Context, userID string, limit int) ([]*domain.ConceptReviewState, error) {
	return s.db.DueConcepts(ctx, userID, time.Now(), limit)
}

// ConceptMastery returns the display label for a concept, MasteryNew when
// it has never been reviewed.
func (s *Service) ConceptMastery(ctx context.Context, userID, conceptID string) (sm2.MasteryLabel, error) {
	state, err := s.db.FindConceptReviewState(ctx, userID, conceptID)
	if err != nil {
		return "", err
	}
	if state == nil {
		return sm2.MasteryNew, nil
	}
	return sm2.Mastery(engineState(
		state.Phase, state.Ease, state.IntervalDays, state.Repetitions,
		state.LearningStep, state.Lapses, state.TotalReviews,
	)), nil
}

func engineState(phase domain.Phase, ease, interval float64, reps, step, lapses, total int) sm2.State {
	return sm2.State{
		Phase:        sm2.Phase(phase),
		Ease:         ease,
		IntervalDays: interval,
		Repetitions:  reps,
		LearningStep: step,
		Lapses:       lapses,
		TotalReviews: total,
	}
}

func applyCard(dst *domain.CardReviewState, src sm2.State) {
	dst.Ease = src.Ease
	dst.IntervalDays = src.IntervalDays
	dst.Repetitions = src.Repetitions
	dst.LearningStep = src.LearningStep
	dst.Lapses = src.Lapses
	dst.TotalReviews = src.TotalReviews
	dst.Phase = domain.Phase(src.Phase)
	due := src.Due
	dst.Due = &due
	last := src.LastReviewed
	dst.LastReviewed = &last
}

func applyConcept(dst *domain.ConceptReviewState, src sm2.State) {
	dst.Ease = src.Ease
	dst.IntervalDays = src.IntervalDays
	dst.Repetitions = src.Repetitions
	dst.LearningStep = src.LearningStep
	dst.Lapses = src.Lapses
	dst.TotalReviews = src.TotalReviews
	dst.Phase = domain.Phase(src.Phase)
	due := src.Due
	dst.Due = &due
	last := src.LastReviewed
	dst.LastReviewed = &last
}
