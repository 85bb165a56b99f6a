package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/decker/internal/domain"
)

const cardStateColumns = "id, user_id, card_id, ease, interval_days, repetitions, learning_step, due, last_reviewed, lapses, total_reviews, phase"
const conceptStateColumns = "id, user_id, concept_id, ease, interval_days, repetitions, learning_step, due, last_reviewed, lapses, total_reviews, phase"

func insertCardState(ctx context.Context, tx *sql.Tx, s *domain.CardReviewState) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO card_review_states (user_id, card_id, ease, interval_days, repetitions, learning_step, due, last_reviewed, lapses, total_reviews, phase)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.UserID,
		s.CardID,
		s.Ease,
		s.IntervalDays,
		s.Repetitions,
		s.LearningStep,
		nullableTime(s.Due),
		nullableTime(s.LastReviewed),
		s.Lapses,
		s.TotalReviews,
		string(s.Phase),
	)
	if err != nil {
		return fmt.Errorf("failed to insert review state for card %d: %w", s.CardID, err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get review state id: %w", err)
	}
	return nil
}

// GetCardReviewState retrieves the scheduling state of one (user, card) pair.
func (db *DB) GetCardReviewState(ctx context.Context, userID string, cardID int64) (*domain.CardReviewState, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardStateColumns+`
		FROM card_review_states WHERE user_id = ? AND card_id = ?
	`, userID, cardID)

	s, err := scanCardState(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("review state for card %d: %w", cardID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get review state for card %d: %w", cardID, err)
	}
	return s, nil
}

// UpdateCardReviewState rewrites a card's scheduling state after a review.
func (db *DB) UpdateCardReviewState(ctx context.Context, s *domain.CardReviewState) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE card_review_states
		SET ease = ?, interval_days = ?, repetitions = ?, learning_step = ?, due = ?, last_reviewed = ?, lapses = ?, total_reviews = ?, phase = ?
		WHERE id = ?
	`,
		s.Ease,
		s.IntervalDays,
		s.Repetitions,
		s.LearningStep,
		nullableTime(s.Due),
		nullableTime(s.LastReviewed),
		s.Lapses,
		s.TotalReviews,
		string(s.Phase),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update review state %d: %w", s.ID, err)
	}
	return nil
}

// FindConceptReviewState retrieves the state of one (user, concept) pair.
// Returns (nil, nil) when the concept has never been reviewed.
func (db *DB) FindConceptReviewState(ctx context.Context, userID, conceptID string) (*domain.ConceptReviewState, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+conceptStateColumns+`
		FROM concept_review_states WHERE user_id = ? AND concept_id = ?
	`, userID, conceptID)

	s, err := scanConceptState(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Concept never reviewed
		}
		return nil, fmt.Errorf("failed to get review state for concept %s: %w", conceptID, err)
	}
	return s, nil
}

// InsertConceptReviewState creates the state row on a concept's first review.
func (db *DB) InsertConceptReviewState(ctx context.Context, s *domain.ConceptReviewState) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO concept_review_states (user_id, concept_id, ease, interval_days, repetitions, learning_step, due, last_reviewed, lapses, total_reviews, phase)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.UserID,
		s.ConceptID,
		s.Ease,
		s.IntervalDays,
		s.Repetitions,
		s.LearningStep,
		nullableTime(s.Due),
		nullableTime(s.LastReviewed),
		s.Lapses,
		s.TotalReviews,
		string(s.Phase),
	)
	if err != nil {
		return fmt.Errorf("failed to insert review state for concept %s: %w", s.ConceptID, err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get concept state id: %w", err)
	}
	return nil
}

// UpdateConceptReviewState rewrites a concept's scheduling state.
func (db *DB) UpdateConceptReviewState(ctx context.Context, s *domain.ConceptReviewState) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE concept_review_states
		SET ease = ?, interval_days = ?, repetitions = ?, learning_step = ?, due = ?, last_reviewed = ?, lapses = ?, total_reviews = ?, phase = ?
		WHERE id = ?
	`,
		s.Ease,
		s.IntervalDays,
		s.Repetitions,
		s.LearningStep,
		nullableTime(s.Due),
		nullableTime(s.LastReviewed),
		s.Lapses,
		s.TotalReviews,
		string(s.Phase),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update concept state %d: %w", s.ID, err)
	}
	return nil
}

// InsertReviewLog appends one review event to the history.
func (db *DB) InsertReviewLog(ctx context.Context, l *domain.ReviewLog) error {
	var cardID any
	if l.CardID != 0 {
		cardID = l.CardID
	}
	var conceptID any
	if l.ConceptID != "" {
		conceptID = l.ConceptID
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_logs (user_id, card_id, concept_id, quality, reviewed_at, interval_days, ease)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		l.UserID,
		cardID,
		conceptID,
		l.Quality,
		formatTime(l.ReviewedAt),
		l.IntervalDays,
		l.Ease,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review log: %w", err)
	}
	return nil
}

// DueCard pairs a card with its scheduling state for study queries.
type DueCard struct {
	Card  domain.Card
	State domain.CardReviewState
}

// DueCards returns the user's cards that are due at or before now, most
// overdue first, followed by new cards that have never been reviewed.
// A limit <= 0 means no limit.
func (db *DB) DueCards(ctx context.Context, userID string, now time.Time, limit int) ([]DueCard, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.id, c.note_id, c.deck_id, c.ord, c.front, c.back, c.front_audio, c.back_audio, c.card_type,
		       s.id, s.user_id, s.card_id, s.ease, s.interval_days, s.repetitions, s.learning_step, s.due, s.last_reviewed, s.lapses, s.total_reviews, s.phase
		FROM card_review_states s
		JOIN cards c ON c.id = s.card_id
		WHERE s.user_id = ? AND (s.due IS NULL OR s.due <= ?)
		ORDER BY s.due IS NULL, s.due ASC, c.id ASC
		LIMIT ?
	`, userID, formatTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due cards: %w", err)
	}
	defer rows.Close()

	var due []DueCard
	for rows.Next() {
		var d DueCard
		var frontAudio, backAudio, cardType string
		var dueRaw, lastRaw sql.NullString
		var phase string
		if err := rows.Scan(
			&d.Card.ID,
			&d.Card.NoteID,
			&d.Card.DeckID,
			&d.Card.Ordinal,
			&d.Card.Front,
			&d.Card.Back,
			&frontAudio,
			&backAudio,
			&cardType,
			&d.State.ID,
			&d.State.UserID,
			&d.State.CardID,
			&d.State.Ease,
			&d.State.IntervalDays,
			&d.State.Repetitions,
			&d.State.LearningStep,
			&dueRaw,
			&lastRaw,
			&d.State.Lapses,
			&d.State.TotalReviews,
			&phase,
		); err != nil {
			return nil, fmt.Errorf("failed to scan due card row: %w", err)
		}
		d.Card.FrontAudio = decodeStrings(frontAudio)
		d.Card.BackAudio = decodeStrings(backAudio)
		d.Card.Type = domain.CardType(cardType)
		d.State.Due = timePtr(dueRaw)
		d.State.LastReviewed = timePtr(lastRaw)
		d.State.Phase = domain.Phase(phase)
		due = append(due, d)
	}
	return due, rows.Err()
}

// DueConcepts returns the user's concept states due at or before now, most
// overdue first.
func (db *DB) DueConcepts(ctx context.Context, userID string, now time.Time, limit int) ([]*domain.ConceptReviewState, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+conceptStateColumns+`
		FROM concept_review_states
		WHERE user_id = ? AND due IS NOT NULL AND due <= ?
		ORDER BY due ASC
		LIMIT ?
	`, userID, formatTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due concepts: %w", err)
	}
	defer rows.Close()

	var due []*domain.ConceptReviewState
	for rows.Next() {
		s, err := scanConceptState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due concept row: %w", err)
		}
		due = append(due, s)
	}
	return due, rows.Err()
}

func scanCardState(row interface{ Scan(dest ...any) error }) (*domain.CardReviewState, error) {
	var s domain.CardReviewState
	var dueRaw, lastRaw sql.NullString
	var phase string
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.CardID,
		&s.Ease,
		&s.IntervalDays,
		&s.Repetitions,
		&s.LearningStep,
		&dueRaw,
		&lastRaw,
		&s.Lapses,
		&s.TotalReviews,
		&phase,
	)
	if err != nil {
		return nil, err
	}
	s.Due = timePtr(dueRaw)
	s.LastReviewed = timePtr(lastRaw)
	s.Phase = domain.Phase(phase)
	return &s, nil
}

func scanConceptState(row interface{ Scan(dest ...any) error }) (*domain.ConceptReviewState, error) {
	var s domain.ConceptReviewState
	var dueRaw, lastRaw sql.NullString
	var phase string
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.ConceptID,
		&s.Ease,
		&s.IntervalDays,
		&s.Repetitions,
		&s.LearningStep,
		&dueRaw,
		&lastRaw,
		&s.Lapses,
		&s.TotalReviews,
		&phase,
	)
	if err != nil {
		return nil, err
	}
	s.Due = timePtr(dueRaw)
	s.LastReviewed = timePtr(lastRaw)
	s.Phase = domain.Phase(phase)
	return &s, nil
}
