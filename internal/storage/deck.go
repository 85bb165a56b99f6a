package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/decker/internal/domain"
)

// fieldSeparator joins a note's field values in the fields column, matching
// the source format's unit separator so the blob round-trips byte-exact.
const fieldSeparator = "\x1f"

const deckColumns = "id, uid, user_id, name, description, source_deck_id, fingerprint, total_cards, new_cards, learning_cards, review_cards, created_at, updated_at"

// ImportGraph is the fully assembled result of one import, persisted
// all-or-nothing in a single transaction. Seed produces the review state to
// write for each card once its id is known.
type ImportGraph struct {
	Deck  *domain.Deck
	Notes []*domain.Note // Cards populated
	Media []*domain.Media
	Seed  func(c *domain.Card) *domain.CardReviewState
}

// SaveImport persists the whole deck graph: deck, notes, cards, media and
// the seeded per-card review states, then recomputes the deck counters with
// a single aggregate read. Any failure rolls everything back; nothing
// partial is ever persisted.
func (db *DB) SaveImport(ctx context.Context, g *ImportGraph) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	deck := g.Deck
	res, err := tx.ExecContext(ctx, `
		INSERT INTO decks (uid, user_id, name, description, source_deck_id, fingerprint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		deck.UID,
		deck.UserID,
		deck.Name,
		deck.Description,
		deck.SourceDeckID,
		deck.Fingerprint,
		formatTime(deck.CreatedAt),
		formatTime(deck.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deck %s: %w", deck.Name, err)
	}
	if deck.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get deck id: %w", err)
	}

	for _, note := range g.Notes {
		note.DeckID = deck.ID
		res, err := tx.ExecContext(ctx, `
			INSERT INTO notes (deck_id, fields, sort_field, tags, fingerprint)
			VALUES (?, ?, ?, ?, ?)
		`,
			note.DeckID,
			strings.Join(note.Fields, fieldSeparator),
			note.SortField,
			strings.Join(note.Tags, " "),
			note.Fingerprint,
		)
		if err != nil {
			return fmt.Errorf("failed to insert note: %w", err)
		}
		if note.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get note id: %w", err)
		}

		for _, card := range note.Cards {
			card.NoteID = note.ID
			card.DeckID = deck.ID
			res, err := tx.ExecContext(ctx, `
				INSERT INTO cards (note_id, deck_id, ord, front, back, front_audio, back_audio, card_type)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				card.NoteID,
				card.DeckID,
				card.Ordinal,
				card.Front,
				card.Back,
				encodeStrings(card.FrontAudio),
				encodeStrings(card.BackAudio),
				string(card.Type),
			)
			if err != nil {
				return fmt.Errorf("failed to insert card: %w", err)
			}
			if card.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get card id: %w", err)
			}

			state := g.Seed(card)
			state.CardID = card.ID
			if err := insertCardState(ctx, tx, state); err != nil {
				return err
			}
		}
	}

	for _, m := range g.Media {
		m.DeckID = deck.ID
		res, err := tx.ExecContext(ctx, `
			INSERT INTO media (deck_id, uid, filename, mime_type, category, size, data)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			m.DeckID,
			m.UID,
			m.Filename,
			m.MimeType,
			string(m.Category),
			m.Size,
			m.Data,
		)
		if err != nil {
			return fmt.Errorf("failed to insert media %s: %w", m.Filename, err)
		}
		if m.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get media id: %w", err)
		}
	}

	if err := recountDeck(ctx, tx, deck); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// recountDeck recomputes the deck's phase counters from the freshly seeded
// review states with one aggregate read and writes them back.
func recountDeck(ctx context.Context, tx *sql.Tx, deck *domain.Deck) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT s.phase, COUNT(*)
		FROM card_review_states s
		JOIN cards c ON c.id = s.card_id
		WHERE c.deck_id = ?
		GROUP BY s.phase
	`, deck.ID)
	if err != nil {
		return fmt.Errorf("failed to count deck phases: %w", err)
	}
	defer rows.Close()

	deck.TotalCards, deck.NewCards, deck.LearningCards, deck.ReviewCards = 0, 0, 0, 0
	for rows.Next() {
		var phase string
		var count int
		if err := rows.Scan(&phase, &count); err != nil {
			return fmt.Errorf("failed to scan phase count: %w", err)
		}
		deck.TotalCards += count
		switch domain.Phase(phase) {
		case domain.PhaseNew:
			deck.NewCards = count
		case domain.PhaseLearning:
			deck.LearningCards = count
		case domain.PhaseReview:
			deck.ReviewCards = count
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate phase counts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE decks
		SET total_cards = ?, new_cards = ?, learning_cards = ?, review_cards = ?, updated_at = ?
		WHERE id = ?
	`,
		deck.TotalCards,
		deck.NewCards,
		deck.LearningCards,
		deck.ReviewCards,
		formatTime(time.Now()),
		deck.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update deck counters: %w", err)
	}
	return nil
}

// GetDeck retrieves one of the user's decks by id.
func (db *DB) GetDeck(ctx context.Context, userID string, deckID int64) (*domain.Deck, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+deckColumns+`
		FROM decks WHERE id = ? AND user_id = ?
	`, deckID, userID)

	deck, err := scanDeck(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("deck %d: %w", deckID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get deck %d: %w", deckID, err)
	}
	return deck, nil
}

// ListDecks returns all of the user's decks, newest first.
func (db *DB) ListDecks(ctx context.Context, userID string) ([]*domain.Deck, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+deckColumns+`
		FROM decks WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []*domain.Deck
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, deck)
	}
	return decks, rows.Err()
}

// FindDeckByFingerprint looks up a deck by its archive fingerprint. Returns
// (nil, nil) when the archive has never been imported for this user.
func (db *DB) FindDeckByFingerprint(ctx context.Context, userID, fingerprint string) (*domain.Deck, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+deckColumns+`
		FROM decks WHERE user_id = ? AND fingerprint = ?
		ORDER BY id LIMIT 1
	`, userID, fingerprint)

	deck, err := scanDeck(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Deck not found
		}
		return nil, fmt.Errorf("failed to find deck by fingerprint: %w", err)
	}
	return deck, nil
}

// DeleteDeck removes a deck and everything rooted in it: notes, cards,
// media, every user's review states for those cards, and their review logs.
func (db *DB) DeleteDeck(ctx context.Context, userID string, deckID int64) error {
	if _, err := db.GetDeck(ctx, userID, deckID); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM review_logs WHERE card_id IN (SELECT id FROM cards WHERE deck_id = ?)`,
		`DELETE FROM card_review_states WHERE card_id IN (SELECT id FROM cards WHERE deck_id = ?)`,
		`DELETE FROM cards WHERE deck_id = ?`,
		`DELETE FROM notes WHERE deck_id = ?`,
		`DELETE FROM media WHERE deck_id = ?`,
		`DELETE FROM decks WHERE id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, deckID); err != nil {
			return fmt.Errorf("failed to cascade-delete deck %d: %w", deckID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deck delete: %w", err)
	}
	return nil
}

func scanDeck(row interface{ Scan(dest ...any) error }) (*domain.Deck, error) {
	var d domain.Deck
	var createdRaw, updatedRaw string
	err := row.Scan(
		&d.ID,
		&d.UID,
		&d.UserID,
		&d.Name,
		&d.Description,
		&d.SourceDeckID,
		&d.Fingerprint,
		&d.TotalCards,
		&d.NewCards,
		&d.LearningCards,
		&d.ReviewCards,
		&createdRaw,
		&updatedRaw,
	)
	if err != nil {
		return nil, err
	}
	if t, err := parseTime(createdRaw); err == nil {
		d.CreatedAt = t
	}
	if t, err := parseTime(updatedRaw); err == nil {
		d.UpdatedAt = t
	}
	return &d, nil
}
