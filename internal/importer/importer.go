// Package importer turns parsed .apkg archives into the persisted
// Deck/Note/Card/Media graph and seeds per-user review state.
package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/decker/internal/apkg"
	"github.com/conorfennell/decker/internal/domain"
	"github.com/conorfennell/decker/internal/fingerprint"
	"github.com/conorfennell/decker/internal/sm2"
	"github.com/conorfennell/decker/internal/storage"
)

// Importer orchestrates archive parsing and persistence. Each import is a
// single synchronous pipeline; imports for different users are independent
// and may run concurrently.
type Importer struct {
	db     *storage.DB
	params *sm2.Params
	logger *slog.Logger
}

// New creates an Importer.
func New(db *storage.DB, params *sm2.Params, logger *slog.Logger) *Importer {
	return &Importer{db: db, params: params, logger: logger}
}

// Result summarizes one successful import.
type Result struct {
	DeckID     int64
	DeckUID    string
	DeckName   string
	NoteCount  int
	CardCount  int
	MediaCount int
}

// Import parses the archive bytes and persists a new deck for the user.
// A non-empty name overrides the archive's own deck name. Re-importing the
// same archive always creates a new deck; there is no merge.
//
// Failures are wrapped in *Error tagging the stage (archive, schema, render
// or storage) along with how many records were parsed before the failure.
func (im *Importer) Import(ctx context.Context, userID string, data []byte, name string) (*Result, error) {
	archive, err := apkg.Open(data)
	if err != nil {
		return nil, &Error{Stage: StageArchive, Err: err}
	}

	dbBytes, err := archive.CollectionBytes()
	if err != nil {
		return nil, &Error{Stage: StageArchive, Err: err}
	}

	col, err := apkg.ReadCollection(dbBytes)
	if err != nil {
		return nil, &Error{Stage: StageSchema, Err: err}
	}

	parsed, err := apkg.BuildDeck(col, im.logger)
	if err != nil {
		return nil, &Error{Stage: StageRender, NotesParsed: len(col.Notes), CardsParsed: len(col.Cards), Err: err}
	}

	media, err := archive.ExtractMedia(im.logger)
	if err != nil {
		return nil, &Error{
			Stage:       StageArchive,
			NotesParsed: parsed.NoteCount(),
			CardsParsed: parsed.CardCount(),
			Err:         err,
		}
	}

	now := time.Now()
	deckName := parsed.Name
	if name != "" {
		deckName = name
	}

	deck := &domain.Deck{
		UID:          uuid.NewString(),
		UserID:       userID,
		Name:         deckName,
		Description:  parsed.Description,
		SourceDeckID: parsed.SourceDeckID,
		Fingerprint:  fingerprint.Archive(data),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	notes := make([]*domain.Note, 0, len(parsed.Notes))
	seeds := make(map[*domain.Card]*domain.CardReviewState)
	for _, pn := range parsed.Notes {
		note := &domain.Note{
			Fields:      pn.Fields,
			SortField:   pn.SortField,
			Tags:        pn.Tags,
			Fingerprint: fingerprint.NoteFields(pn.Fields),
		}
		for _, pc := range pn.Cards {
			card := &domain.Card{
				Ordinal:    pc.Ordinal,
				Front:      pc.Front,
				Back:       pc.Back,
				FrontAudio: pc.FrontAudio,
				BackAudio:  pc.BackAudio,
				Type:       pc.Type,
			}
			note.Cards = append(note.Cards, card)
			seeds[card] = im.seedState(userID, pc.Scheduling, now)
		}
		notes = append(notes, note)
	}

	mediaRows := make([]*domain.Media, 0, len(media))
	for _, m := range media {
		mediaRows = append(mediaRows, &domain.Media{
			UID:      uuid.NewString(),
			Filename: m.Filename,
			MimeType: m.MimeType,
			Category: m.Category,
			Size:     int64(len(m.Data)),
			Data:     m.Data,
		})
	}

	graph := &storage.ImportGraph{
		Deck:  deck,
		Notes: notes,
		Media: mediaRows,
		Seed:  func(c *domain.Card) *domain.CardReviewState { return seeds[c] },
	}
	if err := im.db.SaveImport(ctx, graph); err != nil {
		return nil, &Error{
			Stage:          StageStorage,
			NotesParsed:    len(notes),
			CardsParsed:    len(seeds),
			MediaExtracted: len(mediaRows),
			Err:            err,
		}
	}

	im.logger.Info("imported deck",
		"deck_id", deck.ID,
		"name", deck.Name,
		"notes", len(notes),
		"cards", len(seeds),
		"media", len(mediaRows),
		"skipped_cards", parsed.SkippedCards,
	)

	return &Result{
		DeckID:     deck.ID,
		DeckUID:    deck.UID,
		DeckName:   deck.Name,
		NoteCount:  len(notes),
		CardCount:  len(seeds),
		MediaCount: len(mediaRows),
	}, nil
}

// DeleteDeck removes a deck and cascades to its notes, cards, media and
// every review state referencing those cards.
func (im *Importer) DeleteDeck(ctx context.Context, userID string, deckID int64) error {
	return im.db.DeleteDeck(ctx, userID, deckID)
}

// Anki queue codes found in the cards table.
const (
	queueNew         = 0
	queueLearning    = 1
	queueReview      = 2
	queueDayLearning = 3
)

// seedState translates the source format's scheduling integers into the
// engine's representation. The source stores ease x1000; zero means the
// card was never scored, so the default applies. Negative intervals are
// seconds, positive are days.
func (im *Importer) seedState(userID string, src apkg.Card, now time.Time) *domain.CardReviewState {
	ease := float64(src.Factor) / 1000
	if ease == 0 {
		ease = im.params.StartingEase
	}
	if ease < im.params.MinEase {
		ease = im.params.MinEase
	}
	if ease > im.params.MaxEase {
		ease = im.params.MaxEase
	}

	interval := intervalDays(src.Interval)
	state := &domain.CardReviewState{
		UserID:      userID,
		Ease:        ease,
		Repetitions: src.Reps,
		Lapses:      src.Lapses,
	}

	switch src.Queue {
	case queueLearning, queueDayLearning:
		state.Phase = domain.PhaseLearning
		state.IntervalDays = interval
		if interval < 1 {
			state.LearningStep = 0
		} else {
			state.LearningStep = 1
		}
		state.Due = ptrTime(dueAt(now, interval))
	case queueReview:
		state.Phase = domain.PhaseReview
		state.LearningStep = sm2.StepGraduated
		state.IntervalDays = interval
		state.Due = ptrTime(dueAt(now, interval))
	default:
		// New cards, and anything unrecognized (suspended or buried
		// queues), start fresh: the due date is assigned on the first
		// user interaction, not at import.
		state.Phase = domain.PhaseNew
		state.LearningStep = 0
		state.IntervalDays = 0
	}
	return state
}

func intervalDays(ivl int) float64 {
	if ivl < 0 {
		return float64(-ivl) / 86400
	}
	return float64(ivl)
}

func dueAt(now time.Time, intervalDays float64) time.Time {
	return now.Add(time.Duration(intervalDays * 24 * float64(time.Hour)))
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
