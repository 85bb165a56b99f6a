package study

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/conorfennell/decker/internal/importer"
	"github.com/conorfennell/decker/internal/sm2"
	"github.com/conorfennell/decker/internal/storage"
	"github.com/conorfennell/decker/internal/testsupport"
)

func newTestService(t *testing.T) (*Service, *storage.DB) {
	t.Helper()
	db := testsupport.OpenStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, sm2.DefaultParams(), logger), db
}

// seedCard imports a one-card deck and returns the card's id.
func seedCard(t *testing.T, db *storage.DB) int64 {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	im := importer.New(db, sm2.DefaultParams(), logger)
	data := testsupport.BuildArchive(t, testsupport.ArchiveSpec{
		DeckID:   1700000000001,
		DeckName: "Seeded",
		Models: []testsupport.Model{{
			ID:     100,
			Name:   "Basic",
			Fields: []string{"Front", "Back"},
			Templates: []testsupport.Template{
				{Name: "Card 1", Question: "{{Front}}", Answer: "{{Back}}"},
			},
		}},
		Notes: []testsupport.Note{{ID: 1, ModelID: 100, Fields: []string{"dog", "Hund"}}},
		Cards: []testsupport.CardRow{{NoteID: 1, Ord: 0, Queue: 0}},
	})
	if _, err := im.Import(context.Background(), "user-1", data, ""); err != nil {
		t.Fatalf("failed to seed card: %v", err)
	}

	due, err := db.DueCards(context.Background(), "user-1", time.Now(), 1)
	if err != nil || len(due) != 1 {
		t.Fatalf("failed to find seeded card: %v (%d due)", err, len(due))
	}
	return due[0].Card.ID
}

func TestReviewCardPersists(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	cardID := seedCard(t, db)

	res, err := svc.ReviewCard(ctx, "user-1", cardID, sm2.Good)
	if err != nil {
		t.Fatalf("ReviewCard returned unexpected error: %v", err)
	}
	if res.State.Phase != "learning" || res.State.LearningStep != 1 {
		t.Errorf("Expected a new card rated good to advance to learning step 1, got %s/%d",
			res.State.Phase, res.State.LearningStep)
	}
	if !res.InSession {
		t.Error("Expected a learning-step advance to stay in session")
	}

	persisted, err := db.GetCardReviewState(ctx, "user-1", cardID)
	if err != nil {
		t.Fatalf("GetCardReviewState failed: %v", err)
	}
	if persisted.TotalReviews != 1 || persisted.LearningStep != 1 || persisted.IntervalDays != 3 {
		t.Errorf("Expected the review to be persisted, got reviews=%d step=%d interval=%v",
			persisted.TotalReviews, persisted.LearningStep, persisted.IntervalDays)
	}
	if persisted.Due == nil || persisted.LastReviewed == nil {
		t.Error("Expected due and last-reviewed timestamps to be set")
	}
}

func TestReviewCardGraduates(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	cardID := seedCard(t, db)

	if _, err := svc.ReviewCard(ctx, "user-1", cardID, sm2.Good); err != nil {
		t.Fatalf("first review failed: %v", err)
	}
	res, err := svc.ReviewCard(ctx, "user-1", cardID, sm2.Good)
	if err != nil {
		t.Fatalf("second review failed: %v", err)
	}
	if res.State.Phase != "review" || res.State.IntervalDays != 7.5 || res.State.Repetitions != 1 {
		t.Errorf("Expected graduation to review at 7.5 days, got %s interval=%v reps=%d",
			res.State.Phase, res.State.IntervalDays, res.State.Repetitions)
	}
	if res.InSession {
		t.Error("Expected a graduated card to leave the session")
	}
}

func TestReviewCardUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.ReviewCard(context.Background(), "user-1", 9999, sm2.Good); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for an unknown card, got %v", err)
	}
}

func TestReviewCardInvalidQuality(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	cardID := seedCard(t, db)

	if _, err := svc.ReviewCard(ctx, "user-1", cardID, 0); !errors.Is(err, sm2.ErrInvalidQuality) {
		t.Fatalf("Expected ErrInvalidQuality, got %v", err)
	}

	state, err := db.GetCardReviewState(ctx, "user-1", cardID)
	if err != nil {
		t.Fatalf("GetCardReviewState failed: %v", err)
	}
	if state.TotalReviews != 0 {
		t.Errorf("Expected a rejected rating to leave the state untouched, got %d reviews", state.TotalReviews)
	}
}

func TestReviewConceptLifecycle(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	// First review creates the state row on demand.
	res, err := svc.ReviewConcept(ctx, "user-1", "dativ-prepositions", sm2.Good)
	if err != nil {
		t.Fatalf("first concept review failed: %v", err)
	}
	if res.State.ID == 0 {
		t.Error("Expected the first review to persist a state row")
	}
	if res.Label != sm2.MasteryLearning {
		t.Errorf("Expected mastery learning after one good review, got %s", res.Label)
	}
	if !res.InSession {
		t.Error("Expected a learning-step advance to stay in session")
	}

	found, err := db.FindConceptReviewState(ctx, "user-1", "dativ-prepositions")
	if err != nil {
		t.Fatalf("FindConceptReviewState failed: %v", err)
	}
	if found == nil || found.TotalReviews != 1 {
		t.Fatalf("Expected a persisted state with one review, got %+v", found)
	}

	// Second good review graduates the concept.
	res, err = svc.ReviewConcept(ctx, "user-1", "dativ-prepositions", sm2.Good)
	if err != nil {
		t.Fatalf("second concept review failed: %v", err)
	}
	if res.State.Phase != "review" || res.State.IntervalDays != 7.5 {
		t.Errorf("Expected graduation, got %s interval=%v", res.State.Phase, res.State.IntervalDays)
	}
	if res.Label != sm2.MasteryPracticing {
		t.Errorf("Expected mastery practicing after graduation, got %s", res.Label)
	}
}

func TestReviewConceptInvalidQualityCreatesNoRow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ReviewConcept(ctx, "user-1", "plural-forms", 7); !errors.Is(err, sm2.ErrInvalidQuality) {
		t.Fatalf("Expected ErrInvalidQuality, got %v", err)
	}

	found, err := db.FindConceptReviewState(ctx, "user-1", "plural-forms")
	if err != nil {
		t.Fatalf("FindConceptReviewState failed: %v", err)
	}
	if found != nil {
		t.Errorf("Expected no state row after a rejected rating, got %+v", found)
	}
}

func TestConceptMastery(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	label, err := svc.ConceptMastery(ctx, "user-1", "never-reviewed")
	if err != nil {
		t.Fatalf("ConceptMastery failed: %v", err)
	}
	if label != sm2.MasteryNew {
		t.Errorf("Expected an unreviewed concept to be new, got %s", label)
	}

	// Graduate the concept, then keep answering easy until it is mastered.
	for i := 0; i < 2; i++ {
		if _, err := svc.ReviewConcept(ctx, "user-1", "verb-endings", sm2.Good); err != nil {
			t.Fatalf("review %d failed: %v", i, err)
		}
	}
	for i := 0; i < 4; i++ {
		if _, err := svc.ReviewConcept(ctx, "user-1", "verb-endings", sm2.Easy); err != nil {
			t.Fatalf("easy review %d failed: %v", i, err)
		}
	}

	label, err = svc.ConceptMastery(ctx, "user-1", "verb-endings")
	if err != nil {
		t.Fatalf("ConceptMastery failed: %v", err)
	}
	if label != sm2.MasteryMastered {
		t.Errorf("Expected mastered after 5 successful repetitions, got %s", label)
	}
}

func TestDueConceptsExcludesFuture(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ReviewConcept(ctx, "user-1", "adjective-endings", sm2.Good); err != nil {
		t.Fatalf("review failed: %v", err)
	}

	// The concept was just pushed 3 days out, so nothing is due now.
	due, err := svc.DueConcepts(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("DueConcepts failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("Expected no due concepts, got %d", len(due))
	}
}
