package apkg

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/conorfennell/decker/internal/domain"
	"github.com/conorfennell/decker/internal/testsupport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func basicSpec() testsupport.ArchiveSpec {
	return testsupport.ArchiveSpec{
		DeckID:          1700000000001,
		DeckName:        "German A1",
		DeckDescription: "Starter vocabulary",
		Models: []testsupport.Model{{
			ID:     100,
			Name:   "Basic",
			Fields: []string{"Front", "Back"},
			Templates: []testsupport.Template{
				{Name: "Card 1", Question: "{{Front}}", Answer: "{{FrontSide}}<hr>{{Back}}"},
			},
		}},
		Notes: []testsupport.Note{
			{ID: 1, ModelID: 100, Fields: []string{"dog", "Hund"}, Tags: " animals  core "},
			{ID: 2, ModelID: 100, Fields: []string{"cat", "Katze"}},
		},
		Cards: []testsupport.CardRow{
			{NoteID: 1, Ord: 0, Queue: 0},
			{NoteID: 2, Ord: 0, Queue: 2, Interval: 12, Factor: 2300, Reps: 4, Lapses: 1},
		},
	}
}

func TestParseArchive(t *testing.T) {
	data := testsupport.BuildArchive(t, basicSpec())

	deck, err := Parse(data, discardLogger())
	if err != nil {
		t.Fatalf("Parse returned unexpected error: %v", err)
	}

	if deck.Name != "German A1" {
		t.Errorf("Expected the non-default deck to be picked, got %q", deck.Name)
	}
	if deck.Description != "Starter vocabulary" {
		t.Errorf("Expected deck description to be carried, got %q", deck.Description)
	}
	if deck.NoteCount() != 2 || deck.CardCount() != 2 {
		t.Errorf("Expected 2 notes and 2 cards, got %d and %d", deck.NoteCount(), deck.CardCount())
	}

	first := deck.Notes[0]
	if len(first.Tags) != 2 || first.Tags[0] != "animals" || first.Tags[1] != "core" {
		t.Errorf("Expected blank-stripped tags [animals core], got %v", first.Tags)
	}
	if first.Cards[0].Front != "dog" {
		t.Errorf("Expected rendered front 'dog', got %q", first.Cards[0].Front)
	}

	sched := deck.Notes[1].Cards[0].Scheduling
	if sched.Queue != 2 || sched.Interval != 12 || sched.Factor != 2300 || sched.Reps != 4 || sched.Lapses != 1 {
		t.Errorf("Expected scheduling integers carried verbatim, got %+v", sched)
	}
}

func TestParseLegacyCollectionName(t *testing.T) {
	spec := basicSpec()
	spec.LegacyName = true
	data := testsupport.BuildArchive(t, spec)

	deck, err := Parse(data, discardLogger())
	if err != nil {
		t.Fatalf("Parse failed on a legacy collection.anki2 archive: %v", err)
	}
	if deck.CardCount() != 2 {
		t.Errorf("Expected 2 cards from the legacy archive, got %d", deck.CardCount())
	}
}

func TestParseMissingDatabase(t *testing.T) {
	spec := basicSpec()
	spec.OmitCollection = true
	data := testsupport.BuildArchive(t, spec)

	_, err := Parse(data, discardLogger())
	if !errors.Is(err, ErrMissingDatabase) {
		t.Fatalf("Expected ErrMissingDatabase, got %v", err)
	}
}

func TestParseNotAZip(t *testing.T) {
	if _, err := Open([]byte("definitely not a zip archive")); err == nil {
		t.Fatal("Expected an error for non-ZIP input")
	}
}

func TestMediaExtraction(t *testing.T) {
	spec := basicSpec()
	spec.Media = []testsupport.MediaEntry{
		{Filename: "hund.mp3", Data: []byte("fake mp3 bytes")},
		{Filename: "dog.jpg", Data: []byte("fake jpeg bytes")},
		{Filename: "notes.txt", Data: []byte("plain text")},
	}
	data := testsupport.BuildArchive(t, spec)

	deck, err := Parse(data, discardLogger())
	if err != nil {
		t.Fatalf("Parse returned unexpected error: %v", err)
	}
	if len(deck.Media) != 3 {
		t.Fatalf("Expected 3 media files, got %d", len(deck.Media))
	}

	byName := make(map[string]MediaFile)
	for _, m := range deck.Media {
		byName[m.Filename] = m
	}
	if m := byName["hund.mp3"]; m.MimeType != "audio/mpeg" || m.Category != domain.MediaAudio {
		t.Errorf("Expected hund.mp3 to be audio/mpeg audio, got %s/%s", m.MimeType, m.Category)
	}
	if m := byName["dog.jpg"]; m.MimeType != "image/jpeg" || m.Category != domain.MediaImage {
		t.Errorf("Expected dog.jpg to be image/jpeg image, got %s/%s", m.MimeType, m.Category)
	}
	if m := byName["notes.txt"]; m.MimeType != "application/octet-stream" || m.Category != domain.MediaOther {
		t.Errorf("Expected notes.txt to be classified other, got %s/%s", m.MimeType, m.Category)
	}
}

func TestMediaMissingArchiveEntry(t *testing.T) {
	// Index references "sound.mp3" but the archive holds no entry for it;
	// the asset is skipped and the import is otherwise unaffected.
	spec := basicSpec()
	spec.IndexOnlyMedia = []string{"sound.mp3"}
	data := testsupport.BuildArchive(t, spec)

	deck, err := Parse(data, discardLogger())
	if err != nil {
		t.Fatalf("Expected a missing media entry to be non-fatal, got %v", err)
	}
	if len(deck.Media) != 0 {
		t.Errorf("Expected 0 media files, got %d", len(deck.Media))
	}
	if deck.CardCount() != 2 {
		t.Errorf("Expected cards unaffected by missing media, got %d", deck.CardCount())
	}
}

func TestMediaIndexAbsent(t *testing.T) {
	data := testsupport.BuildArchive(t, basicSpec())

	archive, err := Open(data)
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	index, err := archive.MediaIndex()
	if err != nil {
		t.Fatalf("Expected an absent media index to be an empty map, got error %v", err)
	}
	if len(index) != 0 {
		t.Errorf("Expected empty media index, got %v", index)
	}
}

func TestUnknownModelSkipsCard(t *testing.T) {
	spec := basicSpec()
	spec.Notes = append(spec.Notes, testsupport.Note{ID: 3, ModelID: 999, Fields: []string{"orphan"}})
	spec.Cards = append(spec.Cards, testsupport.CardRow{NoteID: 3, Ord: 0})
	data := testsupport.BuildArchive(t, spec)

	deck, err := Parse(data, discardLogger())
	if err != nil {
		t.Fatalf("Expected an unknown model to be non-fatal, got %v", err)
	}
	if deck.CardCount() != 2 {
		t.Errorf("Expected the bad card to be skipped, got %d cards", deck.CardCount())
	}
	if deck.SkippedCards != 1 {
		t.Errorf("Expected 1 skipped card, got %d", deck.SkippedCards)
	}
}

func TestSplitFieldsRoundTrip(t *testing.T) {
	blobs := []string{
		"front\x1fback",
		"single",
		"",
		"a\x1f\x1fc", // empty middle field survives
		"with spaces\x1fand\ttabs",
	}
	for _, blob := range blobs {
		if rejoined := JoinFields(SplitFields(blob)); rejoined != blob {
			t.Errorf("Round-trip mismatch: %q became %q", blob, rejoined)
		}
	}
}

func TestSplitTags(t *testing.T) {
	tags := SplitTags("  alpha   beta\tgamma  ")
	if len(tags) != 3 || tags[0] != "alpha" || tags[1] != "beta" || tags[2] != "gamma" {
		t.Errorf("Expected [alpha beta gamma], got %v", tags)
	}
	if got := SplitTags("   "); len(got) != 0 {
		t.Errorf("Expected blank tag string to yield no tags, got %v", got)
	}
}

func TestPickImportDeck(t *testing.T) {
	t.Run("prefers non-default deck", func(t *testing.T) {
		data := testsupport.BuildArchive(t, basicSpec())
		deck, err := Parse(data, discardLogger())
		if err != nil {
			t.Fatalf("Parse returned unexpected error: %v", err)
		}
		if deck.SourceDeckID != 1700000000001 {
			t.Errorf("Expected the non-default deck id, got %d", deck.SourceDeckID)
		}
	})

	t.Run("falls back to the default deck", func(t *testing.T) {
		spec := basicSpec()
		spec.DeckID = 0 // only the built-in default deck remains
		data := testsupport.BuildArchive(t, spec)
		deck, err := Parse(data, discardLogger())
		if err != nil {
			t.Fatalf("Parse returned unexpected error: %v", err)
		}
		if deck.SourceDeckID != 1 || deck.Name != "Default" {
			t.Errorf("Expected the default deck fallback, got id=%d name=%q", deck.SourceDeckID, deck.Name)
		}
	})
}
