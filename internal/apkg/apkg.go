// Package apkg parses Anki .apkg deck packages: a ZIP container holding an
// embedded SQLite collection database and an indexed set of media files. The
// format is consumed read-only and bit-exact; this package never writes it.
package apkg

import (
	"fmt"
	"log/slog"
)

// Deck is a fully parsed archive: the import target deck's metadata, its
// notes with rendered cards, and the extracted media.
type Deck struct {
	Name         string
	Description  string
	SourceDeckID int64
	Notes        []ParsedNote
	Media        []MediaFile
	SkippedCards int
}

// ParsedNote is one note with its rendered cards attached.
type ParsedNote struct {
	Fields    []string
	SortField string
	Tags      []string
	Cards     []ParsedCard
}

// ParsedCard is one rendered card plus the source scheduling integers the
// import-time state translation needs.
type ParsedCard struct {
	Rendered
	Ordinal    int
	Scheduling Card
}

// Parse runs the whole pipeline over raw archive bytes: open the container,
// decode the collection database, render cards and extract media.
func Parse(data []byte, logger *slog.Logger) (*Deck, error) {
	archive, err := Open(data)
	if err != nil {
		return nil, err
	}

	dbBytes, err := archive.CollectionBytes()
	if err != nil {
		return nil, err
	}

	col, err := ReadCollection(dbBytes)
	if err != nil {
		return nil, err
	}

	deck, err := BuildDeck(col, logger)
	if err != nil {
		return nil, err
	}

	deck.Media, err = archive.ExtractMedia(logger)
	if err != nil {
		return nil, err
	}
	return deck, nil
}

// BuildDeck renders the collection's notes and cards into a Deck. A card
// referencing an unknown model or template ordinal is skipped with a
// warning; a single bad card never aborts the import.
func BuildDeck(col *Collection, logger *slog.Logger) (*Deck, error) {
	if len(col.Models) == 0 && len(col.Notes) > 0 {
		return nil, fmt.Errorf("collection defines no note models for %d notes", len(col.Notes))
	}

	deck := &Deck{
		Name:         col.Deck.Name,
		Description:  col.Deck.Description,
		SourceDeckID: col.Deck.ID,
	}

	cardsByNote := make(map[int64][]Card, len(col.Notes))
	for _, c := range col.Cards {
		cardsByNote[c.NoteID] = append(cardsByNote[c.NoteID], c)
	}

	for _, note := range col.Notes {
		model, ok := col.Models[note.ModelID]
		if !ok {
			skipped := len(cardsByNote[note.ID])
			deck.SkippedCards += skipped
			logger.Warn("skipping note with unknown model",
				"note_id", note.ID, "model_id", note.ModelID,
				"cards_skipped", skipped, "error", ErrUnknownModel)
			continue
		}

		pn := ParsedNote{
			Fields:    note.Fields,
			SortField: note.SortField,
			Tags:      note.Tags,
		}
		for _, card := range cardsByNote[note.ID] {
			rendered, err := RenderCard(model, note, card.Ordinal)
			if err != nil {
				deck.SkippedCards++
				logger.Warn("skipping unrenderable card",
					"card_id", card.ID, "note_id", note.ID,
					"ordinal", card.Ordinal, "error", err)
				continue
			}
			pn.Cards = append(pn.Cards, ParsedCard{
				Rendered:   rendered,
				Ordinal:    card.Ordinal,
				Scheduling: card,
			})
		}
		deck.Notes = append(deck.Notes, pn)
	}
	return deck, nil
}

// NoteCount and CardCount summarize the parsed deck.
func (d *Deck) NoteCount() int { return len(d.Notes) }

func (d *Deck) CardCount() int {
	var n int
	for _, note := range d.Notes {
		n += len(note.Cards)
	}
	return n
}
