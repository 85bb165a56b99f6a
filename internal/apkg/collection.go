package apkg

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// fieldSeparator is the control byte Anki uses between field values in the
// notes table's field blob (0x1F, the unit separator).
const fieldSeparator = "\x1f"

// defaultDeckID is the well-known id of Anki's built-in default deck.
const defaultDeckID = 1

// Model describes a note type: its ordered field names and the templates
// that generate cards from it. Models only exist during import-time
// rendering and are never persisted.
type Model struct {
	ID        int64
	Name      string
	Fields    []string
	Templates []Template
	IsCloze   bool
}

// Template is one front/back rendering rule of a model.
type Template struct {
	Name     string
	Ordinal  int
	Question string
	Answer   string
}

// DeckInfo is the source archive's deck metadata.
type DeckInfo struct {
	ID          int64
	Name        string
	Description string
}

// Note is a raw row from the notes table with the field blob and tag string
// already split.
type Note struct {
	ID        int64
	ModelID   int64
	Fields    []string
	Tags      []string
	SortField string
}

// Card is a raw row from the cards table. The six scheduling integers are
// carried verbatim for the import-time state translation.
type Card struct {
	ID       int64
	NoteID   int64
	Ordinal  int
	Type     int
	Queue    int
	Interval int
	Factor   int // ease factor x1000
	Reps     int
	Lapses   int
}

// Collection is the decoded content of the embedded database: owned,
// immutable structures with no decoder state shared across imports.
type Collection struct {
	Models map[int64]Model
	Deck   DeckInfo
	Notes  []Note
	Cards  []Card
}

// ReadCollection materializes the embedded SQLite database from a byte
// buffer and decodes its metadata, notes and cards. The driver needs
// file-backed access, so the bytes go through a temporary file whose
// lifetime is exactly this call; the deferred remove runs on every exit
// path, including panics inside the driver.
func ReadCollection(dbBytes []byte) (*Collection, error) {
	tmp, err := os.CreateTemp("", "apkg-collection-*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp database file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(dbBytes); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp database file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp database file: %w", err)
	}

	db, err := sql.Open("sqlite", tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to open collection database: %w", err)
	}
	defer db.Close()

	col := &Collection{}
	if err := readMetadata(db, col); err != nil {
		return nil, err
	}
	if err := readNotes(db, col); err != nil {
		return nil, err
	}
	if err := readCards(db, col); err != nil {
		return nil, err
	}
	return col, nil
}

// rawModel and rawDeck mirror the untyped JSON blobs in the col row. They
// are decoded once here and never carried loosely through the pipeline.
type rawModel struct {
	Name string `json:"name"`
	Type int    `json:"type"` // 1 marks a cloze model
	Flds []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
	} `json:"flds"`
	Tmpls []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
		Qfmt string `json:"qfmt"`
		Afmt string `json:"afmt"`
	} `json:"tmpls"`
}

type rawDeck struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

func readMetadata(db *sql.DB, col *Collection) error {
	var modelsJSON, decksJSON string
	err := db.QueryRow(`SELECT models, decks FROM col LIMIT 1`).Scan(&modelsJSON, &decksJSON)
	if err != nil {
		return fmt.Errorf("failed to read collection metadata row: %w", err)
	}

	var rawModels map[string]rawModel
	if err := json.Unmarshal([]byte(modelsJSON), &rawModels); err != nil {
		return fmt.Errorf("failed to decode models JSON: %w", err)
	}

	col.Models = make(map[int64]Model, len(rawModels))
	for idStr, rm := range rawModels {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid model id %q: %w", idStr, err)
		}

		m := Model{ID: id, Name: rm.Name, IsCloze: rm.Type == 1}
		// Field and template order matters: values and ordinals are
		// positional. The JSON arrays carry explicit ord values, so sort
		// by them rather than trusting array order.
		sort.Slice(rm.Flds, func(i, j int) bool { return rm.Flds[i].Ord < rm.Flds[j].Ord })
		for _, f := range rm.Flds {
			m.Fields = append(m.Fields, f.Name)
		}
		sort.Slice(rm.Tmpls, func(i, j int) bool { return rm.Tmpls[i].Ord < rm.Tmpls[j].Ord })
		for _, tm := range rm.Tmpls {
			m.Templates = append(m.Templates, Template{
				Name:     tm.Name,
				Ordinal:  tm.Ord,
				Question: tm.Qfmt,
				Answer:   tm.Afmt,
			})
		}
		col.Models[id] = m
	}

	var rawDecks map[string]rawDeck
	if err := json.Unmarshal([]byte(decksJSON), &rawDecks); err != nil {
		return fmt.Errorf("failed to decode decks JSON: %w", err)
	}

	col.Deck = pickImportDeck(rawDecks)
	return nil
}

// pickImportDeck chooses the import target: the lowest-id non-default deck,
// falling back to whichever deck exists if only the default is present. JSON
// map order is undefined, so ids are compared for determinism.
func pickImportDeck(decks map[string]rawDeck) DeckInfo {
	var best DeckInfo
	for idStr, rd := range decks {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		candidate := DeckInfo{ID: id, Name: rd.Name, Description: rd.Desc}

		switch {
		case best.ID == 0:
			best = candidate
		case best.ID == defaultDeckID && id != defaultDeckID:
			best = candidate
		case id != defaultDeckID && id < best.ID:
			best = candidate
		}
	}
	return best
}

func readNotes(db *sql.DB, col *Collection) error {
	rows, err := db.Query(`SELECT id, mid, flds, tags, sfld FROM notes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n Note
		var flds, tags string
		var sfld any // declared INTEGER but stores text for most models
		if err := rows.Scan(&n.ID, &n.ModelID, &flds, &tags, &sfld); err != nil {
			return fmt.Errorf("failed to scan note row: %w", err)
		}
		n.Fields = SplitFields(flds)
		n.Tags = SplitTags(tags)
		n.SortField = sortFieldString(sfld)
		col.Notes = append(col.Notes, n)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate notes: %w", err)
	}
	return nil
}

func readCards(db *sql.DB, col *Collection) error {
	rows, err := db.Query(`SELECT id, nid, ord, type, queue, ivl, factor, reps, lapses FROM cards ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.NoteID, &c.Ordinal, &c.Type, &c.Queue,
			&c.Interval, &c.Factor, &c.Reps, &c.Lapses); err != nil {
			return fmt.Errorf("failed to scan card row: %w", err)
		}
		col.Cards = append(col.Cards, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate cards: %w", err)
	}
	return nil
}

// SplitFields splits a raw field blob on the unit separator into the ordered
// field-value array. Splitting and rejoining with the separator reproduces
// the original blob exactly.
func SplitFields(blob string) []string {
	return strings.Split(blob, fieldSeparator)
}

// JoinFields is the inverse of SplitFields.
func JoinFields(fields []string) string {
	return strings.Join(fields, fieldSeparator)
}

// SplitTags tokenizes the whitespace-separated tag string, dropping blanks.
func SplitTags(tags string) []string {
	return strings.Fields(tags)
}

func sortFieldString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
