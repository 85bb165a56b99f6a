// Package testsupport builds real .apkg fixtures for tests: a ZIP container
// holding an actual SQLite collection database, so parser tests exercise the
// same code paths as production imports.
package testsupport

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// Template is one front/back rendering rule of a fixture model.
type Template struct {
	Name     string
	Question string
	Answer   string
}

// Model is a fixture note type.
type Model struct {
	ID        int64
	Name      string
	Cloze     bool
	Fields    []string
	Templates []Template
}

// Note is a fixture row for the notes table. Fields are joined with the
// unit separator when written.
type Note struct {
	ID        int64
	ModelID   int64
	Fields    []string
	Tags      string
	SortField string
}

// CardRow is a fixture row for the cards table, scheduling integers included.
type CardRow struct {
	ID       int64
	NoteID   int64
	Ord      int
	Type     int
	Queue    int
	Interval int
	Factor   int
	Reps     int
	Lapses   int
}

// MediaEntry is one media asset; index strings are assigned in order.
type MediaEntry struct {
	Filename string
	Data     []byte
}

// ArchiveSpec describes the .apkg archive to build.
type ArchiveSpec struct {
	DeckID          int64
	DeckName        string
	DeckDescription string
	Models          []Model
	Notes           []Note
	Cards           []CardRow

	Media []MediaEntry
	// IndexOnlyMedia lists filenames that appear in the media index without
	// a matching archive entry.
	IndexOnlyMedia []string

	// LegacyName writes the database under the pre-2.1 entry name.
	LegacyName bool
	// OmitCollection leaves the database out of the archive entirely.
	OmitCollection bool
}

// BuildArchive assembles the archive described by spec and returns its raw
// bytes.
func BuildArchive(tb testing.TB, spec ArchiveSpec) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if !spec.OmitCollection {
		name := "collection.anki21"
		if spec.LegacyName {
			name = "collection.anki2"
		}
		writeEntry(tb, zw, name, buildCollection(tb, spec))
	}

	index := make(map[string]string)
	for i, m := range spec.Media {
		idx := strconv.Itoa(i)
		index[idx] = m.Filename
		writeEntry(tb, zw, idx, m.Data)
	}
	for i, filename := range spec.IndexOnlyMedia {
		index[strconv.Itoa(len(spec.Media)+i)] = filename
	}
	if len(index) > 0 {
		data, err := json.Marshal(index)
		if err != nil {
			tb.Fatalf("failed to marshal media index: %v", err)
		}
		writeEntry(tb, zw, "media", data)
	}

	if err := zw.Close(); err != nil {
		tb.Fatalf("failed to close archive writer: %v", err)
	}
	return buf.Bytes()
}

// buildCollection writes a real SQLite database with the col/notes/cards
// tables the decoder reads, and returns its bytes.
func buildCollection(tb testing.TB, spec ArchiveSpec) []byte {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "collection.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		tb.Fatalf("failed to open fixture database: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE col (id INTEGER PRIMARY KEY, models TEXT NOT NULL, decks TEXT NOT NULL);
		CREATE TABLE notes (id INTEGER PRIMARY KEY, mid INTEGER NOT NULL, flds TEXT NOT NULL, tags TEXT NOT NULL DEFAULT '', sfld TEXT NOT NULL DEFAULT '');
		CREATE TABLE cards (id INTEGER PRIMARY KEY, nid INTEGER NOT NULL, ord INTEGER NOT NULL DEFAULT 0, type INTEGER NOT NULL DEFAULT 0, queue INTEGER NOT NULL DEFAULT 0, ivl INTEGER NOT NULL DEFAULT 0, factor INTEGER NOT NULL DEFAULT 0, reps INTEGER NOT NULL DEFAULT 0, lapses INTEGER NOT NULL DEFAULT 0);
	`)
	if err != nil {
		tb.Fatalf("failed to create fixture schema: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO col (id, models, decks) VALUES (1, ?, ?)`,
		modelsJSON(tb, spec.Models), decksJSON(tb, spec)); err != nil {
		tb.Fatalf("failed to insert col row: %v", err)
	}

	for i, n := range spec.Notes {
		id := n.ID
		if id == 0 {
			id = int64(i + 1)
		}
		flds := ""
		for j, f := range n.Fields {
			if j > 0 {
				flds += "\x1f"
			}
			flds += f
		}
		sfld := n.SortField
		if sfld == "" && len(n.Fields) > 0 {
			sfld = n.Fields[0]
		}
		if _, err := db.Exec(`INSERT INTO notes (id, mid, flds, tags, sfld) VALUES (?, ?, ?, ?, ?)`,
			id, n.ModelID, flds, n.Tags, sfld); err != nil {
			tb.Fatalf("failed to insert fixture note: %v", err)
		}
	}

	for i, c := range spec.Cards {
		id := c.ID
		if id == 0 {
			id = int64(i + 1)
		}
		if _, err := db.Exec(`INSERT INTO cards (id, nid, ord, type, queue, ivl, factor, reps, lapses) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, c.NoteID, c.Ord, c.Type, c.Queue, c.Interval, c.Factor, c.Reps, c.Lapses); err != nil {
			tb.Fatalf("failed to insert fixture card: %v", err)
		}
	}

	if err := db.Close(); err != nil {
		tb.Fatalf("failed to close fixture database: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("failed to read fixture database: %v", err)
	}
	return data
}

func modelsJSON(tb testing.TB, models []Model) string {
	tb.Helper()

	out := make(map[string]any, len(models))
	for _, m := range models {
		modelType := 0
		if m.Cloze {
			modelType = 1
		}
		flds := make([]map[string]any, len(m.Fields))
		for i, name := range m.Fields {
			flds[i] = map[string]any{"name": name, "ord": i}
		}
		tmpls := make([]map[string]any, len(m.Templates))
		for i, t := range m.Templates {
			tmpls[i] = map[string]any{"name": t.Name, "ord": i, "qfmt": t.Question, "afmt": t.Answer}
		}
		out[strconv.FormatInt(m.ID, 10)] = map[string]any{
			"name":  m.Name,
			"type":  modelType,
			"flds":  flds,
			"tmpls": tmpls,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		tb.Fatalf("failed to marshal models JSON: %v", err)
	}
	return string(data)
}

func decksJSON(tb testing.TB, spec ArchiveSpec) string {
	tb.Helper()

	decks := map[string]any{
		// Anki always carries its built-in default deck.
		"1": map[string]any{"name": "Default", "desc": ""},
	}
	if spec.DeckID != 0 {
		decks[strconv.FormatInt(spec.DeckID, 10)] = map[string]any{
			"name": spec.DeckName,
			"desc": spec.DeckDescription,
		}
	}

	data, err := json.Marshal(decks)
	if err != nil {
		tb.Fatalf("failed to marshal decks JSON: %v", err)
	}
	return string(data)
}

func writeEntry(tb testing.TB, zw *zip.Writer, name string, data []byte) {
	tb.Helper()
	w, err := zw.Create(name)
	if err != nil {
		tb.Fatalf("failed to create archive entry %q: %v", name, err)
	}
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("failed to write archive entry %q: %v", name, err)
	}
}
