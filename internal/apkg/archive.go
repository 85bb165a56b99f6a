package apkg

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const (
	// collectionName is the database entry written by current Anki versions;
	// collectionNameLegacy is its pre-2.1 predecessor.
	collectionName       = "collection.anki21"
	collectionNameLegacy = "collection.anki2"

	// mediaIndexName is the JSON object mapping decimal-string indices to
	// original filenames. Each index also names a sibling archive entry
	// holding that file's bytes.
	mediaIndexName = "media"
)

// Archive is an opened .apkg container.
type Archive struct {
	entries map[string]*zip.File
}

// Open reads the raw archive bytes as a ZIP container.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}
	return &Archive{entries: entries}, nil
}

// CollectionBytes returns the embedded collection database, preferring the
// current entry name and falling back to the legacy one. Returns
// ErrMissingDatabase when neither exists.
func (a *Archive) CollectionBytes() ([]byte, error) {
	for _, name := range []string{collectionName, collectionNameLegacy} {
		if _, ok := a.entries[name]; ok {
			return a.readEntry(name)
		}
	}
	return nil, ErrMissingDatabase
}

// MediaIndex decodes the media index entry. A missing entry is treated as an
// empty map rather than an error; media is optional.
func (a *Archive) MediaIndex() (map[string]string, error) {
	if _, ok := a.entries[mediaIndexName]; !ok {
		return map[string]string{}, nil
	}

	data, err := a.readEntry(mediaIndexName)
	if err != nil {
		return nil, err
	}

	index := make(map[string]string)
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to decode media index: %w", err)
	}
	return index, nil
}

func (a *Archive) readEntry(name string) ([]byte, error) {
	f, ok := a.entries[name]
	if !ok {
		return nil, fmt.Errorf("no archive entry named %q", name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive entry %q: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive entry %q: %w", name, err)
	}
	return data, nil
}
