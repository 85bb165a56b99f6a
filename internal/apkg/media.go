package apkg

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/conorfennell/decker/internal/domain"
)

// mimeByExtension covers the formats Anki decks carry in practice. Anything
// else is classified as an opaque binary.
var mimeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".opus": "audio/opus",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
}

// MediaFile is one binary asset pulled out of the archive.
type MediaFile struct {
	Filename string
	MimeType string
	Category domain.MediaCategory
	Data     []byte
}

// ExtractMedia reads every asset named by the media index. An index entry
// with no matching archive file is skipped with a warning; one missing asset
// never fails the import.
func (a *Archive) ExtractMedia(logger *slog.Logger) ([]MediaFile, error) {
	index, err := a.MediaIndex()
	if err != nil {
		return nil, err
	}

	// Map iteration order is random; process indices numerically so the
	// extracted list is deterministic.
	indices := make([]string, 0, len(index))
	for idx := range index {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool {
		a, _ := strconv.Atoi(indices[i])
		b, _ := strconv.Atoi(indices[j])
		return a < b
	})

	var files []MediaFile
	for _, idx := range indices {
		filename := index[idx]
		if _, ok := a.entries[idx]; !ok {
			logger.Warn("media entry missing from archive, skipping",
				"index", idx, "filename", filename, "error", ErrMissingMediaEntry)
			continue
		}

		data, err := a.readEntry(idx)
		if err != nil {
			return nil, err
		}

		mimeType := mimeTypeFor(filename)
		files = append(files, MediaFile{
			Filename: filename,
			MimeType: mimeType,
			Category: categoryFor(mimeType),
			Data:     data,
		})
	}
	return files, nil
}

func mimeTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

func categoryFor(mimeType string) domain.MediaCategory {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return domain.MediaImage
	case strings.HasPrefix(mimeType, "audio/"):
		return domain.MediaAudio
	default:
		return domain.MediaOther
	}
}
