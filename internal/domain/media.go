package domain

// MediaCategory is the coarse classification of a media asset, derived from
// the top-level part of its MIME type.
type MediaCategory string

const (
	MediaImage MediaCategory = "image"
	MediaAudio MediaCategory = "audio"
	MediaOther MediaCategory = "other"
)

// Media is a binary asset (image, audio, video) extracted from an archive.
// Bytes are stored verbatim; no transformation is applied.
type Media struct {
	ID       int64
	DeckID   int64
	UID      string
	Filename string
	MimeType string
	Category MediaCategory
	Size     int64
	Data     []byte
}
