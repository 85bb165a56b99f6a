package domain

// Note is a logical learning item: an ordered list of field values plus tags.
// Field names are not stored; they only exist in the ephemeral note model
// used during import-time rendering.
type Note struct {
	ID          int64
	DeckID      int64
	Fields      []string
	SortField   string
	Tags        []string
	Fingerprint string // sha256 of the normalized field values

	Cards []*Card
}

// CardType mirrors the template that generated a card.
type CardType string

const (
	CardTypeStandard        CardType = "standard"
	CardTypeStandardReverse CardType = "standard_reverse"
	CardTypeCloze           CardType = "cloze"
)

// Card is a single reviewable question/answer pair generated from a Note by
// one of its model's templates. Front and back hold fully-rendered text; the
// audio lists hold [sound:...] filenames extracted during rendering.
type Card struct {
	ID         int64
	NoteID     int64
	DeckID     int64
	Ordinal    int
	Front      string
	Back       string
	FrontAudio []string
	BackAudio  []string
	Type       CardType
}
