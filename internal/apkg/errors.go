package apkg

import "errors"

var (
	// ErrMissingDatabase means the archive holds neither the current nor the
	// legacy collection database entry. Nothing downstream is trustworthy
	// without it, so the whole import aborts.
	ErrMissingDatabase = errors.New("apkg: no collection database found in archive")

	// ErrUnknownModel means a note references a model id that is not present
	// in the decoded collection metadata. The affected cards are skipped.
	ErrUnknownModel = errors.New("apkg: note references unknown model")

	// ErrUnknownTemplate means a card's template ordinal is out of range for
	// its model. That single card is skipped.
	ErrUnknownTemplate = errors.New("apkg: card references unknown template")

	// ErrMissingMediaEntry means a media index entry has no matching archive
	// file. The asset is skipped; media is never fatal.
	ErrMissingMediaEntry = errors.New("apkg: media index entry missing from archive")
)
