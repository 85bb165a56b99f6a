package importer

import "fmt"

// Stage identifies which part of the import pipeline a failure came from.
type Stage string

const (
	StageArchive Stage = "archive"
	StageSchema  Stage = "schema"
	StageRender  Stage = "render"
	StageStorage Stage = "storage"
)

// Error reports which stage of an import failed and how many records were
// parsed before the failure. Nothing partial is persisted; the counts exist
// purely for diagnostics.
type Error struct {
	Stage          Stage
	NotesParsed    int
	CardsParsed    int
	MediaExtracted int
	Err            error
}

func (e *Error) Error() string {
	return fmt.Sprintf("import failed at %s stage (notes=%d cards=%d media=%d): %v",
		e.Stage, e.NotesParsed, e.CardsParsed, e.MediaExtracted, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
