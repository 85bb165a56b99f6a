package domain

import "time"

// Deck is a collection of notes imported from a single .apkg archive.
// Re-importing the same archive always produces a fresh Deck; there is no
// merge logic, sync layers idempotency on top via the archive fingerprint.
type Deck struct {
	ID           int64
	UID          string
	UserID       string
	Name         string
	Description  string
	SourceDeckID int64  // deck id inside the source archive
	Fingerprint  string // sha256 of the raw archive bytes

	TotalCards    int
	NewCards      int
	LearningCards int
	ReviewCards   int

	CreatedAt time.Time
	UpdatedAt time.Time
}
