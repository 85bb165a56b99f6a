package domain

import "time"

// Source is a registered origin of .apkg archives, either a local directory
// or a git repository URL.
type Source struct {
	ID         int64
	UserID     string
	Path       string
	Type       string // "local" or "git"
	LastSynced *time.Time
}
