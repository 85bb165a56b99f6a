package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/conorfennell/decker/internal/storage"
)

// OpenStore opens a throwaway file-backed store for a test and closes it
// after.
func OpenStore(tb testing.TB) *storage.DB {
	tb.Helper()

	db, err := storage.Open(filepath.Join(tb.TempDir(), "decker.db"))
	if err != nil {
		tb.Fatalf("failed to open test store: %v", err)
	}
	tb.Cleanup(func() {
		if err := db.Close(); err != nil {
			tb.Errorf("failed to close test store: %v", err)
		}
	})
	return db
}
