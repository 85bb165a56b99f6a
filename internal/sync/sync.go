// Package sync reconciles registered archive sources with the store: every
// .apkg file found in a source that has not been imported yet (by content
// fingerprint) is imported; already-known archives are skipped.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/decker/internal/domain"
	"github.com/conorfennell/decker/internal/fingerprint"
	"github.com/conorfennell/decker/internal/gitsource"
	"github.com/conorfennell/decker/internal/importer"
	"github.com/conorfennell/decker/internal/storage"
)

// Run iterates over all of the user's sources and reconciles them. Git
// sources are cloned or pulled under reposDir first. Per-source failures are
// logged and do not stop the other sources.
func Run(ctx context.Context, db *storage.DB, imp *importer.Importer, userID, reposDir string) error {
	slog.Info("Starting sync process for all sources...")
	sources, err := db.GetAllSources(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with --add-source <path/or/url.git>")
		return nil
	}

	if err := os.MkdirAll(reposDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		scanRoot := source.Path
		if source.Type == "git" {
			localRepoPath, err := gitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("Error determining local path for git repo", "url", source.Path, "error", err)
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, localRepoPath); err != nil {
				slog.Error("Error syncing git repo", "url", source.Path, "error", err)
				continue
			}
			scanRoot = localRepoPath
		}

		reconcileSource(ctx, db, imp, userID, source, scanRoot)
	}
	slog.Info("Sync process complete.")
	return nil
}

// reconcileSource imports every archive under root that the user has not
// imported before. The importer itself always creates a new deck, so
// idempotency lives here: an archive fingerprint already in the store is
// skipped.
func reconcileSource(ctx context.Context, db *storage.DB, imp *importer.Importer, userID string, source *domain.Source, root string) {
	var imported, skipped int
	var syncErrors []error

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".apkg") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			syncErrors = append(syncErrors, fmt.Errorf("reading %s: %w", path, err))
			return nil
		}

		fp := fingerprint.Archive(data)
		existing, err := db.FindDeckByFingerprint(ctx, userID, fp)
		if err != nil {
			syncErrors = append(syncErrors, fmt.Errorf("fingerprint check for %s: %w", path, err))
			return nil
		}
		if existing != nil {
			skipped++
			return nil
		}

		slog.Info("New archive found, importing...", "path", path)
		res, err := imp.Import(ctx, userID, data, "")
		if err != nil {
			var impErr *importer.Error
			if errors.As(err, &impErr) {
				slog.Error("Failed to import archive", "path", path, "stage", impErr.Stage, "error", err)
			}
			syncErrors = append(syncErrors, fmt.Errorf("importing %s: %w", path, err))
			return nil
		}
		imported++
		slog.Info("Imported archive",
			"path", path, "deck_id", res.DeckID, "cards", res.CardCount, "media", res.MediaCount)
		return nil
	})

	if walkErr != nil {
		slog.Error("Error walking directory", "path", root, "error", walkErr)
		return
	}

	if err := db.UpdateSourceLastSynced(ctx, source.ID, time.Now()); err != nil {
		slog.Warn("Failed to update last synced for source", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", source.Path,
		"imported", imported,
		"skipped", skipped,
		"errors", len(syncErrors),
	)
}

// SourceType classifies a path or URL the way sources are registered: git
// remotes by suffix/prefix, everything else as a local directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return "git"
	}
	return "local"
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
