package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/decker/internal/domain"
)

// InsertSource registers a new archive source and returns its ID.
func (db *DB) InsertSource(ctx context.Context, s *domain.Source) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (user_id, path, type)
		VALUES (?, ?, ?)
	`, s.UserID, s.Path, s.Type)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", s.Path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", s.Path, err)
	}
	s.ID = id
	return id, nil
}

// FindSourceByPath retrieves a source by its path. Returns (nil, nil) when
// it is not registered.
func (db *DB) FindSourceByPath(ctx context.Context, userID, path string) (*domain.Source, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, path, type, last_synced
		FROM sources WHERE user_id = ? AND path = ?
	`, userID, path)

	s, err := scanSource(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Source not found
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return s, nil
}

// GetAllSources retrieves all of the user's registered sources.
func (db *DB) GetAllSources(ctx context.Context, userID string) ([]*domain.Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, path, type, last_synced
		FROM sources WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []*domain.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastSynced records when a source was last reconciled.
func (db *DB) UpdateSourceLastSynced(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_synced = ?
		WHERE id = ?
	`, formatTime(at), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last synced for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source registration. Imported decks are kept; a
// deck's lifecycle is rooted in the deck itself, not in its source.
func (db *DB) DeleteSource(ctx context.Context, userID string, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM sources WHERE id = ? AND user_id = ?
	`, sourceID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", sourceID, err)
	}
	return nil
}

func scanSource(row interface{ Scan(dest ...any) error }) (*domain.Source, error) {
	var s domain.Source
	var lastRaw sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &s.Path, &s.Type, &lastRaw); err != nil {
		return nil, err
	}
	s.LastSynced = timePtr(lastRaw)
	return &s, nil
}
