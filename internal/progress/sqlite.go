package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"laurels/internal/database"
	"laurels/internal/models"
)

// SQLiteStorage keeps one snapshot row per profile slot in progress_snapshots
type SQLiteStorage struct {
	db   *database.DB
	slot string
}

// NewSQLiteStorage stores snapshots for slot in db
func NewSQLiteStorage(db *database.DB, slot string) *SQLiteStorage {
	if slot == "" {
		slot = "default"
	}
	return &SQLiteStorage{db: db, slot: slot}
}

func (s *SQLiteStorage) Read(ctx context.Context) ([]byte, error) {
	var document string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM progress_snapshots WHERE slot = ?", s.slot,
	).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", s.slot, err)
	}
	return []byte(document), nil
}

func (s *SQLiteStorage) Write(ctx context.Context, data []byte) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO progress_snapshots (slot, version, document, saved_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(slot) DO UPDATE SET
				version = excluded.version,
				document = excluded.document,
				saved_at = excluded.saved_at`,
			s.slot, SnapshotVersion, string(data), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to write snapshot %s: %w", s.slot, err)
		}
		return nil
	})
}

func (s *SQLiteStorage) String() string {
	return "sqlite:" + s.slot
}
