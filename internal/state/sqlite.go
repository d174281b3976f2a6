// ABOUTME: SQLite persistence for room conversation state using modernc.org/sqlite
// ABOUTME: Saves cursor, selections, and per-account counters with schema auto-creation

package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/chaz/internal/room"
)

// SQLiteStore implements room.Store on a local SQLite database. It is
// the persistence collaborator for Room Conversation State: everything
// it writes loads back into exactly the in-memory data model at startup.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// compile-time interface check
var _ room.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path. The schema is
// created automatically, and parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "state")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps readers from blocking the write path
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("state store initialized", "path", path)
	return s, nil
}

// createSchema creates the tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS rooms (
			room_id    TEXT PRIMARY KEY,
			backend_id TEXT NOT NULL DEFAULT '',
			model      TEXT NOT NULL DEFAULT '',
			role       TEXT NOT NULL DEFAULT '',
			cursor     TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS message_counts (
			room_id TEXT NOT NULL REFERENCES rooms(room_id) ON DELETE CASCADE,
			account TEXT NOT NULL,
			count   INTEGER NOT NULL,
			PRIMARY KEY (room_id, account)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Save upserts one room's snapshot, counters included, atomically.
func (s *SQLiteStore) Save(ctx context.Context, snap *room.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (room_id, backend_id, model, role, cursor, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			backend_id = excluded.backend_id,
			model      = excluded.model,
			role       = excluded.role,
			cursor     = excluded.cursor,
			updated_at = excluded.updated_at
	`, snap.RoomID, snap.BackendID, snap.Model, snap.Role, snap.Cursor, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving room %s: %w", snap.RoomID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_counts WHERE room_id = ?`, snap.RoomID); err != nil {
		return fmt.Errorf("clearing counts for %s: %w", snap.RoomID, err)
	}
	for account, count := range snap.Counts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO message_counts (room_id, account, count) VALUES (?, ?, ?)
		`, snap.RoomID, account, count)
		if err != nil {
			return fmt.Errorf("saving count for %s in %s: %w", account, snap.RoomID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// LoadAll reads every persisted room snapshot.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]*room.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, backend_id, model, role, cursor FROM rooms
	`)
	if err != nil {
		return nil, fmt.Errorf("loading rooms: %w", err)
	}
	defer rows.Close()

	byRoom := make(map[string]*room.Snapshot)
	var order []string
	for rows.Next() {
		snap := &room.Snapshot{Counts: make(map[string]uint64)}
		if err := rows.Scan(&snap.RoomID, &snap.BackendID, &snap.Model, &snap.Role, &snap.Cursor); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		byRoom[snap.RoomID] = snap
		order = append(order, snap.RoomID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}

	countRows, err := s.db.QueryContext(ctx, `
		SELECT room_id, account, count FROM message_counts
	`)
	if err != nil {
		return nil, fmt.Errorf("loading counts: %w", err)
	}
	defer countRows.Close()

	for countRows.Next() {
		var roomID, account string
		var count uint64
		if err := countRows.Scan(&roomID, &account, &count); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		if snap, ok := byRoom[roomID]; ok {
			snap.Counts[account] = count
		}
	}
	if err := countRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}

	snaps := make([]*room.Snapshot, 0, len(order))
	for _, id := range order {
		snaps = append(snaps, byRoom[id])
	}
	return snaps, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
