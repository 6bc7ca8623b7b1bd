package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/meetpoint-server/internal/store"
)

// Schema creates the audit table if it does not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS room_events (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	room_id        TEXT NOT NULL,
	kind           TEXT NOT NULL,
	participant_id TEXT NOT NULL DEFAULT '',
	detail         TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_room_events_room ON room_events(room_id, seq);
`

// SQLiteStore implements store.AuditStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.AuditStore = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Run setup function (e.g., apply schema)
	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates the tables used by the store.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendRoomEvent stores ev, filling in ID and CreatedAt when empty.
func (s *SQLiteStore) AppendRoomEvent(ctx context.Context, ev *store.RoomEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO room_events (id, room_id, kind, participant_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		ev.ID, ev.RoomID, string(ev.Kind), ev.ParticipantID, ev.Detail, ev.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert room event: %w", err)
	}
	return nil
}

// ListRoomEvents retrieves the most recent events of a room in chronological order.
func (s *SQLiteStore) ListRoomEvents(ctx context.Context, roomID string, limit int) ([]*store.RoomEvent, error) {
	query := `
		SELECT id, room_id, kind, participant_id, detail, created_at
		FROM room_events
		WHERE room_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query room events: %w", err)
	}
	defer rows.Close()

	var events []*store.RoomEvent
	for rows.Next() {
		var (
			ev        store.RoomEvent
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&ev.ID, &ev.RoomID, &kind, &ev.ParticipantID, &ev.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan room event: %w", err)
		}
		ev.Kind = store.RoomEventKind(kind)
		ev.CreatedAt = time.UnixMilli(createdAt)
		events = append(events, &ev)
	}

	// Reverse to get chronological order
	for i := range len(events) / 2 {
		events[i], events[len(events)-1-i] = events[len(events)-1-i], events[i]
	}

	return events, rows.Err()
}
