package incident

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ccu-link/ccu-go/pkg/event"
	"github.com/ccu-link/ccu-go/pkg/journal"
)

// Store provides SQLite persistence for incident snapshots.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new store with the given database path.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better performance
	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		incident_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT,
		interface_id TEXT NOT NULL,
		context_json TEXT,
		journal_json TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_interface_id ON incidents(interface_id);
	CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordIncident captures a snapshot and persists it.
func (s *Store) RecordIncident(incidentType Type, severity event.Severity, message, interfaceID string, context map[string]any, j *journal.Journal) (*Snapshot, error) {
	snap := &Snapshot{
		ID:             uuid.New().String(),
		Type:           incidentType,
		Severity:       severity,
		Message:        message,
		InterfaceID:    interfaceID,
		Context:        context,
		JournalExcerpt: excerpt(j),
		CreatedAt:      time.Now(),
	}

	contextJSON, err := json.Marshal(snap.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}
	journalJSON, err := json.Marshal(snap.JournalExcerpt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal journal excerpt: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO incidents (id, incident_type, severity, message, interface_id, context_json, journal_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Type.String(), snap.Severity.String(), snap.Message,
		snap.InterfaceID, string(contextJSON), string(journalJSON), snap.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert incident: %w", err)
	}
	return snap, nil
}

// Get returns the snapshot with the given id, or sql.ErrNoRows if absent.
func (s *Store) Get(id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, incident_type, severity, message, interface_id, context_json, journal_json, created_at
		FROM incidents WHERE id = ?`, id)
	return scanSnapshot(row)
}

// List returns the most recent snapshots for an interface, newest first.
// An empty interfaceID matches all interfaces. limit <= 0 means no limit.
func (s *Store) List(interfaceID string, limit int) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, incident_type, severity, message, interface_id, context_json, journal_json, created_at
		FROM incidents`
	args := []any{}
	if interfaceID != "" {
		query += " WHERE interface_id = ?"
		args = append(args, interfaceID)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Prune deletes snapshots older than maxAge. Returns the number deleted.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	res, err := s.db.Exec(`DELETE FROM incidents WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune incidents: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanSnapshot.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var snap Snapshot
	var typeName, severityName string
	var contextJSON, journalJSON sql.NullString

	err := row.Scan(&snap.ID, &typeName, &severityName, &snap.Message,
		&snap.InterfaceID, &contextJSON, &journalJSON, &snap.CreatedAt)
	if err != nil {
		return nil, err
	}

	snap.Type = typeFromString(typeName)
	if severityName == event.SeverityWarning.String() {
		snap.Severity = event.SeverityWarning
	} else {
		snap.Severity = event.SeverityError
	}
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &snap.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}
	if journalJSON.Valid && journalJSON.String != "" {
		if err := json.Unmarshal([]byte(journalJSON.String), &snap.JournalExcerpt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journal excerpt: %w", err)
		}
	}
	return &snap, nil
}

// Compile-time interface satisfaction check.
var _ Recorder = (*Store)(nil)
