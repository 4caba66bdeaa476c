// Package history keeps a SQLite log of every document that was exported,
// saved or imported.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/agentkernel/society/internal/codec"
)

var (
	ErrNotFound  = errors.New("snapshot not found")
	ErrAmbiguous = errors.New("snapshot id prefix is ambiguous")
)

// Schema is the SQL schema of the history database.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    action      TEXT NOT NULL,
    agents      INTEGER NOT NULL DEFAULT 0,
    relations   INTEGER NOT NULL DEFAULT 0,
    document    BLOB NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_action ON snapshots(action);
`

const cacheSize = 64

// Snapshot is one recorded document. Document is empty in List results.
type Snapshot struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Agents    int    `json:"agents"`
	Relations int    `json:"relations"`
	Document  []byte `json:"document,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Store is the history database.
type Store struct {
	db         *sql.DB
	maxEntries int
	now        func() time.Time

	// Snapshots never change once written, so reads are cached by id.
	cache *lru.Cache[string, Snapshot]
}

// Open opens (or creates) the database at path. maxEntries > 0 prunes the
// oldest snapshots after every insert.
func Open(path string, maxEntries int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	cache, err := lru.New[string, Snapshot](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Store{db: db, maxEntries: maxEntries, now: time.Now, cache: cache}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores doc under action. It satisfies the editor's recorder hook.
func (s *Store) Record(ctx context.Context, action string, doc codec.Document) error {
	_, err := s.Add(ctx, action, doc)
	return err
}

// Add stores doc and returns the new snapshot.
func (s *Store) Add(ctx context.Context, action string, doc codec.Document) (Snapshot, error) {
	data, err := codec.EncodeJSON(doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	snap := Snapshot{
		ID:        uuid.New().String(),
		Action:    action,
		Agents:    len(doc.Agents),
		Relations: len(doc.Relations),
		Document:  data,
		CreatedAt: s.now().UTC().Format(codec.TimeFormat),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, action, agents, relations, document, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Action, snap.Agents, snap.Relations, snap.Document, snap.CreatedAt,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	if s.maxEntries > 0 {
		if _, err := s.Prune(ctx, s.maxEntries); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// List returns up to limit snapshots, newest first, without documents.
// limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, agents, relations, created_at FROM snapshots ORDER BY seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Action, &snap.Agents, &snap.Relations, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Get returns a snapshot by id or by a unique id prefix.
func (s *Store) Get(ctx context.Context, id string) (Snapshot, error) {
	if snap, ok := s.cache.Get(id); ok {
		return snap, nil
	}
	if id == "" {
		return Snapshot{}, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, agents, relations, document, created_at FROM snapshots WHERE substr(id, 1, length(?)) = ? ORDER BY seq DESC LIMIT 2`,
		id, id,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	defer rows.Close()

	var found []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Action, &snap.Agents, &snap.Relations, &snap.Document, &snap.CreatedAt); err != nil {
			return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
		}
		found = append(found, snap)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	switch len(found) {
	case 0:
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
	default:
		return Snapshot{}, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}

	snap := found[0]
	s.cache.Add(snap.ID, snap)
	return snap, nil
}

// Prune deletes all but the newest keep snapshots and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE seq NOT IN (SELECT seq FROM snapshots ORDER BY seq DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.cache.Purge()
	}
	return int(n), nil
}
