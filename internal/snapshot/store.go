package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"chanlens/internal/logger"
	"chanlens/pkg/model"
)

const DefaultCapacity = 10

var (
	ErrNotFound    = errors.New("snapshot not found")
	ErrStorageFull = errors.New("snapshot storage full")
)

// Options bound the store. MaxPages caps the database file through
// PRAGMA max_page_count; zero leaves it unbounded.
type Options struct {
	Capacity int
	MaxPages int
	Logger   logger.Logger
}

// Store persists snapshots in SQLite, keeping the Capacity most recent
type Store struct {
	db       *sql.DB
	capacity int
	log      logger.Logger

	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// Open opens (or creates) the database at path and runs migrations
func Open(path string, opts Options) (*Store, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop{}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA journal_mode=WAL"}
	if opts.MaxPages > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA max_page_count=%d", opts.MaxPages))
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &Store{db: db, capacity: opts.Capacity, log: opts.Logger, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	opts.Logger.Debug(context.Background(), "snapshot store opened", map[string]interface{}{
		"path": path, "capacity": opts.Capacity, "maxPages": opts.MaxPages,
	})
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id        TEXT PRIMARY KEY,
			source    TEXT NOT NULL,
			label     TEXT NOT NULL,
			saved_at  INTEGER NOT NULL,
			context   TEXT NOT NULL,
			bar_count INTEGER NOT NULL,
			bars      BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_saved_at ON snapshots(saved_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// stamp returns a save time strictly after the previous one
func (s *Store) stamp() time.Time {
	t := s.now().UnixNano()
	if t <= s.last {
		t = s.last + 1
	}
	s.last = t
	return time.Unix(0, t).UTC()
}

func isFull(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_FULL
	}
	return strings.Contains(err.Error(), "database or disk is full")
}

// Save upserts snap as the most recent entry and trims the history to
// capacity. When the write exceeds the page quota the oldest other
// snapshot is evicted and the write retried; ErrStorageFull is returned
// once nothing is left to evict.
func (s *Store) Save(ctx context.Context, snap Snapshot) (Snapshot, error) {
	if snap.ID == "" {
		return Snapshot{}, errors.New("snapshot id is required")
	}
	if snap.Bars == nil {
		snap.Bars = []model.Bar{}
	}

	bars, err := json.Marshal(snap.Bars)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding bars: %w", err)
	}
	meta, err := json.Marshal(snap.Context)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding context: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap.SavedAt = s.stamp()
	for {
		err := s.write(ctx, snap, meta, bars)
		if err == nil {
			return snap, nil
		}
		if !isFull(err) {
			return Snapshot{}, fmt.Errorf("saving snapshot %s: %w", snap.ID, err)
		}

		evicted, evictErr := s.evictOldest(ctx, snap.ID)
		if evictErr != nil {
			return Snapshot{}, fmt.Errorf("evicting for %s: %w", snap.ID, evictErr)
		}
		if evicted == "" {
			return Snapshot{}, fmt.Errorf("saving snapshot %s: %w", snap.ID, ErrStorageFull)
		}
		s.log.Warn(ctx, "snapshot quota reached, evicted oldest", map[string]interface{}{
			"evicted": evicted, "saving": snap.ID,
		})
	}
}

func (s *Store) write(ctx context.Context, snap Snapshot, meta, bars []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, source, label, saved_at, context, bar_count, bars)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   source = excluded.source,
		   label = excluded.label,
		   saved_at = excluded.saved_at,
		   context = excluded.context,
		   bar_count = excluded.bar_count,
		   bars = excluded.bars`,
		snap.ID, string(snap.Source), snap.Label, snap.SavedAt.UnixNano(), string(meta), len(snap.Bars), bars)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (
		   SELECT id FROM snapshots ORDER BY saved_at DESC LIMIT ?
		 )`, s.capacity)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// evictOldest drops the oldest snapshot other than keep and returns its id
func (s *Store) evictOldest(ctx context.Context, keep string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM snapshots WHERE id != ? ORDER BY saved_at ASC LIMIT 1`, keep).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return "", err
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(row scanner, withBars bool) (Snapshot, int, error) {
	var (
		snap    Snapshot
		source  string
		savedAt int64
		meta    string
		count   int
		bars    []byte
	)
	dest := []any{&snap.ID, &source, &snap.Label, &savedAt, &meta, &count}
	if withBars {
		dest = append(dest, &bars)
	}
	if err := row.Scan(dest...); err != nil {
		return Snapshot{}, 0, err
	}

	snap.Source = Source(source)
	snap.SavedAt = time.Unix(0, savedAt).UTC()
	if err := json.Unmarshal([]byte(meta), &snap.Context); err != nil {
		return Snapshot{}, 0, fmt.Errorf("decoding context of %s: %w", snap.ID, err)
	}
	if withBars {
		if err := json.Unmarshal(bars, &snap.Bars); err != nil {
			return Snapshot{}, 0, fmt.Errorf("decoding bars of %s: %w", snap.ID, err)
		}
	}
	return snap, count, nil
}

const selectFull = `SELECT id, source, label, saved_at, context, bar_count, bars FROM snapshots`

// Get returns the snapshot with id or ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, selectFull+` WHERE id = ?`, id)
	snap, _, err := scanMeta(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading snapshot %s: %w", id, err)
	}
	return snap, nil
}

// Latest returns the most recently saved snapshot or ErrNotFound
func (s *Store) Latest(ctx context.Context) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, selectFull+` ORDER BY saved_at DESC LIMIT 1`)
	snap, _, err := scanMeta(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading latest snapshot: %w", err)
	}
	return snap, nil
}

// List returns metadata for every snapshot, newest first
func (s *Store) List(ctx context.Context) ([]Meta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, label, saved_at, context, bar_count FROM snapshots ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	metas := []Meta{}
	for rows.Next() {
		snap, count, err := scanMeta(rows, false)
		if err != nil {
			return nil, err
		}
		m := snap.Meta()
		m.Count = count
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Delete removes the snapshot with id or returns ErrNotFound
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
