// Package sqlite persists record store collections to an embedded SQLite file.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"pharmacore/internal/infra/persistence/memory"
	"pharmacore/pkg/domain"
)

var _ domain.RecordStore = (*Store)(nil)

const defaultPath = "pharmacore.db"

var connect = sqlx.Connect

var schema = []string{
	`PRAGMA journal_mode=WAL`,
	`PRAGMA synchronous=FULL`,
	`PRAGMA foreign_keys=ON`,
	`CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL REFERENCES collections(name),
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (collection, id)
	)`,
}

const (
	provisionSQL = `INSERT OR IGNORE INTO collections (name) VALUES (?)`
	upsertSQL    = `INSERT INTO records (collection, id, position, payload)
		VALUES (:collection, :id, :position, :payload)
		ON CONFLICT(collection, id) DO UPDATE SET payload=excluded.payload`
	clearSQL  = `DELETE FROM records WHERE collection = ?`
	deleteSQL = `DELETE FROM records WHERE collection = ? AND id = ?`
	selectSQL = `SELECT collection, id, position, payload FROM records ORDER BY collection, position, id`
)

type recordRow struct {
	Collection string `db:"collection"`
	ID         string `db:"id"`
	Position   int64  `db:"position"`
	Payload    []byte `db:"payload"`
}

// Store writes every mutation to SQLite inside one SQL transaction and keeps
// an in-memory copy for reads. The copy changes only after the commit.
type Store struct {
	*memory.Store
	mu   sync.Mutex
	path string

	// dbMu guards db. Writes hold it shared for the whole SQL transaction so
	// Close waits for them.
	dbMu sync.RWMutex
	db   *sqlx.DB
}

// NewStore returns a store for the file at path. Nothing is opened until Initialize.
func NewStore(path string) *Store {
	if path == "" {
		path = defaultPath
	}
	return &Store{Store: memory.NewStore(), path: path}
}

// Initialize opens the database, creates the schema, provisions the
// collections and loads existing records. Repeated calls are no-ops.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle() != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return domain.Unavailable("create dirs", err)
		}
	}
	db, err := connect("sqlite", s.path)
	if err != nil {
		return domain.Unavailable("open sqlite", err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return domain.Unavailable("apply schema", err)
		}
	}
	if err := provision(ctx, db); err != nil {
		_ = db.Close()
		return domain.Unavailable("provision collections", err)
	}
	snapshot, err := load(ctx, db)
	if err != nil {
		_ = db.Close()
		return domain.Unavailable("load records", err)
	}
	s.ImportState(snapshot)
	s.dbMu.Lock()
	s.db = db
	s.dbMu.Unlock()
	return nil
}

func (s *Store) handle() *sqlx.DB {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	return s.db
}

func provision(ctx context.Context, db *sqlx.DB) (retErr error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PreparexContext(ctx, provisionSQL)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, c := range domain.Collections {
		if _, err := stmt.ExecContext(ctx, string(c)); err != nil {
			return fmt.Errorf("provision %s: %w", c, err)
		}
	}
	return tx.Commit()
}

func load(ctx context.Context, db *sqlx.DB) (memory.Snapshot, error) {
	var rows []recordRow
	if err := db.SelectContext(ctx, &rows, selectSQL); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	snapshot := make(memory.Snapshot)
	for _, r := range rows {
		c := domain.Collection(r.Collection)
		snapshot[c] = append(snapshot[c], memory.Positioned{
			Record:   domain.Record{ID: r.ID, Payload: r.Payload},
			Position: r.Position,
		})
	}
	return snapshot, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	if s.db == nil {
		return memory.ErrNotInitialized
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Upsert writes rec to SQLite, then to the cache.
func (s *Store) Upsert(ctx context.Context, c domain.Collection, rec domain.Record) error {
	err := s.RunInTransaction(ctx, func(mtx *memory.Transaction) error {
		pos, err := mtx.Upsert(c, rec)
		if err != nil {
			return err
		}
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.NamedExecContext(ctx, upsertSQL, recordRow{
				Collection: string(c), ID: rec.ID, Position: pos, Payload: rec.Payload,
			})
			return err
		})
	})
	if err != nil {
		return domain.WriteFailed("upsert", c, err)
	}
	return nil
}

// ReplaceAll clears c and inserts recs in one SQL transaction.
func (s *Store) ReplaceAll(ctx context.Context, c domain.Collection, recs []domain.Record) error {
	err := s.RunInTransaction(ctx, func(mtx *memory.Transaction) error {
		positioned, err := mtx.ReplaceAll(c, recs)
		if err != nil {
			return err
		}
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, clearSQL, string(c)); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			for _, p := range positioned {
				if _, err := tx.NamedExecContext(ctx, upsertSQL, recordRow{
					Collection: string(c), ID: p.ID, Position: p.Position, Payload: p.Payload,
				}); err != nil {
					return fmt.Errorf("insert %s: %w", p.ID, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return domain.WriteFailed("replace all", c, err)
	}
	return nil
}

// Delete removes id from c; a missing id is not an error.
func (s *Store) Delete(ctx context.Context, c domain.Collection, id string) error {
	err := s.RunInTransaction(ctx, func(mtx *memory.Transaction) error {
		if _, err := mtx.Delete(c, id); err != nil {
			return err
		}
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, deleteSQL, string(c), id)
			return err
		})
	})
	if err != nil {
		return domain.WriteFailed("delete", c, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB exposes the underlying handle for integration testing hooks.
func (s *Store) DB() *sqlx.DB { return s.handle() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
