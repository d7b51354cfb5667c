// Package postgres provides a Postgres-backed record store that mirrors the
// in-memory semantics and keeps one row per record.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"pharmacore/internal/infra/persistence/memory"
	"pharmacore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.RecordStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/pharmacore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pharmacore_collections (
		name TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS pharmacore_records (
		collection TEXT NOT NULL REFERENCES pharmacore_collections(name),
		id TEXT NOT NULL,
		position BIGINT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (collection, id)
	)`,
}

const (
	provisionSQL = `INSERT INTO pharmacore_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`
	upsertSQL    = `INSERT INTO pharmacore_records (collection, id, position, payload) VALUES ($1, $2, $3, $4) ON CONFLICT (collection, id) DO UPDATE SET payload = EXCLUDED.payload`
	clearSQL     = `DELETE FROM pharmacore_records WHERE collection = $1`
	deleteSQL    = `DELETE FROM pharmacore_records WHERE collection = $1 AND id = $2`
	selectSQL    = `SELECT collection, id, position, payload FROM pharmacore_records ORDER BY collection, position, id`
)

// Store persists records to Postgres while serving reads from the in-memory cache.
type Store struct {
	*memory.Store
	dsn string
	mu  sync.Mutex

	// dbMu guards db; writes hold it shared until commit so Close waits.
	dbMu sync.RWMutex
	db   *sql.DB
}

// NewStore returns a store for dsn (falls back to defaultDSN). The connection
// is opened by Initialize.
func NewStore(dsn string) *Store {
	if dsn == "" {
		dsn = defaultDSN
	}
	return &Store{Store: memory.NewStore(), dsn: dsn}
}

// Initialize connects, ensures the schema, provisions the collections and
// hydrates the cache. Repeated calls are no-ops.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DB() != nil {
		return nil
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, s.dsn)
	openMu.Unlock()
	if err != nil {
		return domain.Unavailable("open postgres", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return domain.Unavailable("ping postgres", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return domain.Unavailable("ensure schema", err)
		}
	}
	for _, c := range domain.Collections {
		if _, err := db.ExecContext(ctx, provisionSQL, string(c)); err != nil {
			_ = db.Close()
			return domain.Unavailable("provision "+string(c), err)
		}
	}
	snapshot, err := loadSnapshot(ctx, db)
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

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	return s.db
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := make(memory.Snapshot)
	for rows.Next() {
		var (
			collection, id string
			position       int64
			payload        []byte
		)
		if err := rows.Scan(&collection, &id, &position, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		c := domain.Collection(collection)
		snapshot[c] = append(snapshot[c], memory.Positioned{
			Record:   domain.Record{ID: id, Payload: payload},
			Position: position,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return snapshot, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	if s.db == nil {
		return memory.ErrNotInitialized
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
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

// Upsert writes rec to Postgres and then exposes it through the cache.
func (s *Store) Upsert(ctx context.Context, c domain.Collection, rec domain.Record) error {
	err := s.RunInTransaction(ctx, func(mtx *memory.Transaction) error {
		pos, err := mtx.Upsert(c, rec)
		if err != nil {
			return err
		}
		return s.inTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, upsertSQL, string(c), rec.ID, pos, []byte(rec.Payload))
			return err
		})
	})
	if err != nil {
		return domain.WriteFailed("upsert", c, err)
	}
	return nil
}

// ReplaceAll deletes every row of c and inserts recs inside one transaction.
func (s *Store) ReplaceAll(ctx context.Context, c domain.Collection, recs []domain.Record) error {
	err := s.RunInTransaction(ctx, func(mtx *memory.Transaction) error {
		positioned, err := mtx.ReplaceAll(c, recs)
		if err != nil {
			return err
		}
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, clearSQL, string(c)); err != nil {
				return fmt.Errorf("clear %s: %w", c, err)
			}
			for _, p := range positioned {
				if _, err := tx.ExecContext(ctx, upsertSQL, string(c), p.ID, p.Position, []byte(p.Payload)); err != nil {
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

// Delete removes id from c.
func (s *Store) Delete(ctx context.Context, c domain.Collection, id string) error {
	err := s.RunInTransaction(ctx, func(mtx *memory.Transaction) error {
		if _, err := mtx.Delete(c, id); err != nil {
			return err
		}
		return s.inTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, deleteSQL, string(c), id)
			return err
		})
	})
	if err != nil {
		return domain.WriteFailed("delete", c, err)
	}
	return nil
}

// Close releases the connection pool.
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

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
