// Package memory provides an in-memory implementation of the record store
// used for tests, ephemeral environments and as the read cache of the SQL
// backends.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"pharmacore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain record store.
var _ domain.RecordStore = (*Store)(nil)

type (
	// Collection aliases domain.Collection.
	Collection = domain.Collection
	// Record aliases domain.Record.
	Record = domain.Record
)

// ErrNotInitialized is returned when the store is used before Initialize.
var ErrNotInitialized = errors.New("record store not initialized")

type entry struct {
	rec Record
	pos int64
}

type collectionState struct {
	records map[string]entry
	next    int64
}

type memoryState map[Collection]*collectionState

func newMemoryState() memoryState {
	st := make(memoryState, len(domain.Collections))
	for _, c := range domain.Collections {
		st[c] = &collectionState{records: make(map[string]entry)}
	}
	return st
}

func (s memoryState) clone() memoryState {
	cloned := make(memoryState, len(s))
	for c, cs := range s {
		cp := &collectionState{records: make(map[string]entry, len(cs.records)), next: cs.next}
		for id, e := range cs.records {
			cp.records[id] = e
		}
		cloned[c] = cp
	}
	return cloned
}

// Positioned pairs a record with its insertion position inside its collection.
type Positioned struct {
	Record
	Position int64
}

// Snapshot captures a point-in-time copy of every collection, each in position order.
type Snapshot map[Collection][]Positioned

// Store provides an in-memory transactional record store.
type Store struct {
	mu          sync.RWMutex
	state       memoryState
	initialized bool
}

// NewStore constructs an empty, uninitialized in-memory store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

// Initialize provisions the collections. It is safe to call repeatedly and concurrently.
func (s *Store) Initialize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range domain.Collections {
		if _, ok := s.state[c]; !ok {
			s.state[c] = &collectionState{records: make(map[string]entry)}
		}
	}
	s.initialized = true
	return nil
}

// Initialized reports whether Initialize has completed.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Transaction is a mutation set applied to a private copy of the store state.
type Transaction struct {
	state memoryState
}

// Upsert inserts or replaces rec, keeping the position of an existing record.
func (tx *Transaction) Upsert(c Collection, rec Record) (int64, error) {
	cs, ok := tx.state[c]
	if !ok {
		return 0, domain.ErrUnknownCollection
	}
	if rec.ID == "" {
		return 0, errors.New("record id required")
	}
	pos := cs.next
	if existing, ok := cs.records[rec.ID]; ok {
		pos = existing.pos
	} else {
		cs.next++
	}
	cs.records[rec.ID] = entry{rec: cloneRecord(rec), pos: pos}
	return pos, nil
}

// ReplaceAll clears c and inserts recs at positions 0..n-1.
func (tx *Transaction) ReplaceAll(c Collection, recs []Record) ([]Positioned, error) {
	if _, ok := tx.state[c]; !ok {
		return nil, domain.ErrUnknownCollection
	}
	cs := &collectionState{records: make(map[string]entry, len(recs))}
	out := make([]Positioned, 0, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			return nil, errors.New("record id required")
		}
		if _, dup := cs.records[rec.ID]; dup {
			return nil, errors.New("duplicate record id " + rec.ID)
		}
		cs.records[rec.ID] = entry{rec: cloneRecord(rec), pos: cs.next}
		out = append(out, Positioned{Record: cloneRecord(rec), Position: cs.next})
		cs.next++
	}
	tx.state[c] = cs
	return out, nil
}

// Delete removes id from c and reports whether it existed.
func (tx *Transaction) Delete(c Collection, id string) (bool, error) {
	cs, ok := tx.state[c]
	if !ok {
		return false, domain.ErrUnknownCollection
	}
	if _, ok := cs.records[id]; !ok {
		return false, nil
	}
	delete(cs.records, id)
	return true, nil
}

// GetAll lists c in position order.
func (tx *Transaction) GetAll(c Collection) ([]Record, error) {
	cs, ok := tx.state[c]
	if !ok {
		return nil, domain.ErrUnknownCollection
	}
	ordered := orderedEntries(cs)
	out := make([]Record, 0, len(ordered))
	for _, e := range ordered {
		out = append(out, cloneRecord(e.rec))
	}
	return out, nil
}

// RunInTransaction executes fn against a copy of the state and commits the
// copy only when fn succeeds. The SQL backends perform their durable write
// inside fn so the cache never runs ahead of the database.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx *Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	tx := &Transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Upsert inserts or replaces a record by id.
func (s *Store) Upsert(ctx context.Context, c Collection, rec Record) error {
	err := s.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.Upsert(c, rec)
		return err
	})
	if err != nil {
		return domain.WriteFailed("upsert", c, err)
	}
	return nil
}

// GetAll returns every record of c; an empty slice when none were stored.
func (s *Store) GetAll(_ context.Context, c Collection) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, domain.Unavailable("get all", ErrNotInitialized)
	}
	tx := &Transaction{state: s.state}
	return tx.GetAll(c)
}

// ReplaceAll atomically swaps the contents of c.
func (s *Store) ReplaceAll(ctx context.Context, c Collection, recs []Record) error {
	err := s.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.ReplaceAll(c, recs)
		return err
	})
	if err != nil {
		return domain.WriteFailed("replace all", c, err)
	}
	return nil
}

// Delete removes id from c; absent ids are ignored.
func (s *Store) Delete(ctx context.Context, c Collection, id string) error {
	err := s.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.Delete(c, id)
		return err
	})
	if err != nil {
		return domain.WriteFailed("delete", c, err)
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Snapshot, len(s.state))
	for c, cs := range s.state {
		ordered := orderedEntries(cs)
		recs := make([]Positioned, 0, len(ordered))
		for _, e := range ordered {
			recs = append(recs, Positioned{Record: cloneRecord(e.rec), Position: e.pos})
		}
		out[c] = recs
	}
	return out
}

// ImportState replaces the store state with snapshot and marks the store initialized.
func (s *Store) ImportState(snapshot Snapshot) {
	st := newMemoryState()
	for c, recs := range snapshot {
		cs, ok := st[c]
		if !ok {
			continue
		}
		for _, p := range recs {
			cs.records[p.ID] = entry{rec: cloneRecord(p.Record), pos: p.Position}
			if p.Position >= cs.next {
				cs.next = p.Position + 1
			}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.initialized = true
}

func orderedEntries(cs *collectionState) []entry {
	out := make([]entry, 0, len(cs.records))
	for _, e := range cs.records {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].pos != out[j].pos {
			return out[i].pos < out[j].pos
		}
		return out[i].rec.ID < out[j].rec.ID
	})
	return out
}

func cloneRecord(r Record) Record {
	return Record{ID: r.ID, Payload: append([]byte(nil), r.Payload...)}
}
