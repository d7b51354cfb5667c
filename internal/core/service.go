package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pharmacore/internal/settings"
	"pharmacore/pkg/domain"
)

// Migrator imports legacy data for a collection that is empty at hydration.
// A non-nil error alongside records reports skipped legacy versions; the
// records are still used.
type Migrator interface {
	Inventory(ctx context.Context) ([]domain.Medicine, error)
	Sales(ctx context.Context) ([]domain.Sale, error)
	Purchases(ctx context.Context) ([]domain.Purchase, error)
}

// SettingsStore persists the settings document outside the transaction ledger.
type SettingsStore interface {
	Load(ctx context.Context) (domain.Settings, bool, error)
	Save(ctx context.Context, s domain.Settings) error
}

type noopMigrator struct{}

func (noopMigrator) Inventory(context.Context) ([]domain.Medicine, error) { return nil, nil }
func (noopMigrator) Sales(context.Context) ([]domain.Sale, error)         { return nil, nil }
func (noopMigrator) Purchases(context.Context) ([]domain.Purchase, error) { return nil, nil }

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the span factory.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the uuid generator used for new records.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithRestoreStockOnDelete makes DeleteSale and DeletePurchase reverse their
// inventory effect. Off by default: deleting a record leaves stock untouched.
func WithRestoreStockOnDelete(enabled bool) Option {
	return func(s *Service) { s.restoreStockOnDelete = enabled }
}

// WithMigrator sets the legacy import source consulted for empty collections.
func WithMigrator(m Migrator) Option {
	return func(s *Service) {
		if m != nil {
			s.migrator = m
		}
	}
}

// WithSettingsStore overrides the settings persistence. By default settings
// live in the record store's settings collection.
func WithSettingsStore(st SettingsStore) Option {
	return func(s *Service) {
		if st != nil {
			s.settings = st
		}
	}
}

// Service owns the record store, the published State and the write-through
// mutation pipeline. Mutations are serialized.
type Service struct {
	store    domain.RecordStore
	settings SettingsStore
	migrator Migrator
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	now      func() time.Time
	newID    func() string

	restoreStockOnDelete bool

	mu         sync.Mutex
	hydrateErr error

	// inventoryErr blocks inventory writes after the collection could not be
	// read. strayInventory holds undecodable inventory records that every
	// snapshot rewrite carries along. Both are guarded by mu.
	inventoryErr   error
	strayInventory []domain.Record

	stateMu sync.RWMutex
	state   State

	subsMu  sync.Mutex
	subs    map[uint64]func(State)
	nextSub uint64
}

// NewService constructs a service over store. Call Hydrate before mutating.
func NewService(store domain.RecordStore, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		migrator: noopMigrator{},
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		now:      time.Now,
		newID:    uuid.NewString,
		state:    initialState(),
		subs:     make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.settings == nil {
		svc.settings = settings.NewRecordStore(store)
	}
	return svc
}

// Snapshot returns the currently published State.
func (s *Service) Snapshot() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Subscribe registers fn to receive every published State. fn runs on the
// publishing goroutine and must not call back into Service mutations.
func (s *Service) Subscribe(fn func(State)) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// RestoreStockOnDelete reports the configured delete policy.
func (s *Service) RestoreStockOnDelete() bool { return s.restoreStockOnDelete }

// AssistantInventory returns the inventory sample handed to the assistant.
func (s *Service) AssistantInventory() []domain.Medicine {
	inv := s.Snapshot().Inventory
	if len(inv) > assistantSampleSize {
		inv = inv[:assistantSampleSize]
	}
	return append([]domain.Medicine(nil), inv...)
}

const assistantSampleSize = 30

func (s *Service) publish(next State) {
	s.stateMu.Lock()
	s.state = next
	s.stateMu.Unlock()

	s.subsMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
}

// stamp returns a persistence time strictly after prev.
func (s *Service) stamp(prev time.Time) time.Time {
	ts := s.now().UTC()
	if !ts.After(prev) {
		ts = prev.Add(time.Millisecond)
	}
	return ts
}

// run executes a mutation under the service lock. fn receives the published
// State and returns its successor; the successor is published only when fn
// succeeds. On failure only the status and LastError change.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, current State) (State, error)) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	}()

	current := s.Snapshot()
	if current.Phase != PhaseReady {
		s.logger.Warn("mutation rejected", "operation", op, "phase", current.Phase)
		return ErrNotReady
	}

	saving := current
	saving.Status = StatusSaving
	s.publish(saving)

	next, err := fn(ctx, current)
	if err != nil {
		failed := current
		failed.Status = StatusError
		failed.LastError = err.Error()
		s.publish(failed)
		s.logger.Error("mutation failed", "operation", op, "error", err)
		return err
	}
	next.Status = StatusSynced
	next.LastError = ""
	next.LastPersistedAt = s.stamp(current.LastPersistedAt)
	s.publish(next)
	s.logger.Debug("mutation persisted", "operation", op, "duration_ms", time.Since(started).Milliseconds())
	return nil
}
