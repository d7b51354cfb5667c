package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pharmacore/internal/infra/persistence/memory"
	"pharmacore/internal/settings"
	"pharmacore/pkg/domain"
)

var errDisk = errors.New("disk full")

// faultyStore wraps the memory store and fails selected operations.
type faultyStore struct {
	*memory.Store
	mu          sync.Mutex
	failInit    error
	failGetAll  map[domain.Collection]error
	failUpsert  map[domain.Collection]error
	failReplace map[domain.Collection]error
	failDelete  map[domain.Collection]error
	inits       int
	writes      []string
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:       memory.NewStore(),
		failGetAll:  map[domain.Collection]error{},
		failUpsert:  map[domain.Collection]error{},
		failReplace: map[domain.Collection]error{},
		failDelete:  map[domain.Collection]error{},
	}
}

func (f *faultyStore) Initialize(ctx context.Context) error {
	f.mu.Lock()
	f.inits++
	err := f.failInit
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Initialize(ctx)
}

func (f *faultyStore) GetAll(ctx context.Context, c domain.Collection) ([]domain.Record, error) {
	f.mu.Lock()
	err := f.failGetAll[c]
	f.mu.Unlock()
	if err != nil {
		return nil, domain.Unavailable("get all", err)
	}
	return f.Store.GetAll(ctx, c)
}

func (f *faultyStore) Upsert(ctx context.Context, c domain.Collection, rec domain.Record) error {
	f.mu.Lock()
	err := f.failUpsert[c]
	f.writes = append(f.writes, fmt.Sprintf("upsert:%s:%s", c, rec.ID))
	f.mu.Unlock()
	if err != nil {
		return domain.WriteFailed("upsert", c, err)
	}
	return f.Store.Upsert(ctx, c, rec)
}

func (f *faultyStore) ReplaceAll(ctx context.Context, c domain.Collection, recs []domain.Record) error {
	f.mu.Lock()
	err := f.failReplace[c]
	f.writes = append(f.writes, fmt.Sprintf("replace:%s", c))
	f.mu.Unlock()
	if err != nil {
		return domain.WriteFailed("replace all", c, err)
	}
	return f.Store.ReplaceAll(ctx, c, recs)
}

func (f *faultyStore) Delete(ctx context.Context, c domain.Collection, id string) error {
	f.mu.Lock()
	err := f.failDelete[c]
	f.writes = append(f.writes, fmt.Sprintf("delete:%s:%s", c, id))
	f.mu.Unlock()
	if err != nil {
		return domain.WriteFailed("delete", c, err)
	}
	return f.Store.Delete(ctx, c, id)
}

func (f *faultyStore) set(m map[domain.Collection]error, c domain.Collection, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(m, c)
		return
	}
	m[c] = err
}

func (f *faultyStore) writeLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// fakeMigrator returns fixed legacy data and counts calls.
type fakeMigrator struct {
	inventory []domain.Medicine
	sales     []domain.Sale
	purchases []domain.Purchase
	err       error
	calls     map[string]int
}

func (m *fakeMigrator) count(name string) {
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

func (m *fakeMigrator) Inventory(context.Context) ([]domain.Medicine, error) {
	m.count("inventory")
	return m.inventory, m.err
}

func (m *fakeMigrator) Sales(context.Context) ([]domain.Sale, error) {
	m.count("sales")
	return m.sales, m.err
}

func (m *fakeMigrator) Purchases(context.Context) ([]domain.Purchase, error) {
	m.count("purchases")
	return m.purchases, m.err
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func seedInventory(t *testing.T, store domain.RecordStore, meds ...domain.Medicine) {
	t.Helper()
	ctx := context.Background()
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	recs, err := domain.EncodeMedicines(meds)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := store.ReplaceAll(ctx, domain.CollectionInventory, recs); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func newReadyService(t *testing.T, store domain.RecordStore, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithSettingsStore(settings.NewMemoryStore()),
		WithIDGenerator(sequentialIDs("id")),
	}
	svc := NewService(store, append(base, opts...)...)
	if err := svc.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	return svc
}

func medicine(id string, stock int) domain.Medicine {
	return domain.Medicine{
		ID:          id,
		Name:        "Med " + id,
		GenericName: "Generic " + id,
		Category:    domain.CategoryOther,
		FormType:    domain.FormTablet,
		Stock:       stock,
		ExpiryDate:  "2027-01-01",
		BuyPrice:    2,
		Price:       5,
	}
}

func saleOf(medicineID string, qty int) domain.Sale {
	return domain.Sale{Items: []domain.SaleItem{{MedicineID: medicineID, MedicineName: "Med " + medicineID, Quantity: qty, BuyPrice: 2, Price: 5}}}
}

func stockOf(t *testing.T, st State, id string) int {
	t.Helper()
	m, ok := st.Medicine(id)
	if !ok {
		t.Fatalf("medicine %s missing from state", id)
	}
	return m.Stock
}
