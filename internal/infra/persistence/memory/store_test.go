package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pharmacore/pkg/domain"
)

func rec(id, payload string) domain.Record {
	return domain.Record{ID: id, Payload: []byte(payload)}
}

func newInitialized(t *testing.T) *Store {
	t.Helper()
	store := NewStore()
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return store
}

func TestStoreRequiresInitialize(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.Upsert(ctx, domain.CollectionSales, rec("s1", `{}`)); !errors.Is(err, domain.ErrWriteFailed) {
		t.Fatalf("expected write failure before initialize, got %v", err)
	}
	if _, err := store.GetAll(ctx, domain.CollectionSales); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected unavailable before initialize, got %v", err)
	}
}

func TestStoreInitializeIsIdempotentAndConcurrent(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Initialize(context.Background()); err != nil {
				t.Errorf("initialize: %v", err)
			}
		}()
	}
	wg.Wait()
	if !store.Initialized() {
		t.Fatalf("expected initialized")
	}
	if got := len(store.ExportState()); got != len(domain.Collections) {
		t.Fatalf("expected %d collections, got %d", len(domain.Collections), got)
	}
}

func TestStoreUpsertGetAllDelete(t *testing.T) {
	store := newInitialized(t)
	ctx := context.Background()
	all, err := store.GetAll(ctx, domain.CollectionSales)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all == nil || len(all) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", all)
	}
	for _, r := range []domain.Record{rec("s1", `{"v":1}`), rec("s2", `{"v":2}`), rec("s1", `{"v":3}`)} {
		if err := store.Upsert(ctx, domain.CollectionSales, r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	all, _ = store.GetAll(ctx, domain.CollectionSales)
	if len(all) != 2 || all[0].ID != "s1" || string(all[0].Payload) != `{"v":3}` {
		t.Fatalf("unexpected records %+v", all)
	}
	if err := store.Delete(ctx, domain.CollectionSales, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if err := store.Delete(ctx, domain.CollectionSales, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, _ = store.GetAll(ctx, domain.CollectionSales)
	if len(all) != 1 || all[0].ID != "s2" {
		t.Fatalf("unexpected records after delete %+v", all)
	}
}

func TestStoreReplaceAllIsAtomic(t *testing.T) {
	store := newInitialized(t)
	ctx := context.Background()
	if err := store.ReplaceAll(ctx, domain.CollectionInventory, []domain.Record{rec("b", `1`), rec("a", `2`)}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	all, _ := store.GetAll(ctx, domain.CollectionInventory)
	if len(all) != 2 || all[0].ID != "b" || all[1].ID != "a" {
		t.Fatalf("expected insertion order, got %+v", all)
	}
	err := store.ReplaceAll(ctx, domain.CollectionInventory, []domain.Record{rec("c", `3`), rec("c", `4`)})
	if !errors.Is(err, domain.ErrWriteFailed) {
		t.Fatalf("expected write failure for duplicate ids, got %v", err)
	}
	all, _ = store.GetAll(ctx, domain.CollectionInventory)
	if len(all) != 2 || all[0].ID != "b" {
		t.Fatalf("prior contents must survive failed replace, got %+v", all)
	}
}

func TestStoreUnknownCollection(t *testing.T) {
	store := newInitialized(t)
	err := store.Upsert(context.Background(), domain.Collection("orders"), rec("x", `{}`))
	if !errors.Is(err, domain.ErrUnknownCollection) || !errors.Is(err, domain.ErrWriteFailed) {
		t.Fatalf("expected unknown collection write failure, got %v", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := newInitialized(t)
	ctx := context.Background()
	payload := []byte(`{"a":1}`)
	if err := store.Upsert(ctx, domain.CollectionSettings, domain.Record{ID: "app", Payload: payload}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	payload[2] = 'z'
	all, _ := store.GetAll(ctx, domain.CollectionSettings)
	if string(all[0].Payload) != `{"a":1}` {
		t.Fatalf("store aliased caller payload")
	}
	all[0].Payload[2] = 'q'
	again, _ := store.GetAll(ctx, domain.CollectionSettings)
	if string(again[0].Payload) != `{"a":1}` {
		t.Fatalf("store leaked internal payload")
	}
}

func TestStoreRunInTransactionRollsBack(t *testing.T) {
	store := newInitialized(t)
	ctx := context.Background()
	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		if _, err := tx.Upsert(domain.CollectionSales, rec("s1", `{}`)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	all, _ := store.GetAll(ctx, domain.CollectionSales)
	if len(all) != 0 {
		t.Fatalf("expected rollback, got %+v", all)
	}
}

func TestStoreExportImportState(t *testing.T) {
	store := newInitialized(t)
	ctx := context.Background()
	_ = store.ReplaceAll(ctx, domain.CollectionInventory, []domain.Record{rec("m1", `1`), rec("m2", `2`)})
	_ = store.Upsert(ctx, domain.CollectionSales, rec("s1", `{}`))
	snapshot := store.ExportState()

	restored := NewStore()
	restored.ImportState(snapshot)
	if !restored.Initialized() {
		t.Fatalf("import should mark initialized")
	}
	inv, _ := restored.GetAll(ctx, domain.CollectionInventory)
	if len(inv) != 2 || inv[0].ID != "m1" {
		t.Fatalf("unexpected inventory %+v", inv)
	}
	if err := restored.Upsert(ctx, domain.CollectionInventory, rec("m3", `3`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	inv, _ = restored.GetAll(ctx, domain.CollectionInventory)
	if inv[2].ID != "m3" {
		t.Fatalf("expected new record after imported ones, got %+v", inv)
	}
}
