package core

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"pharmacore/pkg/domain"
)

// Hydrate opens the record store, imports legacy data into empty
// collections and publishes the loaded State. It runs once: a ready service
// ignores later calls and a failed one returns the original failure.
func (s *Service) Hydrate(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Snapshot().Phase {
	case PhaseReady:
		return nil
	case PhaseFailed:
		return s.hydrateErr
	}

	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "hydrate")
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, "hydrate", err == nil, time.Since(started))
	}()

	st := s.Snapshot()
	st.Phase = PhaseHydrating
	st.Status = StatusSaving
	s.publish(st)

	if err := s.store.Initialize(ctx); err != nil {
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			err = domain.Unavailable("initialize", err)
		}
		s.hydrateErr = err
		st.Phase = PhaseFailed
		st.Status = StatusError
		st.LastError = err.Error()
		s.publish(st)
		s.logger.Error("hydration failed", "error", err)
		return err
	}

	st.Inventory = s.hydrateInventory(ctx)
	st.Sales = hydrateLedger(ctx, s, domain.CollectionSales, s.migrator.Sales, func(v domain.Sale) string { return v.ID })
	st.Purchases = hydrateLedger(ctx, s, domain.CollectionPurchases, s.migrator.Purchases, func(v domain.Purchase) string { return v.ID })
	st.Settings = s.hydrateSettings(ctx)
	sortSales(st.Sales)
	sortPurchases(st.Purchases)

	st.Phase = PhaseReady
	st.Status = StatusSynced
	st.LastError = ""
	st.LastPersistedAt = s.stamp(st.LastPersistedAt)
	s.publish(st)
	s.logger.Info("hydration complete",
		"inventory", len(st.Inventory),
		"sales", len(st.Sales),
		"purchases", len(st.Purchases),
	)
	return nil
}

func (s *Service) hydrateInventory(ctx context.Context) []domain.Medicine {
	c := domain.CollectionInventory
	s.inventoryErr = nil
	s.strayInventory = nil
	recs, err := s.store.GetAll(ctx, c)
	if err != nil {
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			err = domain.Unavailable("read inventory", err)
		}
		s.inventoryErr = err
		s.logger.Error("inventory unreadable, inventory writes disabled", "collection", c, "error", err)
		return []domain.Medicine{}
	}
	if len(recs) > 0 {
		meds, stray := splitDecodable[domain.Medicine](s, c, recs)
		s.strayInventory = stray
		return meds
	}
	meds, merr := s.migrator.Inventory(ctx)
	if merr != nil {
		s.logger.Warn("legacy import reported errors", "collection", c, "error", merr)
	}
	if len(meds) == 0 {
		return []domain.Medicine{}
	}
	encoded, err := domain.EncodeMedicines(meds)
	if err == nil {
		err = s.store.ReplaceAll(ctx, c, encoded)
	}
	if err != nil {
		s.logger.Error("legacy import not persisted", "collection", c, "error", err)
		return []domain.Medicine{}
	}
	s.logger.Info("legacy import persisted", "collection", c, "records", len(meds))
	return meds
}

// hydrateLedger loads sales or purchases. Migrated records are upserted one
// by one and only the ones that were written are kept.
func hydrateLedger[T domain.Sale | domain.Purchase](
	ctx context.Context,
	s *Service,
	c domain.Collection,
	migrate func(context.Context) ([]T, error),
	id func(T) string,
) []T {
	recs, err := s.store.GetAll(ctx, c)
	if err != nil {
		s.logger.Warn("collection unreadable, starting empty", "collection", c, "error", err)
		return []T{}
	}
	if len(recs) > 0 {
		return decodeEach[T](s, c, recs)
	}
	items, merr := migrate(ctx)
	if merr != nil {
		s.logger.Warn("legacy import reported errors", "collection", c, "error", merr)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		rec, err := domain.EncodeRecord(id(item), item)
		if err == nil {
			err = s.store.Upsert(ctx, c, rec)
		}
		if err != nil {
			s.logger.Error("legacy record not persisted", "collection", c, "id", id(item), "error", err)
			continue
		}
		out = append(out, item)
	}
	if len(out) > 0 {
		s.logger.Info("legacy import persisted", "collection", c, "records", len(out))
	}
	return out
}

// decodeEach decodes records individually so one corrupt payload does not
// hide the rest of the collection.
func decodeEach[T domain.Identified](s *Service, c domain.Collection, recs []domain.Record) []T {
	out, _ := splitDecodable[T](s, c, recs)
	return out
}

// splitDecodable returns the decoded values and the records that could not
// be decoded, the latter untouched.
func splitDecodable[T domain.Identified](s *Service, c domain.Collection, recs []domain.Record) ([]T, []domain.Record) {
	out := make([]T, 0, len(recs))
	var stray []domain.Record
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Payload, &v); err != nil {
			s.logger.Warn("undecodable record kept in storage", "collection", c, "id", rec.ID, "error", err)
			stray = append(stray, rec)
			continue
		}
		out = append(out, v)
	}
	return out, domain.CloneRecords(stray)
}

func (s *Service) hydrateSettings(ctx context.Context) domain.Settings {
	st, ok, err := s.settings.Load(ctx)
	switch {
	case err != nil:
		s.logger.Warn("settings unreadable, using defaults", "error", err)
		return domain.DefaultSettings()
	case !ok:
		return domain.DefaultSettings()
	}
	if err := st.Validate(); err != nil {
		s.logger.Warn("stored settings invalid, using defaults", "error", err)
		return domain.DefaultSettings()
	}
	return st
}

func sortSales(sales []domain.Sale) {
	sort.SliceStable(sales, func(i, j int) bool {
		if !sales[i].Timestamp.Equal(sales[j].Timestamp) {
			return sales[i].Timestamp.After(sales[j].Timestamp)
		}
		return sales[i].ID < sales[j].ID
	})
}

func sortPurchases(purchases []domain.Purchase) {
	sort.SliceStable(purchases, func(i, j int) bool {
		if !purchases[i].Timestamp.Equal(purchases[j].Timestamp) {
			return purchases[i].Timestamp.After(purchases[j].Timestamp)
		}
		return purchases[i].ID < purchases[j].ID
	})
}
