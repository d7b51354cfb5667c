package core

import (
	"context"
	"fmt"
	"strings"

	"pharmacore/pkg/domain"
)

// RecordSale persists sale, decrements stock for each line and publishes
// the result. The sale record is written before the inventory snapshot;
// nothing is published unless both writes succeed.
func (s *Service) RecordSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	if len(sale.Items) == 0 {
		return domain.Sale{}, invalidf("sale requires at least one item")
	}
	sale.Items = append([]domain.SaleItem(nil), sale.Items...)
	for i, it := range sale.Items {
		if it.MedicineID == "" {
			return domain.Sale{}, invalidf("sale item %d has no medicine id", i)
		}
		if it.Quantity <= 0 {
			return domain.Sale{}, invalidf("sale item %d quantity must be positive", i)
		}
		sale.Items[i].Subtotal = domain.LineTotal(it.Quantity, it.Price)
	}
	if sale.ID == "" {
		sale.ID = s.newID()
	}
	if sale.Timestamp.IsZero() {
		sale.Timestamp = s.now().UTC()
	}
	sale.Total = sale.ComputeTotal()

	err := s.run(ctx, "record_sale", func(ctx context.Context, cur State) (State, error) {
		for _, existing := range cur.Sales {
			if existing.ID == sale.ID {
				return cur, invalidf("sale %s already recorded", sale.ID)
			}
		}
		inv, missing := applyStock(cur.Inventory, saleLines(sale.Items), -1, false)
		s.logMissing("record_sale", sale.ID, missing)
		if err := s.writeTransaction(ctx, domain.CollectionSales, sale.ID, sale, inv); err != nil {
			return cur, err
		}
		next := cur
		next.Inventory = inv
		next.Sales = append([]domain.Sale{sale}, cur.Sales...)
		return next, nil
	})
	if err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

// RecordPurchase persists purchase, increments stock and overwrites the buy
// price of each referenced medicine. Later lines win for repeated medicines.
func (s *Service) RecordPurchase(ctx context.Context, purchase domain.Purchase) (domain.Purchase, error) {
	if len(purchase.Items) == 0 {
		return domain.Purchase{}, invalidf("purchase requires at least one item")
	}
	purchase.Items = append([]domain.PurchaseItem(nil), purchase.Items...)
	for i, it := range purchase.Items {
		if it.MedicineID == "" {
			return domain.Purchase{}, invalidf("purchase item %d has no medicine id", i)
		}
		if it.Quantity <= 0 {
			return domain.Purchase{}, invalidf("purchase item %d quantity must be positive", i)
		}
		if it.BuyPrice < 0 {
			return domain.Purchase{}, invalidf("purchase item %d buy price is negative", i)
		}
		purchase.Items[i].Subtotal = domain.LineTotal(it.Quantity, it.BuyPrice)
	}
	if purchase.ID == "" {
		purchase.ID = s.newID()
	}
	if purchase.Timestamp.IsZero() {
		purchase.Timestamp = s.now().UTC()
	}
	purchase.Total = purchase.ComputeTotal()

	err := s.run(ctx, "record_purchase", func(ctx context.Context, cur State) (State, error) {
		for _, existing := range cur.Purchases {
			if existing.ID == purchase.ID {
				return cur, invalidf("purchase %s already recorded", purchase.ID)
			}
		}
		inv, missing := applyStock(cur.Inventory, purchaseLines(purchase.Items), 1, true)
		s.logMissing("record_purchase", purchase.ID, missing)
		if err := s.writeTransaction(ctx, domain.CollectionPurchases, purchase.ID, purchase, inv); err != nil {
			return cur, err
		}
		next := cur
		next.Inventory = inv
		next.Purchases = append([]domain.Purchase{purchase}, cur.Purchases...)
		return next, nil
	})
	if err != nil {
		return domain.Purchase{}, err
	}
	return purchase, nil
}

// DeleteSale removes a sale record. Stock is only restored when the service
// was built WithRestoreStockOnDelete. Unknown ids are a no-op.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if id == "" {
		return invalidf("sale id required")
	}
	return s.run(ctx, "delete_sale", func(ctx context.Context, cur State) (State, error) {
		var target *domain.Sale
		kept := make([]domain.Sale, 0, len(cur.Sales))
		for i := range cur.Sales {
			if cur.Sales[i].ID == id {
				target = &cur.Sales[i]
				continue
			}
			kept = append(kept, cur.Sales[i])
		}
		if err := s.store.Delete(ctx, domain.CollectionSales, id); err != nil {
			return cur, err
		}
		next := cur
		next.Sales = kept
		if s.restoreStockOnDelete && target != nil {
			inv, missing := applyStock(cur.Inventory, saleLines(target.Items), 1, false)
			s.logMissing("delete_sale", id, missing)
			if err := s.replaceInventory(ctx, inv); err != nil {
				return cur, err
			}
			next.Inventory = inv
		}
		return next, nil
	})
}

// DeletePurchase removes a purchase record. With WithRestoreStockOnDelete the
// purchased quantities are subtracted again, clamped at zero; buy prices are
// left as they are.
func (s *Service) DeletePurchase(ctx context.Context, id string) error {
	if id == "" {
		return invalidf("purchase id required")
	}
	return s.run(ctx, "delete_purchase", func(ctx context.Context, cur State) (State, error) {
		var target *domain.Purchase
		kept := make([]domain.Purchase, 0, len(cur.Purchases))
		for i := range cur.Purchases {
			if cur.Purchases[i].ID == id {
				target = &cur.Purchases[i]
				continue
			}
			kept = append(kept, cur.Purchases[i])
		}
		if err := s.store.Delete(ctx, domain.CollectionPurchases, id); err != nil {
			return cur, err
		}
		next := cur
		next.Purchases = kept
		if s.restoreStockOnDelete && target != nil {
			inv, missing := applyStock(cur.Inventory, purchaseLines(target.Items), -1, false)
			s.logMissing("delete_purchase", id, missing)
			if err := s.replaceInventory(ctx, inv); err != nil {
				return cur, err
			}
			next.Inventory = inv
		}
		return next, nil
	})
}

// AddMedicine assigns a new id to m and prepends it to the inventory.
func (s *Service) AddMedicine(ctx context.Context, m domain.Medicine) (domain.Medicine, error) {
	if err := validateMedicine(m); err != nil {
		return domain.Medicine{}, err
	}
	m.ID = s.newID()
	err := s.run(ctx, "add_medicine", func(ctx context.Context, cur State) (State, error) {
		inv := append([]domain.Medicine{m}, cur.Inventory...)
		if err := s.replaceInventory(ctx, inv); err != nil {
			return cur, err
		}
		next := cur
		next.Inventory = inv
		return next, nil
	})
	if err != nil {
		return domain.Medicine{}, err
	}
	return m, nil
}

// UpdateMedicine replaces the inventory entry with m.ID.
func (s *Service) UpdateMedicine(ctx context.Context, m domain.Medicine) (domain.Medicine, error) {
	if m.ID == "" {
		return domain.Medicine{}, invalidf("medicine id required")
	}
	if err := validateMedicine(m); err != nil {
		return domain.Medicine{}, err
	}
	err := s.run(ctx, "update_medicine", func(ctx context.Context, cur State) (State, error) {
		inv := make([]domain.Medicine, len(cur.Inventory))
		copy(inv, cur.Inventory)
		found := false
		for i := range inv {
			if inv[i].ID == m.ID {
				inv[i] = m
				found = true
				break
			}
		}
		if !found {
			return cur, ErrNotFound{Entity: EntityMedicine, ID: m.ID}
		}
		if err := s.replaceInventory(ctx, inv); err != nil {
			return cur, err
		}
		next := cur
		next.Inventory = inv
		return next, nil
	})
	if err != nil {
		return domain.Medicine{}, err
	}
	return m, nil
}

// DeleteMedicine drops id from the inventory. The snapshot is rewritten even
// when id is absent.
func (s *Service) DeleteMedicine(ctx context.Context, id string) error {
	if id == "" {
		return invalidf("medicine id required")
	}
	return s.run(ctx, "delete_medicine", func(ctx context.Context, cur State) (State, error) {
		inv := make([]domain.Medicine, 0, len(cur.Inventory))
		for _, m := range cur.Inventory {
			if m.ID != id {
				inv = append(inv, m)
			}
		}
		if err := s.replaceInventory(ctx, inv); err != nil {
			return cur, err
		}
		next := cur
		next.Inventory = inv
		return next, nil
	})
}

// UpdateSettings validates and stores st.
func (s *Service) UpdateSettings(ctx context.Context, st domain.Settings) (domain.Settings, error) {
	st.PharmacyName = strings.TrimSpace(st.PharmacyName)
	if err := st.Validate(); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	err := s.run(ctx, "update_settings", func(ctx context.Context, cur State) (State, error) {
		if err := s.settings.Save(ctx, st); err != nil {
			return cur, err
		}
		next := cur
		next.Settings = st
		return next, nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return st, nil
}

func (s *Service) writeTransaction(ctx context.Context, c domain.Collection, id string, v any, inv []domain.Medicine) error {
	if s.inventoryErr != nil {
		return s.inventoryErr
	}
	rec, err := domain.EncodeRecord(id, v)
	if err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, c, rec); err != nil {
		return err
	}
	return s.replaceInventory(ctx, inv)
}

// replaceInventory rewrites the inventory snapshot. Undecodable records found
// at hydration are appended unchanged unless a medicine now uses their id.
func (s *Service) replaceInventory(ctx context.Context, inv []domain.Medicine) error {
	if s.inventoryErr != nil {
		return s.inventoryErr
	}
	recs, err := domain.EncodeMedicines(inv)
	if err != nil {
		return err
	}
	if len(s.strayInventory) > 0 {
		ids := make(map[string]struct{}, len(recs))
		for _, r := range recs {
			ids[r.ID] = struct{}{}
		}
		for _, r := range s.strayInventory {
			if _, taken := ids[r.ID]; !taken {
				recs = append(recs, r)
			}
		}
	}
	return s.store.ReplaceAll(ctx, domain.CollectionInventory, recs)
}

func (s *Service) logMissing(op, id string, missing []error) {
	for _, m := range missing {
		s.logger.Warn("stock change skipped", "operation", op, "record", id, "error", m)
	}
}

func validateMedicine(m domain.Medicine) error {
	switch {
	case strings.TrimSpace(m.Name) == "":
		return invalidf("medicine name required")
	case m.Stock < 0:
		return invalidf("medicine stock must not be negative")
	case m.Price < 0 || m.BuyPrice < 0:
		return invalidf("medicine prices must not be negative")
	case m.Category != "" && !m.Category.Valid():
		return invalidf("unknown category %q", m.Category)
	case m.FormType != "" && !m.FormType.Valid():
		return invalidf("unknown form type %q", m.FormType)
	}
	if m.ExpiryDate != "" {
		if _, err := m.Expiry(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return nil
}
