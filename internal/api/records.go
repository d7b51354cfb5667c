package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pharmacore/pkg/domain"
)

func (h *Handler) listInventory(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Snapshot().Inventory)
}

func (h *Handler) addMedicine(w http.ResponseWriter, r *http.Request) {
	var m domain.Medicine
	if err := decodeJSON(w, r, &m); err != nil {
		h.fail(w, "add_medicine", err)
		return
	}
	created, err := h.svc.AddMedicine(r.Context(), m)
	if err != nil {
		h.fail(w, "add_medicine", err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	var m domain.Medicine
	if err := decodeJSON(w, r, &m); err != nil {
		h.fail(w, "update_medicine", err)
		return
	}
	m.ID = chi.URLParam(r, "id")
	updated, err := h.svc.UpdateMedicine(r.Context(), m)
	if err != nil {
		h.fail(w, "update_medicine", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMedicine(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete_medicine", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSales(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Snapshot().Sales)
}

// recordSale accepts lines that carry only medicineId and quantity; name and
// prices are then captured from the current inventory.
func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var sale domain.Sale
	if err := decodeJSON(w, r, &sale); err != nil {
		h.fail(w, "record_sale", err)
		return
	}
	st := h.svc.Snapshot()
	for i, it := range sale.Items {
		if it.MedicineName != "" {
			continue
		}
		if m, ok := st.Medicine(it.MedicineID); ok {
			sale.Items[i] = domain.NewSaleItem(m, it.Quantity)
		}
	}
	saved, err := h.svc.RecordSale(r.Context(), sale)
	if err != nil {
		h.failTransaction(w, "record_sale", err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSale(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete_sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPurchases(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Snapshot().Purchases)
}

// recordPurchase fills missing names from the inventory. A zero buy price
// keeps the medicine's current one.
func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var p domain.Purchase
	if err := decodeJSON(w, r, &p); err != nil {
		h.fail(w, "record_purchase", err)
		return
	}
	st := h.svc.Snapshot()
	for i, it := range p.Items {
		if it.MedicineName != "" {
			continue
		}
		if m, ok := st.Medicine(it.MedicineID); ok {
			price := it.BuyPrice
			if price == 0 {
				price = m.BuyPrice
			}
			p.Items[i] = domain.NewPurchaseItem(m, it.Quantity, price)
		}
	}
	saved, err := h.svc.RecordPurchase(r.Context(), p)
	if err != nil {
		h.failTransaction(w, "record_purchase", err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (h *Handler) deletePurchase(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePurchase(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete_purchase", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getSettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Snapshot().Settings)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var st domain.Settings
	if err := decodeJSON(w, r, &st); err != nil {
		h.fail(w, "update_settings", err)
		return
	}
	saved, err := h.svc.UpdateSettings(r.Context(), st)
	if err != nil {
		h.fail(w, "update_settings", err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}
