package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pharmacore/pkg/domain"
)

// Format is one known legacy encoding of a collection.
type Format[T any] struct {
	Version int
	Key     string
	Parse   func(raw []byte) ([]T, error)
}

// Legacy storage keys.
const (
	KeyInventoryV4 = "pharma_inventory_v4"
	KeyInventoryV3 = "pharma_inventory_v3"
	KeySalesV4     = "pharma_sales_history_v4"
	KeySalesV3     = "pharma_sales_history_v3"
	KeyPurchasesV4 = "pharma_purchases_v4"
	KeyPurchasesV3 = "pharma_purchases_v3"
)

// InventoryFormats lists the inventory encodings, newest first.
func InventoryFormats() []Format[domain.Medicine] {
	return []Format[domain.Medicine]{
		{Version: 4, Key: KeyInventoryV4, Parse: parseInventory},
		{Version: 3, Key: KeyInventoryV3, Parse: parseInventory},
	}
}

// SalesFormats lists the sales encodings, newest first.
func SalesFormats() []Format[domain.Sale] {
	return []Format[domain.Sale]{
		{Version: 4, Key: KeySalesV4, Parse: func(raw []byte) ([]domain.Sale, error) { return parseSales(raw, false) }},
		{Version: 3, Key: KeySalesV3, Parse: func(raw []byte) ([]domain.Sale, error) { return parseSales(raw, true) }},
	}
}

// PurchasesFormats lists the purchase encodings, newest first.
func PurchasesFormats() []Format[domain.Purchase] {
	return []Format[domain.Purchase]{
		{Version: 4, Key: KeyPurchasesV4, Parse: func(raw []byte) ([]domain.Purchase, error) { return parsePurchases(raw, false) }},
		{Version: 3, Key: KeyPurchasesV3, Parse: func(raw []byte) ([]domain.Purchase, error) { return parsePurchases(raw, true) }},
	}
}

// flexID accepts ids written either as strings or as numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestamp reads a serialized date string. Epoch milliseconds are
// accepted only when allowEpoch is set.
func parseTimestamp(raw json.RawMessage, allowEpoch bool) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("timestamp missing")
	}
	if raw[0] != '"' {
		if !allowEpoch {
			return time.Time{}, fmt.Errorf("timestamp %s is not a date string", raw)
		}
		ms, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
		}
		return time.UnixMilli(int64(ms)).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if allowEpoch {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type legacyMedicine struct {
	ID          flexID  `json:"id"`
	Name        string  `json:"name"`
	GenericName string  `json:"genericName"`
	Barcode     string  `json:"barcode"`
	Category    string  `json:"category"`
	FormType    string  `json:"formType"`
	Stock       float64 `json:"stock"`
	ExpiryDate  string  `json:"expiryDate"`
	BuyPrice    float64 `json:"buyPrice"`
	Price       float64 `json:"price"`
	Dosage      string  `json:"dosage"`
	Location    string  `json:"location"`
}

func parseInventory(raw []byte) ([]domain.Medicine, error) {
	var in []legacyMedicine
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]domain.Medicine, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, m := range in {
		if m.ID == "" {
			return nil, fmt.Errorf("medicine %d has no id", i)
		}
		if _, dup := seen[string(m.ID)]; dup {
			return nil, fmt.Errorf("duplicate medicine id %s", m.ID)
		}
		seen[string(m.ID)] = struct{}{}
		stock := int(m.Stock)
		if stock < 0 {
			stock = 0
		}
		cat := domain.Category(m.Category)
		if !cat.Valid() {
			cat = domain.CategoryOther
		}
		form := domain.FormType(m.FormType)
		if !form.Valid() {
			form = domain.FormTablet
		}
		out = append(out, domain.Medicine{
			ID:          string(m.ID),
			Name:        m.Name,
			GenericName: m.GenericName,
			Barcode:     m.Barcode,
			Category:    cat,
			FormType:    form,
			Stock:       stock,
			ExpiryDate:  normalizeExpiry(m.ExpiryDate),
			BuyPrice:    m.BuyPrice,
			Price:       m.Price,
			Dosage:      m.Dosage,
			Location:    m.Location,
		})
	}
	return out, nil
}

// normalizeExpiry trims full timestamps down to the calendar date.
func normalizeExpiry(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(domain.ExpiryLayout) {
		if _, err := time.Parse(domain.ExpiryLayout, s[:len(domain.ExpiryLayout)]); err == nil {
			return s[:len(domain.ExpiryLayout)]
		}
	}
	return s
}

type legacySaleItem struct {
	MedicineID   flexID  `json:"medicineId"`
	MedicineName string  `json:"medicineName"`
	Quantity     int     `json:"quantity"`
	BuyPrice     float64 `json:"buyPrice"`
	Price        float64 `json:"price"`
	Subtotal     float64 `json:"subtotal"`
}

type legacySale struct {
	ID                flexID           `json:"id"`
	Items             []legacySaleItem `json:"items"`
	Total             float64          `json:"total"`
	Timestamp         json.RawMessage  `json:"timestamp"`
	BankTransactionID string           `json:"bankTransactionId"`
	CustomerName      string           `json:"customerName"`
	CustomerPhone     string           `json:"customerPhone"`
}

func parseSales(raw []byte, allowEpoch bool) ([]domain.Sale, error) {
	var in []legacySale
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]domain.Sale, 0, len(in))
	for i, s := range in {
		if s.ID == "" {
			return nil, fmt.Errorf("sale %d has no id", i)
		}
		ts, err := parseTimestamp(s.Timestamp, allowEpoch)
		if err != nil {
			return nil, fmt.Errorf("sale %s: %w", s.ID, err)
		}
		sale := domain.Sale{
			ID:                string(s.ID),
			Total:             s.Total,
			Timestamp:         ts,
			BankTransactionID: s.BankTransactionID,
			CustomerName:      s.CustomerName,
			CustomerPhone:     s.CustomerPhone,
			Items:             make([]domain.SaleItem, 0, len(s.Items)),
		}
		for _, it := range s.Items {
			item := domain.SaleItem{
				MedicineID:   string(it.MedicineID),
				MedicineName: it.MedicineName,
				Quantity:     it.Quantity,
				BuyPrice:     it.BuyPrice,
				Price:        it.Price,
				Subtotal:     it.Subtotal,
			}
			if item.Subtotal == 0 {
				item.Subtotal = domain.LineTotal(item.Quantity, item.Price)
			}
			sale.Items = append(sale.Items, item)
		}
		if sale.Total == 0 {
			sale.Total = sale.ComputeTotal()
		}
		out = append(out, sale)
	}
	return out, nil
}

type legacyPurchaseItem struct {
	MedicineID   flexID  `json:"medicineId"`
	MedicineName string  `json:"medicineName"`
	Quantity     int     `json:"quantity"`
	BuyPrice     float64 `json:"buyPrice"`
	Subtotal     float64 `json:"subtotal"`
}

type legacyPurchase struct {
	ID                flexID               `json:"id"`
	SupplierName      string               `json:"supplierName"`
	InvoiceNumber     string               `json:"invoiceNumber"`
	Items             []legacyPurchaseItem `json:"items"`
	Total             float64              `json:"total"`
	Timestamp         json.RawMessage      `json:"timestamp"`
	BankTransactionID string               `json:"bankTransactionId"`
}

func parsePurchases(raw []byte, allowEpoch bool) ([]domain.Purchase, error) {
	var in []legacyPurchase
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]domain.Purchase, 0, len(in))
	for i, p := range in {
		if p.ID == "" {
			return nil, fmt.Errorf("purchase %d has no id", i)
		}
		ts, err := parseTimestamp(p.Timestamp, allowEpoch)
		if err != nil {
			return nil, fmt.Errorf("purchase %s: %w", p.ID, err)
		}
		purchase := domain.Purchase{
			ID:                string(p.ID),
			SupplierName:      p.SupplierName,
			InvoiceNumber:     p.InvoiceNumber,
			Total:             p.Total,
			Timestamp:         ts,
			BankTransactionID: p.BankTransactionID,
			Items:             make([]domain.PurchaseItem, 0, len(p.Items)),
		}
		for _, it := range p.Items {
			item := domain.PurchaseItem{
				MedicineID:   string(it.MedicineID),
				MedicineName: it.MedicineName,
				Quantity:     it.Quantity,
				BuyPrice:     it.BuyPrice,
				Subtotal:     it.Subtotal,
			}
			if item.Subtotal == 0 {
				item.Subtotal = domain.LineTotal(item.Quantity, item.BuyPrice)
			}
			purchase.Items = append(purchase.Items, item)
		}
		if purchase.Total == 0 {
			purchase.Total = purchase.ComputeTotal()
		}
		out = append(out, purchase)
	}
	return out, nil
}
