// Package domain defines the persistent entities, value types and storage
// contracts shared by the pharmacore engine and its adapters.
package domain

import (
	"fmt"
	"time"
)

// Category classifies a medicine for shelving and reporting.
type Category string

// Supported medicine categories.
const (
	CategoryAntibiotic  Category = "Antibiotic"
	CategoryAnalgesic   Category = "Analgesic"
	CategoryAntiviral   Category = "Antiviral"
	CategorySupplements Category = "Supplements"
	CategoryCardiology  Category = "Cardiology"
	CategoryOther       Category = "Other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAntibiotic, CategoryAnalgesic, CategoryAntiviral,
		CategorySupplements, CategoryCardiology, CategoryOther:
		return true
	}
	return false
}

// FormType describes the dispensing form of a medicine.
type FormType string

// Supported dispensing forms.
const (
	FormTablet    FormType = "Tablet"
	FormSyrup     FormType = "Syrup"
	FormAmpoule   FormType = "Ampoule"
	FormDrops     FormType = "Drops"
	FormInjection FormType = "Injection"
	FormPieces    FormType = "Pieces"
	FormBox       FormType = "Box"
)

// Valid reports whether f is one of the known forms.
func (f FormType) Valid() bool {
	switch f {
	case FormTablet, FormSyrup, FormAmpoule, FormDrops, FormInjection, FormPieces, FormBox:
		return true
	}
	return false
}

// ExpiryLayout is the calendar date layout used for medicine expiry dates.
const ExpiryLayout = "2006-01-02"

// Medicine is a stock-keeping unit. Stock is never negative.
type Medicine struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	GenericName string   `json:"genericName"`
	Barcode     string   `json:"barcode"`
	Category    Category `json:"category"`
	FormType    FormType `json:"formType"`
	Stock       int      `json:"stock"`
	ExpiryDate  string   `json:"expiryDate"`
	BuyPrice    float64  `json:"buyPrice"`
	Price       float64  `json:"price"`
	Dosage      string   `json:"dosage"`
	Location    string   `json:"location"`
}

// Expiry parses ExpiryDate. A zero time and an error are returned when the
// date is empty or malformed.
func (m Medicine) Expiry() (time.Time, error) {
	if m.ExpiryDate == "" {
		return time.Time{}, fmt.Errorf("medicine %s has no expiry date", m.ID)
	}
	t, err := time.Parse(ExpiryLayout, m.ExpiryDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("medicine %s expiry: %w", m.ID, err)
	}
	return t, nil
}

// SaleItem is a denormalized line of a sale. Name and prices are captured at
// checkout and never follow later edits of the medicine.
type SaleItem struct {
	MedicineID   string  `json:"medicineId"`
	MedicineName string  `json:"medicineName"`
	Quantity     int     `json:"quantity"`
	BuyPrice     float64 `json:"buyPrice"`
	Price        float64 `json:"price"`
	Subtotal     float64 `json:"subtotal"`
}

// Sale is one completed retail transaction.
type Sale struct {
	ID                string     `json:"id"`
	Items             []SaleItem `json:"items"`
	Total             float64    `json:"total"`
	Timestamp         time.Time  `json:"timestamp"`
	BankTransactionID string     `json:"bankTransactionId,omitempty"`
	CustomerName      string     `json:"customerName,omitempty"`
	CustomerPhone     string     `json:"customerPhone,omitempty"`
}

// PurchaseItem is a denormalized line of a wholesale purchase.
type PurchaseItem struct {
	MedicineID   string  `json:"medicineId"`
	MedicineName string  `json:"medicineName"`
	Quantity     int     `json:"quantity"`
	BuyPrice     float64 `json:"buyPrice"`
	Subtotal     float64 `json:"subtotal"`
}

// Purchase is one wholesale restock transaction.
type Purchase struct {
	ID                string         `json:"id"`
	SupplierName      string         `json:"supplierName"`
	InvoiceNumber     string         `json:"invoiceNumber"`
	Items             []PurchaseItem `json:"items"`
	Total             float64        `json:"total"`
	Timestamp         time.Time      `json:"timestamp"`
	BankTransactionID string         `json:"bankTransactionId,omitempty"`
}

// Theme selects the display palette.
type Theme string

// Supported themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// FontSize selects the display font scale.
type FontSize string

// Supported font sizes.
const (
	FontSmall  FontSize = "small"
	FontMedium FontSize = "medium"
	FontLarge  FontSize = "large"
)

// Settings is the singleton application configuration.
type Settings struct {
	PharmacyName string   `json:"pharmacyName"`
	Theme        Theme    `json:"theme"`
	FontSize     FontSize `json:"fontSize"`
}

// DefaultSettings returns the settings used when nothing has been stored yet.
func DefaultSettings() Settings {
	return Settings{PharmacyName: "PharmaSmart AI", Theme: ThemeLight, FontSize: FontMedium}
}

// Validate checks enum fields and the pharmacy name.
func (s Settings) Validate() error {
	if s.PharmacyName == "" {
		return fmt.Errorf("pharmacy name required")
	}
	switch s.Theme {
	case ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("unknown theme %q", s.Theme)
	}
	switch s.FontSize {
	case FontSmall, FontMedium, FontLarge:
	default:
		return fmt.Errorf("unknown font size %q", s.FontSize)
	}
	return nil
}
