// Package export renders point-in-time copies of the application state as
// a JSON backup or an XLSX workbook and stores them as blobs.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"pharmacore/internal/core"
	"pharmacore/pkg/domain"
)

// Backup is the JSON backup document. Inventory is not part of it.
type Backup struct {
	Sales      []domain.Sale     `json:"sales"`
	Purchases  []domain.Purchase `json:"purchases"`
	Settings   domain.Settings   `json:"settings"`
	ExportDate string            `json:"exportDate"`
}

const exportDateLayout = "2006-01-02T15:04:05.000Z07:00"

// NewBackup captures st at now.
func NewBackup(st core.State, now time.Time) Backup {
	sales := st.Sales
	if sales == nil {
		sales = []domain.Sale{}
	}
	purchases := st.Purchases
	if purchases == nil {
		purchases = []domain.Purchase{}
	}
	return Backup{
		Sales:      sales,
		Purchases:  purchases,
		Settings:   st.Settings,
		ExportDate: now.UTC().Format(exportDateLayout),
	}
}

// BackupFileName is PharmaSmart_Backup_<UTC date>.json.
func BackupFileName(now time.Time) string {
	return fmt.Sprintf("PharmaSmart_Backup_%s.json", now.UTC().Format(domain.ExpiryLayout))
}

// WorkbookFileName is PharmaSmart_Export_<UTC date>.xlsx.
func WorkbookFileName(now time.Time) string {
	return fmt.Sprintf("PharmaSmart_Export_%s.xlsx", now.UTC().Format(domain.ExpiryLayout))
}

// Encode writes b as JSON indented by two spaces.
func (b Backup) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}
