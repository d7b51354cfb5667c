package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"pharmacore/internal/core"
	"pharmacore/pkg/domain"
)

// Sheet names in workbook order.
const (
	SheetSales     = "Sales"
	SheetPurchases = "Purchases"
	SheetInventory = "Inventory"
)

const timestampLayout = "2006-01-02 15:04:05"

type sheet struct {
	name    string
	headers []string
	widths  []float64
	rows    [][]any
}

// WriteWorkbook writes st as an XLSX workbook with a sheet per collection.
func WriteWorkbook(w io.Writer, st core.State) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9F2E6"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	sheets := []sheet{salesSheet(st.Sales), purchasesSheet(st.Purchases), inventorySheet(st.Inventory)}
	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return err
		}
		if err := writeSheet(f, sh, headerStyle); err != nil {
			return fmt.Errorf("sheet %s: %w", sh.name, err)
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sh sheet, headerStyle int) error {
	for i, h := range sh.headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sh.name, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.ColumnNumberToName(len(sh.headers))
	if err := f.SetCellStyle(sh.name, "A1", last+"1", headerStyle); err != nil {
		return err
	}
	for r, row := range sh.rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
			return err
		}
	}
	for i, width := range sh.widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sh.name, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func salesSheet(sales []domain.Sale) sheet {
	sh := sheet{
		name:    SheetSales,
		headers: []string{"ID", "Date", "Customer", "Phone", "Items", "Units", "Total", "Profit", "Bank Transaction"},
		widths:  []float64{38, 20, 22, 16, 48, 8, 12, 12, 20},
	}
	for _, s := range sales {
		names := make([]string, 0, len(s.Items))
		for _, it := range s.Items {
			names = append(names, fmt.Sprintf("%s x%d", it.MedicineName, it.Quantity))
		}
		sh.rows = append(sh.rows, []any{
			s.ID,
			s.Timestamp.Format(timestampLayout),
			s.CustomerName,
			s.CustomerPhone,
			strings.Join(names, ", "),
			s.Units(),
			s.Total,
			domain.ToMoney(s.Profit()),
			s.BankTransactionID,
		})
	}
	return sh
}

func purchasesSheet(purchases []domain.Purchase) sheet {
	sh := sheet{
		name:    SheetPurchases,
		headers: []string{"ID", "Date", "Supplier", "Invoice", "Items", "Units", "Total", "Bank Transaction"},
		widths:  []float64{38, 20, 24, 16, 48, 8, 12, 20},
	}
	for _, p := range purchases {
		names := make([]string, 0, len(p.Items))
		units := 0
		for _, it := range p.Items {
			names = append(names, fmt.Sprintf("%s x%d", it.MedicineName, it.Quantity))
			units += it.Quantity
		}
		sh.rows = append(sh.rows, []any{
			p.ID,
			p.Timestamp.Format(timestampLayout),
			p.SupplierName,
			p.InvoiceNumber,
			strings.Join(names, ", "),
			units,
			p.Total,
			p.BankTransactionID,
		})
	}
	return sh
}

func inventorySheet(meds []domain.Medicine) sheet {
	sh := sheet{
		name: SheetInventory,
		headers: []string{
			"ID", "Name", "Generic Name", "Barcode", "Category", "Form",
			"Stock", "Expiry", "Buy Price", "Price", "Dosage", "Location",
		},
		widths: []float64{38, 24, 24, 16, 14, 12, 8, 12, 10, 10, 12, 14},
	}
	for _, m := range meds {
		sh.rows = append(sh.rows, []any{
			m.ID, m.Name, m.GenericName, m.Barcode, string(m.Category), string(m.FormType),
			m.Stock, m.ExpiryDate, m.BuyPrice, m.Price, m.Dosage, m.Location,
		})
	}
	return sh
}
