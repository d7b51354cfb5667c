package legacy

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pharmacore/pkg/domain"
)

//go:embed catalog.csv
var catalogCSV []byte

var catalogColumns = []string{
	"id", "name", "genericName", "barcode", "category", "formType",
	"stock", "expiryDate", "buyPrice", "price", "dosage", "location",
}

// Catalog returns the built-in starter inventory used when no legacy
// inventory exists at all.
func Catalog() ([]domain.Medicine, error) {
	return parseCatalog(bytes.NewReader(catalogCSV))
}

func parseCatalog(r io.Reader) ([]domain.Medicine, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range catalogColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("catalog missing column %s", col)
		}
	}

	var out []domain.Medicine
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog line %d: %w", line, err)
		}
		field := func(name string) string { return strings.TrimSpace(record[idx[name]]) }
		stock, err := strconv.Atoi(field("stock"))
		if err != nil {
			return nil, fmt.Errorf("catalog line %d stock: %w", line, err)
		}
		buy, err := strconv.ParseFloat(field("buyPrice"), 64)
		if err != nil {
			return nil, fmt.Errorf("catalog line %d buyPrice: %w", line, err)
		}
		price, err := strconv.ParseFloat(field("price"), 64)
		if err != nil {
			return nil, fmt.Errorf("catalog line %d price: %w", line, err)
		}
		out = append(out, domain.Medicine{
			ID:          field("id"),
			Name:        field("name"),
			GenericName: field("genericName"),
			Barcode:     field("barcode"),
			Category:    domain.Category(field("category")),
			FormType:    domain.FormType(field("formType")),
			Stock:       stock,
			ExpiryDate:  field("expiryDate"),
			BuyPrice:    buy,
			Price:       price,
			Dosage:      field("dosage"),
			Location:    field("location"),
		})
	}
	return out, nil
}
