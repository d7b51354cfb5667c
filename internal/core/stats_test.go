package core

import (
	"testing"
	"time"

	"pharmacore/pkg/domain"
)

func TestComputeStats(t *testing.T) {
	now := time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)
	st := State{
		Inventory: []domain.Medicine{
			{ID: "1", Stock: 5, Price: 10, BuyPrice: 6.5, ExpiryDate: "2024-07-01"},
			{ID: "2", Stock: 20, Price: 2.5, BuyPrice: 1, ExpiryDate: "2026-01-01"},
			{ID: "3", Stock: 0, Price: 1, BuyPrice: 1, ExpiryDate: "2024-01-01"},
			{ID: "4", Stock: 12, Price: 1, BuyPrice: 1, ExpiryDate: "not a date"},
		},
		Sales: []domain.Sale{
			{ID: "today", Total: 20, Timestamp: now.Add(-2 * time.Hour), Items: []domain.SaleItem{{Quantity: 2, Price: 10, BuyPrice: 6.5}}},
			{ID: "week", Total: 5, Timestamp: now.AddDate(0, 0, -3), Items: []domain.SaleItem{{Quantity: 2, Price: 2.5, BuyPrice: 1}}},
			{ID: "month", Total: 1, Timestamp: now.AddDate(0, 0, -20), Items: []domain.SaleItem{{Quantity: 1, Price: 1, BuyPrice: 0.5}}},
			{ID: "old", Total: 100, Timestamp: now.AddDate(0, 0, -60)},
		},
	}

	day := ComputeStats(st, PeriodDay, now)
	if day.TotalStock != 37 || day.InventorySellValue != 112 || day.InventoryBuyValue != 64.5 {
		t.Fatalf("unexpected inventory totals %+v", day)
	}
	if day.LowStockCount != 2 || day.ExpiringSoonCount != 2 {
		t.Fatalf("unexpected counts low=%d expiring=%d", day.LowStockCount, day.ExpiringSoonCount)
	}
	if day.SalesCount != 1 || day.Revenue != 20 || day.ItemsSold != 2 || day.Profit != 7 {
		t.Fatalf("unexpected day stats %+v", day)
	}
	if !day.Since.Equal(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day should start at midnight, got %v", day.Since)
	}

	week := ComputeStats(st, PeriodWeek, now)
	if week.SalesCount != 2 || week.Revenue != 25 || week.Profit != 10 {
		t.Fatalf("unexpected week stats %+v", week)
	}
	month := ComputeStats(st, PeriodMonth, now)
	if month.SalesCount != 3 || month.Revenue != 26 || month.Profit != 10.5 || month.ItemsSold != 5 {
		t.Fatalf("unexpected month stats %+v", month)
	}
}

func TestParsePeriod(t *testing.T) {
	for raw, want := range map[string]Period{"": PeriodDay, "day": PeriodDay, "week": PeriodWeek, "month": PeriodMonth} {
		got, err := ParsePeriod(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePeriod(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParsePeriod("year"); err == nil {
		t.Fatalf("expected error")
	}
}
