package core

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmacore/pkg/domain"
)

// Period selects the sales window used by ComputeStats.
type Period string

// Supported periods.
const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

const (
	lowStockThreshold = 10
	expiringWindow    = 90 * 24 * time.Hour
)

// ParsePeriod validates raw; an empty string selects PeriodDay.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", invalidf("unknown period %q", raw)
	}
}

// Start returns the beginning of the window ending at now. Day starts at
// local midnight; week and month reach back 7 and 30 days.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, 0, -30)
	default:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
}

// Stats summarizes inventory value and sales activity.
type Stats struct {
	Period             Period    `json:"period"`
	Since              time.Time `json:"since"`
	TotalStock         int       `json:"totalStock"`
	InventorySellValue float64   `json:"inventorySellValue"`
	InventoryBuyValue  float64   `json:"inventoryBuyValue"`
	LowStockCount      int       `json:"lowStockCount"`
	ExpiringSoonCount  int       `json:"expiringSoonCount"`
	SalesCount         int       `json:"salesCount"`
	Revenue            float64   `json:"revenue"`
	ItemsSold          int       `json:"itemsSold"`
	Profit             float64   `json:"profit"`
}

// ComputeStats derives dashboard figures from st. Medicines with an
// unparseable expiry date are not counted as expiring.
func ComputeStats(st State, period Period, now time.Time) Stats {
	out := Stats{Period: period, Since: period.Start(now)}
	sell, buy := decimal.Zero, decimal.Zero
	horizon := now.Add(expiringWindow)
	for _, m := range st.Inventory {
		out.TotalStock += m.Stock
		qty := decimal.NewFromInt(int64(m.Stock))
		sell = sell.Add(qty.Mul(domain.Amount(m.Price)))
		buy = buy.Add(qty.Mul(domain.Amount(m.BuyPrice)))
		if m.Stock < lowStockThreshold {
			out.LowStockCount++
		}
		if exp, err := m.Expiry(); err == nil && exp.Before(horizon) {
			out.ExpiringSoonCount++
		}
	}
	out.InventorySellValue = domain.ToMoney(sell)
	out.InventoryBuyValue = domain.ToMoney(buy)

	revenue, profit := decimal.Zero, decimal.Zero
	for _, sale := range st.Sales {
		if sale.Timestamp.Before(out.Since) {
			continue
		}
		out.SalesCount++
		revenue = revenue.Add(domain.Amount(sale.Total))
		profit = profit.Add(sale.Profit())
		out.ItemsSold += sale.Units()
	}
	out.Revenue = domain.ToMoney(revenue)
	out.Profit = domain.ToMoney(profit)
	return out
}
