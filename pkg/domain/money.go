package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places kept for currency values.
const MoneyPlaces = 2

// Amount converts a stored float price into an exact decimal.
func Amount(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// ToMoney rounds d to currency precision and converts it back for storage.
func ToMoney(d decimal.Decimal) float64 {
	return d.Round(MoneyPlaces).InexactFloat64()
}

// LineTotal returns quantity x unit price at currency precision.
func LineTotal(quantity int, unit float64) float64 {
	return ToMoney(Amount(unit).Mul(decimal.NewFromInt(int64(quantity))))
}

// NewSaleItem captures the medicine's current name and prices for a sale line.
func NewSaleItem(m Medicine, quantity int) SaleItem {
	return SaleItem{
		MedicineID:   m.ID,
		MedicineName: m.Name,
		Quantity:     quantity,
		BuyPrice:     m.BuyPrice,
		Price:        m.Price,
		Subtotal:     LineTotal(quantity, m.Price),
	}
}

// NewPurchaseItem captures a restock line at the supplier's buy price.
func NewPurchaseItem(m Medicine, quantity int, buyPrice float64) PurchaseItem {
	return PurchaseItem{
		MedicineID:   m.ID,
		MedicineName: m.Name,
		Quantity:     quantity,
		BuyPrice:     buyPrice,
		Subtotal:     LineTotal(quantity, buyPrice),
	}
}

// ComputeTotal sums the item subtotals.
func (s Sale) ComputeTotal() float64 {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(Amount(item.Subtotal))
	}
	return ToMoney(total)
}

// Profit returns sum((price - buyPrice) x quantity) over the sale items.
func (s Sale) Profit() decimal.Decimal {
	profit := decimal.Zero
	for _, item := range s.Items {
		margin := Amount(item.Price).Sub(Amount(item.BuyPrice))
		profit = profit.Add(margin.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return profit
}

// Units returns the number of units sold.
func (s Sale) Units() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

// ComputeTotal sums the item subtotals.
func (p Purchase) ComputeTotal() float64 {
	total := decimal.Zero
	for _, item := range p.Items {
		total = total.Add(Amount(item.Subtotal))
	}
	return ToMoney(total)
}
