package core

import "pharmacore/pkg/domain"

// stockLine is the quantity a transaction line moves for one medicine.
type stockLine struct {
	medicineID string
	quantity   int
	buyPrice   float64
	setPrice   bool
}

func saleLines(items []domain.SaleItem) []stockLine {
	out := make([]stockLine, 0, len(items))
	for _, it := range items {
		out = append(out, stockLine{medicineID: it.MedicineID, quantity: it.Quantity})
	}
	return out
}

func purchaseLines(items []domain.PurchaseItem) []stockLine {
	out := make([]stockLine, 0, len(items))
	for _, it := range items {
		out = append(out, stockLine{medicineID: it.MedicineID, quantity: it.Quantity, buyPrice: it.BuyPrice, setPrice: true})
	}
	return out
}

// applyStock returns a new inventory with every line applied in order.
// sign is -1 for outflows and +1 for inflows; results are clamped at zero.
// Lines whose medicine is absent are skipped and reported.
func applyStock(inv []domain.Medicine, lines []stockLine, sign int, updatePrice bool) ([]domain.Medicine, []error) {
	next := make([]domain.Medicine, len(inv))
	copy(next, inv)
	index := make(map[string]int, len(next))
	for i, m := range next {
		index[m.ID] = i
	}
	var missing []error
	for _, line := range lines {
		i, ok := index[line.medicineID]
		if !ok {
			missing = append(missing, &domain.ReferenceNotFoundError{MedicineID: line.medicineID})
			continue
		}
		stock := next[i].Stock + sign*line.quantity
		if stock < 0 {
			stock = 0
		}
		next[i].Stock = stock
		if updatePrice && line.setPrice {
			next[i].BuyPrice = line.buyPrice
		}
	}
	return next, missing
}
