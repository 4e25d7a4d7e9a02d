package allocation

import (
	"context"
	"fmt"

	"billsplit/models"
	"billsplit/pkg/fraction"
)

// ParticipantTotals maps each claimant name to the total amount owed across
// all line items of a receipt.
//
// Grouping is by display name, not session id: the product question is "how
// much does person X owe", and one session may have adopted several names.
// The result is cached; claim writes and subdivisions invalidate it, so a
// cached value is only ever stale during the invalidation window.
func (s *Service) ParticipantTotals(ctx context.Context, receiptID uint) (map[string]int64, error) {
	if v, ok := s.cache.Get(TotalsCacheKey(receiptID)); ok {
		if totals, ok := v.(map[string]int64); ok {
			return totals, nil
		}
	}

	var items []models.LineItem
	if err := s.db.WithContext(ctx).
		Where("receipt_id = ?", receiptID).
		Preload("Claims").
		Order("id").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	// Sum exact rational shares per name; round to cents once per person at
	// the end, never per claim.
	owed := make(map[string]fraction.Frac)
	for i := range items {
		item := &items[i]
		if item.QuantityNumerator == 0 {
			continue
		}
		cost := item.CostCents()
		for _, c := range item.Claims {
			share := fraction.New(c.QuantityNumerator, item.QuantityNumerator).MulInt(cost)
			owed[c.ClaimerName] = owed[c.ClaimerName].Add(share)
		}
	}

	totals := make(map[string]int64, len(owed))
	for name, f := range owed {
		totals[name] = f.Cents()
	}
	s.cache.Set(TotalsCacheKey(receiptID), totals)
	return totals, nil
}
