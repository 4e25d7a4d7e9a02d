package allocation

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"billsplit/models"
	"billsplit/pkg/fraction"
)

// Resplit is the outcome of planning a subdivision: the item's new quantity
// and the rescaled numerator for every existing claim.
type Resplit struct {
	QuantityNumerator   int64
	QuantityDenominator int64
	ClaimNumerators     map[uint]int64
}

// PlanResplit computes how to re-split an item into exactly targetParts equal
// parts without changing the real fraction any existing claim holds.
//
// With no claims the item is simply redefined as one whole unit in
// targetParts parts. With claims, the GCD of the item's numerator and
// denominator, every claim numerator, and the unclaimed remainder (when
// positive) gives the coarsest granularity every recorded integer claim is
// compatible with; targetParts must be a whole multiple of
// itemNum/gcd or every rescale cannot stay an integer.
func PlanResplit(itemNum, itemDen int64, claimNums map[uint]int64, targetParts int64) (*Resplit, error) {
	if targetParts < 1 {
		return nil, &InvalidSubdivisionError{TargetParts: targetParts, MinParts: 1, ValidTargets: []int64{1, 2, 3}}
	}
	if len(claimNums) == 0 {
		return &Resplit{QuantityNumerator: targetParts, QuantityDenominator: targetParts}, nil
	}

	var claimed int64
	gcdArgs := []int64{itemNum, itemDen}
	for _, n := range claimNums {
		gcdArgs = append(gcdArgs, n)
		claimed += n
	}
	if remainder := itemNum - claimed; remainder > 0 {
		gcdArgs = append(gcdArgs, remainder)
	}
	g := fraction.GCDAll(gcdArgs...)

	minParts := itemNum / g
	if targetParts%minParts != 0 {
		valid := make([]int64, 0, 5)
		for k := int64(1); k <= 5; k++ {
			valid = append(valid, k*minParts)
		}
		return nil, &InvalidSubdivisionError{TargetParts: targetParts, MinParts: minParts, ValidTargets: valid}
	}

	scale := targetParts / minParts
	out := &Resplit{
		QuantityNumerator:   targetParts,
		QuantityDenominator: (itemDen / g) * scale,
		ClaimNumerators:     make(map[uint]int64, len(claimNums)),
	}
	for id, n := range claimNums {
		out.ClaimNumerators[id] = (n / g) * scale
	}
	return out, nil
}

// SubdivideItem re-splits a line item into targetParts equal parts, rescaling
// every existing claim's numerator in lockstep so the shared-denominator
// invariant holds. The item row is locked FOR UPDATE before its claims are
// read; FinalizeClaims takes the same lock, so the two operations serialize
// on the item and claims can never desynchronize from the denominator.
func (s *Service) SubdivideItem(ctx context.Context, lineItemID uint, targetParts int64) (*Resplit, error) {
	var receiptID uint
	var plan *Resplit

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.LineItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, lineItemID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrItemNotFound
			}
			return fmt.Errorf("lock line item: %w", err)
		}
		receiptID = item.ReceiptID

		var claims []models.Claim
		if err := tx.Where("line_item_id = ?", item.ID).Order("id").Find(&claims).Error; err != nil {
			return fmt.Errorf("read claims: %w", err)
		}
		claimNums := make(map[uint]int64, len(claims))
		for _, c := range claims {
			claimNums[c.ID] = c.QuantityNumerator
		}

		var err error
		plan, err = PlanResplit(item.QuantityNumerator, item.QuantityDenominator, claimNums, targetParts)
		if err != nil {
			return err
		}

		if err := tx.Model(&item).Updates(map[string]any{
			"quantity_numerator":   plan.QuantityNumerator,
			"quantity_denominator": plan.QuantityDenominator,
		}).Error; err != nil {
			return fmt.Errorf("update line item: %w", err)
		}
		for id, n := range plan.ClaimNumerators {
			if err := tx.Model(&models.Claim{}).Where("id = ?", id).
				Update("quantity_numerator", n).Error; err != nil {
				return fmt.Errorf("rescale claim %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(receiptID)
	return plan, nil
}
