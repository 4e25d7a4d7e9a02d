package allocation

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"billsplit/models"
	"billsplit/pkg/fraction"
)

// ClaimRequest is one requested portion of one line item. The denominator is
// the one the client saw when it rendered the item; if the item has since
// been subdivided the request is rescaled into the current denominator when
// that divides evenly and rejected otherwise.
type ClaimRequest struct {
	LineItemID          uint  `json:"line_item_id"`
	QuantityNumerator   int64 `json:"quantity_numerator"`
	QuantityDenominator int64 `json:"quantity_denominator"`
}

// FinalizeResult reports a committed claim batch: what the caller owes and
// the fresh name-keyed totals for the whole receipt.
type FinalizeResult struct {
	MyTotalCents      int64
	ParticipantTotals map[string]int64
}

// FinalizeClaims atomically commits all requested claims or none of them.
//
// Locks are taken on exactly the referenced line items, in ascending id
// order, and availability is recomputed from a re-read of the claims under
// those locks; pre-lock reads are never trusted. Any shortfall aborts the
// transaction and surfaces the complete availability snapshot.
func (s *Service) FinalizeClaims(ctx context.Context, receiptID uint, claimerName, sessionID string, reqs []ClaimRequest) (*FinalizeResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no claims requested")
	}
	if _, err := s.loadFinalizedReceipt(receiptID); err != nil {
		return nil, err
	}
	already, err := s.sessionHasFinalizedClaims(ctx, receiptID, sessionID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, ErrAlreadyFinalized
	}

	ids := distinctItemIDs(reqs)
	var myTotal int64

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Ascending id order prevents circular waits between two batches
		// that target overlapping item sets in different orders.
		var items []models.LineItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ? AND receipt_id = ?", ids, receiptID).
			Order("id").
			Find(&items).Error; err != nil {
			return fmt.Errorf("lock line items: %w", err)
		}
		if len(items) != len(ids) {
			return ErrItemNotFound
		}

		// Re-check the session gate now that the items are locked; the
		// pre-lock check can race with a concurrent batch from the same
		// session.
		already, err := s.sessionHasFinalizedClaimsTx(tx, receiptID, sessionID)
		if err != nil {
			return err
		}
		if already {
			return ErrAlreadyFinalized
		}

		var claims []models.Claim
		if err := tx.Where("line_item_id IN ?", ids).Find(&claims).Error; err != nil {
			return fmt.Errorf("read claims: %w", err)
		}
		claimedByOthers := make(map[uint]int64)
		for _, c := range claims {
			if c.SessionID != sessionID {
				claimedByOthers[c.LineItemID] += c.QuantityNumerator
			}
		}

		itemsByID := make(map[uint]*models.LineItem, len(items))
		for i := range items {
			itemsByID[items[i].ID] = &items[i]
		}

		// Rescale every request into its item's current denominator and
		// aggregate per item: a batch may mention an item more than once.
		requested := make(map[uint]int64)
		for _, r := range reqs {
			item := itemsByID[r.LineItemID]
			n, err := rescaleRequest(item, r)
			if err != nil {
				return err
			}
			requested[item.ID] += n
		}

		snapshot := make([]Availability, 0, len(items))
		exceeded := false
		for i := range items {
			item := &items[i]
			available := item.QuantityNumerator - claimedByOthers[item.ID]
			snapshot = append(snapshot, Availability{
				ItemID:    item.ID,
				Name:      item.Name,
				Requested: requested[item.ID],
				Available: available,
			})
			if requested[item.ID] > available {
				exceeded = true
			}
		}
		if exceeded {
			return &InsufficientQuantityError{Availability: snapshot}
		}

		// Unfinalized claims are leftovers from the pre-finalization
		// protocol; this session's are replaced wholesale.
		var receiptItemIDs []uint
		if err := tx.Model(&models.LineItem{}).
			Where("receipt_id = ?", receiptID).
			Pluck("id", &receiptItemIDs).Error; err != nil {
			return fmt.Errorf("list receipt items: %w", err)
		}
		if err := tx.Where("session_id = ? AND is_finalized = ? AND line_item_id IN ?", sessionID, false, receiptItemIDs).
			Delete(&models.Claim{}).Error; err != nil {
			return fmt.Errorf("delete legacy claims: %w", err)
		}

		now := s.now()
		newClaims := make([]models.Claim, 0, len(items))
		owed := fraction.Zero()
		for i := range items {
			item := &items[i]
			n := requested[item.ID]
			if n == 0 {
				continue
			}
			newClaims = append(newClaims, models.Claim{
				LineItemID:        item.ID,
				ClaimerName:       claimerName,
				QuantityNumerator: n,
				SessionID:         sessionID,
				IsFinalized:       true,
				FinalizedAt:       &now,
			})
			share := fraction.New(n, item.QuantityNumerator).MulInt(item.CostCents())
			owed = owed.Add(share)
		}
		if len(newClaims) > 0 {
			if err := tx.Create(&newClaims).Error; err != nil {
				return fmt.Errorf("insert claims: %w", err)
			}
		}
		myTotal = owed.Cents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(receiptID)
	totals, err := s.ParticipantTotals(ctx, receiptID)
	if err != nil {
		return nil, fmt.Errorf("recompute participant totals: %w", err)
	}
	return &FinalizeResult{MyTotalCents: myTotal, ParticipantTotals: totals}, nil
}

// rescaleRequest converts a requested fraction into the item's current
// denominator. With matching denominators this is the identity; otherwise the
// real quantity requested (num/den whole items) must land on an integer
// numerator over the item's denominator.
func rescaleRequest(item *models.LineItem, r ClaimRequest) (int64, error) {
	if r.QuantityNumerator < 0 || r.QuantityDenominator < 1 {
		return 0, &InvalidQuantityError{
			ItemID:               item.ID,
			RequestedNumerator:   r.QuantityNumerator,
			RequestedDenominator: r.QuantityDenominator,
			ItemDenominator:      item.QuantityDenominator,
		}
	}
	if r.QuantityDenominator == item.QuantityDenominator {
		return r.QuantityNumerator, nil
	}
	scaled := r.QuantityNumerator * item.QuantityDenominator
	if scaled%r.QuantityDenominator != 0 {
		return 0, &InvalidQuantityError{
			ItemID:               item.ID,
			RequestedNumerator:   r.QuantityNumerator,
			RequestedDenominator: r.QuantityDenominator,
			ItemDenominator:      item.QuantityDenominator,
		}
	}
	return scaled / r.QuantityDenominator, nil
}

func distinctItemIDs(reqs []ClaimRequest) []uint {
	seen := make(map[uint]bool, len(reqs))
	ids := make([]uint, 0, len(reqs))
	for _, r := range reqs {
		if !seen[r.LineItemID] {
			seen[r.LineItemID] = true
			ids = append(ids, r.LineItemID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Service) sessionHasFinalizedClaims(ctx context.Context, receiptID uint, sessionID string) (bool, error) {
	return s.sessionHasFinalizedClaimsTx(s.db.WithContext(ctx), receiptID, sessionID)
}

func (s *Service) sessionHasFinalizedClaimsTx(tx *gorm.DB, receiptID uint, sessionID string) (bool, error) {
	var n int64
	err := tx.Model(&models.Claim{}).
		Joins("JOIN line_items ON line_items.id = claims.line_item_id").
		Where("line_items.receipt_id = ? AND claims.session_id = ? AND claims.is_finalized = ?", receiptID, sessionID, true).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check finalized claims: %w", err)
	}
	return n > 0, nil
}
