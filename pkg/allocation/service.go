// Package allocation implements the concurrent fractional claim engine: many
// non-coordinating sessions claim portions of shared line items with a
// database-enforced guarantee that no portion is over-allocated and no claim
// is silently lost.
//
// Correctness is delegated entirely to Postgres row locking: there is no
// application-level mutex or lock table. Every mutating operation runs in one
// transaction that takes SELECT ... FOR UPDATE locks on its target line items
// in ascending id order (so overlapping batches cannot deadlock), re-reads
// claims under those locks, and commits all-or-nothing.
package allocation

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"billsplit/models"
	"billsplit/pkg/cache"
)

// Service is the claim allocation service. The cache handle is injected at
// construction; it is only ever touched outside the locked transaction.
type Service struct {
	db    *gorm.DB
	cache cache.Cache
	now   func() time.Time
}

// NewService wires the service to a database handle and a read cache.
func NewService(db *gorm.DB, c cache.Cache) *Service {
	return &Service{db: db, cache: c, now: time.Now}
}

// TotalsCacheKey is the cache key for a receipt's participant totals.
func TotalsCacheKey(receiptID uint) string {
	return fmt.Sprintf("receipt:%d:totals", receiptID)
}

// ViewCacheKey is the cache key for a receipt's rendered view.
func ViewCacheKey(receiptID uint) string {
	return fmt.Sprintf("receipt:%d:view", receiptID)
}

// invalidate drops the read-side caches that depend on a receipt's claims.
func (s *Service) invalidate(receiptID uint) {
	s.cache.Delete(TotalsCacheKey(receiptID))
	s.cache.Delete(ViewCacheKey(receiptID))
}

// loadFinalizedReceipt checks the preconditions shared by claim operations:
// the receipt exists, is finalized, and has not expired. No locks are taken.
func (s *Service) loadFinalizedReceipt(receiptID uint) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := s.db.First(&receipt, receiptID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("load receipt: %w", err)
	}
	if !receipt.IsFinalized {
		return nil, ErrReceiptNotFinalized
	}
	if receipt.Expired(s.now()) {
		return nil, ErrReceiptExpired
	}
	return &receipt, nil
}
