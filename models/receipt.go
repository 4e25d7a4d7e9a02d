package models

import "time"

// Receipt is one uploaded restaurant bill. Line items hang off it and are
// cascade-deleted with it. IsFinalized is the gate the claim engine checks:
// claims may only be recorded against a finalized receipt, and item shapes
// are frozen once the flag is set (subdivision being the one sanctioned
// post-finalization mutation).
type Receipt struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	// PublicID is the UUID exposed in URLs so internal ids stay unguessable.
	PublicID string `gorm:"size:36;uniqueIndex;not null"`
	OwnerID  uint   `gorm:"index;not null"`
	Owner    User   `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Label    string `gorm:"size:255"`
	// All money amounts are stored in the smallest currency unit (cents).
	SubtotalCents int64 `gorm:"not null"`
	TaxCents      int64 `gorm:"not null"`
	TipCents      int64 `gorm:"not null"`
	TotalCents    int64 `gorm:"not null"`
	IsFinalized   bool  `gorm:"default:false;index"`
	FinalizedAt   *time.Time
	ExpiresAt     time.Time  `gorm:"index;not null"`
	Items         []LineItem `gorm:"foreignKey:ReceiptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Expired reports whether the receipt is past its expiry timestamp.
func (r *Receipt) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
