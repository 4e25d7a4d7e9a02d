package models

import "time"

// Claim is one claimant's portion of one line item.
//
// QuantityNumerator is expressed in the parent item's denominator at the time
// of the claim; a claim never stores its own denominator. ClaimerName is the
// aggregation identity ("how much does person X owe"); SessionID is the
// authorization identity, since one browser session can be forced to adopt
// several display names. Finalized claims are immutable: no edit, no undo.
// Unfinalized rows are legacy claims from the pre-finalization protocol and
// may still be deleted and replaced.
type Claim struct {
	ID                uint `gorm:"primaryKey"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LineItemID        uint   `gorm:"index;not null"`
	ClaimerName       string `gorm:"size:64;index;not null"`
	QuantityNumerator int64  `gorm:"not null;check:quantity_numerator >= 0"`
	SessionID         string `gorm:"size:36;index;not null"`
	IsFinalized       bool   `gorm:"default:false;index"`
	FinalizedAt       *time.Time
}
