package models

import "time"

// LineItem is one claimable product line on a receipt.
//
// QuantityNumerator/QuantityDenominator express the number of whole items the
// line covers as an exact rational (3/1 = three burgers, 1/2 = half a shared
// platter). Claims against the item store a numerator only, implicitly in
// this item's current denominator, so any denominator change must rescale
// every claim in the same transaction.
type LineItem struct {
	ID                  uint `gorm:"primaryKey"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ReceiptID           uint   `gorm:"index;not null"`
	Name                string `gorm:"size:255;not null"`
	QuantityNumerator   int64  `gorm:"not null;check:quantity_numerator >= 0"`
	QuantityDenominator int64  `gorm:"not null;default:1;check:quantity_denominator >= 1"`
	UnitPriceCents      int64  `gorm:"not null"`
	TotalPriceCents     int64  `gorm:"not null"`
	ProratedTaxCents    int64  `gorm:"not null"`
	ProratedTipCents    int64  `gorm:"not null"`
	Claims              []Claim `gorm:"foreignKey:LineItemID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// CostCents is the full amount the item is worth to whoever claims all of it:
// price plus the tax and tip prorated onto this line.
func (li *LineItem) CostCents() int64 {
	return li.TotalPriceCents + li.ProratedTaxCents + li.ProratedTipCents
}
