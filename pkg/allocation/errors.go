package allocation

import (
	"errors"
	"fmt"
	"strings"
)

// Precondition errors: reported before any lock is taken, nothing mutated.
var (
	ErrReceiptNotFound     = errors.New("receipt not found")
	ErrReceiptNotFinalized = errors.New("receipt is not finalized")
	ErrReceiptExpired      = errors.New("receipt has expired")
	ErrAlreadyFinalized    = errors.New("session already has finalized claims on this receipt")
	ErrItemNotFound        = errors.New("line item not found on this receipt")
)

// Availability is the per-item snapshot computed under lock. It is recorded
// for every requested item regardless of outcome so a caller can render
// "requested 2, only 1 available" for the whole batch, not just the first
// failure.
type Availability struct {
	ItemID    uint   `json:"item_id"`
	Name      string `json:"name"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

// InsufficientQuantityError rejects a whole claim batch atomically. It always
// carries the full availability snapshot for every requested item.
type InsufficientQuantityError struct {
	Availability []Availability
}

func (e *InsufficientQuantityError) Error() string {
	var short []string
	for _, a := range e.Availability {
		if a.Requested > a.Available {
			short = append(short, fmt.Sprintf("%s: requested %d, available %d", a.Name, a.Requested, a.Available))
		}
	}
	return "insufficient quantity: " + strings.Join(short, "; ")
}

// InvalidQuantityError rejects a request with a negative numerator or one
// whose fraction cannot be expressed in the item's current denominator
// (a stale view after a concurrent subdivision).
type InvalidQuantityError struct {
	ItemID               uint
	RequestedNumerator   int64
	RequestedDenominator int64
	ItemDenominator      int64
}

func (e *InvalidQuantityError) Error() string {
	if e.RequestedNumerator < 0 {
		return fmt.Sprintf("item %d: negative quantity %d", e.ItemID, e.RequestedNumerator)
	}
	return fmt.Sprintf("item %d: quantity %d/%d is not expressible in the item's current denominator %d",
		e.ItemID, e.RequestedNumerator, e.RequestedDenominator, e.ItemDenominator)
}

// InvalidSubdivisionError rejects a target part count that is not a whole
// multiple of the coarsest granularity compatible with existing claims. It
// lists the nearest valid targets so the caller can offer alternatives.
type InvalidSubdivisionError struct {
	TargetParts  int64
	MinParts     int64
	ValidTargets []int64
}

func (e *InvalidSubdivisionError) Error() string {
	parts := make([]string, len(e.ValidTargets))
	for i, v := range e.ValidTargets {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("cannot split into %d parts; valid part counts are multiples of %d (e.g. %s)",
		e.TargetParts, e.MinParts, strings.Join(parts, ", "))
}
