package main

import (
	"errors"
	"net/http"
	"strconv"

	"billsplit/pkg/allocation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// joinReceiptHandler binds a display name to the caller's claim session,
// issuing the session cookie on first contact. Names may collide across
// sessions; aggregation is by name, authorization by session.
func joinReceiptHandler(c *gin.Context) {
	receipt, err := findReceiptByPublicID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}
	var req struct {
		Name string `json:"name" binding:"required,min=1,max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sid, err := c.Cookie(sessionCookie)
	if err != nil || sid == "" {
		sid = uuid.NewString()
		c.SetCookie(sessionCookie, sid, int(receiptTTL.Seconds()), "/", "", false, true)
	}
	c.JSON(http.StatusOK, gin.H{"receipt_id": receipt.PublicID, "session_id": sid, "name": req.Name})
}

// finalizeClaimsHandler commits a whole claim batch or none of it. A
// rejection for insufficient quantity carries the availability snapshot for
// every requested item.
func finalizeClaimsHandler(c *gin.Context) {
	receipt, err := findReceiptByPublicID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}
	sessionID := c.GetString("session_id")
	var req struct {
		ClaimerName string                    `json:"claimer_name" binding:"required,min=1,max=64"`
		Claims      []allocation.ClaimRequest `json:"claims" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := alloc.FinalizeClaims(c.Request.Context(), receipt.ID, req.ClaimerName, sessionID, req.Claims)
	if err != nil {
		status, payload := claimErrorResponse(err)
		c.JSON(status, payload)
		return
	}
	claimsFinalized.Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"my_total_cents":     result.MyTotalCents,
		"participant_totals": result.ParticipantTotals,
	})
}

// subdivideItemHandler re-splits a line item into a different number of
// equal parts without changing anyone's committed share.
func subdivideItemHandler(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("itemID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	var req struct {
		TargetParts int64 `json:"target_parts" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := alloc.SubdivideItem(c.Request.Context(), uint(itemID), req.TargetParts)
	if err != nil {
		var invalid *allocation.InvalidSubdivisionError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusConflict, gin.H{"error": invalid.Error(), "valid_targets": invalid.ValidTargets})
		case errors.Is(err, allocation.ErrItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "line item not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "subdivide failed"})
		}
		return
	}
	subdivisions.Inc()
	c.JSON(http.StatusOK, gin.H{
		"quantity_numerator":   plan.QuantityNumerator,
		"quantity_denominator": plan.QuantityDenominator,
	})
}

// participantTotalsHandler returns the name-keyed totals for a receipt.
func participantTotalsHandler(c *gin.Context) {
	receipt, err := findReceiptByPublicID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}
	totals, err := alloc.ParticipantTotals(c.Request.Context(), receipt.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totals": totals})
}

// claimErrorResponse maps allocation errors onto HTTP statuses and bumps the
// rejection counters.
func claimErrorResponse(err error) (int, gin.H) {
	var insufficient *allocation.InsufficientQuantityError
	var invalidQty *allocation.InvalidQuantityError
	switch {
	case errors.As(err, &insufficient):
		claimsRejected.WithLabelValues("insufficient_quantity").Inc()
		return http.StatusConflict, gin.H{"error": "insufficient quantity", "availability": insufficient.Availability}
	case errors.As(err, &invalidQty):
		claimsRejected.WithLabelValues("invalid_quantity").Inc()
		return http.StatusBadRequest, gin.H{"error": invalidQty.Error()}
	case errors.Is(err, allocation.ErrReceiptNotFinalized):
		claimsRejected.WithLabelValues("not_finalized").Inc()
		return http.StatusConflict, gin.H{"error": "receipt is not finalized yet"}
	case errors.Is(err, allocation.ErrAlreadyFinalized):
		claimsRejected.WithLabelValues("already_finalized").Inc()
		return http.StatusConflict, gin.H{"error": "claims already finalized for this session"}
	case errors.Is(err, allocation.ErrReceiptExpired):
		claimsRejected.WithLabelValues("expired").Inc()
		return http.StatusGone, gin.H{"error": "receipt has expired"}
	case errors.Is(err, allocation.ErrItemNotFound):
		claimsRejected.WithLabelValues("bad_item").Inc()
		return http.StatusNotFound, gin.H{"error": "line item not found on this receipt"}
	case errors.Is(err, allocation.ErrReceiptNotFound):
		return http.StatusNotFound, gin.H{"error": "receipt not found"}
	default:
		claimsRejected.WithLabelValues("internal").Inc()
		return http.StatusInternalServerError, gin.H{"error": "claim failed; retry the whole request"}
	}
}
