package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"billsplit/models"
	"billsplit/pkg/allocation"
	"billsplit/pkg/receipttext"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var errNoItems = errors.New("no line items could be parsed from the receipt text")

// receiptTTL is how long a freshly created receipt stays claimable.
var receiptTTL = 72 * time.Hour

func setupRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)

	owner := r.Group("")
	owner.Use(jwtAuthMiddleware())
	owner.POST("/receipts", createReceiptHandler)
	owner.PUT("/receipts/:id/items", setReceiptItemsHandler)
	owner.POST("/receipts/:id/finalize", finalizeReceiptHandler)

	r.GET("/receipts/:id", getReceiptHandler)
	r.POST("/receipts/:id/join", joinReceiptHandler)
	r.GET("/receipts/:id/totals", participantTotalsHandler)

	claimer := r.Group("")
	claimer.Use(sessionRequired(), claimRateLimit())
	claimer.POST("/receipts/:id/claims", finalizeClaimsHandler)
	claimer.POST("/items/:itemID/subdivide", subdivideItemHandler)
}

// getUserFromContext fetches the authenticated owner set by jwtAuthMiddleware.
func getUserFromContext(c *gin.Context) (*models.User, bool) {
	unameVal, _ := c.Get("username")
	if unameVal == nil {
		return nil, false
	}
	uname := unameVal.(string)
	var user models.User
	if err := db.Where("username = ?", uname).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

// findReceiptByPublicID resolves the UUID used in URLs.
func findReceiptByPublicID(publicID string) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := db.Where("public_id = ?", publicID).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := registerUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := authenticateUser(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its
// hash with expiry and returns the raw token string.
func createAndStoreRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates
// the refresh token.
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate: revoke existing and create a new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout).
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

// itemInput is one explicit line item in a create/replace request.
type itemInput struct {
	Name                string `json:"name" binding:"required"`
	QuantityNumerator   int64  `json:"quantity_numerator" binding:"required,min=1"`
	QuantityDenominator int64  `json:"quantity_denominator" binding:"min=0"`
	TotalPriceCents     int64  `json:"total_price_cents" binding:"required,min=1"`
}

// createReceiptHandler creates a receipt from either explicit items or raw
// receipt text run through the parser, prorating tax and tip onto the items.
func createReceiptHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Label      string      `json:"label"`
		Text       string      `json:"text"`
		Items      []itemInput `json:"items"`
		TaxCents   int64       `json:"tax_cents" binding:"min=0"`
		TipCents   int64       `json:"tip_cents" binding:"min=0"`
		TotalCents int64       `json:"total_cents" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, subtotal, err := buildLineItems(req.Items, req.Text, req.TotalCents, req.TaxCents, req.TipCents)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt := models.Receipt{
		PublicID:      uuid.NewString(),
		OwnerID:       user.ID,
		Label:         req.Label,
		SubtotalCents: subtotal,
		TaxCents:      req.TaxCents,
		TipCents:      req.TipCents,
		TotalCents:    subtotal + req.TaxCents + req.TipCents,
		ExpiresAt:     time.Now().Add(receiptTTL),
		Items:         items,
	}
	if err := db.Create(&receipt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": receipt.PublicID, "subtotal_cents": subtotal, "total_cents": receipt.TotalCents, "items": len(items)})
}

// buildLineItems assembles line items from explicit inputs or parsed text,
// reconciles the reported total against the summed items, and prorates tax
// and tip across items by price share.
func buildLineItems(inputs []itemInput, text string, reportedTotal, taxCents, tipCents int64) ([]models.LineItem, int64, error) {
	var items []models.LineItem
	if len(inputs) > 0 {
		for _, in := range inputs {
			den := in.QuantityDenominator
			if den == 0 {
				den = 1
			}
			unit := in.TotalPriceCents * den / in.QuantityNumerator
			items = append(items, models.LineItem{
				Name:                in.Name,
				QuantityNumerator:   in.QuantityNumerator,
				QuantityDenominator: den,
				UnitPriceCents:      unit,
				TotalPriceCents:     in.TotalPriceCents,
			})
		}
	} else {
		parsed := receipttext.Parse(text)
		if len(parsed.Items) == 0 {
			return nil, 0, errNoItems
		}
		reported := reportedTotal
		if reported == 0 {
			reported = parsed.ReportedTotalCents
		}
		corrected := receipttext.CorrectTotal(parsed.Items, reported)
		// When the reported total wins, spread the delta over the parsed
		// items so the line items sum to the corrected subtotal.
		var parsedSum int64
		weights := make([]int64, len(parsed.Items))
		for i, it := range parsed.Items {
			parsedSum += it.TotalCents
			weights[i] = it.TotalCents
		}
		adjust := allocation.Prorate(corrected-parsedSum, weights)
		for i, it := range parsed.Items {
			price := it.TotalCents + adjust[i]
			items = append(items, models.LineItem{
				Name:                it.Name,
				QuantityNumerator:   it.Quantity,
				QuantityDenominator: 1,
				UnitPriceCents:      price / it.Quantity,
				TotalPriceCents:     price,
			})
		}
	}

	var subtotal int64
	weights := make([]int64, len(items))
	for i := range items {
		subtotal += items[i].TotalPriceCents
		weights[i] = items[i].TotalPriceCents
	}
	taxes := allocation.Prorate(taxCents, weights)
	tips := allocation.Prorate(tipCents, weights)
	for i := range items {
		items[i].ProratedTaxCents = taxes[i]
		items[i].ProratedTipCents = tips[i]
	}
	return items, subtotal, nil
}

// setReceiptItemsHandler replaces a receipt's line items while it is still
// un-finalized. Item shapes are frozen at finalization.
func setReceiptItemsHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	receipt, err := findReceiptByPublicID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}
	if receipt.OwnerID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if receipt.IsFinalized {
		c.JSON(http.StatusConflict, gin.H{"error": "receipt already finalized"})
		return
	}
	var req struct {
		Items    []itemInput `json:"items" binding:"required,min=1,dive"`
		TaxCents int64       `json:"tax_cents" binding:"min=0"`
		TipCents int64       `json:"tip_cents" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, subtotal, err := buildLineItems(req.Items, "", 0, req.TaxCents, req.TipCents)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range items {
		items[i].ReceiptID = receipt.ID
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("receipt_id = ?", receipt.ID).Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return tx.Model(receipt).Updates(map[string]any{
			"subtotal_cents": subtotal,
			"tax_cents":      req.TaxCents,
			"tip_cents":      req.TipCents,
			"total_cents":    subtotal + req.TaxCents + req.TipCents,
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	readCache.Delete(allocation.ViewCacheKey(receipt.ID))
	c.JSON(http.StatusOK, gin.H{"id": receipt.PublicID, "subtotal_cents": subtotal, "items": len(items)})
}

// finalizeReceiptHandler flips the finalization gate: from here on claims are
// accepted and item shapes are frozen (subdivision excepted).
func finalizeReceiptHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	receipt, err := findReceiptByPublicID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}
	if receipt.OwnerID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if receipt.IsFinalized {
		c.JSON(http.StatusOK, gin.H{"id": receipt.PublicID, "finalized": true})
		return
	}
	var n int64
	db.Model(&models.LineItem{}).Where("receipt_id = ?", receipt.ID).Count(&n)
	if n == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "receipt has no items"})
		return
	}
	now := time.Now()
	if err := db.Model(receipt).Updates(map[string]any{"is_finalized": true, "finalized_at": &now}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "finalize failed"})
		return
	}
	readCache.Delete(allocation.ViewCacheKey(receipt.ID))
	c.JSON(http.StatusOK, gin.H{"id": receipt.PublicID, "finalized": true})
}

// getReceiptHandler returns the receipt view: items with current quantities
// and per-item claimed portions. The view is cached until the next write.
func getReceiptHandler(c *gin.Context) {
	receipt, err := findReceiptByPublicID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}
	if v, ok := readCache.Get(allocation.ViewCacheKey(receipt.ID)); ok {
		c.JSON(http.StatusOK, v)
		return
	}
	var items []models.LineItem
	if err := db.Where("receipt_id = ?", receipt.ID).Preload("Claims").Order("id").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	type itemView struct {
		ID                  uint   `json:"id"`
		Name                string `json:"name"`
		QuantityNumerator   int64  `json:"quantity_numerator"`
		QuantityDenominator int64  `json:"quantity_denominator"`
		TotalPriceCents     int64  `json:"total_price_cents"`
		ProratedTaxCents    int64  `json:"prorated_tax_cents"`
		ProratedTipCents    int64  `json:"prorated_tip_cents"`
		ClaimedNumerator    int64  `json:"claimed_numerator"`
	}
	views := make([]itemView, 0, len(items))
	for i := range items {
		it := &items[i]
		var claimed int64
		for _, cl := range it.Claims {
			claimed += cl.QuantityNumerator
		}
		views = append(views, itemView{
			ID:                  it.ID,
			Name:                it.Name,
			QuantityNumerator:   it.QuantityNumerator,
			QuantityDenominator: it.QuantityDenominator,
			TotalPriceCents:     it.TotalPriceCents,
			ProratedTaxCents:    it.ProratedTaxCents,
			ProratedTipCents:    it.ProratedTipCents,
			ClaimedNumerator:    claimed,
		})
	}
	view := gin.H{
		"id":             receipt.PublicID,
		"label":          receipt.Label,
		"subtotal_cents": receipt.SubtotalCents,
		"tax_cents":      receipt.TaxCents,
		"tip_cents":      receipt.TipCents,
		"total_cents":    receipt.TotalCents,
		"finalized":      receipt.IsFinalized,
		"expires_at":     receipt.ExpiresAt,
		"items":          views,
	}
	readCache.Set(allocation.ViewCacheKey(receipt.ID), view)
	c.JSON(http.StatusOK, view)
}
