package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"billsplit/pkg/allocation"
	"billsplit/pkg/cache"
)

// helper to perform requests with auth token and/or session cookie
func performRequest(r http.Handler, method, path string, body io.Reader, token, cookie string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie})
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewBuffer(b)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	claimLimiters.SetLimit(1000, 1000)
	initDB(os.Getenv("DB_DSN"))
	readCache = cache.NewMemory(time.Minute)
	alloc = allocation.NewService(db, readCache)
	r := gin.New()
	r.Use(gin.Recovery())
	setupRoutes(r)
	return r
}

// loginAs registers (idempotently) and logs in, returning the bearer token.
func loginAs(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": password}
	resp := performRequest(r, http.MethodPost, "/register", jsonBody(t, creds), "", "")
	if resp.Code != http.StatusOK && resp.Code != http.StatusConflict {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/login", jsonBody(t, creds), "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	token, _ := decode(t, resp)["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %s", resp.Body.String())
	}
	return token
}

// createFinalizedReceipt creates a receipt from raw text, finalizes it, and
// returns its public id plus the line item ids in view order.
func createFinalizedReceipt(t *testing.T, r *gin.Engine, token string) (string, []uint) {
	t.Helper()
	body := map[string]any{
		"label": "dinner",
		"text": `2 x Burger 24.00
Fries 6.50
Lemonade 3.00
Total 33.50`,
		"tax_cents": 268,
		"tip_cents": 500,
	}
	resp := performRequest(r, http.MethodPost, "/receipts", jsonBody(t, body), token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("create receipt failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	publicID, _ := decode(t, resp)["id"].(string)
	if publicID == "" {
		t.Fatalf("no receipt id in response: %s", resp.Body.String())
	}

	resp = performRequest(r, http.MethodPost, "/receipts/"+publicID+"/finalize", nil, token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("finalize receipt failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	resp = performRequest(r, http.MethodGet, "/receipts/"+publicID, nil, "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("get receipt failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	items, _ := decode(t, resp)["items"].([]any)
	var ids []uint
	for _, it := range items {
		m := it.(map[string]any)
		ids = append(ids, uint(m["id"].(float64)))
	}
	if len(ids) == 0 {
		t.Fatalf("receipt has no items: %s", resp.Body.String())
	}
	return publicID, ids
}

// joinReceipt returns the session cookie issued to a new claimant.
func joinReceipt(t *testing.T, r *gin.Engine, publicID, name string) string {
	t.Helper()
	resp := performRequest(r, http.MethodPost, "/receipts/"+publicID+"/join", jsonBody(t, map[string]string{"name": name}), "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("join failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	for _, ck := range resp.Result().Cookies() {
		if ck.Name == sessionCookie {
			return ck.Value
		}
	}
	t.Fatalf("no session cookie in join response")
	return ""
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)
	token := loginAs(t, r, fmt.Sprintf("owner-%d", time.Now().UnixNano()), "pass1")
	publicID, itemIDs := createFinalizedReceipt(t, r, token)

	// Alice joins and claims one burger (item 0 holds two).
	alice := joinReceipt(t, r, publicID, "Alice")
	claim := map[string]any{
		"claimer_name": "Alice",
		"claims": []map[string]any{
			{"line_item_id": itemIDs[0], "quantity_numerator": 1, "quantity_denominator": 1},
		},
	}
	resp := performRequest(r, http.MethodPost, "/receipts/"+publicID+"/claims", jsonBody(t, claim), "", alice)
	if resp.Code != http.StatusOK {
		t.Fatalf("claims failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	result := decode(t, resp)
	if result["success"] != true {
		t.Fatalf("claims not successful: %s", resp.Body.String())
	}
	myTotal := int64(result["my_total_cents"].(float64))
	if myTotal <= 0 {
		t.Fatalf("expected a positive total for Alice, got %d", myTotal)
	}

	// A second finalize from the same session is rejected.
	resp = performRequest(r, http.MethodPost, "/receipts/"+publicID+"/claims", jsonBody(t, claim), "", alice)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double finalize, got %d body=%s", resp.Code, resp.Body.String())
	}

	// Totals are public and keyed by name.
	resp = performRequest(r, http.MethodGet, "/receipts/"+publicID+"/totals", nil, "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("totals failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	totals, _ := decode(t, resp)["totals"].(map[string]any)
	if int64(totals["Alice"].(float64)) != myTotal {
		t.Fatalf("totals disagree with finalize response: %v vs %d", totals["Alice"], myTotal)
	}

	// The receipt view reflects the committed claim.
	resp = performRequest(r, http.MethodGet, "/receipts/"+publicID, nil, "", "")
	items := decode(t, resp)["items"].([]any)
	first := items[0].(map[string]any)
	if int64(first["claimed_numerator"].(float64)) != 1 {
		t.Fatalf("expected claimed_numerator 1 on first item, got %v", first["claimed_numerator"])
	}
}

func TestClaimRejectionCarriesAvailability(t *testing.T) {
	r := setupTestServer(t)
	token := loginAs(t, r, fmt.Sprintf("owner-%d", time.Now().UnixNano()), "pass1")
	publicID, itemIDs := createFinalizedReceipt(t, r, token)

	// Fries is a single unit; Alice takes it, then Bob asks for it too.
	alice := joinReceipt(t, r, publicID, "Alice")
	resp := performRequest(r, http.MethodPost, "/receipts/"+publicID+"/claims", jsonBody(t, map[string]any{
		"claimer_name": "Alice",
		"claims": []map[string]any{
			{"line_item_id": itemIDs[1], "quantity_numerator": 1, "quantity_denominator": 1},
		},
	}), "", alice)
	if resp.Code != http.StatusOK {
		t.Fatalf("alice claim failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	bob := joinReceipt(t, r, publicID, "Bob")
	resp = performRequest(r, http.MethodPost, "/receipts/"+publicID+"/claims", jsonBody(t, map[string]any{
		"claimer_name": "Bob",
		"claims": []map[string]any{
			{"line_item_id": itemIDs[1], "quantity_numerator": 1, "quantity_denominator": 1},
		},
	}), "", bob)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for bob, got %d body=%s", resp.Code, resp.Body.String())
	}
	availability, _ := decode(t, resp)["availability"].([]any)
	if len(availability) != 1 {
		t.Fatalf("expected availability snapshot for one item, got %s", resp.Body.String())
	}
	entry := availability[0].(map[string]any)
	if int64(entry["available"].(float64)) != 0 {
		t.Fatalf("expected 0 available, got %v", entry["available"])
	}
}

func TestSubdivideOverHTTP(t *testing.T) {
	r := setupTestServer(t)
	token := loginAs(t, r, fmt.Sprintf("owner-%d", time.Now().UnixNano()), "pass1")
	publicID, itemIDs := createFinalizedReceipt(t, r, token)

	sid := joinReceipt(t, r, publicID, "Carol")

	// The burger item holds 2 units; re-split it into 4 parts.
	path := fmt.Sprintf("/items/%d/subdivide", itemIDs[0])
	resp := performRequest(r, http.MethodPost, path, jsonBody(t, map[string]any{"target_parts": 4}), "", sid)
	if resp.Code != http.StatusOK {
		t.Fatalf("subdivide failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	result := decode(t, resp)
	if int64(result["quantity_numerator"].(float64)) != 4 {
		t.Fatalf("expected numerator 4, got %v", result["quantity_numerator"])
	}
	if int64(result["quantity_denominator"].(float64)) != 4 {
		t.Fatalf("expected denominator 4, got %v", result["quantity_denominator"])
	}

	// Subdividing without a session cookie is refused.
	resp = performRequest(r, http.MethodPost, path, jsonBody(t, map[string]any{"target_parts": 8}), "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", resp.Code)
	}
}

func TestOwnerEndpointsRequireAuth(t *testing.T) {
	r := setupTestServer(t)
	resp := performRequest(r, http.MethodPost, "/receipts", jsonBody(t, map[string]any{"text": "Burger 12.00"}), "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
}
