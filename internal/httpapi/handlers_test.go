package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/restock"
	"dukapos/backend/internal/service"
	"dukapos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	advisor := restock.NewAdvisor(nil, 0)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := service.New(repo, advisor, logger)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*", logger)
}

func loginAs(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login as %s failed, status %d (body: %s)", username, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

// doAuthed performs an authenticated JSON request, attaching a CSRF token for
// mutating methods, and returns the recorder.
func doAuthed(t *testing.T, api *API, token string, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(map[string]string{"username": "owner", "password": "wrongpassword"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProductsRequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := loginAs(t, api, "owner", "owner123")

	res := doAuthed(t, api, ownerToken, http.MethodPost, "/api/v1/products", map[string]any{
		"sku":           "sku-water-01",
		"name":          "Bottled Water 1L",
		"selling_price": "60.00",
		"cost_price":    "45.00",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create product expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = doAuthed(t, api, ownerToken, http.MethodPost, "/api/v1/inventory/supply", map[string]any{
		"sku":      "SKU-WATER-01",
		"quantity": 50,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("supply expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = doAuthed(t, api, ownerToken, http.MethodPost, "/api/v1/sales", map[string]any{
		"payment_type":   "PAY_NOW",
		"payment_method": "cash",
		"items":          []map[string]any{{"sku": "SKU-WATER-01", "quantity": 2}},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create sale expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var saleResp domain.SaleResponse
	if err := json.NewDecoder(res.Body).Decode(&saleResp); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if saleResp.Sale.Total.StringFixed(2) != "120.00" {
		t.Fatalf("expected total 120.00, got %s", saleResp.Sale.Total.StringFixed(2))
	}
	if saleResp.Receipt == nil {
		t.Fatalf("expected receipt in response")
	}

	res = doAuthed(t, api, ownerToken, http.MethodGet, "/api/v1/sales/"+saleResp.Sale.ID, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("get sale expected 200, got %d", res.Code)
	}

	res = doAuthed(t, api, ownerToken, http.MethodGet, "/api/v1/sales/"+saleResp.Sale.ID+"/receipt", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("get receipt expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = doAuthed(t, api, ownerToken, http.MethodPost, "/api/v1/sales/"+saleResp.Sale.ID+"/void", map[string]any{
		"notes": "test void",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("void expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = doAuthed(t, api, ownerToken, http.MethodPost, "/api/v1/sales/"+saleResp.Sale.ID+"/void", map[string]any{})
	if res.Code != http.StatusConflict {
		t.Fatalf("second void expected 409, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestCreateSaleInsufficientStockMapsTo409(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "cashier", "cashier123")

	res := doAuthed(t, api, token, http.MethodPost, "/api/v1/sales", map[string]any{
		"payment_type":   "PAY_NOW",
		"payment_method": "cash",
		"items":          []map[string]any{{"sku": "SKU-BREAD-01", "quantity": 500}},
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestCashierCannotVoidSale(t *testing.T) {
	api := newTestAPI(t)
	cashierToken := loginAs(t, api, "cashier", "cashier123")

	res := doAuthed(t, api, cashierToken, http.MethodPost, "/api/v1/sales", map[string]any{
		"payment_type":   "PAY_NOW",
		"payment_method": "cash",
		"items":          []map[string]any{{"sku": "SKU-MILK-01", "quantity": 1}},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create sale expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var saleResp domain.SaleResponse
	if err := json.NewDecoder(res.Body).Decode(&saleResp); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}

	res = doAuthed(t, api, cashierToken, http.MethodPost, "/api/v1/sales/"+saleResp.Sale.ID+"/void", map[string]any{})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier void, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestCashierCannotCreateProduct(t *testing.T) {
	api := newTestAPI(t)
	cashierToken := loginAs(t, api, "cashier", "cashier123")

	res := doAuthed(t, api, cashierToken, http.MethodPost, "/api/v1/products", map[string]any{
		"sku":           "SKU-NOPE-01",
		"name":          "Should Fail",
		"selling_price": "10.00",
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "owner", "owner123")

	res := doAuthed(t, api, token, http.MethodPost, "/api/v1/sales", map[string]any{
		"payment_type": "PAY_NOW",
		"surprise":     true,
		"items":        []map[string]any{{"sku": "SKU-MILK-01", "quantity": 1}},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestOwnerNotificationsAfterSale(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := loginAs(t, api, "owner", "owner123")
	cashierToken := loginAs(t, api, "cashier", "cashier123")

	res := doAuthed(t, api, cashierToken, http.MethodPost, "/api/v1/sales", map[string]any{
		"payment_type":   "PAY_NOW",
		"payment_method": "mpesa",
		"items":          []map[string]any{{"sku": "SKU-SOAP-01", "quantity": 2}},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create sale expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = doAuthed(t, api, ownerToken, http.MethodGet, "/api/v1/notifications?unread=true", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("notifications expected 200, got %d", res.Code)
	}
	var body struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(body.Notifications) == 0 {
		t.Fatalf("expected at least one owner notification after sale")
	}

	res = doAuthed(t, api, ownerToken, http.MethodPost, "/api/v1/notifications/"+body.Notifications[0].ID+"/read", map[string]any{})
	if res.Code != http.StatusOK {
		t.Fatalf("mark read expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestCreateCashierEndpoint(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := loginAs(t, api, "owner", "owner123")

	res := doAuthed(t, api, ownerToken, http.MethodPost, "/api/v1/users/cashiers", map[string]any{
		"username": "cashier2",
		"password": "secret99",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create cashier expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}

	if token := loginAs(t, api, "cashier2", "secret99"); token == "" {
		t.Fatalf("expected new cashier to log in")
	}
}
