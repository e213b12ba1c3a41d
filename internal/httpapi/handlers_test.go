package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cantina/backend/internal/domain"
	"cantina/backend/internal/service"
	"cantina/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, 0)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

// doJSON performs an authenticated JSON request against the API.
func doJSON(t *testing.T, api *API, method, path, token, csrf string, payload any) *httptest.ResponseRecorder {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

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

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_ListWithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleProducts_CreateRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "employee", "employee123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name: "Granola Bar", Category: "snack", PriceCents: 350, Stock: 10,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee create, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleOrders_CommitFlow(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, csrf, domain.OrderCommitRequest{
		ClientID:      "cli-ana",
		PaymentStatus: domain.PaymentStatusPaid,
		Lines: []domain.CartLineRequest{
			{ProductID: "prod-soda", Qty: 3},
			{ProductID: "prod-soda", Qty: 4},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.OrderCommitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode commit response: %v", err)
	}
	if resp.TotalCents != 3500 {
		t.Fatalf("expected total 3500, got %d", resp.TotalCents)
	}
	if resp.OrderID == "" {
		t.Fatalf("expected order id in response")
	}

	get := doJSON(t, api, http.MethodGet, "/api/v1/orders/"+resp.OrderID, token, "", nil)
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching order, got %d (body: %s)", get.Code, get.Body.String())
	}
}

func TestHandleOrders_StockConflictReturns409(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	// Cake has 25 in stock; ask for more.
	rec := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, csrf, domain.OrderCommitRequest{
		ClientID: "cli-ana",
		Lines:    []domain.CartLineRequest{{ProductID: "prod-cake", Qty: 30}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for stock conflict, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleOrders_EmptyCartReturns422(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, csrf, domain.OrderCommitRequest{
		ClientID: "cli-ana",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty cart, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleCartValidate(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/cart/validate", token, csrf, domain.CartLineRequest{
		ProductID: "prod-coffee", Qty: 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Line domain.CartLine `json:"line"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Line.UnitPriceCents != 350 || body.Line.ProductName != "Filter Coffee" {
		t.Fatalf("expected priced coffee line, got %+v", body.Line)
	}

	// Unknown product maps to 404.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/cart/validate", token, csrf, domain.CartLineRequest{
		ProductID: "prod-missing", Qty: 1,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleClients_CRUD(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/clients", token, csrf, domain.ClientCreateRequest{
		Name: "Diego Rocha", Phone: "555-0199",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created struct {
		Client domain.Client `json:"client"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created client: %v", err)
	}
	if created.Client.ID == "" {
		t.Fatalf("expected client id")
	}

	newName := "Diego R. Rocha"
	patch := doJSON(t, api, http.MethodPatch, "/api/v1/clients/"+created.Client.ID, token, csrf, domain.ClientUpdateRequest{
		Name: &newName,
	})
	if patch.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", patch.Code, patch.Body.String())
	}

	get := doJSON(t, api, http.MethodGet, "/api/v1/clients/"+created.Client.ID, token, "", nil)
	var fetched struct {
		Client domain.Client `json:"client"`
	}
	if err := json.NewDecoder(get.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode fetched client: %v", err)
	}
	if fetched.Client.Name != newName {
		t.Fatalf("expected updated name %q, got %q", newName, fetched.Client.Name)
	}
}

func TestHandleBalanceReport_Formats(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	commit := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, csrf, domain.OrderCommitRequest{
		ClientID: "cli-ana",
		Lines:    []domain.CartLineRequest{{ProductID: "prod-soda", Qty: 7}},
	})
	if commit.Code != http.StatusCreated {
		t.Fatalf("commit failed: %d %s", commit.Code, commit.Body.String())
	}

	rec := doJSON(t, api, http.MethodGet, "/api/v1/reports/balance", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var report domain.BalanceReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.GrandTotalCents != 3500 {
		t.Fatalf("expected grand total 3500, got %d", report.GrandTotalCents)
	}

	csv := doJSON(t, api, http.MethodGet, "/api/v1/reports/balance?format=csv", token, "", nil)
	if csv.Code != http.StatusOK {
		t.Fatalf("csv: expected 200, got %d", csv.Code)
	}
	if ct := csv.Header().Get("Content-Type"); !strings.Contains(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if !strings.Contains(csv.Body.String(), "35.00") {
		t.Fatalf("expected formatted total in csv, got %s", csv.Body.String())
	}

	html := doJSON(t, api, http.MethodGet, "/api/v1/reports/balance?format=html", token, "", nil)
	if html.Code != http.StatusOK {
		t.Fatalf("html: expected 200, got %d", html.Code)
	}
	if !strings.Contains(html.Body.String(), "Ana Souza") || !strings.Contains(html.Body.String(), "35.00") {
		t.Fatalf("expected client and total in html output")
	}
}

func TestHandleBalanceReport_BadDates(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/reports/balance?from=31-12-2025", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/reports/balance?from=2026-02-10&to=2026-02-01", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}
}

func TestHandleEmployees_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	employeeToken := loginAs(t, api, "employee", "employee123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/users/employees", employeeToken, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee role, got %d", rec.Code)
	}

	adminToken := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)
	create := doJSON(t, api, http.MethodPost, "/api/v1/users/employees", adminToken, csrf, domain.EmployeeCreateRequest{
		Username: "counter2", Password: "secret99", Name: "Second Counter",
	})
	if create.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", create.Code, create.Body.String())
	}

	list := doJSON(t, api, http.MethodGet, "/api/v1/users/employees", adminToken, "", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
	if !strings.Contains(list.Body.String(), "counter2") {
		t.Fatalf("expected new employee in listing, got %s", list.Body.String())
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes
// (used to confirm test infrastructure is sound).
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}

func loginAs(t *testing.T, api *API, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login as %s failed, status %d", username, res.Code)
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
