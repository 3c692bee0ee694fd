package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/legendryboy69/elyvra/internal/checkout/application"
	"github.com/legendryboy69/elyvra/internal/checkout/domain"
)

// mockCheckout implements Checkout with overridable funcs.
type mockCheckout struct {
	ListProductsFunc    func(ctx context.Context) ([]domain.Product, error)
	CreateOrderFunc     func(ctx context.Context, productID, buyerName, buyerEmail string) (domain.GatewayOrder, error)
	VerifyPaymentFunc   func(ctx context.Context, orderID, paymentID, signature string) (application.VerificationResult, error)
	ResolveDownloadFunc func(ctx context.Context, token string) (application.DownloadGrant, error)
	ListPaymentsFunc    func(ctx context.Context) (map[string]domain.PaymentRecord, error)
}

func (m *mockCheckout) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx)
	}
	return nil, nil
}

func (m *mockCheckout) CreateOrder(ctx context.Context, productID, buyerName, buyerEmail string) (domain.GatewayOrder, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, productID, buyerName, buyerEmail)
	}
	return domain.GatewayOrder{"id": "order_test"}, nil
}

func (m *mockCheckout) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) (application.VerificationResult, error) {
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, orderID, paymentID, signature)
	}
	return application.VerificationResult{}, nil
}

func (m *mockCheckout) ResolveDownload(ctx context.Context, token string) (application.DownloadGrant, error) {
	if m.ResolveDownloadFunc != nil {
		return m.ResolveDownloadFunc(ctx, token)
	}
	return application.DownloadGrant{}, nil
}

func (m *mockCheckout) ListPayments(ctx context.Context) (map[string]domain.PaymentRecord, error) {
	if m.ListPaymentsFunc != nil {
		return m.ListPaymentsFunc(ctx)
	}
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, h http.Handler, method, target string, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListProductsRoute(t *testing.T) {
	mock := &mockCheckout{
		ListProductsFunc: func(ctx context.Context) ([]domain.Product, error) {
			return []domain.Product{
				{ID: "prod-ebook-1", Title: "Go Patterns", Description: "An ebook.", Price: 199, Filename: "go-patterns.pdf", Thumbnail: "/static/go.png"},
				{ID: "prod-video-1", Title: "Testing Course", Price: 499, Filename: "course.zip"},
			}, nil
		},
	}
	routes := NewHandler(testLogger(), mock, "", nil).Routes()

	rec := doRequest(t, routes, http.MethodGet, "/api/products", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var products []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &products); err != nil {
		t.Fatalf("body is not a JSON array: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2", len(products))
	}
	if products[0]["id"] != "prod-ebook-1" || products[0]["price"] != float64(199) {
		t.Errorf("first product = %v", products[0])
	}
	if strings.Contains(rec.Body.String(), "go-patterns.pdf") {
		t.Error("product file name leaked through the API")
	}
}

func TestCreateOrderRoute(t *testing.T) {
	var gotProduct, gotName, gotEmail string
	mock := &mockCheckout{
		CreateOrderFunc: func(ctx context.Context, productID, buyerName, buyerEmail string) (domain.GatewayOrder, error) {
			gotProduct, gotName, gotEmail = productID, buyerName, buyerEmail
			return domain.GatewayOrder{"id": "order_abc", "amount": 19900}, nil
		},
	}
	routes := NewHandler(testLogger(), mock, "", nil).Routes()

	rec := doRequest(t, routes, http.MethodPost, "/api/create-order",
		`{"productId":"prod-ebook-1","buyerName":"Asha","buyerEmail":"asha@example.com"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	if gotProduct != "prod-ebook-1" || gotName != "Asha" || gotEmail != "asha@example.com" {
		t.Errorf("service got %s/%s/%s", gotProduct, gotName, gotEmail)
	}
	var resp struct {
		Order map[string]any `json:"order"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Order["id"] != "order_abc" {
		t.Errorf("order = %v, want gateway order verbatim", resp.Order)
	}

	if rec := doRequest(t, routes, http.MethodPost, "/api/create-order", `{"productId":`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestCreateOrderRouteErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"unknown product", fmt.Errorf("product x: %w", domain.ErrNotFound), http.StatusNotFound, "product x: not found"},
		{"missing product id", fmt.Errorf("productId is required: %w", domain.ErrInvalidRequest), http.StatusBadRequest, "productId is required: invalid request"},
		{"gateway down", fmt.Errorf("create gateway order: boom: %w", domain.ErrUpstream), http.StatusInternalServerError, "payment gateway error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockCheckout{
				CreateOrderFunc: func(ctx context.Context, productID, buyerName, buyerEmail string) (domain.GatewayOrder, error) {
					return nil, tt.err
				},
			}
			routes := NewHandler(testLogger(), mock, "", nil).Routes()
			rec := doRequest(t, routes, http.MethodPost, "/api/create-order", `{"productId":"x"}`, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("parse error body: %v", err)
			}
			if resp["error"] != tt.wantMsg {
				t.Errorf("error = %q, want %q", resp["error"], tt.wantMsg)
			}
		})
	}
}

func TestVerifyPaymentRoute(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC()
	mock := &mockCheckout{
		VerifyPaymentFunc: func(ctx context.Context, orderID, paymentID, signature string) (application.VerificationResult, error) {
			if orderID != "order_abc" || paymentID != "pay_xyz" || signature != "sig" {
				t.Errorf("service got %s/%s/%s", orderID, paymentID, signature)
			}
			return application.VerificationResult{
				Record: domain.PaymentRecord{
					OrderID:           "order_abc",
					Status:            domain.StatusPaid,
					ProductID:         "prod-ebook-1",
					ProductTitle:      "Go Patterns",
					DownloadToken:     "tok",
					DownloadExpiresAt: &expires,
				},
				DownloadURL: "https://shop.example.com/download/tok",
			}, nil
		},
	}
	routes := NewHandler(testLogger(), mock, "", nil).Routes()

	rec := doRequest(t, routes, http.MethodPost, "/api/verify-payment",
		`{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"sig"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	var resp struct {
		Success     bool              `json:"success"`
		DownloadURL string            `json:"downloadUrl"`
		Product     map[string]string `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !resp.Success || resp.DownloadURL != "https://shop.example.com/download/tok" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Product["id"] != "prod-ebook-1" || resp.Product["title"] != "Go Patterns" {
		t.Errorf("product = %v", resp.Product)
	}
}

func TestVerifyPaymentRouteBadSignature(t *testing.T) {
	mock := &mockCheckout{
		VerifyPaymentFunc: func(ctx context.Context, orderID, paymentID, signature string) (application.VerificationResult, error) {
			return application.VerificationResult{}, fmt.Errorf("order %s: %w", orderID, domain.ErrBadSignature)
		},
	}
	routes := NewHandler(testLogger(), mock, "", nil).Routes()

	rec := doRequest(t, routes, http.MethodPost, "/api/verify-payment",
		`{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"bad"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "signature mismatch") {
		t.Errorf("body = %s, want signature mismatch", rec.Body)
	}
}

func TestDownloadRoute(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go-patterns.pdf")
	if err := os.WriteFile(path, []byte("ebook bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	mock := &mockCheckout{
		ResolveDownloadFunc: func(ctx context.Context, token string) (application.DownloadGrant, error) {
			if token != "tok-abc" {
				t.Errorf("token = %s, want tok-abc", token)
			}
			return application.DownloadGrant{
				Product: domain.Product{ID: "prod-ebook-1", Filename: "go-patterns.pdf"},
				Path:    path,
			}, nil
		},
	}
	routes := NewHandler(testLogger(), mock, "", nil).Routes()

	rec := doRequest(t, routes, http.MethodGet, "/download/tok-abc", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ebook bytes" {
		t.Errorf("body = %q, want file contents", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="go-patterns.pdf"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestDownloadRouteErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown token", fmt.Errorf("download token: %w", domain.ErrNotFound), http.StatusNotFound},
		{"expired", fmt.Errorf("download for order x: %w", domain.ErrTokenExpired), http.StatusGone},
		{"already used", fmt.Errorf("order x: %w", domain.ErrTokenUsed), http.StatusGone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockCheckout{
				ResolveDownloadFunc: func(ctx context.Context, token string) (application.DownloadGrant, error) {
					return application.DownloadGrant{}, tt.err
				},
			}
			routes := NewHandler(testLogger(), mock, "", nil).Routes()
			rec := doRequest(t, routes, http.MethodGet, "/download/tok", "", nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); strings.Contains(ct, "application/json") {
				t.Errorf("download errors should be plain text, got %s", ct)
			}
		})
	}
}

func TestAdminPaymentsRoute(t *testing.T) {
	mock := &mockCheckout{
		ListPaymentsFunc: func(ctx context.Context) (map[string]domain.PaymentRecord, error) {
			return map[string]domain.PaymentRecord{
				"order_abc": {OrderID: "order_abc", Status: domain.StatusPaid},
			}, nil
		},
	}
	routes := NewHandler(testLogger(), mock, "hunter2", nil).Routes()

	if rec := doRequest(t, routes, http.MethodGet, "/admin/payments", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no auth status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, routes, http.MethodGet, "/admin/payments", "", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}

	rec := doRequest(t, routes, http.MethodGet, "/admin/payments", "", map[string]string{"Authorization": "Bearer hunter2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ledger map[string]domain.PaymentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &ledger); err != nil {
		t.Fatalf("parse ledger: %v", err)
	}
	if ledger["order_abc"].Status != domain.StatusPaid {
		t.Errorf("ledger = %v", ledger)
	}
}

func TestAdminPaymentsUnmountedWithoutToken(t *testing.T) {
	routes := NewHandler(testLogger(), &mockCheckout{}, "", nil).Routes()

	rec := doRequest(t, routes, http.MethodGet, "/admin/payments", "", map[string]string{"Authorization": "Bearer anything"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when no admin token is configured", rec.Code)
	}
}

func TestHealthzRoute(t *testing.T) {
	routes := NewHandler(testLogger(), &mockCheckout{}, "", nil).Routes()

	rec := doRequest(t, routes, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body)
	}
}
