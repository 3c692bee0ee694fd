package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/legendryboy69/elyvra/internal/checkout/application"
	"github.com/legendryboy69/elyvra/internal/checkout/domain"
	"github.com/legendryboy69/elyvra/pkg/idempotency"
)

// Checkout is the slice of the application service the transport needs.
type Checkout interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateOrder(ctx context.Context, productID, buyerName, buyerEmail string) (domain.GatewayOrder, error)
	VerifyPayment(ctx context.Context, orderID, paymentID, signature string) (application.VerificationResult, error)
	ResolveDownload(ctx context.Context, token string) (application.DownloadGrant, error)
	ListPayments(ctx context.Context) (map[string]domain.PaymentRecord, error)
}

type Handler struct {
	log        *slog.Logger
	service    Checkout
	tracer     trace.Tracer
	adminToken string
	idem       idempotency.Checker
}

// NewHandler wires the checkout routes. adminToken empty leaves the admin
// surface unmounted; idem nil skips the duplicate-order guard.
func NewHandler(log *slog.Logger, service Checkout, adminToken string, idem idempotency.Checker) *Handler {
	return &Handler{
		log:        log,
		service:    service,
		tracer:     otel.Tracer("checkout-http"),
		adminToken: adminToken,
		idem:       idem,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/products", h.listProducts)
	if h.idem != nil {
		r.With(idempotency.Middleware(h.idem)).Post("/api/create-order", h.createOrder)
	} else {
		r.Post("/api/create-order", h.createOrder)
	}
	r.Post("/api/verify-payment", h.verifyPayment)
	r.Get("/download/{token}", h.download)
	if h.adminToken != "" {
		r.With(h.adminAuth).Get("/admin/payments", h.listPayments)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

type productResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	products, err := h.service.ListProducts(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			Price:       p.Price,
			Thumbnail:   p.Thumbnail,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createOrderReq struct {
	ProductID  string `json:"productId"`
	BuyerName  string `json:"buyerName"`
	BuyerEmail string `json:"buyerEmail"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.service.CreateOrder(ctx, req.ProductID, req.BuyerName, req.BuyerEmail)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type verifyPaymentReq struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyPayment")
	defer span.End()

	var req verifyPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.service.VerifyPayment(ctx, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"downloadUrl": res.DownloadURL,
		"product": map[string]string{
			"id":    res.Record.ProductID,
			"title": res.Record.ProductTitle,
		},
	})
}

// download streams the purchased file. Errors are plain text here, this URL
// lands in a browser tab rather than the storefront script.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ResolveDownload")
	defer span.End()

	grant, err := h.service.ResolveDownload(ctx, chi.URLParam(r, "token"))
	if err != nil {
		status, msg := h.errStatus(r, err)
		http.Error(w, msg, status)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+grant.Product.Filename+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, grant.Path)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListPayments")
	defer span.End()

	all, err := h.service.ListPayments(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *Handler) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errStatus maps the failure taxonomy onto HTTP. 4xx messages come from the
// service and are safe to show; everything else is hidden behind a generic
// message and logged.
func (h *Handler) errStatus(r *http.Request, err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrBadSignature):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrTokenUsed):
		return http.StatusGone, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrUpstream):
		h.log.Error("gateway failure", "path", r.URL.Path, "err", err)
		return http.StatusInternalServerError, domain.ErrUpstream.Error()
	default:
		h.log.Error("request failed", "path", r.URL.Path, "err", err)
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := h.errStatus(r, err)
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
