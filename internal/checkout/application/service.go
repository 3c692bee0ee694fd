package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/legendryboy69/elyvra/internal/checkout/domain"
	"github.com/legendryboy69/elyvra/pkg/metrics"
	"github.com/legendryboy69/elyvra/pkg/tracing"
)

// Config carries the checkout policy knobs.
type Config struct {
	// BaseURL is the public origin download links are minted under.
	BaseURL string
	// Currency for every gateway order, ISO 4217.
	Currency string
	// TokenTTL is how long a download link stays valid after verification.
	TokenTTL time.Duration
	// SingleUse burns a download token on first use.
	SingleUse bool
	// DownloadDir holds the product files named by the catalog.
	DownloadDir string
}

// Service runs the checkout flow: catalog reads, gateway order creation,
// callback verification and download token resolution.
type Service struct {
	cfg     Config
	catalog CatalogStore
	ledger  LedgerStore
	gateway Gateway

	now func() time.Time
}

func NewService(cfg Config, catalog CatalogStore, ledger LedgerStore, gateway Gateway) *Service {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &Service{
		cfg:     cfg,
		catalog: catalog,
		ledger:  ledger,
		gateway: gateway,
		now:     time.Now,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.catalog.List(ctx)
}

// CreateOrder opens a gateway order for one product and records it in the
// ledger as created. The gateway order is returned verbatim for the checkout
// widget.
func (s *Service) CreateOrder(ctx context.Context, productID, buyerName, buyerEmail string) (domain.GatewayOrder, error) {
	if productID == "" {
		return nil, fmt.Errorf("productId is required: %w", domain.ErrInvalidRequest)
	}
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	// Receipts must be unique per gateway order; the product id alone would
	// collide on repeat purchases.
	receipt := uuid.NewString()
	order, err := s.gateway.CreateOrder(ctx, product.Price*domain.MinorUnitScale, s.cfg.Currency, receipt,
		map[string]any{"productId": product.ID})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %v: %w", err, domain.ErrUpstream)
	}
	orderID := order.ID()
	if orderID == "" {
		return nil, fmt.Errorf("gateway returned no order id: %w", domain.ErrUpstream)
	}

	rec := domain.NewPaymentRecord(orderID, receipt, s.cfg.Currency, product, buyerName, buyerEmail)
	payload, err := json.Marshal(domain.OrderCreated{
		OrderID:     orderID,
		ProductID:   product.ID,
		Receipt:     receipt,
		AmountMinor: rec.AmountMinor,
		Currency:    rec.Currency,
	})
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Create(ctx, rec, domain.EventOrderCreated, payload, tracing.Traceparent(ctx)); err != nil {
		return nil, err
	}
	metrics.OrdersCreated.Inc()
	return order, nil
}

// VerificationResult is a successful callback verification: the paid record
// plus the download link minted for it.
type VerificationResult struct {
	Record      domain.PaymentRecord
	DownloadURL string
}

// VerifyPayment checks a gateway callback signature against the ledger and,
// on the first valid callback for an order, mints the download token. A
// replayed valid callback gets the already-minted token back, so exactly one
// token ever exists per order.
func (s *Service) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) (VerificationResult, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return VerificationResult{}, fmt.Errorf("order id, payment id and signature are required: %w", domain.ErrInvalidRequest)
	}
	rec, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return VerificationResult{}, err
	}

	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		metrics.SignaturesRejected.Inc()
		return VerificationResult{}, fmt.Errorf("order %s: %w", orderID, domain.ErrBadSignature)
	}

	if rec.Status == domain.StatusPaid {
		return s.replayResult(rec, paymentID)
	}

	token, err := newDownloadToken()
	if err != nil {
		return VerificationResult{}, err
	}
	payload, err := json.Marshal(domain.PaymentCaptured{
		OrderID:          orderID,
		GatewayPaymentID: paymentID,
		ProductID:        rec.ProductID,
		AmountMinor:      rec.AmountMinor,
	})
	if err != nil {
		return VerificationResult{}, err
	}
	upd := domain.PaidUpdate{
		GatewayPaymentID:  paymentID,
		Signature:         signature,
		DownloadToken:     token,
		DownloadExpiresAt: s.now().Add(s.cfg.TokenTTL).UTC(),
	}
	updated, err := s.ledger.MarkPaid(ctx, orderID, upd, domain.EventPaymentCaptured, payload, tracing.Traceparent(ctx))
	if errors.Is(err, domain.ErrConflict) {
		// Lost the race to a concurrent callback; the winner's token stands.
		current, getErr := s.ledger.Get(ctx, orderID)
		if getErr != nil {
			return VerificationResult{}, getErr
		}
		return s.replayResult(current, paymentID)
	}
	if err != nil {
		return VerificationResult{}, err
	}
	metrics.PaymentsVerified.Inc()
	return s.result(updated), nil
}

func (s *Service) replayResult(rec domain.PaymentRecord, paymentID string) (VerificationResult, error) {
	if rec.GatewayPaymentID != paymentID {
		return VerificationResult{}, fmt.Errorf("order %s already paid by %s: %w", rec.OrderID, rec.GatewayPaymentID, domain.ErrConflict)
	}
	return s.result(rec), nil
}

func (s *Service) result(rec domain.PaymentRecord) VerificationResult {
	return VerificationResult{
		Record:      rec,
		DownloadURL: s.cfg.BaseURL + "/download/" + rec.DownloadToken,
	}
}

// DownloadGrant is a token resolved to the file it unlocks.
type DownloadGrant struct {
	Record  domain.PaymentRecord
	Product domain.Product
	Path    string
}

// ResolveDownload exchanges a token for the product file behind it. Expiry,
// product and file availability are all checked before the token is
// consumed, so a request that cannot be served never burns a single-use
// token.
func (s *Service) ResolveDownload(ctx context.Context, token string) (DownloadGrant, error) {
	rec, err := s.ledger.FindByToken(ctx, token)
	if err != nil {
		return DownloadGrant{}, err
	}
	if rec.DownloadExpired(s.now()) {
		return DownloadGrant{}, fmt.Errorf("download for order %s: %w", rec.OrderID, domain.ErrTokenExpired)
	}
	product, err := s.catalog.Get(ctx, rec.ProductID)
	if err != nil {
		return DownloadGrant{}, err
	}
	path := filepath.Join(s.cfg.DownloadDir, product.Filename)
	if _, err := os.Stat(path); err != nil {
		return DownloadGrant{}, fmt.Errorf("file for order %s: %w", rec.OrderID, domain.ErrNotFound)
	}
	if s.cfg.SingleUse {
		if rec, err = s.ledger.ConsumeToken(ctx, token); err != nil {
			return DownloadGrant{}, err
		}
	}
	metrics.DownloadsServed.Inc()
	return DownloadGrant{
		Record:  rec,
		Product: product,
		Path:    path,
	}, nil
}

// ListPayments returns the full ledger for the admin view.
func (s *Service) ListPayments(ctx context.Context) (map[string]domain.PaymentRecord, error) {
	return s.ledger.All(ctx)
}

func newDownloadToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("mint download token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
