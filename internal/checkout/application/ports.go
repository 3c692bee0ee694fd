package application

import (
	"context"

	"github.com/legendryboy69/elyvra/internal/checkout/domain"
)

// CatalogStore is the read-only product list.
type CatalogStore interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
}

// LedgerStore persists payment records together with their outbox events.
// Implementations guarantee the created-to-paid transition lands at most once
// per order and that ConsumeToken is first-caller-wins.
type LedgerStore interface {
	Create(ctx context.Context, rec domain.PaymentRecord, eventType string, payload []byte, traceparent string) error
	Get(ctx context.Context, orderID string) (domain.PaymentRecord, error)
	MarkPaid(ctx context.Context, orderID string, upd domain.PaidUpdate, eventType string, payload []byte, traceparent string) (domain.PaymentRecord, error)
	FindByToken(ctx context.Context, token string) (domain.PaymentRecord, error)
	ConsumeToken(ctx context.Context, token string) (domain.PaymentRecord, error)
	All(ctx context.Context) (map[string]domain.PaymentRecord, error)
	Close() error
}

// Gateway is the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]any) (domain.GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) bool
}
