package razorpay

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/legendryboy69/elyvra/internal/checkout/domain"
)

// MockGateway stands in for the hosted gateway when no API key is configured.
// It mints order ids locally and signs callbacks with the same HMAC scheme as
// the real gateway, so the whole checkout flow can run without credentials.
type MockGateway struct {
	secret string
}

func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{secret: secret}
}

func (g *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]any) (domain.GatewayOrder, error) {
	order := domain.GatewayOrder{
		"id":         "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		"entity":     "order",
		"amount":     amountMinor,
		"amount_due": amountMinor,
		"currency":   currency,
		"receipt":    receipt,
		"status":     "created",
		"created_at": time.Now().Unix(),
	}
	if len(notes) > 0 {
		order["notes"] = notes
	}
	return order, nil
}

// Sign produces the callback signature the hosted gateway would send for a
// captured payment. Dev and test helper.
func (g *MockGateway) Sign(orderID, paymentID string) string {
	return ExpectedSignature(orderID, paymentID, g.secret)
}

func (g *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, g.secret)
}
