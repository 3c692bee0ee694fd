package razorpay

import (
	"context"
	"fmt"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/legendryboy69/elyvra/internal/checkout/domain"
)

// Client drives the hosted gateway through the official SDK.
type Client struct {
	api    *rzp.Client
	secret string
}

func NewClient(keyID, secret string) *Client {
	return &Client{
		api:    rzp.NewClient(keyID, secret),
		secret: secret,
	}
}

// CreateOrder registers an order with the gateway. The amount is in minor
// units (paise for INR). The SDK call is synchronous and has no retry; a
// gateway fault surfaces to the caller.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]any) (domain.GatewayOrder, error) {
	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}
	order, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway order create: %w", err)
	}
	return domain.GatewayOrder(order), nil
}

func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, c.secret)
}
