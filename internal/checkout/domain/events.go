package domain

// Events recorded in the outbox alongside ledger mutations and published to
// the checkout event stream.

const (
	EventOrderCreated    = "checkout.order.created"
	EventPaymentCaptured = "checkout.payment.captured"
)

type OrderCreated struct {
	OrderID     string `json:"orderId"`
	ProductID   string `json:"productId"`
	Receipt     string `json:"receipt"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
}

type PaymentCaptured struct {
	OrderID          string `json:"orderId"`
	GatewayPaymentID string `json:"paymentId"`
	ProductID        string `json:"productId"`
	AmountMinor      int64  `json:"amount"`
}
