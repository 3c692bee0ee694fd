package domain

import "time"

type PaymentStatus string

const (
	StatusCreated PaymentStatus = "created"
	StatusPaid    PaymentStatus = "paid"
)

// MinorUnitScale converts a catalog price into the gateway's amount unit
// (rupees to paise). The gateway API expects amounts in minor units.
const MinorUnitScale = 100

// GatewayOrder is the payment provider's order object. It is handed back to
// the storefront verbatim because the checkout widget renders from
// provider-specific fields.
type GatewayOrder map[string]any

// ID returns the gateway order identifier, empty when absent.
func (o GatewayOrder) ID() string {
	id, _ := o["id"].(string)
	return id
}

// PaymentRecord tracks one gateway order from creation to download. The
// ledger keys records by the gateway order id. JSON names match the persisted
// ledger document.
type PaymentRecord struct {
	OrderID      string        `json:"orderId"`
	Status       PaymentStatus `json:"status"`
	ProductID    string        `json:"productId"`
	ProductTitle string        `json:"productTitle"`
	AmountMinor  int64         `json:"amount"`
	Currency     string        `json:"currency"`
	Receipt      string        `json:"receipt"`
	BuyerName    string        `json:"buyerName,omitempty"`
	BuyerEmail   string        `json:"buyerEmail,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	// Set when the record transitions to paid.
	GatewayPaymentID  string     `json:"gatewayPaymentId,omitempty"`
	Signature         string     `json:"signature,omitempty"`
	DownloadToken     string     `json:"downloadToken,omitempty"`
	DownloadExpiresAt *time.Time `json:"downloadExpiresAt,omitempty"`
	DownloadUsedAt    *time.Time `json:"downloadUsedAt,omitempty"`
}

// NewPaymentRecord builds the created-status record persisted when a gateway
// order is opened for a product.
func NewPaymentRecord(orderID, receipt, currency string, p Product, buyerName, buyerEmail string) PaymentRecord {
	now := time.Now().UTC()
	return PaymentRecord{
		OrderID:      orderID,
		Status:       StatusCreated,
		ProductID:    p.ID,
		ProductTitle: p.Title,
		AmountMinor:  p.Price * MinorUnitScale,
		Currency:     currency,
		Receipt:      receipt,
		BuyerName:    buyerName,
		BuyerEmail:   buyerEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// PaidUpdate carries the fields applied when a created record transitions to
// paid. The transition is one-way and atomic per order id.
type PaidUpdate struct {
	GatewayPaymentID  string
	Signature         string
	DownloadToken     string
	DownloadExpiresAt time.Time
}

// DownloadExpired reports whether the download window has closed. A record
// with no expiry set has no usable download.
func (r PaymentRecord) DownloadExpired(now time.Time) bool {
	return r.DownloadExpiresAt == nil || !now.Before(*r.DownloadExpiresAt)
}
