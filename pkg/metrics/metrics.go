package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout flow counters, served on /metrics.
var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elyvra_orders_created_total",
		Help: "Gateway orders created and recorded in the ledger.",
	})
	PaymentsVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elyvra_payments_verified_total",
		Help: "Payment callbacks verified and promoted to paid.",
	})
	SignaturesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elyvra_signatures_rejected_total",
		Help: "Payment callbacks rejected for a signature mismatch.",
	})
	DownloadsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elyvra_downloads_served_total",
		Help: "Download tokens resolved to a file stream.",
	})
	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elyvra_outbox_published_total",
		Help: "Outbox events published to the broker.",
	})
	OutboxFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elyvra_outbox_failed_total",
		Help: "Outbox events whose publish attempt failed.",
	})
)
