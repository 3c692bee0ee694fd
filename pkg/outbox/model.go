package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is one ledger mutation recorded for publication. Stores append
// events atomically with the mutation they describe, so a committed mutation
// is never missing its event. Delivery is at-least-once: a crash between
// publish and MarkSent re-delivers.
type Event struct {
	ID          int64      `json:"id"`
	AggregateID string     `json:"aggregateId"` // gateway order id
	Type        string     `json:"type"`
	Payload     []byte     `json:"payload"`
	Traceparent string     `json:"traceparent,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Status      Status     `json:"status"`
	RelayID     string     `json:"relayId,omitempty"`
	LeaseUntil  *time.Time `json:"leaseUntil,omitempty"`
	RetryCount  int        `json:"retryCount,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}
