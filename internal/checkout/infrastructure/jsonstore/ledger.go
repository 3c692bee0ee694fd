package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/legendryboy69/elyvra/internal/checkout/domain"
	"github.com/legendryboy69/elyvra/pkg/outbox"
)

// Ledger is the flat-file payment store. A single mutex serializes every
// read-modify-write, and each mutation rewrites the whole document through a
// temp file plus rename, so concurrent requests never interleave partial
// writes. Token lookups go through an in-memory index instead of scanning.
//
// The ledger document is a JSON object keyed by gateway order id. Outbox
// events live in a sibling document under the same lock; the two files are
// written record-first, so a crash between writes can drop an event but never
// a payment.
type Ledger struct {
	path       string
	eventsPath string

	mu      sync.RWMutex
	records map[string]domain.PaymentRecord
	byToken map[string]string
	events  []outbox.Event
	nextID  int64
}

// OpenLedger loads the ledger document at path, creating its directory on
// first run. Outbox events are kept in outbox.json next to it.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{
		path:       path,
		eventsPath: filepath.Join(filepath.Dir(path), "outbox.json"),
		records:    make(map[string]domain.PaymentRecord),
		byToken:    make(map[string]string),
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load() error {
	raw, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read ledger: %w", err)
	default:
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &l.records); err != nil {
				return fmt.Errorf("parse ledger %s: %w", l.path, err)
			}
		}
	}
	for id, rec := range l.records {
		if rec.DownloadToken != "" {
			l.byToken[rec.DownloadToken] = id
		}
	}

	raw, err = os.ReadFile(l.eventsPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read outbox: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &l.events); err != nil {
			return fmt.Errorf("parse outbox %s: %w", l.eventsPath, err)
		}
	}
	for _, e := range l.events {
		if e.ID >= l.nextID {
			l.nextID = e.ID + 1
		}
	}
	if l.nextID == 0 {
		l.nextID = 1
	}
	return nil
}

// Create records a fresh gateway order along with its outbox event. A second
// record for the same order id is a conflict.
func (l *Ledger) Create(ctx context.Context, rec domain.PaymentRecord, eventType string, payload []byte, traceparent string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[rec.OrderID]; exists {
		return fmt.Errorf("order %s already recorded: %w", rec.OrderID, domain.ErrConflict)
	}
	l.records[rec.OrderID] = rec
	l.appendEventLocked(rec.OrderID, eventType, payload, traceparent)

	if err := l.persistRecordsLocked(); err != nil {
		delete(l.records, rec.OrderID)
		l.popEventLocked()
		return fmt.Errorf("persist ledger: %w", err)
	}
	if err := l.persistEventsLocked(); err != nil {
		l.popEventLocked()
		return fmt.Errorf("persist outbox: %w", err)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, orderID string) (domain.PaymentRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[orderID]
	if !ok {
		return domain.PaymentRecord{}, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return rec, nil
}

// MarkPaid flips a record from created to paid, attaching the payment id,
// signature and download token. Only the first transition wins; a record
// already paid (or missing) is reported as such so the caller can decide
// whether the callback is a replay.
func (l *Ledger) MarkPaid(ctx context.Context, orderID string, upd domain.PaidUpdate, eventType string, payload []byte, traceparent string) (domain.PaymentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[orderID]
	if !ok {
		return domain.PaymentRecord{}, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if rec.Status != domain.StatusCreated {
		return domain.PaymentRecord{}, fmt.Errorf("order %s is %s: %w", orderID, rec.Status, domain.ErrConflict)
	}

	prev := rec
	expires := upd.DownloadExpiresAt
	rec.Status = domain.StatusPaid
	rec.GatewayPaymentID = upd.GatewayPaymentID
	rec.Signature = upd.Signature
	rec.DownloadToken = upd.DownloadToken
	rec.DownloadExpiresAt = &expires
	rec.UpdatedAt = time.Now().UTC()
	l.records[orderID] = rec
	l.byToken[upd.DownloadToken] = orderID
	l.appendEventLocked(orderID, eventType, payload, traceparent)

	if err := l.persistRecordsLocked(); err != nil {
		l.records[orderID] = prev
		delete(l.byToken, upd.DownloadToken)
		l.popEventLocked()
		return domain.PaymentRecord{}, fmt.Errorf("persist ledger: %w", err)
	}
	if err := l.persistEventsLocked(); err != nil {
		l.popEventLocked()
		return domain.PaymentRecord{}, fmt.Errorf("persist outbox: %w", err)
	}
	return rec, nil
}

func (l *Ledger) FindByToken(ctx context.Context, token string) (domain.PaymentRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	orderID, ok := l.byToken[token]
	if !ok {
		return domain.PaymentRecord{}, fmt.Errorf("download token: %w", domain.ErrNotFound)
	}
	return l.records[orderID], nil
}

// ConsumeToken marks a download token used. The first caller gets the record
// back; every later one gets ErrTokenUsed. Expiry is the caller's concern.
func (l *Ledger) ConsumeToken(ctx context.Context, token string) (domain.PaymentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	orderID, ok := l.byToken[token]
	if !ok {
		return domain.PaymentRecord{}, fmt.Errorf("download token: %w", domain.ErrNotFound)
	}
	rec := l.records[orderID]
	if rec.DownloadUsedAt != nil {
		return domain.PaymentRecord{}, fmt.Errorf("order %s: %w", orderID, domain.ErrTokenUsed)
	}

	prev := rec
	used := time.Now().UTC()
	rec.DownloadUsedAt = &used
	rec.UpdatedAt = used
	l.records[orderID] = rec

	if err := l.persistRecordsLocked(); err != nil {
		l.records[orderID] = prev
		return domain.PaymentRecord{}, fmt.Errorf("persist ledger: %w", err)
	}
	return rec, nil
}

// All returns a copy of every payment record keyed by order id.
func (l *Ledger) All(ctx context.Context) (map[string]domain.PaymentRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]domain.PaymentRecord, len(l.records))
	for id, rec := range l.records {
		out[id] = rec
	}
	return out, nil
}

// Close is part of the store contract. Every mutation lands on disk before
// it returns, so there is nothing left to flush.
func (l *Ledger) Close() error { return nil }

func (l *Ledger) appendEventLocked(aggregateID, eventType string, payload []byte, traceparent string) {
	l.events = append(l.events, outbox.Event{
		ID:          l.nextID,
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     payload,
		Traceparent: traceparent,
		CreatedAt:   time.Now().UTC(),
		Status:      outbox.StatusPending,
	})
	l.nextID++
}

func (l *Ledger) popEventLocked() {
	l.events = l.events[:len(l.events)-1]
	l.nextID--
}

func (l *Ledger) persistRecordsLocked() error {
	return writeAtomic(l.path, l.records)
}

func (l *Ledger) persistEventsLocked() error {
	return writeAtomic(l.eventsPath, l.events)
}

func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
