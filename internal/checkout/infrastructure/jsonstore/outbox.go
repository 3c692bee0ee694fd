package jsonstore

import (
	"context"
	"time"

	"github.com/legendryboy69/elyvra/pkg/outbox"
)

// The ledger doubles as the outbox store for the file backend: events share
// the ledger lock, so appends and relay claims never race.

// LockBatch claims up to batchSize publishable events for relayID. An event
// is publishable when pending, or when in progress past its lease (a relay
// died mid-batch).
func (l *Ledger) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	var locked []outbox.Event
	for i := range l.events {
		if len(locked) >= batchSize {
			break
		}
		e := &l.events[i]
		expired := e.Status == outbox.StatusInProgress && e.LeaseUntil != nil && now.After(*e.LeaseUntil)
		if e.Status != outbox.StatusPending && !expired {
			continue
		}
		until := now.Add(lease)
		e.Status = outbox.StatusInProgress
		e.RelayID = relayID
		e.LeaseUntil = &until
		locked = append(locked, *e)
	}
	if len(locked) == 0 {
		return nil, nil
	}
	if err := l.persistEventsLocked(); err != nil {
		return nil, err
	}
	return locked, nil
}

func (l *Ledger) MarkSent(ctx context.Context, ids []int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range l.events {
		if _, ok := set[l.events[i].ID]; !ok {
			continue
		}
		l.events[i].Status = outbox.StatusSent
		l.events[i].LeaseUntil = nil
	}
	return l.persistEventsLocked()
}

func (l *Ledger) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.events {
		if l.events[i].ID != id {
			continue
		}
		l.events[i].Status = outbox.StatusFailed
		l.events[i].LeaseUntil = nil
		l.events[i].RetryCount++
		l.events[i].LastError = errMsg
		break
	}
	return l.persistEventsLocked()
}
