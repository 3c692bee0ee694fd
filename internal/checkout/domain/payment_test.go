package domain

import (
	"testing"
	"time"
)

func TestDownloadExpired(t *testing.T) {
	expires := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expires *time.Time
		now     time.Time
		want    bool
	}{
		{"before expiry", &expires, expires.Add(-time.Second), false},
		{"at expiry", &expires, expires, true},
		{"after expiry", &expires, expires.Add(time.Second), true},
		{"no expiry set", nil, expires, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := PaymentRecord{DownloadExpiresAt: tt.expires}
			if got := rec.DownloadExpired(tt.now); got != tt.want {
				t.Errorf("DownloadExpired(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestNewPaymentRecord(t *testing.T) {
	p := Product{ID: "prod-1", Title: "Go Patterns", Price: 199}
	rec := NewPaymentRecord("order_1", "rcpt-1", "INR", p, "Asha", "asha@example.com")

	if rec.Status != StatusCreated {
		t.Errorf("status = %s, want created", rec.Status)
	}
	if rec.AmountMinor != 19900 {
		t.Errorf("amount = %d, want price scaled to minor units", rec.AmountMinor)
	}
	if rec.DownloadExpiresAt != nil || rec.DownloadToken != "" {
		t.Error("fresh record carries download fields")
	}
	if !rec.CreatedAt.Equal(rec.UpdatedAt) {
		t.Error("created and updated timestamps differ on a fresh record")
	}
}
