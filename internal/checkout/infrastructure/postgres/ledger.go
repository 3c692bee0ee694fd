package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/legendryboy69/elyvra/internal/checkout/domain"
)

// Ledger is the Postgres payment store. Record uniqueness and the
// created-to-paid transition are enforced by the database itself, so several
// storefront replicas can share one ledger.
type Ledger struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewLedger(log *slog.Logger, pool *pgxpool.Pool) *Ledger {
	return &Ledger{log: log, pool: pool}
}

const recordColumns = `order_id, status, product_id, product_title, amount_minor, currency, receipt,
	buyer_name, buyer_email, created_at, updated_at,
	gateway_payment_id, signature, download_token, download_expires_at, download_used_at`

func scanRecord(row pgx.Row) (domain.PaymentRecord, error) {
	var rec domain.PaymentRecord
	err := row.Scan(
		&rec.OrderID, &rec.Status, &rec.ProductID, &rec.ProductTitle, &rec.AmountMinor,
		&rec.Currency, &rec.Receipt, &rec.BuyerName, &rec.BuyerEmail, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.GatewayPaymentID, &rec.Signature, &rec.DownloadToken, &rec.DownloadExpiresAt, &rec.DownloadUsedAt,
	)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	return rec, nil
}

// Create inserts a fresh gateway order and its outbox event in one
// transaction.
func (l *Ledger) Create(ctx context.Context, rec domain.PaymentRecord, eventType string, payload []byte, traceparent string) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO payments (order_id, status, product_id, product_title, amount_minor, currency, receipt, buyer_name, buyer_email, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.OrderID, rec.Status, rec.ProductID, rec.ProductTitle, rec.AmountMinor,
		rec.Currency, rec.Receipt, rec.BuyerName, rec.BuyerEmail, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("order %s already recorded: %w", rec.OrderID, domain.ErrConflict)
		}
		return err
	}

	if err := insertEvent(ctx, tx, rec.OrderID, eventType, payload, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *Ledger) Get(ctx context.Context, orderID string) (domain.PaymentRecord, error) {
	rec, err := scanRecord(l.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM payments WHERE order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PaymentRecord{}, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return rec, err
}

// MarkPaid transitions a record from created to paid. The WHERE clause makes
// the transition a compare-and-set: of two concurrent callbacks for the same
// order, exactly one update lands and the other reports ErrConflict.
func (l *Ledger) MarkPaid(ctx context.Context, orderID string, upd domain.PaidUpdate, eventType string, payload []byte, traceparent string) (domain.PaymentRecord, error) {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `UPDATE payments
			SET status=$2, gateway_payment_id=$3, signature=$4, download_token=$5, download_expires_at=$6, updated_at=now()
			WHERE order_id=$1 AND status=$7
			RETURNING `+recordColumns,
		orderID, domain.StatusPaid, upd.GatewayPaymentID, upd.Signature, upd.DownloadToken, upd.DownloadExpiresAt, domain.StatusCreated)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var status domain.PaymentStatus
		switch err := tx.QueryRow(ctx, `SELECT status FROM payments WHERE order_id=$1`, orderID).Scan(&status); {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.PaymentRecord{}, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		case err != nil:
			return domain.PaymentRecord{}, err
		default:
			return domain.PaymentRecord{}, fmt.Errorf("order %s is %s: %w", orderID, status, domain.ErrConflict)
		}
	}
	if err != nil {
		return domain.PaymentRecord{}, err
	}

	if err := insertEvent(ctx, tx, orderID, eventType, payload, traceparent); err != nil {
		return domain.PaymentRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.PaymentRecord{}, err
	}
	return rec, nil
}

func (l *Ledger) FindByToken(ctx context.Context, token string) (domain.PaymentRecord, error) {
	if token == "" {
		return domain.PaymentRecord{}, fmt.Errorf("download token: %w", domain.ErrNotFound)
	}
	rec, err := scanRecord(l.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM payments WHERE download_token=$1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PaymentRecord{}, fmt.Errorf("download token: %w", domain.ErrNotFound)
	}
	return rec, err
}

// ConsumeToken marks a token used, first caller wins. The used-at guard in
// the WHERE clause is what makes single-use downloads race-free.
func (l *Ledger) ConsumeToken(ctx context.Context, token string) (domain.PaymentRecord, error) {
	if token == "" {
		return domain.PaymentRecord{}, fmt.Errorf("download token: %w", domain.ErrNotFound)
	}
	row := l.pool.QueryRow(ctx, `UPDATE payments
			SET download_used_at=now(), updated_at=now()
			WHERE download_token=$1 AND download_used_at IS NULL
			RETURNING `+recordColumns, token)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var usedAt *time.Time
		switch err := l.pool.QueryRow(ctx, `SELECT download_used_at FROM payments WHERE download_token=$1`, token).Scan(&usedAt); {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.PaymentRecord{}, fmt.Errorf("download token: %w", domain.ErrNotFound)
		case err != nil:
			return domain.PaymentRecord{}, err
		default:
			return domain.PaymentRecord{}, fmt.Errorf("download token: %w", domain.ErrTokenUsed)
		}
	}
	return rec, err
}

func (l *Ledger) All(ctx context.Context) (map[string]domain.PaymentRecord, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+recordColumns+` FROM payments ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.PaymentRecord)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.OrderID] = rec
	}
	return out, rows.Err()
}

func (l *Ledger) Close() error {
	l.pool.Close()
	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_id, type, payload, traceparent, status) VALUES ($1,$2,$3,$4,'pending')`,
		aggregateID, eventType, payload, traceparent)
	return err
}
