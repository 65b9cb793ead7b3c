package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderRecord is an order or intent created through this service, with the
// response returned for it so a retried request can be answered identically.
type OrderRecord struct {
	Provider       string
	ProviderID     string
	BookingID      string
	UserID         string
	Amount         int64
	Currency       string
	IdempotencyKey string
	Response       []byte
	CreatedAt      time.Time
}

// Ledger remembers created orders and processed webhook events.
type Ledger interface {
	RecordOrder(ctx context.Context, o OrderRecord) error
	OrderByKey(ctx context.Context, provider, key string) (*OrderRecord, error)
	// MarkEvent records a webhook event and reports whether it was new.
	MarkEvent(ctx context.Context, provider, eventID string) (bool, error)
}

// --- memory ---

type MemoryLedger struct {
	mu     sync.Mutex
	orders map[string]OrderRecord // provider:idempotencyKey
	events map[string]time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{orders: map[string]OrderRecord{}, events: map[string]time.Time{}}
}

func (l *MemoryLedger) RecordOrder(_ context.Context, o OrderRecord) error {
	if o.IdempotencyKey == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	l.orders[o.Provider+":"+o.IdempotencyKey] = o
	return nil
}

func (l *MemoryLedger) OrderByKey(_ context.Context, provider, key string) (*OrderRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[provider+":"+key]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (l *MemoryLedger) MarkEvent(_ context.Context, provider, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := provider + ":" + eventID
	if _, seen := l.events[k]; seen {
		return false, nil
	}
	l.events[k] = time.Now()
	return true, nil
}

// --- postgres ---

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS payment_orders (
	provider        TEXT NOT NULL,
	provider_id     TEXT NOT NULL,
	booking_id      TEXT NOT NULL,
	user_id         TEXT NOT NULL DEFAULT '',
	amount          BIGINT NOT NULL,
	currency        TEXT NOT NULL,
	idempotency_key TEXT NOT NULL DEFAULT '',
	response        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (provider, provider_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS payment_orders_idempotency
	ON payment_orders (provider, idempotency_key) WHERE idempotency_key <> '';
CREATE TABLE IF NOT EXISTS webhook_events (
	provider    TEXT NOT NULL,
	event_id    TEXT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (provider, event_id)
);`

type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}

func (l *PostgresLedger) RecordOrder(ctx context.Context, o OrderRecord) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO payment_orders (provider, provider_id, booking_id, user_id, amount, currency, idempotency_key, response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING`,
		o.Provider, o.ProviderID, o.BookingID, o.UserID, o.Amount, o.Currency, o.IdempotencyKey, o.Response)
	if err != nil {
		return fmt.Errorf("record order: %w", err)
	}
	return nil
}

func (l *PostgresLedger) OrderByKey(ctx context.Context, provider, key string) (*OrderRecord, error) {
	var o OrderRecord
	err := l.pool.QueryRow(ctx, `
		SELECT provider, provider_id, booking_id, user_id, amount, currency, idempotency_key, response, created_at
		FROM payment_orders WHERE provider = $1 AND idempotency_key = $2`, provider, key).
		Scan(&o.Provider, &o.ProviderID, &o.BookingID, &o.UserID, &o.Amount, &o.Currency, &o.IdempotencyKey, &o.Response, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

func (l *PostgresLedger) MarkEvent(ctx context.Context, provider, eventID string) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO webhook_events (provider, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		provider, eventID)
	if err != nil {
		return false, fmt.Errorf("mark webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
