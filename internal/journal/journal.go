// Package journal persists offer lifecycle transitions to Postgres so the
// console can show per-order dispatch history after the in-memory map is
// gone.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/dispatchly/opsconsole/internal/offer"
)

const schema = `
CREATE TABLE IF NOT EXISTS offer_events (
	id          BIGSERIAL PRIMARY KEY,
	order_id    BIGINT      NOT NULL,
	driver_id   BIGINT      NOT NULL,
	status      TEXT        NOT NULL,
	attempt_id  TEXT        NOT NULL DEFAULT '',
	note        TEXT        NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_offer_events_order ON offer_events (order_id, id DESC);
`

// Entry is one recorded offer transition.
type Entry struct {
	OrderID    int64        `json:"order_id"`
	DriverID   int64        `json:"driver_id"`
	Status     offer.Status `json:"status"`
	AttemptID  string       `json:"attempt_id,omitempty"`
	Note       string       `json:"note,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Journal is an append-only record of offer transitions backed by a pgx
// pool. It satisfies offer.Recorder.
type Journal struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and ensures the offer_events table exists.
func New(ctx context.Context, dsn string) (*Journal, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	log.Info().Msg("offer journal ready")
	return &Journal{pool: pool}, nil
}

// Record appends one transition. OccurredAt comes from the offer's
// resolution time when present, its offered time otherwise.
func (j *Journal) Record(ctx context.Context, o offer.Offer) error {
	occurredAt := time.Now()
	switch {
	case o.ResolvedAt != nil:
		occurredAt = *o.ResolvedAt
	case o.OfferedAt != nil:
		occurredAt = *o.OfferedAt
	}

	_, err := j.pool.Exec(ctx,
		`INSERT INTO offer_events (order_id, driver_id, status, attempt_id, note, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		o.OrderID, o.DriverID, string(o.Status), o.AttemptID, o.Note, occurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert offer event: %w", err)
	}
	return nil
}

// RecentForOrder returns the most recent transitions for an order, newest
// first.
func (j *Journal) RecentForOrder(ctx context.Context, orderID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.pool.Query(ctx,
		`SELECT order_id, driver_id, status, attempt_id, note, occurred_at
		 FROM offer_events
		 WHERE order_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		orderID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query offer events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.OrderID, &e.DriverID, &status, &e.AttemptID, &e.Note, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan offer event: %w", err)
		}
		e.Status = offer.Status(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer events: %w", err)
	}
	return entries, nil
}

// Close releases the connection pool.
func (j *Journal) Close() {
	j.pool.Close()
}
