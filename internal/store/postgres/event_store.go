package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL. Events are stored
// whole as JSONB; kind, auction id and time are lifted into columns for
// filtering.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

func appendEvents(ctx context.Context, q querier, events []domain.Event) error {
	const query = `
		INSERT INTO auction_events (id, kind, auction_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("postgres: marshal event %s: %w", e.ID, err)
		}
		if _, err := q.Exec(ctx, query, e.ID, string(e.Kind), e.AuctionID.Hex(), payload, e.Time()); err != nil {
			return fmt.Errorf("postgres: append event %s: %w", e.Kind, err)
		}
	}
	return nil
}

// Append stores events in order. Re-appending an event id is a no-op.
func (s *EventStore) Append(ctx context.Context, events []domain.Event) error {
	return appendEvents(ctx, s.pool, events)
}

// ListByAuction returns the events of one auction in commit order.
func (s *EventStore) ListByAuction(ctx context.Context, id domain.AuctionID, opts domain.ListOpts) ([]domain.Event, error) {
	query := `SELECT payload FROM auction_events WHERE auction_id = $1`
	args := []any{id.Hex()}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND occurred_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY seq"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return s.list(ctx, query, args...)
}

// ListBefore returns every event that occurred strictly before the cutoff,
// oldest first.
func (s *EventStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Event, error) {
	return s.list(ctx, `SELECT payload FROM auction_events WHERE occurred_at < $1 ORDER BY seq`, before)
}

// DeleteBefore removes every event that occurred strictly before the cutoff.
func (s *EventStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auction_events WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *EventStore) list(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		var e domain.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
