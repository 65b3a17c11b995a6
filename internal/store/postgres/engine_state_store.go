package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// EngineStateStore implements domain.EngineStateStore using a single-row table.
type EngineStateStore struct {
	pool *pgxpool.Pool
}

// NewEngineStateStore creates a new EngineStateStore backed by the given pool.
func NewEngineStateStore(pool *pgxpool.Pool) *EngineStateStore {
	return &EngineStateStore{pool: pool}
}

func saveFlags(ctx context.Context, q querier, f domain.EngineFlags) error {
	// recovery_enabled can only ever be cleared, never set again.
	const query = `
		INSERT INTO engine_state (singleton, paused, recovery_enabled, updated_at)
		VALUES (TRUE, $1, $2, NOW())
		ON CONFLICT (singleton) DO UPDATE SET
			paused           = EXCLUDED.paused,
			recovery_enabled = engine_state.recovery_enabled AND EXCLUDED.recovery_enabled,
			updated_at       = NOW()`
	if _, err := q.Exec(ctx, query, f.Paused, f.RecoveryEnabled); err != nil {
		return fmt.Errorf("postgres: save engine flags: %w", err)
	}
	return nil
}

// SaveFlags stores the process-wide flags.
func (s *EngineStateStore) SaveFlags(ctx context.Context, f domain.EngineFlags) error {
	return saveFlags(ctx, s.pool, f)
}

// LoadFlags returns the stored flags, or domain.ErrNotFound on a fresh
// database.
func (s *EngineStateStore) LoadFlags(ctx context.Context) (domain.EngineFlags, error) {
	var f domain.EngineFlags
	err := s.pool.QueryRow(ctx,
		`SELECT paused, recovery_enabled, updated_at FROM engine_state WHERE singleton`,
	).Scan(&f.Paused, &f.RecoveryEnabled, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EngineFlags{}, domain.ErrNotFound
		}
		return domain.EngineFlags{}, fmt.Errorf("postgres: load engine flags: %w", err)
	}
	return f, nil
}

// Compile-time interface check.
var _ domain.EngineStateStore = (*EngineStateStore)(nil)
