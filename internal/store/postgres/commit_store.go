package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// CommitStore implements domain.CommitStore, writing the registry, audit
// trail, ledger rows and flags of one engine operation in one transaction.
type CommitStore struct {
	pool *pgxpool.Pool
}

// NewCommitStore creates a new CommitStore backed by the given connection pool.
func NewCommitStore(pool *pgxpool.Pool) *CommitStore {
	return &CommitStore{pool: pool}
}

// SaveCommit persists c atomically.
func (s *CommitStore) SaveCommit(ctx context.Context, c domain.Commit) error {
	if c.Empty() {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, a := range c.Upserts {
			if err := upsertAuction(ctx, tx, a); err != nil {
				return err
			}
		}
		for _, id := range c.Deletes {
			if err := deleteAuction(ctx, tx, id); err != nil {
				return err
			}
		}
		if err := appendEvents(ctx, tx, c.Events); err != nil {
			return err
		}
		if err := saveAccounts(ctx, tx, c.Accounts); err != nil {
			return err
		}
		if err := saveItems(ctx, tx, c.Items); err != nil {
			return err
		}
		if c.Flags != nil {
			return saveFlags(ctx, tx, *c.Flags)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: save commit: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CommitStore = (*CommitStore)(nil)
