package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const upsertAccountSQL = `
	INSERT INTO ledger_accounts (address, native, wrapped, updated_at)
	VALUES ($1, $2::numeric, $3::numeric, NOW())
	ON CONFLICT (address) DO UPDATE SET
		native     = EXCLUDED.native,
		wrapped    = EXCLUDED.wrapped,
		updated_at = NOW()`

const upsertItemSQL = `
	INSERT INTO ledger_items (collection, item_id, owner, approved, creator, creator_share, updated_at)
	VALUES ($1, $2::numeric, $3, $4, $5, $6::numeric, NOW())
	ON CONFLICT (collection, item_id) DO UPDATE SET
		owner      = EXCLUDED.owner,
		approved   = EXCLUDED.approved,
		updated_at = NOW()`

func saveAccounts(ctx context.Context, q querier, accounts []domain.LedgerAccount) error {
	for _, a := range accounts {
		if _, err := q.Exec(ctx, upsertAccountSQL, a.Address.Hex(), numeric(a.Native), numeric(a.Wrapped)); err != nil {
			return fmt.Errorf("postgres: save account %s: %w", a.Address.Hex(), err)
		}
	}
	return nil
}

func saveItems(ctx context.Context, q querier, items []domain.ItemRecord) error {
	for _, it := range items {
		_, err := q.Exec(ctx, upsertItemSQL,
			it.Collection.Hex(), numeric(it.ItemID), it.Owner.Hex(), it.Approved.Hex(),
			it.Creator.Hex(), it.CreatorShare.String(),
		)
		if err != nil {
			return fmt.Errorf("postgres: save item %s #%s: %w", it.Collection.Hex(), numeric(it.ItemID), err)
		}
	}
	return nil
}

// SaveAccounts upserts balance rows in one batch.
func (s *LedgerStore) SaveAccounts(ctx context.Context, accounts []domain.LedgerAccount) error {
	if len(accounts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range accounts {
		batch.Queue(upsertAccountSQL, a.Address.Hex(), numeric(a.Native), numeric(a.Wrapped))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range accounts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: save account batch item %d: %w", i, err)
		}
	}
	return nil
}

// SaveItems upserts item custody rows.
func (s *LedgerStore) SaveItems(ctx context.Context, items []domain.ItemRecord) error {
	return saveItems(ctx, s.pool, items)
}

// LoadAccounts returns every stored balance row.
func (s *LedgerStore) LoadAccounts(ctx context.Context) ([]domain.LedgerAccount, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, native::text, wrapped::text FROM ledger_accounts`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerAccount
	for rows.Next() {
		var addr, native, wrapped string
		if err := rows.Scan(&addr, &native, &wrapped); err != nil {
			return nil, fmt.Errorf("postgres: scan account: %w", err)
		}
		a := domain.LedgerAccount{Address: common.HexToAddress(addr)}
		if a.Native, err = parseNumeric(native, "native"); err != nil {
			return nil, err
		}
		if a.Wrapped, err = parseNumeric(wrapped, "wrapped"); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load accounts rows: %w", err)
	}
	return out, nil
}

// LoadItems returns every stored item row.
func (s *LedgerStore) LoadItems(ctx context.Context) ([]domain.ItemRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT collection, item_id::text, owner, approved, creator, creator_share::text FROM ledger_items`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load items: %w", err)
	}
	defer rows.Close()

	var out []domain.ItemRecord
	for rows.Next() {
		var coll, itemID, owner, approved, creator, share string
		if err := rows.Scan(&coll, &itemID, &owner, &approved, &creator, &share); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		r := domain.ItemRecord{
			Collection: common.HexToAddress(coll),
			Owner:      common.HexToAddress(owner),
			Approved:   common.HexToAddress(approved),
			Creator:    common.HexToAddress(creator),
		}
		if r.ItemID, err = parseNumeric(itemID, "item_id"); err != nil {
			return nil, err
		}
		if r.CreatorShare, err = decimal.NewFromString(share); err != nil {
			return nil, fmt.Errorf("postgres: invalid creator_share %q: %w", share, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load items rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.LedgerStore = (*LedgerStore)(nil)
