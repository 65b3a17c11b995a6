package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given connection pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

const upsertAuctionSQL = `
	INSERT INTO auctions (
		id, item_collection, item_id, amount, duration,
		first_bid_time, reserve_price, curator_fee_percent,
		curator, bidder, funds_recipient, updated_at
	) VALUES (
		$1, $2, $3::numeric, $4::numeric, $5,
		$6, $7::numeric, $8,
		$9, $10, $11, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		amount          = EXCLUDED.amount,
		duration        = EXCLUDED.duration,
		first_bid_time  = EXCLUDED.first_bid_time,
		bidder          = EXCLUDED.bidder,
		updated_at      = NOW()`

func upsertAuction(ctx context.Context, q querier, a domain.Auction) error {
	_, err := q.Exec(ctx, upsertAuctionSQL,
		a.ID.Hex(), a.ItemCollection.Hex(), numeric(a.ItemID), numeric(a.Amount), int64(a.Duration),
		int64(a.FirstBidTime), numeric(a.ReservePrice), int16(a.CuratorFeePercent),
		a.Curator.Hex(), a.Bidder.Hex(), a.FundsRecipient.Hex(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert auction %s: %w", a.ID.Hex(), err)
	}
	return nil
}

func deleteAuction(ctx context.Context, q querier, id domain.AuctionID) error {
	if _, err := q.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id.Hex()); err != nil {
		return fmt.Errorf("postgres: delete auction %s: %w", id.Hex(), err)
	}
	return nil
}

// Upsert inserts or updates a single auction.
func (s *AuctionStore) Upsert(ctx context.Context, a domain.Auction) error {
	return upsertAuction(ctx, s.pool, a)
}

// Delete removes an auction. Deleting a missing row is not an error.
func (s *AuctionStore) Delete(ctx context.Context, id domain.AuctionID) error {
	return deleteAuction(ctx, s.pool, id)
}

const auctionCols = `id, item_collection, item_id::text, amount::text, duration,
	first_bid_time, reserve_price::text, curator_fee_percent,
	curator, bidder, funds_recipient`

func scanAuction(row pgx.Row) (domain.Auction, error) {
	var (
		a                                domain.Auction
		id, coll, curator, bidder, funds string
		itemID, amount, reserve          string
		duration, firstBid               int64
		fee                              int16
	)
	if err := row.Scan(&id, &coll, &itemID, &amount, &duration, &firstBid, &reserve, &fee, &curator, &bidder, &funds); err != nil {
		return domain.Auction{}, err
	}
	var err error
	if a.ID, err = domain.ParseAuctionID(id); err != nil {
		return domain.Auction{}, fmt.Errorf("postgres: auction id %q: %w", id, err)
	}
	if a.ItemID, err = parseNumeric(itemID, "item_id"); err != nil {
		return domain.Auction{}, err
	}
	if a.Amount, err = parseNumeric(amount, "amount"); err != nil {
		return domain.Auction{}, err
	}
	if a.ReservePrice, err = parseNumeric(reserve, "reserve_price"); err != nil {
		return domain.Auction{}, err
	}
	a.ItemCollection = common.HexToAddress(coll)
	a.Duration = uint64(duration)
	a.FirstBidTime = uint64(firstBid)
	a.CuratorFeePercent = uint8(fee)
	a.Curator = common.HexToAddress(curator)
	a.Bidder = common.HexToAddress(bidder)
	a.FundsRecipient = common.HexToAddress(funds)
	return a, nil
}

// GetByID retrieves an auction by its id.
func (s *AuctionStore) GetByID(ctx context.Context, id domain.AuctionID) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+auctionCols+` FROM auctions WHERE id = $1`, id.Hex())
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: get auction %s: %w", id.Hex(), err)
	}
	return a, nil
}

// ListActive returns auctions ordered by most recently created.
func (s *AuctionStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	query := `SELECT ` + auctionCols + ` FROM auctions ORDER BY created_at DESC, id`
	args := []any{}
	argIdx := 1
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

// ListAll returns every stored auction. It is used to restore the engine at
// startup.
func (s *AuctionStore) ListAll(ctx context.Context) ([]domain.Auction, error) {
	return s.list(ctx, `SELECT `+auctionCols+` FROM auctions ORDER BY id`)
}

func (s *AuctionStore) list(ctx context.Context, query string, args ...any) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions: %w", err)
	}
	defer rows.Close()

	var out []domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan auction: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list auctions rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.AuctionStore = (*AuctionStore)(nil)
