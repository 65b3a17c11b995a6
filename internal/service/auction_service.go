package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctionhouse/internal/auction"
	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/ledger"
)

// ErrPersist marks an operation whose commit could not be written to the
// database. The engine reverts such an operation.
var ErrPersist = errors.New("service: persist commit")

// AuctionService is the single writer in front of the engine. It serializes
// every call, persists each commit atomically, refreshes the read cache and
// fans committed events out to publishers.
type AuctionService struct {
	mu     sync.Mutex
	house  *auction.House
	ledger *ledger.Ledger

	commits    domain.CommitStore
	events     domain.EventStore
	cache      domain.AuctionCache
	publishers []domain.EventPublisher
	logger     *slog.Logger

	// pending is the commit saved by the last successful operation.
	pending domain.Commit
}

// AuctionServiceConfig carries the optional collaborators. Nil stores and
// caches are skipped, which keeps the service usable in tests and in
// single-node setups without Redis.
type AuctionServiceConfig struct {
	Commits    domain.CommitStore
	Events     domain.EventStore
	Cache      domain.AuctionCache
	Publishers []domain.EventPublisher
}

// NewAuctionService creates an AuctionService around a House and the Ledger
// it executes against.
func NewAuctionService(house *auction.House, l *ledger.Ledger, cfg AuctionServiceConfig, logger *slog.Logger) *AuctionService {
	s := &AuctionService{
		house:      house,
		ledger:     l,
		commits:    cfg.Commits,
		events:     cfg.Events,
		cache:      cfg.Cache,
		publishers: cfg.Publishers,
		logger:     logger.With(slog.String("component", "auction_service")),
	}
	house.SetCommitHook(s.persist)
	return s
}

// Restore loads persisted state into the engine and ledger. It must run
// before the service takes traffic.
func (s *AuctionService) Restore(ctx context.Context, auctions domain.AuctionStore, flags domain.EngineStateStore, ledgerRows domain.LedgerStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := ledgerRows.LoadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("service: restore accounts: %w", err)
	}
	items, err := ledgerRows.LoadItems(ctx)
	if err != nil {
		return fmt.Errorf("service: restore items: %w", err)
	}
	s.ledger.Import(accounts, items)

	records, err := auctions.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("service: restore auctions: %w", err)
	}
	f, err := flags.LoadFlags(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		f = domain.EngineFlags{RecoveryEnabled: true}
	case err != nil:
		return fmt.Errorf("service: restore flags: %w", err)
	}
	s.house.Restore(records, f)

	s.logger.InfoContext(ctx, "engine restored",
		slog.Int("auctions", len(records)),
		slog.Int("accounts", len(accounts)),
		slog.Int("items", len(items)),
		slog.Bool("paused", f.Paused),
		slog.Bool("recovery_enabled", f.RecoveryEnabled),
	)
	return nil
}

// Create registers a new auction.
func (s *AuctionService) Create(ctx context.Context, caller common.Address, p auction.CreateParams) (*domain.Receipt, error) {
	return s.run(ctx, func() (*domain.Receipt, error) { return s.house.Create(ctx, caller, p) })
}

// Bid places a bid. payment is the value actually sent with the call.
func (s *AuctionService) Bid(ctx context.Context, caller common.Address, id domain.AuctionID, amount, payment *big.Int) (*domain.Receipt, error) {
	return s.run(ctx, func() (*domain.Receipt, error) { return s.house.Bid(ctx, caller, id, amount, payment) })
}

// Settle ends a completed auction.
func (s *AuctionService) Settle(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error) {
	return s.run(ctx, func() (*domain.Receipt, error) { return s.house.Settle(ctx, caller, id) })
}

// Cancel withdraws an auction that has no bids.
func (s *AuctionService) Cancel(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error) {
	return s.run(ctx, func() (*domain.Receipt, error) { return s.house.Cancel(ctx, caller, id) })
}

// Pause stops new auctions and bids.
func (s *AuctionService) Pause(ctx context.Context, caller common.Address) (*domain.Receipt, error) {
	return s.run(ctx, func() (*domain.Receipt, error) { return s.house.Pause(ctx, caller) })
}

// Unpause resumes new auctions and bids.
func (s *AuctionService) Unpause(ctx context.Context, caller common.Address) (*domain.Receipt, error) {
	return s.run(ctx, func() (*domain.Receipt, error) { return s.house.Unpause(ctx, caller) })
}

// DisableRecovery permanently turns admin recovery off.
func (s *AuctionService) DisableRecovery(ctx context.Context, caller common.Address) (*domain.Receipt, error) {
	return s.run(ctx, func() (*domain.Receipt, error) { return s.house.DisableRecoveryForever(ctx, caller) })
}

// RecoverItem sends an escrowed item to the recovery address.
func (s *AuctionService) RecoverItem(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error) {
	return s.run(ctx, func() (*domain.Receipt, error) { return s.house.RecoverItem(ctx, caller, id) })
}

// RecoverCurrency sends house currency to the recovery address.
func (s *AuctionService) RecoverCurrency(ctx context.Context, caller common.Address, amount *big.Int) (*domain.Receipt, error) {
	return s.run(ctx, func() (*domain.Receipt, error) { return s.house.RecoverCurrency(ctx, caller, amount) })
}

// run executes op under the writer lock. The commit is saved from inside the
// engine's commit hook, so a failed save reverts the operation and commits
// reach the database in engine order.
func (s *AuctionService) run(ctx context.Context, op func() (*domain.Receipt, error)) (*domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, err := op()
	if err != nil {
		// A failed operation reverted; drop any dirty marks it left.
		s.ledger.TakeDirty()
		return nil, err
	}
	commit := s.pending
	s.pending = domain.Commit{}

	s.refreshCache(ctx, commit)
	s.publish(ctx, receipt.Events)

	s.logger.InfoContext(ctx, "operation committed",
		slog.String("operation", receipt.Operation),
		slog.String("caller", receipt.Caller.Hex()),
		slog.Int("events", len(receipt.Events)),
	)
	return receipt, nil
}

// persist is the engine commit hook.
func (s *AuctionService) persist(ctx context.Context, r *domain.Receipt) error {
	commit := s.buildCommit(r)
	if s.commits != nil {
		if err := s.commits.SaveCommit(ctx, commit); err != nil {
			s.logger.ErrorContext(ctx, "commit not persisted",
				slog.String("operation", r.Operation),
				slog.Int("events", len(r.Events)),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}
	s.pending = commit
	return nil
}

func (s *AuctionService) buildCommit(r *domain.Receipt) domain.Commit {
	c := domain.Commit{Events: r.Events}
	for _, id := range r.Touched {
		if a, ok := s.house.Auction(id); ok {
			c.Upserts = append(c.Upserts, a)
		} else {
			c.Deletes = append(c.Deletes, id)
		}
	}
	dirty := s.ledger.TakeDirty()
	c.Accounts = dirty.Accounts
	c.Items = dirty.Items
	for _, e := range r.Events {
		switch e.Kind {
		case domain.EventPaused, domain.EventUnpaused, domain.EventRecoveryDisabled:
			f := s.house.Flags()
			c.Flags = &f
		}
	}
	return c
}

func (s *AuctionService) refreshCache(ctx context.Context, c domain.Commit) {
	if s.cache == nil {
		return
	}
	for _, a := range c.Upserts {
		if err := s.cache.Set(ctx, a); err != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.String("auction_id", a.ID.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, id := range c.Deletes {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "cache invalidate failed",
				slog.String("auction_id", id.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *AuctionService) publish(ctx context.Context, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	for _, p := range s.publishers {
		if err := p.PublishEvents(ctx, events); err != nil {
			s.logger.WarnContext(ctx, "event publish failed",
				slog.String("publisher", fmt.Sprintf("%T", p)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Get returns the active auction with id, preferring the cache.
func (s *AuctionService) Get(ctx context.Context, id domain.AuctionID) (domain.Auction, error) {
	if s.cache != nil {
		a, err := s.cache.Get(ctx, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "cache get failed",
				slog.String("auction_id", id.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}

	s.mu.Lock()
	a, ok := s.house.Auction(id)
	s.mu.Unlock()
	if !ok {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, a)
	}
	return a, nil
}

// ListActive pages through active auctions ordered by id.
func (s *AuctionService) ListActive(opts domain.ListOpts) []domain.Auction {
	s.mu.Lock()
	all := s.house.Auctions()
	s.mu.Unlock()
	return paginate(all, opts)
}

// Settleable returns up to limit auctions that can be settled now. A limit of
// zero or less means no limit.
func (s *AuctionService) Settleable(_ context.Context, limit int) ([]domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.house.Now()
	var out []domain.Auction
	for _, a := range s.house.Auctions() {
		if !auction.Ready(a, now) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Events returns the audit trail of one auction.
func (s *AuctionService) Events(ctx context.Context, id domain.AuctionID, opts domain.ListOpts) ([]domain.Event, error) {
	if s.events == nil {
		return nil, nil
	}
	events, err := s.events.ListByAuction(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("service: list events: %w", err)
	}
	return events, nil
}

// Status returns the engine flag surface.
func (s *AuctionService) Status() domain.EngineStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.house.Status()
}

// HouseAddress returns the engine's own account.
func (s *AuctionService) HouseAddress() common.Address {
	return s.house.Address()
}

// Account returns the balances of addr.
func (s *AuctionService) Account(addr common.Address) domain.LedgerAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Account(addr)
}

// Fund credits native currency to addr. It backs the development faucet.
func (s *AuctionService) Fund(ctx context.Context, addr common.Address, value *big.Int) error {
	if value == nil || value.Sign() <= 0 {
		return domain.ErrZeroAmount
	}
	return s.mutateLedger(ctx, "fund", func() error {
		s.ledger.Fund(addr, value)
		return nil
	})
}

// Mint creates an item owned by to. Items of the royalty collection record
// to as creator with the given share.
func (s *AuctionService) Mint(ctx context.Context, coll common.Address, itemID *big.Int, to common.Address, creatorShare decimal.Decimal) error {
	return s.mutateLedger(ctx, "mint", func() error {
		return s.ledger.Mint(coll, itemID, to, creatorShare)
	})
}

// Approve lets spender move owner's item.
func (s *AuctionService) Approve(ctx context.Context, owner, spender, coll common.Address, itemID *big.Int) error {
	return s.mutateLedger(ctx, "approve", func() error {
		return s.ledger.Approve(owner, spender, coll, itemID)
	})
}

// mutateLedger applies a direct ledger change and persists the touched rows.
func (s *AuctionService) mutateLedger(ctx context.Context, op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.ledger.Snapshot()
	if err := fn(); err != nil {
		s.ledger.RevertToSnapshot(snap)
		s.ledger.TakeDirty()
		return fmt.Errorf("service: %s: %w", op, err)
	}
	dirty := s.ledger.TakeDirty()
	if s.commits != nil && !dirty.Empty() {
		err := s.commits.SaveCommit(ctx, domain.Commit{Accounts: dirty.Accounts, Items: dirty.Items})
		if err != nil {
			s.ledger.RevertToSnapshot(snap)
			return fmt.Errorf("%w: %s: %w", ErrPersist, op, err)
		}
	}
	s.ledger.Commit(snap)
	s.logger.InfoContext(ctx, "ledger updated", slog.String("operation", op))
	return nil
}

func paginate[T any](all []T, opts domain.ListOpts) []T {
	if opts.Offset >= len(all) {
		return []T{}
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all
}
