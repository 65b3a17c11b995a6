package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionhouse/internal/auction"
	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/server/middleware"
	"github.com/alanyoungcy/auctionhouse/internal/service"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	coll  = common.HexToAddress("0x0000000000000000000000000000000000002002")
)

type fakeAuctions struct {
	created *auction.CreateParams
	bidArgs [2]*big.Int
	caller  common.Address
	err     error
	records map[domain.AuctionID]domain.Auction
	limit   int
}

func (f *fakeAuctions) receipt(op string, caller common.Address) (*domain.Receipt, error) {
	f.caller = caller
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Receipt{Operation: op, Caller: caller}, nil
}

func (f *fakeAuctions) Create(_ context.Context, caller common.Address, p auction.CreateParams) (*domain.Receipt, error) {
	f.created = &p
	return f.receipt("create", caller)
}

func (f *fakeAuctions) Bid(_ context.Context, caller common.Address, _ domain.AuctionID, amount, payment *big.Int) (*domain.Receipt, error) {
	f.bidArgs = [2]*big.Int{amount, payment}
	return f.receipt("bid", caller)
}

func (f *fakeAuctions) Settle(_ context.Context, caller common.Address, _ domain.AuctionID) (*domain.Receipt, error) {
	return f.receipt("settle", caller)
}

func (f *fakeAuctions) Cancel(_ context.Context, caller common.Address, _ domain.AuctionID) (*domain.Receipt, error) {
	return f.receipt("cancel", caller)
}

func (f *fakeAuctions) Get(_ context.Context, id domain.AuctionID) (domain.Auction, error) {
	a, ok := f.records[id]
	if !ok {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	return a, nil
}

func (f *fakeAuctions) ListActive(domain.ListOpts) []domain.Auction { return nil }

func (f *fakeAuctions) Settleable(_ context.Context, limit int) ([]domain.Auction, error) {
	f.limit = limit
	return nil, f.err
}

func (f *fakeAuctions) Events(context.Context, domain.AuctionID, domain.ListOpts) ([]domain.Event, error) {
	return nil, nil
}

func routes(h *AuctionHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auctions", h.Create)
	mux.HandleFunc("GET /api/auctions/derive", h.Derive)
	mux.HandleFunc("GET /api/auctions/settleable", h.Settleable)
	mux.HandleFunc("GET /api/auctions/{id}", h.Get)
	mux.HandleFunc("GET /api/auctions/{id}/events", h.Events)
	mux.HandleFunc("POST /api/auctions/{id}/bids", h.Bid)
	mux.HandleFunc("POST /api/auctions/{id}/cancel", h.Cancel)
	return mux
}

func do(mux http.Handler, method, path, body string, as *common.Address) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if as != nil {
		req = req.WithContext(middleware.WithCaller(req.Context(), *as))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrBelowReserve, http.StatusBadRequest},
		{fmt.Errorf("auction: bid: %w", domain.ErrBidIncrementTooLow), http.StatusBadRequest},
		{domain.ErrNotCurator, http.StatusForbidden},
		{domain.ErrPaused, http.StatusForbidden},
		{domain.ErrAuctionExpired, http.StatusConflict},
		{domain.ErrAuctionNotFound, http.StatusNotFound},
		{domain.ErrReentrant, http.StatusLocked},
		{fmt.Errorf("%w: %w", service.ErrPersist, errors.New("db gone")), http.StatusInternalServerError},
		{errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		check.Equal(t, tt.want, statusFor(tt.err))
	}
}

func TestCreateUsesSignedCaller(t *testing.T) {
	t.Parallel()
	svc := &fakeAuctions{}
	mux := routes(NewAuctionHandler(svc, slog.Default()))

	body := fmt.Sprintf(`{
		"item_collection": %q, "item_id": "7", "duration": 86400,
		"reserve_price": "1000000000000000000000", "curator_fee_percent": 5,
		"curator": %q, "funds_recipient": %q
	}`, coll.Hex(), alice.Hex(), alice.Hex())
	rec := do(mux, http.MethodPost, "/api/auctions", body, &alice)

	assert.Equal(t, http.StatusCreated, rec.Code)
	check.Equal(t, alice, svc.caller)
	assert.True(t, svc.created != nil)
	check.Equal(t, "7", svc.created.ItemID.String())
	check.Equal(t, "1000000000000000000000", svc.created.ReservePrice.String())
	check.Equal(t, uint8(5), svc.created.CuratorFeePercent)
}

func TestCreateRejectsBadInput(t *testing.T) {
	t.Parallel()
	mux := routes(NewAuctionHandler(&fakeAuctions{}, slog.Default()))

	rec := do(mux, http.MethodPost, "/api/auctions", `{"item_collection":"nope"}`, &alice)
	check.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, http.MethodPost, "/api/auctions", `{"surprise":1}`, &alice)
	check.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, http.MethodPost, "/api/auctions", `{}`, nil)
	check.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBidPaymentDefaultsToAmount(t *testing.T) {
	t.Parallel()
	svc := &fakeAuctions{}
	mux := routes(NewAuctionHandler(svc, slog.Default()))
	id := domain.NewAuctionID(coll, big.NewInt(1))

	rec := do(mux, http.MethodPost, "/api/auctions/"+id.Hex()+"/bids", `{"amount":"250"}`, &alice)
	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "250", svc.bidArgs[0].String())
	check.Equal(t, "250", svc.bidArgs[1].String())

	rec = do(mux, http.MethodPost, "/api/auctions/"+id.Hex()+"/bids", `{"amount":"250","payment":"249"}`, &alice)
	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "249", svc.bidArgs[1].String())

	rec = do(mux, http.MethodPost, "/api/auctions/"+id.Hex()+"/bids", `{"amount":"-1"}`, &alice)
	check.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEngineRejectionMapsToStatus(t *testing.T) {
	t.Parallel()
	svc := &fakeAuctions{err: fmt.Errorf("auction: cancel: %w", domain.ErrAuctionStarted)}
	mux := routes(NewAuctionHandler(svc, slog.Default()))
	id := domain.NewAuctionID(coll, big.NewInt(1))

	rec := do(mux, http.MethodPost, "/api/auctions/"+id.Hex()+"/cancel", "", &alice)
	check.Equal(t, http.StatusConflict, rec.Code)
	check.True(t, strings.Contains(rec.Body.String(), domain.ErrAuctionStarted.Error()))
}

func TestGetAndDerive(t *testing.T) {
	t.Parallel()
	id := domain.NewAuctionID(coll, big.NewInt(9))
	svc := &fakeAuctions{records: map[domain.AuctionID]domain.Auction{
		id: {ID: id, ItemCollection: coll, ItemID: big.NewInt(9), Curator: alice},
	}}
	mux := routes(NewAuctionHandler(svc, slog.Default()))

	rec := do(mux, http.MethodGet, "/api/auctions/"+id.Hex(), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var got domain.Auction
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	check.Equal(t, alice, got.Curator)

	other := domain.NewAuctionID(coll, big.NewInt(10))
	rec = do(mux, http.MethodGet, "/api/auctions/"+other.Hex(), "", nil)
	check.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(mux, http.MethodGet, "/api/auctions/not-an-id", "", nil)
	check.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, http.MethodGet, "/api/auctions/derive?collection="+coll.Hex()+"&item_id=9", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var derived map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &derived))
	check.Equal(t, id.Hex(), derived["id"])
}

func TestEventsNeverNull(t *testing.T) {
	t.Parallel()
	mux := routes(NewAuctionHandler(&fakeAuctions{}, slog.Default()))
	id := domain.NewAuctionID(coll, big.NewInt(1))

	rec := do(mux, http.MethodGet, "/api/auctions/"+id.Hex()+"/events", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, `{"events":[]}`, rec.Body.String())
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

type upPinger struct{}

func (upPinger) Ping(context.Context) error { return nil }

func TestHealthCheckReportsDegraded(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(map[string]Pinger{"postgres": upPinger{}, "redis": downPinger{}}, slog.Default())
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	check.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	check.Equal(t, "degraded", body.Status)
	check.Equal(t, "up", body.Checks["postgres"])
	check.Equal(t, "down", body.Checks["redis"])
}

func TestSettleableListsEmptyArray(t *testing.T) {
	t.Parallel()
	svc := &fakeAuctions{}
	mux := routes(NewAuctionHandler(svc, slog.Default()))

	rec := do(mux, http.MethodGet, "/api/auctions/settleable?limit=7", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, 7, svc.limit)
	check.True(t, strings.Contains(rec.Body.String(), `"auctions":[]`))

	svc.err = errors.New("surprise")
	rec = do(mux, http.MethodGet, "/api/auctions/settleable", "", nil)
	check.Equal(t, http.StatusInternalServerError, rec.Code)
	check.Equal(t, 50, svc.limit)
}
