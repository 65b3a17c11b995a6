package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionhouse/internal/auction"
	"github.com/alanyoungcy/auctionhouse/internal/crypto"
	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/ledger"
	"github.com/alanyoungcy/auctionhouse/internal/server/handler"
	"github.com/alanyoungcy/auctionhouse/internal/service"
)

const (
	sellerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	chainID   = 31337
)

var (
	houseAddr = common.HexToAddress("0x000000000000000000000000000000000000a0c7")
	recovery  = common.HexToAddress("0x000000000000000000000000000000000000bead")
	coll      = common.HexToAddress("0x0000000000000000000000000000000000002002")
)

type testAPI struct {
	t      *testing.T
	h      http.Handler
	svc    *service.AuctionService
	signer *crypto.Signer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	l := ledger.New(ledger.Options{WrappedAsset: common.HexToAddress("0xe7e7")})
	house, err := auction.New(auction.Config{House: houseAddr, Recovery: recovery}, l)
	assert.NoError(t, err)
	svc := service.NewAuctionService(house, l, service.AuctionServiceConfig{}, slog.Default())
	signer, err := crypto.NewSigner(sellerKey, chainID)
	assert.NoError(t, err)

	logger := slog.Default()
	srv := NewServer(Config{
		ChainID:         chainID,
		SignatureMaxAge: time.Minute,
		DevMode:         true,
	}, Handlers{
		Health:   handler.NewHealthHandler(nil, logger),
		Status:   handler.NewStatusHandler(svc, "server", time.Now()),
		Auctions: handler.NewAuctionHandler(svc, logger),
		Admin:    handler.NewAdminHandler(svc, logger),
		Accounts: handler.NewAccountHandler(svc),
		Dev:      handler.NewDevHandler(svc, logger),
	}, Deps{}, nil, logger)

	return &testAPI{t: t, h: srv.Handler(), svc: svc, signer: signer}
}

func (a *testAPI) call(method, path string, body any, signed bool) *httptest.ResponseRecorder {
	a.t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		assert.NoError(a.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	if signed {
		headers, err := a.signer.Headers(method, path, raw, time.Now())
		assert.NoError(a.t, err)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func TestSignedAuctionLifecycle(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	seller := api.signer.Address()
	ctx := context.Background()

	rec := api.call(http.MethodPost, "/api/dev/mint", map[string]string{
		"collection": coll.Hex(), "item_id": "1", "to": seller.Hex(),
	}, false)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = api.call(http.MethodPost, "/api/dev/approve", map[string]string{
		"spender": houseAddr.Hex(), "collection": coll.Hex(), "item_id": "1",
	}, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	create := map[string]any{
		"item_collection":     coll.Hex(),
		"item_id":             "1",
		"duration":            3600,
		"reserve_price":       "100",
		"curator_fee_percent": 0,
		"curator":             seller.Hex(),
		"funds_recipient":     seller.Hex(),
	}
	rec = api.call(http.MethodPost, "/api/auctions", create, false)
	check.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.call(http.MethodPost, "/api/auctions", create, true)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var receipt domain.Receipt
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	check.Equal(t, seller, receipt.Caller)
	assert.Equal(t, 1, len(receipt.Events))
	check.Equal(t, domain.EventAuctionCreated, receipt.Events[0].Kind)

	id := domain.NewAuctionID(coll, big.NewInt(1))
	rec = api.call(http.MethodGet, "/api/auctions/"+id.Hex(), nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Same item again collides with the live auction.
	rec = api.call(http.MethodPost, "/api/auctions", create, true)
	check.Equal(t, http.StatusConflict, rec.Code)

	// Curator cancels before any bid.
	rec = api.call(http.MethodPost, fmt.Sprintf("/api/auctions/%s/cancel", id.Hex()), nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := api.svc.Get(ctx, id)
	check.Error(t, err)
}

func TestAdminRequiresRecoveryAddress(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	rec := api.call(http.MethodPost, "/api/admin/pause", nil, true)
	check.Equal(t, http.StatusForbidden, rec.Code)
	check.False(t, api.svc.Status().Paused)

	rec = api.call(http.MethodGet, "/api/status", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	check.Equal(t, false, status["paused"])
	check.Equal(t, "server", status["mode"])
}

func TestAccountAndFaucet(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	who := common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	rec := api.call(http.MethodPost, "/api/dev/fund", map[string]string{
		"address": who.Hex(), "amount": "12345",
	}, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.call(http.MethodGet, "/api/accounts/"+who.Hex(), nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	var acct domain.LedgerAccount
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
	check.Equal(t, "12345", acct.Native.String())
	check.Equal(t, "0", acct.Wrapped.String())
}
