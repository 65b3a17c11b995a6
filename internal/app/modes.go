package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/auctionhouse/internal/cache/redis"
	"github.com/alanyoungcy/auctionhouse/internal/client"
	"github.com/alanyoungcy/auctionhouse/internal/crypto"
	"github.com/alanyoungcy/auctionhouse/internal/server"
	"github.com/alanyoungcy/auctionhouse/internal/server/handler"
	"github.com/alanyoungcy/auctionhouse/internal/server/ws"
	"github.com/alanyoungcy/auctionhouse/internal/service"
)

// ServerMode runs the engine behind the HTTP API and websocket hub.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	svc, release, err := newEngine(ctx, a.cfg, deps, a.logger)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}
	defer release()

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// KeeperMode runs only the settlement sweeper. It loads no engine: ready
// auctions are listed and settled through the server at keeper.server_url,
// whose engine stays the single writer.
func (a *App) KeeperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting keeper mode",
		slog.String("server_url", a.cfg.Keeper.ServerURL),
	)
	signer, err := a.keeperSigner()
	if err != nil {
		return fmt.Errorf("keeper mode: %w", err)
	}
	remote := client.New(a.cfg.Keeper.ServerURL, signer, 30*time.Second)

	g, ctx := errgroup.WithContext(ctx)
	a.startKeeper(ctx, g, deps, remote, signer)
	return g.Wait()
}

// ArchiveMode only moves old events to cold storage. It does not load the
// engine, so it can run beside a server process.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archive.enabled is false")
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the HTTP API, the keeper and the archiver in one process.
// The keeper settles against the in-process engine.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	svc, release, err := newEngine(ctx, a.cfg, deps, a.logger)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	defer release()

	var signer *crypto.Signer
	if a.cfg.Keeper.Enabled {
		if signer, err = a.keeperSigner(); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	if signer != nil {
		a.startKeeper(ctx, g, deps, svc, signer)
	}
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// keeperSigner loads the keeper key. Its address is the keeper identity.
func (a *App) keeperSigner() (*crypto.Signer, error) {
	signer, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Keeper.PrivateKey,
		EncryptedKeyPath: a.cfg.Keeper.EncryptedKeyPath,
		KeyPassword:      a.cfg.Keeper.KeyPassword,
	}, a.cfg.Server.ChainID)
	if err != nil {
		return nil, fmt.Errorf("keeper identity: %w", err)
	}
	return signer, nil
}

// startKeeper runs the sweeper against settler under the signer's identity.
func (a *App) startKeeper(ctx context.Context, g *errgroup.Group, deps *Dependencies, settler service.Settler, signer *crypto.Signer) {
	keeper := service.NewKeeper(settler, deps.LockManager, service.KeeperConfig{
		Caller:    signer.Address(),
		Interval:  a.cfg.KeeperInterval(),
		LockTTL:   a.cfg.KeeperLockTTL(),
		BatchSize: a.cfg.Keeper.BatchSize,
	}, a.logger)
	g.Go(func() error {
		return ignoreCanceled(keeper.Run(ctx))
	})
}

// startArchiver runs the archive loop when archiving is configured.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	runner := service.NewArchiveRunner(deps.Archiver, a.cfg.Archive.RetentionDays, a.cfg.ArchiveInterval(), a.logger)
	g.Go(func() error {
		return ignoreCanceled(runner.Run(ctx))
	})
}

// startHTTPServer builds the handlers, the websocket hub and the server and
// runs them until ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.AuctionService) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, ws.Config{
		Pattern:        redis.EventPattern,
		Status:         svc.Status,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	}, a.logger)
	g.Go(func() error {
		return ignoreCanceled(hub.Run(ctx))
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.Pingers, a.logger),
		Status:   handler.NewStatusHandler(svc, strings.ToLower(a.cfg.Mode), time.Now().UTC()),
		Auctions: handler.NewAuctionHandler(svc, a.logger),
		Admin:    handler.NewAdminHandler(svc, a.logger),
		Accounts: handler.NewAccountHandler(svc),
		Feed:     handler.NewFeedHandler(deps.SignalBus, redis.EventStream, deps.BlobReader, a.logger),
	}
	if a.cfg.Server.DevMode {
		handlers.Dev = handler.NewDevHandler(svc, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		ChainID:         a.cfg.Server.ChainID,
		SignatureMaxAge: a.cfg.SignatureMaxAge(),
		RateLimit:       a.cfg.Server.RateLimit,
		RateWindow:      a.cfg.RateWindow(),
		DevMode:         a.cfg.Server.DevMode,
	}, handlers, server.Deps{
		Nonces:  deps.LockManager,
		Limiter: deps.RateLimiter,
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// ignoreCanceled treats a context cancellation as a clean exit.
func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
