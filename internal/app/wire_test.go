package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionhouse/internal/config"
	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

type fakeLease struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLease) AcquireWriter(context.Context) (func(), error) {
	if l.held {
		return nil, fmt.Errorf("postgres: engine lease: %w", domain.ErrLockHeld)
	}
	l.acquired++
	return func() { l.released++ }, nil
}

func TestSecondEngineIsRefused(t *testing.T) {
	cfg := config.Defaults()
	lease := &fakeLease{held: true}
	deps := &Dependencies{Writer: lease}

	svc, release, err := newEngine(context.Background(), &cfg, deps, slog.Default())
	check.True(t, errors.Is(err, domain.ErrLockHeld))
	check.Nil(t, svc)
	check.Nil(t, release)

	a := New(&cfg, slog.Default())
	err = a.ServerMode(context.Background(), deps)
	check.True(t, errors.Is(err, domain.ErrLockHeld))
	err = a.FullMode(context.Background(), deps)
	check.True(t, errors.Is(err, domain.ErrLockHeld))
}

func TestEngineFailureReleasesLease(t *testing.T) {
	cfg := config.Defaults()
	cfg.Engine.HouseAddress = ""
	lease := &fakeLease{}

	_, _, err := newEngine(context.Background(), &cfg, &Dependencies{Writer: lease}, slog.Default())
	assert.Error(t, err)
	check.Equal(t, 1, lease.acquired)
	check.Equal(t, 1, lease.released)
}
