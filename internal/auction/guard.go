package auction

import (
	"sync/atomic"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// guard is the engine-wide non-reentrant lock. Re-entry fails immediately;
// it never queues or blocks, so receive code running on the caller's
// goroutine cannot deadlock the engine.
type guard struct {
	entered atomic.Bool
}

// enter acquires the guard. The returned release must run on every exit
// path.
func (g *guard) enter() (release func(), err error) {
	if !g.entered.CompareAndSwap(false, true) {
		return nil, domain.ErrReentrant
	}
	return func() { g.entered.Store(false) }, nil
}
