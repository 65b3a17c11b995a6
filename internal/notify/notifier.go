// Package notify delivers operator alerts for committed auction events to
// Telegram and Discord. Only the event kinds listed in configuration are
// forwarded.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Sender delivers one alert to a channel.
type Sender interface {
	Send(ctx context.Context, a Alert) error
	// Name identifies the sender in logs, e.g. "telegram".
	Name() string
}

// Notifier dispatches alerts to every Sender. It implements
// domain.EventPublisher so the service fans events out to it like any other
// sink.
type Notifier struct {
	senders []Sender
	events  map[domain.EventKind]bool // allowed kinds; empty allows all
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given senders and event kinds.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventKind]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventKind(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Allows reports whether events of kind are forwarded.
func (n *Notifier) Allows(kind domain.EventKind) bool {
	return len(n.events) == 0 || n.events[kind]
}

// PublishEvents alerts on every allowed event. Sender failures are collected
// and do not stop later events.
func (n *Notifier) PublishEvents(ctx context.Context, events []domain.Event) error {
	var errs []string
	for _, e := range events {
		if !n.Allows(e.Kind) {
			continue
		}
		if err := n.dispatch(ctx, Format(e)); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}

// dispatch sends to every sender; one failing sender does not block the rest.
func (n *Notifier) dispatch(ctx context.Context, a Alert) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, a); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("kind", string(a.Kind)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", a.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventPublisher = (*Notifier)(nil)
