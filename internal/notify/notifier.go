// Package notify fans device-state notifications out to the owner's
// mobile endpoints. Delivery is best-effort and fully decoupled from the
// state-mutation path: producers enqueue events on a buffered channel
// and never block or fail because of it.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Event describes one user-facing notification.
type Event struct {
	UserID uuid.UUID
	Title  string
	Body   string
}

// Sender delivers one notification to a set of tokens. It reports how
// many deliveries succeeded and which tokens the push service rejected
// as invalid or unregistered.
type Sender interface {
	Send(ctx context.Context, tokens []string, title, body string) (delivered int, invalid []string, err error)
}

// TokenSource lists the push tokens registered to a user.
type TokenSource interface {
	ListMobileTokens(ctx context.Context, userID any) ([]string, error)
}

// TokenPruner removes a dead token. Optional housekeeping; a nil pruner
// just leaves invalid tokens in place.
type TokenPruner interface {
	DeleteMobileByToken(ctx context.Context, token string) error
}

type Notifier struct {
	tokens TokenSource
	sender Sender
	pruner TokenPruner
	events chan Event
}

func NewNotifier(tokens TokenSource, sender Sender, pruner TokenPruner, queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = 128
	}
	return &Notifier{tokens: tokens, sender: sender, pruner: pruner, events: make(chan Event, queueSize)}
}

// Enqueue hands an event to the fan-out loop without blocking. When the
// queue is full the event is dropped with a warning; notifications are
// best-effort by contract.
func (n *Notifier) Enqueue(ev Event) {
	select {
	case n.events <- ev:
	default:
		slog.Warn("notification queue full, dropping event", "user_id", ev.UserID, "title", ev.Title)
	}
}

// Run consumes events until ctx is cancelled. Every failure is absorbed
// here; nothing propagates back to producers.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.events:
			n.deliver(ctx, ev)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev Event) {
	tokens, err := n.tokens.ListMobileTokens(ctx, ev.UserID)
	if err != nil {
		slog.Error("mobile token lookup failed", "user_id", ev.UserID, "error", err)
		return
	}
	if len(tokens) == 0 {
		slog.Info("no mobile endpoints to notify", "user_id", ev.UserID, "title", ev.Title)
		return
	}
	delivered, invalid, err := n.sender.Send(ctx, tokens, ev.Title, ev.Body)
	if err != nil {
		slog.Error("push send failed", "user_id", ev.UserID, "tokens", len(tokens), "error", err)
		return
	}
	slog.Info("push sent", "user_id", ev.UserID, "delivered", delivered, "invalid", len(invalid))
	for _, tok := range invalid {
		slog.Warn("invalid push token", "user_id", ev.UserID)
		if n.pruner != nil {
			if err := n.pruner.DeleteMobileByToken(ctx, tok); err != nil {
				slog.Warn("token prune failed", "error", err)
			}
		}
	}
}
