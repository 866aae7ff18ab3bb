package feed

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/tradedeck/marketfeed/internal/connection"
)

// FrameSender sends a control frame over the market channel. Sends
// while the channel is closed fail with connection.ErrNotConnected.
type FrameSender interface {
	Send(data []byte) error
}

// SubscriptionRegistry tracks which symbols the consumer wants streamed
// and emits subscribe/unsubscribe control frames.
//
// Intent is recorded regardless of transport state, but a frame is only
// delivered while the market channel is open. Intent is NOT replayed
// after a reconnect: subscriptions lapse until the consumer re-issues
// them, matching the contract that the caller re-subscribes on
// reconnect.
type SubscriptionRegistry struct {
	logger *slog.Logger
	sender FrameSender

	mu      sync.Mutex
	symbols map[string]struct{}
}

// NewSubscriptionRegistry creates a registry sending frames through
// sender.
func NewSubscriptionRegistry(sender FrameSender, logger *slog.Logger) *SubscriptionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRegistry{
		logger:  logger,
		sender:  sender,
		symbols: make(map[string]struct{}),
	}
}

// Subscribe records intent for symbol and sends a subscribe frame when
// the channel is open. Duplicate subscribes are idempotent intent-wise;
// the control frame is still sent. Never returns an error: a send while
// closed is a silent no-op.
func (r *SubscriptionRegistry) Subscribe(symbol string) {
	if symbol == "" {
		return
	}

	r.mu.Lock()
	r.symbols[symbol] = struct{}{}
	r.mu.Unlock()

	r.send(connection.ControlFrame{Action: "subscribe", Symbol: symbol})
}

// Unsubscribe removes intent for symbol and sends an unsubscribe frame
// when the channel is open. Removing a non-member is a no-op intent-wise.
func (r *SubscriptionRegistry) Unsubscribe(symbol string) {
	if symbol == "" {
		return
	}

	r.mu.Lock()
	delete(r.symbols, symbol)
	r.mu.Unlock()

	r.send(connection.ControlFrame{Action: "unsubscribe", Symbol: symbol})
}

// Subscribed reports whether intent is currently recorded for symbol.
func (r *SubscriptionRegistry) Subscribed(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.symbols[symbol]
	return ok
}

// Symbols returns the current intent set, sorted.
func (r *SubscriptionRegistry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// send marshals and delivers a control frame, swallowing not-connected
// errors per the subscription contract.
func (r *SubscriptionRegistry) send(frame connection.ControlFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error("failed to encode control frame", "error", err)
		return
	}

	if err := r.sender.Send(data); err != nil {
		// Not an error: intent is recorded, frames are not queued.
		r.logger.Debug("control frame not sent",
			"action", frame.Action,
			"symbol", frame.Symbol,
			"reason", err,
		)
	}
}
