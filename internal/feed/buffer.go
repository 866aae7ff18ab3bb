package feed

import (
	"sync"

	"github.com/tradedeck/marketfeed/internal/model"
)

// DefaultHistorySize is the tick buffer capacity used when none is
// configured.
const DefaultHistorySize = 50

// TickBuffer is the bounded, newest-first store of recent market ticks.
//
// Ordering is strictly arrival order; out-of-order network delivery is
// not corrected. Entries are never mutated after insertion, only
// evicted from the tail when the buffer is at capacity. Insertion is
// O(N), which is fine at dashboard tick rates.
type TickBuffer struct {
	mu    sync.RWMutex
	ticks []model.MarketTick
	cap   int
}

// NewTickBuffer creates a buffer holding at most capacity ticks.
func NewTickBuffer(capacity int) *TickBuffer {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &TickBuffer{
		ticks: make([]model.MarketTick, 0, capacity),
		cap:   capacity,
	}
}

// Push prepends a tick, evicting the oldest entry when at capacity.
func (b *TickBuffer) Push(tick model.MarketTick) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.ticks) < b.cap {
		b.ticks = append(b.ticks, model.MarketTick{})
	}
	copy(b.ticks[1:], b.ticks)
	b.ticks[0] = tick
}

// Latest returns the most recently arrived tick for symbol.
func (b *TickBuffer) Latest(symbol string) (model.MarketTick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, t := range b.ticks {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return model.MarketTick{}, false
}

// History returns up to limit ticks for symbol, newest first. A limit
// below 1 means no limit.
func (b *TickBuffer) History(symbol string, limit int) []model.MarketTick {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []model.MarketTick
	for _, t := range b.ticks {
		if t.Symbol != symbol {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// All returns a copy of the whole buffer, newest first.
func (b *TickBuffer) All() []model.MarketTick {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.MarketTick, len(b.ticks))
	copy(out, b.ticks)
	return out
}

// Len returns the current number of buffered ticks.
func (b *TickBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ticks)
}
