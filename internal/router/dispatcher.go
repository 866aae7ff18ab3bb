package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tradedeck/marketfeed/internal/connection"
	"github.com/tradedeck/marketfeed/internal/model"
)

// TickSink receives parsed market ticks (the tick buffer, optionally a
// recorder).
type TickSink interface {
	Push(model.MarketTick)
}

// StatusSink receives partial status payloads (the status aggregator).
type StatusSink interface {
	Merge(model.StatusUpdate)
}

// Dispatcher parses inbound frames and routes them by the "type"
// discriminator. It is the only component that interprets the wire
// format.
type Dispatcher struct {
	logger *slog.Logger

	// Input from the Connection Manager
	input <-chan connection.RawMessage

	// Outputs
	ticks  []TickSink
	status StatusSink

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	mu          sync.RWMutex
	received    int64
	ticksRouted int64
	merges      int64
	parseErrors int64
	ignored     int64
}

// Stats contains runtime dispatcher statistics.
type Stats struct {
	FramesReceived int64
	TicksRouted    int64
	StatusMerges   int64
	ParseErrors    int64
	Ignored        int64
}

// NewDispatcher creates a Message Dispatcher. All ticks go to every
// tick sink; status payloads go to the status sink.
func NewDispatcher(input <-chan connection.RawMessage, status StatusSink, logger *slog.Logger, ticks ...TickSink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		logger: logger,
		input:  input,
		ticks:  ticks,
		status: status,
	}
}

// AddSink registers an additional tick sink. Must be called before
// Start; the sink slice is not guarded once routing begins.
func (d *Dispatcher) AddSink(sink TickSink) {
	d.ticks = append(d.ticks, sink)
}

// Start begins routing frames.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.routeLoop()

	d.logger.Info("message dispatcher started", "tick_sinks", len(d.ticks))
	return nil
}

// Stop gracefully shuts down the dispatcher.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("message dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("message dispatcher stop timed out")
	}

	return nil
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		FramesReceived: d.received,
		TicksRouted:    d.ticksRouted,
		StatusMerges:   d.merges,
		ParseErrors:    d.parseErrors,
		Ignored:        d.ignored,
	}
}

// routeLoop is the main routing goroutine.
func (d *Dispatcher) routeLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case raw, ok := <-d.input:
			if !ok {
				d.logger.Info("input channel closed")
				return
			}
			d.route(raw)
		}
	}
}

// route parses and routes a single frame. A frame that fails to parse
// is logged and dropped; it never affects buffer or snapshot state.
func (d *Dispatcher) route(raw connection.RawMessage) {
	d.mu.Lock()
	d.received++
	d.mu.Unlock()

	var env envelope
	if err := json.Unmarshal(raw.Data, &env); err != nil {
		d.logger.Warn("dropping malformed frame", "channel", raw.Kind, "error", err)
		d.countParseError()
		return
	}

	switch env.Type {
	case "market_data":
		tick, err := parseTick(env.Data, raw.ReceivedAt)
		if err != nil {
			d.logger.Warn("dropping bad tick frame", "error", err)
			d.countParseError()
			return
		}
		for _, sink := range d.ticks {
			sink.Push(tick)
		}
		d.mu.Lock()
		d.ticksRouted++
		d.mu.Unlock()

	case "system_status":
		var update model.StatusUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			d.logger.Warn("dropping bad status frame", "error", err)
			d.countParseError()
			return
		}
		d.status.Merge(update)
		d.mu.Lock()
		d.merges++
		d.mu.Unlock()

	default:
		d.logger.Debug("ignoring frame type", "type", env.Type)
		d.mu.Lock()
		d.ignored++
		d.mu.Unlock()
	}
}

func (d *Dispatcher) countParseError() {
	d.mu.Lock()
	d.parseErrors++
	d.mu.Unlock()
}

var errMissingSymbol = errors.New("tick frame has no symbol")

// parseTick builds a fully populated MarketTick from a market_data
// payload. Absent bid/ask/high/low/open default to the last traded
// price, numeric deltas to zero, and the timestamp to the receive time.
func parseTick(data []byte, receivedAt time.Time) (model.MarketTick, error) {
	var wire tickWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.MarketTick{}, err
	}
	if wire.Symbol == "" {
		return model.MarketTick{}, errMissingSymbol
	}

	tick := model.MarketTick{
		Symbol:        wire.Symbol,
		Price:         wire.LTP,
		Change:        wire.Change,
		ChangePercent: wire.ChangePercent,
		Volume:        wire.Volume,
		Timestamp:     receivedAt,
		Bid:           orPrice(wire.Bid, wire.LTP),
		Ask:           orPrice(wire.Ask, wire.LTP),
		High:          orPrice(wire.High, wire.LTP),
		Low:           orPrice(wire.Low, wire.LTP),
		Open:          orPrice(wire.Open, wire.LTP),
	}

	if wire.Timestamp > 0 {
		tick.Timestamp = time.UnixMilli(wire.Timestamp)
	}

	return tick, nil
}

// orPrice returns the wire value when present, the last traded price
// otherwise.
func orPrice(v *float64, ltp float64) float64 {
	if v != nil {
		return *v
	}
	return ltp
}
