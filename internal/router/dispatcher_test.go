package router

import (
	"context"
	"testing"
	"time"

	"github.com/tradedeck/marketfeed/internal/connection"
	"github.com/tradedeck/marketfeed/internal/model"
)

// captureSink records routed ticks.
type captureSink struct {
	ticks chan model.MarketTick
}

func newCaptureSink() *captureSink {
	return &captureSink{ticks: make(chan model.MarketTick, 16)}
}

func (s *captureSink) Push(tick model.MarketTick) {
	s.ticks <- tick
}

// captureStatus records merged status updates.
type captureStatus struct {
	updates chan model.StatusUpdate
}

func newCaptureStatus() *captureStatus {
	return &captureStatus{updates: make(chan model.StatusUpdate, 16)}
}

func (s *captureStatus) Merge(update model.StatusUpdate) {
	s.updates <- update
}

func startDispatcher(t *testing.T, sinks ...TickSink) (chan<- connection.RawMessage, *captureStatus, *Dispatcher) {
	t.Helper()

	input := make(chan connection.RawMessage, 16)
	status := newCaptureStatus()
	d := NewDispatcher(input, status, nil, sinks...)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		d.Stop(ctx)
	})

	return input, status, d
}

func marketFrame(payload string) connection.RawMessage {
	return connection.RawMessage{
		Kind:       connection.ChannelMarket,
		Data:       []byte(payload),
		ReceivedAt: time.Now(),
	}
}

func TestDispatcher_RoutesTick(t *testing.T) {
	sink := newCaptureSink()
	input, _, d := startDispatcher(t, sink)

	input <- marketFrame(`{"type":"market_data","data":{"symbol":"NIFTY","ltp":21500.5}}`)

	select {
	case tick := <-sink.ticks:
		if tick.Symbol != "NIFTY" {
			t.Errorf("Symbol = %s, want NIFTY", tick.Symbol)
		}
		if tick.Price != 21500.5 {
			t.Errorf("Price = %v, want 21500.5", tick.Price)
		}
		if tick.Bid != 21500.5 || tick.Ask != 21500.5 || tick.High != 21500.5 || tick.Low != 21500.5 || tick.Open != 21500.5 {
			t.Errorf("absent prices should default to ltp: %+v", tick)
		}
		if tick.Change != 0 || tick.ChangePercent != 0 || tick.Volume != 0 {
			t.Errorf("absent deltas should default to zero: %+v", tick)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for tick")
	}

	stats := d.Stats()
	if stats.TicksRouted != 1 {
		t.Errorf("TicksRouted = %d, want 1", stats.TicksRouted)
	}
}

func TestDispatcher_TickWithAllFields(t *testing.T) {
	sink := newCaptureSink()
	input, _, _ := startDispatcher(t, sink)

	input <- marketFrame(`{"type":"market_data","data":{
		"symbol":"RELIANCE","ltp":2800,"change":12.5,"change_percent":0.45,
		"volume":125000,"timestamp":1705328200000,
		"bid":2799.5,"ask":2800.5,"high":2815,"low":2780,"open":2790
	}}`)

	select {
	case tick := <-sink.ticks:
		if tick.Bid != 2799.5 || tick.Ask != 2800.5 {
			t.Errorf("bid/ask = %v/%v, want 2799.5/2800.5", tick.Bid, tick.Ask)
		}
		if tick.High != 2815 || tick.Low != 2780 || tick.Open != 2790 {
			t.Errorf("high/low/open = %v/%v/%v", tick.High, tick.Low, tick.Open)
		}
		if tick.Volume != 125000 {
			t.Errorf("Volume = %d, want 125000", tick.Volume)
		}
		want := time.UnixMilli(1705328200000)
		if !tick.Timestamp.Equal(want) {
			t.Errorf("Timestamp = %v, want %v", tick.Timestamp, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for tick")
	}
}

func TestDispatcher_FanOut(t *testing.T) {
	first := newCaptureSink()
	second := newCaptureSink()
	input, _, _ := startDispatcher(t, first, second)

	input <- marketFrame(`{"type":"market_data","data":{"symbol":"NIFTY","ltp":100}}`)

	for _, sink := range []*captureSink{first, second} {
		select {
		case tick := <-sink.ticks:
			if tick.Symbol != "NIFTY" {
				t.Errorf("Symbol = %s, want NIFTY", tick.Symbol)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for fanned out tick")
		}
	}
}

func TestDispatcher_RoutesStatus(t *testing.T) {
	input, status, d := startDispatcher(t)

	input <- connection.RawMessage{
		Kind:       connection.ChannelStatus,
		Data:       []byte(`{"type":"system_status","data":{"websocket_connected":true,"active_strategies":2}}`),
		ReceivedAt: time.Now(),
	}

	select {
	case update := <-status.updates:
		if update.WebsocketConnected == nil || !*update.WebsocketConnected {
			t.Error("WebsocketConnected should be present and true")
		}
		if update.ActiveStrategies == nil || *update.ActiveStrategies != 2 {
			t.Error("ActiveStrategies should be present and 2")
		}
		if update.LivePositions != nil {
			t.Error("LivePositions should be absent")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status merge")
	}

	if d.Stats().StatusMerges != 1 {
		t.Errorf("StatusMerges = %d, want 1", d.Stats().StatusMerges)
	}
}

func TestDispatcher_MalformedFrameDropped(t *testing.T) {
	sink := newCaptureSink()
	input, _, d := startDispatcher(t, sink)

	input <- marketFrame(`not-json`)
	input <- marketFrame(`{"type":"market_data","data":{"ltp":100}}`) // no symbol
	input <- marketFrame(`{"type":"market_data","data":{"symbol":"OK","ltp":1}}`)

	// Only the valid frame makes it through.
	select {
	case tick := <-sink.ticks:
		if tick.Symbol != "OK" {
			t.Errorf("Symbol = %s, want OK", tick.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for valid tick")
	}

	stats := d.Stats()
	if stats.ParseErrors != 2 {
		t.Errorf("ParseErrors = %d, want 2", stats.ParseErrors)
	}
	if stats.TicksRouted != 1 {
		t.Errorf("TicksRouted = %d, want 1", stats.TicksRouted)
	}
}

func TestDispatcher_UnknownTypeIgnored(t *testing.T) {
	sink := newCaptureSink()
	input, _, d := startDispatcher(t, sink)

	input <- marketFrame(`{"type":"heartbeat","data":{}}`)
	input <- marketFrame(`{"type":"market_data","data":{"symbol":"OK","ltp":1}}`)

	select {
	case <-sink.ticks:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for valid tick")
	}

	stats := d.Stats()
	if stats.Ignored != 1 {
		t.Errorf("Ignored = %d, want 1", stats.Ignored)
	}
	if stats.ParseErrors != 0 {
		t.Errorf("ParseErrors = %d, want 0", stats.ParseErrors)
	}
}

func TestParseTick_Defaults(t *testing.T) {
	receivedAt := time.Now()

	tick, err := parseTick([]byte(`{"symbol":"NIFTY","ltp":21500.5}`), receivedAt)
	if err != nil {
		t.Fatalf("parseTick failed: %v", err)
	}

	if tick.Price != 21500.5 {
		t.Errorf("Price = %v, want 21500.5", tick.Price)
	}
	if tick.Bid != 21500.5 {
		t.Errorf("Bid = %v, want ltp default", tick.Bid)
	}
	if !tick.Timestamp.Equal(receivedAt) {
		t.Errorf("Timestamp = %v, want receive time %v", tick.Timestamp, receivedAt)
	}
}

func TestParseTick_ZeroBidPreserved(t *testing.T) {
	// An explicit zero is a value, not an absence.
	tick, err := parseTick([]byte(`{"symbol":"NIFTY","ltp":100,"bid":0}`), time.Now())
	if err != nil {
		t.Fatalf("parseTick failed: %v", err)
	}
	if tick.Bid != 0 {
		t.Errorf("Bid = %v, want explicit 0", tick.Bid)
	}
	if tick.Ask != 100 {
		t.Errorf("Ask = %v, want ltp default 100", tick.Ask)
	}
}

func TestParseTick_MissingSymbol(t *testing.T) {
	if _, err := parseTick([]byte(`{"ltp":100}`), time.Now()); err == nil {
		t.Error("expected error for missing symbol")
	}
}
