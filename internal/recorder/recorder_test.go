package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tradedeck/marketfeed/internal/model"
)

func TestTransform(t *testing.T) {
	session := uuid.New()
	rec := NewTickRecorder(DefaultConfig(), session, nil, nil)

	ts := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	tick := model.MarketTick{
		Symbol:        "NIFTY",
		Price:         21500.5,
		Change:        125.25,
		ChangePercent: 0.58,
		Volume:        1250000,
		Timestamp:     ts,
		Bid:           21500.0,
		Ask:           21501.0,
		High:          21550.0,
		Low:           21420.0,
		Open:          21450.0,
	}

	row := rec.transform(tick)

	if row.Symbol != "NIFTY" {
		t.Errorf("Symbol = %s, want NIFTY", row.Symbol)
	}
	if row.Price != 21500.5 {
		t.Errorf("Price = %v, want 21500.5", row.Price)
	}
	if row.Change != 125.25 || row.ChangePercent != 0.58 {
		t.Errorf("change = %v/%v, want 125.25/0.58", row.Change, row.ChangePercent)
	}
	if row.Volume != 1250000 {
		t.Errorf("Volume = %d, want 1250000", row.Volume)
	}
	if row.TickTS != ts.UnixMicro() {
		t.Errorf("TickTS = %d, want %d", row.TickTS, ts.UnixMicro())
	}
	if row.ReceivedAt == 0 {
		t.Error("ReceivedAt should be stamped")
	}
	if row.Bid != 21500.0 || row.Ask != 21501.0 {
		t.Errorf("bid/ask = %v/%v", row.Bid, row.Ask)
	}
	if row.High != 21550.0 || row.Low != 21420.0 || row.Open != 21450.0 {
		t.Errorf("high/low/open = %v/%v/%v", row.High, row.Low, row.Open)
	}
	if row.SessionID != session {
		t.Errorf("SessionID = %s, want %s", row.SessionID, session)
	}
}

func TestPushAfterStopCountsDrop(t *testing.T) {
	rec := NewTickRecorder(DefaultConfig(), uuid.New(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	rec.Push(model.MarketTick{Symbol: "NIFTY", Price: 1})

	if got := rec.queue.Len(); got != 0 {
		t.Errorf("queued = %d, want 0 after Stop", got)
	}
	if got := rec.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestPushStagesWithoutBlocking(t *testing.T) {
	rec := NewTickRecorder(Config{BatchSize: 10, FlushInterval: time.Hour, QueueSize: 4}, uuid.New(), nil, nil)

	for i := 0; i < 500; i++ {
		rec.Push(model.MarketTick{Symbol: "NIFTY", Price: float64(i)})
	}

	if got := rec.queue.Len(); got != 500 {
		t.Errorf("queued = %d, want 500", got)
	}
}
