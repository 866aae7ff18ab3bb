package feed

import (
	"testing"
	"time"

	"github.com/tradedeck/marketfeed/internal/model"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestStatusAggregator_Baseline(t *testing.T) {
	agg := NewStatusAggregator()

	snap := agg.Snapshot()
	if snap.WebsocketConnected {
		t.Error("baseline should be disconnected")
	}
	if snap.ActiveStrategies != 0 || snap.LivePositions != 0 {
		t.Error("baseline counters should be zero")
	}
}

func TestStatusAggregator_PartialMerge(t *testing.T) {
	agg := NewStatusAggregator()

	agg.Merge(model.StatusUpdate{
		WebsocketConnected: boolPtr(true),
		ActiveStrategies:   intPtr(3),
		LivePositions:      intPtr(7),
	})

	// Partial update carries only one field.
	agg.Merge(model.StatusUpdate{ActiveStrategies: intPtr(4)})

	snap := agg.Snapshot()
	if !snap.WebsocketConnected {
		t.Error("WebsocketConnected should be retained")
	}
	if snap.ActiveStrategies != 4 {
		t.Errorf("ActiveStrategies = %d, want 4", snap.ActiveStrategies)
	}
	if snap.LivePositions != 7 {
		t.Errorf("LivePositions = %d, want 7 (retained)", snap.LivePositions)
	}
}

func TestStatusAggregator_LastUpdateRefreshed(t *testing.T) {
	agg := NewStatusAggregator()

	agg.Merge(model.StatusUpdate{LivePositions: intPtr(1)})
	first := agg.Snapshot().LastUpdate

	time.Sleep(5 * time.Millisecond)

	// Empty payload still refreshes the timestamp.
	agg.Merge(model.StatusUpdate{})
	second := agg.Snapshot().LastUpdate

	if !second.After(first) {
		t.Errorf("LastUpdate not refreshed: first=%v second=%v", first, second)
	}
}

func TestStatusAggregator_MarkDisconnected(t *testing.T) {
	agg := NewStatusAggregator()

	agg.Merge(model.StatusUpdate{
		WebsocketConnected: boolPtr(true),
		ActiveStrategies:   intPtr(2),
		LivePositions:      intPtr(5),
	})

	agg.MarkDisconnected()

	snap := agg.Snapshot()
	if snap.WebsocketConnected {
		t.Error("WebsocketConnected should be cleared")
	}
	if snap.ActiveStrategies != 2 || snap.LivePositions != 5 {
		t.Error("other fields should keep retained values")
	}
}

func TestStatusAggregator_Reset(t *testing.T) {
	agg := NewStatusAggregator()

	agg.Merge(model.StatusUpdate{
		WebsocketConnected: boolPtr(true),
		ActiveStrategies:   intPtr(2),
		LivePositions:      intPtr(5),
	})

	agg.Reset()

	snap := agg.Snapshot()
	if snap.WebsocketConnected || snap.ActiveStrategies != 0 || snap.LivePositions != 0 {
		t.Errorf("Reset did not return to baseline: %+v", snap)
	}
	if snap.LastUpdate.IsZero() {
		t.Error("Reset should stamp LastUpdate")
	}
}
