package model

import "time"

// MarketTick is one price observation for one instrument.
//
// Every field is populated at construction time: wire fields the feed
// omits are defaulted (bid/ask/high/low/open fall back to the price,
// deltas and volume to zero, the timestamp to the receive time), so
// consumers never branch on missing data. Ticks are immutable once
// created and leave the buffer only by capacity eviction.
type MarketTick struct {
	Symbol        string    // Instrument identifier (non-empty)
	Price         float64   // Last traded price (wire field "ltp")
	Change        float64   // Signed delta vs. prior reference
	ChangePercent float64   // Signed percent delta
	Volume        int64     // Traded volume
	Timestamp     time.Time // Source-assigned, or receive time fallback
	Bid           float64   // Best bid
	Ask           float64   // Best ask
	High          float64   // Session high
	Low           float64   // Session low
	Open          float64   // Session open
}

// FeedStatus is the aggregate health snapshot for one feed session.
//
// WebsocketConnected is what the status channel itself reports (the
// backend's own upstream feed link). It is a separate signal from the
// transport connectivity the Connection Manager observes locally, and
// the two are never conflated.
type FeedStatus struct {
	WebsocketConnected bool      // Reported by status channel payloads
	ActiveStrategies   int       // Running strategies on the backend
	LivePositions      int       // Open positions on the backend
	LastUpdate         time.Time // Time of the last merge or reset
}

// StatusUpdate is a partial status payload. Nil fields were absent from
// the wire frame and leave the corresponding snapshot field untouched.
type StatusUpdate struct {
	WebsocketConnected *bool `json:"websocket_connected"`
	ActiveStrategies   *int  `json:"active_strategies"`
	LivePositions      *int  `json:"live_positions"`
}
