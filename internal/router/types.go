package router

import "encoding/json"

// envelope is the outer shape of every inbound frame. Type is the
// discriminator used for routing.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// tickWire is the market_data payload as it appears on the wire.
// Pointer fields distinguish "absent" from "zero" so defaulting can
// fall back to the last traded price.
type tickWire struct {
	Symbol        string   `json:"symbol"`
	LTP           float64  `json:"ltp"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"change_percent"`
	Volume        int64    `json:"volume"`
	Timestamp     int64    `json:"timestamp"` // Unix milliseconds, 0 = absent
	Bid           *float64 `json:"bid"`
	Ask           *float64 `json:"ask"`
	High          *float64 `json:"high"`
	Low           *float64 `json:"low"`
	Open          *float64 `json:"open"`
}
