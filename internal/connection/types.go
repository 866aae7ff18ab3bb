package connection

import (
	"errors"
	"strings"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// ChannelKind identifies which of the two feed channels a message or
// state change belongs to.
type ChannelKind string

const (
	ChannelMarket ChannelKind = "market"
	ChannelStatus ChannelKind = "status"
)

// RawMessage is one inbound frame from the Connection Manager to the
// Message Dispatcher, tagged with its originating channel.
type RawMessage struct {
	Kind       ChannelKind // Which channel delivered the frame
	Data       []byte      // Raw frame bytes
	ReceivedAt time.Time   // Local timestamp when the frame was read
}

// StateChange reports a transport-level transition on one channel.
type StateChange struct {
	Kind      ChannelKind
	Connected bool
}

// ControlFrame is an outbound subscribe/unsubscribe command on the
// market channel.
type ControlFrame struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Symbol string `json:"symbol"`
}

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL          string        // Full channel URL
	DialTimeout  time.Duration // Handshake timeout
	WriteTimeout time.Duration // Write deadline for sends
	PingTimeout  time.Duration // Max time without ping/pong before stale
	BufferSize   int           // Inbound message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		PingTimeout:  60 * time.Second,
		BufferSize:   1000,
	}
}

// ManagerConfig configures the two-channel Connection Manager.
type ManagerConfig struct {
	BaseURL           string        // Base endpoint; channel paths are appended
	ReconnectDelay    time.Duration // Fixed delay before a reconnect attempt
	DialTimeout       time.Duration // Handshake timeout per attempt
	WriteTimeout      time.Duration // Write deadline for control frames
	PingTimeout       time.Duration // Staleness threshold per channel
	MessageBufferSize int           // Buffer size of the merged output channel
}

// DefaultManagerConfig returns sensible defaults.
//
// The reconnect delay is deliberately fixed: no backoff growth and no
// attempt cap. At dashboard frequencies liveness matters more than
// retry efficiency; a higher-volume deployment would want exponential
// backoff and a circuit breaker here.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectDelay:    5 * time.Second,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		PingTimeout:       60 * time.Second,
		MessageBufferSize: 1000,
	}
}

// channelURL joins the base endpoint with a channel path.
func channelURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
