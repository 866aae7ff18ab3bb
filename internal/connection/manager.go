package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Manager owns the lifecycle of the two feed channels.
//
// State machine per channel: Idle -> Connecting -> Open -> Closed.
// A deliberate close (Disconnect, or a peer close with code 1000/1001)
// ends the channel; any other close or transport error schedules one
// reconnect attempt after the fixed delay and re-enters Connecting.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	// Merged output to the Message Dispatcher. Survives reconnects.
	out chan RawMessage

	// Transport state transitions, consumed by the feed session.
	states chan StateChange

	mu     sync.Mutex
	active bool
	live   int
	done   chan struct{}
	market *channelState
	status *channelState

	marketOpen atomic.Bool
}

// channelState tracks the current client for one channel across
// reconnect attempts.
type channelState struct {
	kind ChannelKind
	url  string

	mu     sync.Mutex
	client Client
}

func (ch *channelState) setClient(c Client) {
	ch.mu.Lock()
	ch.client = c
	ch.mu.Unlock()
}

func (ch *channelState) getClient() Client {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.client
}

func (ch *channelState) close() {
	ch.mu.Lock()
	c := ch.client
	ch.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

// NewManager creates a Connection Manager for the given base endpoint.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:    cfg,
		logger: logger,
		out:    make(chan RawMessage, cfg.MessageBufferSize),
		states: make(chan StateChange, 16),
	}
}

// Connect opens both channels. It is a no-op while a session is already
// connecting or open, returns immediately, and never surfaces dial
// errors: failures are logged and retried on the reconnect schedule.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		m.logger.Debug("connect ignored, session already active")
		return
	}
	m.active = true
	m.live = 2
	m.done = make(chan struct{})
	m.market = &channelState{kind: ChannelMarket, url: channelURL(m.cfg.BaseURL, "/market-data")}
	m.status = &channelState{kind: ChannelStatus, url: channelURL(m.cfg.BaseURL, "/system-status")}
	done := m.done
	market, status := m.market, m.status
	m.mu.Unlock()

	m.logger.Info("connecting", "base_url", m.cfg.BaseURL)

	go m.runChannel(market, done)
	go m.runChannel(status, done)
}

// Disconnect deliberately closes both channels with close code 1000 and
// guarantees no reconnect is scheduled as a result of this closure.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if !m.active && m.done == nil {
		m.mu.Unlock()
		return
	}
	m.active = false
	done := m.done
	m.done = nil
	market, status := m.market, m.status
	m.market, m.status = nil, nil
	m.mu.Unlock()

	// Cancel pending reconnect timers and read pumps first, so the
	// client close below cannot be mistaken for an abnormal close.
	if done != nil {
		close(done)
	}
	if market != nil {
		market.close()
	}
	if status != nil {
		status.close()
	}

	m.marketOpen.Store(false)
	m.notifyState(ChannelMarket, false)
	m.logger.Info("disconnected")
}

// IsConnected returns the last observed open state of the market channel.
func (m *Manager) IsConnected() bool {
	return m.marketOpen.Load()
}

// Messages returns the merged inbound frame channel for the dispatcher.
func (m *Manager) Messages() <-chan RawMessage {
	return m.out
}

// StateChanges returns transport state transitions for the session.
func (m *Manager) StateChanges() <-chan StateChange {
	return m.states
}

// Send writes a control frame to the market channel. Returns
// ErrNotConnected when the channel is not open; callers treat that as
// a silent no-op per the subscription contract.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	market := m.market
	m.mu.Unlock()

	if market == nil {
		return ErrNotConnected
	}
	client := market.getClient()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	return client.Send(data)
}

// runChannel drives one channel through connect/pump/reconnect cycles
// until a deliberate close or Disconnect ends it.
func (m *Manager) runChannel(ch *channelState, done chan struct{}) {
	defer m.channelDone(done)

	clientCfg := ClientConfig{
		URL:          ch.url,
		DialTimeout:  m.cfg.DialTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		PingTimeout:  m.cfg.PingTimeout,
		BufferSize:   m.cfg.MessageBufferSize,
	}

	for {
		client := NewClient(clientCfg, ch.kind, m.logger.With("channel", ch.kind))
		ch.setClient(client)

		dialCtx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
		err := client.Connect(dialCtx)
		cancel()

		if errors.Is(err, ErrAlreadyClosed) {
			// Disconnect retired this client mid-dial.
			return
		}
		if err != nil {
			m.logger.Warn("dial failed",
				"channel", ch.kind,
				"url", ch.url,
				"error", err,
				"retry_in", m.cfg.ReconnectDelay,
			)
			client.Close()
		} else {
			if ch.kind == ChannelMarket {
				m.marketOpen.Store(true)
			}
			m.notifyState(ch.kind, true)
			m.logger.Info("channel open", "channel", ch.kind)

			reason := m.pump(client, done)

			if ch.kind == ChannelMarket {
				m.marketOpen.Store(false)
			}
			m.notifyState(ch.kind, false)
			client.Close()

			select {
			case <-done:
				return
			default:
			}

			if isDeliberateClose(reason) {
				m.logger.Info("channel closed by peer", "channel", ch.kind)
				return
			}

			m.logger.Warn("channel closed abnormally",
				"channel", ch.kind,
				"error", reason,
				"retry_in", m.cfg.ReconnectDelay,
			)
		}

		select {
		case <-done:
			return
		case <-time.After(m.cfg.ReconnectDelay):
		}
	}
}

// pump forwards frames from one client to the merged output until the
// connection ends. The returned error is what ended the stream; nil
// means Disconnect.
func (m *Manager) pump(client Client, done chan struct{}) error {
	for {
		select {
		case <-done:
			return nil
		case err := <-client.Errors():
			return err
		case msg, ok := <-client.Messages():
			if !ok {
				return nil
			}
			select {
			case m.out <- msg:
			case <-done:
				return nil
			default:
				m.logger.Warn("dispatch buffer full, dropping frame", "channel", msg.Kind)
			}
		}
	}
}

// channelDone marks one channel loop finished. When both loops of the
// current session have ended the manager becomes idle again.
func (m *Manager) channelDone(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != done {
		// A Disconnect already retired this session.
		return
	}
	m.live--
	if m.live == 0 {
		m.active = false
		m.done = nil
	}
}

// isDeliberateClose reports whether the stream ended by request: either
// our own Disconnect (nil) or a peer close with a shutdown code.
func isDeliberateClose(err error) bool {
	if err == nil {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
	)
}

// notifyState publishes a transport transition without blocking the
// channel loop; a slow consumer only misses intermediate transitions.
func (m *Manager) notifyState(kind ChannelKind, connected bool) {
	select {
	case m.states <- StateChange{Kind: kind, Connected: connected}:
	default:
	}
}
