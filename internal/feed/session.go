package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradedeck/marketfeed/internal/connection"
	"github.com/tradedeck/marketfeed/internal/model"
	"github.com/tradedeck/marketfeed/internal/router"
)

// Config holds feed session settings.
type Config struct {
	BaseURL        string        // Base websocket endpoint
	HistorySize    int           // Tick buffer capacity
	ReconnectDelay time.Duration // Fixed reconnect delay
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	PingTimeout    time.Duration
	MessageBuffer  int // Inbound frame buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	mgr := connection.DefaultManagerConfig()
	return Config{
		HistorySize:    DefaultHistorySize,
		ReconnectDelay: mgr.ReconnectDelay,
		DialTimeout:    mgr.DialTimeout,
		WriteTimeout:   mgr.WriteTimeout,
		PingTimeout:    mgr.PingTimeout,
		MessageBuffer:  mgr.MessageBufferSize,
	}
}

// Session is the consumer-facing feed client: one explicit instance
// owning the connection manager, dispatcher, tick buffer, status
// snapshot, and subscription registry. The tick buffer and status
// snapshot are shared read-only with the UI layer; all mutation goes
// through the dispatcher.
type Session struct {
	id     uuid.UUID
	cfg    Config
	logger *slog.Logger

	manager    *connection.Manager
	buffer     *TickBuffer
	status     *StatusAggregator
	subs       *SubscriptionRegistry
	dispatcher *router.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a feed session. Extra tick sinks (e.g. a recorder)
// receive every parsed tick in addition to the session buffer.
func NewSession(cfg Config, logger *slog.Logger, extraSinks ...router.TickSink) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New()
	logger = logger.With("session", id.String())

	manager := connection.NewManager(connection.ManagerConfig{
		BaseURL:           cfg.BaseURL,
		ReconnectDelay:    cfg.ReconnectDelay,
		DialTimeout:       cfg.DialTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		PingTimeout:       cfg.PingTimeout,
		MessageBufferSize: cfg.MessageBuffer,
	}, logger)

	buffer := NewTickBuffer(cfg.HistorySize)
	status := NewStatusAggregator()

	sinks := append([]router.TickSink{buffer}, extraSinks...)
	dispatcher := router.NewDispatcher(manager.Messages(), status, logger, sinks...)

	return &Session{
		id:         id,
		cfg:        cfg,
		logger:     logger,
		manager:    manager,
		buffer:     buffer,
		status:     status,
		subs:       NewSubscriptionRegistry(manager, logger),
		dispatcher: dispatcher,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// AddTickSink registers an additional tick sink, e.g. a recorder that
// needs the session ID before it can be built. Must be called before
// Start.
func (s *Session) AddTickSink(sink router.TickSink) {
	s.dispatcher.AddSink(sink)
}

// Start begins dispatching frames and watching transport state. It does
// not open the channels; call Connect for that.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.dispatcher.Start(s.ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.watchStates()

	s.logger.Info("feed session started", "base_url", s.cfg.BaseURL)
	return nil
}

// Stop disconnects and shuts down the session machinery.
func (s *Session) Stop(ctx context.Context) error {
	s.Disconnect()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("session stop timed out")
	}

	return s.dispatcher.Stop(ctx)
}

// Connect opens both feed channels. No-op while already connecting or
// connected.
func (s *Session) Connect() {
	s.manager.Connect()
}

// Disconnect deliberately closes both channels and resets the status
// snapshot to the disconnected baseline. No reconnect follows.
func (s *Session) Disconnect() {
	s.manager.Disconnect()
	s.status.Reset()
}

// IsConnected returns the transport-observed state of the market
// channel. This is distinct from Status().WebsocketConnected, which is
// what the backend reports about its own upstream link.
func (s *Session) IsConnected() bool {
	return s.manager.IsConnected()
}

// Subscribe requests streaming for symbol.
func (s *Session) Subscribe(symbol string) {
	s.subs.Subscribe(symbol)
}

// Unsubscribe stops streaming for symbol.
func (s *Session) Unsubscribe(symbol string) {
	s.subs.Unsubscribe(symbol)
}

// Subscriptions returns the recorded subscription intent, sorted.
func (s *Session) Subscriptions() []string {
	return s.subs.Symbols()
}

// Latest returns the most recent tick for symbol.
func (s *Session) Latest(symbol string) (model.MarketTick, bool) {
	return s.buffer.Latest(symbol)
}

// History returns up to limit ticks for symbol, newest first.
func (s *Session) History(symbol string, limit int) []model.MarketTick {
	return s.buffer.History(symbol, limit)
}

// Ticks returns the whole buffered history, newest first.
func (s *Session) Ticks() []model.MarketTick {
	return s.buffer.All()
}

// Status returns the current feed status snapshot.
func (s *Session) Status() model.FeedStatus {
	return s.status.Snapshot()
}

// Stats returns dispatcher statistics.
func (s *Session) Stats() router.Stats {
	return s.dispatcher.Stats()
}

// watchStates mirrors transport drops into the status snapshot: a dead
// channel cannot report, so the reported connectivity flag is cleared.
func (s *Session) watchStates() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case sc := <-s.manager.StateChanges():
			if sc.Kind == connection.ChannelMarket && !sc.Connected {
				s.status.MarkDisconnected()
			}
		}
	}
}
