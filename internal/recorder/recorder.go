package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradedeck/marketfeed/internal/model"
)

// Config holds tick recorder settings.
type Config struct {
	BatchSize     int           // Max rows per insert batch
	FlushInterval time.Duration // Max time a row waits before flushing
	QueueSize     int           // Initial staging queue capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		QueueSize:     1000,
	}
}

// TickRecorder persists every received tick into the market_feed table
// for historical analysis. It implements router.TickSink: Push stages a
// tick without blocking the dispatch path; a background loop flushes
// batches on size or interval.
type TickRecorder struct {
	cfg     Config
	session uuid.UUID
	logger  *slog.Logger

	queue *Queue[model.MarketTick]
	db    *pgxpool.Pool

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metricsMu sync.Mutex
	metrics   Metrics
}

// Metrics contains recorder counters.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64 // Ticks pushed after the queue closed
}

// tickRow is one market_feed row.
type tickRow struct {
	Symbol        string
	Price         float64
	Change        float64
	ChangePercent float64
	Volume        int64
	TickTS        int64 // Tick timestamp (µs since epoch)
	ReceivedAt    int64 // Insert staging time (µs since epoch)
	Bid           float64
	Ask           float64
	High          float64
	Low           float64
	Open          float64
	SessionID     uuid.UUID
}

// NewTickRecorder creates a recorder writing through db, tagging rows
// with the owning feed session.
func NewTickRecorder(cfg Config, session uuid.UUID, db *pgxpool.Pool, logger *slog.Logger) *TickRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &TickRecorder{
		cfg:     cfg,
		session: session,
		logger:  logger,
		queue:   NewQueue[model.MarketTick](cfg.QueueSize),
		db:      db,
	}
}

// Push stages a tick for persistence. Never blocks. Ticks arriving
// after Stop closed the queue are counted as dropped.
func (r *TickRecorder) Push(tick model.MarketTick) {
	if r.queue.Push(tick) {
		return
	}

	r.metricsMu.Lock()
	r.metrics.Dropped++
	r.metricsMu.Unlock()
	r.logger.Debug("tick dropped, recorder stopped", "symbol", tick.Symbol)
}

// Start begins the flush loop.
func (r *TickRecorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("tick recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop flushes remaining ticks and shuts down.
func (r *TickRecorder) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("tick recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("tick recorder stop timed out")
	}

	r.queue.Close()
	r.flush()

	return nil
}

// Stats returns current metrics.
func (r *TickRecorder) Stats() Metrics {
	r.metricsMu.Lock()
	defer r.metricsMu.Unlock()
	return r.metrics
}

// flushLoop flushes staged ticks on the configured interval.
func (r *TickRecorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.flush()
		}
	}
}

// flush drains the queue and inserts batches until it is empty.
func (r *TickRecorder) flush() {
	for {
		ticks := r.queue.Drain(r.cfg.BatchSize)
		if len(ticks) == 0 {
			return
		}

		rows := make([]tickRow, len(ticks))
		for i, t := range ticks {
			rows[i] = r.transform(t)
		}

		start := time.Now()
		conflicts, err := r.batchInsert(rows)
		if err != nil {
			r.logger.Error("batch insert failed", "error", err, "count", len(rows))
			r.metricsMu.Lock()
			r.metrics.Errors++
			r.metricsMu.Unlock()
			return
		}

		r.metricsMu.Lock()
		r.metrics.Inserts += int64(len(rows) - conflicts)
		r.metrics.Conflicts += int64(conflicts)
		r.metrics.Flushes++
		r.metricsMu.Unlock()

		r.logger.Debug("flushed ticks",
			"count", len(rows),
			"conflicts", conflicts,
			"duration", time.Since(start),
		)
	}
}

// transform converts a tick to a market_feed row.
func (r *TickRecorder) transform(t model.MarketTick) tickRow {
	return tickRow{
		Symbol:        t.Symbol,
		Price:         t.Price,
		Change:        t.Change,
		ChangePercent: t.ChangePercent,
		Volume:        t.Volume,
		TickTS:        t.Timestamp.UnixMicro(),
		ReceivedAt:    time.Now().UnixMicro(),
		Bid:           t.Bid,
		Ask:           t.Ask,
		High:          t.High,
		Low:           t.Low,
		Open:          t.Open,
		SessionID:     r.session,
	}
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *TickRecorder) batchInsert(rows []tickRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO market_feed (symbol, ltp, change, change_percent, volume, tick_ts, received_at, bid, ask, high, low, open, session_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (symbol, tick_ts) DO NOTHING
		`, row.Symbol, row.Price, row.Change, row.ChangePercent, row.Volume, row.TickTS, row.ReceivedAt, row.Bid, row.Ask, row.High, row.Low, row.Open, row.SessionID)
	}

	// Not tied to the run context so the final flush during Stop still lands.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
