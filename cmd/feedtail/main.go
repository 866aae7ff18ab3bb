// feedtail connects to the feed backend and streams parsed messages to
// the console. Useful for eyeballing a backend without running feedd.
//
// Usage: go run ./cmd/feedtail --url ws://localhost:8000/ws --symbols NIFTY,BANKNIFTY
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tradedeck/marketfeed/internal/connection"
	"github.com/tradedeck/marketfeed/internal/feed"
	"github.com/tradedeck/marketfeed/internal/model"
	"github.com/tradedeck/marketfeed/internal/router"
)

func main() {
	baseURL := flag.String("url", "ws://localhost:8000/ws", "base websocket URL")
	symbols := flag.String("symbols", "", "comma-separated symbols to subscribe")
	verbose := flag.Bool("verbose", false, "print full tick JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Create Connection Manager
	connCfg := connection.DefaultManagerConfig()
	connCfg.BaseURL = *baseURL
	mgr := connection.NewManager(connCfg, logger)

	// Create Dispatcher with console printers as sinks
	status := &statusPrinter{}
	ticks := &tickPrinter{verbose: *verbose}
	dsp := router.NewDispatcher(mgr.Messages(), status, logger, ticks)

	logger.Info("starting dispatcher")
	if err := dsp.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting", "url", *baseURL)
	mgr.Connect()

	// Subscribe once the market channel opens
	if *symbols != "" {
		go subscribeWhenOpen(ctx, mgr, strings.Split(*symbols, ","), logger)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := dsp.Stats()
				logger.Info("stats",
					"connected", mgr.IsConnected(),
					"frames", stats.FramesReceived,
					"ticks", stats.TicksRouted,
					"status_merges", stats.StatusMerges,
					"parse_errors", stats.ParseErrors,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	mgr.Disconnect()
	dsp.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

// subscribeWhenOpen waits for the market channel and sends the
// subscription frames.
func subscribeWhenOpen(ctx context.Context, mgr *connection.Manager, symbols []string, logger *slog.Logger) {
	for !mgr.IsConnected() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}

	subs := feed.NewSubscriptionRegistry(mgr, logger)
	for _, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		subs.Subscribe(symbol)
		logger.Info("subscribed", "symbol", symbol)
	}
}

type tickPrinter struct {
	verbose bool
}

func (p *tickPrinter) Push(tick model.MarketTick) {
	if p.verbose {
		data, _ := json.MarshalIndent(tick, "", "  ")
		fmt.Printf("[TICK] %s\n", data)
		return
	}
	fmt.Printf("[TICK] symbol=%s price=%.2f change=%+.2f (%+.2f%%) vol=%d bid=%.2f ask=%.2f\n",
		tick.Symbol, tick.Price, tick.Change, tick.ChangePercent, tick.Volume, tick.Bid, tick.Ask)
}

type statusPrinter struct{}

func (p *statusPrinter) Merge(update model.StatusUpdate) {
	parts := []string{}
	if update.WebsocketConnected != nil {
		parts = append(parts, fmt.Sprintf("ws_connected=%t", *update.WebsocketConnected))
	}
	if update.ActiveStrategies != nil {
		parts = append(parts, fmt.Sprintf("strategies=%d", *update.ActiveStrategies))
	}
	if update.LivePositions != nil {
		parts = append(parts, fmt.Sprintf("positions=%d", *update.LivePositions))
	}
	fmt.Printf("[STATUS] %s\n", strings.Join(parts, " "))
}
