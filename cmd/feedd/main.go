package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/tradedeck/marketfeed/internal/config"
	"github.com/tradedeck/marketfeed/internal/database"
	"github.com/tradedeck/marketfeed/internal/feed"
	"github.com/tradedeck/marketfeed/internal/recorder"
	"github.com/tradedeck/marketfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"base_url", cfg.Feed.BaseURL,
		"recorder_enabled", cfg.Recorder.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Create feed session
	sess := feed.NewSession(feed.Config{
		BaseURL:        cfg.Feed.BaseURL,
		HistorySize:    cfg.Feed.HistorySize,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		DialTimeout:    cfg.Feed.DialTimeout,
		WriteTimeout:   cfg.Feed.WriteTimeout,
		PingTimeout:    cfg.Feed.PingTimeout,
		MessageBuffer:  cfg.Feed.MessageBuffer,
	}, logger)

	// Connect to database and attach the tick recorder when enabled
	var pool *pgxpool.Pool
	var rec *recorder.TickRecorder
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		logger.Info("database connected")

		rec = recorder.NewTickRecorder(recorder.Config{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
			QueueSize:     cfg.Recorder.QueueSize,
		}, sess.ID(), pool, logger)
		sess.AddTickSink(rec)

		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start tick recorder", "error", err)
			os.Exit(1)
		}
	}

	// Start session and open the feed channels
	if err := sess.Start(ctx); err != nil {
		logger.Error("failed to start feed session", "error", err)
		os.Exit(1)
	}
	sess.Connect()

	// Startup subscriptions from config
	for _, symbol := range cfg.Feed.Symbols {
		sess.Subscribe(symbol)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: createHandler(sess, rec, pool, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("feedd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("http server error", "error", err)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sess.Stop(shutdownCtx)
	if rec != nil {
		rec.Stop(shutdownCtx)
	}

	logger.Info("feedd stopped")
}

// createHandler creates the HTTP read surface over the feed session.
func createHandler(sess *feed.Session, rec *recorder.TickRecorder, pool *pgxpool.Pool, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		if sess.IsConnected() {
			health.Components["feed"] = "connected"
		} else {
			health.Status = "degraded"
			health.Components["feed"] = "disconnected"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"session":       sess.ID().String(),
			"transport":     sess.IsConnected(),
			"feed":          sess.Status(),
			"subscriptions": sess.Subscriptions(),
			"dispatcher":    sess.Stats(),
		}
		if rec != nil {
			resp["recorder"] = rec.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/ticks", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "limit must be an integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		var ticks interface{}
		if symbol != "" {
			ticks = sess.History(symbol, limit)
		} else {
			ticks = sess.Ticks()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ticks)
	})

	mux.HandleFunc("/subscribe", func(w http.ResponseWriter, r *http.Request) {
		handleSubscription(w, r, sess.Subscribe, sess, logger)
	})

	mux.HandleFunc("/unsubscribe", func(w http.ResponseWriter, r *http.Request) {
		handleSubscription(w, r, sess.Unsubscribe, sess, logger)
	})

	return mux
}

func handleSubscription(w http.ResponseWriter, r *http.Request, op func(string), sess *feed.Session, logger *slog.Logger) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	op(symbol)
	logger.Debug("subscription change", "symbol", symbol, "path", r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbol":        symbol,
		"subscriptions": sess.Subscriptions(),
	})
}
