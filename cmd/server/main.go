// Package main provides the trade lifecycle server: it owns the trade
// database, reconciles executed flips into profit statistics, and exposes
// a read API plus Prometheus metrics over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"radbot-core/internal/config"
	"radbot-core/internal/domain"
	"radbot-core/internal/observability"
	"radbot-core/internal/pricing"
	"radbot-core/internal/reconcile"
	"radbot-core/internal/rollback"
	"radbot-core/internal/stats"
	"radbot-core/internal/storage"
	"radbot-core/internal/storage/memory"
	"radbot-core/internal/storage/migrations"
	"radbot-core/internal/storage/sqlite"
)

// Server holds all components of the service.
type Server struct {
	cfg    *config.Config
	stores *allStores

	engine      *reconcile.Engine
	aggregator  *stats.Aggregator
	coordinator *rollback.Coordinator
	oracle      *pricing.StaticOracle

	logger  *log.Logger
	started time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	tx      storage.TxRunner
	trades  storage.TradeStore
	ledger  storage.FlipLedger
	history storage.HistoryStore
	stats   storage.StatisticsStore
	daily   storage.DailyStatisticsStore
	wallets storage.WalletDirectory
	pairs   storage.PairDirectory
}

func main() {
	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("RADBOT_CONFIG"), "Path to YAML configuration file")
	dbPath := flag.String("db", os.Getenv("RADBOT_DB"), "Path to the SQLite database (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of SQLite")
	listenAddr := flag.String("listen-addr", "", "API HTTP address (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Flag overrides
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *useMemory {
		cfg.Database.UseMemory = true
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.Default()
	oracle := pricing.NewStaticOracle()
	aggregator := stats.NewAggregator(stores.stats, stores.daily, cfg.Statistics.DailyRetentionDays, metrics)
	engine := reconcile.NewEngine(reconcile.Deps{
		DB:                 stores.tx,
		Trades:             stores.trades,
		Ledger:             stores.ledger,
		History:            stores.history,
		Pairs:              stores.pairs,
		Wallets:            stores.wallets,
		Aggregator:         aggregator,
		Oracle:             oracle,
		NativeTokenAddress: cfg.Engine.NativeTokenAddress,
		Metrics:            metrics,
	})

	server := &Server{
		cfg:         cfg,
		stores:      stores,
		engine:      engine,
		aggregator:  aggregator,
		coordinator: rollback.NewCoordinator(stores.tx, stores.trades, stores.history, metrics),
		oracle:      oracle,
		logger:      logger,
		started:     time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start metrics endpoint
	go server.startMetricsServer(cfg.Server.MetricsAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*allStores, func(), error) {
	if cfg.Database.UseMemory {
		backend := memory.NewBackend()
		stores := &allStores{
			tx:      backend,
			trades:  memory.NewTradeStore(backend),
			ledger:  memory.NewFlipLedger(backend),
			history: memory.NewHistoryStore(backend),
			stats:   memory.NewStatisticsStore(backend),
			daily:   memory.NewDailyStatisticsStore(backend),
			wallets: memory.NewWalletDirectory(backend),
			pairs:   memory.NewPairDirectory(backend),
		}
		logger.Println("Using in-memory storage")
		return stores, func() {}, nil
	}

	db, err := sqlite.Open(cfg.Database.Path, cfg.RetryPolicy())
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := migrations.RunSQLiteMigrations(ctx, db.SQL); err != nil {
		db.SQL.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Printf("Using SQLite storage at %s", cfg.Database.Path)

	stores := &allStores{
		tx:      db,
		trades:  sqlite.NewTradeStore(db),
		ledger:  sqlite.NewFlipLedger(db),
		history: sqlite.NewHistoryStore(db),
		stats:   sqlite.NewStatisticsStore(db),
		daily:   sqlite.NewDailyStatisticsStore(db),
		wallets: sqlite.NewWalletDirectory(db),
		pairs:   sqlite.NewPairDirectory(db),
	}
	cleanup := func() {
		if err := db.SQL.Close(); err != nil {
			logger.Printf("Error closing database: %v", err)
		}
	}
	return stores, cleanup, nil
}

// Run serves the read API until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/wallets/{address}/statistics", s.handleWalletStatistics)
	mux.HandleFunc("GET /api/wallets/{address}/daily", s.handleWalletDaily)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/trades/{id}/executions", s.handleRecordExecution)
	mux.HandleFunc("POST /api/trades/{id}/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /api/trades/{id}/rollback", s.handleRollback)
	mux.HandleFunc("PUT /api/prices/{address}", s.handleSetPrice)
	mux.HandleFunc("DELETE /api/prices/{address}", s.handleRemovePrice)

	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Starting API server on %s", s.cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown API server: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// startMetricsServer starts the HTTP server for health/metrics.
func (s *Server) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	s.logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("Metrics server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Backend string `json:"backend"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	backend := "sqlite"
	if s.cfg.Database.UseMemory {
		backend = "memory"
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "running",
		Uptime:  time.Since(s.started).String(),
		Backend: backend,
	})
}

// WalletStatisticsResponse is the JSON shape of one wallet's lifetime
// statistics.
type WalletStatisticsResponse struct {
	WalletAddress string `json:"wallet_address"`

	TotalTradesCreated int `json:"total_trades_created"`
	TotalTradesDeleted int `json:"total_trades_deleted"`
	WinningTrades      int `json:"winning_trades"`
	LosingTrades       int `json:"losing_trades"`

	CurrentWinningStreak int `json:"current_winning_streak"`
	CurrentLosingStreak  int `json:"current_losing_streak"`
	LongestWinningStreak int `json:"longest_winning_streak"`
	LongestLosingStreak  int `json:"longest_losing_streak"`

	TotalProfitLossUSD string `json:"total_profit_loss_usd"`
	TotalProfitUSD     string `json:"total_profit_usd"`
	TotalLossUSD       string `json:"total_loss_usd"`
	TotalProfitXRD     string `json:"total_profit_xrd"`
	TotalLossXRD       string `json:"total_loss_xrd"`

	WinRatePercentage     float64 `json:"win_rate_percentage"`
	AverageProfitPerTrade string  `json:"average_profit_per_trade"`
	LastCalculated        int64   `json:"last_calculated"`
}

func (s *Server) handleWalletStatistics(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	walletID, err := s.stores.wallets.IDByAddress(r.Context(), address)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	ws, err := s.aggregator.Statistics(r.Context(), walletID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, WalletStatisticsResponse{
		WalletAddress:         address,
		TotalTradesCreated:    ws.TotalTradesCreated,
		TotalTradesDeleted:    ws.TotalTradesDeleted,
		WinningTrades:         ws.WinningTrades,
		LosingTrades:          ws.LosingTrades,
		CurrentWinningStreak:  ws.CurrentWinningStreak,
		CurrentLosingStreak:   ws.CurrentLosingStreak,
		LongestWinningStreak:  ws.LongestWinningStreak,
		LongestLosingStreak:   ws.LongestLosingStreak,
		TotalProfitLossUSD:    ws.TotalProfitLossUSD.String(),
		TotalProfitUSD:        ws.TotalProfitUSD.String(),
		TotalLossUSD:          ws.TotalLossUSD.String(),
		TotalProfitXRD:        ws.TotalProfitXRD.String(),
		TotalLossXRD:          ws.TotalLossXRD.String(),
		WinRatePercentage:     ws.WinRatePercentage,
		AverageProfitPerTrade: ws.AverageProfitPerTrade.String(),
		LastCalculated:        ws.LastCalculated,
	})
}

// DailyStatisticsResponse is one calendar-day rollup.
type DailyStatisticsResponse struct {
	Date          string `json:"date"`
	ProfitLossXRD string `json:"profit_loss_xrd"`
	ProfitLossUSD string `json:"profit_loss_usd"`
	VolumeXRD     string `json:"volume_xrd"`
	VolumeUSD     string `json:"volume_usd"`
}

func (s *Server) handleWalletDaily(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	walletID, err := s.stores.wallets.IDByAddress(r.Context(), address)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	days := s.cfg.Statistics.DailyRetentionDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	rows, err := s.aggregator.Daily(r.Context(), walletID, days)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	resp := make([]DailyStatisticsResponse, 0, len(rows))
	for _, d := range rows {
		resp = append(resp, DailyStatisticsResponse{
			Date:          d.Date,
			ProfitLossXRD: d.ProfitLossXRD.String(),
			ProfitLossUSD: d.ProfitLossUSD.String(),
			VolumeXRD:     d.VolumeXRD.String(),
			VolumeUSD:     d.VolumeUSD.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HistoryEntryResponse is one executed swap in the history feed.
type HistoryEntryResponse struct {
	TradeID         string  `json:"trade_id"`
	WalletAddress   string  `json:"wallet_address"`
	Pair            string  `json:"pair"`
	Side            string  `json:"side"`
	AmountBase      string  `json:"amount_base"`
	AmountQuote     string  `json:"amount_quote"`
	Price           float64 `json:"price"`
	USDValue        string  `json:"usd_value"`
	Timestamp       int64   `json:"timestamp"`
	Status          string  `json:"status"`
	StrategyName    string  `json:"strategy_name"`
	TransactionHash string  `json:"transaction_hash,omitempty"`
	ProfitDisplay   string  `json:"profit_display,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.HistoryFilter{WalletAddress: q.Get("wallet")}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("start"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be a unix millisecond timestamp")
			return
		}
		filter.StartTime = n
	}
	if v := q.Get("end"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be a unix millisecond timestamp")
			return
		}
		filter.EndTime = n
	}

	entries, err := s.stores.history.Query(r.Context(), filter)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	resp := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		row := HistoryEntryResponse{
			TradeID:         e.TradeID,
			WalletAddress:   e.WalletAddress,
			Pair:            e.Pair,
			Side:            e.Side,
			AmountBase:      e.AmountBase.String(),
			AmountQuote:     e.AmountQuote.String(),
			Price:           e.Price,
			USDValue:        e.USDValue.String(),
			Timestamp:       e.Timestamp,
			Status:          e.Status,
			StrategyName:    e.StrategyName,
			TransactionHash: e.TransactionHash,
		}
		if e.Annotation != nil {
			row.ProfitDisplay = e.Annotation.Display
		}
		resp = append(resp, row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExecutionRequest is one executed (or failed) swap leg reported by the
// trading shell. Amounts are decimal strings.
type ExecutionRequest struct {
	Timestamp       int64   `json:"timestamp"`
	Side            string  `json:"side"`
	AmountIn        string  `json:"amount_in"`
	TokenInAddress  string  `json:"token_in_address"`
	AmountOut       string  `json:"amount_out"`
	TokenOutAddress string  `json:"token_out_address"`
	Price           float64 `json:"price"`
	TransactionID   string  `json:"transaction_id"`

	// Failed marks a rejected submission: it is recorded in the trade
	// history only and never touches the position or the flip ledger.
	Failed bool `json:"failed"`
}

func (req *ExecutionRequest) leg(tradeID string) (*domain.FlipLeg, error) {
	amountIn, err := decimal.NewFromString(req.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("amount_in: %w", err)
	}
	amountOut, err := decimal.NewFromString(req.AmountOut)
	if err != nil {
		return nil, fmt.Errorf("amount_out: %w", err)
	}
	return &domain.FlipLeg{
		TradeID:         tradeID,
		Timestamp:       req.Timestamp,
		Side:            req.Side,
		AmountIn:        amountIn,
		TokenInAddress:  req.TokenInAddress,
		AmountOut:       amountOut,
		TokenOutAddress: req.TokenOutAddress,
		Price:           req.Price,
		TransactionID:   req.TransactionID,
	}, nil
}

// ExecutionResponse reports what recording one leg did.
type ExecutionResponse struct {
	TimesFlipped float64 `json:"times_flipped"`
	Measured     bool    `json:"measured"`
	Profit       string  `json:"profit,omitempty"`
	ProfitXRD    string  `json:"profit_xrd,omitempty"`
	ProfitUSD    string  `json:"profit_usd,omitempty"`
	Profitable   bool    `json:"profitable"`
	Tier         string  `json:"conversion_tier,omitempty"`
	Display      string  `json:"display,omitempty"`
}

func (s *Server) handleRecordExecution(w http.ResponseWriter, r *http.Request) {
	tradeID := r.PathValue("id")

	var req ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	leg, err := req.leg(tradeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Failed {
		if err := s.engine.RecordFailure(r.Context(), tradeID, leg); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ExecutionResponse{})
		return
	}

	outcome, err := s.engine.RecordExecution(r.Context(), tradeID, leg)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			writeError(w, http.StatusConflict, "transaction already recorded")
			return
		}
		writeStorageError(w, err)
		return
	}
	if outcome == nil {
		// Unknown trade: the swap happened on ledger, acknowledge it.
		writeJSON(w, http.StatusAccepted, ExecutionResponse{})
		return
	}

	resp := ExecutionResponse{
		TimesFlipped: outcome.TimesFlipped,
		Measured:     outcome.Measured,
		Profitable:   outcome.Profitable,
	}
	if outcome.Measured {
		resp.Profit = outcome.Profit.String()
		resp.ProfitXRD = outcome.ProfitXRD.String()
		resp.ProfitUSD = outcome.ProfitUSD.String()
		resp.Tier = string(outcome.Tier)
		resp.Display = outcome.Display
	}
	writeJSON(w, http.StatusOK, resp)
}

// SnapshotResponse is the position snapshot taken before a submission.
// The shell posts it back verbatim to roll the trade back.
type SnapshotResponse struct {
	TradeTokenAddress string  `json:"trade_token_address"`
	TradeTokenSymbol  string  `json:"trade_token_symbol"`
	TradeAmount       string  `json:"trade_amount"`
	TimesFlipped      float64 `json:"times_flipped"`
	TradeVolume       string  `json:"trade_volume"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.coordinator.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotResponse{
		TradeTokenAddress: snap.TradeTokenAddress,
		TradeTokenSymbol:  snap.TradeTokenSymbol,
		TradeAmount:       snap.TradeAmount.String(),
		TimesFlipped:      snap.TimesFlipped,
		TradeVolume:       snap.TradeVolume.String(),
	})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req SnapshotResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	amount, err := decimal.NewFromString(req.TradeAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "trade_amount: "+err.Error())
		return
	}
	volume, err := decimal.NewFromString(req.TradeVolume)
	if err != nil {
		writeError(w, http.StatusBadRequest, "trade_volume: "+err.Error())
		return
	}

	snap := &rollback.Snapshot{
		TradeTokenAddress: req.TradeTokenAddress,
		TradeTokenSymbol:  req.TradeTokenSymbol,
		TradeAmount:       amount,
		TimesFlipped:      req.TimesFlipped,
		TradeVolume:       volume,
	}
	if err := s.coordinator.Rollback(r.Context(), r.PathValue("id"), snap); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PriceRequest carries the latest quote for one token. Prices are decimal
// strings; an absent or non-positive price marks that denomination unknown.
type PriceRequest struct {
	NativePrice string `json:"native_price"`
	USDPrice    string `json:"usd_price"`
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var price pricing.TokenPrice
	if req.NativePrice != "" {
		d, err := decimal.NewFromString(req.NativePrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "native_price: "+err.Error())
			return
		}
		price.NativePrice = d
	}
	if req.USDPrice != "" {
		d, err := decimal.NewFromString(req.USDPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "usd_price: "+err.Error())
			return
		}
		price.USDPrice = d
	}

	s.oracle.Set(r.PathValue("address"), price)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemovePrice(w http.ResponseWriter, r *http.Request) {
	s.oracle.Remove(r.PathValue("address"))
	w.WriteHeader(http.StatusNoContent)
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
