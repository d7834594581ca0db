package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gorilla/mux"

	"github.com/elys-network/ammvault/internal/events"
	"github.com/elys-network/ammvault/internal/logger"
	"github.com/elys-network/ammvault/internal/metrics"
	"github.com/elys-network/ammvault/internal/types"
	"github.com/elys-network/ammvault/internal/utils"
	"github.com/elys-network/ammvault/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// Config holds the dependencies of a WebServer. Everything except Vault is optional.
type Config struct {
	Port    string
	Vault   *vault.Vault
	Metrics *metrics.Metrics
	History events.History
	Hub     *Hub
	// DBCheck reports database health; nil means no database is configured.
	DBCheck func() error
}

// WebServer serves the read-only vault API.
type WebServer struct {
	router  *mux.Router
	port    string
	server  *http.Server
	started time.Time

	vault   *vault.Vault
	metrics *metrics.Metrics
	history events.History
	hub     *Hub
	dbCheck func() error
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) *WebServer {
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	ws := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		started: time.Now(),
		vault:   cfg.Vault,
		metrics: cfg.Metrics,
		history: cfg.History,
		hub:     cfg.Hub,
		dbCheck: cfg.DBCheck,
	}

	ws.setupRoutes()
	ws.server = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return ws
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if ws.metrics != nil {
		ws.router.Handle("/metrics", ws.metrics.Handler()).Methods("GET")
	}
	if ws.hub != nil {
		ws.router.HandleFunc("/ws/events", ws.hub.ServeWS).Methods("GET")
	}

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/owner", ws.handleGetOwner).Methods("GET")
	api.HandleFunc("/markets", ws.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{id}", ws.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{id}/shares/{account}", ws.handleGetShares).Methods("GET")
	api.HandleFunc("/markets/{id}/shares/{account}/preview", ws.handlePreviewWithdraw).Methods("GET")
	api.HandleFunc("/markets/{id}/positions/placed", ws.handleGetPlaced).Methods("GET")
	api.HandleFunc("/markets/{id}/positions/queued", ws.handleGetQueued).Methods("GET")
	api.HandleFunc("/fees", ws.handleGetFees).Methods("GET")
	api.HandleFunc("/fees/{asset}", ws.handleGetFee).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the routed handler.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server and blocks until it stops. A Shutdown returns nil.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	if ws.hub != nil {
		ws.hub.Close()
	}
	return ws.server.Shutdown(ctx)
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := "OK"
	dbStatus := "not_configured"
	if ws.dbCheck != nil {
		dbStatus = "healthy"
		if err := ws.dbCheck(); err != nil {
			webLogger.Warn().Err(err).Msg("Database health check failed")
			dbStatus = "unhealthy"
			status = "DEGRADED"
		}
	}

	markets, err := ws.vault.Markets()
	if err != nil {
		status = "DEGRADED"
	}
	clients := 0
	if ws.hub != nil {
		clients = ws.hub.Clients()
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "ammvault",
			"version": "1.0.0",
		},
		"vault_status": map[string]interface{}{
			"database":          dbStatus,
			"markets":           len(markets),
			"websocket_clients": clients,
		},
	}

	statusCode := http.StatusOK
	if status != "OK" {
		statusCode = http.StatusServiceUnavailable
	}
	ws.writeJSONResponse(w, statusCode, response)
}

func (ws *WebServer) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"owner":         ws.vault.Owner().String(),
		"account":       ws.vault.Account().String(),
		"venue_address": ws.vault.VenueAddress().String(),
	})
}

// marketView adds display fields to a market summary.
type marketView struct {
	vault.MarketSummary
	WithdrawFeePercent string `json:"withdraw_fee_percent"`
}

func newMarketView(s vault.MarketSummary) marketView {
	return marketView{MarketSummary: s, WithdrawFeePercent: utils.BpsToPercent(s.WithdrawFeeRate).StringFixed(2)}
}

func (ws *WebServer) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	summaries, err := ws.vault.Markets()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list markets")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve markets")
		return
	}
	views := make([]marketView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, newMarketView(s))
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"markets": views,
		"count":   len(views),
	})
}

func (ws *WebServer) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	market, ok := ws.marketParam(w, r)
	if !ok {
		return
	}
	summary, err := ws.vault.Market(market)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, newMarketView(summary))
}

func (ws *WebServer) handleGetShares(w http.ResponseWriter, r *http.Request) {
	market, ok := ws.marketParam(w, r)
	if !ok {
		return
	}
	account, err := sdk.AccAddressFromBech32(mux.Vars(r)["account"])
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid account address")
		return
	}
	shares, err := ws.vault.UserShares(market, account)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	total, err := ws.vault.TotalShares(market)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"market":       market,
		"account":      account.String(),
		"shares":       shares,
		"total_shares": total,
	})
}

// handlePreviewWithdraw prices redeeming the shares query parameter, or the whole balance when it is
// absent, at the current value of the market.
func (ws *WebServer) handlePreviewWithdraw(w http.ResponseWriter, r *http.Request) {
	market, ok := ws.marketParam(w, r)
	if !ok {
		return
	}
	account, err := sdk.AccAddressFromBech32(mux.Vars(r)["account"])
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid account address")
		return
	}
	var shares sdkmath.Int
	if v := r.URL.Query().Get("shares"); v != "" {
		parsed, ok := sdkmath.NewIntFromString(v)
		if !ok || !parsed.IsPositive() {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid shares")
			return
		}
		shares = parsed
	} else {
		shares, err = ws.vault.UserShares(market, account)
		if err != nil {
			ws.writeVaultError(w, err)
			return
		}
	}

	preview, err := ws.vault.PreviewWithdraw(r.Context(), market, account, shares)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"market":     market,
		"account":    account.String(),
		"withdrawal": preview,
	})
}

func (ws *WebServer) handleGetPlaced(w http.ResponseWriter, r *http.Request) {
	market, ok := ws.marketParam(w, r)
	if !ok {
		return
	}
	placed, err := ws.vault.PlacedPositions(market)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"market":    market,
		"positions": nonNil(placed),
	})
}

// handleGetQueued previews the positions the hook would place for a trade described by the
// base_for_quote and amount query parameters.
func (ws *WebServer) handleGetQueued(w http.ResponseWriter, r *http.Request) {
	market, ok := ws.marketParam(w, r)
	if !ok {
		return
	}
	trade := types.TradeParams{Amount: sdkmath.ZeroInt()}
	if v := r.URL.Query().Get("base_for_quote"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid base_for_quote")
			return
		}
		trade.BaseForQuote = b
	}
	if v := r.URL.Query().Get("amount"); v != "" {
		amount, ok := sdkmath.NewIntFromString(v)
		if !ok || amount.IsNegative() {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
			return
		}
		trade.Amount = amount
	}

	queued, err := ws.vault.QueuedPositions(r.Context(), market, trade)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"market":         market,
		"base_for_quote": trade.BaseForQuote,
		"amount":         trade.Amount,
		"positions":      nonNil(queued),
	})
}

func (ws *WebServer) handleGetFees(w http.ResponseWriter, r *http.Request) {
	fees := make(map[string]sdkmath.Int)
	for _, asset := range ws.vault.FeeAssets() {
		fees[asset] = ws.vault.WithdrawFees(asset)
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"withdraw_fees": fees})
}

func (ws *WebServer) handleGetFee(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]
	if err := sdk.ValidateDenom(asset); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid asset")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"asset":  asset,
		"amount": ws.vault.WithdrawFees(asset),
	})
}

func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Event history is not enabled")
		return
	}
	limit := defaultEventLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxEventLimit {
			limit = parsed
		}
	}

	evs, err := ws.history.History(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to read event history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	if market := r.URL.Query().Get("market"); market != "" {
		filtered := evs[:0]
		for _, ev := range evs {
			if ev.Market == market {
				filtered = append(filtered, ev)
			}
		}
		evs = filtered
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": nonNil(evs),
		"count":  len(evs),
		"limit":  limit,
	})
}

// marketParam parses the {id} path variable, writing a 400 response when it is invalid.
func (ws *WebServer) marketParam(w http.ResponseWriter, r *http.Request) (types.MarketID, bool) {
	id, err := types.ParseMarketID(mux.Vars(r)["id"])
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid market ID")
		return types.MarketID{}, false
	}
	return id, true
}

// writeVaultError maps a vault error to a status code by its kind.
func (ws *WebServer) writeVaultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrUnknownMarket):
		ws.writeErrorResponse(w, http.StatusNotFound, "Market not found")
	case errors.Is(err, types.ErrReentrantCall), errors.Is(err, types.ErrCallInFlight):
		ws.writeErrorResponse(w, http.StatusConflict, "Vault busy, retry")
	case errors.Is(err, types.ErrSharesZero), errors.Is(err, types.ErrInsuffShares):
		ws.writeErrorResponse(w, http.StatusBadRequest, "Not enough shares")
	case errors.Is(err, types.ErrVenueFailure):
		ws.writeErrorResponse(w, http.StatusBadGateway, "Venue unavailable")
	default:
		webLogger.Error().Err(err).Msg("Vault query failed")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Vault query failed")
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
