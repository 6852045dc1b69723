// Package httpapi serves a live.Provider over HTTP in the request/response
// shape polled by live.HTTPProvider, so that a replayed history can stand in
// for the market-data function during paper runs.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"algotemplate/internal/live"
)

// MarketDataServer answers market-data polls from a provider.
type MarketDataServer struct {
	source live.Provider
	log    *slog.Logger
}

// NewMarketDataServer creates a server relaying source.
func NewMarketDataServer(source live.Provider, log *slog.Logger) *MarketDataServer {
	return &MarketDataServer{source: source, log: log}
}

// RegisterRoutes registers all routes on the given mux.
func (s *MarketDataServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /market-data", s.handleMarketData)
	mux.HandleFunc("GET /market-data", s.handleMarketData)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (s *MarketDataServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *MarketDataServer) handleMarketData(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if r.Method == http.MethodPost {
		var req struct {
			Symbol string `json:"symbol"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Symbol != "" {
			symbol = req.Symbol
		}
	}

	points, err := s.source.Latest(r.Context())
	if err != nil {
		s.log.Warn("source poll failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if points == nil {
		points = []live.Point{}
	}
	s.log.Debug("served points", "symbol", symbol, "count", len(points))
	writeJSON(w, points)
}

func (s *MarketDataServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
