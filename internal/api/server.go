// Package api provides the HTTP host layer: read-only observation of the
// simulation plus the endpoint that steps a turn. The core never depends on
// anything here — the API only consumes the engine's entry point.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/bruno7317/cloudweave-sim/internal/engine"
	"github.com/bruno7317/cloudweave-sim/internal/market"
	"github.com/bruno7317/cloudweave-sim/internal/persistence"
)

const defaultEventLimit = 50

// Server serves the simulation over HTTP.
type Server struct {
	Eng  *engine.Engine
	DB   *persistence.DB // Optional; /events answers 503 when absent.
	Port int
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	turnLimiter := NewRateLimiter(60, time.Minute)

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/turn", RateLimitMiddleware(turnLimiter, s.handleTurn)).Methods(http.MethodPost)
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/countries", s.handleCountries).Methods(http.MethodGet)
	v1.HandleFunc("/market", s.handleMarket).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           corsMiddleware(r),
			ReadHeaderTimeout: 5 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// handleTurn steps exactly one turn and returns its event log.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	turn, events := s.Eng.StepTurn()
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"turn":   turn,
		"events": events,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tm := s.Eng.TM
	writeJSON(w, http.StatusOK, map[string]any{
		"turn":        tm.Turn(),
		"resource":    tm.Resource(),
		"countries":   len(tm.Countries()),
		"open_offers": tm.Book().Len(),
	})
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries := s.Eng.TM.Countries()
	out := make([]any, 0, len(countries))
	for _, c := range countries {
		out = append(out, c.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	tm := s.Eng.TM

	accounts := make([]market.Account, 0)
	for _, c := range tm.Countries() {
		accounts = append(accounts, c)
	}

	offers := tm.Book().Offers()
	views := make([]market.OfferView, 0, len(offers))
	for _, o := range offers {
		views = append(views, o.View())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"base_price": tm.Book().BasePrice(accounts),
		"offers":     views,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := s.DB.RecentEvents(limit)
	if err != nil {
		slog.Error("event query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "event query failed")
		return
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// corsMiddleware mirrors the permissive policy of the frontend this serves.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
