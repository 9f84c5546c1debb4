// Package server exposes the engine API over HTTP for the UI and CRUD code.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/metrics"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/prefs"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/service"
)

// Options tune the HTTP server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the engine API.
type Server struct {
	opts   Options
	engine *service.Engine
	logger zerolog.Logger
	http   *http.Server
}

// New constructs the API server.
func New(opts Options, engine *service.Engine, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	s := &Server{
		opts:   opts,
		engine: engine,
		logger: logger.With().Str("component", "http_server").Logger(),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)

	router.Get("/healthz", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Get("/prices", s.handlePrices)
		r.Post("/prices/refresh", s.handleRefresh)
		r.Get("/convert", s.handleConvert)
		r.Get("/nisab", s.handleNisab)
		r.Post("/nisab/check", s.handleNisabCheck)
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)
	})

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Run serves until ctx is cancelled, then drains with the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	table := s.engine.PriceTable(r.Context())
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	table := s.engine.Refresh(r.Context())
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	metal := pricing.Metal(r.URL.Query().Get("metal"))
	if !metal.Valid() {
		writeError(w, http.StatusBadRequest, "metal must be gold or silver")
		return
	}

	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative number")
		return
	}

	unit := pricing.Unit(r.URL.Query().Get("unit"))
	currency := pricing.Currency(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = s.engine.Preferences(r.Context()).Currency
	}
	if !currency.Valid() {
		writeError(w, http.StatusBadRequest, "unsupported currency")
		return
	}

	value, err := s.engine.Convert(r.Context(), metal, amount, unit, currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metal":    metal,
		"currency": currency,
		"value":    value,
	})
}

func (s *Server) handleNisab(w http.ResponseWriter, r *http.Request) {
	currency := pricing.Currency(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = s.engine.Preferences(r.Context()).Currency
	}
	if !currency.Valid() {
		writeError(w, http.StatusBadRequest, "unsupported currency")
		return
	}

	thresholds, err := s.engine.Nisab(r.Context(), currency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, thresholds)
}

type nisabCheckRequest struct {
	Metal      pricing.Metal   `json:"metal"`
	PrevAmount decimal.Decimal `json:"prev_amount"`
	NewAmount  decimal.Decimal `json:"new_amount"`
	Unit       pricing.Unit    `json:"unit"`
}

func (s *Server) handleNisabCheck(w http.ResponseWriter, r *http.Request) {
	var req nisabCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Metal.Valid() {
		writeError(w, http.StatusBadRequest, "metal must be gold or silver")
		return
	}

	meets, err := s.engine.CheckNisabCrossing(r.Context(), req.Metal, req.PrevAmount, req.NewAmount, req.Unit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metal":       req.Metal,
		"meets_nisab": meets,
	})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Preferences(r.Context()))
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req prefs.UserPreferences
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Cooldown state is engine-owned; a client-supplied map must not clear or
	// extend it.
	req.LastNotifiedAt = s.engine.Preferences(r.Context()).LastNotifiedAt

	if err := s.engine.SetPreferences(r.Context(), req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Preferences(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
