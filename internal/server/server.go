// Package server exposes the game over HTTP: the websocket upgrade plus
// read-only health, stats and metrics endpoints.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/driftline/driftline/internal/auth"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/room"
)

type Server struct {
	cfg      *config.Config
	rooms    *room.Registry
	verifier *auth.Verifier
	origins  *auth.OriginPolicy
	logger   *slog.Logger
	mux      *http.ServeMux
	metrics  *Metrics
	limiter  *RateLimiter
	started  time.Time
}

func New(cfg *config.Config, rooms *room.Registry, metrics *Metrics, logger *slog.Logger) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{
		cfg:      cfg,
		rooms:    rooms,
		verifier: auth.NewVerifier(cfg.TokenSecret, cfg.TokenType),
		origins:  auth.NewOriginPolicy(cfg.AllowedOrigins),
		logger:   logger,
		mux:      http.NewServeMux(),
		metrics:  metrics,
		limiter:  NewRateLimiter(5, 20),
		started:  time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.Handle("GET /metrics", s.metrics)

	upgrade := RateLimitMiddleware(s.limiter, s.logger, func() { s.metrics.IncrRejected(RejectRateLimit) })
	s.mux.Handle("GET /ws", upgrade(http.HandlerFunc(s.handleWS)))
}

type healthResponse struct {
	Status   string `json:"status"`
	Uptime   int64  `json:"uptime"`
	Rooms    int    `json:"rooms"`
	Players  int    `json:"players"`
	TickRate int    `json:"tickRate"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.rooms.Stats()
	writeJSON(w, healthResponse{
		Status:   "ok",
		Uptime:   int64(time.Since(s.started).Seconds()),
		Rooms:    st.Rooms,
		Players:  st.Players,
		TickRate: s.cfg.TickRate,
	})
}

type memoryUsage struct {
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapInuse  uint64 `json:"heapInuse"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"numGC"`
	Goroutines int    `json:"goroutines"`
}

type statsResponse struct {
	Rooms       int         `json:"rooms"`
	Players     int         `json:"players"`
	TickRate    int         `json:"tickRate"`
	MemoryUsage memoryUsage `json:"memoryUsage"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	st := s.rooms.Stats()
	writeJSON(w, statsResponse{
		Rooms:    st.Rooms,
		Players:  st.Players,
		TickRate: s.cfg.TickRate,
		MemoryUsage: memoryUsage{
			HeapAlloc:  mem.HeapAlloc,
			HeapInuse:  mem.HeapInuse,
			Sys:        mem.Sys,
			NumGC:      mem.NumGC,
			Goroutines: runtime.NumGoroutine(),
		},
	})
}

func (s *Server) Handler() http.Handler {
	return ChainMiddleware(s.mux,
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		CORSMiddleware,
	)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
