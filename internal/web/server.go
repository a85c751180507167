package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/premium_backtest/internal/domain"
	"go.uber.org/zap"
)

// RunStore is the storage the server reads runs from and saves new runs to.
type RunStore interface {
	domain.ResultRepository
	ListMissedEntries(ctx context.Context, runID string) ([]domain.MissedEntry, error)
}

// Server exposes stored runs and on-demand backtests over HTTP and websocket.
type Server struct {
	router   *http.ServeMux
	server   *http.Server
	store    RunStore
	defaults domain.BacktestConfig
	prices   domain.PriceSource
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer wires the routes. defaults fills a request that sends no config
// and prices serves requests that send no price points.
func NewServer(port int, store RunStore, defaults domain.BacktestConfig, prices domain.PriceSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:   http.NewServeMux(),
		store:    store,
		defaults: defaults,
		prices:   prices,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Stored runs
	s.router.HandleFunc("GET /api/runs", s.handleListRuns)
	s.router.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	s.router.HandleFunc("GET /api/runs/{id}/trades", s.handleRunTrades)
	s.router.HandleFunc("GET /api/runs/{id}/equity", s.handleRunEquity)

	// Backtests
	s.router.HandleFunc("POST /api/backtest", s.handleBacktest)
	s.router.HandleFunc("GET /ws/backtest", s.handleBacktestWS)

	s.router.HandleFunc("GET /status", s.handleStatus)
}

// Handler returns the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
