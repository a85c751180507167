package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/vitos/premium_backtest/internal/domain"
	"github.com/vitos/premium_backtest/internal/usecase"
	"go.uber.org/zap"
)

// BacktestRequest asks for one run. A nil Config uses the server defaults and
// empty Points use the server's price source.
type BacktestRequest struct {
	Name          string                 `json:"name"`
	Config        *domain.BacktestConfig `json:"config,omitempty"`
	Points        []domain.PricePoint    `json:"points,omitempty"`
	Save          bool                   `json:"save"`
	IncludeEquity bool                   `json:"include_equity"`
}

// WSMessage is the reply to each request sent over the websocket.
type WSMessage struct {
	Type   string      `json:"type"` // result | error
	Result *ResultView `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

const maxRequestBytes = 16 << 20

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", zap.Error(err))
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	views := make([]RunView, len(runs))
	for i, run := range runs {
		views[i] = toRunView(run, false)
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toRunView(run, true))
}

func (s *Server) handleRunTrades(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	trades, err := s.store.ListTrades(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	missed, err := s.store.ListMissedEntries(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}

	resp := struct {
		Trades        []TradeView  `json:"trades"`
		MissedEntries []MissedView `json:"missed_entries"`
	}{Trades: toTradeViews(trades), MissedEntries: []MissedView{}}
	for _, m := range missed {
		resp.MissedEntries = append(resp.MissedEntries, MissedView(m))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunEquity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	equity, err := s.store.ListEquity(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}

	resp := struct {
		Equity   []domain.EquityPoint `json:"equity"`
		Drawdown []domain.EquityPoint `json:"drawdown"`
	}{Equity: equity, Drawdown: usecase.DrawdownSeries(equity)}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	view, err := s.runBacktest(r.Context(), req)
	if err != nil {
		s.logger.Warn("Backtest rejected", zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handleBacktestWS keeps a session open: every request message gets one
// result or error message back, in order.
func (s *Server) handleBacktestWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxRequestBytes)

	for {
		var req BacktestRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Websocket read ended", zap.Error(err))
			}
			return
		}

		msg := WSMessage{Type: "result"}
		view, err := s.runBacktest(r.Context(), req)
		if err != nil {
			msg = WSMessage{Type: "error", Error: err.Error()}
		} else {
			msg.Result = &view
		}
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Error("Websocket write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) runBacktest(ctx context.Context, req BacktestRequest) (ResultView, error) {
	cfg := s.defaults
	if req.Config != nil {
		cfg = *req.Config
	}
	points := req.Points
	if len(points) == 0 {
		if s.prices == nil {
			return ResultView{}, errors.New("no price points in request and no default price source")
		}
		var err error
		if points, err = s.prices.LoadPrices(ctx); err != nil {
			return ResultView{}, err
		}
	}

	runner, err := usecase.NewBacktestRunner(cfg, s.logger)
	if err != nil {
		return ResultView{}, err
	}
	res, err := runner.Run(ctx, points)
	if err != nil {
		return ResultView{}, err
	}

	var runID string
	if req.Save {
		name := req.Name
		if name == "" {
			name = "web"
		}
		if runID, err = s.store.SaveResult(ctx, name, runner.Config(), res); err != nil {
			return ResultView{}, err
		}
	}
	return toResultView(runID, res, req.IncludeEquity), nil
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Error("Storage error", zap.Error(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrUnorderedData),
		errors.Is(err, domain.ErrNoValidTicks):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
