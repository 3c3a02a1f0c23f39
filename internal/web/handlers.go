package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"eventedge/internal/config"
	"eventedge/internal/engine"
	"eventedge/internal/provider"
	"eventedge/internal/symbols"
)

// UniverseResponse represents available universes
type UniverseResponse struct {
	Universes []UniverseInfo `json:"universes"`
}

// UniverseInfo contains universe details
type UniverseInfo struct {
	ID      string   `json:"id"`
	Count   int      `json:"count"`
	Symbols []string `json:"symbols"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleAnalyze runs one analysis.
//
//	GET /api/analyze/AAPL?mode=earnings&past_only=1&hold_min=1&hold_max=60
//	    &sort=score,hit_point&top=25&sample_size=40&fallback_days=1
//
// The symbol may also be passed as ?symbol=.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sym := mux.Vars(r)["symbol"]
	if sym == "" {
		sym = q.Get("symbol")
	}
	sym = symbols.Normalize(sym)
	if sym == "" {
		writeError(w, http.StatusBadRequest, errors.New("symbol is required"))
		return
	}

	cfg, err := s.requestConfig(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ecfg, err := cfg.AnalyzerConfig(s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if cfg.Scanner.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Scanner.Timeout)
		defer cancel()
	}

	bars, err := s.provider.GetDailyBars(ctx, sym, provider.HistoryStart)
	if err != nil {
		writeError(w, upstreamStatus(err), fmt.Errorf("fetching prices for %s: %w", sym, err))
		return
	}
	anchors, err := s.provider.GetAnchors(ctx, sym, ecfg.Mode)
	if err != nil {
		writeError(w, upstreamStatus(err), fmt.Errorf("fetching %s dates for %s: %w", ecfg.Mode, sym, err))
		return
	}

	opts := []engine.Option{engine.WithLogger(*zerolog.Ctx(ctx))}
	if s.metrics != nil {
		opts = append(opts, engine.WithMetrics(s.metrics))
	}
	a, err := engine.NewAnalyzer(ecfg, opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.Run(ctx, sym, bars, anchors)
	if err != nil {
		writeError(w, upstreamStatus(err), err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// requestConfig copies the server config and applies query overrides
func (s *Server) requestConfig(q url.Values) (*config.Config, error) {
	cfg := *s.config
	a := &cfg.Analysis
	a.Sort = append([]string(nil), a.Sort...)

	if v := q.Get("mode"); v != "" {
		a.Mode = v
	}
	if v := q.Get("past_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("past_only: %w", err)
		}
		a.PastOnly = b
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"hold_min", &a.HoldMin},
		{"hold_max", &a.HoldMax},
		{"top", &a.Top},
		{"fallback_days", &a.FallbackDays},
	}
	for _, p := range ints {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.name, err)
			}
			*p.dst = n
		}
	}
	if v := q.Get("sample_size"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("sample_size: %w", err)
		}
		a.SampleSize = f
	}
	if v := q.Get("sort"); v != "" {
		a.Sort = strings.Split(v, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// handleUniverses lists the predefined symbol universes
func (s *Server) handleUniverses(w http.ResponseWriter, r *http.Request) {
	resp := UniverseResponse{}
	for _, name := range symbols.Universes() {
		syms, err := symbols.GetUniverse(symbols.Universe(name))
		if err != nil {
			continue
		}
		resp.Universes = append(resp.Universes, UniverseInfo{ID: name, Count: len(syms), Symbols: syms})
	}
	writeJSON(w, http.StatusOK, resp)
}

func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, provider.ErrNotSupported):
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

// writeJSON encodes before writing the header so an encoding failure can
// still be reported as a 500
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: fmt.Sprintf("encoding response: %v", err)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
