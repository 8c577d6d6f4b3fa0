package net

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/internal/net/ws"
	"github.com/tstirrat/newthreat/internal/sim"
	"github.com/tstirrat/newthreat/internal/telemetry"
	"github.com/tstirrat/newthreat/logging"
	"github.com/tstirrat/newthreat/threat"
)

// maxFightBytes bounds a POSTed fight document.
const maxFightBytes = 64 << 20

type HTTPHandlerConfig struct {
	Ruleset        *threat.Config
	Publisher      logging.Publisher
	Metrics        telemetry.Metrics
	MetricsHandler nethttp.Handler
	Logger         telemetry.Logger
}

type server struct {
	hub       *ws.Hub
	ruleset   *threat.Config
	publisher logging.Publisher
	metrics   telemetry.Metrics
	logger    telemetry.Logger

	// mu serialises replays so the stream carries one fight at a time.
	mu   sync.Mutex
	last *sim.Summary
}

// NewHTTPHandler routes the replay server endpoints:
//
//	GET  /healthz      liveness
//	GET  /diagnostics  stream and last replay state
//	GET  /metrics      Prometheus exposition, when configured
//	GET  /ws           live feed of augmented events
//	POST /replay       run a fight document and broadcast the result
func NewHTTPHandler(hub *ws.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	s := &server{
		hub:       hub,
		ruleset:   cfg.Ruleset,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.health).Methods(nethttp.MethodGet)
	router.HandleFunc("/diagnostics", s.diagnostics).Methods(nethttp.MethodGet)
	router.HandleFunc("/replay", s.replay).Methods(nethttp.MethodPost)
	router.HandleFunc("/ws", ws.NewHandler(hub, ws.HandlerConfig{Logger: logger}).Handle)
	if cfg.MetricsHandler != nil {
		router.Handle("/metrics", cfg.MetricsHandler).Methods(nethttp.MethodGet)
	}
	return router
}

func (s *server) health(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (s *server) diagnostics(w nethttp.ResponseWriter, _ *nethttp.Request) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	payload := struct {
		Status      string       `json:"status"`
		ServerTime  int64        `json:"serverTime"`
		Ruleset     string       `json:"ruleset"`
		Subscribers int          `json:"subscribers"`
		LastReplay  *sim.Summary `json:"lastReplay,omitempty"`
	}{
		Status:      "ok",
		ServerTime:  time.Now().UnixMilli(),
		Subscribers: s.hub.Subscribers(),
		LastReplay:  last,
	}
	if s.ruleset != nil {
		payload.Ruleset = s.ruleset.Name
	}
	writeJSON(w, nethttp.StatusOK, payload)
}

func (s *server) replay(w nethttp.ResponseWriter, r *nethttp.Request) {
	defer r.Body.Close()
	fight, err := combatlog.DecodeFight(nethttp.MaxBytesReader(w, r.Body, maxFightBytes))
	if err != nil {
		httpError(w, err.Error(), nethttp.StatusBadRequest)
		return
	}

	summary, err := s.run(r.Context(), fight)
	if err != nil {
		s.logger.Printf("replay failed: %v", err)
		httpError(w, "replay failed", nethttp.StatusInternalServerError)
		return
	}
	writeJSON(w, nethttp.StatusOK, summary)
}

func (s *server) run(ctx context.Context, fight combatlog.Fight) (sim.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replay := sim.NewReplay(s.ruleset, fight, sim.Options{
		Publisher: s.publisher,
		Metrics:   s.metrics,
	})
	if err := s.hub.Reset(replay.TraceID()); err != nil {
		return sim.Summary{}, err
	}
	summary, err := replay.Run(ctx, fight.Events, s.hub.Emitter(replay.TraceID()))
	if err != nil {
		return summary, err
	}
	if err := s.hub.PublishSummary(summary); err != nil {
		return summary, err
	}
	s.last = &summary
	return summary, nil
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
