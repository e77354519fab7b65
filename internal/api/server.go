package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/internal/config"
	"vigil/internal/engine"
	"vigil/internal/model"
	"vigil/internal/notifications"
	"vigil/internal/storage"
)

type Server struct {
	cfg     *config.Manager
	store   storage.Store
	engine  *engine.Engine
	recent  *notifications.Store
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status     string       `json:"status"`
	Time       string       `json:"time"`
	Version    string       `json:"version"`
	ConfigPath string       `json:"config_path,omitempty"`
	Storage    string       `json:"storage"`
	Dispatch   dispatchInfo `json:"dispatch"`
}

type dispatchInfo struct {
	Log     bool `json:"log"`
	Webhook bool `json:"webhook"`
	Kafka   bool `json:"kafka"`
}

// eventRequest is the POST /events payload. occurred_at defaults to now;
// severity is resolved from the event type when omitted.
type eventRequest struct {
	OrgID       string     `json:"org_id"`
	SubjectID   string     `json:"subject_id"`
	EventTypeID string     `json:"event_type_id"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
	Description string     `json:"description,omitempty"`
	RecorderID  string     `json:"recorder_id,omitempty"`
}

func Start(ctx context.Context, cfg *config.Manager, store storage.Store, eng *engine.Engine, recent *notifications.Store, logger *slog.Logger, version string) *http.Server {
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		store:   store,
		engine:  eng,
		recent:  recent,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/events", server.handleEvents)
	mux.HandleFunc("/notifications", server.handleNotifications)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Storage:    cfg.Storage.Driver,
		Dispatch: dispatchInfo{
			Log:     cfg.Dispatch.Log.Enabled,
			Webhook: cfg.Dispatch.Webhook.Enabled,
			Kafka:   cfg.Dispatch.Kafka.Enabled,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req eventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if req.OrgID == "" || req.SubjectID == "" || req.EventTypeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "org_id, subject_id and event_type_id are required"})
		return
	}
	ev := model.Event{
		OrgID:       req.OrgID,
		SubjectID:   req.SubjectID,
		EventTypeID: req.EventTypeID,
		Description: req.Description,
		RecorderID:  req.RecorderID,
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = req.OccurredAt.UTC()
	}
	stored, err := s.store.InsertEvent(r.Context(), ev)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("event insert failed", "org_id", req.OrgID, "err", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "event not recorded"})
		return
	}

	// Evaluation is fire-and-forget relative to the caller: the event is
	// recorded either way, and evaluation failures stay internal.
	s.engine.Evaluate(r.Context(), stored)

	writeJSON(w, http.StatusAccepted, map[string]any{"event": stored})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.Notification
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.recent.Since(ts)
	} else {
		list = s.recent.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": list,
		"count":         len(list),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
