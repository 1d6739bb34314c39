package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rokbot/titlebot/internal/config"
	"github.com/rokbot/titlebot/internal/event"
	"github.com/rokbot/titlebot/internal/queue"
	"github.com/rokbot/titlebot/internal/store"
)

// StatusSource exposes the queues. *queue.Registry satisfies it.
type StatusSource interface {
	Snapshot() []queue.Snapshot
}

// RequestLog reads finished requests. *store.Store satisfies it.
type RequestLog interface {
	RecentRequests(ctx context.Context, kingdom string, limit int) ([]store.LogEntry, error)
}

type HttpServer struct {
	logger *slog.Logger
	server *http.Server
	status StatusSource
	log    RequestLog
	hub    *hub
}

func New(logger *slog.Logger, status StatusSource, log RequestLog) *HttpServer {
	return &HttpServer{
		logger: logger,
		status: status,
		log:    log,
		hub:    newHub(logger),
	}
}

// Handler returns the routes served by Listen.
func (s *HttpServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/queues", s.queues)
	mux.HandleFunc("/api/kingdoms", s.kingdoms)
	mux.HandleFunc("/api/requests", s.requests)
	mux.HandleFunc("/ws", s.hub.HandleWebSocket)
	return mux
}

func (s *HttpServer) Listen(ctx context.Context, port int) error {
	go s.hub.Run(ctx)
	go s.broadcastStatus(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Status server listening", slog.Int("port", port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HttpServer) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

type eventMessage struct {
	Type       string         `json:"type"`
	Kingdom    string         `json:"kingdom,omitempty"`
	Message    string         `json:"message"`
	OccurredAt time.Time      `json:"occurredAt"`
	Request    *queue.Request `json:"request,omitempty"`
	State      queue.State    `json:"state,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

func newEventMessage(e event.Event) eventMessage {
	m := eventMessage{Kingdom: e.Kingdom(), Message: e.Message(), OccurredAt: e.OccurredAt()}
	switch evt := e.(type) {
	case event.RequestQueuedEvent:
		m.Type, m.Request = "requestQueued", &evt.Request
	case event.StateChangedEvent:
		m.Type, m.Request, m.State = "stateChanged", &evt.Request, evt.State
	case event.RequestFinishedEvent:
		m.Type, m.Request, m.Reason = "requestFinished", &evt.Request, string(evt.Reason)
	case event.ConnectionLostEvent:
		m.Type, m.Request = "connectionLost", &evt.Request
	case event.AppRefreshedEvent:
		m.Type = "appRefreshed"
	case event.NgrokTunnelEvent:
		m.Type = "ngrokTunnel"
	default:
		m.Type = "text"
	}
	return m
}

// Handle streams every event to websocket clients.
func (s *HttpServer) Handle(_ context.Context, e event.Event) error {
	data, err := json.Marshal(newEventMessage(e))
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	s.hub.Broadcast(data)
	return nil
}

type statusMessage struct {
	Type   string           `json:"type"`
	Queues []queue.Snapshot `json:"queues"`
}

func (s *HttpServer) broadcastStatus(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := json.Marshal(statusMessage{Type: "status", Queues: s.status.Snapshot()})
			if err != nil {
				s.logger.Error("Failed to marshal status data", slog.Any("error", err))
				continue
			}
			s.hub.Broadcast(data)
		}
	}
}

func (s *HttpServer) queues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Snapshot())
}

func (s *HttpServer) kingdoms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.GetKingdoms())
}

func (s *HttpServer) requests(w http.ResponseWriter, r *http.Request) {
	kingdom := r.URL.Query().Get("kingdom")
	if !config.ValidKingdomID(kingdom) {
		http.Error(w, "kingdom must be a 4 digit id", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.log.RecentRequests(r.Context(), kingdom, limit)
	if err != nil {
		s.logger.Error("Failed to read request log", slog.Any("error", err))
		http.Error(w, "failed to read request log", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
