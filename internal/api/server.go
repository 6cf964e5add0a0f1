package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openhold/doorkeeper/internal/door"
	"github.com/openhold/doorkeeper/internal/infrastructure/config"
	"github.com/openhold/doorkeeper/internal/infrastructure/logging"
	"github.com/openhold/doorkeeper/internal/infrastructure/mqtt"
	"github.com/openhold/doorkeeper/internal/journal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// requestTimeout bounds handler-side journal queries.
const requestTimeout = 5 * time.Second

// Publisher publishes remote door requests onto the bus.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger *logging.Logger

	// Status supplies the current controller snapshot.
	Status func() door.Snapshot

	// Journal is optional; without it the history endpoint returns 404.
	Journal journal.Store

	// Publisher carries POSTed door requests to the bus.
	Publisher Publisher

	Device string
	QoS    byte
}

// Server is the HTTP status API. It exposes the controller snapshot,
// the transition history and a remote request endpoint.
type Server struct {
	cfg       config.APIConfig
	log       *logging.Logger
	status    func() door.Snapshot
	journal   journal.Store
	publisher Publisher
	device    string
	qos       byte
	topics    mqtt.Topics

	server *http.Server
}

// New creates an API server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status source is required")
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	return &Server{
		cfg:       deps.Config,
		log:       deps.Logger.With("component", "api"),
		status:    deps.Status,
		journal:   deps.Journal,
		publisher: deps.Publisher,
		device:    deps.Device,
		qos:       deps.QoS,
	}, nil
}

// Start begins serving on the configured address. It returns once the
// listener is bound; serving continues in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding api listener on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if serveErr := s.server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.log.Error("api server stopped", "error", serveErr)
		}
	}()

	s.log.Info("api listening", "address", listener.Addr().String())
	return nil
}

// Close shuts the server down gracefully.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// buildRouter creates the HTTP router with all routes.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Post("/request", s.handleRequest)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns the controller's current snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleHistory returns recent journal entries, newest first.
// Query parameter limit caps the result (default 50, max 200).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "not_found", "transition journal is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	entries, err := s.journal.Recent(ctx, limit)
	if err != nil {
		s.log.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "querying history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// requestBody is the POST /request payload.
type requestBody struct {
	State int `json:"state"`
}

// handleRequest republishes a door request onto the bus; the controller
// consumes it like any other remote request, preconditions included.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	req, err := door.ParseRequestState(strconv.Itoa(body.State))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid door request state %d", body.State))
		return
	}

	topic := s.topics.DoorRequest(s.device)
	if err := s.publisher.Publish(topic, []byte(strconv.Itoa(int(req))), s.qos, false); err != nil {
		s.log.Error("publishing door request", "topic", topic, "error", err)
		writeError(w, http.StatusBadGateway, "publish_failed", "forwarding request to the bus failed")
		return
	}

	s.log.Info("door request accepted", "request", req.String())
	writeJSON(w, http.StatusAccepted, map[string]string{"request": req.String()})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"status":  status,
		"code":    code,
		"message": message,
	})
}
