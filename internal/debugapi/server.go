// Package debugapi is a small chi-routed local introspection surface:
// GET /healthz, GET /state and POST /queue. It adapts the teacher's router/writeJSON/
// CorrelationMiddleware shape (internal/httpapi/router.go,
// internal/httpapi/middleware.go) to a single-user, single-process client
// engine instead of a multi-tenant REST API.
package debugapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/syncengine/internal/engine"
)

// StateProvider is satisfied by *orchestrator.Orchestrator.
type StateProvider interface {
	State() engine.EngineState
}

// QueueCounter is satisfied by *queue.Queue.
type QueueCounter interface {
	Count(ctx context.Context) (int, error)
	FailedCount(ctx context.Context) (int, error)
}

// OperationQueuer is satisfied by *orchestrator.Orchestrator's
// QueueOperation.
type OperationQueuer interface {
	QueueOperation(ctx context.Context, op engine.Operation, table, recordID string, payload map[string]any) error
}

// Server exposes the engine's running state over HTTP for local debugging.
type Server struct {
	orchestrator StateProvider
	queue        QueueCounter
	queuer       OperationQueuer
}

// New builds the debug HTTP handler. orchestrator must satisfy both
// StateProvider and OperationQueuer (*orchestrator.Orchestrator does).
func New(orchestrator interface {
	StateProvider
	OperationQueuer
}, q QueueCounter) http.Handler {
	s := &Server{orchestrator: orchestrator, queue: q, queuer: orchestrator}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(correlationMiddleware)
	r.Get("/healthz", s.healthz)
	r.Get("/state", s.state)
	r.Post("/queue", s.queueOperation)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stateResponse struct {
	Status         string  `json:"status"`
	LastSyncAt     *int64  `json:"lastSyncAt,omitempty"`
	PendingChanges int     `json:"pendingChanges"`
	DeadLetterCount int    `json:"deadLetterCount"`
	Error          *string `json:"error,omitempty"`
	IsSyncing      bool    `json:"isSyncing"`
}

// state reports the orchestrator's current state plus the dead-letter
// count, surfacing spec §4.2's failed()/purge_failed() queue classification
// for operators instead of only via the in-process API.
func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	st := s.orchestrator.State()

	deadLetters, err := s.queue.FailedCount(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to count dead-lettered queue items")
	}

	resp := stateResponse{
		Status:          string(st.Status),
		LastSyncAt:      st.LastSyncAt,
		PendingChanges:  st.PendingChanges,
		DeadLetterCount: deadLetters,
		Error:           st.Error,
		IsSyncing:       st.IsSyncing,
	}

	writeJSON(w, http.StatusOK, resp)
}

type queueOperationRequest struct {
	Operation string         `json:"operation"`
	TableName string         `json:"tableName"`
	RecordID  string         `json:"recordId"`
	Payload   map[string]any `json:"payload"`
}

// queueOperation lets a host application enqueue a local mutation without
// going through its own write path, mirroring spec §4.6's
// queue_operation(op, table, rid, payload).
func (s *Server) queueOperation(w http.ResponseWriter, r *http.Request) {
	var req queueOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TableName == "" || req.RecordID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tableName and recordId are required"})
		return
	}

	op := engine.Operation(req.Operation)
	if err := s.queuer.QueueOperation(r.Context(), op, req.TableName, req.RecordID, req.Payload); err != nil {
		log.Error().Err(err).Msg("failed to queue operation")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to queue operation"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode debugapi response")
	}
}

type correlationKey struct{}

// correlationMiddleware mirrors the teacher's CorrelationMiddleware: stamp
// an X-Correlation-ID on the response and attach it to the request logger.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("X-Correlation-ID", correlationID)

		ctx := context.WithValue(r.Context(), correlationKey{}, correlationID)
		logger := log.With().Str("correlation_id", correlationID).Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
