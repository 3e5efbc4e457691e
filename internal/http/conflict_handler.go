package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/persistence"
)

type conflictService interface {
	Displace(ctx context.Context, highEventID, initiator string) (application.DisplaceResult, error)
	GetOpenConflicts(ctx context.Context, highEventID string) ([]persistence.PriorityConflict, error)
	GetConflict(ctx context.Context, code string) (persistence.PriorityConflict, error)
	ApplyDecision(ctx context.Context, req application.DecisionRequest) (persistence.PriorityConflict, error)
}

type ConflictHandler struct {
	service   conflictService
	responder responder
	logger    *slog.Logger
}

func NewConflictHandler(service conflictService, logger *slog.Logger) *ConflictHandler {
	base := defaultLogger(logger)
	return &ConflictHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ConflictHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ConflictHandler", operation, attrs...)
}

// Displace answers POST /events/{id}/displace.
func (h *ConflictHandler) Displace(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := strings.TrimSpace(r.PathValue("id"))
	actor := ActorFromContext(r.Context())
	logger := h.log(r.Context(), "Displace", "high_event_id", eventID)

	result, err := h.service.Displace(r.Context(), eventID, actor)
	if err != nil {
		logger.ErrorContext(r.Context(), "displacement failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("conflicts", len(result.Conflicts), "blocking", len(result.Blocking)).InfoContext(r.Context(), "displacement registered")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, displaceResponse{
		Conflicts: toPriorityConflictDTOs(result.Conflicts),
		Blocking:  toConflictItemDTOs(result.Blocking),
	})
}

// ListOpen answers GET /events/{id}/conflicts.
func (h *ConflictHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "ListOpen", "high_event_id", eventID)

	conflicts, err := h.service.GetOpenConflicts(r.Context(), eventID)
	if err != nil {
		logger.ErrorContext(r.Context(), "open conflict lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(conflicts)).InfoContext(r.Context(), "open conflicts listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictsResponse{Conflicts: toPriorityConflictDTOs(conflicts)})
}

// Get answers GET /conflicts/{code}.
func (h *ConflictHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	code := strings.TrimSpace(r.PathValue("code"))
	logger := h.log(r.Context(), "Get", "conflict_code", code)

	conflict, err := h.service.GetConflict(r.Context(), code)
	if err != nil {
		logger.ErrorContext(r.Context(), "conflict lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictResponse{Conflict: toPriorityConflictDTO(conflict)})
}

// Decide answers POST /conflicts/{code}/decision.
func (h *ConflictHandler) Decide(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	code := strings.TrimSpace(r.PathValue("code"))
	actor := ActorFromContext(r.Context())

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Decide", "conflict_code", code, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode decision request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Decide", "conflict_code", code, "decision", req.Decision)

	decision, err := req.toRequest(code, actor)
	if err == nil {
		var conflict persistence.PriorityConflict
		conflict, err = h.service.ApplyDecision(r.Context(), decision)
		if err == nil {
			logger.InfoContext(r.Context(), "conflict decided")
			h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictResponse{Conflict: toPriorityConflictDTO(conflict)})
			return
		}
	}

	logger.ErrorContext(r.Context(), "conflict decision failed", "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}
