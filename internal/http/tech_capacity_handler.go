package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/scheduler"
)

type techCapacityService interface {
	HasCapacity(ctx context.Context, query application.CapacityQuery) (bool, error)
	GetCapacity(ctx context.Context, date time.Time) ([]application.BlockUsage, error)
	GetEvents(ctx context.Context, date time.Time) ([]application.TechEvent, error)
}

type TechCapacityHandler struct {
	service   techCapacityService
	responder responder
	logger    *slog.Logger
}

func NewTechCapacityHandler(service techCapacityService, logger *slog.Logger) *TechCapacityHandler {
	base := defaultLogger(logger)
	return &TechCapacityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TechCapacityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TechCapacityHandler", operation, attrs...)
}

// Check answers POST /tech-capacity/check.
func (h *TechCapacityHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Check", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode capacity request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Check", "date", req.Date, "mode", req.Mode)

	query, err := req.toQuery()
	if err == nil {
		var ok bool
		ok, err = h.service.HasCapacity(r.Context(), query)
		if err == nil {
			logger.With("has_capacity", ok).InfoContext(r.Context(), "capacity checked")
			h.responder.writeJSON(r.Context(), w, http.StatusOK, hasCapacityResponse{HasCapacity: ok})
			return
		}
	}

	logger.ErrorContext(r.Context(), "capacity check failed", "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}

// Blocks answers GET /tech-capacity?date=.
func (h *TechCapacityHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	date, ok := h.dateQuery(w, r, "Blocks")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Blocks", "date", scheduler.FormatDate(date))

	blocks, err := h.service.GetCapacity(r.Context(), date)
	if err != nil {
		logger.ErrorContext(r.Context(), "capacity lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(blocks)).InfoContext(r.Context(), "capacity listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, capacityResponse{
		Date:   scheduler.FormatDate(date),
		Blocks: toBlockUsageDTOs(blocks),
	})
}

// Events answers GET /tech-capacity/events?date=.
func (h *TechCapacityHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	date, ok := h.dateQuery(w, r, "Events")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Events", "date", scheduler.FormatDate(date))

	events, err := h.service.GetEvents(r.Context(), date)
	if err != nil {
		logger.ErrorContext(r.Context(), "technical roster lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(events)).InfoContext(r.Context(), "technical roster listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, techEventsResponse{
		Date:   scheduler.FormatDate(date),
		Events: toTechEventDTOs(events),
	})
}

func (h *TechCapacityHandler) dateQuery(w http.ResponseWriter, r *http.Request, operation string) (time.Time, bool) {
	errs := fieldErrors{}
	date := errs.date("date", r.URL.Query().Get("date"))
	if err := errs.err(); err != nil {
		h.log(r.Context(), operation, "error_kind", application.ErrorKind(err)).ErrorContext(r.Context(), "invalid date query", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return time.Time{}, false
	}
	return date, true
}
