package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/venue-scheduler/internal/application"
	"github.com/example/venue-scheduler/internal/scheduler"
)

type availabilityService interface {
	CheckAvailability(ctx context.Context, query application.AvailabilityQuery) (application.AvailabilityResult, error)
	GetSpaceOccupancy(ctx context.Context, spaceID string, date time.Time) ([]application.OccupancyBlock, error)
}

type AvailabilityHandler struct {
	service   availabilityService
	responder responder
	logger    *slog.Logger
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, attrs...)
}

// Check answers POST /availability.
func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Check", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode availability request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Check", "space_id", req.SpaceID, "date", req.Date)

	query, err := req.toQuery()
	if err == nil {
		var result application.AvailabilityResult
		result, err = h.service.CheckAvailability(r.Context(), query)
		if err == nil {
			logger.With("available", result.Available, "conflicts", len(result.Conflicts)).InfoContext(r.Context(), "availability checked")
			h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
				Available: result.Available,
				Conflicts: toConflictItemDTOs(result.Conflicts),
			})
			return
		}
	}

	logger.ErrorContext(r.Context(), "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}

// Occupancy answers GET /spaces/{id}/occupancy?date=.
func (h *AvailabilityHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	spaceID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Occupancy", "space_id", spaceID)

	errs := fieldErrors{}
	date := errs.date("date", r.URL.Query().Get("date"))
	if err := errs.err(); err != nil {
		logger.ErrorContext(r.Context(), "invalid occupancy query", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	blocks, err := h.service.GetSpaceOccupancy(r.Context(), spaceID, date)
	if err != nil {
		logger.ErrorContext(r.Context(), "occupancy lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(blocks)).InfoContext(r.Context(), "occupancy listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, occupancyResponse{
		SpaceID: spaceID,
		Date:    scheduler.FormatDate(date),
		Blocks:  toOccupancyBlockDTOs(blocks),
	})
}
