package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/venue-scheduler/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyClosed):
		return "already_closed"
	case errors.Is(err, ErrBusy):
		return "busy"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var aErr *AvailabilityConflictError
	if errors.As(err, &aErr) {
		return "availability_conflict"
	}
	var cErr *TechCapacityExceededError
	if errors.As(err, &cErr) {
		return "tech_capacity_exceeded"
	}

	return "unexpected"
}

// isRejection reports whether err is a business outcome rather than a fault.
func isRejection(err error) bool {
	switch ErrorKind(err) {
	case "unexpected", "":
		return false
	default:
		return true
	}
}
