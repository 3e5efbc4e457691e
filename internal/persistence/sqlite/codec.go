package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/example/venue-scheduler/internal/scheduler"
)

// Column encodings: timestamps as RFC3339 UTC text, dates as YYYY-MM-DD and
// times of day as zero padded HH:MM so lexical order matches time order.

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func parseNullTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTimestamp(*t)
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func emptyAsNull(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseDateTimes(date, from, to string) (time.Time, scheduler.TimeOfDay, scheduler.TimeOfDay, error) {
	d, err := scheduler.ParseDate(date)
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	start, err := scheduler.ParseTimeOfDay(from)
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	end, err := scheduler.ParseTimeOfDay(to)
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	return d, start, end, nil
}
