package scheduler

import (
	"errors"
	"testing"
	"time"
)

var testDate = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

func window(t *testing.T, from, to string) TimeWindow {
	t.Helper()
	w, err := NewTimeWindow(testDate, MustParseTimeOfDay(from), MustParseTimeOfDay(to))
	if err != nil {
		t.Fatalf("NewTimeWindow(%s, %s): %v", from, to, err)
	}
	return w
}

func TestNewTimeWindow_RejectsInvalidRanges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		date     time.Time
		from, to TimeOfDay
	}{
		{name: "from equals to", date: testDate, from: NewTimeOfDay(10, 0), to: NewTimeOfDay(10, 0)},
		{name: "from after to", date: testDate, from: NewTimeOfDay(11, 0), to: NewTimeOfDay(10, 0)},
		{name: "missing date", from: NewTimeOfDay(9, 0), to: NewTimeOfDay(10, 0)},
		{name: "beyond end of day", date: testDate, from: NewTimeOfDay(23, 0), to: NewTimeOfDay(25, 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewTimeWindow(tc.date, tc.from, tc.to); !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestTimeWindow_OverlapsIsSymmetric(t *testing.T) {
	t.Parallel()

	windows := []TimeWindow{
		window(t, "08:00", "09:00"),
		window(t, "08:30", "10:00"),
		window(t, "09:00", "09:30"),
		window(t, "07:00", "12:00"),
		window(t, "12:00", "13:00"),
		window(t, "00:00", "24:00"),
	}

	for i, a := range windows {
		for j, b := range windows {
			if a.Overlaps(b) != b.Overlaps(a) {
				t.Fatalf("overlap not symmetric for %d (%s) and %d (%s)", i, a, j, b)
			}
		}
	}
}

func TestTimeWindow_TouchingBoundariesDoNotOverlap(t *testing.T) {
	t.Parallel()

	morning := window(t, "10:00", "11:00")
	noon := window(t, "11:00", "12:00")

	if morning.Overlaps(noon) || noon.Overlaps(morning) {
		t.Fatalf("touching windows %s and %s must not overlap", morning, noon)
	}
	if !morning.Overlaps(window(t, "10:59", "11:30")) {
		t.Fatalf("expected overlap when intervals share a minute")
	}
}

func TestTimeWindow_DifferentDatesNeverOverlap(t *testing.T) {
	t.Parallel()

	today := window(t, "09:00", "10:00")
	tomorrow := MustTimeWindow(testDate.AddDate(0, 0, 1), NewTimeOfDay(9, 0), NewTimeOfDay(10, 0))
	if today.Overlaps(tomorrow) {
		t.Fatalf("windows on different dates must not overlap")
	}
}

func TestTimeWindow_WithBuffersClampsToDay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		from, to      string
		before, after int
		wantStart     string
		wantEnd       string
	}{
		{name: "plain buffers", from: "10:00", to: "11:00", before: 15, after: 30, wantStart: "09:45", wantEnd: "11:30"},
		{name: "late event clamps at midnight", from: "23:45", to: "23:55", before: 0, after: 30, wantStart: "23:45", wantEnd: "24:00"},
		{name: "early event clamps at day start", from: "00:10", to: "01:00", before: 60, after: 0, wantStart: "00:00", wantEnd: "01:00"},
		{name: "negative buffers ignored", from: "10:00", to: "11:00", before: -5, after: -5, wantStart: "10:00", wantEnd: "11:00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			buffered := window(t, tc.from, tc.to).WithBuffers(tc.before, tc.after)
			if got := buffered.Start().String(); got != tc.wantStart {
				t.Fatalf("start = %s, want %s", got, tc.wantStart)
			}
			if got := buffered.End().String(); got != tc.wantEnd {
				t.Fatalf("end = %s, want %s", got, tc.wantEnd)
			}
			if !buffered.Date().Equal(testDate) {
				t.Fatalf("buffered window moved to %s", buffered.Date())
			}
		})
	}
}

func TestTimeWindow_WithBuffersReturnsNewValue(t *testing.T) {
	t.Parallel()

	raw := window(t, "10:00", "11:00")
	_ = raw.WithBuffers(30, 30)
	if raw.Start() != NewTimeOfDay(10, 0) || raw.End() != NewTimeOfDay(11, 0) {
		t.Fatalf("WithBuffers mutated the receiver: %s", raw)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	valid := map[string]TimeOfDay{
		"00:00":    0,
		"09:30":    NewTimeOfDay(9, 30),
		"24:00":    EndOfDay,
		"13:05:00": NewTimeOfDay(13, 5),
	}
	for input, want := range valid {
		got, err := ParseTimeOfDay(input)
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseTimeOfDay(%q) = %d, want %d", input, got, want)
		}
	}

	for _, input := range []string{"", "9", "25:00", "24:01", "10:60", "aa:bb", "10:00:30"} {
		if _, err := ParseTimeOfDay(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}

	if EndOfDay.String() != "24:00" {
		t.Fatalf("end of day renders as %s", EndOfDay)
	}
}
