package clock

import (
	"testing"
	"time"
)

func mustClock(t *testing.T) *Clock {
	t.Helper()
	c, err := New(DefaultTimezone)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"08:00", 8, 0, false},
		{"23:59", 23, 59, false},
		{"08:00:00", 8, 0, false}, // formato de columna TIME
		{"8:30", 8, 30, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"nope", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tc := range cases {
		h, m, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", tc.in, err)
			continue
		}
		if h != tc.hour || m != tc.minute {
			t.Errorf("ParseTimeOfDay(%q) = %d:%d, want %d:%d", tc.in, h, m, tc.hour, tc.minute)
		}
	}
}

func TestTimeOfDay_UsesReferenceDate(t *testing.T) {
	c := mustClock(t)

	ref := time.Date(2025, 3, 10, 22, 45, 0, 0, c.Location())
	got, err := c.TimeOfDay("08:00", ref)
	if err != nil {
		t.Fatalf("TimeOfDay error: %v", err)
	}

	want := time.Date(2025, 3, 10, 8, 0, 0, 0, c.Location())
	if !got.Equal(want) {
		t.Fatalf("TimeOfDay = %v, want %v", got, want)
	}
}

func TestNextOccurrence(t *testing.T) {
	c := mustClock(t)
	loc := c.Location()

	ref := time.Date(2025, 3, 10, 10, 0, 0, 0, loc)

	// Aún no pasó: hoy
	got, err := c.NextOccurrence("14:00", ref)
	if err != nil {
		t.Fatalf("NextOccurrence error: %v", err)
	}
	if want := time.Date(2025, 3, 10, 14, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("future time: got %v, want %v", got, want)
	}

	// Exactamente ahora: hoy (inclusive)
	got, err = c.NextOccurrence("10:00", ref)
	if err != nil {
		t.Fatalf("NextOccurrence error: %v", err)
	}
	if want := time.Date(2025, 3, 10, 10, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("exact time: got %v, want %v", got, want)
	}

	// Ya pasó: mañana
	got, err = c.NextOccurrence("08:00", ref)
	if err != nil {
		t.Fatalf("NextOccurrence error: %v", err)
	}
	if want := time.Date(2025, 3, 11, 8, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("past time: got %v, want %v", got, want)
	}
}

func TestDayBounds(t *testing.T) {
	c := mustClock(t)
	loc := c.Location()

	start, err := c.StartOfDay("2025-03-10")
	if err != nil {
		t.Fatalf("StartOfDay error: %v", err)
	}
	if want := time.Date(2025, 3, 10, 0, 0, 0, 0, loc); !start.Equal(want) {
		t.Fatalf("StartOfDay = %v, want %v", start, want)
	}

	end, err := c.EndOfDay("2025-03-10")
	if err != nil {
		t.Fatalf("EndOfDay error: %v", err)
	}
	if want := time.Date(2025, 3, 10, 23, 59, 59, 0, loc); !end.Equal(want) {
		t.Fatalf("EndOfDay = %v, want %v", end, want)
	}

	if _, err := c.StartOfDay("10/03/2025"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

func TestStartOfDayAt(t *testing.T) {
	c := mustClock(t)
	loc := c.Location()

	at := time.Date(2025, 3, 10, 17, 22, 9, 0, loc)
	got := c.StartOfDayAt(at)
	if want := time.Date(2025, 3, 10, 0, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("StartOfDayAt = %v, want %v", got, want)
	}
}

func TestFormatHelpers(t *testing.T) {
	c := mustClock(t)

	at := time.Date(2025, 3, 10, 8, 5, 0, 0, c.Location())
	if got := c.FormatTime(at); got != "08:05" {
		t.Fatalf("FormatTime = %q", got)
	}
	if got := c.FormatDate(at); got != "2025-03-10" {
		t.Fatalf("FormatDate = %q", got)
	}
}
