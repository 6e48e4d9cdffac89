package doserules

import (
	"testing"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
)

func TestToleranceMinutes(t *testing.T) {
	cases := []struct {
		intervalHours int
		want          int
	}{
		{1, 15},
		{4, 60},
		{6, 90},
		{8, 120},
		{12, 180},
		{24, 360},
		{48, 720},
	}

	for _, tc := range cases {
		if got := ToleranceMinutes(tc.intervalHours); got != tc.want {
			t.Errorf("ToleranceMinutes(%d) = %d, want %d", tc.intervalHours, got, tc.want)
		}
	}
}

func TestTolerance_Duration(t *testing.T) {
	if got := Tolerance(8); got != 120*time.Minute {
		t.Fatalf("Tolerance(8) = %v, want 2h", got)
	}
}

func TestCheckMinimumSpacing(t *testing.T) {
	clk, err := clock.New(clock.DefaultTimezone)
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	loc := clk.Location()

	now := time.Date(2025, 3, 10, 10, 0, 0, 0, loc)

	t.Run("sin última dosis pasa", func(t *testing.T) {
		v, err := CheckMinimumSpacing("", now, clk)
		if err != nil || v != nil {
			t.Fatalf("got violation=%v err=%v", v, err)
		}
	})

	t.Run("menos de 2h desde la última", func(t *testing.T) {
		v, err := CheckMinimumSpacing("09:00", now, clk)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if v == nil {
			t.Fatalf("expected violation")
		}
		if v.Wait != time.Hour {
			t.Fatalf("Wait = %v, want 1h", v.Wait)
		}
		if want := time.Date(2025, 3, 10, 11, 0, 0, 0, loc); !v.AllowedAt.Equal(want) {
			t.Fatalf("AllowedAt = %v, want %v", v.AllowedAt, want)
		}
	})

	t.Run("exactamente 2h pasa", func(t *testing.T) {
		v, err := CheckMinimumSpacing("08:00", now, clk)
		if err != nil || v != nil {
			t.Fatalf("got violation=%v err=%v", v, err)
		}
	})

	t.Run("hora futura se interpreta como ayer", func(t *testing.T) {
		// 21:00 respecto de las 10:00 => ayer 21:00, hace 13h: pasa.
		v, err := CheckMinimumSpacing("21:00", now, clk)
		if err != nil || v != nil {
			t.Fatalf("got violation=%v err=%v", v, err)
		}
	})

	t.Run("ayer cerca de medianoche sigue bloqueando", func(t *testing.T) {
		lateNow := time.Date(2025, 3, 10, 0, 30, 0, 0, loc)
		// 23:45 => ayer 23:45, hace 45min.
		v, err := CheckMinimumSpacing("23:45", lateNow, clk)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if v == nil {
			t.Fatalf("expected violation")
		}
		if v.Wait != 75*time.Minute {
			t.Fatalf("Wait = %v, want 75min", v.Wait)
		}
	})
}
