package medications

import (
	"context"
	"testing"
	"time"
)

func TestService_Create_NormalizesName_AndReusesInterval(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	m1, err := svc.Create(context.Background(), "user-1", CreateInput{
		Name:          "  Dipirona  ",
		HourFirstDose: "08:00",
		IntervalHours: 8,
	})
	if err != nil {
		t.Fatalf("Create #1 error: %v", err)
	}
	if m1.Name != "dipirona" {
		t.Fatalf("expected lowercased name, got %q", m1.Name)
	}
	if m1.HourNextDose != "08:00" {
		t.Fatalf("expected hourNextDose = hourFirstDose, got %s", m1.HourNextDose)
	}
	if m1.Status || m1.PendingConfirmation {
		t.Fatalf("expected new medication idle, got %+v", m1)
	}

	m2, err := svc.Create(context.Background(), "user-1", CreateInput{
		Name:          "ibuprofeno",
		HourFirstDose: "12:00",
		IntervalHours: 8,
	})
	if err != nil {
		t.Fatalf("Create #2 error: %v", err)
	}

	// Mismo valor de horas => misma fila de intervalo.
	if m1.Interval.ID != m2.Interval.ID {
		t.Fatalf("expected shared interval, got %d vs %d", m1.Interval.ID, m2.Interval.ID)
	}
	if len(repo.intervals) != 1 {
		t.Fatalf("expected 1 interval row, got %d", len(repo.intervals))
	}
}

func TestService_Create_RejectsInvalidInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"hora inválida", CreateInput{Name: "x", HourFirstDose: "25:00", IntervalHours: 8}},
		{"sin nombre", CreateInput{Name: "  ", HourFirstDose: "08:00", IntervalHours: 8}},
		{"intervalo cero", CreateInput{Name: "x", HourFirstDose: "08:00", IntervalHours: 0}},
		{"periodo invertido", CreateInput{
			Name: "x", HourFirstDose: "08:00", IntervalHours: 8,
			PeriodStart: "2026-03-10", PeriodEnd: "2026-03-01",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), "user-1", tc.in); err != ErrInvalidInput {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestService_Create_PeriodCoversWholeEndDay(t *testing.T) {
	svc, _, _, clk := newTestService(t)

	m, err := svc.Create(context.Background(), "user-1", CreateInput{
		Name:          "amoxicilina",
		HourFirstDose: "08:00",
		IntervalHours: 8,
		PeriodStart:   "2026-03-01",
		PeriodEnd:     "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	wantStart := time.Date(2026, 3, 1, 0, 0, 0, 0, clk.Location())
	wantEnd := time.Date(2026, 3, 10, 23, 59, 59, 0, clk.Location())

	if m.PeriodStart == nil || !m.PeriodStart.Equal(wantStart) {
		t.Fatalf("expected period start %v, got %v", wantStart, m.PeriodStart)
	}
	if m.PeriodEnd == nil || !m.PeriodEnd.Equal(wantEnd) {
		t.Fatalf("expected period end %v, got %v", wantEnd, m.PeriodEnd)
	}
}

func TestService_Update_IntervalChange_ShiftsPastDose(t *testing.T) {
	svc, repo, _, clk := newTestService(t)
	seedMedication(t, repo, 8)

	// 09:00: el horario vigente (08:00) ya pasó hoy.
	svc.now = func() time.Time { return at(clk, 9, 0) }

	six := 6
	m, err := svc.Update(context.Background(), "user-1", "med-1", UpdateInput{
		IntervalHours: &six,
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if m.Interval.Hours != 6 {
		t.Fatalf("expected interval 6h, got %d", m.Interval.Hours)
	}
	if m.HourNextDose != "14:00" {
		t.Fatalf("expected next dose shifted to 14:00, got %s", m.HourNextDose)
	}
}

func TestService_Update_IntervalChange_KeepsFutureDose(t *testing.T) {
	svc, repo, _, clk := newTestService(t)
	seedMedication(t, repo, 8)

	// 07:00: el horario vigente todavía no llegó; no se corre.
	svc.now = func() time.Time { return at(clk, 7, 0) }

	six := 6
	m, err := svc.Update(context.Background(), "user-1", "med-1", UpdateInput{
		IntervalHours: &six,
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if m.HourNextDose != "08:00" {
		t.Fatalf("expected next dose kept at 08:00, got %s", m.HourNextDose)
	}
}

func TestService_Update_ExplicitHourWins(t *testing.T) {
	svc, repo, _, clk := newTestService(t)
	seedMedication(t, repo, 8)

	svc.now = func() time.Time { return at(clk, 9, 0) }

	six := 6
	hour := "20:30"
	m, err := svc.Update(context.Background(), "user-1", "med-1", UpdateInput{
		IntervalHours: &six,
		HourNextDose:  &hour,
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if m.HourNextDose != "20:30" {
		t.Fatalf("expected explicit hour 20:30, got %s", m.HourNextDose)
	}
}

func TestService_Get_WrongUser_NotFound(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	seedMedication(t, repo, 8)

	if _, err := svc.Get(context.Background(), "user-2", "med-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestService_Delete_CascadesHistory(t *testing.T) {
	svc, repo, hist, clk := newTestService(t)
	m := seedMedication(t, repo, 8)

	if _, err := hist.Append(context.Background(), m.ID, true, "confirmed", at(clk, 8, 0)); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	if _, err := svc.Delete(context.Background(), "user-1", "med-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	if _, err := repo.GetByID(context.Background(), "med-1"); err == nil {
		t.Fatalf("expected medication deleted")
	}
	if len(hist.entries) != 0 {
		t.Fatalf("expected history deleted, got %d entries", len(hist.entries))
	}
}

func TestService_List_ActivesFirstByNextDose(t *testing.T) {
	svc, repo, _, clk := newTestService(t)

	end := at(clk, 0, 0).AddDate(0, 0, -1) // régimen ya terminado
	meds := []Medication{
		{ID: "m-late", UserID: "user-1", Name: "c", HourNextDose: "22:00", Interval: DoseInterval{ID: 1, Hours: 8}},
		{ID: "m-soon", UserID: "user-1", Name: "a", HourNextDose: "10:00", Interval: DoseInterval{ID: 1, Hours: 8}},
		{ID: "m-done", UserID: "user-1", Name: "b", HourNextDose: "09:00", PeriodEnd: &end, Interval: DoseInterval{ID: 1, Hours: 8}},
	}
	for _, m := range meds {
		if err := repo.Create(context.Background(), m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc.now = func() time.Time { return at(clk, 9, 0) }

	items, total, err := svc.List(context.Background(), "user-1", Page{Number: 1, Size: 20})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 items, got %d (total %d)", len(items), total)
	}

	if items[0].ID != "m-soon" || items[1].ID != "m-late" {
		t.Fatalf("expected actives ordered by next dose, got %s, %s", items[0].ID, items[1].ID)
	}
	// El régimen terminado queda al final, sin próxima dosis.
	if items[2].ID != "m-done" || items[2].NextDoseAt != nil {
		t.Fatalf("expected finished regimen last with nil next dose, got %+v", items[2])
	}
}
