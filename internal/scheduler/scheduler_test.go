package scheduler

import (
	"context"
	"testing"
	"time"

	mem "github.com/lucasatdriano/LembraMed-Server/internal/adapters/storage/memory"
	"github.com/lucasatdriano/LembraMed-Server/internal/domain/history"
	"github.com/lucasatdriano/LembraMed-Server/internal/domain/medications"
	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
	"github.com/lucasatdriano/LembraMed-Server/internal/platform/logger"
)

func newTestScheduler(t *testing.T) (*Scheduler, *medications.Service, *history.Service, medications.Repository, *clock.Clock) {
	t.Helper()

	clk, err := clock.New("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("clock: %v", err)
	}

	medsRepo := mem.NewMedicationsRepo()
	histSvc := history.NewService(mem.NewHistoryRepo(), clk)
	medsSvc := medications.NewService(medsRepo, histSvc, clk)

	log := logger.New(logger.Options{Level: logger.Error})
	return New(medsSvc, clk, log), medsSvc, histSvc, medsRepo, clk
}

func TestScheduler_Tick_FullSweep(t *testing.T) {
	s, _, histSvc, repo, clk := newTestScheduler(t)

	now := time.Date(2026, 3, 10, 10, 1, 0, 0, clk.Location())
	s.now = func() time.Time { return now }

	ctx := context.Background()

	// Medicamento con periodo vencido ayer: debe expirar.
	endedAt := time.Date(2026, 3, 9, 23, 59, 59, 0, clk.Location())
	ended := medications.Medication{
		ID: "med-ended", UserID: "user-1", Name: "amoxicilina",
		HourFirstDose: "08:00", HourNextDose: "08:00",
		PeriodEnd: &endedAt,
		Interval:  medications.DoseInterval{ID: 1, Hours: 8},
	}

	// Pendiente con gracia vencida: el tick lo confirma.
	pendingUntil := time.Date(2026, 3, 10, 10, 0, 0, 0, clk.Location())
	pending := medications.Medication{
		ID: "med-pending", UserID: "user-1", Name: "dipirona",
		HourFirstDose: "08:00", HourNextDose: "08:00",
		Status: true, PendingConfirmation: true, PendingUntil: &pendingUntil,
		Interval: medications.DoseInterval{ID: 1, Hours: 8},
	}

	// Idle pasado de tolerancia (08:00 + 120min < 10:01): dosis perdida.
	missed := medications.Medication{
		ID: "med-missed", UserID: "user-1", Name: "ibuprofeno",
		HourFirstDose: "08:00", HourNextDose: "08:00",
		Interval: medications.DoseInterval{ID: 1, Hours: 8},
	}

	for _, m := range []medications.Medication{ended, pending, missed} {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("seed %s: %v", m.ID, err)
		}
	}

	s.tick(ctx)

	// Expirado: borrado.
	if _, err := repo.GetByID(ctx, "med-ended"); err == nil {
		t.Fatalf("expected med-ended deleted by sweep")
	}

	// Pendiente: confirmado y avanzado.
	got, err := repo.GetByID(ctx, "med-pending")
	if err != nil {
		t.Fatalf("med-pending: %v", err)
	}
	if got.PendingConfirmation || got.PendingUntil != nil {
		t.Fatalf("expected med-pending confirmed, got %+v", got)
	}
	if got.HourNextDose != "16:00" {
		t.Fatalf("expected med-pending advanced to 16:00, got %s", got.HourNextDose)
	}
	if got.LastTakenTime == nil || *got.LastTakenTime != "10:01" {
		t.Fatalf("expected lastTakenTime 10:01, got %v", got.LastTakenTime)
	}

	// Perdido: avanzado con registro en historial.
	got, err = repo.GetByID(ctx, "med-missed")
	if err != nil {
		t.Fatalf("med-missed: %v", err)
	}
	if got.HourNextDose != "16:00" {
		t.Fatalf("expected med-missed advanced to 16:00, got %s", got.HourNextDose)
	}

	entries, total, err := histSvc.ListByMedication(ctx, "med-missed", history.ListFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 1 || entries[0].Taken || entries[0].Origin != history.OriginMissed {
		t.Fatalf("expected 1 missed entry, got total=%d entries=%+v", total, entries)
	}
}

func TestScheduler_Tick_Idempotent(t *testing.T) {
	s, _, histSvc, repo, clk := newTestScheduler(t)

	now := time.Date(2026, 3, 10, 10, 1, 0, 0, clk.Location())
	s.now = func() time.Time { return now }

	ctx := context.Background()

	if err := repo.Create(ctx, medications.Medication{
		ID: "med-1", UserID: "user-1", Name: "dipirona",
		HourFirstDose: "08:00", HourNextDose: "08:00",
		Interval: medications.DoseInterval{ID: 1, Hours: 8},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s.tick(ctx)

	// Tick siguiente, un minuto más tarde: la dosis ya avanzó a 16:00 y el
	// guard de de-duplicación cubre cualquier carrera.
	s.now = func() time.Time { return now.Add(time.Minute) }
	s.tick(ctx)

	_, total, err := histSvc.ListByMedication(ctx, "med-1", history.ListFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected exactly 1 history entry after two ticks, got %d", total)
	}
}

func TestScheduler_InitAndStop_Idempotent(t *testing.T) {
	s, _, _, _, _ := newTestScheduler(t)

	if err := s.Init(); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Init #2 error: %v", err)
	}

	s.Stop()
	s.Stop()
}
