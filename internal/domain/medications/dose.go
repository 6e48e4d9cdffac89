package medications

import (
	"context"
	"fmt"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/doserules"
)

// Ventana de de-duplicación del scheduler: si ya hay un registro de historial
// en estos últimos minutos, la dosis ya fue procesada por otro tick.
const missedDedupWindow = 5 * time.Minute

// DoseWindow es la ventana en la que una dosis puede marcarse como tomada:
// [programada - 2h, programada + tolerancia].
type DoseWindow struct {
	ScheduledAt time.Time
	Start       time.Time
	End         time.Time
}

func (s *Service) doseWindow(m Medication, now time.Time) (DoseWindow, error) {
	scheduled, err := s.clock.TimeOfDay(m.HourNextDose, now)
	if err != nil {
		return DoseWindow{}, fmt.Errorf("medication %s: %w", m.ID, err)
	}

	return DoseWindow{
		ScheduledAt: scheduled,
		Start:       scheduled.Add(-doserules.WindowBefore),
		End:         scheduled.Add(doserules.Tolerance(m.Interval.Hours)),
	}, nil
}

// doseGuard captura el estado pendiente leído; la escritura posterior de la
// transición es condicional a que siga vigente.
func doseGuard(m Medication) DoseGuard {
	return DoseGuard{
		PendingConfirmation: m.PendingConfirmation,
		PendingUntil:        m.PendingUntil,
	}
}

type RegisterResult struct {
	Message    string
	Medication Medication
	Window     DoseWindow
}

// RegisterTaken: Idle -> PendingConfirmation.
// No toca hourNextDose: el avance ocurre recién cuando el sweep confirma.
func (s *Service) RegisterTaken(ctx context.Context, userID, id string) (RegisterResult, error) {
	m, err := s.repo.GetByUser(ctx, userID, id)
	if err != nil {
		return RegisterResult{}, ErrNotFound
	}

	now := s.now()

	w, err := s.doseWindow(m, now)
	if err != nil {
		return RegisterResult{}, err
	}

	// Perdida se chequea antes que la ventana genérica para que el mensaje
	// sea preciso.
	if now.After(w.End) {
		return RegisterResult{}, &AlreadyMissedError{
			ScheduledAt: w.ScheduledAt,
			WindowEnd:   w.End,
			LateBy:      now.Sub(w.ScheduledAt),
			Tolerance:   doserules.Tolerance(m.Interval.Hours),
		}
	}
	if now.Before(w.Start) {
		return RegisterResult{}, &OutsideWindowError{
			ScheduledAt: w.ScheduledAt,
			WindowStart: w.Start,
			WindowEnd:   w.End,
		}
	}

	lastTaken := ""
	if m.LastTakenTime != nil {
		lastTaken = *m.LastTakenTime
	}
	violation, err := doserules.CheckMinimumSpacing(lastTaken, now, s.clock)
	if err != nil {
		return RegisterResult{}, err
	}
	if violation != nil {
		return RegisterResult{}, &IntervalTooSoonError{
			LastTakenAt: violation.LastTakenAt,
			AllowedAt:   violation.AllowedAt,
			Wait:        violation.Wait,
		}
	}

	// Clic adiantado: la confirmación espera hasta el horario correcto +
	// gracia. Clic dentro de la tolerancia: gracia plana desde ahora.
	var pendingUntil time.Time
	var msg string
	if now.Before(w.ScheduledAt) {
		pendingUntil = w.ScheduledAt.Add(doserules.ConfirmationGrace)
		msg = fmt.Sprintf("Dose marked early. Awaiting confirmation at %s.", s.clock.FormatTime(pendingUntil))
	} else {
		pendingUntil = now.Add(doserules.ConfirmationGrace)
		msg = fmt.Sprintf("Dose recorded. Awaiting confirmation at %s.", s.clock.FormatTime(pendingUntil))
	}

	prev := doseGuard(m)
	m.Status = true
	m.PendingConfirmation = true
	m.PendingUntil = &pendingUntil

	if err := s.repo.UpdateDoseState(ctx, m, prev); err != nil {
		return RegisterResult{}, err
	}

	return RegisterResult{Message: msg, Medication: m, Window: w}, nil
}

// CancelPending: PendingConfirmation -> Idle, sin registro de historial
// ("me arrepentí" no es una dosis tomada ni perdida). Idempotente.
func (s *Service) CancelPending(ctx context.Context, userID, id string) (Medication, error) {
	m, err := s.repo.GetByUser(ctx, userID, id)
	if err != nil {
		return Medication{}, ErrNotFound
	}

	prev := doseGuard(m)
	m.Status = false
	m.PendingConfirmation = false
	m.PendingUntil = nil

	if err := s.repo.UpdateDoseState(ctx, m, prev); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// ConfirmDose: PendingConfirmation -> Idle con hourNextDose avanzado.
// Lo invoca solo el sweep, una vez que pendingUntil <= now. La escritura
// condicional va antes del historial: si la API movió el estado entre el
// listado y la confirmación, no queda registrada una toma que no ocurrió.
func (s *Service) ConfirmDose(ctx context.Context, m Medication, now time.Time) (Medication, error) {
	prev := doseGuard(m)
	takenAt := s.clock.FormatTime(now)

	m.Status = false
	m.PendingConfirmation = false
	m.PendingUntil = nil
	m.LastTakenTime = &takenAt
	m.HourNextDose = s.advanceHour(m.HourNextDose, m.Interval.Hours, now)

	if err := s.repo.UpdateDoseState(ctx, m, prev); err != nil {
		return Medication{}, err
	}

	if _, err := s.history.Append(ctx, m.ID, true, historyOriginConfirmed, now); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// DetectMissed evalúa si la ocurrencia de hoy de hourNextDose quedó fuera de
// tolerancia sin acción del usuario. Lo invoca solo el sweep. Retorna true si
// registró una dosis perdida.
func (s *Service) DetectMissed(ctx context.Context, m Medication, now time.Time) (bool, error) {
	if m.PendingConfirmation {
		return false, nil
	}

	scheduled, err := s.clock.TimeOfDay(m.HourNextDose, now)
	if err != nil {
		return false, err
	}
	if scheduled.After(now) {
		return false, nil
	}

	if now.Sub(scheduled) <= doserules.Tolerance(m.Interval.Hours) {
		return false, nil
	}

	// Guard contra doble procesamiento (otro tick o una carrera con la API).
	recent, err := s.history.HasEntrySince(ctx, m.ID, now.Add(-missedDedupWindow))
	if err != nil {
		return false, err
	}
	if recent {
		return false, nil
	}

	prev := doseGuard(m)
	m.Status = false
	m.PendingUntil = nil
	m.HourNextDose = s.advanceHour(m.HourNextDose, m.Interval.Hours, now)

	if err := s.repo.UpdateDoseState(ctx, m, prev); err != nil {
		return false, err
	}

	if _, err := s.history.Append(ctx, m.ID, false, historyOriginMissed, now); err != nil {
		return true, err
	}
	return true, nil
}

// ForceAdvance es la válvula de escape explícita: avanza la próxima dosis un
// ciclo y resetea el estado pendiente, sin decidir tomada/perdida.
func (s *Service) ForceAdvance(ctx context.Context, userID, id string) (Medication, error) {
	m, err := s.repo.GetByUser(ctx, userID, id)
	if err != nil {
		return Medication{}, ErrNotFound
	}

	now := s.now()

	prev := doseGuard(m)
	m.Status = false
	m.PendingConfirmation = false
	m.PendingUntil = nil
	m.HourNextDose = s.advanceHour(m.HourNextDose, m.Interval.Hours, now)

	if err := s.repo.UpdateDoseState(ctx, m, prev); err != nil {
		return Medication{}, err
	}

	if _, err := s.history.Append(ctx, m.ID, false, historyOriginAutoAdvanced, now); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// advanceHour aplica la regla de avance compartida por Confirm/DetectMissed:
// - intervalos >= 24h: el HH:MM queda igual (solo avanza la fecha, implícita).
// - intervalos < 24h: suma el intervalo al instante programado hasta quedar
//   estrictamente después de now.
func (s *Service) advanceHour(hhmm string, intervalHours int, now time.Time) string {
	if intervalHours >= 24 {
		return hhmm
	}

	t, err := s.clock.TimeOfDay(hhmm, now)
	if err != nil {
		return hhmm
	}
	for !t.After(now) {
		t = t.Add(time.Duration(intervalHours) * time.Hour)
	}
	return s.clock.FormatTime(t)
}

// ---- Operaciones del sweep (consultas + expiración) ----

// ExpiredBefore lista medicamentos cuyo periodEnd quedó antes del instante
// dado (el inicio del día civil actual).
func (s *Service) ExpiredBefore(ctx context.Context, before time.Time) ([]Medication, error) {
	return s.repo.ListExpired(ctx, before)
}

func (s *Service) PendingDue(ctx context.Context, now time.Time) ([]Medication, error) {
	return s.repo.ListPendingDue(ctx, now)
}

func (s *Service) MissedCandidates(ctx context.Context, now time.Time) ([]Medication, error) {
	return s.repo.ListMissedCandidates(ctx, now)
}

// Expire borra un medicamento vencido junto con su historial.
func (s *Service) Expire(ctx context.Context, m Medication) error {
	if err := s.repo.Delete(ctx, m.ID); err != nil {
		return err
	}
	return s.history.DeleteByMedication(ctx, m.ID)
}
