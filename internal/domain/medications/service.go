package medications

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
)

// HistoryLog es el log append-only de dosis que consume la máquina de
// estados. Definido acá (y no importando el paquete history) para que la
// dependencia apunte hacia afuera.
type HistoryLog interface {
	Append(ctx context.Context, medicationID string, taken bool, origin string, at time.Time) (string, error)
	HasEntrySince(ctx context.Context, medicationID string, since time.Time) (bool, error)
	DeleteByMedication(ctx context.Context, medicationID string) error
}

// Valores de origin que escribe este paquete. Tienen que coincidir con
// history.Origin.
const (
	historyOriginConfirmed    = "confirmed"
	historyOriginMissed       = "missed_by_scheduler"
	historyOriginAutoAdvanced = "auto_advanced"
)

type Service struct {
	repo    Repository
	history HistoryLog
	clock   *clock.Clock
	now     func() time.Time
}

func NewService(repo Repository, hist HistoryLog, clk *clock.Clock) *Service {
	return &Service{
		repo:    repo,
		history: hist,
		clock:   clk,
		now:     clk.Now,
	}
}

type CreateInput struct {
	Name          string
	HourFirstDose string
	PeriodStart   string // "YYYY-MM-DD", vacío = sin límite
	PeriodEnd     string
	IntervalHours int
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Medication, error) {
	userID = strings.TrimSpace(userID)
	name := strings.ToLower(strings.TrimSpace(in.Name))

	if userID == "" || name == "" {
		return Medication{}, ErrInvalidInput
	}
	if !clock.IsValidTimeOfDay(in.HourFirstDose) {
		return Medication{}, ErrInvalidInput
	}
	if in.IntervalHours < 1 {
		return Medication{}, ErrInvalidInput
	}

	var periodStart, periodEnd *time.Time
	if strings.TrimSpace(in.PeriodStart) != "" {
		t, err := s.clock.StartOfDay(in.PeriodStart)
		if err != nil {
			return Medication{}, ErrInvalidInput
		}
		periodStart = &t
	}
	if strings.TrimSpace(in.PeriodEnd) != "" {
		t, err := s.clock.EndOfDay(in.PeriodEnd)
		if err != nil {
			return Medication{}, ErrInvalidInput
		}
		periodEnd = &t
	}
	if periodStart != nil && periodEnd != nil && periodEnd.Before(*periodStart) {
		return Medication{}, ErrInvalidInput
	}

	interval, err := s.repo.FindOrCreateInterval(ctx, in.IntervalHours)
	if err != nil {
		return Medication{}, err
	}

	m := Medication{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		HourFirstDose: in.HourFirstDose,
		HourNextDose:  in.HourFirstDose,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		Status:        false,
		Interval:      interval,
		CreatedAt:     s.now(),
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (Medication, error) {
	m, err := s.repo.GetByUser(ctx, userID, id)
	if err != nil {
		return Medication{}, ErrNotFound
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, userID string, page Page) ([]ListItem, int, error) {
	page = normalizePage(page)

	items, total, err := s.repo.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, 0, err
	}
	return s.withNextDose(items), total, nil
}

func (s *Service) Search(ctx context.Context, userID, query string, page Page) ([]ListItem, int, error) {
	page = normalizePage(page)

	items, total, err := s.repo.Search(ctx, userID, strings.TrimSpace(query), page)
	if err != nil {
		return nil, 0, err
	}
	return s.withNextDose(items), total, nil
}

type UpdateInput struct {
	// Punteros para PATCH real: nil = no tocar.
	Name          *string
	HourNextDose  *string
	PeriodStart   *string
	PeriodEnd     *string
	IntervalHours *int
}

func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (Medication, error) {
	m, err := s.repo.GetByUser(ctx, userID, id)
	if err != nil {
		return Medication{}, ErrNotFound
	}

	now := s.now()

	if in.Name != nil {
		name := strings.ToLower(strings.TrimSpace(*in.Name))
		if name == "" {
			return Medication{}, ErrInvalidInput
		}
		m.Name = name
	}

	if in.HourNextDose != nil {
		if !clock.IsValidTimeOfDay(*in.HourNextDose) {
			return Medication{}, ErrInvalidInput
		}
		m.HourNextDose = *in.HourNextDose
	}

	if in.PeriodStart != nil {
		t, err := s.clock.StartOfDay(*in.PeriodStart)
		if err != nil {
			return Medication{}, ErrInvalidInput
		}
		m.PeriodStart = &t
	}
	if in.PeriodEnd != nil {
		t, err := s.clock.EndOfDay(*in.PeriodEnd)
		if err != nil {
			return Medication{}, ErrInvalidInput
		}
		m.PeriodEnd = &t
	}
	if m.PeriodStart != nil && m.PeriodEnd != nil && m.PeriodEnd.Before(*m.PeriodStart) {
		return Medication{}, ErrInvalidInput
	}

	if in.IntervalHours != nil {
		if *in.IntervalHours < 1 {
			return Medication{}, ErrInvalidInput
		}

		interval, err := s.repo.FindOrCreateInterval(ctx, *in.IntervalHours)
		if err != nil {
			return Medication{}, err
		}
		m.Interval = interval

		// Cambió el intervalo sin horario explícito: si el horario vigente
		// ya pasó hoy, corre la próxima dosis un intervalo hacia adelante.
		if in.HourNextDose == nil && m.HourNextDose != "" {
			scheduled, err := s.clock.TimeOfDay(m.HourNextDose, now)
			if err == nil && now.After(scheduled) {
				m.HourNextDose = s.clock.FormatTime(
					scheduled.Add(time.Duration(interval.Hours) * time.Hour),
				)
			}
		}
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) (Medication, error) {
	m, err := s.repo.GetByUser(ctx, userID, id)
	if err != nil {
		return Medication{}, ErrNotFound
	}

	if err := s.repo.Delete(ctx, m.ID); err != nil {
		return Medication{}, err
	}
	// En Postgres la FK ya borra en cascada; el adapter in-memory necesita
	// el borrado explícito. Idempotente en ambos.
	if err := s.history.DeleteByMedication(ctx, m.ID); err != nil {
		return Medication{}, err
	}

	return m, nil
}

// nextDoseAt resuelve la próxima dosis de un medicamento a un instante,
// o nil si no hay próxima (régimen terminado, horario inválido).
func (s *Service) nextDoseAt(m Medication, now time.Time) *time.Time {
	if m.PendingUntil != nil {
		t := s.clock.In(*m.PendingUntil)
		return &t
	}

	t, err := s.clock.NextOccurrence(m.HourNextDose, now)
	if err != nil {
		return nil
	}
	if m.PeriodEnd != nil && t.After(*m.PeriodEnd) {
		return nil
	}
	return &t
}

func (s *Service) withNextDose(items []Medication) []ListItem {
	now := s.now()

	out := make([]ListItem, 0, len(items))
	for _, m := range items {
		out = append(out, ListItem{
			Medication: m,
			NextDoseAt: s.nextDoseAt(m, now),
		})
	}

	// Activos primero (por cercanía de la próxima dosis), inactivos al final.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].NextDoseAt, out[j].NextDoseAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})

	return out
}

func normalizePage(p Page) Page {
	if p.Number <= 0 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = 20
	}
	if p.Size > 100 {
		p.Size = 100
	}
	return p
}
