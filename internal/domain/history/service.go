package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService recibe el reloj de la aplicación: createdAt se estampa en la
// zona configurada, nunca en la del host.
func NewService(repo Repository, clk *clock.Clock) *Service {
	return &Service{
		repo: repo,
		now:  clk.Now,
	}
}

// Append registra un evento del log. origin debe ser uno de los valores de
// Origin; se recibe como string para que el paquete medications no dependa
// de este paquete.
func (s *Service) Append(ctx context.Context, medicationID string, taken bool, origin string, at time.Time) (string, error) {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return "", ErrInvalidInput
	}

	o := Origin(origin)
	if !o.Valid() {
		return "", ErrInvalidInput
	}
	if at.IsZero() {
		return "", ErrInvalidInput
	}

	e := Entry{
		ID:           uuid.NewString(),
		MedicationID: medicationID,
		Taken:        taken,
		Origin:       o,
		TakenDate:    at,
		CreatedAt:    s.now(),
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return "", err
	}
	return e.ID, nil
}

func (s *Service) HasEntrySince(ctx context.Context, medicationID string, since time.Time) (bool, error) {
	return s.repo.HasEntrySince(ctx, medicationID, since)
}

func (s *Service) DeleteByMedication(ctx context.Context, medicationID string) error {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return ErrInvalidInput
	}
	return s.repo.DeleteByMedication(ctx, medicationID)
}

func (s *Service) ListByMedication(ctx context.Context, medicationID string, filter ListFilter) ([]Entry, int, error) {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return nil, 0, ErrInvalidInput
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Status == "" {
		filter.Status = StatusAll
	}

	return s.repo.ListByMedication(ctx, medicationID, filter)
}
