package history

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, e Entry) error

	// ListByMedication retorna la página pedida (ordenada por takendate desc)
	// y el total de registros que matchean el filtro.
	ListByMedication(ctx context.Context, medicationID string, filter ListFilter) ([]Entry, int, error)

	// HasEntrySince indica si existe algún registro con takendate >= since.
	// Guard de de-duplicación del scheduler.
	HasEntrySince(ctx context.Context, medicationID string, since time.Time) (bool, error)

	DeleteByMedication(ctx context.Context, medicationID string) error
}

type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Status StatusFilter

	Page  int
	Limit int
}
