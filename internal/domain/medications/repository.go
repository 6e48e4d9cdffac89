package medications

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, m Medication) error
	Update(ctx context.Context, m Medication) error

	// UpdateDoseState persiste los campos de la máquina de dosis solo si el
	// estado pendiente en storage todavía coincide con prev (el leído al
	// iniciar la transición). Falla con ErrStaleDoseState si otra transición
	// ganó la carrera.
	UpdateDoseState(ctx context.Context, m Medication, prev DoseGuard) error

	Delete(ctx context.Context, id string) error

	GetByID(ctx context.Context, id string) (Medication, error)
	// GetByUser falla con ErrNotFound si el medicamento no existe o no
	// pertenece al usuario.
	GetByUser(ctx context.Context, userID, id string) (Medication, error)

	ListByUser(ctx context.Context, userID string, page Page) ([]Medication, int, error)
	// Search matchea substring del nombre; si query es numérica también
	// matchea el intervalo en horas.
	Search(ctx context.Context, userID, query string, page Page) ([]Medication, int, error)

	// Consultas del sweep.
	ListExpired(ctx context.Context, before time.Time) ([]Medication, error)
	ListPendingDue(ctx context.Context, now time.Time) ([]Medication, error)
	ListMissedCandidates(ctx context.Context, now time.Time) ([]Medication, error)

	// FindOrCreateInterval deduplica por valor.
	FindOrCreateInterval(ctx context.Context, hours int) (DoseInterval, error)
}

// DoseGuard es el estado pendiente contra el que se condiciona una
// transición de dosis. API y sweep corren concurrentes sobre la misma fila;
// el compare-and-swap sobre estos campos evita que una escritura pise a la
// otra.
type DoseGuard struct {
	PendingConfirmation bool
	PendingUntil        *time.Time
}

type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
