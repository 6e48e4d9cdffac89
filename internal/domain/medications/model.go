package medications

import "time"

// DoseInterval es la tabla lookup compartida de intervalos.
// Un valor distinto de horas se crea una sola vez y se reutiliza.
type DoseInterval struct {
	ID    int
	Hours int
}

// Medication es un régimen de medicación configurado por un usuario.
//
// Los campos status/pendingconfirmation/pendinguntil forman la máquina de
// estados de dosis. Nadie los muta directamente: solo las transiciones del
// Service (RegisterTaken, CancelPending, ConfirmDose, DetectMissed,
// ForceAdvance) escriben sobre ellos.
type Medication struct {
	ID     string
	UserID string
	Name   string

	HourFirstDose string // "HH:MM"
	HourNextDose  string // "HH:MM", siempre válido mientras esté activo

	// Rango nullable que limita cuándo el régimen está activo.
	// nil = continuo.
	PeriodStart *time.Time
	PeriodEnd   *time.Time

	Status              bool
	PendingConfirmation bool
	PendingUntil        *time.Time

	LastTakenTime *string // "HH:MM" de la última dosis confirmada

	Interval DoseInterval

	CreatedAt time.Time
}

// DoseState es el estado derivado de la máquina de dosis.
type DoseState string

const (
	StateIdle    DoseState = "idle"
	StatePending DoseState = "pending_confirmation"
)

func (m Medication) State() DoseState {
	if m.Status && m.PendingConfirmation && m.PendingUntil != nil {
		return StatePending
	}
	return StateIdle
}

// ListItem es un medicamento con su próxima dosis resuelta a instante,
// para ordenar listados (activos primero, por cercanía).
type ListItem struct {
	Medication
	NextDoseAt *time.Time
}
