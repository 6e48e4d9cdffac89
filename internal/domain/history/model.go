package history

import "time"

// Entry es un evento append-only del log de dosis.
// Nunca se actualiza; solo se borra en cascada con su medicamento.
type Entry struct {
	ID           string
	MedicationID string

	// Taken: true = dosis confirmada, false = perdida (o auto-avanzada).
	Taken  bool
	Origin Origin

	TakenDate time.Time
	CreatedAt time.Time
}
