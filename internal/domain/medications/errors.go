package medications

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("medication not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrStaleDoseState: otra transición (API o sweep) escribió el estado de
	// dosis entre la lectura y la escritura condicional. El perdedor de la
	// carrera descarta su transición; nunca pisa el estado nuevo.
	ErrStaleDoseState = errors.New("dose state changed concurrently")
)

// OutsideWindowError: se intentó marcar la dosis antes de que abra la ventana
// [programada - 2h, programada + tolerancia].
type OutsideWindowError struct {
	ScheduledAt time.Time
	WindowStart time.Time
	WindowEnd   time.Time
}

func (e *OutsideWindowError) Error() string {
	return fmt.Sprintf(
		"dose window not open yet: it opens at %s",
		e.WindowStart.Format("15:04"),
	)
}

// AlreadyMissedError: la ventana ya cerró; la dosis cuenta como perdida y
// será avanzada por el scheduler.
type AlreadyMissedError struct {
	ScheduledAt time.Time
	WindowEnd   time.Time
	LateBy      time.Duration
	Tolerance   time.Duration
}

func (e *AlreadyMissedError) Error() string {
	return fmt.Sprintf(
		"dose already missed: scheduled at %s, tolerance of %d minutes exceeded",
		e.ScheduledAt.Format("15:04"),
		int(e.Tolerance.Minutes()),
	)
}

// IntervalTooSoonError: no pasaron las 2h mínimas desde la última dosis
// confirmada, sin importar el intervalo configurado.
type IntervalTooSoonError struct {
	LastTakenAt time.Time
	AllowedAt   time.Time
	Wait        time.Duration
}

func (e *IntervalTooSoonError) Error() string {
	wait := e.Wait.Round(time.Minute)
	hours := int(wait.Hours())
	minutes := int(wait.Minutes()) % 60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("wait %dh%02dmin before the next dose: minimum spacing is 2 hours", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("wait %dh before the next dose: minimum spacing is 2 hours", hours)
	default:
		return fmt.Sprintf("wait %dmin before the next dose: minimum spacing is 2 hours", minutes)
	}
}
