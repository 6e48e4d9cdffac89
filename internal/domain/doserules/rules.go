package doserules

import (
	"math"
	"strings"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
)

const (
	// MinimumSpacing es el piso de seguridad entre dosis confirmadas,
	// independiente del intervalo configurado.
	MinimumSpacing = 2 * time.Hour

	// ConfirmationGrace es la ventana de confirmación pendiente después
	// de que el usuario marca una dosis como tomada.
	ConfirmationGrace = 3 * time.Minute

	// WindowBefore es cuánto antes del horario programado se abre la
	// ventana para marcar la dosis.
	WindowBefore = 2 * time.Hour
)

// Tolerancia = 25% del intervalo (1/4).
const toleranceRatio = 0.25

// ToleranceMinutes calcula la ventana de gracia en minutos para un intervalo.
// floor(intervalHours * 60 * 0.25): 8h -> 120min, 6h -> 90min, 1h -> 15min.
func ToleranceMinutes(intervalHours int) int {
	intervalMinutes := float64(intervalHours * 60)
	return int(math.Floor(intervalMinutes * toleranceRatio))
}

// Tolerance es ToleranceMinutes como time.Duration.
func Tolerance(intervalHours int) time.Duration {
	return time.Duration(ToleranceMinutes(intervalHours)) * time.Minute
}

// SpacingViolation describe por qué todavía no se puede tomar otra dosis.
type SpacingViolation struct {
	LastTakenAt time.Time
	AllowedAt   time.Time
	Wait        time.Duration
}

// CheckMinimumSpacing valida el piso de 2h desde la última dosis confirmada.
// lastTaken es un HH:MM sin fecha: si queda "en el futuro" respecto de now,
// se interpreta como la dosis de ayer.
// Retorna nil si se respeta el espaciado (o si nunca se tomó una dosis).
func CheckMinimumSpacing(lastTaken string, now time.Time, clk *clock.Clock) (*SpacingViolation, error) {
	if strings.TrimSpace(lastTaken) == "" {
		return nil, nil
	}

	last, err := clk.TimeOfDay(lastTaken, now)
	if err != nil {
		return nil, err
	}
	if last.After(now) {
		last = last.AddDate(0, 0, -1)
	}

	allowedAt := last.Add(MinimumSpacing)
	if now.Before(allowedAt) {
		return &SpacingViolation{
			LastTakenAt: last,
			AllowedAt:   allowedAt,
			Wait:        allowedAt.Sub(now),
		}, nil
	}

	return nil, nil
}
