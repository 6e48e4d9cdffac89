package clock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone es el fuso civil único del sistema.
// Todas las fronteras de día/hora se calculan contra él.
const DefaultTimezone = "America/Sao_Paulo"

const (
	timeLayout = "15:04"
	dateLayout = "2006-01-02"
)

// Clock normaliza todos los instantes a un único time.Location.
// Ningún paquete debe construir un "now" ni parsear un HH:MM sin pasar por acá.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func New(tzName string) (*Clock, error) {
	tzName = strings.TrimSpace(tzName)
	if tzName == "" {
		tzName = DefaultTimezone
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("clock: load timezone %q: %w", tzName, err)
	}

	return &Clock{
		loc: loc,
		now: time.Now,
	}, nil
}

// NewFromEnv crea el clock desde env:
// - TIMEZONE=America/Sao_Paulo (default)
func NewFromEnv() (*Clock, error) {
	return New(os.Getenv("TIMEZONE"))
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now retorna el instante actual normalizado al fuso fijo.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// In normaliza cualquier instante al fuso fijo.
func (c *Clock) In(t time.Time) time.Time {
	return t.In(c.loc)
}

// ParseTimeOfDay valida un string "HH:MM" (acepta "HH:MM:SS" de columnas TIME).
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)

	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, fmt.Errorf("clock: invalid time of day %q", s)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("clock: invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock: invalid minute in %q", s)
	}

	return hour, minute, nil
}

// IsValidTimeOfDay es un shortcut para validaciones de input.
func IsValidTimeOfDay(s string) bool {
	_, _, err := ParseTimeOfDay(s)
	return err == nil
}

// TimeOfDay combina un HH:MM con la fecha civil del instante de referencia.
func (c *Clock) TimeOfDay(hhmm string, ref time.Time) (time.Time, error) {
	h, m, err := ParseTimeOfDay(hhmm)
	if err != nil {
		return time.Time{}, err
	}

	ref = ref.In(c.loc)
	return time.Date(ref.Year(), ref.Month(), ref.Day(), h, m, 0, 0, c.loc), nil
}

// NextOccurrence retorna la ocurrencia de hoy de hhmm si todavía no pasó
// (inclusive), y si no, la de mañana.
func (c *Clock) NextOccurrence(hhmm string, ref time.Time) (time.Time, error) {
	ref = ref.In(c.loc)

	t, err := c.TimeOfDay(hhmm, ref)
	if err != nil {
		return time.Time{}, err
	}

	if t.Before(ref) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

// StartOfDay convierte una fecha "YYYY-MM-DD" al primer instante de ese día civil.
func (c *Clock) StartOfDay(dateStr string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(dateStr), c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: invalid date %q", dateStr)
	}
	return d, nil
}

// EndOfDay convierte una fecha "YYYY-MM-DD" al último minuto de ese día civil.
func (c *Clock) EndOfDay(dateStr string) (time.Time, error) {
	d, err := c.StartOfDay(dateStr)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(24*time.Hour - time.Second), nil
}

// StartOfDayAt retorna la medianoche del día civil que contiene t.
func (c *Clock) StartOfDayAt(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// FormatTime extrae el HH:MM de un instante, en el fuso fijo.
func (c *Clock) FormatTime(t time.Time) string {
	return t.In(c.loc).Format(timeLayout)
}

// FormatDate extrae el YYYY-MM-DD de un instante, en el fuso fijo.
func (c *Clock) FormatDate(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}
