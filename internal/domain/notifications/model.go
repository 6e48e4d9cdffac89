package notifications

import "time"

// Subscription es un destino Web Push registrado por un navegador.
type Subscription struct {
	ID     string
	UserID string

	Endpoint string
	P256dh   string
	Auth     string

	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// Notification es el registro persistido de una notificación enviada.
type Notification struct {
	ID     string
	UserID string

	Title   string
	Message string

	SentAt time.Time
	ReadAt *time.Time
}

// SendSummary agrega el resultado del fan-out por dispositivo.
type SendSummary struct {
	Total      int
	Successful int
	Failed     int
}
