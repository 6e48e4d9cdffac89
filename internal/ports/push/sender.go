package push

import (
	"context"
	"errors"
)

// ErrSubscriptionGone indica que el endpoint de push ya no existe
// (404/410 del servicio de push). No es una falla a reportar: es la señal
// para podar la suscripción.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Subscription es el destino de entrega tal como lo registró el navegador.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Sender entrega un payload a una suscripción. Una falla afecta solo a ese
// destino; el fan-out por usuario vive en el dominio.
type Sender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) error
}
