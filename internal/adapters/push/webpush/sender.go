// Package webpush implementa push.Sender sobre el protocolo Web Push
// (RFC 8030) con claves VAPID.
package webpush

import (
	"context"
	"errors"
	"net/http"
	"strings"

	wp "github.com/SherClockHolmes/webpush-go"

	"github.com/lucasatdriano/LembraMed-Server/internal/platform/httpclient"
	"github.com/lucasatdriano/LembraMed-Server/internal/ports/push"
)

var (
	ErrNotConfigured = errors.New("webpush: vapid keys not configured")
)

const defaultTTL = 60 // segundos que el push service retiene el mensaje

type Config struct {
	Subject    string // mailto: o URL del operador
	PublicKey  string
	PrivateKey string
}

type Sender struct {
	cfg  Config
	http *http.Client
}

func NewSender(cfg Config, hc *httpclient.Client) (*Sender, error) {
	if strings.TrimSpace(cfg.PublicKey) == "" || strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, ErrNotConfigured
	}
	if hc == nil {
		hc = httpclient.New(httpclient.DefaultTimeout)
	}
	return &Sender{cfg: cfg, http: hc.HTTP}, nil
}

func (s *Sender) Send(ctx context.Context, sub push.Subscription, payload []byte) error {
	resp, err := wp.SendNotificationWithContext(ctx, payload, &wp.Subscription{
		Endpoint: sub.Endpoint,
		Keys: wp.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &wp.Options{
		HTTPClient:      s.http,
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
		TTL:             defaultTTL,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// El push service dio de baja la suscripción; el caller la poda.
		return push.ErrSubscriptionGone
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &httpclient.HTTPError{StatusCode: resp.StatusCode}
	}

	return nil
}
