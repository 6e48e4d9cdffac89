package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
	"github.com/lucasatdriano/LembraMed-Server/internal/ports/push"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("notification not found")
	ErrNoSubscriptions = errors.New("no push subscriptions for user")
)

type Service struct {
	repo   Repository
	sender push.Sender
	now    func() time.Time
}

// NewService recibe el reloj de la aplicación: sentAt y readAt se estampan en
// la zona configurada, nunca en la del host.
func NewService(repo Repository, sender push.Sender, clk *clock.Clock) *Service {
	return &Service{
		repo:   repo,
		sender: sender,
		now:    clk.Now,
	}
}

type SubscribeInput struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Subscribe registra un destino push. Idempotente por endpoint: re-suscribir
// el mismo endpoint devuelve la suscripción existente.
func (s *Service) Subscribe(ctx context.Context, userID string, in SubscribeInput) (Subscription, error) {
	userID = strings.TrimSpace(userID)
	endpoint := strings.TrimSpace(in.Endpoint)

	if userID == "" || endpoint == "" || strings.TrimSpace(in.P256dh) == "" || strings.TrimSpace(in.Auth) == "" {
		return Subscription{}, ErrInvalidInput
	}

	if existing, err := s.repo.FindSubscriptionByEndpoint(ctx, userID, endpoint); err == nil {
		return existing, nil
	}

	sub := Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    strings.TrimSpace(in.P256dh),
		Auth:      strings.TrimSpace(in.Auth),
		CreatedAt: s.now(),
	}

	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

func (s *Service) Unsubscribe(ctx context.Context, userID, id string) error {
	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.ID == id {
			return s.repo.DeleteSubscription(ctx, id)
		}
	}
	return ErrNotFound
}

type pushPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	UserID    string `json:"userid"`
	Tag       string `json:"tag"`
	Timestamp string `json:"timestamp"`
}

// Send entrega una notificación a todos los dispositivos del usuario.
// Fan-out con captura de error por destino: la falla de un dispositivo no
// bloquea a los demás. Un endpoint "gone" se poda en el acto.
func (s *Service) Send(ctx context.Context, userID, title, message, tag string) (SendSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(title) == "" {
		return SendSummary{}, ErrInvalidInput
	}

	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return SendSummary{}, err
	}
	if len(subs) == 0 {
		return SendSummary{}, ErrNoSubscriptions
	}

	now := s.now()
	if strings.TrimSpace(tag) == "" {
		tag = "notif-" + userID
	}

	payload, err := json.Marshal(pushPayload{
		Title:     title,
		Body:      message,
		UserID:    userID,
		Tag:       tag,
		Timestamp: now.Format(time.RFC3339),
	})
	if err != nil {
		return SendSummary{}, err
	}

	var (
		mu         sync.Mutex
		successful int
		failed     int
		wg         sync.WaitGroup
	)

	for _, sub := range subs {
		wg.Add(1)
		go func(sub Subscription) {
			defer wg.Done()

			err := s.sender.Send(ctx, push.Subscription{
				Endpoint: sub.Endpoint,
				P256dh:   sub.P256dh,
				Auth:     sub.Auth,
			}, payload)

			switch {
			case err == nil:
				_ = s.repo.TouchSubscription(ctx, sub.ID, now)
				mu.Lock()
				successful++
				mu.Unlock()
			case errors.Is(err, push.ErrSubscriptionGone):
				// Endpoint muerto: se poda, no cuenta como falla reportable.
				_ = s.repo.DeleteSubscription(ctx, sub.ID)
				mu.Lock()
				failed++
				mu.Unlock()
			default:
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(sub)
	}

	wg.Wait()

	if err := s.repo.CreateNotification(ctx, Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Title:   strings.TrimSpace(title),
		Message: strings.TrimSpace(message),
		SentAt:  now,
	}); err != nil {
		return SendSummary{}, err
	}

	return SendSummary{
		Total:      len(subs),
		Successful: successful,
		Failed:     failed,
	}, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListNotifications(ctx, userID, limit, offset)
}

func (s *Service) MarkAsRead(ctx context.Context, userID, id string) (Notification, error) {
	n, err := s.repo.GetNotification(ctx, userID, id)
	if err != nil {
		return Notification{}, ErrNotFound
	}

	// Idempotente
	if n.ReadAt != nil {
		return n, nil
	}

	now := s.now()
	if err := s.repo.MarkRead(ctx, n.ID, now); err != nil {
		return Notification{}, err
	}
	n.ReadAt = &now
	return n, nil
}
