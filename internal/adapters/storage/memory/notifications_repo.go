package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/notifications"
)

type notificationsRepo struct {
	mu   sync.RWMutex
	subs map[string]notifications.Subscription
	sent map[string]notifications.Notification
}

func NewNotificationsRepo() notifications.Repository {
	return &notificationsRepo{
		subs: make(map[string]notifications.Subscription),
		sent: make(map[string]notifications.Notification),
	}
}

func (r *notificationsRepo) CreateSubscription(ctx context.Context, s notifications.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[s.ID] = s
	return nil
}

func (r *notificationsRepo) FindSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) (notifications.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.subs {
		if s.UserID == userID && s.Endpoint == endpoint {
			return s, nil
		}
	}
	return notifications.Subscription{}, ErrNotFound
}

func (r *notificationsRepo) ListSubscriptions(ctx context.Context, userID string) ([]notifications.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notifications.Subscription, 0)
	for _, s := range r.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (r *notificationsRepo) DeleteSubscription(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[id]; !ok {
		return ErrNotFound
	}
	delete(r.subs, id)
	return nil
}

func (r *notificationsRepo) TouchSubscription(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subs[id]
	if !ok {
		return ErrNotFound
	}
	s.LastUsedAt = &at
	r.subs[id] = s
	return nil
}

func (r *notificationsRepo) CreateNotification(ctx context.Context, n notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent[n.ID] = n
	return nil
}

func (r *notificationsRepo) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]notifications.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]notifications.Notification, 0)
	for _, n := range r.sent {
		if n.UserID == userID {
			all = append(all, n)
		}
	}

	// Más recientes primero
	sort.Slice(all, func(i, j int) bool {
		return all[i].SentAt.After(all[j].SentAt)
	})

	if offset >= len(all) {
		return []notifications.Notification{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *notificationsRepo) GetNotification(ctx context.Context, userID, id string) (notifications.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.sent[id]
	if !ok || n.UserID != userID {
		return notifications.Notification{}, ErrNotFound
	}
	return n, nil
}

func (r *notificationsRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.sent[id]
	if !ok {
		return ErrNotFound
	}
	n.ReadAt = &at
	r.sent[id] = n
	return nil
}
