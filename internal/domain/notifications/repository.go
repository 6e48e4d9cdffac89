package notifications

import (
	"context"
	"time"
)

type Repository interface {
	CreateSubscription(ctx context.Context, s Subscription) error
	// FindSubscriptionByEndpoint permite el re-subscribe idempotente.
	FindSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) (Subscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
	TouchSubscription(ctx context.Context, id string, at time.Time) error

	CreateNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]Notification, error)
	GetNotification(ctx context.Context, userID, id string) (Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
}
