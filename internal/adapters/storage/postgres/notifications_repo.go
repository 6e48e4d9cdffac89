package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/notifications"
)

type NotificationsRepo struct {
	db *sql.DB
}

func NewNotificationsRepo(db *sql.DB) *NotificationsRepo {
	return &NotificationsRepo{db: db}
}

func (r *NotificationsRepo) CreateSubscription(ctx context.Context, s notifications.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (
			id, user_id,
			endpoint, p256dh, auth,
			created_at, last_used_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		s.ID,
		s.UserID,
		s.Endpoint,
		s.P256dh,
		s.Auth,
		s.CreatedAt,
		toNullTime(s.LastUsedAt),
	)
	return err
}

func (r *NotificationsRepo) FindSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) (notifications.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, endpoint, p256dh, auth, created_at, last_used_at
		FROM push_subscriptions
		WHERE user_id = $1 AND endpoint = $2
	`, userID, endpoint)

	return scanSubscription(row)
}

func (r *NotificationsRepo) ListSubscriptions(ctx context.Context, userID string) ([]notifications.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, endpoint, p256dh, auth, created_at, last_used_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]notifications.Subscription, 0)
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func (r *NotificationsRepo) DeleteSubscription(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM push_subscriptions WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationsRepo) TouchSubscription(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE push_subscriptions SET last_used_at = $2 WHERE id = $1
	`, id, at)
	return err
}

func (r *NotificationsRepo) CreateNotification(ctx context.Context, n notifications.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id,
			title, message,
			sent_at, read_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		n.ID,
		n.UserID,
		n.Title,
		n.Message,
		n.SentAt,
		toNullTime(n.ReadAt),
	)
	return err
}

func (r *NotificationsRepo) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]notifications.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, sent_at, read_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]notifications.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}

	return out, rows.Err()
}

func (r *NotificationsRepo) GetNotification(ctx context.Context, userID, id string) (notifications.Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, message, sent_at, read_at
		FROM notifications
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	return scanNotification(row)
}

func (r *NotificationsRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSubscription(row rowScanner) (notifications.Subscription, error) {
	var s notifications.Subscription
	var lastUsed sql.NullTime

	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Endpoint,
		&s.P256dh,
		&s.Auth,
		&s.CreatedAt,
		&lastUsed,
	); err != nil {
		if err == sql.ErrNoRows {
			return notifications.Subscription{}, ErrNotFound
		}
		return notifications.Subscription{}, err
	}

	s.LastUsedAt = fromNullTime(lastUsed)
	return s, nil
}

func scanNotification(row rowScanner) (notifications.Notification, error) {
	var n notifications.Notification
	var readAt sql.NullTime

	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Message,
		&n.SentAt,
		&readAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return notifications.Notification{}, ErrNotFound
		}
		return notifications.Notification{}, err
	}

	n.ReadAt = fromNullTime(readAt)
	return n, nil
}
