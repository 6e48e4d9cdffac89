package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/platform/clock"
	"github.com/lucasatdriano/LembraMed-Server/internal/ports/push"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

var errRepoNotFound = errors.New("repo: not found")

// Send hace fan-out en goroutines, así que el doble también sincroniza sus
// mapas.
type testRepo struct {
	mu   sync.Mutex
	subs map[string]Subscription
	sent map[string]Notification
}

func newTestRepo() *testRepo {
	return &testRepo{
		subs: map[string]Subscription{},
		sent: map[string]Notification{},
	}
}

func (r *testRepo) CreateSubscription(ctx context.Context, s Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[s.ID] = s
	return nil
}

func (r *testRepo) FindSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if s.UserID == userID && s.Endpoint == endpoint {
			return s, nil
		}
	}
	return Subscription{}, errRepoNotFound
}

func (r *testRepo) ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscription, 0)
	for _, s := range r.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *testRepo) DeleteSubscription(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[id]; !ok {
		return errRepoNotFound
	}
	delete(r.subs, id)
	return nil
}

func (r *testRepo) TouchSubscription(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subs[id]
	if !ok {
		return errRepoNotFound
	}
	s.LastUsedAt = &at
	r.subs[id] = s
	return nil
}

func (r *testRepo) CreateNotification(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent[n.ID] = n
	return nil
}

func (r *testRepo) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, 0)
	for _, n := range r.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *testRepo) GetNotification(ctx context.Context, userID, id string) (Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.sent[id]
	if !ok || n.UserID != userID {
		return Notification{}, errRepoNotFound
	}
	return n, nil
}

func (r *testRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.sent[id]
	if !ok {
		return errRepoNotFound
	}
	n.ReadAt = &at
	r.sent[id] = n
	return nil
}

// subscriptionCount / hasSubscription evitan tocar los mapas sin lock desde
// los tests.
func (r *testRepo) subscriptionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *testRepo) hasSubscription(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[id]
	return ok
}

func (r *testRepo) notificationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// -------------------------
// Test sender
// -------------------------

type testSender struct {
	mu       sync.Mutex
	payloads [][]byte
	// failWith mapea endpoint -> error a devolver
	failWith map[string]error
}

func (s *testSender) Send(ctx context.Context, sub push.Subscription, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failWith[sub.Endpoint]; ok {
		return err
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

// -------------------------
// Tests
// -------------------------

func newTestService(t *testing.T, repo *testRepo, sender push.Sender) *Service {
	t.Helper()

	clk, err := clock.New("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	return NewService(repo, sender, clk)
}

func seedSubscription(t *testing.T, repo *testRepo, id, userID, endpoint string) {
	t.Helper()

	err := repo.CreateSubscription(context.Background(), Subscription{
		ID:        id,
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    "p256dh-" + id,
		Auth:      "auth-" + id,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func TestService_Subscribe_IdempotentByEndpoint(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(t, repo, &testSender{})

	in := SubscribeInput{
		Endpoint: "https://push.example/ep-1",
		P256dh:   "key",
		Auth:     "auth",
	}

	s1, err := svc.Subscribe(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("Subscribe #1 error: %v", err)
	}

	s2, err := svc.Subscribe(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("Subscribe #2 error: %v", err)
	}

	if s1.ID != s2.ID {
		t.Fatalf("expected same subscription on re-subscribe, got %s vs %s", s1.ID, s2.ID)
	}
	if repo.subscriptionCount() != 1 {
		t.Fatalf("expected 1 subscription, got %d", repo.subscriptionCount())
	}
}

func TestService_Subscribe_RejectsMissingKeys(t *testing.T) {
	svc := newTestService(t, newTestRepo(), &testSender{})

	_, err := svc.Subscribe(context.Background(), "user-1", SubscribeInput{
		Endpoint: "https://push.example/ep-1",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_Send_FanOutAndPayload(t *testing.T) {
	repo := newTestRepo()
	sender := &testSender{}
	svc := newTestService(t, repo, sender)

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	seedSubscription(t, repo, "sub-1", "user-1", "https://push.example/ep-1")
	seedSubscription(t, repo, "sub-2", "user-1", "https://push.example/ep-2")

	summary, err := svc.Send(context.Background(), "user-1", "Hora do remédio", "dipirona às 08:00", "dose-med-1")
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if summary.Total != 2 || summary.Successful != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(sender.payloads) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(sender.payloads))
	}

	var body struct {
		Title     string `json:"title"`
		Body      string `json:"body"`
		UserID    string `json:"userid"`
		Tag       string `json:"tag"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(sender.payloads[0], &body); err != nil {
		t.Fatalf("payload json: %v", err)
	}
	if body.Title != "Hora do remédio" || body.Tag != "dose-med-1" || body.UserID != "user-1" {
		t.Fatalf("unexpected payload %+v", body)
	}

	// Se persiste el registro de la notificación.
	if repo.notificationCount() != 1 {
		t.Fatalf("expected 1 notification row, got %d", repo.notificationCount())
	}
}

func TestService_Send_PrunesGoneSubscription(t *testing.T) {
	repo := newTestRepo()
	sender := &testSender{
		failWith: map[string]error{
			"https://push.example/dead": push.ErrSubscriptionGone,
		},
	}
	svc := newTestService(t, repo, sender)

	seedSubscription(t, repo, "sub-live", "user-1", "https://push.example/live")
	seedSubscription(t, repo, "sub-dead", "user-1", "https://push.example/dead")

	summary, err := svc.Send(context.Background(), "user-1", "t", "m", "")
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if summary.Successful != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	// El endpoint muerto se poda del repo.
	if repo.hasSubscription("sub-dead") {
		t.Fatalf("expected dead subscription pruned")
	}
	if !repo.hasSubscription("sub-live") {
		t.Fatalf("expected live subscription kept")
	}
}

func TestService_Send_NoSubscriptions(t *testing.T) {
	svc := newTestService(t, newTestRepo(), &testSender{})

	_, err := svc.Send(context.Background(), "user-1", "t", "m", "")
	if !errors.Is(err, ErrNoSubscriptions) {
		t.Fatalf("expected ErrNoSubscriptions, got %v", err)
	}
}

func TestService_MarkAsRead_Idempotent(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(t, repo, &testSender{})

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if err := repo.CreateNotification(context.Background(), Notification{
		ID:     "n-1",
		UserID: "user-1",
		Title:  "t",
		SentAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n1, err := svc.MarkAsRead(context.Background(), "user-1", "n-1")
	if err != nil {
		t.Fatalf("MarkAsRead error: %v", err)
	}
	if n1.ReadAt == nil || !n1.ReadAt.Equal(now) {
		t.Fatalf("expected readAt=now, got %v", n1.ReadAt)
	}

	// Segunda lectura no cambia el timestamp.
	svc.now = func() time.Time { return now.Add(time.Hour) }
	n2, err := svc.MarkAsRead(context.Background(), "user-1", "n-1")
	if err != nil {
		t.Fatalf("MarkAsRead #2 error: %v", err)
	}
	if !n2.ReadAt.Equal(now) {
		t.Fatalf("expected readAt unchanged, got %v", n2.ReadAt)
	}
}

func TestService_DefaultNowUsesConfiguredZone(t *testing.T) {
	clk, err := clock.New("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	svc := NewService(newTestRepo(), &testSender{}, clk)

	// sentAt/readAt salen del reloj de la aplicación, no del host.
	if got := svc.now(); got.Location() != clk.Location() {
		t.Fatalf("expected timestamps in %s, got %s", clk.Location(), got.Location())
	}
}

func TestService_MarkAsRead_WrongUser_NotFound(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(t, repo, &testSender{})

	_ = repo.CreateNotification(context.Background(), Notification{
		ID:     "n-1",
		UserID: "user-1",
		SentAt: time.Now(),
	})

	if _, err := svc.MarkAsRead(context.Background(), "user-2", "n-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
