package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/medications"
)

var (
	ErrNotFound = errors.New("not found")
)

type medicationsRepo struct {
	mu        sync.RWMutex
	byID      map[string]medications.Medication
	intervals map[int]medications.DoseInterval
	nextIntID int
}

func NewMedicationsRepo() medications.Repository {
	return &medicationsRepo{
		byID:      make(map[string]medications.Medication),
		intervals: make(map[int]medications.DoseInterval),
		nextIntID: 1,
	}
}

func (r *medicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(m.ID) == "" {
		return errors.New("medication id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("medication already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *medicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[m.ID]; !exists {
		return ErrNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *medicationsRepo) UpdateDoseState(ctx context.Context, m medications.Medication, prev medications.DoseGuard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, exists := r.byID[m.ID]
	if !exists {
		return ErrNotFound
	}
	// Compare-and-swap sobre el estado pendiente: el postgres equivalente lo
	// resuelve el WHERE del UPDATE.
	if cur.PendingConfirmation != prev.PendingConfirmation || !timePtrEqual(cur.PendingUntil, prev.PendingUntil) {
		return medications.ErrStaleDoseState
	}

	cur.Status = m.Status
	cur.PendingConfirmation = m.PendingConfirmation
	cur.PendingUntil = m.PendingUntil
	cur.LastTakenTime = m.LastTakenTime
	cur.HourNextDose = m.HourNextDose
	r.byID[m.ID] = cur
	return nil
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (r *medicationsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *medicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return medications.Medication{}, ErrNotFound
	}
	return m, nil
}

func (r *medicationsRepo) GetByUser(ctx context.Context, userID, id string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok || m.UserID != userID {
		return medications.Medication{}, ErrNotFound
	}
	return m, nil
}

func (r *medicationsRepo) ListByUser(ctx context.Context, userID string, page medications.Page) ([]medications.Medication, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return paginate(r.collect(func(m medications.Medication) bool {
		return m.UserID == userID
	}), page)
}

func (r *medicationsRepo) Search(ctx context.Context, userID, query string, page medications.Page) ([]medications.Medication, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	hours, numeric := parseHours(q)

	return paginate(r.collect(func(m medications.Medication) bool {
		if m.UserID != userID {
			return false
		}
		if q == "" {
			return true
		}
		if strings.Contains(strings.ToLower(m.Name), q) {
			return true
		}
		return numeric && m.Interval.Hours == hours
	}), page)
}

func (r *medicationsRepo) ListExpired(ctx context.Context, before time.Time) ([]medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(m medications.Medication) bool {
		return m.PeriodEnd != nil && m.PeriodEnd.Before(before)
	}), nil
}

func (r *medicationsRepo) ListPendingDue(ctx context.Context, now time.Time) ([]medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(m medications.Medication) bool {
		return m.PendingConfirmation && m.PendingUntil != nil && !m.PendingUntil.After(now)
	}), nil
}

func (r *medicationsRepo) ListMissedCandidates(ctx context.Context, now time.Time) ([]medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(m medications.Medication) bool {
		if m.PendingConfirmation || strings.TrimSpace(m.HourNextDose) == "" {
			return false
		}
		if m.PeriodStart != nil && m.PeriodStart.After(now) {
			return false
		}
		if m.PeriodEnd != nil && m.PeriodEnd.Before(now) {
			return false
		}
		return true
	}), nil
}

func (r *medicationsRepo) FindOrCreateInterval(ctx context.Context, hours int) (medications.DoseInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if iv, ok := r.intervals[hours]; ok {
		return iv, nil
	}

	iv := medications.DoseInterval{ID: r.nextIntID, Hours: hours}
	r.nextIntID++
	r.intervals[hours] = iv
	return iv, nil
}

// collect asume que el caller ya tiene el lock.
func (r *medicationsRepo) collect(keep func(medications.Medication) bool) []medications.Medication {
	out := make([]medications.Medication, 0)
	for _, m := range r.byID {
		if keep(m) {
			out = append(out, m)
		}
	}

	// Orden estable por created_at asc (solo para consistencia en dev)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

func paginate(items []medications.Medication, page medications.Page) ([]medications.Medication, int, error) {
	total := len(items)

	start := page.Offset()
	if start >= total {
		return []medications.Medication{}, total, nil
	}
	end := start + page.Size
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func parseHours(q string) (int, bool) {
	n, err := strconv.Atoi(q)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
