package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/history"
)

type historyRepo struct {
	mu      sync.RWMutex
	entries []history.Entry
}

func NewHistoryRepo() history.Repository {
	return &historyRepo{}
}

func (r *historyRepo) Create(ctx context.Context, e history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
	return nil
}

func (r *historyRepo) ListByMedication(ctx context.Context, medicationID string, filter history.ListFilter) ([]history.Entry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]history.Entry, 0)
	for _, e := range r.entries {
		if e.MedicationID != medicationID {
			continue
		}
		if filter.From != nil && e.TakenDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.TakenDate.After(*filter.To) {
			continue
		}
		switch filter.Status {
		case history.StatusTaken:
			if !e.Taken {
				continue
			}
		case history.StatusMissed:
			if e.Taken {
				continue
			}
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].TakenDate.After(out[j].TakenDate)
	})

	total := len(out)

	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return []history.Entry{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *historyRepo) HasEntrySince(ctx context.Context, medicationID string, since time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.MedicationID == medicationID && !e.TakenDate.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *historyRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.MedicationID != medicationID {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}
