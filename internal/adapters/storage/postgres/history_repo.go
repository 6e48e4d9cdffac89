package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/history"
)

type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Create(ctx context.Context, e history.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medication_history (
			id, medication_id,
			taken, origin,
			taken_date, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		e.ID,
		e.MedicationID,
		e.Taken,
		string(e.Origin),
		e.TakenDate,
		e.CreatedAt,
	)
	return err
}

func (r *HistoryRepo) ListByMedication(ctx context.Context, medicationID string, filter history.ListFilter) ([]history.Entry, int, error) {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return nil, 0, nil
	}

	sb := strings.Builder{}
	sb.WriteString(" WHERE medication_id = $1")

	args := []any{medicationID}
	argN := 2

	if filter.From != nil {
		sb.WriteString(fmt.Sprintf(" AND taken_date >= $%d", argN))
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		sb.WriteString(fmt.Sprintf(" AND taken_date <= $%d", argN))
		args = append(args, *filter.To)
		argN++
	}

	switch filter.Status {
	case history.StatusTaken:
		sb.WriteString(" AND taken")
	case history.StatusMissed:
		sb.WriteString(" AND NOT taken")
	}

	where := sb.String()

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM medication_history"+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, medication_id, taken, origin, taken_date, created_at
		FROM medication_history
		%s
		ORDER BY taken_date DESC
		LIMIT $%d OFFSET $%d
	`, where, argN, argN+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]history.Entry, 0)
	for rows.Next() {
		var e history.Entry
		var origin string
		if err := rows.Scan(
			&e.ID,
			&e.MedicationID,
			&e.Taken,
			&origin,
			&e.TakenDate,
			&e.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		e.Origin = history.Origin(origin)
		out = append(out, e)
	}

	return out, total, rows.Err()
}

func (r *HistoryRepo) HasEntrySince(ctx context.Context, medicationID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM medication_history
			WHERE medication_id = $1 AND taken_date >= $2
		)
	`, medicationID, since).Scan(&exists)
	return exists, err
}

func (r *HistoryRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM medication_history WHERE medication_id = $1
	`, medicationID)
	return err
}
