package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/lucasatdriano/LembraMed-Server/internal/domain/medications"
)

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

const medicationColumns = `
	m.id, m.user_id, m.name,
	m.hour_first_dose, m.hour_next_dose,
	m.period_start, m.period_end,
	m.status, m.pending_confirmation, m.pending_until,
	m.last_taken_time,
	m.dose_interval_id, di.hours,
	m.created_at
`

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (
			id, user_id, name,
			hour_first_dose, hour_next_dose,
			period_start, period_end,
			status, pending_confirmation, pending_until,
			last_taken_time,
			dose_interval_id,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		m.ID,
		m.UserID,
		m.Name,
		m.HourFirstDose,
		m.HourNextDose,
		toNullTime(m.PeriodStart),
		toNullTime(m.PeriodEnd),
		m.Status,
		m.PendingConfirmation,
		toNullTime(m.PendingUntil),
		toNullString(m.LastTakenTime),
		m.Interval.ID,
		m.CreatedAt,
	)
	return err
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = $2,
			hour_first_dose = $3,
			hour_next_dose = $4,
			period_start = $5,
			period_end = $6,
			status = $7,
			pending_confirmation = $8,
			pending_until = $9,
			last_taken_time = $10,
			dose_interval_id = $11
		WHERE id = $1
	`,
		m.ID,
		m.Name,
		m.HourFirstDose,
		m.HourNextDose,
		toNullTime(m.PeriodStart),
		toNullTime(m.PeriodEnd),
		m.Status,
		m.PendingConfirmation,
		toNullTime(m.PendingUntil),
		toNullString(m.LastTakenTime),
		m.Interval.ID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDoseState es la escritura de la máquina de dosis: un compare-and-swap
// a nivel de fila sobre el estado pendiente leído, para que API y sweep no se
// pisen. Cero filas afectadas con la fila existente significa que otra
// transición ganó la carrera.
func (r *MedicationsRepo) UpdateDoseState(ctx context.Context, m medications.Medication, prev medications.DoseGuard) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			status = $2,
			pending_confirmation = $3,
			pending_until = $4,
			last_taken_time = $5,
			hour_next_dose = $6
		WHERE id = $1
		  AND pending_confirmation = $7
		  AND pending_until IS NOT DISTINCT FROM $8
	`,
		m.ID,
		m.Status,
		m.PendingConfirmation,
		toNullTime(m.PendingUntil),
		toNullString(m.LastTakenTime),
		m.HourNextDose,
		prev.PendingConfirmation,
		toNullTime(prev.PendingUntil),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM medications WHERE id = $1)
	`, m.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return medications.ErrStaleDoseState
}

func (r *MedicationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications m
		JOIN dose_intervals di ON di.id = m.dose_interval_id
		WHERE m.id = $1
	`, id)

	return scanMedication(row)
}

func (r *MedicationsRepo) GetByUser(ctx context.Context, userID, id string) (medications.Medication, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(id) == "" {
		return medications.Medication{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications m
		JOIN dose_intervals di ON di.id = m.dose_interval_id
		WHERE m.id = $1 AND m.user_id = $2
	`, id, userID)

	return scanMedication(row)
}

func (r *MedicationsRepo) ListByUser(ctx context.Context, userID string, page medications.Page) ([]medications.Medication, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM medications WHERE user_id = $1
	`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications m
		JOIN dose_intervals di ON di.id = m.dose_interval_id
		WHERE m.user_id = $1
		ORDER BY m.created_at ASC
		LIMIT $2 OFFSET $3
	`, userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := scanMedications(rows)
	return out, total, err
}

func (r *MedicationsRepo) Search(ctx context.Context, userID, query string, page medications.Page) ([]medications.Medication, int, error) {
	q := strings.TrimSpace(query)

	// Query numérica también matchea el intervalo en horas.
	hours := -1
	if n, err := strconv.Atoi(q); err == nil && n >= 1 {
		hours = n
	}

	where := `
		WHERE m.user_id = $1
		  AND (m.name ILIKE $2 OR di.hours = $3)
	`

	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM medications m
		JOIN dose_intervals di ON di.id = m.dose_interval_id
	`+where, userID, "%"+q+"%", hours).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications m
		JOIN dose_intervals di ON di.id = m.dose_interval_id
	`+where+`
		ORDER BY m.created_at ASC
		LIMIT $4 OFFSET $5
	`, userID, "%"+q+"%", hours, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := scanMedications(rows)
	return out, total, err
}

func (r *MedicationsRepo) ListExpired(ctx context.Context, before time.Time) ([]medications.Medication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications m
		JOIN dose_intervals di ON di.id = m.dose_interval_id
		WHERE m.period_end IS NOT NULL AND m.period_end < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMedications(rows)
}

func (r *MedicationsRepo) ListPendingDue(ctx context.Context, now time.Time) ([]medications.Medication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications m
		JOIN dose_intervals di ON di.id = m.dose_interval_id
		WHERE m.pending_confirmation
		  AND m.pending_until IS NOT NULL
		  AND m.pending_until <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMedications(rows)
}

func (r *MedicationsRepo) ListMissedCandidates(ctx context.Context, now time.Time) ([]medications.Medication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications m
		JOIN dose_intervals di ON di.id = m.dose_interval_id
		WHERE NOT m.pending_confirmation
		  AND m.hour_next_dose <> ''
		  AND (m.period_start IS NULL OR m.period_start <= $1)
		  AND (m.period_end IS NULL OR m.period_end >= $1)
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMedications(rows)
}

func (r *MedicationsRepo) FindOrCreateInterval(ctx context.Context, hours int) (medications.DoseInterval, error) {
	var iv medications.DoseInterval

	// Upsert por valor: dose_intervals.hours es UNIQUE.
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO dose_intervals (hours)
		VALUES ($1)
		ON CONFLICT (hours) DO UPDATE SET hours = EXCLUDED.hours
		RETURNING id, hours
	`, hours).Scan(&iv.ID, &iv.Hours)
	if err != nil {
		return medications.DoseInterval{}, err
	}
	return iv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedication(row rowScanner) (medications.Medication, error) {
	var m medications.Medication
	var periodStart, periodEnd, pendingUntil sql.NullTime
	var lastTaken sql.NullString

	if err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Name,
		&m.HourFirstDose,
		&m.HourNextDose,
		&periodStart,
		&periodEnd,
		&m.Status,
		&m.PendingConfirmation,
		&pendingUntil,
		&lastTaken,
		&m.Interval.ID,
		&m.Interval.Hours,
		&m.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return medications.Medication{}, ErrNotFound
		}
		return medications.Medication{}, err
	}

	m.PeriodStart = fromNullTime(periodStart)
	m.PeriodEnd = fromNullTime(periodEnd)
	m.PendingUntil = fromNullTime(pendingUntil)
	m.LastTakenTime = fromNullString(lastTaken)

	return m, nil
}

func scanMedications(rows *sql.Rows) ([]medications.Medication, error) {
	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
