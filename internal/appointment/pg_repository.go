package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/directory"
)

const appointmentColumns = `id, patient_id, doctor_id, scheduled_at, notes, symptoms, status, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ScheduledAt,
		&a.Notes,
		&a.Symptoms,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func countActiveInWindow(ctx context.Context, q db.Querier, doctorID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE doctor_id = $1
		  AND status = ANY($2)
		  AND scheduled_at BETWEEN $3 AND $4
	`, doctorID, statusStrings(ActiveStatuses), from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active appointments: %w", err)
	}
	return n, nil
}

func insertEvent(ctx context.Context, q db.Querier, ev EventLog) error {
	_, err := q.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// whereClause renders the query criteria as SQL conditions starting at
// placeholder $1.
func whereClause(q Query) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if q.ScopePatientID != nil {
		add("patient_id = ?", *q.ScopePatientID)
	}
	if q.ScopeDoctorID != nil {
		add("doctor_id = ?", *q.ScopeDoctorID)
	}
	if q.Status != nil {
		add("status = ?", string(*q.Status))
	}
	if q.DoctorID != nil {
		add("doctor_id = ?", *q.DoctorID)
	}
	if q.PatientID != nil {
		add("patient_id = ?", *q.PatientID)
	}
	if q.Start != nil {
		add("scheduled_at >= ?", *q.Start)
	}
	if q.End != nil {
		add("scheduled_at <= ?", *q.End)
	}
	if q.Search != "" {
		add("(notes ILIKE ? OR symptoms ILIKE ?)", "%"+db.EscapeLike(q.Search)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CountActiveInWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error) {
	return countActiveInWindow(ctx, r.pool, doctorID, from, to)
}

func (r *PgRepository) ListAppointments(ctx context.Context, q Query) ([]Appointment, int, error) {
	where, args := whereClause(q)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM appointments `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	n := len(args)
	args = append(args, q.Limit, q.Skip)
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		`+where+`
		ORDER BY scheduled_at ASC, id ASC
		LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	result, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan appointments: %w", err)
	}
	return result, total, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to Status, from []Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, string(to), statusStrings(from))

	return scanAppointment(row)
}

func (r *PgRepository) FindByStatusBetween(ctx context.Context, status Status, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		  AND scheduled_at >= $2
		  AND scheduled_at < $3
		ORDER BY scheduled_at ASC, id ASC
	`, string(status), from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	return insertEvent(ctx, r.pool, ev)
}

func (r *PgRepository) WithDoctorTx(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{
			tx:      tx,
			doctors: directory.NewPgRepository(tx),
		})
	})
}

type pgTxRepository struct {
	tx      pgx.Tx
	doctors *directory.PgRepository
}

// GetDoctor takes the doctor row lock, serializing creations for the doctor.
func (t *pgTxRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error) {
	return t.doctors.LockDoctor(ctx, id)
}

func (t *pgTxRepository) CountActiveInWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error) {
	return countActiveInWindow(ctx, t.tx, doctorID, from, to)
}

func (t *pgTxRepository) CreateAppointment(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, scheduled_at, notes, symptoms, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', now(), now())
		RETURNING `+appointmentColumns+`
	`, uuid.New(), patientID, req.DoctorID, req.ScheduledAt, req.Notes, req.Symptoms)

	return scanAppointment(row)
}

func (t *pgTxRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	return insertEvent(ctx, t.tx, ev)
}
