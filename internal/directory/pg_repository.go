package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/doctor-appointment-booking/internal/db"
)

const userColumns = `id, email, full_name, role, is_active, specialization, consultation_fee, available_timeslots, created_at, updated_at`

type PgRepository struct {
	q db.Querier
}

// NewPgRepository accepts a pool or a transaction.
func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{q: q}
}

// ScanUser reads a row selected with the user column list.
func ScanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.Role,
		&u.IsActive,
		&u.Specialization,
		&u.ConsultationFee,
		&u.Timeslots,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	u, err := ScanUser(row)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return DoctorProfile(u), nil
}

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return ScanUser(row)
}

func (r *PgRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	return ScanUser(row)
}

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND role = 'doctor'
	`, id)
	return scanDoctor(row)
}

// LockDoctor loads the doctor row with FOR UPDATE. It must run inside a
// transaction; the lock is held until commit or rollback.
func (r *PgRepository) LockDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND role = 'doctor'
		FOR UPDATE
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) UpdateSchedule(ctx context.Context, doctorID uuid.UUID, timeslots string, fee *float64, specialization *string) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE users
		SET available_timeslots = $2,
		    consultation_fee = COALESCE($3, consultation_fee),
		    specialization = COALESCE($4, specialization),
		    updated_at = now()
		WHERE id = $1 AND role = 'doctor'
		RETURNING `+userColumns+`
	`, doctorID, timeslots, fee, specialization)
	return scanDoctor(row)
}

func (r *PgRepository) SetActive(ctx context.Context, doctorID uuid.UUID, active bool) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE users
		SET is_active = $2,
		    updated_at = now()
		WHERE id = $1 AND role = 'doctor'
		RETURNING `+userColumns+`
	`, doctorID, active)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, int, error) {
	conds := []string{"role = 'doctor'"}
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if !f.IncludeInactive {
		conds = append(conds, "is_active")
	}
	if f.Search != "" {
		add("(full_name ILIKE ? OR specialization ILIKE ?)", "%"+db.EscapeLike(f.Search)+"%")
	}
	if f.Specialization != "" {
		add("specialization ILIKE ?", db.EscapeLike(f.Specialization))
	}
	where := "WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM users `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	n := len(args)
	args = append(args, f.Limit, f.Skip)
	rows, err := r.q.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		`+where+`
		ORDER BY full_name ASC NULLS LAST, id ASC
		LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		u, err := ScanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, *DoctorProfile(u))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return doctors, total, nil
}
