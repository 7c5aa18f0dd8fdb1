package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const profileColumns = `doctor_id, weekly, date_windows, blackout_windows, slot_size_minutes, buffer_minutes, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile

	err := row.Scan(
		&p.DoctorID,
		&p.Weekly,
		&p.DateWindows,
		&p.BlackoutWindows,
		&p.SlotSizeMinutes,
		&p.BufferMinutes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	p.Weekly = nonNilRules(p.Weekly)
	p.DateWindows = nonNilWindows(p.DateWindows)
	p.BlackoutWindows = nonNilWindows(p.BlackoutWindows)
	return &p, nil
}

func (r *PgRepository) GetProfile(ctx context.Context, doctorID uuid.UUID) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM availability_profiles
		WHERE doctor_id = $1
	`, doctorID)
	return scanProfile(row)
}

func (r *PgRepository) UpsertProfile(ctx context.Context, p Profile) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_profiles (doctor_id, weekly, date_windows, blackout_windows, slot_size_minutes, buffer_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (doctor_id) DO UPDATE
		SET weekly = EXCLUDED.weekly,
		    date_windows = EXCLUDED.date_windows,
		    blackout_windows = EXCLUDED.blackout_windows,
		    slot_size_minutes = EXCLUDED.slot_size_minutes,
		    buffer_minutes = EXCLUDED.buffer_minutes,
		    updated_at = now()
		RETURNING `+profileColumns,
		p.DoctorID, p.Weekly, p.DateWindows, p.BlackoutWindows, p.SlotSizeMinutes, p.BufferMinutes)

	return scanProfile(row)
}

func (r *PgRepository) UpdateProfile(ctx context.Context, doctorID uuid.UUID, fn func(p *Profile) error) (*Profile, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanProfile(tx.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM availability_profiles
		WHERE doctor_id = $1
		FOR UPDATE
	`, doctorID))
	if err != nil {
		return nil, err
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	updated, err := scanProfile(tx.QueryRow(ctx, `
		UPDATE availability_profiles
		SET weekly = $2,
		    date_windows = $3,
		    blackout_windows = $4,
		    slot_size_minutes = $5,
		    buffer_minutes = $6,
		    updated_at = now()
		WHERE doctor_id = $1
		RETURNING `+profileColumns,
		doctorID, p.Weekly, p.DateWindows, p.BlackoutWindows, p.SlotSizeMinutes, p.BufferMinutes))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) DeleteProfile(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_profiles WHERE doctor_id = $1`, doctorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) ListProfiles(ctx context.Context, f ListFilter) ([]Profile, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM availability_profiles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM availability_profiles
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}
