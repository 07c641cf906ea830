package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comandas/backend/internal/models"
)

const shiftColumns = `id, shift_date, slot, state, started_at, scheduled_end_at, ended_at`

func scanShift(row pgx.Row) (models.Shift, error) {
	var sh models.Shift
	err := row.Scan(&sh.ID, &sh.Date, &sh.Slot, &sh.State, &sh.StartedAt, &sh.ScheduledEndAt, &sh.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sh, ErrNotFound
	}
	return sh, err
}

func (s *Store) GetShift(ctx context.Context, id int64) (models.Shift, error) {
	return scanShift(s.Pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id))
}

// GetActiveShift returns the single ACTIVE shift, or ErrNotFound.
func (s *Store) GetActiveShift(ctx context.Context) (models.Shift, error) {
	return scanShift(s.Pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE state = 'ACTIVE'`))
}

func (s *Store) GetActiveShiftTx(ctx context.Context, tx pgx.Tx) (models.Shift, error) {
	return scanShift(tx.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE state = 'ACTIVE'`))
}

func (s *Store) GetSchedule(ctx context.Context, tx pgx.Tx, slot string) (models.Schedule, error) {
	var sc models.Schedule
	err := tx.QueryRow(ctx, `
		SELECT id, slot, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), active
		FROM schedules WHERE slot = $1 AND active
	`, slot).Scan(&sc.ID, &sc.Slot, &sc.StartTime, &sc.EndTime, &sc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return sc, ErrNotFound
	}
	return sc, err
}

// InsertActiveShift creates the shift directly in ACTIVE state. The partial
// unique index on state='ACTIVE' and the (shift_date, slot) unique constraint
// guard the invariants; callers translate unique violations.
func (s *Store) InsertActiveShift(ctx context.Context, tx pgx.Tx, date time.Time, slot string, startedAt, scheduledEndAt time.Time) (models.Shift, error) {
	return scanShift(tx.QueryRow(ctx, `
		INSERT INTO shifts (shift_date, slot, state, started_at, scheduled_end_at)
		VALUES ($1, $2, 'ACTIVE', $3, $4)
		RETURNING `+shiftColumns, date, slot, startedAt, scheduledEndAt))
}

// CloseShiftByID transitions the given shift to CLOSED, but only while it is
// the ACTIVE one. ErrNotFound when the id does not name the active shift.
func (s *Store) CloseShiftByID(ctx context.Context, id int64, endedAt time.Time) (models.Shift, error) {
	return scanShift(s.Pool.QueryRow(ctx, `
		UPDATE shifts SET state = 'CLOSED', ended_at = $1
		WHERE state = 'ACTIVE' AND id = $2
		RETURNING `+shiftColumns, endedAt, id))
}

// CloseExpiredShift closes the ACTIVE shift only if its scheduled end has
// elapsed. ErrNotFound when there is nothing to close.
func (s *Store) CloseExpiredShift(ctx context.Context, now time.Time) (models.Shift, error) {
	return scanShift(s.Pool.QueryRow(ctx, `
		UPDATE shifts SET state = 'CLOSED', ended_at = $1
		WHERE state = 'ACTIVE' AND scheduled_end_at IS NOT NULL AND scheduled_end_at < $1
		RETURNING `+shiftColumns, now))
}

// LatestClosedShift returns the most recently ended CLOSED shift.
func (s *Store) LatestClosedShift(ctx context.Context) (models.Shift, error) {
	return scanShift(s.Pool.QueryRow(ctx, `
		SELECT `+shiftColumns+` FROM shifts
		WHERE state = 'CLOSED'
		ORDER BY ended_at DESC NULLS LAST, id DESC
		LIMIT 1`))
}

// ReplaceQualifications rewrites the qualification pool of one shift.
func (s *Store) ReplaceQualifications(ctx context.Context, shiftID int64, quals []models.Qualification) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM shift_qualifications WHERE shift_id = $1`, shiftID); err != nil {
			return err
		}
		for _, q := range quals {
			if _, err := tx.Exec(ctx, `
				INSERT INTO shift_qualifications (shift_id, operator_id, functional_code, enabled)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (shift_id, operator_id, functional_code) DO UPDATE SET enabled = EXCLUDED.enabled
			`, shiftID, q.OperatorID, q.FunctionalCode, q.Enabled); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListQualifications(ctx context.Context, shiftID int64) ([]models.Qualification, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT shift_id, operator_id, functional_code, enabled
		FROM shift_qualifications WHERE shift_id = $1
		ORDER BY functional_code, operator_id`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Qualification
	for rows.Next() {
		var q models.Qualification
		if err := rows.Scan(&q.ShiftID, &q.OperatorID, &q.FunctionalCode, &q.Enabled); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ListPool returns the ordered operator pool for a functional code within a
// shift: enabled qualifications sorted by operator id ascending.
func (s *Store) ListPool(ctx context.Context, tx pgx.Tx, shiftID int64, functionalCode int) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT operator_id FROM shift_qualifications
		WHERE shift_id = $1 AND functional_code = $2 AND enabled
		ORDER BY operator_id ASC`, shiftID, functionalCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var op string
		if err := rows.Scan(&op); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *Store) SetCollector(ctx context.Context, shiftID int64, routeNorm, collectorID string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO shift_collectors (shift_id, route_norm, collector_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (shift_id, route_norm) DO UPDATE SET collector_id = EXCLUDED.collector_id
	`, shiftID, routeNorm, collectorID)
	return err
}

func (s *Store) GetCollector(ctx context.Context, shiftID int64, routeNorm string) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx, `
		SELECT collector_id FROM shift_collectors WHERE shift_id = $1 AND route_norm = $2
	`, shiftID, routeNorm).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}
