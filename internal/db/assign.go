package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// GetAffinity returns the sticky operator for (shift, affinity_key, code).
func (s *Store) GetAffinity(ctx context.Context, tx pgx.Tx, shiftID int64, affinityKey string, functionalCode int) (string, error) {
	var op string
	err := tx.QueryRow(ctx, `
		SELECT operator_id FROM owner_affinities
		WHERE shift_id = $1 AND affinity_key = $2 AND functional_code = $3`,
		shiftID, affinityKey, functionalCode).Scan(&op)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return op, err
}

func (s *Store) UpsertAffinity(ctx context.Context, tx pgx.Tx, shiftID int64, affinityKey string, functionalCode int, operatorID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO owner_affinities (shift_id, affinity_key, functional_code, operator_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shift_id, affinity_key, functional_code) DO UPDATE SET operator_id = EXCLUDED.operator_id`,
		shiftID, affinityKey, functionalCode, operatorID)
	return err
}

// LockRoundRobin ensures the cursor row exists and locks it, serializing
// concurrent assignments on the same (shift, functional_code). The returned
// value is the last operator picked, "" when the cursor is fresh.
func (s *Store) LockRoundRobin(ctx context.Context, tx pgx.Tx, shiftID int64, functionalCode int) (string, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO round_robin_cursors (shift_id, functional_code)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, shiftID, functionalCode); err != nil {
		return "", err
	}
	var last *string
	if err := tx.QueryRow(ctx, `
		SELECT last_operator_id FROM round_robin_cursors
		WHERE shift_id = $1 AND functional_code = $2 FOR UPDATE`,
		shiftID, functionalCode).Scan(&last); err != nil {
		return "", err
	}
	if last == nil {
		return "", nil
	}
	return *last, nil
}

func (s *Store) UpdateRoundRobin(ctx context.Context, tx pgx.Tx, shiftID int64, functionalCode int, operatorID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE round_robin_cursors SET last_operator_id = $3
		WHERE shift_id = $1 AND functional_code = $2`,
		shiftID, functionalCode, operatorID)
	return err
}
