package assign

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/comandas/backend/internal/db"
)

// Assignment reasons, recorded on every assigned line.
const (
	ReasonAffinity   = "AFFINITY"
	ReasonRoundRobin = "ROUND_ROBIN"
	ReasonNoPool     = "NO_POOL"
)

// Result is the outcome of one line assignment. OperatorID is empty when
// Reason is NO_POOL.
type Result struct {
	OperatorID string
	Reason     string
}

// Engine resolves which operator prepares a line: the qualification pool for
// the line's functional code, then client affinity, then a per-code
// round-robin cursor. All reads and writes happen inside the caller's
// transaction so concurrent lote processing serializes on the cursor row.
type Engine struct {
	store *db.Store
}

func NewEngine(store *db.Store) *Engine {
	return &Engine{store: store}
}

// Assign picks the operator for (affinityKey, functionalCode) within a shift.
// A sticky affinity only holds while its operator is still in the pool;
// otherwise the round-robin cursor advances and the affinity is rebound.
func (e *Engine) Assign(ctx context.Context, tx pgx.Tx, shiftID int64, affinityKey string, functionalCode int) (Result, error) {
	pool, err := e.store.ListPool(ctx, tx, shiftID, functionalCode)
	if err != nil {
		return Result{}, err
	}
	if len(pool) == 0 {
		return Result{Reason: ReasonNoPool}, nil
	}

	op, err := e.store.GetAffinity(ctx, tx, shiftID, affinityKey, functionalCode)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return Result{}, err
	}
	if err == nil && contains(pool, op) {
		return Result{OperatorID: op, Reason: ReasonAffinity}, nil
	}

	last, err := e.store.LockRoundRobin(ctx, tx, shiftID, functionalCode)
	if err != nil {
		return Result{}, err
	}
	next := NextOperator(pool, last)
	if err := e.store.UpdateRoundRobin(ctx, tx, shiftID, functionalCode, next); err != nil {
		return Result{}, err
	}
	if err := e.store.UpsertAffinity(ctx, tx, shiftID, affinityKey, functionalCode, next); err != nil {
		return Result{}, err
	}
	return Result{OperatorID: next, Reason: ReasonRoundRobin}, nil
}

// NextOperator advances the cursor over a sorted pool. A fresh cursor or a
// last operator no longer in the pool restarts at the first entry; the wheel
// wraps after the last.
func NextOperator(pool []string, last string) string {
	if last == "" {
		return pool[0]
	}
	for i, op := range pool {
		if op == last {
			return pool[(i+1)%len(pool)]
		}
	}
	return pool[0]
}

func contains(pool []string, op string) bool {
	for _, p := range pool {
		if p == op {
			return true
		}
	}
	return false
}
