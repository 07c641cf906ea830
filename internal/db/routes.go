package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comandas/backend/internal/models"
)

const routeDayColumns = `id, shift_id, route_norm, visual_state, logical_state, reactivations_count, last_event_at`

func scanRouteDay(row pgx.Row) (models.RouteDay, error) {
	var r models.RouteDay
	err := row.Scan(&r.ID, &r.ShiftID, &r.RouteNorm, &r.VisualState, &r.LogicalState, &r.ReactivationsCount, &r.LastEventAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

// FindOrCreateRouteDay lazily materializes the per-shift route row with the
// initial {BLUE, ACTIVE, 0} state.
func (s *Store) FindOrCreateRouteDay(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm string) (models.RouteDay, error) {
	rd, err := scanRouteDay(tx.QueryRow(ctx, `
		INSERT INTO route_days (shift_id, route_norm)
		VALUES ($1, $2)
		ON CONFLICT (shift_id, route_norm) DO NOTHING
		RETURNING `+routeDayColumns, shiftID, routeNorm))
	if errors.Is(err, ErrNotFound) {
		return scanRouteDay(tx.QueryRow(ctx, `
			SELECT `+routeDayColumns+` FROM route_days WHERE shift_id = $1 AND route_norm = $2`,
			shiftID, routeNorm))
	}
	return rd, err
}

func (s *Store) GetRouteDay(ctx context.Context, id int64) (models.RouteDay, error) {
	return scanRouteDay(s.Pool.QueryRow(ctx, `SELECT `+routeDayColumns+` FROM route_days WHERE id = $1`, id))
}

// GetRouteDayForUpdate locks the route day row; all visual/logical
// transitions serialize on this lock.
func (s *Store) GetRouteDayForUpdate(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm string) (models.RouteDay, error) {
	return scanRouteDay(tx.QueryRow(ctx,
		`SELECT `+routeDayColumns+` FROM route_days WHERE shift_id = $1 AND route_norm = $2 FOR UPDATE`,
		shiftID, routeNorm))
}

func (s *Store) UpdateRouteDayState(ctx context.Context, tx pgx.Tx, id int64, visual, logical string, reactivations int, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE route_days
		SET visual_state = $2, logical_state = $3, reactivations_count = $4, last_event_at = $5
		WHERE id = $1`, id, visual, logical, reactivations, at)
	return err
}

// CountUnprinted is the derived metric behind the visual state: OK lines of
// the route day not yet printed.
func (s *Store) CountUnprinted(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM lines l
		JOIN client_orders co ON co.id = l.client_order_id
		JOIN lotes lo ON lo.id = co.lote_id
		WHERE lo.shift_id = $1 AND lo.route_norm = $2 AND lo.parse_status = 'OK'
		  AND l.printed_at IS NULL`, shiftID, routeNorm).Scan(&n)
	return n, err
}

// RouteSummaries feeds the wall display: one row per route day of the shift
// with its derived counters.
func (s *Store) RouteSummaries(ctx context.Context, shiftID int64) ([]models.RouteSummary, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT rd.id, rd.route_norm, rd.visual_state, rd.logical_state,
			COALESCE(cnt.unprinted, 0), COALESCE(cnt.total_lines, 0),
			COALESCE(cnt.total_clients, 0), COALESCE(cnt.lotes_count, 0)
		FROM route_days rd
		LEFT JOIN (
			SELECT lo.route_norm,
				COUNT(l.id) FILTER (WHERE l.printed_at IS NULL) AS unprinted,
				COUNT(l.id) AS total_lines,
				COUNT(DISTINCT co.id) AS total_clients,
				COUNT(DISTINCT lo.id) AS lotes_count
			FROM lotes lo
			LEFT JOIN client_orders co ON co.lote_id = lo.id
			LEFT JOIN lines l ON l.client_order_id = co.id
			WHERE lo.shift_id = $1 AND lo.parse_status = 'OK'
			GROUP BY lo.route_norm
		) cnt ON cnt.route_norm = rd.route_norm
		WHERE rd.shift_id = $1
		ORDER BY rd.route_norm ASC`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RouteSummary
	for rows.Next() {
		var r models.RouteSummary
		if err := rows.Scan(&r.RouteID, &r.RouteName, &r.VisualState, &r.LogicalState,
			&r.Unprinted, &r.TotalLines, &r.TotalClients, &r.LotesCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
