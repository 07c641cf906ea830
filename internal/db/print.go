package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comandas/backend/internal/models"
)

// PrintLine is a line joined with the context a comanda needs: its lote and
// owning client.
type PrintLine struct {
	models.Line
	LoteID       int64   `json:"lote_id"`
	ClientName   string  `json:"client_name"`
	Observations *string `json:"observations"`
}

// EnterOperatorRoute records the operator's first entry on a route in a
// shift, snapshotting the cutoff lote. Re-entering is a no-op: the cutoff
// never advances by entering again. Returns the row and whether it was
// created now.
func (s *Store) EnterOperatorRoute(ctx context.Context, tx pgx.Tx, shiftID int64, operatorID, routeNorm string, cutoffLoteID *int64, at time.Time) (models.OperatorRouteProgress, bool, error) {
	ct, err := tx.Exec(ctx, `
		INSERT INTO operator_route_progress (shift_id, operator_id, route_norm, entered_at, cutoff_lote_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shift_id, operator_id, route_norm) DO NOTHING`,
		shiftID, operatorID, routeNorm, at, cutoffLoteID)
	if err != nil {
		return models.OperatorRouteProgress{}, false, err
	}
	p, err := s.GetOperatorProgress(ctx, tx, shiftID, operatorID, routeNorm)
	return p, ct.RowsAffected() > 0, err
}

func (s *Store) GetOperatorProgress(ctx context.Context, tx pgx.Tx, shiftID int64, operatorID, routeNorm string) (models.OperatorRouteProgress, error) {
	var p models.OperatorRouteProgress
	err := tx.QueryRow(ctx, `
		SELECT shift_id, operator_id, route_norm, entered_at, cutoff_lote_id, last_printed_lote_id, last_printed_at
		FROM operator_route_progress
		WHERE shift_id = $1 AND operator_id = $2 AND route_norm = $3 FOR UPDATE`,
		shiftID, operatorID, routeNorm).Scan(
		&p.ShiftID, &p.OperatorID, &p.RouteNorm, &p.EnteredAt, &p.CutoffLoteID, &p.LastPrintedLoteID, &p.LastPrintedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *Store) AdvanceOperatorPrinted(ctx context.Context, tx pgx.Tx, shiftID int64, operatorID, routeNorm string, loteID int64, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE operator_route_progress
		SET last_printed_lote_id = $4, last_printed_at = $5
		WHERE shift_id = $1 AND operator_id = $2 AND route_norm = $3`,
		shiftID, operatorID, routeNorm, loteID, at)
	return err
}

func (s *Store) GetCollectorProgress(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm string) (models.CollectorRouteProgress, error) {
	var p models.CollectorRouteProgress
	err := tx.QueryRow(ctx, `
		SELECT shift_id, route_norm, last_closed_lote_id, last_closed_at
		FROM collector_route_progress
		WHERE shift_id = $1 AND route_norm = $2 FOR UPDATE`,
		shiftID, routeNorm).Scan(&p.ShiftID, &p.RouteNorm, &p.LastClosedLoteID, &p.LastClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *Store) AdvanceCollectorClosed(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm string, loteID int64, at time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO collector_route_progress (shift_id, route_norm, last_closed_lote_id, last_closed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shift_id, route_norm) DO UPDATE
		SET last_closed_lote_id = EXCLUDED.last_closed_lote_id, last_closed_at = EXCLUDED.last_closed_at`,
		shiftID, routeNorm, loteID, at)
	return err
}

const printSelect = `
	SELECT ` + lineColumns + `, lo.id, co.name_raw, co.observations
	FROM lines l
	JOIN client_orders co ON co.id = l.client_order_id
	JOIN lotes lo ON lo.id = co.lote_id
	WHERE lo.shift_id = $1 AND lo.route_norm = $2 AND lo.parse_status = 'OK'`

const printOrder = ` ORDER BY lo.created_at ASC, lo.id ASC, co.id ASC, l.seq_in_client ASC`

func scanPrintLines(rows pgx.Rows) ([]PrintLine, error) {
	defer rows.Close()
	var out []PrintLine
	for rows.Next() {
		var p PrintLine
		if err := rows.Scan(&p.ID, &p.ClientOrderID, &p.SeqInClient, &p.Quantity, &p.UnitRaw, &p.ProductRaw, &p.ProductNorm,
			&p.Price, &p.Currency, &p.MatchMethod, &p.MatchScore, &p.Family, &p.OperatorID, &p.AssignedAt,
			&p.PrintedAt, &p.PrintCount, &p.LoteID, &p.ClientName, &p.Observations); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SelectOperatorInitial returns an operator's lines up to and including the
// cutoff lote, in the canonical print ordering.
func (s *Store) SelectOperatorInitial(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm, operatorID string, cutoffLoteID int64) ([]PrintLine, error) {
	rows, err := tx.Query(ctx, printSelect+`
		AND l.operator_id = $3
		AND (lo.created_at, lo.id) <= (SELECT created_at, id FROM lotes WHERE id = $4)`+printOrder,
		shiftID, routeNorm, operatorID, cutoffLoteID)
	if err != nil {
		return nil, err
	}
	return scanPrintLines(rows)
}

// SelectOperatorNew returns an operator's lines strictly after the given
// lote; afterLoteID nil means no lower bound.
func (s *Store) SelectOperatorNew(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm, operatorID string, afterLoteID *int64) ([]PrintLine, error) {
	query := printSelect + ` AND l.operator_id = $3`
	args := []any{shiftID, routeNorm, operatorID}
	if afterLoteID != nil {
		args = append(args, *afterLoteID)
		query += fmt.Sprintf(` AND (lo.created_at, lo.id) > (SELECT created_at, id FROM lotes WHERE id = $%d)`, len(args))
	}
	rows, err := tx.Query(ctx, query+printOrder, args...)
	if err != nil {
		return nil, err
	}
	return scanPrintLines(rows)
}

// SelectCollectorNew returns every line of the route strictly after the
// collector cursor, with no operator filter.
func (s *Store) SelectCollectorNew(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm string, afterLoteID *int64) ([]PrintLine, error) {
	query := printSelect
	args := []any{shiftID, routeNorm}
	if afterLoteID != nil {
		args = append(args, *afterLoteID)
		query += fmt.Sprintf(` AND (lo.created_at, lo.id) > (SELECT created_at, id FROM lotes WHERE id = $%d)`, len(args))
	}
	rows, err := tx.Query(ctx, query+printOrder, args...)
	if err != nil {
		return nil, err
	}
	return scanPrintLines(rows)
}

func (s *Store) InsertPrintJob(ctx context.Context, tx pgx.Tx, j models.PrintJob) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO print_jobs (id, shift_id, route_norm, actor_user, kind, status, pdf_ref, error_text,
			cutoff_lote_id, from_lote_id, to_lote_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.ID, j.ShiftID, j.RouteNorm, j.ActorUser, j.Kind, j.Status, j.PDFRef, j.ErrorText,
		j.CutoffLoteID, j.FromLoteID, j.ToLoteID, j.CreatedAt)
	return err
}

func (s *Store) InsertPrintJobItems(ctx context.Context, tx pgx.Tx, jobID string, lineIDs []int64) error {
	rows := make([][]any, 0, len(lineIDs))
	for _, id := range lineIDs {
		rows = append(rows, []any{jobID, id})
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"print_job_items"},
		[]string{"print_job_id", "line_id"}, pgx.CopyFromRows(rows))
	return err
}

// StampLines marks first-time prints and bumps the counter on repeats:
// printed_at is set exactly once, print_count increments on every commit
// that includes the line.
func (s *Store) StampLines(ctx context.Context, tx pgx.Tx, lineIDs []int64, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE lines
		SET printed_at = COALESCE(printed_at, $2), print_count = print_count + 1
		WHERE id = ANY($1)`, lineIDs, at)
	return err
}

// BumpPrintCount increments the counter without touching printed_at; only
// reprints go through here.
func (s *Store) BumpPrintCount(ctx context.Context, tx pgx.Tx, lineIDs []int64) error {
	_, err := tx.Exec(ctx, `UPDATE lines SET print_count = print_count + 1 WHERE id = ANY($1)`, lineIDs)
	return err
}

// InsertFailedPrintJob records a FAILED job outside the (rolled back) print
// transaction so the failure stays queryable.
func (s *Store) InsertFailedPrintJob(ctx context.Context, j models.PrintJob) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO print_jobs (id, shift_id, route_norm, actor_user, kind, status, pdf_ref, error_text,
			cutoff_lote_id, from_lote_id, to_lote_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.ID, j.ShiftID, j.RouteNorm, j.ActorUser, j.Kind, j.Status, j.PDFRef, j.ErrorText,
		j.CutoffLoteID, j.FromLoteID, j.ToLoteID, j.CreatedAt)
	return err
}

func (s *Store) GetPrintJob(ctx context.Context, id string) (models.PrintJob, error) {
	var j models.PrintJob
	err := s.Pool.QueryRow(ctx, `
		SELECT id, shift_id, route_norm, actor_user, kind, status, pdf_ref, error_text,
			cutoff_lote_id, from_lote_id, to_lote_id, created_at
		FROM print_jobs WHERE id = $1`, id).Scan(
		&j.ID, &j.ShiftID, &j.RouteNorm, &j.ActorUser, &j.Kind, &j.Status, &j.PDFRef, &j.ErrorText,
		&j.CutoffLoteID, &j.FromLoteID, &j.ToLoteID, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return j, ErrNotFound
	}
	return j, err
}

func (s *Store) ListPrintJobs(ctx context.Context, shiftID int64, routeNorm string, limit, offset int) ([]models.PrintJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT id, shift_id, route_norm, actor_user, kind, status, pdf_ref, error_text,
			cutoff_lote_id, from_lote_id, to_lote_id, created_at
		FROM print_jobs WHERE shift_id = $1`
	args := []any{shiftID}
	if routeNorm != "" {
		args = append(args, routeNorm)
		query += fmt.Sprintf(" AND route_norm = $%d", len(args))
	}
	query += " ORDER BY created_at DESC" +
		" LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PrintJob
	for rows.Next() {
		var j models.PrintJob
		if err := rows.Scan(&j.ID, &j.ShiftID, &j.RouteNorm, &j.ActorUser, &j.Kind, &j.Status, &j.PDFRef, &j.ErrorText,
			&j.CutoffLoteID, &j.FromLoteID, &j.ToLoteID, &j.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// JobPrintLines reloads the full print context of a job's lines, in the
// canonical ordering, for reprints.
func (s *Store) JobPrintLines(ctx context.Context, tx pgx.Tx, jobID string) ([]PrintLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+lineColumns+`, lo.id, co.name_raw, co.observations
		FROM print_job_items pji
		JOIN lines l ON l.id = pji.line_id
		JOIN client_orders co ON co.id = l.client_order_id
		JOIN lotes lo ON lo.id = co.lote_id
		WHERE pji.print_job_id = $1`+printOrder, jobID)
	if err != nil {
		return nil, err
	}
	return scanPrintLines(rows)
}
