package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comandas/backend/internal/models"
)

const loteColumns = `id, shift_id, imap_uidvalidity, imap_uid, received_at, subject_raw, body_raw,
	parse_status, parse_error, route_norm, products_catalog_id, routes_catalog_id, carried_over, created_at`

func scanLote(row pgx.Row) (models.Lote, error) {
	var l models.Lote
	err := row.Scan(&l.ID, &l.ShiftID, &l.IMAPUIDValidity, &l.IMAPUID, &l.ReceivedAt, &l.SubjectRaw, &l.BodyRaw,
		&l.ParseStatus, &l.ParseError, &l.RouteNorm, &l.ProductsCatalogID, &l.RoutesCatalogID, &l.CarriedOver, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return l, ErrNotFound
	}
	return l, err
}

// InsertLoteFromIMAP materializes one mailbox message as a lote, normally
// PENDING, or ERROR_PARSE when the body could not be read.
// The (uidvalidity, uid) unique pair is the idempotency anchor: a conflict
// means the message was already ingested, and inserted=false is returned.
func (s *Store) InsertLoteFromIMAP(ctx context.Context, shiftID int64, uidvalidity, uid int64, receivedAt time.Time, subjectRaw, bodyRaw, parseStatus string, parseError *string) (models.Lote, bool, error) {
	lote, err := scanLote(s.Pool.QueryRow(ctx, `
		INSERT INTO lotes (shift_id, imap_uidvalidity, imap_uid, received_at, subject_raw, body_raw, parse_status, parse_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (imap_uidvalidity, imap_uid) DO NOTHING
		RETURNING `+loteColumns,
		shiftID, uidvalidity, uid, receivedAt, subjectRaw, bodyRaw, parseStatus, parseError))
	if errors.Is(err, ErrNotFound) {
		return models.Lote{}, false, nil
	}
	return lote, err == nil, err
}

func (s *Store) GetLote(ctx context.Context, id int64) (models.Lote, error) {
	return scanLote(s.Pool.QueryRow(ctx, `SELECT `+loteColumns+` FROM lotes WHERE id = $1`, id))
}

// GetLoteForUpdate locks the lote row for the duration of a processing
// transaction so that concurrent ProcessLote calls serialize.
func (s *Store) GetLoteForUpdate(ctx context.Context, tx pgx.Tx, id int64) (models.Lote, error) {
	return scanLote(tx.QueryRow(ctx, `SELECT `+loteColumns+` FROM lotes WHERE id = $1 FOR UPDATE`, id))
}

func (s *Store) SetLoteStatusTx(ctx context.Context, tx pgx.Tx, id int64, status string, parseError *string) error {
	_, err := tx.Exec(ctx, `UPDATE lotes SET parse_status = $2, parse_error = $3 WHERE id = $1`, id, status, parseError)
	return err
}

// SetLoteStatus is the pool-side variant used after a rollback, when the
// failure itself must still be recorded on the lote.
func (s *Store) SetLoteStatus(ctx context.Context, id int64, status string, parseError *string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE lotes SET parse_status = $2, parse_error = $3 WHERE id = $1`, id, status, parseError)
	return err
}

func (s *Store) BindLoteCatalogs(ctx context.Context, tx pgx.Tx, id, productsCatalogID, routesCatalogID int64) error {
	_, err := tx.Exec(ctx, `UPDATE lotes SET products_catalog_id = $2, routes_catalog_id = $3 WHERE id = $1`,
		id, productsCatalogID, routesCatalogID)
	return err
}

func (s *Store) SetLoteRoute(ctx context.Context, tx pgx.Tx, id int64, routeNorm string) error {
	_, err := tx.Exec(ctx, `UPDATE lotes SET route_norm = $2 WHERE id = $1`, id, routeNorm)
	return err
}

// DeleteLoteChildren clears client orders (and their lines, via cascade) so
// that reprocessing an ERROR lote starts from a clean slate.
func (s *Store) DeleteLoteChildren(ctx context.Context, tx pgx.Tx, loteID int64) error {
	_, err := tx.Exec(ctx, `DELETE FROM client_orders WHERE lote_id = $1`, loteID)
	return err
}

func (s *Store) ListLotes(ctx context.Context, shiftID int64, status string, limit, offset int) ([]models.Lote, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + loteColumns + ` FROM lotes WHERE shift_id = $1`
	args := []any{shiftID}
	if status != "" {
		args = append(args, status)
		query += ` AND parse_status = $2`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	query += " LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lote
	for rows.Next() {
		l, err := scanLote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LatestOKLoteID returns the id of the newest OK lote of a route day by the
// canonical lote ordering (created_at, id). ErrNotFound when none exists.
func (s *Store) LatestOKLoteID(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT id FROM lotes
		WHERE shift_id = $1 AND route_norm = $2 AND parse_status = 'OK'
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, shiftID, routeNorm).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

func (s *Store) InsertClientOrder(ctx context.Context, tx pgx.Tx, loteID int64, nameRaw, affinityKey string, observations *string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO client_orders (lote_id, name_raw, affinity_key, observations)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		loteID, nameRaw, affinityKey, observations).Scan(&id)
	return id, err
}

func (s *Store) InsertLine(ctx context.Context, tx pgx.Tx, l models.Line) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO lines (client_order_id, seq_in_client, quantity, unit_raw, product_raw, product_norm,
			price, currency, match_method, match_score, family, operator_id, assigned_at, printed_at, print_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		l.ClientOrderID, l.SeqInClient, l.Quantity, l.UnitRaw, l.ProductRaw, l.ProductNorm,
		l.Price, l.Currency, l.MatchMethod, l.MatchScore, l.Family, l.OperatorID, l.AssignedAt,
		l.PrintedAt, l.PrintCount).Scan(&id)
	return id, err
}

const lineColumns = `l.id, l.client_order_id, l.seq_in_client, l.quantity, l.unit_raw, l.product_raw, l.product_norm,
	l.price, l.currency, l.match_method, l.match_score, l.family, l.operator_id, l.assigned_at, l.printed_at, l.print_count`

func scanLines(rows pgx.Rows) ([]models.Line, error) {
	defer rows.Close()
	var out []models.Line
	for rows.Next() {
		var l models.Line
		if err := rows.Scan(&l.ID, &l.ClientOrderID, &l.SeqInClient, &l.Quantity, &l.UnitRaw, &l.ProductRaw, &l.ProductNorm,
			&l.Price, &l.Currency, &l.MatchMethod, &l.MatchScore, &l.Family, &l.OperatorID, &l.AssignedAt,
			&l.PrintedAt, &l.PrintCount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListClientOrders(ctx context.Context, loteID int64) ([]models.ClientOrder, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, lote_id, name_raw, affinity_key, observations
		FROM client_orders WHERE lote_id = $1 ORDER BY id ASC`, loteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ClientOrder
	for rows.Next() {
		var c models.ClientOrder
		if err := rows.Scan(&c.ID, &c.LoteID, &c.NameRaw, &c.AffinityKey, &c.Observations); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListLinesByClientOrder(ctx context.Context, clientOrderID int64) ([]models.Line, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+lineColumns+` FROM lines l
		WHERE l.client_order_id = $1 ORDER BY l.seq_in_client ASC`, clientOrderID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

// LotesWithUnprinted lists the lotes of a shift that still hold at least one
// unprinted line, in canonical lote order.
func (s *Store) LotesWithUnprinted(ctx context.Context, tx pgx.Tx, shiftID int64) ([]models.Lote, error) {
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT `+loteColumns+` FROM lotes
		WHERE shift_id = $1 AND parse_status = 'OK' AND id IN (
			SELECT co.lote_id FROM client_orders co
			JOIN lines l ON l.client_order_id = co.id
			WHERE l.printed_at IS NULL
		)
		ORDER BY created_at ASC, id ASC`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lote
	for rows.Next() {
		l, err := scanLote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ClientOrdersWithUnprinted returns the client orders of a lote that own at
// least one unprinted line.
func (s *Store) ClientOrdersWithUnprinted(ctx context.Context, tx pgx.Tx, loteID int64) ([]models.ClientOrder, error) {
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT co.id, co.lote_id, co.name_raw, co.affinity_key, co.observations
		FROM client_orders co
		JOIN lines l ON l.client_order_id = co.id
		WHERE co.lote_id = $1 AND l.printed_at IS NULL
		ORDER BY co.id ASC`, loteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ClientOrder
	for rows.Next() {
		var c models.ClientOrder
		if err := rows.Scan(&c.ID, &c.LoteID, &c.NameRaw, &c.AffinityKey, &c.Observations); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UnprintedLinesOfClientOrder returns the unprinted lines of one client
// order in seq order.
func (s *Store) UnprintedLinesOfClientOrder(ctx context.Context, tx pgx.Tx, clientOrderID int64) ([]models.Line, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+lineColumns+` FROM lines l
		WHERE l.client_order_id = $1 AND l.printed_at IS NULL
		ORDER BY l.seq_in_client ASC`, clientOrderID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

// InsertCarriedLote creates the carryover copy of a source lote in the new
// shift. The IMAP identity is not copied; carried lotes are distinct rows.
func (s *Store) InsertCarriedLote(ctx context.Context, tx pgx.Tx, newShiftID int64, src models.Lote) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO lotes (shift_id, received_at, subject_raw, body_raw, parse_status, route_norm,
			products_catalog_id, routes_catalog_id, carried_over)
		VALUES ($1, $2, $3, $4, 'OK', $5, $6, $7, TRUE)
		RETURNING id`,
		newShiftID, src.ReceivedAt, src.SubjectRaw, src.BodyRaw, src.RouteNorm,
		src.ProductsCatalogID, src.RoutesCatalogID).Scan(&id)
	return id, err
}
