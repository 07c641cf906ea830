package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comandas/backend/internal/models"
)

// CatalogKind selects between the two versioned catalogs.
type CatalogKind string

const (
	CatalogProducts CatalogKind = "products"
	CatalogRoutes   CatalogKind = "routes"
)

func (k CatalogKind) table() string {
	if k == CatalogRoutes {
		return "routes_catalogs"
	}
	return "products_catalogs"
}

func scanCatalog(row pgx.Row) (models.CatalogVersion, error) {
	var c models.CatalogVersion
	err := row.Scan(&c.ID, &c.Version, &c.Active, &c.ActivatedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

func (s *Store) ActiveCatalogTx(ctx context.Context, tx pgx.Tx, kind CatalogKind) (models.CatalogVersion, error) {
	return scanCatalog(tx.QueryRow(ctx,
		`SELECT id, version, active, activated_at, created_at FROM `+kind.table()+` WHERE active`))
}

func (s *Store) ListCatalogVersions(ctx context.Context, kind CatalogKind) ([]models.CatalogVersion, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, version, active, activated_at, created_at FROM `+kind.table()+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CatalogVersion
	for rows.Next() {
		var c models.CatalogVersion
		if err := rows.Scan(&c.ID, &c.Version, &c.Active, &c.ActivatedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertProductsCatalog writes a new immutable products catalog version with
// its rows in one transaction. Rows are bulk-loaded with CopyFrom.
func (s *Store) InsertProductsCatalog(ctx context.Context, version string, products []models.Product) (int64, error) {
	var catalogID int64
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO products_catalogs (version) VALUES ($1) RETURNING id`, version).Scan(&catalogID); err != nil {
			return err
		}
		rows := make([][]any, 0, len(products))
		for _, p := range products {
			rows = append(rows, []any{catalogID, p.NormName, p.Family})
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"products"},
			[]string{"catalog_id", "norm_name", "family"}, pgx.CopyFromRows(rows))
		return err
	})
	return catalogID, err
}

func (s *Store) InsertRoutesCatalog(ctx context.Context, version string, routeNames []string) (int64, error) {
	var catalogID int64
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO routes_catalogs (version) VALUES ($1) RETURNING id`, version).Scan(&catalogID); err != nil {
			return err
		}
		rows := make([][]any, 0, len(routeNames))
		for _, n := range routeNames {
			rows = append(rows, []any{catalogID, n})
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"routes"},
			[]string{"catalog_id", "norm_name"}, pgx.CopyFromRows(rows))
		return err
	})
	return catalogID, err
}

// ActivateCatalog flips the single active bit to the named version.
func (s *Store) ActivateCatalog(ctx context.Context, kind CatalogKind, version string, at time.Time) (models.CatalogVersion, error) {
	var out models.CatalogVersion
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE `+kind.table()+` SET active = FALSE WHERE active`); err != nil {
			return err
		}
		var err error
		out, err = scanCatalog(tx.QueryRow(ctx, `
			UPDATE `+kind.table()+` SET active = TRUE, activated_at = $2
			WHERE version = $1
			RETURNING id, version, active, activated_at, created_at`, version, at))
		return err
	})
	return out, err
}

// ListProducts returns one catalog version's products in deterministic scan
// order (alphabetical by norm_name), which the matcher relies on for ties.
func (s *Store) ListProducts(ctx context.Context, tx pgx.Tx, catalogID int64) ([]models.Product, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, norm_name, family FROM products
		WHERE catalog_id = $1 ORDER BY norm_name ASC`, catalogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.NormName, &p.Family); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRouteNames returns the normalized route names of one catalog version
// as a set.
func (s *Store) ListRouteNames(ctx context.Context, tx pgx.Tx, catalogID int64) (map[string]struct{}, error) {
	rows, err := tx.Query(ctx, `SELECT norm_name FROM routes WHERE catalog_id = $1`, catalogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out[n] = struct{}{}
	}
	return out, rows.Err()
}
