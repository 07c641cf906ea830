package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/comandas/backend/internal/assign"
	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/matcher"
	"github.com/comandas/backend/internal/models"
	"github.com/comandas/backend/internal/normalizer"
	"github.com/comandas/backend/internal/parser"
)

const lineCurrency = "EUR"

// Processor turns a raw ingested lote into structured client orders with
// matched and assigned lines. The whole run is one transaction holding the
// lote row lock, so reprocessing and concurrent runs serialize.
type Processor struct {
	Store     *db.Store
	Bus       *events.Bus
	Assigner  *assign.Engine
	Routes    *RouteService
	Threshold int
	Logger    zerolog.Logger
}

// ProcessLote parses, matches and assigns one lote. A lote already in OK
// state is left untouched.
func (p *Processor) ProcessLote(ctx context.Context, loteID int64) (models.Lote, error) {
	return p.process(ctx, loteID, false)
}

// Reprocess reruns the pipeline for a lote that failed route or body parsing.
func (p *Processor) Reprocess(ctx context.Context, loteID int64, actor string) (models.Lote, error) {
	lote, err := p.Store.GetLote(ctx, loteID)
	if errors.Is(err, db.ErrNotFound) {
		return models.Lote{}, err
	}
	if err != nil {
		return models.Lote{}, err
	}
	switch lote.ParseStatus {
	case models.ParseErrorRoute, models.ParseErrorParse, models.ParsePending:
	default:
		return models.Lote{}, ErrLoteNotReprocessable
	}
	return p.process(ctx, loteID, true)
}

func (p *Processor) process(ctx context.Context, loteID int64, force bool) (models.Lote, error) {
	var evs []models.Event
	var semErr error
	err := p.Store.WithTx(ctx, func(tx pgx.Tx) error {
		evs = evs[:0]
		semErr = nil

		lote, err := p.Store.GetLoteForUpdate(ctx, tx, loteID)
		if err != nil {
			return err
		}
		if lote.ParseStatus == models.ParseOK && !force {
			return nil
		}

		// The active shift is re-queried in-transaction; a lote whose shift
		// is no longer the active one cannot be (re)processed.
		active, err := p.Store.GetActiveShiftTx(ctx, tx)
		if errors.Is(err, db.ErrNotFound) || (err == nil && active.ID != lote.ShiftID) {
			return p.failLote(ctx, tx, lote.ID, "no active shift", &evs, &semErr, ErrNoActiveShift)
		}
		if err != nil {
			return err
		}

		prodCat, err := p.Store.ActiveCatalogTx(ctx, tx, db.CatalogProducts)
		if errors.Is(err, db.ErrNotFound) {
			return p.failLote(ctx, tx, lote.ID, "no active products catalog", &evs, &semErr, ErrNoActiveCatalog)
		}
		if err != nil {
			return err
		}
		routeCat, err := p.Store.ActiveCatalogTx(ctx, tx, db.CatalogRoutes)
		if errors.Is(err, db.ErrNotFound) {
			return p.failLote(ctx, tx, lote.ID, "no active routes catalog", &evs, &semErr, ErrNoActiveCatalog)
		}
		if err != nil {
			return err
		}
		if err := p.Store.BindLoteCatalogs(ctx, tx, lote.ID, prodCat.ID, routeCat.ID); err != nil {
			return err
		}

		routes, err := p.Store.ListRouteNames(ctx, tx, routeCat.ID)
		if err != nil {
			return err
		}
		routeKey, ok := parser.ParseSubject(lote.SubjectRaw, routes)
		if !ok {
			msg := fmt.Sprintf("subject %q does not resolve to a route in catalog %s", lote.SubjectRaw, routeCat.Version)
			if err := p.Store.SetLoteStatusTx(ctx, tx, lote.ID, models.ParseErrorRoute, &msg); err != nil {
				return err
			}
			evs = append(evs, events.New(models.EvRouteParseError, "lote", fmt.Sprint(lote.ID), map[string]any{
				"subject": lote.SubjectRaw, "normalized": routeKey, "catalog": routeCat.Version,
			}))
			return nil
		}
		if err := p.Store.SetLoteRoute(ctx, tx, lote.ID, routeKey); err != nil {
			return err
		}

		body := parser.ParseBody(lote.BodyRaw)
		if !body.OK() {
			msg := issuesText(body.Issues)
			if err := p.Store.SetLoteStatusTx(ctx, tx, lote.ID, models.ParseErrorParse, &msg); err != nil {
				return err
			}
			evs = append(evs, events.New(models.EvBodyParseError, "lote", fmt.Sprint(lote.ID), map[string]any{
				"route": routeKey, "issues": body.Issues,
			}))
			return nil
		}

		// Reprocessing rebuilds children from scratch.
		if err := p.Store.DeleteLoteChildren(ctx, tx, lote.ID); err != nil {
			return err
		}

		catalog, err := p.Store.ListProducts(ctx, tx, prodCat.ID)
		if err != nil {
			return err
		}
		if _, err := p.Store.FindOrCreateRouteDay(ctx, tx, lote.ShiftID, routeKey); err != nil {
			return err
		}

		now := time.Now().UTC()
		totalLines := 0
		for _, client := range body.Clients {
			var obs *string
			if client.Observations != "" {
				o := client.Observations
				obs = &o
			}
			affinityKey := normalizer.Norm(client.Name)
			coID, err := p.Store.InsertClientOrder(ctx, tx, lote.ID, client.Name, affinityKey, obs)
			if err != nil {
				return err
			}

			for i, pl := range client.Lines {
				res := matcher.Match(pl.ProductRaw, catalog, p.Threshold)
				family := models.FamilyOthers
				var method *string
				var score *float64
				var opID *string
				var assignedAt *time.Time
				if res.Matched {
					family = res.Product.Family
					m, sc := res.Method, res.Score
					method, score = &m, &sc
					if res.Method == models.MatchFuzzy {
						evs = append(evs, events.New(models.EvProductFuzzy, "lote", fmt.Sprint(lote.ID), map[string]any{
							"product_raw": pl.ProductRaw, "matched": res.Product.NormName, "score": res.Score,
						}))
					}
					// Only matched lines are assigned; NO_MATCH lines stay
					// unowned in the catch-all family.
					a, err := p.Assigner.Assign(ctx, tx, lote.ShiftID, affinityKey, family)
					if err != nil {
						return err
					}
					if a.Reason == assign.ReasonNoPool {
						evs = append(evs, events.New(models.EvEmptyPool, "shift", fmt.Sprint(lote.ShiftID), map[string]any{
							"functional_code": family, "lote_id": lote.ID, "product_raw": pl.ProductRaw,
						}))
					} else {
						op := a.OperatorID
						opID, assignedAt = &op, &now
					}
				} else {
					evs = append(evs, events.New(models.EvProductNotFound, "lote", fmt.Sprint(lote.ID), map[string]any{
						"product_raw": pl.ProductRaw, "family": models.FamilyOthers,
					}))
				}

				price := pl.Price
				line := models.Line{
					ClientOrderID: coID,
					SeqInClient:   i + 1,
					Quantity:      pl.Quantity,
					UnitRaw:       pl.UnitRaw,
					ProductRaw:    pl.ProductRaw,
					ProductNorm:   normalizer.Norm(pl.ProductRaw),
					Price:         &price,
					Currency:      lineCurrency,
					MatchMethod:   method,
					MatchScore:    score,
					Family:        family,
					OperatorID:    opID,
					AssignedAt:    assignedAt,
				}
				if _, err := p.Store.InsertLine(ctx, tx, line); err != nil {
					return err
				}
				totalLines++
			}
		}

		if err := p.Store.SetLoteStatusTx(ctx, tx, lote.ID, models.ParseOK, nil); err != nil {
			return err
		}

		_, revs, err := p.Routes.RecomputeTx(ctx, tx, lote.ShiftID, routeKey)
		if err != nil {
			return err
		}
		evs = append(evs, revs...)
		evs = append(evs, events.New(models.EvLoteProcessed, "lote", fmt.Sprint(lote.ID), map[string]any{
			"route": routeKey, "clients": len(body.Clients), "lines": totalLines,
		}))
		return nil
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Lote{}, err
		}
		// The rollback undid everything; the error still has to land on the
		// lote so it is visible outside the event log.
		p.Logger.Error().Err(err).Int64("lote_id", loteID).Msg("lote processing failed")
		msg := err.Error()
		if serr := p.Store.SetLoteStatus(ctx, loteID, models.ParseErrorParse, &msg); serr != nil {
			p.Logger.Error().Err(serr).Int64("lote_id", loteID).Msg("lote error status not recorded")
		}
		p.Bus.Publish(ctx, events.New(models.EvLoteProcessError, "lote", fmt.Sprint(loteID), map[string]any{
			"error": err.Error(),
		}))
		return models.Lote{}, err
	}
	p.Bus.PublishAll(ctx, evs)
	lote, err := p.Store.GetLote(ctx, loteID)
	if err != nil {
		return models.Lote{}, err
	}
	return lote, semErr
}

// failLote commits the lote as ERROR_PARSE with a human-readable reason and
// arranges for the matching sentinel to surface to the caller.
func (p *Processor) failLote(ctx context.Context, tx pgx.Tx, loteID int64, reason string, evs *[]models.Event, semErr *error, sentinel error) error {
	msg := reason
	if err := p.Store.SetLoteStatusTx(ctx, tx, loteID, models.ParseErrorParse, &msg); err != nil {
		return err
	}
	*evs = append(*evs, events.New(models.EvLoteProcessError, "lote", fmt.Sprint(loteID), map[string]any{
		"error": reason,
	}))
	*semErr = sentinel
	return nil
}

func issuesText(issues []parser.Issue) string {
	parts := make([]string, 0, len(issues))
	for _, i := range issues {
		if i.LineNo > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s (line %d)", i.Level, i.Message, i.LineNo))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", i.Level, i.Message))
		}
	}
	if len(parts) == 0 {
		return "body yielded no clients"
	}
	return strings.Join(parts, "; ")
}
