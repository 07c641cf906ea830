package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/models"
)

// carryOver copies every unprinted line of the latest closed shift into the
// new one as fresh carried lotes. Operator bindings travel with the lines;
// print history does not.
func (s *ShiftService) carryOver(ctx context.Context, tx pgx.Tx, newShift models.Shift, sum *CarrySummary) ([]models.Event, error) {
	prev, err := s.Store.LatestClosedShift(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lotes, err := s.Store.LotesWithUnprinted(ctx, tx, prev.ID)
	if err != nil {
		return nil, err
	}

	var evs []models.Event
	routes := map[string]struct{}{}
	for _, src := range lotes {
		if src.RouteNorm == nil {
			continue
		}
		newLoteID, err := s.Store.InsertCarriedLote(ctx, tx, newShift.ID, src)
		if err != nil {
			return nil, err
		}

		clients, err := s.Store.ClientOrdersWithUnprinted(ctx, tx, src.ID)
		if err != nil {
			return nil, err
		}
		carried := 0
		for _, co := range clients {
			newCoID, err := s.Store.InsertClientOrder(ctx, tx, newLoteID, co.NameRaw, co.AffinityKey, co.Observations)
			if err != nil {
				return nil, err
			}
			lines, err := s.Store.UnprintedLinesOfClientOrder(ctx, tx, co.ID)
			if err != nil {
				return nil, err
			}
			for _, l := range lines {
				l.ClientOrderID = newCoID
				l.PrintedAt = nil
				l.PrintCount = 0
				if _, err := s.Store.InsertLine(ctx, tx, l); err != nil {
					return nil, err
				}
				carried++
			}
		}

		if _, err := s.Store.FindOrCreateRouteDay(ctx, tx, newShift.ID, *src.RouteNorm); err != nil {
			return nil, err
		}
		routes[*src.RouteNorm] = struct{}{}

		sum.Lotes++
		sum.Lines += carried
		evs = append(evs, events.New(models.EvLoteCarriedOver, "lote", fmt.Sprint(newLoteID), map[string]any{
			"from_lote_id": src.ID, "from_shift_id": prev.ID, "route": *src.RouteNorm, "lines": carried,
		}))
	}

	for route := range routes {
		_, revs, err := s.Routes.RecomputeTx(ctx, tx, newShift.ID, route)
		if err != nil {
			return nil, err
		}
		evs = append(evs, revs...)
	}
	sum.Routes = len(routes)
	return evs, nil
}
