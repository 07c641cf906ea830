package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/models"
	"github.com/comandas/backend/internal/routestate"
)

// RouteService owns the visual/logical state of route days. Every transition
// runs under the route day row lock; events publish after commit.
type RouteService struct {
	Store  *db.Store
	Bus    *events.Bus
	Logger zerolog.Logger
}

// RecomputeTx reevaluates one route day inside the caller's transaction and
// returns the events to publish once the caller commits.
func (r *RouteService) RecomputeTx(ctx context.Context, tx pgx.Tx, shiftID int64, routeNorm string) (routestate.Transition, []models.Event, error) {
	day, err := r.Store.GetRouteDayForUpdate(ctx, tx, shiftID, routeNorm)
	if errors.Is(err, db.ErrNotFound) {
		return routestate.Transition{}, nil, ErrRouteNotFound
	}
	if err != nil {
		return routestate.Transition{}, nil, err
	}

	unprinted, err := r.Store.CountUnprinted(ctx, tx, shiftID, routeNorm)
	if err != nil {
		return routestate.Transition{}, nil, err
	}

	tr := routestate.Compute(unprinted, day.VisualState, day.LogicalState)
	// New work on a COLLECTED route raises the alert and bumps the counter,
	// but the logical state only reverts through re-entry or the explicit
	// reactivation call.
	reacts := day.ReactivationsCount
	if tr.Reactivate {
		reacts++
	}
	if tr.Next != tr.Prior || tr.Reactivate {
		if err := r.Store.UpdateRouteDayState(ctx, tx, day.ID, tr.Next, day.LogicalState, reacts, time.Now().UTC()); err != nil {
			return tr, nil, err
		}
	}

	var evs []models.Event
	if tr.AlertRed {
		evs = append(evs, events.New(models.EvRouteAlertRed, "route", routeNorm, map[string]any{
			"shift_id": shiftID, "unprinted": unprinted, "prior": tr.Prior,
		}))
	}
	if tr.WentGreen {
		evs = append(evs, events.New(models.EvRouteGreen, "route", routeNorm, map[string]any{
			"shift_id": shiftID,
		}))
	}
	return tr, evs, nil
}

// MarkCollected flips the route's logical state to COLLECTED. Idempotent.
func (r *RouteService) MarkCollected(ctx context.Context, routeDayID int64, actor string) (models.RouteDay, error) {
	day0, err := r.Store.GetRouteDay(ctx, routeDayID)
	if errors.Is(err, db.ErrNotFound) {
		return models.RouteDay{}, ErrRouteNotFound
	}
	if err != nil {
		return models.RouteDay{}, err
	}

	var evs []models.Event
	err = r.Store.WithTx(ctx, func(tx pgx.Tx) error {
		evs = evs[:0]
		day, err := r.Store.GetRouteDayForUpdate(ctx, tx, day0.ShiftID, day0.RouteNorm)
		if err != nil {
			return err
		}
		if day.LogicalState == models.LogicalCollected {
			return nil
		}
		if err := r.Store.UpdateRouteDayState(ctx, tx, day.ID, day.VisualState, models.LogicalCollected,
			day.ReactivationsCount, time.Now().UTC()); err != nil {
			return err
		}
		evs = append(evs, withActor(events.New(models.EvRouteCollected, "route", day.RouteNorm, map[string]any{
			"shift_id": day.ShiftID, "route_day_id": day.ID,
		}), actor))
		return nil
	})
	if err != nil {
		return models.RouteDay{}, err
	}
	r.Bus.PublishAll(ctx, evs)
	return r.Store.GetRouteDay(ctx, routeDayID)
}

// Reactivate manually returns a COLLECTED route to ACTIVE and recomputes its
// color. Idempotent on an already ACTIVE route.
func (r *RouteService) Reactivate(ctx context.Context, routeDayID int64, actor string) (models.RouteDay, error) {
	day0, err := r.Store.GetRouteDay(ctx, routeDayID)
	if errors.Is(err, db.ErrNotFound) {
		return models.RouteDay{}, ErrRouteNotFound
	}
	if err != nil {
		return models.RouteDay{}, err
	}

	var evs []models.Event
	err = r.Store.WithTx(ctx, func(tx pgx.Tx) error {
		evs = evs[:0]
		day, err := r.Store.GetRouteDayForUpdate(ctx, tx, day0.ShiftID, day0.RouteNorm)
		if err != nil {
			return err
		}
		if day.LogicalState == models.LogicalActive {
			return nil
		}
		unprinted, err := r.Store.CountUnprinted(ctx, tx, day.ShiftID, day.RouteNorm)
		if err != nil {
			return err
		}
		visual := routestate.NextVisual(unprinted, day.VisualState, models.LogicalActive)
		if err := r.Store.UpdateRouteDayState(ctx, tx, day.ID, visual, models.LogicalActive,
			day.ReactivationsCount+1, time.Now().UTC()); err != nil {
			return err
		}
		evs = append(evs, withActor(events.New(models.EvRouteReactivated, "route", day.RouteNorm, map[string]any{
			"shift_id": day.ShiftID, "reactivations": day.ReactivationsCount + 1, "automatic": false,
		}), actor))
		return nil
	})
	if err != nil {
		return models.RouteDay{}, err
	}
	r.Bus.PublishAll(ctx, evs)
	return r.Store.GetRouteDay(ctx, routeDayID)
}

func withActor(e models.Event, actor string) models.Event {
	if actor != "" {
		e.ActorUser = &actor
	}
	return e
}
