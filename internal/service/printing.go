package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/models"
	"github.com/comandas/backend/internal/pdf"
	"github.com/comandas/backend/internal/routestate"
)

// PrintService runs the three print flows (operator initial, operator new,
// collector new) plus reprints. The PDF is rendered before the stamping and
// cursor writes commit: a render failure rolls everything back and leaves
// only a FAILED job row behind.
type PrintService struct {
	Store    *db.Store
	Bus      *events.Bus
	Routes   *RouteService
	Renderer pdf.Renderer
	Files    pdf.FileStore
	Logger   zerolog.Logger
}

// EnterRoute registers an operator on a route for the active shift and
// snapshots the cutoff lote. Re-entering never moves the cutoff, but it does
// return a COLLECTED route to ACTIVE.
func (s *PrintService) EnterRoute(ctx context.Context, operatorID, routeNorm, actor string) (models.OperatorRouteProgress, bool, error) {
	shift, err := s.activeShift(ctx)
	if err != nil {
		return models.OperatorRouteProgress{}, false, err
	}

	var prog models.OperatorRouteProgress
	var created bool
	var evs []models.Event
	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		evs = evs[:0]
		routeCat, err := s.Store.ActiveCatalogTx(ctx, tx, db.CatalogRoutes)
		if errors.Is(err, db.ErrNotFound) {
			return ErrNoActiveCatalog
		}
		if err != nil {
			return err
		}
		routes, err := s.Store.ListRouteNames(ctx, tx, routeCat.ID)
		if err != nil {
			return err
		}
		if _, ok := routes[routeNorm]; !ok {
			return ErrRouteNotFound
		}
		day, err := s.Store.FindOrCreateRouteDay(ctx, tx, shift.ID, routeNorm)
		if err != nil {
			return err
		}
		if day.LogicalState == models.LogicalCollected {
			unprinted, err := s.Store.CountUnprinted(ctx, tx, shift.ID, routeNorm)
			if err != nil {
				return err
			}
			visual := routestate.NextVisual(unprinted, day.VisualState, models.LogicalActive)
			if err := s.Store.UpdateRouteDayState(ctx, tx, day.ID, visual, models.LogicalActive,
				day.ReactivationsCount+1, time.Now().UTC()); err != nil {
				return err
			}
			evs = append(evs, withActor(events.New(models.EvRouteReactivated, "route", routeNorm, map[string]any{
				"shift_id": shift.ID, "reactivations": day.ReactivationsCount + 1, "operator_id": operatorID,
			}), actor))
		}

		var cutoff *int64
		latest, err := s.Store.LatestOKLoteID(ctx, tx, shift.ID, routeNorm)
		if err == nil {
			cutoff = &latest
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}

		prog, created, err = s.Store.EnterOperatorRoute(ctx, tx, shift.ID, operatorID, routeNorm, cutoff, time.Now().UTC())
		return err
	})
	if err != nil {
		return models.OperatorRouteProgress{}, false, err
	}

	if created {
		evs = append(evs, withActor(events.New(models.EvOperatorEntered, "route", routeNorm, map[string]any{
			"shift_id": shift.ID, "operator_id": operatorID, "cutoff_lote_id": prog.CutoffLoteID,
		}), actor))
	}
	s.Bus.PublishAll(ctx, evs)
	return prog, created, nil
}

// PrintOperatorInitial emits the operator's one-time snapshot: every line of
// theirs up to the cutoff recorded on entry.
func (s *PrintService) PrintOperatorInitial(ctx context.Context, operatorID, routeNorm, actor string) (models.PrintJob, int, error) {
	shift, err := s.activeShift(ctx)
	if err != nil {
		return models.PrintJob{}, 0, err
	}

	var job models.PrintJob
	var lines []db.PrintLine
	var evs []models.Event
	var latency int64
	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		evs = evs[:0]
		prog, err := s.Store.GetOperatorProgress(ctx, tx, shift.ID, operatorID, routeNorm)
		if errors.Is(err, db.ErrNotFound) {
			return ErrNoEnter
		}
		if err != nil {
			return err
		}
		if prog.LastPrintedLoteID != nil || prog.CutoffLoteID == nil {
			return ErrNothingToPrint
		}

		lines, err = s.Store.SelectOperatorInitial(ctx, tx, shift.ID, routeNorm, operatorID, *prog.CutoffLoteID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrNothingToPrint
		}

		job = s.newJob(shift.ID, routeNorm, models.PrintOperatorInitial, actor)
		job.CutoffLoteID = prog.CutoffLoteID
		from, to := lines[0].LoteID, lines[len(lines)-1].LoteID
		job.FromLoteID, job.ToLoteID = &from, &to

		latency, err = s.render(ctx, &job, lines, shift, &operatorID)
		if err != nil {
			return err
		}
		if err := s.commitJob(ctx, tx, job, lines, true); err != nil {
			return err
		}
		if err := s.Store.AdvanceOperatorPrinted(ctx, tx, shift.ID, operatorID, routeNorm, *prog.CutoffLoteID, job.CreatedAt); err != nil {
			return err
		}

		_, revs, err := s.Routes.RecomputeTx(ctx, tx, shift.ID, routeNorm)
		if err != nil {
			return err
		}
		evs = append(evs, revs...)
		return nil
	})
	if err != nil {
		return models.PrintJob{}, 0, s.recordFailure(ctx, job, err)
	}

	s.publishJob(ctx, job, len(lines), latency, &operatorID, evs)
	return job, len(lines), nil
}

// PrintOperatorNew emits the operator's lines that arrived after their last
// print. The initial snapshot must be consumed first when one exists.
func (s *PrintService) PrintOperatorNew(ctx context.Context, operatorID, routeNorm, actor string) (models.PrintJob, int, error) {
	shift, err := s.activeShift(ctx)
	if err != nil {
		return models.PrintJob{}, 0, err
	}

	var job models.PrintJob
	var lines []db.PrintLine
	var evs []models.Event
	var latency int64
	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		evs = evs[:0]
		prog, err := s.Store.GetOperatorProgress(ctx, tx, shift.ID, operatorID, routeNorm)
		if errors.Is(err, db.ErrNotFound) {
			return ErrNoEnter
		}
		if err != nil {
			return err
		}
		if prog.LastPrintedLoteID == nil && prog.CutoffLoteID != nil {
			return ErrNoInitial
		}

		lines, err = s.Store.SelectOperatorNew(ctx, tx, shift.ID, routeNorm, operatorID, prog.LastPrintedLoteID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrNothingToPrint
		}

		job = s.newJob(shift.ID, routeNorm, models.PrintOperatorNew, actor)
		from, to := lines[0].LoteID, lines[len(lines)-1].LoteID
		job.FromLoteID, job.ToLoteID = &from, &to

		latency, err = s.render(ctx, &job, lines, shift, &operatorID)
		if err != nil {
			return err
		}
		if err := s.commitJob(ctx, tx, job, lines, true); err != nil {
			return err
		}
		if err := s.Store.AdvanceOperatorPrinted(ctx, tx, shift.ID, operatorID, routeNorm, to, job.CreatedAt); err != nil {
			return err
		}

		_, revs, err := s.Routes.RecomputeTx(ctx, tx, shift.ID, routeNorm)
		if err != nil {
			return err
		}
		evs = append(evs, revs...)
		return nil
	})
	if err != nil {
		return models.PrintJob{}, 0, s.recordFailure(ctx, job, err)
	}

	s.publishJob(ctx, job, len(lines), latency, &operatorID, evs)
	return job, len(lines), nil
}

// PrintCollectorNew emits the route's full delta since the last collector
// closure, across all operators. The lines are stamped like any other print
// and the route state is recomputed.
func (s *PrintService) PrintCollectorNew(ctx context.Context, routeNorm, actor string) (models.PrintJob, int, error) {
	shift, err := s.activeShift(ctx)
	if err != nil {
		return models.PrintJob{}, 0, err
	}

	var job models.PrintJob
	var lines []db.PrintLine
	var evs []models.Event
	var latency int64
	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		evs = evs[:0]
		if _, err := s.Store.GetRouteDayForUpdate(ctx, tx, shift.ID, routeNorm); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ErrRouteNotFound
			}
			return err
		}

		var after *int64
		prog, err := s.Store.GetCollectorProgress(ctx, tx, shift.ID, routeNorm)
		if err == nil {
			after = prog.LastClosedLoteID
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}

		lines, err = s.Store.SelectCollectorNew(ctx, tx, shift.ID, routeNorm, after)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrNothingToPrint
		}

		job = s.newJob(shift.ID, routeNorm, models.PrintCollectorNew, actor)
		job.CutoffLoteID = after
		from, to := lines[0].LoteID, lines[len(lines)-1].LoteID
		job.FromLoteID, job.ToLoteID = &from, &to

		latency, err = s.render(ctx, &job, lines, shift, nil)
		if err != nil {
			return err
		}
		if err := s.commitJob(ctx, tx, job, lines, true); err != nil {
			return err
		}
		if err := s.Store.AdvanceCollectorClosed(ctx, tx, shift.ID, routeNorm, to, job.CreatedAt); err != nil {
			return err
		}

		_, revs, err := s.Routes.RecomputeTx(ctx, tx, shift.ID, routeNorm)
		if err != nil {
			return err
		}
		evs = append(evs, revs...)
		return nil
	})
	if err != nil {
		return models.PrintJob{}, 0, s.recordFailure(ctx, job, err)
	}

	s.publishJob(ctx, job, len(lines), latency, nil, evs)
	return job, len(lines), nil
}

// Reprint re-emits an existing job's exact line set under a new job. Cursors
// and printed_at never move; only print_count does.
func (s *PrintService) Reprint(ctx context.Context, jobID, actor string) (models.PrintJob, int, error) {
	src, err := s.Store.GetPrintJob(ctx, jobID)
	if err != nil {
		return models.PrintJob{}, 0, err
	}
	shift, err := s.Store.GetShift(ctx, src.ShiftID)
	if err != nil {
		return models.PrintJob{}, 0, err
	}

	var job models.PrintJob
	var lines []db.PrintLine
	var latency int64
	var op *string
	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		lines, err = s.Store.JobPrintLines(ctx, tx, src.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrNothingToPrint
		}

		job = s.newJob(src.ShiftID, src.RouteNorm, models.PrintReprint, actor)
		job.CutoffLoteID = src.CutoffLoteID
		job.FromLoteID, job.ToLoteID = src.FromLoteID, src.ToLoteID

		if lines[0].OperatorID != nil && src.Kind != models.PrintCollectorNew {
			op = lines[0].OperatorID
		}
		latency, err = s.render(ctx, &job, lines, shift, op)
		if err != nil {
			return err
		}
		return s.commitJob(ctx, tx, job, lines, false)
	})
	if err != nil {
		return models.PrintJob{}, 0, s.recordFailure(ctx, job, err)
	}

	s.publishJob(ctx, job, len(lines), latency, op, nil)
	return job, len(lines), nil
}

func (s *PrintService) ListJobs(ctx context.Context, shiftID int64, routeNorm string, limit, offset int) ([]models.PrintJob, error) {
	return s.Store.ListPrintJobs(ctx, shiftID, routeNorm, limit, offset)
}

// PDFURL resolves a job's stored reference to its public URL.
func (s *PrintService) PDFURL(job models.PrintJob) string {
	if job.PDFRef == nil {
		return ""
	}
	return s.Files.PublicURL(*job.PDFRef)
}

func (s *PrintService) activeShift(ctx context.Context) (models.Shift, error) {
	shift, err := s.Store.GetActiveShift(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return models.Shift{}, ErrNoActiveShift
	}
	return shift, err
}

func (s *PrintService) newJob(shiftID int64, routeNorm, kind, actor string) models.PrintJob {
	job := models.PrintJob{
		ID:        uuid.NewString(),
		ShiftID:   shiftID,
		RouteNorm: routeNorm,
		Kind:      kind,
		Status:    models.JobCreated,
		CreatedAt: time.Now().UTC(),
	}
	if actor != "" {
		job.ActorUser = &actor
	}
	return job
}

// render produces and stores the job's PDF before any stamping write commits.
// A failure here wraps ErrPDFRender so the transaction rolls back whole.
func (s *PrintService) render(ctx context.Context, job *models.PrintJob, lines []db.PrintLine, shift models.Shift, operatorID *string) (int64, error) {
	doc := buildComanda(*job, lines, shift, operatorID)
	data, latency, err := s.Renderer.RenderComanda(ctx, doc)
	if err != nil {
		return latency, fmt.Errorf("%w: %v", ErrPDFRender, err)
	}
	ref, err := s.Files.Save(job.ID, data)
	if err != nil {
		return latency, fmt.Errorf("%w: %v", ErrPDFRender, err)
	}
	job.Status = models.JobPDFReady
	job.PDFRef = &ref
	return latency, nil
}

// commitJob writes the job row and its line set; stamp distinguishes first
// prints (printed_at set once, count incremented) from reprints (count only).
func (s *PrintService) commitJob(ctx context.Context, tx pgx.Tx, job models.PrintJob, lines []db.PrintLine, stamp bool) error {
	if err := s.Store.InsertPrintJob(ctx, tx, job); err != nil {
		return err
	}
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	if err := s.Store.InsertPrintJobItems(ctx, tx, job.ID, ids); err != nil {
		return err
	}
	if stamp {
		return s.Store.StampLines(ctx, tx, ids, job.CreatedAt)
	}
	return s.Store.BumpPrintCount(ctx, tx, ids)
}

// recordFailure leaves a FAILED job row behind when the render failed after
// the job was already shaped; the rolled-back transaction stamped nothing and
// moved no cursor.
func (s *PrintService) recordFailure(ctx context.Context, job models.PrintJob, err error) error {
	if !errors.Is(err, ErrPDFRender) || job.ID == "" {
		return err
	}
	s.Logger.Error().Err(err).Str("job_id", job.ID).Msg("pdf render failed")
	failed := job
	failed.Status = models.JobFailed
	msg := err.Error()
	failed.ErrorText = &msg
	if ierr := s.Store.InsertFailedPrintJob(ctx, failed); ierr != nil {
		s.Logger.Error().Err(ierr).Str("job_id", job.ID).Msg("failed print job not recorded")
	}
	return err
}

// publishJob emits PRINT_EMITTED plus whatever the route recompute produced.
func (s *PrintService) publishJob(ctx context.Context, job models.PrintJob, lineCount int, latency int64, operatorID *string, pending []models.Event) {
	payload := map[string]any{
		"kind": job.Kind, "route": job.RouteNorm, "lines": lineCount,
		"status": job.Status, "render_ms": latency,
	}
	if job.PDFRef != nil {
		payload["pdf_url"] = s.Files.PublicURL(*job.PDFRef)
	}
	if operatorID != nil {
		payload["operator_id"] = *operatorID
	}
	ev := events.New(models.EvPrintEmitted, "print_job", job.ID, payload)
	ev.ActorUser = job.ActorUser
	s.Bus.Publish(ctx, ev)
	s.Bus.PublishAll(ctx, pending)
}

func buildComanda(job models.PrintJob, lines []db.PrintLine, shift models.Shift, operatorID *string) pdf.Comanda {
	doc := pdf.Comanda{
		JobID:       job.ID,
		Kind:        job.Kind,
		RouteName:   job.RouteNorm,
		ShiftDate:   shift.Date.Format("2006-01-02"),
		ShiftSlot:   shift.Slot,
		GeneratedAt: job.CreatedAt,
	}
	if operatorID != nil {
		doc.OperatorID = *operatorID
	}

	var cur *pdf.ClientBlock
	lastOrder := int64(-1)
	for _, l := range lines {
		if l.ClientOrderID != lastOrder {
			doc.Clients = append(doc.Clients, pdf.ClientBlock{Name: l.ClientName})
			cur = &doc.Clients[len(doc.Clients)-1]
			if l.Observations != nil {
				cur.Observations = *l.Observations
			}
			lastOrder = l.ClientOrderID
		}
		line := pdf.Line{
			Quantity: l.Quantity.String(),
			Unit:     l.UnitRaw,
			Product:  l.ProductRaw,
		}
		if l.Price != nil {
			line.Price = fmt.Sprintf("%s %s", l.Price.String(), l.Currency)
		}
		cur.Lines = append(cur.Lines, line)
	}
	return doc
}
