package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/comandas/backend/internal/assign"
	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/models"
	"github.com/comandas/backend/internal/pdf"
)

type testEnv struct {
	ctx      context.Context
	store    *db.Store
	bus      *events.Bus
	shifts   *ShiftService
	routes   *RouteService
	printing *PrintService
	proc     *Processor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := db.New(ctx, url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	t.Cleanup(store.Close)

	if _, err := store.Pool.Exec(ctx, "DROP SCHEMA public CASCADE; CREATE SCHEMA public",
		pgx.QueryExecModeSimpleProtocol); err != nil {
		t.Fatalf("schema reset: %v", err)
	}
	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := store.Pool.Exec(ctx, string(schema), pgx.QueryExecModeSimpleProtocol); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	log := zerolog.Nop()
	bus := events.NewBus(store, log)
	routes := &RouteService{Store: store, Bus: bus, Logger: log}
	proc := &Processor{
		Store: store, Bus: bus, Assigner: assign.NewEngine(store),
		Routes: routes, Threshold: 80, Logger: log,
	}
	shifts := &ShiftService{Store: store, Bus: bus, Routes: routes, Logger: log}
	printing := &PrintService{
		Store: store, Bus: bus, Routes: routes,
		Renderer: pdf.MockRenderer{}, Files: pdf.FileStore{Dir: t.TempDir(), BaseURL: "/pdfs"},
		Logger: log,
	}
	return &testEnv{ctx: ctx, store: store, bus: bus, shifts: shifts, routes: routes, printing: printing, proc: proc}
}

func (env *testEnv) openShift(t *testing.T, date time.Time, slot string) models.Shift {
	t.Helper()
	shift, _, err := env.shifts.Open(env.ctx, date, slot, "test")
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}
	return shift
}

func (env *testEnv) seedCatalogs(t *testing.T) {
	t.Helper()
	products := []models.Product{
		{NormName: "PAN", Family: 1},
		{NormName: "LECHE", Family: 1},
		{NormName: "CAFE", Family: 2},
	}
	if _, err := env.store.InsertProductsCatalog(env.ctx, "v1", products); err != nil {
		t.Fatalf("products catalog: %v", err)
	}
	if _, err := env.store.ActivateCatalog(env.ctx, db.CatalogProducts, "v1", time.Now().UTC()); err != nil {
		t.Fatalf("activate products: %v", err)
	}
	if _, err := env.store.InsertRoutesCatalog(env.ctx, "r1", []string{"RUTA NORTE", "RUTA SUR"}); err != nil {
		t.Fatalf("routes catalog: %v", err)
	}
	if _, err := env.store.ActivateCatalog(env.ctx, db.CatalogRoutes, "r1", time.Now().UTC()); err != nil {
		t.Fatalf("activate routes: %v", err)
	}
}

func (env *testEnv) setPool(t *testing.T, shiftID int64, code int, operators ...string) {
	t.Helper()
	quals := make([]models.Qualification, 0, len(operators))
	for _, op := range operators {
		quals = append(quals, models.Qualification{ShiftID: shiftID, OperatorID: op, FunctionalCode: code, Enabled: true})
	}
	if err := env.store.ReplaceQualifications(env.ctx, shiftID, quals); err != nil {
		t.Fatalf("qualifications: %v", err)
	}
}

func (env *testEnv) ingest(t *testing.T, shiftID, uid int64, subject, body string) models.Lote {
	t.Helper()
	lote, inserted, err := env.store.InsertLoteFromIMAP(env.ctx, shiftID, 1, uid, time.Now().UTC(),
		subject, body, models.ParsePending, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !inserted {
		t.Fatalf("uid %d already ingested", uid)
	}
	return lote
}

func (env *testEnv) routeDay(t *testing.T, shiftID int64, route string) models.RouteDay {
	t.Helper()
	var day models.RouteDay
	err := env.store.WithTx(env.ctx, func(tx pgx.Tx) error {
		var err error
		day, err = env.store.GetRouteDayForUpdate(env.ctx, tx, shiftID, route)
		return err
	})
	if err != nil {
		t.Fatalf("route day: %v", err)
	}
	return day
}

func (env *testEnv) unprinted(t *testing.T, shiftID int64, route string) int {
	t.Helper()
	var n int
	err := env.store.WithTx(env.ctx, func(tx pgx.Tx) error {
		var err error
		n, err = env.store.CountUnprinted(env.ctx, tx, shiftID, route)
		return err
	})
	if err != nil {
		t.Fatalf("count unprinted: %v", err)
	}
	return n
}

// loteLines flattens a lote's lines in client order.
func (env *testEnv) loteLines(t *testing.T, loteID int64) []models.Line {
	t.Helper()
	orders, err := env.store.ListClientOrders(env.ctx, loteID)
	if err != nil {
		t.Fatalf("client orders: %v", err)
	}
	var out []models.Line
	for _, co := range orders {
		lines, err := env.store.ListLinesByClientOrder(env.ctx, co.ID)
		if err != nil {
			t.Fatalf("lines: %v", err)
		}
		out = append(out, lines...)
	}
	return out
}

const norteBody = "Cliente: Bar Pepe\n2 uds - Pan - 1.50\n1 uds - Leche - 1.10\n\nCliente: Casa Ana\n3 uds - Pan - 1.50\n"

func TestLoteIngestAssignsMatchedLinesOnly(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	env.seedCatalogs(t)
	env.setPool(t, shift.ID, 1, "ana", "bea")

	body := norteBody + "\nCliente: Bar Luis\n1 uds - Xyzzy - 2.00\n"
	lote := env.ingest(t, shift.ID, 1, "Ruta Norte", body)
	got, err := env.proc.ProcessLote(env.ctx, lote.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got.ParseStatus != models.ParseOK || got.RouteNorm == nil || *got.RouteNorm != "RUTA NORTE" {
		t.Fatalf("lote after processing: %+v", got)
	}

	lines := env.loteLines(t, lote.ID)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	for _, l := range lines[:3] {
		if l.Family != 1 || l.OperatorID == nil || l.MatchMethod == nil || *l.MatchMethod != models.MatchExact {
			t.Fatalf("matched line not assigned: %+v", l)
		}
	}
	unmatched := lines[3]
	if unmatched.ProductRaw != "Xyzzy" || unmatched.Family != models.FamilyOthers {
		t.Fatalf("unmatched line family: %+v", unmatched)
	}
	if unmatched.OperatorID != nil || unmatched.AssignedAt != nil {
		t.Fatalf("unmatched line must stay unowned: %+v", unmatched)
	}

	evs, err := env.store.ListEvents(env.ctx, models.EvProductNotFound, "", "", 10, 0)
	if err != nil || len(evs) != 1 {
		t.Fatalf("PRODUCT_NOT_FOUND events: %d err=%v", len(evs), err)
	}
}

func TestDuplicateUIDIngestsOnce(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	env.seedCatalogs(t)

	env.ingest(t, shift.ID, 7, "Ruta Norte", norteBody)
	_, inserted, err := env.store.InsertLoteFromIMAP(env.ctx, shift.ID, 1, 7, time.Now().UTC(),
		"Ruta Norte", norteBody, models.ParsePending, nil)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatalf("same (uidvalidity, uid) must not produce a second lote")
	}

	lotes, err := env.store.ListLotes(env.ctx, shift.ID, "", 50, 0)
	if err != nil {
		t.Fatalf("list lotes: %v", err)
	}
	if len(lotes) != 1 {
		t.Fatalf("expected 1 lote, got %d", len(lotes))
	}
}

func TestUnreadableBodyLoteIsQueryable(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)

	reason := "message has no body section"
	lote, inserted, err := env.store.InsertLoteFromIMAP(env.ctx, shift.ID, 1, 9, time.Now().UTC(),
		"Ruta Norte", "", models.ParseErrorParse, &reason)
	if err != nil || !inserted {
		t.Fatalf("insert: inserted=%v err=%v", inserted, err)
	}
	if lote.ParseStatus != models.ParseErrorParse || lote.ParseError == nil || *lote.ParseError != reason {
		t.Fatalf("error not recorded: %+v", lote)
	}

	lotes, err := env.store.ListLotes(env.ctx, shift.ID, models.ParseErrorParse, 50, 0)
	if err != nil || len(lotes) != 1 {
		t.Fatalf("ERROR_PARSE lotes: %d err=%v", len(lotes), err)
	}
}

func TestAffinityHoldsAcrossLotes(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	env.seedCatalogs(t)
	env.setPool(t, shift.ID, 1, "ana", "bea")

	lote1 := env.ingest(t, shift.ID, 1, "Ruta Norte",
		"Cliente: Bar Pepe\n2 uds - Pan - 1.50\n\nCliente: Casa Ana\n1 uds - Pan - 1.50\n")
	if _, err := env.proc.ProcessLote(env.ctx, lote1.ID); err != nil {
		t.Fatalf("process lote1: %v", err)
	}
	lines1 := env.loteLines(t, lote1.ID)
	if *lines1[0].OperatorID != "ana" || *lines1[1].OperatorID != "bea" {
		t.Fatalf("round-robin order: %q, %q", *lines1[0].OperatorID, *lines1[1].OperatorID)
	}

	lote2 := env.ingest(t, shift.ID, 2, "Ruta Norte", "Cliente: Bar Pepe\n1 uds - Leche - 1.10\n")
	if _, err := env.proc.ProcessLote(env.ctx, lote2.ID); err != nil {
		t.Fatalf("process lote2: %v", err)
	}
	lines2 := env.loteLines(t, lote2.ID)
	if *lines2[0].OperatorID != "ana" {
		t.Fatalf("returning client must keep its operator, got %q", *lines2[0].OperatorID)
	}
}

func TestOperatorPrintFlowAndRouteColors(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	env.seedCatalogs(t)
	env.setPool(t, shift.ID, 1, "ana")

	lote1 := env.ingest(t, shift.ID, 1, "Ruta Norte", norteBody)
	if _, err := env.proc.ProcessLote(env.ctx, lote1.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if day := env.routeDay(t, shift.ID, "RUTA NORTE"); day.VisualState != models.VisualBlue {
		t.Fatalf("fresh route with work stays BLUE, got %s", day.VisualState)
	}

	prog, entered, err := env.printing.EnterRoute(env.ctx, "ana", "RUTA NORTE", "ana")
	if err != nil || !entered {
		t.Fatalf("enter: entered=%v err=%v", entered, err)
	}
	if prog.CutoffLoteID == nil || *prog.CutoffLoteID != lote1.ID {
		t.Fatalf("cutoff: %+v", prog)
	}

	job, n, err := env.printing.PrintOperatorInitial(env.ctx, "ana", "RUTA NORTE", "ana")
	if err != nil {
		t.Fatalf("initial print: %v", err)
	}
	if n != 3 || job.Status != models.JobPDFReady || job.PDFRef == nil {
		t.Fatalf("initial job: n=%d %+v", n, job)
	}
	if env.printing.PDFURL(job) == "" {
		t.Fatalf("job must resolve to a pdf url")
	}
	if got := env.unprinted(t, shift.ID, "RUTA NORTE"); got != 0 {
		t.Fatalf("initial print must stamp everything, %d left", got)
	}
	if day := env.routeDay(t, shift.ID, "RUTA NORTE"); day.VisualState != models.VisualGreen {
		t.Fatalf("expected GREEN, got %s", day.VisualState)
	}

	// A second initial is a conflict; new work arrives instead.
	if _, _, err := env.printing.PrintOperatorInitial(env.ctx, "ana", "RUTA NORTE", "ana"); !errors.Is(err, ErrNothingToPrint) {
		t.Fatalf("repeat initial: %v", err)
	}
	lote2 := env.ingest(t, shift.ID, 2, "Ruta Norte", "Cliente: Bar Pepe\n1 uds - Pan - 1.50\n")
	if _, err := env.proc.ProcessLote(env.ctx, lote2.ID); err != nil {
		t.Fatalf("process lote2: %v", err)
	}
	day := env.routeDay(t, shift.ID, "RUTA NORTE")
	if day.VisualState != models.VisualRed || day.LogicalState != models.LogicalActive {
		t.Fatalf("new work on GREEN: %+v", day)
	}

	if _, n, err = env.printing.PrintOperatorNew(env.ctx, "ana", "RUTA NORTE", "ana"); err != nil || n != 1 {
		t.Fatalf("print-new: n=%d err=%v", n, err)
	}
	if day := env.routeDay(t, shift.ID, "RUTA NORTE"); day.VisualState != models.VisualGreen {
		t.Fatalf("expected GREEN after print-new, got %s", day.VisualState)
	}
}

func TestCollectorPrintStampsAndRecomputes(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	env.seedCatalogs(t)
	env.setPool(t, shift.ID, 1, "ana")

	lote := env.ingest(t, shift.ID, 1, "Ruta Norte", norteBody)
	if _, err := env.proc.ProcessLote(env.ctx, lote.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	job, n, err := env.printing.PrintCollectorNew(env.ctx, "RUTA NORTE", "collector")
	if err != nil || n != 3 {
		t.Fatalf("collector print: n=%d err=%v", n, err)
	}
	for _, l := range env.loteLines(t, lote.ID) {
		if l.PrintedAt == nil || l.PrintCount != 1 {
			t.Fatalf("collector print must stamp: %+v", l)
		}
	}
	if got := env.unprinted(t, shift.ID, "RUTA NORTE"); got != 0 {
		t.Fatalf("%d lines still unprinted", got)
	}
	if day := env.routeDay(t, shift.ID, "RUTA NORTE"); day.VisualState != models.VisualGreen {
		t.Fatalf("expected GREEN after collector print, got %s", day.VisualState)
	}

	// Reprints bump the counter without moving printed_at.
	stamped := env.loteLines(t, lote.ID)
	if _, _, err := env.printing.Reprint(env.ctx, job.ID, "collector"); err != nil {
		t.Fatalf("reprint: %v", err)
	}
	for i, l := range env.loteLines(t, lote.ID) {
		if l.PrintCount != 2 || !l.PrintedAt.Equal(*stamped[i].PrintedAt) {
			t.Fatalf("reprint moved the stamp: %+v", l)
		}
	}
}

type failingRenderer struct{}

func (failingRenderer) RenderComanda(context.Context, pdf.Comanda) ([]byte, int64, error) {
	return nil, 0, errors.New("render service unavailable")
}

func TestRenderFailureLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	env.seedCatalogs(t)
	env.setPool(t, shift.ID, 1, "ana")

	lote := env.ingest(t, shift.ID, 1, "Ruta Norte", norteBody)
	if _, err := env.proc.ProcessLote(env.ctx, lote.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, _, err := env.printing.EnterRoute(env.ctx, "ana", "RUTA NORTE", "ana"); err != nil {
		t.Fatalf("enter: %v", err)
	}

	env.printing.Renderer = failingRenderer{}
	_, _, err := env.printing.PrintOperatorInitial(env.ctx, "ana", "RUTA NORTE", "ana")
	if !errors.Is(err, ErrPDFRender) {
		t.Fatalf("expected render failure, got %v", err)
	}

	if got := env.unprinted(t, shift.ID, "RUTA NORTE"); got != 3 {
		t.Fatalf("failed print must stamp nothing, %d unprinted", got)
	}
	jobs, err := env.store.ListPrintJobs(env.ctx, shift.ID, "", 10, 0)
	if err != nil || len(jobs) != 1 || jobs[0].Status != models.JobFailed || jobs[0].ErrorText == nil {
		t.Fatalf("FAILED job row: %+v err=%v", jobs, err)
	}

	// The cursor did not advance: the retry prints the full snapshot.
	env.printing.Renderer = pdf.MockRenderer{}
	if _, n, err := env.printing.PrintOperatorInitial(env.ctx, "ana", "RUTA NORTE", "ana"); err != nil || n != 3 {
		t.Fatalf("retry after failure: n=%d err=%v", n, err)
	}
}

func TestCollectedRouteHoldsOnNewWork(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	env.seedCatalogs(t)
	env.setPool(t, shift.ID, 1, "ana")

	lote := env.ingest(t, shift.ID, 1, "Ruta Norte", norteBody)
	if _, err := env.proc.ProcessLote(env.ctx, lote.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, _, err := env.printing.EnterRoute(env.ctx, "ana", "RUTA NORTE", "ana"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if _, _, err := env.printing.PrintOperatorInitial(env.ctx, "ana", "RUTA NORTE", "ana"); err != nil {
		t.Fatalf("initial: %v", err)
	}
	day := env.routeDay(t, shift.ID, "RUTA NORTE")
	if _, err := env.routes.MarkCollected(env.ctx, day.ID, "collector"); err != nil {
		t.Fatalf("collect: %v", err)
	}

	lote2 := env.ingest(t, shift.ID, 2, "Ruta Norte", "Cliente: Bar Pepe\n1 uds - Pan - 1.50\n")
	if _, err := env.proc.ProcessLote(env.ctx, lote2.ID); err != nil {
		t.Fatalf("process lote2: %v", err)
	}
	day = env.routeDay(t, shift.ID, "RUTA NORTE")
	if day.LogicalState != models.LogicalCollected {
		t.Fatalf("new work must not revert COLLECTED, got %s", day.LogicalState)
	}
	if day.VisualState != models.VisualRed || day.ReactivationsCount != 1 {
		t.Fatalf("expected RED with one reactivation: %+v", day)
	}

	// Re-entering as operator is what returns the route to ACTIVE.
	if _, _, err := env.printing.EnterRoute(env.ctx, "ana", "RUTA NORTE", "ana"); err != nil {
		t.Fatalf("re-enter: %v", err)
	}
	day = env.routeDay(t, shift.ID, "RUTA NORTE")
	if day.LogicalState != models.LogicalActive || day.ReactivationsCount != 2 {
		t.Fatalf("re-entry must reactivate: %+v", day)
	}
}

func TestProcessAfterShiftCloseFailsTheLote(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	env.seedCatalogs(t)
	lote := env.ingest(t, shift.ID, 1, "Ruta Norte", norteBody)

	if _, err := env.shifts.Close(env.ctx, shift.ID+999, "test"); !errors.Is(err, ErrNoActiveShift) {
		t.Fatalf("closing a non-active id: %v", err)
	}
	if _, err := env.shifts.Close(env.ctx, shift.ID, "test"); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := env.proc.ProcessLote(env.ctx, lote.ID)
	if !errors.Is(err, ErrNoActiveShift) {
		t.Fatalf("expected no-active-shift, got %v", err)
	}
	if got.ParseStatus != models.ParseErrorParse || got.ParseError == nil {
		t.Fatalf("failure must land on the lote: %+v", got)
	}
}

func TestMissingCatalogFailsTheLote(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	lote := env.ingest(t, shift.ID, 1, "Ruta Norte", norteBody)

	got, err := env.proc.ProcessLote(env.ctx, lote.ID)
	if !errors.Is(err, ErrNoActiveCatalog) {
		t.Fatalf("expected no-active-catalog, got %v", err)
	}
	if got.ParseStatus != models.ParseErrorParse {
		t.Fatalf("failure must land on the lote: %+v", got)
	}
}

func TestEmptyPoolEventPerLine(t *testing.T) {
	env := newTestEnv(t)
	shift := env.openShift(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.SlotMorning)
	env.seedCatalogs(t)
	// No qualifications at all: every matched line hits an empty pool.

	lote := env.ingest(t, shift.ID, 1, "Ruta Norte", "Cliente: Bar Pepe\n2 uds - Pan - 1.50\n1 uds - Leche - 1.10\n")
	if _, err := env.proc.ProcessLote(env.ctx, lote.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	for _, l := range env.loteLines(t, lote.ID) {
		if l.OperatorID != nil {
			t.Fatalf("empty pool must leave lines unassigned: %+v", l)
		}
	}
	evs, err := env.store.ListEvents(env.ctx, models.EvEmptyPool, "", "", 10, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected one event per affected line, got %d", len(evs))
	}
}

func TestCarryoverIntoNextShift(t *testing.T) {
	env := newTestEnv(t)
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	shift := env.openShift(t, date, models.SlotMorning)
	env.seedCatalogs(t)
	env.setPool(t, shift.ID, 1, "ana")

	lote := env.ingest(t, shift.ID, 1, "Ruta Norte", norteBody)
	if _, err := env.proc.ProcessLote(env.ctx, lote.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := env.shifts.Close(env.ctx, shift.ID, "test"); err != nil {
		t.Fatalf("close: %v", err)
	}

	next, carry, err := env.shifts.Open(env.ctx, date, models.SlotAfternoon, "test")
	if err != nil {
		t.Fatalf("open next: %v", err)
	}
	if carry.Lotes != 1 || carry.Lines != 3 || carry.Routes != 1 {
		t.Fatalf("carry summary: %+v", carry)
	}

	carried, err := env.store.ListLotes(env.ctx, next.ID, models.ParseOK, 50, 0)
	if err != nil || len(carried) != 1 {
		t.Fatalf("carried lotes: %d err=%v", len(carried), err)
	}
	if !carried[0].CarriedOver {
		t.Fatalf("carried lote not flagged: %+v", carried[0])
	}
	if got := env.unprinted(t, next.ID, "RUTA NORTE"); got != 3 {
		t.Fatalf("carried lines must arrive unprinted, got %d", got)
	}
	if day := env.routeDay(t, next.ID, "RUTA NORTE"); day.LogicalState != models.LogicalActive {
		t.Fatalf("carried route day: %+v", day)
	}
}
