package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/comandas/backend/internal/service"
)

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	return c, w
}

func TestSvcErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrNoActiveShift, http.StatusConflict, "NO_ACTIVE_SHIFT"},
		{service.ErrShiftAlreadyActive, http.StatusConflict, "SHIFT_ALREADY_ACTIVE"},
		{service.ErrDuplicateShift, http.StatusConflict, "DUPLICATE_SHIFT"},
		{service.ErrScheduleNotFound, http.StatusNotFound, "SCHEDULE_NOT_FOUND"},
		{service.ErrRouteNotFound, http.StatusNotFound, "ROUTE_NOT_FOUND"},
		{service.ErrNoActiveCatalog, http.StatusConflict, "NO_ACTIVE_CATALOG"},
		{service.ErrNothingToPrint, http.StatusConflict, "NOTHING_TO_PRINT"},
		{service.ErrNoEnter, http.StatusConflict, "NO_ENTER"},
		{service.ErrNoInitial, http.StatusConflict, "NO_INITIAL"},
		{service.ErrLoteNotReprocessable, http.StatusConflict, "LOTE_NOT_REPROCESSABLE"},
		{service.ErrPDFRender, http.StatusBadGateway, "PDF_RENDER_FAILED"},
	}

	for _, tc := range cases {
		c, w := testContext(t)
		h := &Handler{Logger: zerolog.Nop()}
		h.svcError(c, tc.err)
		if w.Code != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, w.Code)
		}
		if !strings.Contains(w.Body.String(), tc.code) {
			t.Fatalf("%v: body %q missing code %q", tc.err, w.Body.String(), tc.code)
		}
	}
}

func TestCatalogKindRejectsUnknown(t *testing.T) {
	c, w := testContext(t)
	c.Params = gin.Params{{Key: "kind", Value: "managers"}}
	if _, ok := catalogKind(c); ok {
		t.Fatalf("unknown kind must be rejected")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPrintRouteNormalizes(t *testing.T) {
	c, _ := testContext(t)
	c.Params = gin.Params{{Key: "route", Value: "Ruta Ñorte"}}
	route, ok := printRoute(c)
	if !ok {
		t.Fatalf("valid route rejected")
	}
	if route != "RUTA NORTE" {
		t.Fatalf("got %q", route)
	}
}

func TestResumePointTimestamp(t *testing.T) {
	c, _ := testContext(t)
	ts := time.Date(2026, 2, 15, 10, 30, 0, 123000000, time.UTC)
	c.Request.Header.Set("Last-Event-ID", ts.Format(time.RFC3339Nano))

	h := &Handler{Logger: zerolog.Nop()}
	got, ok := h.resumePoint(c)
	if !ok {
		t.Fatalf("timestamp header must yield a resume point")
	}
	if !got.Equal(ts) {
		t.Fatalf("got %v want %v", got, ts)
	}
}

func TestResumePointAbsent(t *testing.T) {
	c, _ := testContext(t)
	h := &Handler{Logger: zerolog.Nop()}
	if _, ok := h.resumePoint(c); ok {
		t.Fatalf("no header means tail-only, no replay")
	}
}

func TestQueryIntDefaults(t *testing.T) {
	c, _ := testContext(t)
	c.Request = httptest.NewRequest(http.MethodGet, "/test?limit=abc", nil)
	if got := queryInt(c, "limit", 50); got != 50 {
		t.Fatalf("bad values fall back to default, got %d", got)
	}
	c, _ = testContext(t)
	c.Request = httptest.NewRequest(http.MethodGet, "/test?limit=25", nil)
	if got := queryInt(c, "limit", 50); got != 25 {
		t.Fatalf("got %d", got)
	}
}
