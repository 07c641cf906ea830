package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/imap"
	"github.com/comandas/backend/internal/service"
)

// ActorHeader carries the acting user for event attribution.
const ActorHeader = "X-Actor"

type Handler struct {
	Store     *db.Store
	Bus       *events.Bus
	Shifts    *service.ShiftService
	Routes    *service.RouteService
	Printing  *service.PrintService
	Processor *service.Processor
	Mailbox   *imap.Worker
	Validator *validator.Validate
	Logger    zerolog.Logger
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, apiError{Code: code, Message: message, Details: details})
}

// svcError maps service sentinels onto stable HTTP error codes.
func (h *Handler) svcError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveShift):
		writeError(c, http.StatusConflict, "NO_ACTIVE_SHIFT", err.Error(), nil)
	case errors.Is(err, service.ErrShiftAlreadyActive):
		writeError(c, http.StatusConflict, "SHIFT_ALREADY_ACTIVE", err.Error(), nil)
	case errors.Is(err, service.ErrDuplicateShift):
		writeError(c, http.StatusConflict, "DUPLICATE_SHIFT", err.Error(), nil)
	case errors.Is(err, service.ErrScheduleNotFound):
		writeError(c, http.StatusNotFound, "SCHEDULE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, service.ErrRouteNotFound):
		writeError(c, http.StatusNotFound, "ROUTE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, service.ErrNoActiveCatalog):
		writeError(c, http.StatusConflict, "NO_ACTIVE_CATALOG", err.Error(), nil)
	case errors.Is(err, service.ErrNothingToPrint):
		writeError(c, http.StatusConflict, "NOTHING_TO_PRINT", err.Error(), nil)
	case errors.Is(err, service.ErrNoEnter):
		writeError(c, http.StatusConflict, "NO_ENTER", err.Error(), nil)
	case errors.Is(err, service.ErrNoInitial):
		writeError(c, http.StatusConflict, "NO_INITIAL", err.Error(), nil)
	case errors.Is(err, service.ErrLoteNotReprocessable):
		writeError(c, http.StatusConflict, "LOTE_NOT_REPROCESSABLE", err.Error(), nil)
	case errors.Is(err, service.ErrPDFRender):
		writeError(c, http.StatusBadGateway, "PDF_RENDER_FAILED", err.Error(), nil)
	case errors.Is(err, db.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	default:
		h.Logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func actor(c *gin.Context) string {
	return c.GetHeader(ActorHeader)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
