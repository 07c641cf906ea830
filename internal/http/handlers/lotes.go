package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/models"
)

// @Summary List lotes of a shift
// @Tags lotes
// @Produce json
// @Param shift_id query int false "shift id, defaults to the active shift"
// @Param status query string false "parse status filter"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {array} models.Lote
// @Router /api/lotes [get]
func (h *Handler) ListLotes(c *gin.Context) {
	ctx := c.Request.Context()
	shiftID := int64(queryInt(c, "shift_id", 0))
	if shiftID == 0 {
		shift, err := h.Store.GetActiveShift(ctx)
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NO_ACTIVE_SHIFT", "no active shift", nil)
			return
		}
		if err != nil {
			h.svcError(c, err)
			return
		}
		shiftID = shift.ID
	}

	status := c.Query("status")
	switch status {
	case "", models.ParsePending, models.ParseOK, models.ParseErrorRoute, models.ParseErrorParse:
	default:
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "unknown parse status", nil)
		return
	}

	out, err := h.Store.ListLotes(ctx, shiftID, status, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type loteDetail struct {
	models.Lote
	Clients []loteClient `json:"clients"`
}

type loteClient struct {
	models.ClientOrder
	Lines []models.Line `json:"lines"`
}

// @Summary Lote detail with parsed clients and lines
// @Tags lotes
// @Produce json
// @Param id path int true "lote id"
// @Success 200 {object} loteDetail
// @Failure 404 {object} apiError
// @Router /api/lotes/{id} [get]
func (h *Handler) GetLote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	lote, err := h.Store.GetLote(ctx, id)
	if err != nil {
		h.svcError(c, err)
		return
	}

	detail := loteDetail{Lote: lote, Clients: []loteClient{}}
	clients, err := h.Store.ListClientOrders(ctx, id)
	if err != nil {
		h.svcError(c, err)
		return
	}
	for _, co := range clients {
		lines, err := h.Store.ListLinesByClientOrder(ctx, co.ID)
		if err != nil {
			h.svcError(c, err)
			return
		}
		detail.Clients = append(detail.Clients, loteClient{ClientOrder: co, Lines: lines})
	}
	c.JSON(http.StatusOK, detail)
}

// @Summary Reprocess a failed lote
// @Description Reruns parsing, matching and assignment for a lote in an error state
// @Tags lotes
// @Produce json
// @Param id path int true "lote id"
// @Success 200 {object} models.Lote
// @Failure 409 {object} apiError
// @Router /api/lotes/{id}/reprocess [post]
func (h *Handler) ReprocessLote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	lote, err := h.Processor.Reprocess(c.Request.Context(), id, actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, lote)
}
