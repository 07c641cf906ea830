package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comandas/backend/internal/db"
)

// @Summary Route wall for the active shift
// @Description One row per route day with visual/logical state and line counters
// @Tags routes
// @Produce json
// @Success 200 {array} models.RouteSummary
// @Router /api/routes [get]
func (h *Handler) ListRoutes(c *gin.Context) {
	ctx := c.Request.Context()
	shift, err := h.Store.GetActiveShift(ctx)
	if errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NO_ACTIVE_SHIFT", "no active shift", nil)
		return
	}
	if err != nil {
		h.svcError(c, err)
		return
	}
	out, err := h.Store.RouteSummaries(ctx, shift.ID)
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Route day detail
// @Tags routes
// @Produce json
// @Param id path int true "route day id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} apiError
// @Router /api/routes/{id} [get]
func (h *Handler) GetRoute(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	day, err := h.Store.GetRouteDay(ctx, id)
	if err != nil {
		h.svcError(c, err)
		return
	}
	jobs, err := h.Printing.ListJobs(ctx, day.ShiftID, day.RouteNorm, 50, 0)
	if err != nil {
		h.svcError(c, err)
		return
	}
	collector, err := h.Store.GetCollector(ctx, day.ShiftID, day.RouteNorm)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": day, "collector_id": collector, "print_jobs": jobs})
}

// @Summary Mark a route as collected
// @Tags routes
// @Produce json
// @Param id path int true "route day id"
// @Success 200 {object} models.RouteDay
// @Failure 404 {object} apiError
// @Router /api/routes/{id}/mark-collected [post]
func (h *Handler) MarkRouteCollected(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	day, err := h.Routes.MarkCollected(c.Request.Context(), id, actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

// @Summary Reactivate a collected route
// @Tags routes
// @Produce json
// @Param id path int true "route day id"
// @Success 200 {object} models.RouteDay
// @Failure 404 {object} apiError
// @Router /api/routes/{id}/reactivate [post]
func (h *Handler) ReactivateRoute(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	day, err := h.Routes.Reactivate(c.Request.Context(), id, actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}
