package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Event history
// @Tags events
// @Produce json
// @Param type query string false "event type filter"
// @Param entity_type query string false "entity type filter"
// @Param entity_id query string false "entity id filter"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {array} models.Event
// @Router /api/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	out, err := h.Store.ListEvents(c.Request.Context(),
		c.Query("type"), c.Query("entity_type"), c.Query("entity_id"),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
