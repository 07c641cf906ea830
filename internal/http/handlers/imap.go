package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Mailbox worker status
// @Tags mailbox
// @Produce json
// @Success 200 {object} imap.Status
// @Router /api/imap/status [get]
func (h *Handler) ImapStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Mailbox.Status())
}

// @Summary Force an immediate mailbox poll
// @Tags mailbox
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 409 {object} apiError
// @Router /api/imap/force-poll [post]
func (h *Handler) ImapForcePoll(c *gin.Context) {
	if err := h.Mailbox.TriggerPoll(c.Request.Context()); err != nil {
		writeError(c, http.StatusConflict, "POLL_FAILED", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "polled"})
}
