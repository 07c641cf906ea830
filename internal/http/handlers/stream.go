package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/models"
)

const (
	streamKeepalive = 30 * time.Second
	streamReplayCap = 100
)

// @Summary Live event stream
// @Description Server-sent events; Last-Event-ID (timestamp or event id) replays up to 100 missed events before tailing
// @Tags events
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /api/events/stream [get]
func (h *Handler) StreamEvents(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeError(c, http.StatusInternalServerError, "INTERNAL", "streaming unsupported", nil)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()
	seen := map[string]struct{}{}

	// Subscribe before replaying so events landing during the replay are
	// not lost; the seen set removes the overlap.
	live, cancel := h.Bus.Subscribe()
	defer cancel()

	if since, ok := h.resumePoint(c); ok {
		replay, err := h.Store.ListEventsAfter(ctx, since, streamReplayCap)
		if err != nil {
			h.Logger.Error().Err(err).Msg("event replay failed")
		}
		for _, e := range replay {
			seen[e.ID] = struct{}{}
			writeFrame(c.Writer, e)
		}
		flusher.Flush()
	}

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-live:
			if !open {
				return
			}
			if _, dup := seen[e.ID]; dup {
				continue
			}
			writeFrame(c.Writer, e)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// resumePoint derives the replay lower bound from Last-Event-ID, which may be
// the timestamp a previous frame carried or a persisted event id.
func (h *Handler) resumePoint(c *gin.Context) (time.Time, bool) {
	last := c.GetHeader("Last-Event-ID")
	if last == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, last); err == nil {
		return ts, true
	}
	e, err := h.Store.GetEvent(c.Request.Context(), last)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.Logger.Error().Err(err).Msg("resume point lookup failed")
		}
		return time.Time{}, false
	}
	return e.Ts, true
}

func writeFrame(w http.ResponseWriter, e models.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %s\nevent: evento\ndata: %s\n\n", e.Ts.UTC().Format(time.RFC3339Nano), data)
}
