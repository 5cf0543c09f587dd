package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// streamRequests pushes newly triaged CRITICAL and HIGH requests to the
// client as server-sent events until either side goes away.
func (h *Handler) streamRequests(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream unavailable"})
		return
	}

	id, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)
	slog.Debug("stream subscriber connected", "subscriber", id)

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case req, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("request", req)
			return true
		}
	})
	slog.Debug("stream subscriber disconnected", "subscriber", id)
}
