package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"sellerpulse/internal/importer"
)

// Import imports an upload, streaming progress as SSE.
// POST /api/import/:source
func (h *Handler) Import(c *gin.Context) {
	source, ok := sourceParam(c)
	if !ok {
		return
	}
	up, ok := h.readUpload(c)
	if !ok {
		return
	}
	force := c.DefaultPostForm("force", c.DefaultQuery("force", "false")) == "true"

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	setSSEHeaders(c)

	events := h.importer.Import(c.Request.Context(), importer.ImportOptions{
		Source:   source,
		Filename: up.Filename,
		Content:  up.Content,
		Force:    force,
	})
	for event := range events {
		writeSSE(c, flusher, event)
	}
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// writeSSE SSE format: data: {json}\n\n
func writeSSE(c *gin.Context, flusher http.Flusher, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	flusher.Flush()
}
