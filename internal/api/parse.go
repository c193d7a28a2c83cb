package api

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"sellerpulse/internal/parser"
)

// Parse parses an upload without storing it. A result carrying errors is
// returned with 422.
// POST /api/parse/:source
func (h *Handler) Parse(c *gin.Context) {
	source, ok := sourceParam(c)
	if !ok {
		return
	}
	up, ok := h.readUpload(c)
	if !ok {
		return
	}

	res := parser.Parse(source, parser.File{Name: up.Filename, Content: bytes.NewReader(up.Content)})
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, res)
}
