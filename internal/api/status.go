package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatusResponse system status.
type StatusResponse struct {
	Initialized    bool     `json:"initialized"` // at least one batch stored
	Batches        int      `json:"batches"`
	Rows           int      `json:"rows"`
	LastImportTime string   `json:"lastImportTime"`
	Sources        []string `json:"sources"`
}

// GetStatus system status.
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := StatusResponse{
		Initialized: stats.Batches > 0,
		Batches:     stats.Batches,
		Rows:        stats.Rows,
		Sources:     []string{"wb", "ozon"},
	}
	if stats.LastImport != nil {
		resp.LastImportTime = stats.LastImport.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}
