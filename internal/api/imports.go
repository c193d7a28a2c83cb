package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListImports lists batches, newest first.
// GET /api/imports?limit=N
func (h *Handler) ListImports(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	batches, err := h.store.ListBatches(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": batches, "total": len(batches)})
}

// GetImport batch details.
// GET /api/imports/:id
func (h *Handler) GetImport(c *gin.Context) {
	batch, err := h.store.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// GetImportRows normalized rows of a batch.
// GET /api/imports/:id/rows
func (h *Handler) GetImportRows(c *gin.Context) {
	id := c.Param("id")
	rows, err := h.store.BatchRows(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batchId": id, "rows": rows, "total": len(rows)})
}

// DeleteImport removes a batch and its rows.
// DELETE /api/imports/:id
func (h *Handler) DeleteImport(c *gin.Context) {
	if err := h.store.DeleteBatch(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
