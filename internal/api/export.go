package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sellerpulse/internal/exporter"
	"sellerpulse/internal/model"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	downloadTTL     = 10 * time.Minute
)

type exportProgressEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Export downloads a batch as xlsx.
// GET /api/imports/:id/export
func (h *Handler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	batch, err := h.store.GetBatch(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	file, err := h.exporter.Export(ctx, exporter.ExportOptions{BatchID: batch.ID})
	if err != nil {
		h.fail(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", buildExportContentDisposition(batch))
	c.Header("Content-Type", xlsxContentType)
	if err := file.Write(c.Writer); err != nil {
		h.log.Error("failed to write export", zap.String("batch", batch.ID), zap.Error(err))
	}
}

// ExportStream exports with SSE progress, then hands out a one-time download URL.
// POST /api/imports/:id/export/stream
func (h *Handler) ExportStream(c *gin.Context) {
	ctx := c.Request.Context()
	batch, err := h.store.GetBatch(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	setSSEHeaders(c)

	send := func(typ, msg string, data any) {
		writeSSE(c, flusher, exportProgressEvent{Type: typ, Message: msg, Data: data, Timestamp: time.Now()})
	}

	send("start", "export started", map[string]any{"batchId": batch.ID})

	lastPercent := -1
	file, err := h.exporter.Export(ctx, exporter.ExportOptions{
		BatchID: batch.ID,
		Progress: func(p exporter.ProgressEvent) {
			if p.Percent == lastPercent {
				return
			}
			lastPercent = p.Percent
			send("progress", p.Stage, map[string]any{"percent": p.Percent})
		},
	})
	if err != nil {
		send("error", "export failed: "+err.Error(), map[string]any{})
		return
	}
	defer file.Close()

	tempPath := filepath.Join(h.exportDir, fmt.Sprintf("sellerpulse_export_%d_%d.xlsx", time.Now().UnixNano(), os.Getpid()))
	if err := file.SaveAs(tempPath); err != nil {
		_ = os.Remove(tempPath)
		send("error", "failed to write export file: "+err.Error(), map[string]any{})
		return
	}

	token := h.downloads.put(exportDownload{
		filePath: tempPath,
		filename: exporter.FileName(batch),
		batchID:  batch.ID,
	}, downloadTTL)
	prefix := strings.TrimSuffix(c.FullPath(), "/imports/:id/export/stream")

	send("done", "export finished", map[string]any{
		"percent":     100,
		"downloadUrl": fmt.Sprintf("%s/export/download/%s", prefix, token),
	})
}

// DownloadExport serves a streamed export once.
// GET /api/export/download/:token
func (h *Handler) DownloadExport(c *gin.Context) {
	item, ok := h.downloads.take(c.Param("token"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "download link expired"})
		return
	}
	defer os.Remove(item.filePath)

	if _, err := os.Stat(item.filePath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "export file missing"})
		return
	}

	c.Header("Content-Disposition", contentDisposition(asciiExportName(item.batchID), item.filename))
	c.Header("Content-Type", xlsxContentType)
	c.File(item.filePath)
}

func buildExportContentDisposition(b *model.ImportBatch) string {
	return contentDisposition(asciiExportName(b.ID), exporter.FileName(b))
}

// contentDisposition ASCII fallback plus RFC 5987 UTF-8 name; upload names
// are often Cyrillic.
func contentDisposition(fallback, name string) string {
	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", fallback, url.PathEscape(name))
}

func asciiExportName(batchID string) string {
	if len(batchID) > 8 {
		batchID = batchID[:8]
	}
	return fmt.Sprintf("sellerpulse-%s.xlsx", batchID)
}
