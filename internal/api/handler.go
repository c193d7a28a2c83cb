package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sellerpulse/internal/exporter"
	"sellerpulse/internal/importer"
	"sellerpulse/internal/model"
	"sellerpulse/internal/store"
)

const defaultMaxUpload = 50 << 20

// Options handler tuning.
type Options struct {
	MaxUploadBytes int64
	// ExportDir holds streamed exports until they are downloaded.
	ExportDir string
}

// Handler API handler.
type Handler struct {
	store     *store.Store
	importer  *importer.Coordinator
	exporter  *exporter.Exporter
	downloads *exportDownloadStore
	log       *zap.Logger

	maxUpload int64
	exportDir string
}

// NewHandler creates the API handler.
func NewHandler(st *store.Store, coord *importer.Coordinator, exp *exporter.Exporter, log *zap.Logger, opts Options) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.ExportDir == "" {
		opts.ExportDir = os.TempDir()
	}
	downloads := newExportDownloadStore()
	downloads.onExpire = func(path string) { _ = os.Remove(path) }
	return &Handler{
		store:     st,
		importer:  coord,
		exporter:  exp,
		downloads: downloads,
		log:       log.Named("api"),
		maxUpload: opts.MaxUploadBytes,
		exportDir: opts.ExportDir,
	}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)

	// dry run, nothing is stored
	router.POST("/parse/:source", h.Parse)
	router.POST("/import/:source", h.Import)

	router.GET("/imports", h.ListImports)
	router.GET("/imports/:id", h.GetImport)
	router.GET("/imports/:id/rows", h.GetImportRows)
	router.DELETE("/imports/:id", h.DeleteImport)

	router.GET("/imports/:id/export", h.Export)
	router.POST("/imports/:id/export/stream", h.ExportStream)
	router.GET("/export/download/:token", h.DownloadExport)
}

func sourceParam(c *gin.Context) (model.Source, bool) {
	source := model.Source(c.Param("source"))
	if !source.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported source: " + string(source)})
		return "", false
	}
	return source, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrDuplicateImport):
		return http.StatusConflict
	case errors.Is(err, importer.ErrRejected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
