package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

var errUploadTooLarge = errors.New("file too large")

type upload struct {
	Filename string
	Content  []byte
}

// readUpload reads the multipart "file" field into memory.
func (h *Handler) readUpload(c *gin.Context) (*upload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errUploadTooLarge.Error()})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing upload field \"file\""})
		return nil, false
	}
	if fh.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("%s: %d bytes, limit %d", errUploadTooLarge, fh.Size, h.maxUpload)})
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("failed to open upload: %w", err))
		return nil, false
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, fmt.Errorf("failed to read upload: %w", err))
		return nil, false
	}
	return &upload{Filename: fh.Filename, Content: content}, true
}
