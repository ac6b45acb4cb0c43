package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

// HLSHandler serves the manifest and segments from the output directory
type HLSHandler struct {
	outputDir string
	logger    hclog.Logger
}

// NewHLSHandler creates a handler serving files from outputDir
func NewHLSHandler(outputDir string, logger hclog.Logger) *HLSHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &HLSHandler{
		outputDir: outputDir,
		logger:    logger.Named("hls"),
	}
}

// ServeFile handles GET|HEAD <public_path>/*file
func (h *HLSHandler) ServeFile(c *gin.Context) {
	fileName := strings.TrimPrefix(c.Param("file"), "/")
	SetCORSHeaders(c)

	if fileName == "" || strings.Contains(fileName, "..") || strings.HasPrefix(fileName, "/") || strings.Contains(fileName, `\`) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid filename",
			"message": "Directory traversal not allowed",
		})
		return
	}

	if contentTypeFor(fileName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid file type",
			"message": "Only .m3u8 and .ts files are allowed",
		})
		return
	}

	path := filepath.Join(h.outputDir, filepath.FromSlash(fileName))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err != nil && !os.IsNotExist(err) {
			h.logger.Warn("failed to stat HLS file", "path", path, "error", err)
		}
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "File not found",
			"message": fmt.Sprintf("HLS file %q not found. Make sure the stream is running.", fileName),
			"hint":    "Start the stream first using POST /api/stream/start",
		})
		return
	}

	SetHLSHeaders(c, fileName)
	c.File(path)
}

// Preflight answers CORS preflight requests for HLS files
func (h *HLSHandler) Preflight(c *gin.Context) {
	SetCORSHeaders(c)
	c.Status(http.StatusNoContent)
}
