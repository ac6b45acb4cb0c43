package api

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// HLS content types
const (
	ContentTypeManifest = "application/vnd.apple.mpegurl"
	ContentTypeSegment  = "video/mp2t"
)

// contentTypeFor returns the content type for an HLS file, or "" when the
// file is not something the HLS server hands out
func contentTypeFor(fileName string) string {
	switch {
	case strings.HasSuffix(fileName, ".m3u8"):
		return ContentTypeManifest
	case strings.HasSuffix(fileName, ".ts"):
		return ContentTypeSegment
	default:
		return ""
	}
}

// SetCORSHeaders allows players on any origin to fetch the stream
func SetCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
}

// SetHLSHeaders sets content type and caching for an HLS file.
// The manifest changes every second and must never be cached; segments are
// immutable but short-lived, so a brief cache is fine.
func SetHLSHeaders(c *gin.Context, fileName string) {
	c.Header("Content-Type", contentTypeFor(fileName))
	if strings.HasSuffix(fileName, ".m3u8") {
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		return
	}
	c.Header("Cache-Control", "public, max-age=3")
}
