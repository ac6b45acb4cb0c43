package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(buf *bytes.Buffer, level hclog.Level) *gin.Engine {
	logger := hclog.New(&hclog.LoggerOptions{Output: buf, Level: level})
	r := gin.New()
	r.Use(RequestLogger(logger, "/hls"), ErrorLogger(logger), CORS())
	r.GET("/api/stream/status", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/hls/*file", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusInternalServerError)
	})
	return r
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(&buf, hclog.Debug)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stream/status", nil))
	assert.Contains(t, buf.String(), "path=/api/stream/status")

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hls/stream.m3u8", nil))
	assert.Empty(t, buf.String(), "HLS fetches are logged at trace only")

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	out := buf.String()
	assert.Contains(t, out, "[ERROR]")
	assert.Contains(t, out, "request failed")
	assert.Contains(t, out, "request error")
}

func TestCORS(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(&buf, hclog.Off)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/stream/status", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stream/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
