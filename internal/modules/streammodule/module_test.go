package streammodule

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/rtsphls/internal/config"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/metrics"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeEncoder = `#!/bin/sh
for last; do :; done
echo "fake encoder up" >&2
printf '#EXTM3U\n#EXT-X-TARGETDURATION:1\n#EXT-X-MEDIA-SEQUENCE:0\n#EXTINF:1.0,\nseg_000.ts\n' > "$last"
printf 'G' > "$(dirname "$last")/seg_000.ts"
read -r _ || true
`

func newTestModule(t *testing.T) (*Module, *gin.Engine) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script encoders need a unix shell")
	}
	base := t.TempDir()
	binary := filepath.Join(base, "ffmpeg")
	require.NoError(t, os.WriteFile(binary, []byte(fakeEncoder), 0755))

	cfg := config.DefaultConfig().Stream
	cfg.OutputDir = filepath.Join(base, "hls")
	cfg.LogDir = filepath.Join(base, "logs")
	cfg.FFmpegPath = binary
	cfg.OrphanSweep = true

	m := NewModule(cfg, hclog.NewNullLogger(), metrics.New())
	require.NoError(t, m.Init(context.Background()))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	m.RegisterRoutes(router)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, router
}

func TestModule_EndToEnd(t *testing.T) {
	m, router := newTestModule(t)
	assert.Equal(t, ModuleID, m.ID())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream/start",
		strings.NewReader(`{"rtspUrl":"rtsp://camera/0","mode":"obs"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"hlsUrl":"/hls/stream.m3u8"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hls/stream.m3u8", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "#EXTM3U")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hls/seg_000.ts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, types.StateRunning, m.Controller().State())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.StateStopped, m.Controller().State())
}
