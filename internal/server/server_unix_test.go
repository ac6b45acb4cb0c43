//go:build unix

package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowEncoder records its pid, ignores the quit command and signals, and
// never produces a manifest.
const slowEncoder = `#!/bin/sh
trap '' INT TERM
echo $$ > %q
while :; do sleep 1; done
`

type startResponse struct {
	code int
	body string
	err  error
}

func TestServe_ShutdownDuringStartStopsEncoder(t *testing.T) {
	cfg := testConfig(t)
	base := filepath.Dir(cfg.Stream.OutputDir)
	pidFile := filepath.Join(base, "encoder.pid")
	cfg.Stream.FFmpegPath = filepath.Join(base, "ffmpeg")
	require.NoError(t, os.WriteFile(cfg.Stream.FFmpegPath, []byte(fmt.Sprintf(slowEncoder, pidFile)), 0755))

	s := New(cfg, nil)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, listener) }()

	started := make(chan startResponse, 1)
	go func() {
		resp, err := http.Post("http://"+listener.Addr().String()+"/api/stream/start",
			"application/json", strings.NewReader(`{"rtspUrl":"rtsp://camera/0"}`))
		if err != nil {
			started <- startResponse{err: err}
			return
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		started <- startResponse{code: resp.StatusCode, body: string(data)}
	}()

	var pid int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(pidFile)
		if err != nil {
			return false
		}
		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil && pid > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, types.StateStarting, s.Module().Controller().State())

	cancel()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + ModuleShutdownTimeout):
		t.Fatal("server did not shut down")
	}

	assert.ErrorIs(t, syscall.Kill(pid, 0), syscall.ESRCH, "encoder outlived the daemon")
	assert.Equal(t, types.StateStopped, s.Module().Controller().State())

	select {
	case resp := <-started:
		require.NoError(t, resp.err)
		assert.Equal(t, http.StatusInternalServerError, resp.code)
		assert.Contains(t, resp.body, "start cancelled")
	case <-time.After(time.Second):
		t.Fatal("start request never completed")
	}
}
