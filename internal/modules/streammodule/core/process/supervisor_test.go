package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	sErrors "github.com/mantonx/rtsphls/internal/modules/streammodule/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// politeEncoder writes a manifest to its last argument and exits once
// anything arrives on stdin.
const politeEncoder = `#!/bin/sh
for last; do :; done
echo "encoder starting" >&2
printf '#EXTM3U\n' > "$last"
read -r _ || true
echo "quit received" >&2
`

// stubbornEncoder ignores the quit command
const stubbornEncoder = `#!/bin/sh
trap '' INT TERM
while :; do sleep 1; done
`

const crashingEncoder = `#!/bin/sh
echo "connection refused" >&2
exit 1
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script encoders need a unix shell")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func newTestSupervisor(t *testing.T, binary string) *Supervisor {
	t.Helper()
	base := t.TempDir()
	outDir := filepath.Join(base, "hls")
	require.NoError(t, os.MkdirAll(outDir, 0755))

	s := NewSupervisor(Config{
		BinaryPath: binary,
		OutputDir:  outDir,
		LogDir:     filepath.Join(base, "logs"),
	}, hclog.NewNullLogger())
	s.gracefulTimeout = 500 * time.Millisecond
	s.forceTimeout = 2 * time.Second
	return s
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("encoder did not exit")
	}
}

func TestBuildArgs(t *testing.T) {
	args := BuildArgs("rtsp://cam.local/live", "/srv/hls")

	expected := []string{
		"-rtsp_transport", "tcp",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-strict", "experimental",
		"-i", "rtsp://cam.local/live",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-g", "30",
		"-keyint_min", "30",
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", "44100",
		"-f", "hls",
		"-hls_time", "1",
		"-hls_list_size", "3",
		"-hls_flags", "delete_segments+append_list+independent_segments",
		"-hls_segment_filename", filepath.Join("/srv/hls", "seg_%03d.ts"),
		filepath.Join("/srv/hls", "stream.m3u8"),
	}
	assert.Equal(t, expected, args)
}

func TestSpawn_MissingBinary(t *testing.T) {
	s := newTestSupervisor(t, filepath.Join(t.TempDir(), "no-such-ffmpeg"))

	h, err := s.Spawn(context.Background(), "rtsp://cam/live", "session-1")
	require.Error(t, err)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, sErrors.ErrSpawnFailed)
	assert.Equal(t, sErrors.ErrorTypeProcess, sErrors.GetType(err))
	assert.Nil(t, s.Current())
}

func TestSpawn_GracefulTerminate(t *testing.T) {
	s := newTestSupervisor(t, writeScript(t, politeEncoder))

	h, err := s.Spawn(context.Background(), "rtsp://cam/live", "session-1")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.True(t, s.IsAlive(h))
	assert.Equal(t, h, s.Current())
	assert.Positive(t, h.Pid())

	require.Eventually(t, func() bool {
		info, err := os.Stat(ManifestPath(s.OutputDir()))
		return err == nil && info.Size() > 0
	}, 5*time.Second, 20*time.Millisecond)

	start := time.Now()
	s.Terminate(h)
	assert.Less(t, time.Since(start), s.gracefulTimeout)
	assert.False(t, s.IsAlive(h))
	assert.Nil(t, s.Current())

	logData, err := os.ReadFile(h.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(logData), "encoder starting")
	assert.Contains(t, string(logData), "quit received")
}

func TestSpawn_RefusesWhileActive(t *testing.T) {
	s := newTestSupervisor(t, writeScript(t, politeEncoder))

	h, err := s.Spawn(context.Background(), "rtsp://cam/live", "session-1")
	require.NoError(t, err)
	defer s.Terminate(h)

	_, err = s.Spawn(context.Background(), "rtsp://cam/live", "session-2")
	assert.ErrorIs(t, err, sErrors.ErrProcessActive)
	assert.Equal(t, h, s.Current())
}

func TestSpawn_ReplacesExitedHandle(t *testing.T) {
	s := newTestSupervisor(t, writeScript(t, crashingEncoder))

	first, err := s.Spawn(context.Background(), "rtsp://cam/live", "session-1")
	require.NoError(t, err)
	waitDone(t, first)
	assert.Error(t, first.ExitErr())

	second, err := s.Spawn(context.Background(), "rtsp://cam/live", "session-2")
	require.NoError(t, err)
	assert.Equal(t, second, s.Current())
	waitDone(t, second)
	s.Terminate(second)
}

func TestTerminate_ForceKill(t *testing.T) {
	s := newTestSupervisor(t, writeScript(t, stubbornEncoder))

	h, err := s.Spawn(context.Background(), "rtsp://cam/live", "session-1")
	require.NoError(t, err)

	s.Terminate(h)
	assert.False(t, s.IsAlive(h))
	assert.Nil(t, s.Current())
}

func TestTerminate_AlreadyExited(t *testing.T) {
	s := newTestSupervisor(t, writeScript(t, crashingEncoder))

	h, err := s.Spawn(context.Background(), "rtsp://cam/live", "session-1")
	require.NoError(t, err)
	waitDone(t, h)

	start := time.Now()
	s.Terminate(h)
	s.Terminate(h)
	s.Terminate(nil)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Nil(t, s.Current())

	logData, err := os.ReadFile(h.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(logData), "connection refused")
}

func TestSpawn_TruncatesLogPerSession(t *testing.T) {
	s := newTestSupervisor(t, writeScript(t, crashingEncoder))

	for _, id := range []string{"session-1", "session-2"} {
		h, err := s.Spawn(context.Background(), "rtsp://cam/live", id)
		require.NoError(t, err)
		waitDone(t, h)
		s.Terminate(h)
	}

	logData, err := os.ReadFile(filepath.Join(s.config.LogDir, LogFileName))
	require.NoError(t, err)
	assert.Equal(t, "connection refused\n", string(logData))
}

func TestUsage(t *testing.T) {
	s := newTestSupervisor(t, writeScript(t, stubbornEncoder))
	s.gracefulTimeout = 10 * time.Millisecond

	h, err := s.Spawn(context.Background(), "rtsp://cam/live", "session-1")
	require.NoError(t, err)
	defer s.Terminate(h)

	usage := s.Usage(context.Background(), h)
	require.NotNil(t, usage)
	assert.GreaterOrEqual(t, usage.CPUPercent, 0.0)

	var exited *Handle
	assert.Nil(t, s.Usage(context.Background(), exited))
}

func TestEncoderName(t *testing.T) {
	assert.Equal(t, "ffmpeg", encoderName("/usr/bin/ffmpeg"))
	assert.Equal(t, "ffmpeg", encoderName(`FFMPEG.EXE`))
	assert.Equal(t, "ffmpeg", encoderName("ffmpeg"))
}

func TestWritesManifest(t *testing.T) {
	args := []string{"ffmpeg", "-i", "rtsp://cam/live", "/srv/hls/stream.m3u8"}
	assert.True(t, writesManifest(args, "/srv/hls/stream.m3u8"))
	assert.False(t, writesManifest(args, "/other/srv/hls/stream.m3u8"))
	assert.False(t, writesManifest(args, "hls/stream.m3u8"))

	other := []string{"ffmpeg", "-i", "rtsp://cam/live", "/home/bob/srv/hls/stream.m3u8"}
	assert.False(t, writesManifest(other, "/srv/hls/stream.m3u8"))

	mentions := []string{"ffmpeg", "-i", "/srv/hls/stream.m3u8", "/tmp/out.m3u8"}
	assert.False(t, writesManifest(mentions, "/srv/hls/stream.m3u8"))
}

func TestNewSupervisor_AbsoluteOutputDir(t *testing.T) {
	s := NewSupervisor(Config{OutputDir: "./hls"}, nil)
	assert.True(t, filepath.IsAbs(s.OutputDir()))
	assert.Equal(t, "hls", filepath.Base(s.OutputDir()))

	args := BuildArgs("rtsp://cam/live", s.OutputDir())
	assert.Equal(t, ManifestPath(s.OutputDir()), args[len(args)-1])
}
