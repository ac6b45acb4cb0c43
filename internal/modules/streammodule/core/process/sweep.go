package process

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	gproc "github.com/shirou/gopsutil/v4/process"
)

// SweepOrphans kills encoder processes left behind by a previous daemon that
// died without stopping its session. A process qualifies when its executable
// name matches the configured binary and its last argument is exactly our
// absolute manifest path. Returns the number of processes killed.
func (s *Supervisor) SweepOrphans(ctx context.Context) (int, error) {
	procs, err := gproc.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}

	binary := encoderName(s.config.BinaryPath)
	manifest := ManifestPath(s.config.OutputDir)

	skip := map[int32]bool{int32(os.Getpid()): true}
	if h := s.Current(); h != nil {
		skip[int32(h.Pid())] = true
	}

	killed := 0
	for _, p := range procs {
		if skip[p.Pid] {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || encoderName(name) != binary {
			continue
		}
		args, err := p.CmdlineSliceWithContext(ctx)
		if err != nil || !writesManifest(args, manifest) {
			continue
		}

		if err := p.KillWithContext(ctx); err != nil {
			s.logger.Warn("failed to kill orphaned encoder", "pid", p.Pid, "error", err)
			continue
		}
		killed++
		s.logger.Info("killed orphaned encoder", "pid", p.Pid, "manifest", manifest)
	}

	return killed, nil
}

func encoderName(path string) string {
	return strings.TrimSuffix(strings.ToLower(filepath.Base(path)), ".exe")
}

// writesManifest reports whether args end with manifest, which must be absolute
func writesManifest(args []string, manifest string) bool {
	if len(args) < 2 || !filepath.IsAbs(manifest) {
		return false
	}
	return filepath.Clean(args[len(args)-1]) == manifest
}
