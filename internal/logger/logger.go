// Package logger builds the daemon's hclog logger from configuration.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/rtsphls/internal/config"
)

// Name is the root logger name
const Name = "rtsphls"

// New creates the root logger. The returned closer releases a log file when
// logging.output names one; it is a no-op otherwise.
func New(cfg config.LoggingConfig) (hclog.Logger, io.Closer, error) {
	output, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, err
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:            Name,
		Level:           hclog.LevelFromString(cfg.Level),
		Output:          output,
		JSONFormat:      cfg.Format == "json",
		IncludeLocation: strings.EqualFold(cfg.Level, "trace"),
	})
	return logger, closer, nil
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr, nopCloser{}, nil
	case "stdout":
		return os.Stdout, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
