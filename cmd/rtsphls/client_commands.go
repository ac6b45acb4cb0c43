package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
)

// startTimeout covers the daemon's 10s readiness bound plus teardown of a
// previous session
const startTimeout = 30 * time.Second

func newClientCommands(ctx *commandContext) []*cobra.Command {
	cmds := []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newStatusCommand(ctx),
	}
	for _, cmd := range cmds {
		cmd.Flags().StringVar(&ctx.addr, "addr", "", "Daemon address (default from config, e.g. http://127.0.0.1:5000)")
	}
	return cmds
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "start <rtsp-url>",
		Short: "Start the live stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]string{"rtspUrl": args[0], "mode": mode})
			if err != nil {
				return err
			}

			var resp struct {
				Success   bool   `json:"success"`
				HLSURL    string `json:"hlsUrl"`
				Mode      string `json:"mode"`
				SessionID string `json:"sessionId"`
				Error     string `json:"error"`
			}
			if err := ctx.call(http.MethodPost, "/api/stream/start", body, startTimeout, &resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("start failed: %s", resp.Error)
			}

			hlsURL := resp.HLSURL
			if strings.HasPrefix(hlsURL, "/") {
				if base, err := ctx.baseURL(); err == nil {
					hlsURL = base + hlsURL
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stream running\n  HLS:     %s\n  Mode:    %s\n  Session: %s\n", hlsURL, resp.Mode, resp.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "public", "Viewing mode reported back in status")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the live stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.call(http.MethodPost, "/api/stream/stop", nil, startTimeout, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stream stopped")
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show live stream status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status types.Status
			if err := ctx.call(http.MethodGet, "/api/stream/status", nil, 5*time.Second, &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			renderStatus(out, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status document")
	return cmd
}

func renderStatus(out io.Writer, s types.Status) {
	fmt.Fprintf(out, "State:   %s\n", s.State)
	if s.SourceAddress != "" {
		fmt.Fprintf(out, "Source:  %s\n", s.SourceAddress)
	}
	if s.Mode != "" {
		fmt.Fprintf(out, "Mode:    %s\n", s.Mode)
	}
	fmt.Fprintf(out, "HLS:     %s\n", readiness(s.OutputReady))
	if s.PID != 0 {
		fmt.Fprintf(out, "PID:     %d (up %s)\n", s.PID, time.Duration(s.Uptime*float64(time.Second)).Round(time.Second))
	}
	if s.Playlist != nil {
		fmt.Fprintf(out, "Window:  %d segments from #%d\n", s.Playlist.Segments, s.Playlist.MediaSequence)
	}
	if s.LastError != "" {
		fmt.Fprintf(out, "Error:   %s\n", s.LastError)
	}
	if len(s.RecentLogLines) > 0 {
		fmt.Fprintln(out, "Recent encoder output:")
		for _, line := range s.RecentLogLines {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}

func readiness(ready bool) string {
	if ready {
		return "ready"
	}
	return "not ready"
}

// baseURL resolves the daemon address from --addr or the configuration
func (c *commandContext) baseURL() (string, error) {
	addr := strings.TrimSpace(c.addr)
	if addr == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return "", err
		}
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		addr = fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/"), nil
}

// call performs a JSON request against the daemon. Error bodies with a JSON
// "error" field are decoded into out as well, so callers can report them.
func (c *commandContext) call(method, path string, body []byte, timeout time.Duration, out interface{}) error {
	base, err := c.baseURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequest(method, base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", base, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
