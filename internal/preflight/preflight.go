// Package preflight verifies the daemon's runtime requirements before
// the workflow loop starts: directories, disk headroom, external
// binaries and the optional chat endpoint.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"clipper/internal/config"
	"clipper/internal/services/chat"
)

// Result reports the outcome of a single check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// minimum free space in the staging directory before the daemon
// refuses to pick up work.
const minStagingBytes = 2 << 30

// RunAll executes every applicable check for the configuration.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
		CheckDiskSpace("Staging disk space", cfg.Paths.StagingDir, minStagingBytes),
	}
	results = append(results, CheckBinaries(cfg)...)
	results = append(results, CheckTranscriberScript(cfg.Transcriber))

	if cfg.Chat.Enabled {
		results = append(results, CheckChat(ctx, cfg.Chat))
	}
	return results
}

// Healthy reports whether every non-optional check passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return false
		}
	}
	return true
}

// CheckDirectoryAccess verifies the directory exists and is
// readable and writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem holding path has at least
// minBytes available.
func CheckDiskSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	available := stat.Bavail * uint64(stat.Bsize)
	if available < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%.1f GiB free, need %.1f GiB",
			float64(available)/(1<<30), float64(minBytes)/(1<<30))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%.1f GiB free", float64(available)/(1<<30))}
}

// CheckBinaries verifies the media tools are on PATH.
func CheckBinaries(cfg *config.Config) []Result {
	binaries := []struct {
		name     string
		command  string
		optional bool
	}{
		{"FFmpeg", cfg.Render.FFmpegBinary, false},
		{"FFprobe", cfg.Render.FFprobeBinary, false},
		{"Python", cfg.Transcriber.Python, false},
	}

	results := make([]Result, 0, len(binaries))
	for _, bin := range binaries {
		command := strings.TrimSpace(bin.command)
		result := Result{Name: bin.name, Optional: bin.optional}
		switch {
		case command == "":
			result.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(command); err != nil {
				result.Detail = fmt.Sprintf("binary %q not found", command)
			} else {
				result.Passed = true
				result.Detail = command
			}
		}
		results = append(results, result)
	}
	return results
}

// CheckTranscriberScript verifies the transcription script file exists.
func CheckTranscriberScript(cfg config.Transcriber) Result {
	const name = "Transcriber script"
	script := strings.TrimSpace(cfg.Script)
	if script == "" {
		return Result{Name: name, Detail: "script path not configured"}
	}
	info, err := os.Stat(script)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", script, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", script)}
	}
	return Result{Name: name, Passed: true, Detail: script}
}

// CheckChat verifies the chat endpoint is reachable and the key valid.
func CheckChat(ctx context.Context, cfg config.Chat) Result {
	const name = "Chat API"
	if cfg.APIKey == "" {
		return Result{Name: name, Optional: true, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client := chat.New(cfg, nil)
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Optional: true, Detail: summarizeChatError(err)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: "API reachable"}
}

func summarizeChatError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
