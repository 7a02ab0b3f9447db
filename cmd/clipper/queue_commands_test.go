package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	configPath := filepath.Join(root, "config.toml")
	body := fmt.Sprintf(
		"[paths]\nstaging_dir = %q\nexport_dir = %q\nlog_dir = %q\n",
		filepath.Join(root, "staging"),
		filepath.Join(root, "export"),
		filepath.Join(root, "logs"),
	)
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"-c", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusReportsEmptyQueue(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestAddLocalFileThenList(t *testing.T) {
	configPath := writeTestConfig(t)

	source := filepath.Join(t.TempDir(), "keynote.mp4")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, configPath, "add", source, "--style", "hooky", "--max-clips", "2")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Enqueued job 1") || !strings.Contains(out, "ready") {
		t.Fatalf("unexpected add output: %q", out)
	}

	out, err = runCLI(t, configPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "keynote") || !strings.Contains(out, "ready") {
		t.Fatalf("unexpected list output: %q", out)
	}

	out, err = runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "ready") || !strings.Contains(out, "total") {
		t.Fatalf("unexpected status output: %q", out)
	}
}

func TestAddRejectsMissingFile(t *testing.T) {
	configPath := writeTestConfig(t)
	_, err := runCLI(t, configPath, "add", "/nonexistent/talk.mp4")
	if err == nil {
		t.Fatal("expected error for missing source file")
	}
}

func TestAddRemoteSourceStaysPending(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "add", "https://example.com/talk.mp4", "--title", "Talk")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "pending") {
		t.Fatalf("remote source should enqueue as pending, got %q", out)
	}
}

func TestAddParsesPinnedWindows(t *testing.T) {
	windows, err := parseWindows([]string{"30-75", " 90 - 140.5 "})
	if err != nil {
		t.Fatalf("parseWindows: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	if windows[0].Start != 30 || windows[0].End != 75 {
		t.Errorf("first window = [%v, %v], want [30, 75]", windows[0].Start, windows[0].End)
	}
	if windows[1].Start != 90 || windows[1].End != 140.5 {
		t.Errorf("second window = [%v, %v], want [90, 140.5]", windows[1].Start, windows[1].End)
	}

	for _, bad := range []string{"banana", "30", "75-30", "a-b"} {
		if _, err := parseWindows([]string{bad}); err == nil {
			t.Errorf("expected error for window %q", bad)
		}
	}
}

func TestAddWindowFlag(t *testing.T) {
	configPath := writeTestConfig(t)
	source := filepath.Join(t.TempDir(), "talk.mp4")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := runCLI(t, configPath, "add", source, "--window", "banana"); err == nil {
		t.Fatal("expected error for malformed window")
	}

	out, err := runCLI(t, configPath, "add", source, "--window", "30-75", "--window", "120-160")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Enqueued job") {
		t.Fatalf("unexpected add output: %q", out)
	}
}

func TestRetryWithNothingFailed(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "retry")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !strings.Contains(out, "Requeued 0 job(s)") {
		t.Fatalf("unexpected retry output: %q", out)
	}
}

func TestRetryRejectsBadID(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCLI(t, configPath, "retry", "abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestClearAllRemovesJobs(t *testing.T) {
	configPath := writeTestConfig(t)

	source := filepath.Join(t.TempDir(), "clip-me.mp4")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, configPath, "add", source); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, configPath, "clear", "--all")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !strings.Contains(out, "Removed 1 job(s)") {
		t.Fatalf("unexpected clear output: %q", out)
	}

	out, err = runCLI(t, configPath, "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("queue should be empty after clear --all, got %q", out)
	}
}

func TestShowUnknownJob(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCLI(t, configPath, "show", "42"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCLI(t, configPath, "list", "--status", "bogus"); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	configPath := writeTestConfig(t)
	target := filepath.Join(t.TempDir(), "fresh", "config.toml")

	out, err := runCLI(t, configPath, "config", "init", "-o", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	// A second init must refuse to overwrite.
	if _, err := runCLI(t, configPath, "config", "init", "-o", target); err == nil {
		t.Fatal("expected error when target already exists")
	}
}
