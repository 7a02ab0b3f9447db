package testsupport

import (
	"path/filepath"
	"testing"

	"clipper/internal/config"
)

// NewConfig returns a validated configuration rooted in a per-test
// temporary directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(root, "staging")
	cfg.Paths.ExportDir = filepath.Join(root, "exports")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 2
	cfg.Workflow.StaleTimeout = 3

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config should validate: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}
