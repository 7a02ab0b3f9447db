package workflow_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/stage"
	"clipper/internal/testsupport"
	"clipper/internal/workflow"
)

type fakeStage struct {
	name    string
	execErr error

	mu       sync.Mutex
	executed []int64
}

func (f *fakeStage) Prepare(ctx context.Context, job *queue.Job) error { return nil }

func (f *fakeStage) Execute(ctx context.Context, job *queue.Job) error {
	f.mu.Lock()
	f.executed = append(f.executed, job.ID)
	f.mu.Unlock()
	return f.execErr
}

func (f *fakeStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func (f *fakeStage) executions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(25 * time.Millisecond)
	}
	job, _ := store.GetByID(context.Background(), id)
	t.Fatalf("job %d never reached %s, stuck at %s (%s)", id, want, job.Status, job.ErrorMessage)
	return nil
}

func TestManagerRunsJobThroughAllStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := &fakeStage{name: "first"}
	second := &fakeStage{name: "second"}
	manager := workflow.NewManager(cfg, store, logging.NewNop(), []workflow.Stage{
		{Name: "first", Handler: first},
		{Name: "second", Handler: second},
	})

	job, err := store.NewLocalJob(context.Background(), "/tmp/source.mp4", "en", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer manager.Stop()

	done := waitForStatus(t, store, job.ID, queue.StatusDone)
	if first.executions() != 1 || second.executions() != 1 {
		t.Fatalf("stage executions = %d/%d, want 1/1", first.executions(), second.executions())
	}
	if store.Capabilities().Telemetry && done.ProgressPercent != 100 {
		t.Errorf("done job progress = %v, want 100", done.ProgressPercent)
	}
	if done.ErrorMessage != "" {
		t.Errorf("done job carries error message %q", done.ErrorMessage)
	}
}

func TestManagerMarksJobFailedOnStageError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	broken := &fakeStage{
		name:    "transcribe",
		execErr: services.Wrap(services.ErrExternalTool, "transcribe", "run", "model not found", nil),
	}
	never := &fakeStage{name: "select"}
	manager := workflow.NewManager(cfg, store, logging.NewNop(), []workflow.Stage{
		{Name: "transcribe", Handler: broken},
		{Name: "select", Handler: never},
	})

	job, err := store.NewLocalJob(context.Background(), "/tmp/source.mp4", "en", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer manager.Stop()

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if !strings.Contains(failed.ErrorMessage, "model not found") {
		t.Errorf("error message %q missing failure detail", failed.ErrorMessage)
	}
	if never.executions() != 0 {
		t.Errorf("later stage ran %d times after failure", never.executions())
	}
}

func TestManagerStartRejectsDoubleStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, logging.NewNop(), []workflow.Stage{
		{Name: "noop", Handler: &fakeStage{name: "noop"}},
	})

	if err := manager.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
	manager.Stop()
	// Stop again is a no-op.
	manager.Stop()
	if manager.Running() {
		t.Fatal("manager still running after Stop")
	}
}

func TestManagerRequiresStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, logging.NewNop(), nil)
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("Start without stages should fail")
	}
}
