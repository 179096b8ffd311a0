package service

import (
	"context"
	"testing"
	"time"

	"github.com/silexa/hephaestus/internal/cleanup"
	"github.com/silexa/hephaestus/internal/guardrails"
	"github.com/silexa/hephaestus/internal/release"
	"github.com/silexa/hephaestus/internal/task"
)

func TestExecuteGuardRailsSubmitsAndCompletes(t *testing.T) {
	tasks := task.NewManager(2, 10, time.Hour)
	defer tasks.Close()
	f := New(tasks, nil)

	opts := guardrails.Options{SkipCleanup: true}
	t.Setenv("PATH", t.TempDir()) // every legacy tool degrades to ToolMissing

	id, err := f.ExecuteGuardRails(opts, 0)
	if err != nil {
		t.Fatalf("ExecuteGuardRails: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := f.Status(id)
		if ok && snap.Status == task.StatusSucceeded {
			result, ok := snap.Result.(guardrails.Result)
			if !ok {
				t.Fatalf("expected a guardrails.Result, got %T", snap.Result)
			}
			if result.Success {
				t.Fatalf("expected failure with no tools on PATH")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("guard-rails task did not complete in time")
}

func TestExecuteCleanupSubmitsAndCompletes(t *testing.T) {
	tasks := task.NewManager(2, 10, time.Hour)
	defer tasks.Close()
	f := New(tasks, nil)

	root := t.TempDir()
	opts := cleanup.Options{Root: root, DryRun: true}

	id, err := f.ExecuteCleanup(opts, nil, 0)
	if err != nil {
		t.Fatalf("ExecuteCleanup: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := f.Status(id)
		if ok && isTerminal(snap.Status) {
			if snap.Status != task.StatusSucceeded {
				t.Fatalf("expected success, got %v err=%v", snap.Status, snap.Err)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("cleanup task did not complete in time")
}

func isTerminal(s task.Status) bool {
	switch s {
	case task.StatusSucceeded, task.StatusFailed, task.StatusCancelled, task.StatusTimedOut:
		return true
	default:
		return false
	}
}

func TestExecuteReleaseInstallSurfacesValidationErrorAsFailedTask(t *testing.T) {
	tasks := task.NewManager(2, 10, time.Hour)
	defer tasks.Close()
	f := New(tasks, nil)

	id, err := f.ExecuteReleaseInstall(release.Request{}, 0)
	if err != nil {
		t.Fatalf("ExecuteReleaseInstall: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := f.Status(id)
		if ok && isTerminal(snap.Status) {
			if snap.Status != task.StatusFailed || snap.Err == nil {
				t.Fatalf("expected a failed task from an invalid request, got %+v", snap)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("release install task did not complete in time")
}

func TestCancelStopsASubmittedTask(t *testing.T) {
	tasks := task.NewManager(1, 10, time.Hour)
	defer tasks.Close()
	f := New(tasks, nil)

	started := make(chan struct{})
	id, err := f.Tasks.Submit("demo", 0, func(ctx context.Context, progress func(float64, string)) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	f.Cancel(id)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := f.Status(id)
		if ok && snap.Status == task.StatusCancelled {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task was not cancelled in time")
}
