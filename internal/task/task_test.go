package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSubmitRunsOperationToCompletion(t *testing.T) {
	m := NewManager(2, 10, time.Hour)
	defer m.Close()

	id, err := m.Submit("demo", 0, func(ctx context.Context, progress func(float64, string)) (any, error) {
		progress(0.5, "halfway")
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitForTerminal(t, m, id)
	if snap.Status != StatusSucceeded || snap.Result != "done" {
		t.Fatalf("got %+v", snap)
	}
}

func TestSubmitFailsAtCapacity(t *testing.T) {
	m := NewManager(1, 1, time.Hour)
	defer m.Close()

	block := make(chan struct{})
	_, err := m.Submit("first", 0, func(ctx context.Context, progress func(float64, string)) (any, error) {
		<-block
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}

	_, err = m.Submit("second", 0, func(ctx context.Context, progress func(float64, string)) (any, error) {
		return nil, nil
	})
	if _, ok := err.(*TooManyTasks); !ok {
		t.Fatalf("expected *TooManyTasks, got %v", err)
	}
	close(block)
}

func TestCancelTransitionsRunningTaskToCancelled(t *testing.T) {
	m := NewManager(1, 10, time.Hour)
	defer m.Close()

	started := make(chan struct{})
	id, err := m.Submit("demo", 0, func(ctx context.Context, progress func(float64, string)) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	m.Cancel(id)

	snap := waitForTerminal(t, m, id)
	if snap.Status != StatusCancelled {
		t.Fatalf("got status %v", snap.Status)
	}
}

func TestSubmitTimesOutLongRunningOperation(t *testing.T) {
	m := NewManager(1, 10, time.Hour)
	defer m.Close()

	id, err := m.Submit("demo", 10*time.Millisecond, func(ctx context.Context, progress func(float64, string)) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitForTerminal(t, m, id)
	if snap.Status != StatusTimedOut {
		t.Fatalf("got status %v", snap.Status)
	}
}

func TestCancelOnTerminalTaskIsNoOp(t *testing.T) {
	m := NewManager(1, 10, time.Hour)
	defer m.Close()

	id, err := m.Submit("demo", 0, func(ctx context.Context, progress func(float64, string)) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, m, id)
	m.Cancel(id) // must not panic or change state

	snap, ok := m.Get(id)
	if !ok || snap.Status != StatusSucceeded {
		t.Fatalf("expected terminal state to survive a no-op cancel, got %+v ok=%v", snap, ok)
	}
}

func TestStreamDeliversSnapshotsThenCloses(t *testing.T) {
	m := NewManager(1, 10, time.Hour)
	defer m.Close()

	id, err := m.Submit("demo", 0, func(ctx context.Context, progress func(float64, string)) (any, error) {
		progress(1.0, "done")
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ch, ok := m.Stream(context.Background(), id)
	if !ok {
		t.Fatalf("expected Stream to find the task")
	}
	var last Snapshot
	for snap := range ch {
		last = snap
	}
	if last.Status != StatusSucceeded {
		t.Fatalf("expected the stream to close after a terminal snapshot, got %+v", last)
	}
}

func TestSubmitSurfacesOperationError(t *testing.T) {
	m := NewManager(1, 10, time.Hour)
	defer m.Close()

	id, err := m.Submit("demo", 0, func(ctx context.Context, progress func(float64, string)) (any, error) {
		return nil, errors.New("boom")
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := waitForTerminal(t, m, id)
	if snap.Status != StatusFailed || snap.Err == nil {
		t.Fatalf("got %+v", snap)
	}
}

func waitForTerminal(t *testing.T, m *Manager, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := m.Get(id)
		if ok && snap.Status.terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach a terminal state in time", id)
	return Snapshot{}
}
