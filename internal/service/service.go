// Package service implements the transport-agnostic facade (component
// C9): one pure execute_X function per operation, each dispatched through
// the task manager so REST and gRPC share a single decision path.
// Grounded on apps/ReleaseParty/backend/internal/api/server.go's handler
// shape, generalized so the handler itself becomes transport-agnostic.
package service

import (
	"context"
	"time"

	"github.com/silexa/hephaestus/internal/cleanup"
	"github.com/silexa/hephaestus/internal/guardrails"
	"github.com/silexa/hephaestus/internal/release"
	"github.com/silexa/hephaestus/internal/task"
	"github.com/silexa/hephaestus/internal/telemetry"
)

// Facade owns the shared task manager and telemetry sink every execute_X
// function dispatches through.
type Facade struct {
	Tasks *task.Manager
	Sink  *telemetry.Sink
}

// New builds a Facade over an already-constructed task manager.
func New(tasks *task.Manager, sink *telemetry.Sink) *Facade {
	if sink == nil {
		sink = telemetry.NewDisabled()
	}
	return &Facade{Tasks: tasks, Sink: sink}
}

// ExecuteGuardRails submits a guard-rails run and returns its task id
// immediately; callers observe progress/result via the task manager's
// Get/Stream, per spec.md §4.9.
func (f *Facade) ExecuteGuardRails(opts guardrails.Options, timeout time.Duration) (string, error) {
	op := func(ctx context.Context, progress func(float64, string)) (any, error) {
		return guardrails.Run(ctx, f.Sink, opts, progress)
	}
	return f.Tasks.Submit("guard-rails", timeout, op)
}

// ExecuteCleanup submits a cleanup sweep and returns its task id.
func (f *Facade) ExecuteCleanup(opts cleanup.Options, channel cleanup.ConfirmationChannel, timeout time.Duration) (string, error) {
	op := func(ctx context.Context, progress func(float64, string)) (any, error) {
		return cleanup.Run(ctx, f.Sink, opts, channel, progress)
	}
	return f.Tasks.Submit("cleanup", timeout, op)
}

// ExecuteReleaseInstall submits a release install and returns its task id.
func (f *Facade) ExecuteReleaseInstall(req release.Request, timeout time.Duration) (string, error) {
	op := func(ctx context.Context, progress func(float64, string)) (any, error) {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return release.Install(ctx, f.Sink, req)
	}
	return f.Tasks.Submit("release-install", timeout, op)
}

// Status returns the current snapshot for a submitted task id, shared
// verbatim by both REST's GET /api/v1/tasks/{id} and gRPC's GetTask.
func (f *Facade) Status(id string) (task.Snapshot, bool) {
	return f.Tasks.Get(id)
}

// Stream returns a snapshot channel for a submitted task id, shared by
// REST's SSE endpoint and gRPC's streaming RPC — they differ only in
// frame format, per spec.md §4.9.
func (f *Facade) Stream(ctx context.Context, id string) (<-chan task.Snapshot, bool) {
	return f.Tasks.Stream(ctx, id)
}

// Cancel cancels a submitted task id.
func (f *Facade) Cancel(id string) {
	f.Tasks.Cancel(id)
}
