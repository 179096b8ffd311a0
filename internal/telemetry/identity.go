package telemetry

import "github.com/google/uuid"

// RunIdentity binds a run id and an operation id for the lifetime of one
// top-level invocation. It is created once at the entry of a command or API
// call and propagated by value into every telemetry event and audit record.
type RunIdentity struct {
	RunID       string
	OperationID string
}

// NewRunIdentity mints a fresh identity pair.
func NewRunIdentity(operation string) RunIdentity {
	return RunIdentity{
		RunID:       uuid.NewString(),
		OperationID: operation + "-" + uuid.NewString(),
	}
}
