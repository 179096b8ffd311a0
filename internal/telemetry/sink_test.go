package telemetry

import (
	"context"
	"testing"
)

func TestEmitRejectsMissingRequiredKeys(t *testing.T) {
	s := NewDisabled()
	err := s.Emit(context.Background(), "cleanup.path.error", SeverityError, "boom", map[string]any{
		"path": "/tmp/x",
	})
	var violation *SchemaViolation
	if err == nil {
		t.Fatalf("expected SchemaViolation for missing reason key")
	}
	if !errorsAsViolation(err, &violation) {
		t.Fatalf("expected *SchemaViolation, got %T: %v", err, err)
	}
	if violation.Missing[0] != "reason" {
		t.Fatalf("expected missing=[reason], got %v", violation.Missing)
	}
}

func errorsAsViolation(err error, target **SchemaViolation) bool {
	v, ok := err.(*SchemaViolation)
	if ok {
		*target = v
	}
	return ok
}

func TestEmitAllowsUnknownEventNames(t *testing.T) {
	s := NewDisabled()
	if err := s.Emit(context.Background(), "hephaestus.internal.debug", SeverityDebug, "hi", nil); err != nil {
		t.Fatalf("unexpected error for unregistered event: %v", err)
	}
}

func TestScopeFieldsAreInheritedAndOverridden(t *testing.T) {
	s := NewDisabled()
	ctx, done := s.EnterScope(context.Background(), map[string]string{"run_id": "r1", "operation_id": "op1"})
	defer done()

	inner, innerDone := s.EnterScope(ctx, map[string]string{"operation_id": "op2"})
	defer innerDone()

	fields := s.currentFields(inner)
	if fields["run_id"] != "r1" {
		t.Fatalf("expected inherited run_id, got %q", fields["run_id"])
	}
	if fields["operation_id"] != "op2" {
		t.Fatalf("expected overridden operation_id, got %q", fields["operation_id"])
	}
}
