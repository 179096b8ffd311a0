package safety

import "testing"

func TestIsDangerousMatchesFixedSet(t *testing.T) {
	for _, p := range []string{"/", "/etc", "/etc/", "/home", "/root"} {
		if !IsDangerous(p) {
			t.Fatalf("expected %q to be dangerous", p)
		}
	}
}

func TestIsDangerousAllowsOrdinaryWorkspace(t *testing.T) {
	if IsDangerous("/tmp/workspace/project") {
		t.Fatalf("expected ordinary workspace path to be safe")
	}
}

func TestIsUnder(t *testing.T) {
	if !IsUnder("/tmp/ws", "/tmp/ws/sub/dir") {
		t.Fatalf("expected nested path to be under root")
	}
	if IsUnder("/tmp/ws", "/tmp/other") {
		t.Fatalf("expected sibling path to not be under root")
	}
	if !IsUnder("/tmp/ws", "/tmp/ws") {
		t.Fatalf("expected root to be under itself")
	}
}
