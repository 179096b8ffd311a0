package plugin

import "testing"

func TestCompatibleVersionComparesMajorMinorOnly(t *testing.T) {
	if !compatibleVersion("1.4", "1.4.9") {
		t.Fatalf("expected 1.4 to be compatible with 1.4.9")
	}
	if compatibleVersion("1.4", "1.5.0") {
		t.Fatalf("expected 1.4 to be incompatible with 1.5.0")
	}
}

func TestMajorMinorTruncatesPatch(t *testing.T) {
	if got := majorMinor("2.3.7"); got != "2.3" {
		t.Fatalf("got %q", got)
	}
	if got := majorMinor("2.3"); got != "2.3" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveDetectsDependencyCycle(t *testing.T) {
	m := &Marketplace{}
	inProgress := map[string]bool{"a": true, "b": true}
	_, err := m.resolve("a", inProgress)
	if _, ok := err.(*DependencyCycle); !ok {
		t.Fatalf("expected *DependencyCycle, got %T: %v", err, err)
	}
}
