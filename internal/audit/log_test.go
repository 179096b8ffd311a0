package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppendWritesNewlineTerminatedJSON(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := l.Append(Record{
		Timestamp: ts,
		RunID:     "run-1",
		Principal: "alice",
		Protocol:  ProtocolCLI,
		Operation: "cleanup",
		Outcome:   OutcomeSuccess,
		Parameters: map[string]any{
			"token": "shh",
			"root":  "/tmp/ws",
		},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	path := filepath.Join(dir, "2026-01-02.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	if data[len(data)-1] != '\n' {
		t.Fatalf("expected final newline, got %q", string(data))
	}

	var rec Record
	if err := json.Unmarshal(data[:len(data)-1], &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.Parameters["token"] != "***redacted***" {
		t.Fatalf("expected token redacted, got %v", rec.Parameters["token"])
	}
	if rec.Parameters["root"] != "/tmp/ws" {
		t.Fatalf("expected root preserved, got %v", rec.Parameters["root"])
	}
}

func TestAppendRotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	day1 := time.Date(2026, 1, 2, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	if err := l.Append(Record{Timestamp: day1, Operation: "a", Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("append day1: %v", err)
	}
	if err := l.Append(Record{Timestamp: day2, Operation: "b", Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("append day2: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "2026-01-02.jsonl")); err != nil {
		t.Fatalf("expected day1 file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2026-01-03.jsonl")); err != nil {
		t.Fatalf("expected day2 file: %v", err)
	}
}
