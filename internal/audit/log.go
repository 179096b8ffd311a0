// Package audit implements the append-only audit log (component C2): one
// JSON object per line, newline-terminated, flushed to durable storage
// before Append returns. Files are named by UTC date; rotation is a simple
// date change. Concurrent writers are serialized by a per-file mutex,
// matching the plain, explicit style of the teacher's own
// internal/store.Store (apps/ReleaseParty/backend/internal/store/store.go).
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log writes Records to a dated JSON-lines file under dir.
type Log struct {
	dir      string
	denyList map[string]struct{}

	mu       sync.Mutex
	fileDate string
	file     *os.File
}

// Open prepares the audit directory. The underlying file is opened lazily
// on the first Append (and reopened whenever the UTC date rolls over).
func Open(dir string) (*Log, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}
	return &Log{dir: dir, denyList: defaultDenyList}, nil
}

// WithDenyList overrides the parameter redaction deny-list.
func (l *Log) WithDenyList(keys []string) *Log {
	deny := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		deny[normalizeKey(k)] = struct{}{}
	}
	l.denyList = deny
	return l
}

// Close releases the underlying file handle, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Append serializes rec as one JSON line, writes it, and fsyncs before
// returning. A crash mid-record leaves no partially-readable line: the full
// line is buffered in memory and issued as a single Write call, then
// flushed with Sync.
func (l *Log) Append(rec Record) error {
	rec.Parameters = redact(rec.Parameters, l.denyList)
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.fileForLocked(rec.Timestamp)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("audit: sync record: %w", err)
	}
	return nil
}

// fileForLocked returns the open file for ts's UTC date, rotating if the
// date has changed since the last Append. Caller must hold l.mu.
func (l *Log) fileForLocked(ts time.Time) (*os.File, error) {
	date := ts.UTC().Format("2006-01-02")
	if l.file != nil && l.fileDate == date {
		return l.file, nil
	}
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
	path := filepath.Join(l.dir, date+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	l.file = f
	l.fileDate = date
	return f, nil
}
