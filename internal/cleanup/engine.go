package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/silexa/hephaestus/internal/telemetry"
)

// ErrAborted is returned when the confirmation state machine lands on
// StateAborted — a safety refusal, not a failure (spec.md §7).
var ErrAborted = errors.New("cleanup: aborted (confirmation required)")

// ProgressFunc reports fractional progress and a human detail string,
// consumed by the task manager (component C8) when cleanup runs as a
// background task.
type ProgressFunc func(fraction float64, detail string)

// Run executes the three-phase cleanup contract of spec.md §4.3:
// normalize & validate, preview, execute. sink and channel may be nil.
func Run(ctx context.Context, sink *telemetry.Sink, opts Options, channel ConfirmationChannel, progress ProgressFunc) (Report, error) {
	if sink == nil {
		sink = telemetry.NewDisabled()
	}
	if progress == nil {
		progress = func(float64, string) {}
	}

	normalized, err := Normalize(opts)
	if err != nil {
		return Report{}, err
	}
	opts = normalized

	if Resolve(opts, channel) != StateConfirmed {
		return Report{}, ErrAborted
	}

	_ = sink.Emit(ctx, "cleanup.run.start", telemetry.SeverityInfo, "cleanup started", map[string]any{
		"root":    opts.Root,
		"dry_run": opts.DryRun,
	})
	start := time.Now()

	report := Report{}
	roots := append([]string{opts.Root}, opts.ExtraPaths...)
	for i, root := range roots {
		progress(float64(i)/float64(len(roots)), "scanning "+root)
		if err := previewRoot(ctx, sink, opts, root, &report); err != nil {
			return Report{}, err
		}
	}

	if !opts.DryRun {
		if err := execute(ctx, sink, &report, progress); err != nil {
			return Report{}, err
		}
	}

	sink.ObservePhase(ctx, "hephaestus.cleanup.run.duration", time.Since(start).Seconds())
	_ = sink.Emit(ctx, "cleanup.run.complete", telemetry.SeverityInfo, "cleanup complete", map[string]any{
		"removed": report.Removed,
		"skipped": report.Skipped,
		"errors":  report.Errors,
	})

	if opts.AuditManifestPath != "" {
		if err := WriteManifest(opts.AuditManifestPath, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// previewRoot walks root, recording a preview entry for every matched
// target and protecting .venv/**/site-packages/** unconditionally.
func previewRoot(ctx context.Context, sink *telemetry.Sink, opts Options, root string, report *Report) error {
	info, err := os.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cleanup: stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			report.record(path, ActionError, err.Error())
			_ = sink.Emit(ctx, "cleanup.path.error", telemetry.SeverityError, "walk error", map[string]any{
				"path": path, "reason": err.Error(),
			})
			return nil
		}
		if path == root {
			return nil
		}
		if isProtectedSitePackages(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && d.Name() == ".venv" {
			if !opts.IncludePoetryEnv {
				// Protect the whole virtualenv by default: nothing inside a
				// .venv is swept unless the caller opts in, and even then
				// site-packages stays protected (checked above on every
				// descendant).
				return filepath.SkipDir
			}
			// Opted in: keep walking into it so individual cache-like
			// entries can still match below, without ever bulk-deleting
			// the .venv directory itself.
			return nil
		}
		if !matches(opts, d.Name()) {
			return nil
		}
		report.record(path, ActionPreviewed, "")
		_ = sink.Emit(ctx, "cleanup.path.preview", telemetry.SeverityInfo, "preview target", map[string]any{
			"path": path,
		})
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
}

// execute deletes every previewed target, converting its entry to removed
// or error in place. Per-entry I/O errors increment Errors and do not halt
// the sweep.
func execute(ctx context.Context, sink *telemetry.Sink, report *Report, progress ProgressFunc) error {
	previewed := make([]int, 0, len(report.Entries))
	for i, e := range report.Entries {
		if e.Action == ActionPreviewed {
			previewed = append(previewed, i)
		}
	}
	for n, idx := range previewed {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress(float64(n)/float64(len(previewed)), "removing "+report.Entries[idx].Path)

		path := report.Entries[idx].Path
		if err := os.RemoveAll(path); err != nil {
			report.Entries[idx].Action = ActionError
			report.Entries[idx].Reason = err.Error()
			report.Errors++
			_ = sink.Emit(ctx, "cleanup.path.error", telemetry.SeverityError, "remove failed", map[string]any{
				"path": path, "reason": err.Error(),
			})
			continue
		}
		report.Entries[idx].Action = ActionRemoved
		report.Removed++
		_ = sink.Emit(ctx, "cleanup.path.removed", telemetry.SeverityInfo, "removed", map[string]any{
			"path": path,
		})
	}
	return nil
}
