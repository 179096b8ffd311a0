package release

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/silexa/hephaestus/internal/telemetry"
)

// downloadState mirrors the per-attempt state machine of spec.md §4.4:
// Init -> Connecting -> Streaming -> Flushing -> Done, with Retry/Failed
// transitions on error.
type downloadState string

const (
	stateInit       downloadState = "init"
	stateConnecting downloadState = "connecting"
	stateStreaming  downloadState = "streaming"
	stateFlushing   downloadState = "flushing"
	stateDone       downloadState = "done"
)

// sanitizeAssetName strips path separators and parent-traversal components
// from a release asset's reported name before it ever touches the
// filesystem. Returns the sanitized name and whether it changed.
func sanitizeAssetName(name string) (string, bool) {
	clean := filepath.Base(filepath.Clean(strings.ReplaceAll(name, "\\", "/")))
	if clean == "." || clean == ".." || clean == "" {
		clean = "asset"
	}
	return clean, clean != name
}

// resolveUnderDestination joins name onto destDir and refuses any result
// that escapes destDir, per the security invariant of spec.md §4.4.
func resolveUnderDestination(destDir, name string) (string, error) {
	full := filepath.Join(destDir, name)
	rel, err := filepath.Rel(destDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("release: asset %q escapes destination", name)
	}
	return full, nil
}

// downloadToFile streams url into destDir/name with the same retry and
// backoff schedule as metadata fetch, enforcing timeout_s per attempt. It
// is used for the primary asset, the checksum manifest, and the sigstore
// bundle alike.
func downloadToFile(ctx context.Context, sink *telemetry.Sink, req Request, client *http.Client, url, destDir, name string) (string, error) {
	sanitized, changed := sanitizeAssetName(name)
	if changed {
		_ = sink.Emit(ctx, "release.asset.sanitised", telemetry.SeverityWarn, "asset name sanitised", map[string]any{
			"original": name, "sanitised": sanitized,
		})
	}
	dest, err := resolveUnderDestination(destDir, sanitized)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("release: prepare destination: %w", err)
	}

	state := stateInit
	attempt := 0
	permanent := false
	var written int64
	op := func() error {
		attempt++
		state = stateConnecting

		attemptCtx, cancel := context.WithTimeout(ctx, req.timeout())
		defer cancel()

		httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
		if err != nil {
			permanent = true
			return backoff.Permanent(err)
		}
		if req.Token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+req.Token)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			state = stateInit
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			permanent = true
			return backoff.Permanent(&TokenExpired{Cause: fmt.Errorf("download: status %d", resp.StatusCode)})
		}
		if resp.StatusCode == http.StatusNotFound {
			permanent = true
			return backoff.Permanent(&NotFound{Repository: req.Repository, Tag: req.Tag})
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			permanent = true
			return backoff.Permanent(fmt.Errorf("release: download %s: status %d", url, resp.StatusCode))
		}
		if resp.StatusCode >= 500 {
			state = stateInit
			return fmt.Errorf("release: download %s: status %d", url, resp.StatusCode)
		}

		state = stateStreaming
		tmp, err := os.CreateTemp(destDir, ".hephaestus-dl-*")
		if err != nil {
			permanent = true
			return backoff.Permanent(err)
		}
		n, copyErr := io.Copy(tmp, resp.Body)
		written = n
		closeErr := tmp.Close()
		if copyErr != nil {
			os.Remove(tmp.Name())
			state = stateInit
			return copyErr
		}
		if closeErr != nil {
			os.Remove(tmp.Name())
			permanent = true
			return backoff.Permanent(closeErr)
		}

		state = stateFlushing
		if err := os.Rename(tmp.Name(), dest); err != nil {
			os.Remove(tmp.Name())
			permanent = true
			return backoff.Permanent(err)
		}
		state = stateDone
		return nil
	}

	_ = sink.Emit(ctx, "release.download.start", telemetry.SeverityInfo, "download starting", map[string]any{
		"asset": sanitized, "url": url, "destination": dest,
	})

	b := backoffPolicy(req)
	err = backoff.Retry(func() error {
		err := op()
		if err != nil && state != stateDone {
			_ = sink.Emit(ctx, "release.network.retry", telemetry.SeverityWarn, "download retry", map[string]any{
				"attempt": attempt, "max_retries": req.MaxRetries, "state": string(state),
			})
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if permanent {
			return "", err
		}
		return "", &NetworkFailed{Attempts: attempt, Cause: err}
	}

	_ = sink.Emit(ctx, "release.download.complete", telemetry.SeverityInfo, "download complete", map[string]any{
		"asset": sanitized, "bytes": written, "path": dest,
	})
	return dest, nil
}
