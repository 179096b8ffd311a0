package release

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/silexa/hephaestus/internal/telemetry"
)

// archiveEntry is the common shape extractWheelhouse needs from either a
// zip.File or a tar.Header: enough to resolve a safe target path and copy
// bytes, without extractWheelhouse itself knowing which archive format
// produced it.
type archiveEntry struct {
	name  string
	isDir bool
	mode  fs.FileMode
	open  func() (io.ReadCloser, error)
}

// extractWheelhouse extracts a zip- or tar.gz-format release archive (the
// spec names both `*.zip` and `*-wheelhouse.tar.gz` asset conventions) to
// destination/wheelhouse and returns the set of wheel files found inside,
// per spec.md §4.4 step 7. Every archive entry is resolved under the
// wheelhouse root; a path that would escape it is rejected rather than
// silently clamped.
func extractWheelhouse(ctx context.Context, sink *telemetry.Sink, archivePath, destination string) (string, []string, error) {
	wheelhouse := filepath.Join(destination, "wheelhouse")
	if err := os.MkdirAll(wheelhouse, 0o755); err != nil {
		return "", nil, fmt.Errorf("release: create wheelhouse: %w", err)
	}

	entries, closeArchive, err := openArchive(archivePath)
	if err != nil {
		return "", nil, err
	}
	defer closeArchive()

	var wheels []string
	for {
		entry, err := entries()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("release: read archive: %w", err)
		}
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}

		target, err := resolveUnderDestination(wheelhouse, entry.name)
		if err != nil {
			continue
		}
		if entry.isDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", nil, err
		}
		if err := extractEntry(entry, target); err != nil {
			return "", nil, err
		}
		if strings.EqualFold(filepath.Ext(target), ".whl") {
			wheels = append(wheels, target)
		}
	}

	_ = sink.Emit(ctx, "release.install.start", telemetry.SeverityInfo, "extracted wheelhouse", map[string]any{
		"destination": destination, "wheelhouse": wheelhouse, "wheel_count": len(wheels),
	})
	return wheelhouse, wheels, nil
}

// openArchive picks the archive format by file extension and returns an
// entry iterator (io.EOF when exhausted) plus a close func for the
// underlying file handles.
func openArchive(archivePath string) (func() (archiveEntry, error), func() error, error) {
	lower := strings.ToLower(archivePath)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return openTarGz(archivePath)
	}
	return openZip(archivePath)
}

func openZip(archivePath string) (func() (archiveEntry, error), func() error, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("release: open archive: %w", err)
	}
	i := 0
	next := func() (archiveEntry, error) {
		if i >= len(r.File) {
			return archiveEntry{}, io.EOF
		}
		f := r.File[i]
		i++
		return archiveEntry{
			name:  f.Name,
			isDir: f.FileInfo().IsDir(),
			mode:  f.Mode().Perm(),
			open:  func() (io.ReadCloser, error) { return f.Open() },
		}, nil
	}
	return next, r.Close, nil
}

func openTarGz(archivePath string) (func() (archiveEntry, error), func() error, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("release: open archive: %w", err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("release: open archive: %w", err)
	}
	tr := tar.NewReader(gz)
	next := func() (archiveEntry, error) {
		hdr, err := tr.Next()
		if err != nil {
			return archiveEntry{}, err
		}
		return archiveEntry{
			name:  hdr.Name,
			isDir: hdr.Typeflag == tar.TypeDir,
			mode:  fs.FileMode(hdr.Mode).Perm(),
			open:  func() (io.ReadCloser, error) { return io.NopCloser(tr), nil },
		}, nil
	}
	closeFn := func() error {
		gzErr := gz.Close()
		fErr := f.Close()
		if gzErr != nil {
			return gzErr
		}
		return fErr
	}
	return next, closeFn, nil
}

func extractEntry(entry archiveEntry, target string) error {
	src, err := entry.open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, entry.mode|0o600)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// installWheels invokes the platform wheel-installation command against
// the gathered wheel paths.
func installWheels(ctx context.Context, sink *telemetry.Sink, wheels []string) error {
	if len(wheels) == 0 {
		return nil
	}
	args := append([]string{"install", "--no-index", "--find-links", filepath.Dir(wheels[0])}, wheels...)
	cmd := exec.CommandContext(ctx, "pip", args...)
	_ = sink.Emit(ctx, "release.install.invoke", telemetry.SeverityInfo, "invoking wheel install", map[string]any{
		"wheel_count": len(wheels),
	})
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("release: wheel install failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
