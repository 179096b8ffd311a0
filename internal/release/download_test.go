package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/silexa/hephaestus/internal/telemetry"
)

func TestSanitizeAssetNameStripsTraversal(t *testing.T) {
	got, changed := sanitizeAssetName("../../etc/passwd")
	if got != "passwd" {
		t.Fatalf("got %q", got)
	}
	if !changed {
		t.Fatalf("expected changed=true")
	}
}

func TestSanitizeAssetNameLeavesOrdinaryNamesAlone(t *testing.T) {
	got, changed := sanitizeAssetName("pkg-1.0-wheelhouse.whl")
	if got != "pkg-1.0-wheelhouse.whl" || changed {
		t.Fatalf("got %q changed=%v", got, changed)
	}
}

func TestResolveUnderDestinationRejectsEscape(t *testing.T) {
	if _, err := resolveUnderDestination("/tmp/dest", "../outside"); err == nil {
		t.Fatalf("expected escape to be rejected")
	}
}

func TestResolveUnderDestinationAcceptsOrdinaryName(t *testing.T) {
	got, err := resolveUnderDestination("/tmp/dest", "pkg.whl")
	if err != nil {
		t.Fatalf("resolveUnderDestination: %v", err)
	}
	if got != "/tmp/dest/pkg.whl" {
		t.Fatalf("got %q", got)
	}
}

func TestDownloadToFileStreamsBodyToDestination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wheelhouse-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	req := Request{TimeoutS: 5, MaxRetries: 3}
	path, err := downloadToFile(context.Background(), telemetry.NewDisabled(), req, srv.Client(), srv.URL, dir, "pkg.whl")
	if err != nil {
		t.Fatalf("downloadToFile: %v", err)
	}
	if path == "" {
		t.Fatalf("expected non-empty path")
	}
}

func TestDownloadToFileSurfacesTokenExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	dir := t.TempDir()
	req := Request{TimeoutS: 5, MaxRetries: 3}
	_, err := downloadToFile(context.Background(), telemetry.NewDisabled(), req, srv.Client(), srv.URL, dir, "pkg.whl")
	if _, ok := err.(*TokenExpired); !ok {
		t.Fatalf("expected *TokenExpired, got %T: %v", err, err)
	}
}
