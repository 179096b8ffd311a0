package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/silexa/hephaestus/internal/telemetry"
)

func TestResolveManifestSkipsWhenAllowUnsigned(t *testing.T) {
	req := Request{AllowUnsigned: true, TimeoutS: 5, MaxRetries: 2, ManifestPattern: "*.sha256"}
	manifest, err := resolveManifest(context.Background(), telemetry.NewDisabled(), req, &http.Client{}, nil)
	if err != nil {
		t.Fatalf("resolveManifest: %v", err)
	}
	if manifest != nil {
		t.Fatalf("expected a nil manifest so Install skips verifyChecksum, got %v", manifest)
	}
}

func TestResolveManifestFailsClosedWithoutAllowUnsigned(t *testing.T) {
	req := Request{AllowUnsigned: false, TimeoutS: 5, MaxRetries: 2, ManifestPattern: "*.sha256"}
	_, err := resolveManifest(context.Background(), telemetry.NewDisabled(), req, &http.Client{}, nil)
	if _, ok := err.(*ManifestMissing); !ok {
		t.Fatalf("expected *ManifestMissing, got %T: %v", err, err)
	}
}

func TestResolveManifestDownloadsAndParsesMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("deadbeef  widgets.whl\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	req := Request{TimeoutS: 5, MaxRetries: 2, ManifestPattern: "*.sha256", Destination: dir}
	assets := []Asset{{Name: "widgets.whl.sha256", BrowserDownloadURL: srv.URL}}

	manifest, err := resolveManifest(context.Background(), telemetry.NewDisabled(), req, srv.Client(), assets)
	if err != nil {
		t.Fatalf("resolveManifest: %v", err)
	}
	if manifest["widgets.whl"] != "deadbeef" {
		t.Fatalf("got %v", manifest)
	}
}

func TestResolveSigstoreSkipsWhenNotRequired(t *testing.T) {
	req := Request{RequireSigstore: false, SigstorePattern: "*.sigstore"}
	verdict, path, err := resolveSigstore(context.Background(), telemetry.NewDisabled(), req, &http.Client{}, nil, "")
	if err != nil {
		t.Fatalf("resolveSigstore: %v", err)
	}
	if verdict != nil || path != "" {
		t.Fatalf("expected no verdict when bundle absent and not required, got %+v %q", verdict, path)
	}
}

func TestResolveSigstoreFailsClosedWhenRequired(t *testing.T) {
	req := Request{RequireSigstore: true, SigstorePattern: "*.sigstore"}
	_, _, err := resolveSigstore(context.Background(), telemetry.NewDisabled(), req, &http.Client{}, nil, "")
	if _, ok := err.(*SigstoreMissing); !ok {
		t.Fatalf("expected *SigstoreMissing, got %T: %v", err, err)
	}
}
