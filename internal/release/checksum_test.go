package release

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseManifestParsesShaSumLines(t *testing.T) {
	manifest, err := parseManifest(strings.NewReader(
		"deadbeef  pkg-1.0-wheelhouse.sha256\n" +
			"# a comment\n" +
			"\n" +
			"cafef00d  other-file.tar.gz\n",
	))
	if err != nil {
		t.Fatalf("parseManifest: %v", err)
	}
	if manifest["pkg-1.0-wheelhouse.sha256"] != "deadbeef" {
		t.Fatalf("got %v", manifest)
	}
	if manifest["other-file.tar.gz"] != "cafef00d" {
		t.Fatalf("got %v", manifest)
	}
}

func TestVerifyChecksumDeletesFileOnMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := verifyChecksum(path, "asset.bin", map[string]string{"asset.bin": "0000"})
	var mismatch *ChecksumMismatch
	if e, ok := err.(*ChecksumMismatch); ok {
		mismatch = e
	}
	if mismatch == nil {
		t.Fatalf("expected ChecksumMismatch, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("expected mismatched asset to be deleted")
	}
}

func TestVerifyChecksumAcceptsMatchingSum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum, err := sha256OfFile(path)
	if err != nil {
		t.Fatalf("sha256OfFile: %v", err)
	}

	got, err := verifyChecksum(path, "asset.bin", map[string]string{"asset.bin": sum})
	if err != nil {
		t.Fatalf("verifyChecksum: %v", err)
	}
	if got != sum {
		t.Fatalf("got %q want %q", got, sum)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("matching asset should survive: %v", statErr)
	}
}
