package release

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// parseManifest parses a checksum manifest of the conventional
// "<sha256-hex>  <filename>" form (one entry per line, as produced by
// `sha256sum`), keyed by base filename.
func parseManifest(r io.Reader) (map[string]string, error) {
	entries := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		sum := strings.ToLower(fields[0])
		name := filepath.Base(strings.TrimPrefix(fields[len(fields)-1], "*"))
		entries[name] = sum
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("release: parse manifest: %w", err)
	}
	return entries, nil
}

func sha256OfFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// verifyChecksum computes the SHA-256 of assetPath and compares it to the
// manifest entry for assetName. A mismatch deletes assetPath, per spec.md
// §4.4 step 5.
func verifyChecksum(assetPath, assetName string, manifest map[string]string) (string, error) {
	want, ok := manifest[filepath.Base(assetName)]
	if !ok {
		want, ok = manifest[filepath.Base(assetPath)]
	}
	got, err := sha256OfFile(assetPath)
	if err != nil {
		return "", err
	}
	if !ok || !strings.EqualFold(want, got) {
		os.Remove(assetPath)
		return "", &ChecksumMismatch{Asset: assetName, Want: want, Got: got}
	}
	return got, nil
}
