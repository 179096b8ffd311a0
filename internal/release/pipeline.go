// Package release implements the release acquisition pipeline (component
// C4): metadata fetch, asset selection/sanitization, checksum manifest
// verification, download with bounded retries, Sigstore verification with
// identity pinning, extraction, and wheel install. Grounded on
// apps/ReleaseParty/backend/internal/githubops (GitHub release API usage)
// and apps/ReleaseParty/backend/internal/api/server.go's control-flow
// style.
package release

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/silexa/hephaestus/internal/telemetry"
)

// Install runs the full seven-stage pipeline of spec.md §4.4 and returns
// the InstalledRelease on success.
func Install(ctx context.Context, sink *telemetry.Sink, req Request) (InstalledRelease, error) {
	if sink == nil {
		sink = telemetry.NewDisabled()
	}
	if err := req.Validate(); err != nil {
		return InstalledRelease{}, err
	}

	start := time.Now()
	client := &http.Client{}

	meta, err := fetchMetadata(ctx, sink, req)
	if err != nil {
		return InstalledRelease{}, err
	}

	asset, err := selectAsset(meta.Assets, req.AssetPattern)
	if err != nil {
		return InstalledRelease{}, err
	}

	manifest, err := resolveManifest(ctx, sink, req, client, meta.Assets)
	if err != nil {
		return InstalledRelease{}, err
	}

	assetPath, err := downloadToFile(ctx, sink, req, client, asset.BrowserDownloadURL, req.Destination, asset.Name)
	if err != nil {
		return InstalledRelease{}, err
	}

	var sum string
	if manifest != nil {
		sum, err = verifyChecksum(assetPath, asset.Name, manifest)
		if err != nil {
			return InstalledRelease{}, err
		}
	} else {
		// allow_unsigned with no manifest present: record the digest without
		// verifying it against anything.
		sum, err = sha256OfFile(assetPath)
		if err != nil {
			return InstalledRelease{}, err
		}
	}

	verdict, bundlePath, err := resolveSigstore(ctx, sink, req, client, meta.Assets, assetPath)
	if err != nil {
		return InstalledRelease{}, err
	}

	wheelhouse, wheels, err := extractWheelhouse(ctx, sink, assetPath, req.Destination)
	if err != nil {
		return InstalledRelease{}, err
	}
	if err := installWheels(ctx, sink, wheels); err != nil {
		return InstalledRelease{}, err
	}
	_ = sink.Emit(ctx, "release.install.complete", telemetry.SeverityInfo, "install complete", map[string]any{
		"destination": req.Destination, "wheels": wheels, "wheel_count": len(wheels),
	})

	verified := VerifiedAsset{
		Name:            asset.Name,
		BytesPath:       assetPath,
		Size:            asset.Size,
		SHA256:          sum,
		SigstoreBundle:  bundlePath,
		SigstoreVerdict: verdict,
	}
	return InstalledRelease{
		Asset:           verified,
		WheelhouseDir:   wheelhouse,
		InstalledWheels: wheels,
		Duration:        time.Since(start),
	}, nil
}

// resolveManifest implements spec.md §4.4 step 3: locate and download the
// checksum manifest, or fail closed unless allow_unsigned permits skipping
// it.
func resolveManifest(ctx context.Context, sink *telemetry.Sink, req Request, client *http.Client, assets []Asset) (map[string]string, error) {
	asset, err := selectAsset(assets, req.ManifestPattern)
	if err != nil {
		if req.AllowUnsigned {
			_ = sink.Emit(ctx, "release.manifest.skipped", telemetry.SeverityWarn, "no manifest found, allow_unsigned set", map[string]any{
				"reason": "no manifest asset matches pattern", "pattern": req.ManifestPattern,
			})
			// nil (not an empty map) marks "no manifest to verify against" so
			// Install skips verifyChecksum entirely instead of treating every
			// asset as a checksum mismatch.
			return nil, nil
		}
		return nil, &ManifestMissing{Pattern: req.ManifestPattern}
	}
	_ = sink.Emit(ctx, "release.manifest.locate", telemetry.SeverityInfo, "manifest located", map[string]any{"asset": asset.Name})

	path, err := downloadToFile(ctx, sink, req, client, asset.BrowserDownloadURL, req.Destination, asset.Name)
	if err != nil {
		return nil, err
	}
	_ = sink.Emit(ctx, "release.manifest.download", telemetry.SeverityInfo, "manifest downloaded", map[string]any{"asset": asset.Name, "path": path})

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	manifest, err := parseManifest(f)
	if err != nil {
		return nil, err
	}
	sum, err := sha256OfFile(path)
	if err != nil {
		return nil, err
	}
	_ = sink.Emit(ctx, "release.manifest.verified", telemetry.SeverityInfo, "manifest parsed", map[string]any{
		"asset": asset.Name, "sha256": sum, "entries": len(manifest),
	})
	return manifest, nil
}

// resolveSigstore implements spec.md §4.4 step 6.
func resolveSigstore(ctx context.Context, sink *telemetry.Sink, req Request, client *http.Client, assets []Asset, artifactPath string) (*SigstoreVerdict, string, error) {
	asset, err := selectAsset(assets, req.SigstorePattern)
	if err != nil {
		if req.RequireSigstore {
			return nil, "", &SigstoreMissing{Pattern: req.SigstorePattern}
		}
		_ = sink.Emit(ctx, "release.sigstore.missing", telemetry.SeverityWarn, "no sigstore bundle found", map[string]any{
			"pattern": req.SigstorePattern,
		})
		return nil, "", nil
	}
	_ = sink.Emit(ctx, "release.sigstore.locate", telemetry.SeverityInfo, "sigstore bundle located", map[string]any{"asset": asset.Name})

	bundlePath, err := downloadToFile(ctx, sink, req, client, asset.BrowserDownloadURL, req.Destination, asset.Name)
	if err != nil {
		return nil, "", err
	}
	_ = sink.Emit(ctx, "release.sigstore.download", telemetry.SeverityInfo, "sigstore bundle downloaded", map[string]any{"asset": asset.Name, "path": bundlePath})

	verifier, err := newSigstoreVerifier()
	if err != nil {
		return nil, "", &SigstoreVerifyFailed{Cause: err}
	}
	verdict, err := verifyAssetBundle(verifier, bundlePath, artifactPath, req.SigstoreIdentities)
	if err != nil {
		return nil, "", err
	}
	_ = sink.Emit(ctx, "release.sigstore.verified", telemetry.SeverityInfo, "sigstore bundle verified", map[string]any{
		"subject": verdict.Subject, "issuer": verdict.Issuer,
	})
	return verdict, bundlePath, nil
}
