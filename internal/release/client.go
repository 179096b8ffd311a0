package release

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v66/github"

	"github.com/silexa/hephaestus/internal/telemetry"
)

// Asset mirrors the subset of the release-hosting response schema used by
// the pipeline: {tag_name, assets: [{name, size, browser_download_url,
// content_type}]}.
type Asset struct {
	Name               string
	Size               int64
	BrowserDownloadURL string
	ContentType        string
}

// Metadata is the release metadata fetched in step 1 of spec.md §4.4.
type Metadata struct {
	TagName string
	Assets  []Asset
}

// fetchMetadata retrieves release metadata by tag ("latest" is a canonical
// alias), retrying transient network errors with exponential backoff.
// 401/404/non-retryable 4xx are hard failures, not retried.
func fetchMetadata(ctx context.Context, sink *telemetry.Sink, req Request) (Metadata, error) {
	owner, name, err := sanitizedRepo(req)
	if err != nil {
		return Metadata{}, err
	}

	client := github.NewClient(nil)
	if req.Token != "" {
		client = client.WithAuthToken(req.Token)
	}

	var result Metadata
	attempt := 0
	permanent := false
	op := func() error {
		attempt++
		var rel *github.RepositoryRelease
		var resp *github.Response
		var err error
		if req.Tag == "" || req.Tag == "latest" {
			rel, resp, err = client.Repositories.GetLatestRelease(ctx, owner, name)
		} else {
			rel, resp, err = client.Repositories.GetReleaseByTag(ctx, owner, name, req.Tag)
		}
		if err == nil {
			result = toMetadata(rel)
			return nil
		}
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				permanent = true
				return backoff.Permanent(&TokenExpired{Cause: err})
			case http.StatusNotFound:
				permanent = true
				return backoff.Permanent(&NotFound{Repository: req.Repository, Tag: req.Tag})
			default:
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					permanent = true
					return backoff.Permanent(err)
				}
			}
		}
		_ = sink.Emit(ctx, "release.http.retry", telemetry.SeverityWarn, "retrying metadata fetch", map[string]any{
			"attempt": attempt, "max_retries": req.MaxRetries, "backoff_s": 0,
		})
		return err
	}

	b := backoffPolicy(req)
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if permanent {
			return Metadata{}, err
		}
		return Metadata{}, &NetworkFailed{Attempts: attempt, Cause: err}
	}
	return result, nil
}

func toMetadata(rel *github.RepositoryRelease) Metadata {
	m := Metadata{TagName: rel.GetTagName()}
	for _, a := range rel.Assets {
		m.Assets = append(m.Assets, Asset{
			Name:               a.GetName(),
			Size:               int64(a.GetSize()),
			BrowserDownloadURL: a.GetBrowserDownloadURL(),
			ContentType:        a.GetContentType(),
		})
	}
	return m
}

// backoffPolicy builds the attempt(n) = base*2^(n-1) + jitter schedule
// capped by req.MaxRetries, per spec.md §4.4 step 1.
func backoffPolicy(req Request) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = req.backoffBase()
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, uint64(req.MaxRetries-1))
}

func selectAsset(assets []Asset, pattern string) (Asset, error) {
	for _, a := range assets {
		if globMatch(pattern, a.Name) {
			return a, nil
		}
	}
	return Asset{}, &AssetNotFound{Pattern: pattern}
}

// globMatch wraps filepath.Match but treats a malformed pattern as
// non-matching instead of propagating a syntax error, since asset_pattern
// is caller-supplied config, not code.
func globMatch(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	if err != nil {
		return false
	}
	return ok
}
