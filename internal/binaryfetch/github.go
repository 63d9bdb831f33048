package binaryfetch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/utica-dep/utica/internal/ucerr"
)

// ReleaseAssetLister enumerates downloadable asset URLs for a Hosted
// dependency's GitHub releases, used by the build scheduler's binary
// installation pass (spec §4.7) when use-binaries is enabled. It retries
// once, anonymously, when an authenticated call fails for auth reasons
// (spec §7 retry policy).
type ReleaseAssetLister struct {
	authenticated *github.Client
	anonymous     *github.Client
	cache         *MetadataCache
	cacheTTL      time.Duration
}

// NewReleaseAssetLister builds a lister. token may be empty, in which case
// every call goes out anonymously. cache may be nil to disable persistence.
func NewReleaseAssetLister(token string, cache *MetadataCache) (*ReleaseAssetLister, error) {
	anonHTTP, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, errors.Wrap(err, "constructing rate-limited anonymous GitHub client")
	}
	l := &ReleaseAssetLister{anonymous: github.NewClient(anonHTTP), cache: cache, cacheTTL: time.Hour}

	if token != "" {
		ctx := context.Background()
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc := oauth2.NewClient(ctx, ts)

		authedHTTP, err := github_ratelimit.NewRateLimitWaiterClient(tc.Transport)
		if err != nil {
			return nil, errors.Wrap(err, "constructing rate-limited authenticated GitHub client")
		}
		l.authenticated = github.NewClient(authedHTTP)
	}

	return l, nil
}

// ListAssetURLs returns download URLs for every asset attached to the
// release tagged tag of owner/repo.
func (l *ReleaseAssetLister) ListAssetURLs(ctx context.Context, owner, repo, tag string) ([]string, error) {
	if l.cache != nil {
		if urls, ok := l.cache.GetReleaseAssets(owner, repo, tag, l.cacheTTL); ok {
			return urls, nil
		}
	}

	urls, err := l.listViaClient(ctx, l.authenticated, owner, repo, tag)
	if err != nil && l.authenticated != nil && isAuthError(err) {
		urls, err = l.listViaClient(ctx, l.anonymous, owner, repo, tag)
	}
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		_ = l.cache.PutReleaseAssets(owner, repo, tag, urls)
	}
	return urls, nil
}

func (l *ReleaseAssetLister) listViaClient(ctx context.Context, client *github.Client, owner, repo, tag string) ([]string, error) {
	if client == nil {
		client = l.anonymous
	}
	release, _, err := client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return nil, ucerr.WrapNetwork("https://api.github.com/repos/"+owner+"/"+repo+"/releases/tags/"+tag, err)
	}

	urls := make([]string, 0, len(release.Assets))
	for _, a := range release.Assets {
		if a.BrowserDownloadURL != nil {
			urls = append(urls, *a.BrowserDownloadURL)
		}
	}
	return urls, nil
}

func isAuthError(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && (ghErr.Response.StatusCode == http.StatusUnauthorized || ghErr.Response.StatusCode == http.StatusForbidden)
	}
	return strings.Contains(err.Error(), "401") || strings.Contains(err.Error(), "403")
}
