// Package binaryfetch implements the Binary Backend (spec §4.4): fetching a
// binary dependency's version->asset-URL manifest, enumerating GitHub
// release assets for Hosted dependencies opting into binary installs, and
// downloading assets into a content-addressed cache. Grounded on the
// teacher's source_manager-level per-run memoization pattern (sm_cache.go)
// for request dedup, and on internal/gps/source_cache_bolt.go for
// persisting results across runs via github.com/boltdb/bolt.
package binaryfetch

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/utica-dep/utica/internal/ucerr"
	"github.com/utica-dep/utica/internal/uctx"
	"github.com/utica-dep/utica/internal/version"
)

// VersionManifest maps a PinnedVersion to its candidate asset URLs, as
// fetched from a binary dependency's JSON document (spec §6).
type VersionManifest map[version.PinnedVersion][]string

// rawManifest accepts both wire shapes: `{"v": "url"}` and `{"v": ["url", ...]}`.
type rawManifest map[string]json.RawMessage

// ManifestFetcher fetches and memoizes binary-dependency JSON documents for
// the lifetime of one process (one resolve/build invocation), per spec §4.4
// ("fetches and memoizes this document per run").
type ManifestFetcher struct {
	Client      *http.Client
	Credentials uctx.CredentialStore

	mu    sync.Mutex
	cache map[string]VersionManifest
}

// NewManifestFetcher builds a fetcher using client (or http.DefaultClient if
// nil) and an optional credential store for authenticated hosts.
func NewManifestFetcher(client *http.Client, creds uctx.CredentialStore) *ManifestFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &ManifestFetcher{Client: client, Credentials: creds, cache: map[string]VersionManifest{}}
}

// Fetch retrieves and parses the binary manifest at url, memoizing by url.
func (f *ManifestFetcher) Fetch(url string) (VersionManifest, error) {
	f.mu.Lock()
	if m, ok := f.cache[url]; ok {
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()

	m, err := f.fetchUncached(url)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[url] = m
	f.mu.Unlock()
	return m, nil
}

func (f *ManifestFetcher) fetchUncached(rawURL string) (VersionManifest, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for binary manifest %s", rawURL)
	}
	if f.Credentials != nil {
		if auth, ok := f.Credentials.AuthorizationHeader(req.URL.Host); ok {
			req.Header.Set("Authorization", auth)
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, ucerr.WrapNetwork(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ucerr.WrapNetwork(rawURL, errors.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, ucerr.WrapNetwork(rawURL, err)
	}

	return ParseVersionManifest(body)
}

// ParseVersionManifest decodes the binary JSON document grammar of spec §6.
func ParseVersionManifest(body []byte) (VersionManifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ucerr.NewParseError(string(body), "invalid binary version manifest JSON: %v", err)
	}

	result := make(VersionManifest, len(raw))
	for v, value := range raw {
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			result[version.PinnedVersion(v)] = []string{single}
			continue
		}
		var multi []string
		if err := json.Unmarshal(value, &multi); err == nil {
			result[version.PinnedVersion(v)] = multi
			continue
		}
		return nil, ucerr.NewParseError(string(value), "binary version manifest entry for %q is neither a string nor an array of strings", v)
	}
	return result, nil
}
