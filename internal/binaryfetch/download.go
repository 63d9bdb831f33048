package binaryfetch

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/utica-dep/utica/internal/txnio"
	"github.com/utica-dep/utica/internal/ucerr"
	"github.com/utica-dep/utica/internal/uctx"
	"github.com/utica-dep/utica/internal/version"
)

// Downloader fetches binary assets into the content-addressed cache,
// reusing an existing cache entry without hitting the network.
type Downloader struct {
	Client      *http.Client
	Credentials uctx.CredentialStore
	ShowProgress bool
}

// NewDownloader builds a Downloader using client (or http.DefaultClient).
func NewDownloader(client *http.Client, creds uctx.CredentialStore) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{Client: client, Credentials: creds}
}

// Download ensures assetURL is present under cacheRoot for (depName,
// pinned), returning its local path. A cache hit short-circuits the fetch.
func (d *Downloader) Download(cacheRoot, depName string, pinned version.PinnedVersion, assetURL string) (string, error) {
	dest := AssetCachePath(cacheRoot, depName, pinned, assetURL)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	req, err := http.NewRequest(http.MethodGet, assetURL, nil)
	if err != nil {
		return "", errors.Wrapf(err, "building request for asset %s", assetURL)
	}
	if d.Credentials != nil {
		if auth, ok := d.Credentials.AuthorizationHeader(req.URL.Host); ok {
			req.Header.Set("Authorization", auth)
		}
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return "", ucerr.WrapNetwork(assetURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", ucerr.WrapNetwork(assetURL, errors.Errorf("unexpected status %d", resp.StatusCode))
	}

	var reader io.Reader = resp.Body
	if d.ShowProgress {
		bar := progressbar.DefaultBytes(resp.ContentLength, "downloading "+depName)
		reader = io.TeeReader(resp.Body, bar)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", ucerr.WrapNetwork(assetURL, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", ucerr.WrapFilesystem(filepath.Dir(dest), err)
	}
	if err := txnio.Write(dest, body, 0644); err != nil {
		return "", ucerr.WrapFilesystem(dest, err)
	}
	return dest, nil
}
