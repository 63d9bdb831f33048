package binaryfetch

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/utica-dep/utica/internal/version"
)

var releaseBucket = []byte("github-releases")

// MetadataCache persists GitHub release listings across process runs, so a
// rebuild that touches the same dependency twice in a day does not re-hit
// the API. Grounded on the teacher's boltCache (internal/gps/source_cache_bolt.go).
type MetadataCache struct {
	db *bolt.DB
}

// OpenMetadataCache opens (creating if absent) a BoltDB file under cacheRoot.
func OpenMetadataCache(cacheRoot string) (*MetadataCache, error) {
	path := filepath.Join(cacheRoot, "metadata.bolt")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening metadata cache %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(releaseBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing metadata cache buckets")
	}
	return &MetadataCache{db: db}, nil
}

// Close releases the underlying BoltDB handle.
func (c *MetadataCache) Close() error {
	return c.db.Close()
}

// GetReleaseAssets returns a cached asset-URL list for (owner, repo, tag), if
// present and fresher than maxAge. The returned bool is keyed on whether a
// bolt record exists at all, not on whether the decoded list is non-empty —
// a release with zero assets is a legitimate cache hit with an empty list,
// distinct from never having been fetched.
func (c *MetadataCache) GetReleaseAssets(owner, repo, tag string, maxAge time.Duration) ([]string, bool) {
	var urls []string
	var stamp int64
	var found bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(releaseBucket)
		raw := b.Get(releaseCacheKey(owner, repo, tag))
		if raw == nil {
			return nil
		}
		found = true
		stamp, urls = decodeReleaseCacheEntry(raw)
		return nil
	})
	if !found {
		return nil, false
	}
	if time.Since(time.Unix(stamp, 0)) > maxAge {
		return nil, false
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, true
}

// PutReleaseAssets caches the asset-URL list for (owner, repo, tag).
func (c *MetadataCache) PutReleaseAssets(owner, repo, tag string, urls []string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(releaseBucket)
		return b.Put(releaseCacheKey(owner, repo, tag), encodeReleaseCacheEntry(time.Now().Unix(), urls))
	})
}

func releaseCacheKey(owner, repo, tag string) []byte {
	return []byte(owner + "/" + repo + "@" + tag)
}

func encodeReleaseCacheEntry(stamp int64, urls []string) []byte {
	return []byte(strings.Join(append([]string{strconv.FormatInt(stamp, 10)}, urls...), "\n"))
}

func decodeReleaseCacheEntry(raw []byte) (int64, []string) {
	lines := strings.Split(string(raw), "\n")
	if len(lines) == 0 {
		return 0, nil
	}
	stamp, _ := strconv.ParseInt(lines[0], 10, 64)
	return stamp, lines[1:]
}

// AssetCachePath computes the content-addressed cache path for a downloaded
// asset, per spec §4.4/§6:
// <cacheRoot>/<dep-name>/<version>/<fileName>-<sha256(assetUrl)>.<ext>
func AssetCachePath(cacheRoot, depName string, pinned version.PinnedVersion, assetURL string) string {
	base := path.Base(assetURL)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	digest := sha256.Sum256([]byte(assetURL))
	fileName := stem + "-" + hex.EncodeToString(digest[:]) + ext
	return filepath.Join(cacheRoot, depName, pinned.String(), fileName)
}
