// Package versionfile implements the Version-File Protocol (spec §4.8): the
// small per-dependency JSON cache-check document written next to build
// outputs, and the equality rule the build scheduler uses to decide whether
// a node needs rebuilding.
//
// Grounded on the teacher's hash.go (content-hash computation for cache
// validity) and result.go's comparison-for-freshness pattern, narrowed from
// the teacher's whole-project lock-hash check to the spec's
// per-platform-artifact-set equality.
package versionfile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/utica-dep/utica/internal/ucerr"
)

// Artifact is one built framework's identity: its bundle name and a content
// hash of its binary, stable across repeated builds of the same inputs.
type Artifact struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// File is the on-disk document stored at
// "<buildDir>/.<name>.version" (spec §6).
type File struct {
	Commitish             string              `json:"commitish"`
	Configuration         string              `json:"configuration"`
	ToolchainIdentifier   string              `json:"toolchainIdentifier"`
	SwiftToolchainVersion string              `json:"swiftToolchainVersion"`
	Platforms             map[string][]Artifact `json:"platforms"`
}

// Load reads and parses the version file at path. A missing file is
// reported via os.IsNotExist on the returned error, not wrapped, so callers
// can treat "absent" and "malformed" differently per spec §4.8 ("Any
// mismatch, missing file, or missing platform entry marks the node as
// needing rebuild" — callers collapse both down to "needs rebuild" but may
// want to log the distinction).
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, ucerr.NewParseError(path, "malformed version file: %v", err)
	}
	return &f, nil
}

// Save renders f as indented JSON and returns the bytes; it does not write
// them, and path is not used. Callers write the result through
// internal/txnio for atomicity in a shared build directory.
func Save(path string, f *File) ([]byte, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Matches implements the equality check of spec §4.8: the commitish equals
// resolvedVersion, the configuration/toolchain fields equal current, and
// for every platform in current the set of (name, hash) entries equals the
// file's recorded set for that platform.
func (f *File) Matches(resolvedVersion, configuration, toolchainIdentifier, swiftToolchainVersion string, current map[string][]Artifact) bool {
	if f == nil {
		return false
	}
	if f.Commitish != resolvedVersion {
		return false
	}
	if f.Configuration != configuration || f.ToolchainIdentifier != toolchainIdentifier || f.SwiftToolchainVersion != swiftToolchainVersion {
		return false
	}
	if len(f.Platforms) != len(current) {
		return false
	}
	for platform, want := range current {
		got, ok := f.Platforms[platform]
		if !ok {
			return false
		}
		if !sameArtifactSet(got, want) {
			return false
		}
	}
	return true
}

func sameArtifactSet(a, b []Artifact) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(a Artifact) string { return a.Name + "\x00" + a.Hash }
	as := make([]string, len(a))
	bs := make([]string, len(b))
	for i, x := range a {
		as[i] = key(x)
	}
	for i, x := range b {
		bs[i] = key(x)
	}
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// HashFile computes the content hash used as an Artifact's Hash field: the
// hex-encoded SHA-256 of the artifact's binary contents.
func HashFile(path string) (string, error) {
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
