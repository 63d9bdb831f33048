// Package uctx carries the supporting context a Utica invocation runs
// under: the project root, the global mirror/cache directories, and
// credentials for authenticated fetches. Grounded on the teacher's Ctx
// (context.go), which plays the same role for GOPATH discovery; the
// process-wide directory defaults are sourced from github.com/adrg/xdg
// rather than hand-rolled HOME-joining, since the pack's base-directory
// convention belongs to that library.
package uctx

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pkg/errors"
)

// ManifestName is the primary manifest's file name.
const ManifestName = "Cartfile"

// PrivateManifestName is the private manifest's file name.
const PrivateManifestName = "Cartfile.private"

// LockName is the lockfile's file name.
const LockName = "Cartfile.resolved"

// DefaultCheckoutsDir is the directory name under the project root where
// working trees and symlink trees are placed.
const DefaultCheckoutsDir = "Checkouts"

// DefaultBuildDir is the directory name under the project root where build
// outputs and version files are placed.
const DefaultBuildDir = "Build"

// Ctx is the supporting context of one Utica invocation.
type Ctx struct {
	// ProjectRoot is the absolute directory containing the manifest.
	ProjectRoot string
	// CacheRoot is the process-wide root for the binary-asset cache and
	// repository mirrors (<cacheRoot>/binaries, <cacheRoot>/dependencies).
	CacheRoot string
	// UseNetrc enables consulting the credentials file for outbound HTTP
	// requests whose host matches an entry.
	UseNetrc bool
}

// NewCtx builds a Ctx rooted at projectDir (or the working directory, if
// empty), with cache roots defaulting to the XDG cache home.
func NewCtx(projectDir string) (*Ctx, error) {
	root := projectDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "getting working directory")
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving project directory %q", root)
	}
	return &Ctx{
		ProjectRoot: abs,
		CacheRoot:   DefaultCacheRoot(),
	}, nil
}

// DefaultCacheRoot returns the process-wide cache root Utica uses absent an
// explicit override: <xdg cache home>/utica.
func DefaultCacheRoot() string {
	return filepath.Join(xdg.CacheHome, "utica")
}

// DefaultMirrorRoot returns the default repository-mirror root.
func (c *Ctx) DefaultMirrorRoot() string {
	return filepath.Join(c.CacheRoot, "dependencies")
}

// DefaultBinaryCacheRoot returns the default binary-asset cache root.
func (c *Ctx) DefaultBinaryCacheRoot() string {
	return filepath.Join(c.CacheRoot, "binaries")
}

// ManifestPath returns the absolute path of the primary manifest.
func (c *Ctx) ManifestPath() string {
	return filepath.Join(c.ProjectRoot, ManifestName)
}

// PrivateManifestPath returns the absolute path of the private manifest.
func (c *Ctx) PrivateManifestPath() string {
	return filepath.Join(c.ProjectRoot, PrivateManifestName)
}

// LockPath returns the absolute path of the lockfile.
func (c *Ctx) LockPath() string {
	return filepath.Join(c.ProjectRoot, LockName)
}

// CheckoutsDir returns the absolute path of the checkouts directory.
func (c *Ctx) CheckoutsDir() string {
	return filepath.Join(c.ProjectRoot, DefaultCheckoutsDir)
}

// BuildDir returns the absolute path of the build directory.
func (c *Ctx) BuildDir() string {
	return filepath.Join(c.ProjectRoot, DefaultBuildDir)
}

// CredentialsPath returns the default location of the netrc-style
// credentials file consulted when UseNetrc is set.
func CredentialsPath() string {
	return filepath.Join(xdg.Home, ".netrc")
}
