// Package xcbuild is the concrete SourceBuilder/BinaryInstaller the build
// scheduler (internal/buildsched) drives: it shells out to a configurable
// build toolchain per platform and installs downloaded binary assets in
// place of a source build. Grounded on the teacher's subprocess-invocation
// style in vcs_repo.go (capture combined output, wrap on non-zero exit).
package xcbuild

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/termie/go-shutil"

	"github.com/utica-dep/utica/internal/binaryfetch"
	"github.com/utica-dep/utica/internal/buildsched"
	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/ucerr"
	"github.com/utica-dep/utica/internal/uctx"
	"github.com/utica-dep/utica/internal/versionfile"
)

// Builder invokes an external toolchain (by default "xcodebuild") once per
// platform for a checked-out dependency, then collects its output bundles.
type Builder struct {
	Ctx        *uctx.Ctx
	Toolchain  string // command name, default "xcodebuild"
	Configuration string
}

// NewBuilder builds a Builder defaulting Toolchain to "xcodebuild".
func NewBuilder(ctx *uctx.Ctx, configuration string) *Builder {
	return &Builder{Ctx: ctx, Toolchain: "xcodebuild", Configuration: configuration}
}

// Build runs the toolchain against the dependency's checked-out working
// tree for every platform, then hashes whatever .framework/.xcframework
// bundles the invocation produced under the build directory.
func (b *Builder) Build(ctx context.Context, node buildsched.BuildNode, platforms []string, derivedDataPath string) (map[string][]versionfile.Artifact, error) {
	name := node.Id.DependencyName()
	workDir := filepath.Join(b.Ctx.CheckoutsDir(), name)

	result := map[string][]versionfile.Artifact{}
	for _, platform := range platforms {
		outDir := filepath.Join(b.Ctx.BuildDir(), platform)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, ucerr.WrapFilesystem(outDir, err)
		}

		args := []string{
			"-project", name + ".xcodeproj",
			"-scheme", name,
			"-configuration", b.Configuration,
			"-destination", "generic/platform=" + platform,
			"CONFIGURATION_BUILD_DIR=" + outDir,
		}
		if derivedDataPath != "" {
			args = append(args, "-derivedDataPath", derivedDataPath)
		}

		cmd := exec.CommandContext(ctx, b.Toolchain, args...)
		cmd.Dir = workDir
		out, err := cmd.CombinedOutput()
		if err != nil {
			return nil, ucerr.WrapSubprocess(append([]string{b.Toolchain}, args...), string(out), err)
		}

		artifact, err := collectBundle(outDir, name)
		if err != nil {
			return nil, err
		}
		result[platform] = []versionfile.Artifact{artifact}
	}
	return result, nil
}

func collectBundle(outDir, name string) (versionfile.Artifact, error) {
	for _, ext := range []string{".framework", ".xcframework"} {
		bundle := filepath.Join(outDir, name+ext)
		if _, err := os.Stat(bundle); err == nil {
			hash, err := versionfile.HashFile(filepath.Join(bundle, name))
			if err != nil {
				return versionfile.Artifact{}, ucerr.WrapFilesystem(bundle, err)
			}
			return versionfile.Artifact{Name: name, Hash: hash}, nil
		}
	}
	return versionfile.Artifact{}, ucerr.NewBinaryArchiveError(outDir, "no shared scheme produced a .framework or .xcframework for "+name)
}

// Installer downloads and unpacks binary assets (GitHub releases for Hosted
// dependencies, the version manifest for Binary dependencies) directly into
// the build directory, bypassing a source build entirely.
type Installer struct {
	Ctx         *uctx.Ctx
	Lister      *binaryfetch.ReleaseAssetLister
	Manifests   *binaryfetch.ManifestFetcher
	Downloader  *binaryfetch.Downloader
}

// NewInstaller builds an Installer.
func NewInstaller(ctx *uctx.Ctx, lister *binaryfetch.ReleaseAssetLister, manifests *binaryfetch.ManifestFetcher, downloader *binaryfetch.Downloader) *Installer {
	return &Installer{Ctx: ctx, Lister: lister, Manifests: manifests, Downloader: downloader}
}

// InstallHosted attempts a GitHub-release binary install for a Hosted node.
func (i *Installer) InstallHosted(ctx context.Context, node buildsched.BuildNode, preferXCFrameworks bool) (map[string][]versionfile.Artifact, bool, error) {
	if node.Id.Kind != depid.KindHosted {
		return nil, false, nil
	}
	urls, err := i.Lister.ListAssetURLs(ctx, node.Id.Owner, node.Id.Name, string(node.Pinned))
	if err != nil || len(urls) == 0 {
		return nil, false, err
	}
	selected := binaryfetch.SelectAssets(urls, preferXCFrameworks)
	artifacts, err := i.installAssets(node, selected)
	if err != nil {
		return nil, false, err
	}
	return artifacts, true, nil
}

// InstallBinary installs a Binary node's JSON-declared asset for its pinned
// version. There is no fallback: failure here is terminal for this node.
func (i *Installer) InstallBinary(ctx context.Context, node buildsched.BuildNode) (map[string][]versionfile.Artifact, error) {
	manifest, err := i.Manifests.Fetch(node.Id.URL)
	if err != nil {
		return nil, err
	}
	urls, ok := manifest[node.Pinned]
	if !ok || len(urls) == 0 {
		return nil, ucerr.NewBinaryArchiveError(node.Id.DisplayURL, "no asset declared for version "+node.Pinned.String())
	}
	return i.installAssets(node, binaryfetch.SelectAssets(urls, false))
}

func (i *Installer) installAssets(node buildsched.BuildNode, urls []string) (map[string][]versionfile.Artifact, error) {
	name := node.Id.DependencyName()
	result := map[string][]versionfile.Artifact{}

	for _, url := range urls {
		archivePath, err := i.Downloader.Download(i.Ctx.DefaultBinaryCacheRoot(), name, node.Pinned, url)
		if err != nil {
			return nil, err
		}

		platform, artifact, err := unpackArchive(archivePath, i.Ctx.BuildDir(), name)
		if err != nil {
			return nil, err
		}
		result[platform] = append(result[platform], artifact)
	}
	if len(result) == 0 {
		return nil, ucerr.NewBinaryArchiveError(name, "no recognizable framework inside the downloaded archive")
	}
	return result, nil
}

// unpackArchive extracts a downloaded .framework/.xcframework.zip into
// "<buildDir>/<platform>/<Name>.framework", inferring platform from the
// archive's own path convention (…/<Platform>/<Name>.framework.zip).
func unpackArchive(archivePath, buildDir, name string) (string, versionfile.Artifact, error) {
	platform := filepath.Base(filepath.Dir(archivePath))
	if platform == "." || platform == "" {
		platform = "iOS"
	}

	destDir := filepath.Join(buildDir, platform)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", versionfile.Artifact{}, ucerr.WrapFilesystem(destDir, err)
	}

	extractDir := filepath.Join(os.TempDir(), "utica-unpack-"+name)
	_ = os.RemoveAll(extractDir)
	if err := extractArchive(archivePath, extractDir); err != nil {
		return "", versionfile.Artifact{}, ucerr.WrapFilesystem(archivePath, err)
	}
	defer os.RemoveAll(extractDir)

	bundle, err := findBundle(extractDir, name)
	if err != nil {
		return "", versionfile.Artifact{}, err
	}

	dest := filepath.Join(destDir, filepath.Base(bundle))
	if err := os.RemoveAll(dest); err != nil {
		return "", versionfile.Artifact{}, ucerr.WrapFilesystem(dest, err)
	}
	if err := shutil.CopyTree(bundle, dest, nil); err != nil {
		return "", versionfile.Artifact{}, ucerr.WrapFilesystem(dest, err)
	}

	hash, err := versionfile.HashFile(filepath.Join(dest, name))
	if err != nil {
		return "", versionfile.Artifact{}, ucerr.WrapFilesystem(dest, err)
	}
	return platform, versionfile.Artifact{Name: name, Hash: hash}, nil
}

// extractArchive expands archivePath (a zip, or a gzipped or plain tar) into
// destDir, preserving the archive's internal directory structure so
// findBundle can locate the enclosed .framework/.xcframework by its usual
// <Platform>/<Name>.framework path convention. Carthage-style binary
// archives are zips; tar/tar.gz is supported for any Binary dependency
// whose manifest URL happens to point at one instead.
func extractArchive(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(archivePath, destDir)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return extractTar(archivePath, destDir, true)
	case strings.HasSuffix(archivePath, ".tar"):
		return extractTar(archivePath, destDir, false)
	default:
		return extractZip(archivePath, destDir)
	}
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func extractTar(archivePath, destDir string, gzipped bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

// safeJoin joins an archive entry's name onto destDir, rejecting any entry
// whose path would escape destDir (zip-slip).
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
		return "", ucerr.NewBinaryArchiveError(name, "archive entry escapes extraction directory")
	}
	return target, nil
}

func findBundle(root, name string) (string, error) {
	for _, ext := range []string{".xcframework", ".framework"} {
		candidate := filepath.Join(root, name+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	var found string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if info.IsDir() && (filepath.Ext(path) == ".framework" || filepath.Ext(path) == ".xcframework") {
			found = path
		}
		return nil
	})
	if found == "" {
		return "", ucerr.NewBinaryArchiveError(root, "no .framework or .xcframework found in archive")
	}
	return found, nil
}
