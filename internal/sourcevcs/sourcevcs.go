// Package sourcevcs implements the Source Backend (spec §4.3): cloning and
// fetching bare git mirrors, listing tags, resolving refs, reading a file at
// a revision, and populating working trees. Grounded on the teacher's
// gitRepo wrapper (vcs_repo.go), which layers subprocess-driven behavior
// (submodule defense, detached-head detection) over github.com/Masterminds/vcs's
// GitRepo. Utica narrows the teacher's bzr/hg/svn-spanning VCS abstraction to
// git only, since the manifest grammar (§6) never names another VCS.
package sourcevcs

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/Masterminds/vcs"
	flock "github.com/theckman/go-flock"
	"github.com/pkg/errors"

	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/ucerr"
)

// MaxConcurrentFetches bounds distinct-remote mirror operations (spec §5).
var MaxConcurrentFetches = minInt(runtime.NumCPU(), 4)

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Backend manages bare mirrors under root, deduplicating concurrent fetches
// of the same remote within one process lifetime.
type Backend struct {
	Root string

	fetchOnce sync.Map // remote URL -> *sync.Once
	sem       chan struct{}
}

// NewBackend creates a Backend rooted at root (typically
// uctx.Ctx.DefaultMirrorRoot()).
func NewBackend(root string) *Backend {
	return &Backend{Root: root, sem: make(chan struct{}, MaxConcurrentFetches)}
}

// mirrorDir returns the local bare-mirror path for dep.
func (b *Backend) mirrorDir(dep depid.Id) string {
	return filepath.Join(b.Root, dep.DependencyName())
}

func (b *Backend) remoteURL(dep depid.Id) string {
	switch dep.Kind {
	case depid.KindHosted:
		base := "https://github.com"
		if dep.Host.Kind == depid.HostEnterprise {
			base = dep.Host.BaseURL
		}
		return base + "/" + dep.Owner + "/" + dep.Name + ".git"
	case depid.KindGit:
		return dep.URL
	default:
		return ""
	}
}

// CloneOrFetch ensures a bare mirror for dep exists, fetching new refs if it
// already does. When commitish is supplied and already present locally (and
// is not a branch name), the fetch is skipped. At most one fetch per remote
// URL happens per process lifetime (the dedupe cache); this call blocks
// until any concurrent fetch of the same remote completes.
func (b *Backend) CloneOrFetch(dep depid.Id, commitish string) (string, error) {
	remote := b.remoteURL(dep)
	dir := b.mirrorDir(dep)

	onceIface, _ := b.fetchOnce.LoadOrStore(remote, &sync.Once{})
	once := onceIface.(*sync.Once)

	var opErr error
	once.Do(func() {
		b.sem <- struct{}{}
		defer func() { <-b.sem }()

		lk := flock.NewFlock(dir + ".lock")
		if err := lk.Lock(); err != nil {
			opErr = errors.Wrapf(err, "locking mirror %s", dir)
			return
		}
		defer lk.Unlock()

		repo, err := vcs.NewGitRepo(remote, dir)
		if err != nil {
			opErr = errors.Wrapf(err, "constructing git repo handle for %s", remote)
			return
		}

		if !repo.CheckLocal() {
			if err := cloneBare(remote, dir); err != nil {
				opErr = ucerr.WrapNetwork(remote, err)
			}
			return
		}

		if commitish != "" && !looksLikeBranch(commitish) && hasCommit(dir, commitish) {
			return // already have it, skip the fetch
		}

		if err := fetchAll(dir); err != nil {
			opErr = ucerr.WrapNetwork(remote, err)
		}
	})

	if opErr != nil {
		return "", opErr
	}
	return dir, nil
}

func cloneBare(remote, dir string) error {
	out, err := exec.Command("git", "clone", "--mirror", remote, dir).CombinedOutput()
	if err != nil {
		return ucerr.WrapSubprocess([]string{"git", "clone", "--mirror", remote, dir}, string(out), err)
	}
	return nil
}

func fetchAll(dir string) error {
	out, err := gitDir(dir, "fetch", "--tags", "--prune", "origin")
	if err != nil {
		return ucerr.WrapSubprocess([]string{"git", "fetch"}, out, err)
	}
	return nil
}

func hasCommit(dir, ref string) bool {
	_, err := gitDir(dir, "cat-file", "-e", ref+"^{commit}")
	return err == nil
}

func looksLikeBranch(ref string) bool {
	// A 40-char (or abbreviated) hex string is treated as a commit SHA, not
	// a branch, so a mirror already holding it need not be re-fetched.
	if len(ref) < 7 || len(ref) > 40 {
		return true
	}
	for _, r := range ref {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return true
		}
	}
	return false
}

func gitDir(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"--git-dir", dir}, args...)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// ListTags enumerates tag names in the mirror at repoDir.
func ListTags(repoDir string) ([]string, error) {
	out, err := gitDir(repoDir, "tag", "--list")
	if err != nil {
		return nil, ucerr.WrapSubprocess([]string{"git", "tag", "--list"}, out, err)
	}
	var tags []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

// ResolveRef resolves ref to a commit SHA, preferring an exact tag match.
func ResolveRef(repoDir, ref string) (string, error) {
	if sha, err := gitDir(repoDir, "rev-parse", "refs/tags/"+ref+"^{commit}"); err == nil {
		return strings.TrimSpace(sha), nil
	}
	sha, err := gitDir(repoDir, "rev-parse", ref)
	if err != nil {
		return "", ucerr.WrapSubprocess([]string{"git", "rev-parse", ref}, sha, err)
	}
	return strings.TrimSpace(sha), nil
}

// ReadFileAtRevision extracts path's blob contents as of revision.
func ReadFileAtRevision(repoDir, path, revision string) ([]byte, error) {
	cmd := exec.Command("git", "--git-dir", repoDir, "show", revision+":"+path)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return nil, ucerr.WrapSubprocess([]string{"git", "show", revision + ":" + path}, errBuf.String(), err)
	}
	return out.Bytes(), nil
}

// CheckoutTo populates workDir with the tree at revision, cloning from
// repoDir (a local bare mirror).
func CheckoutTo(workDir, repoDir, revision string) error {
	if out, err := exec.Command("git", "clone", repoDir, workDir).CombinedOutput(); err != nil {
		return ucerr.WrapSubprocess([]string{"git", "clone", repoDir, workDir}, string(out), err)
	}
	cmd := exec.Command("git", "checkout", "--detach", revision)
	cmd.Dir = workDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return ucerr.WrapSubprocess([]string{"git", "checkout", revision}, string(out), err)
	}
	return nil
}

// Submodule is one entry found in .gitmodules at a given revision.
type Submodule struct {
	Path string
	URL  string
	SHA  string
}

// SubmodulesIn enumerates submodules declared at revision in repoDir.
func SubmodulesIn(repoDir, revision string) ([]Submodule, error) {
	contents, err := ReadFileAtRevision(repoDir, ".gitmodules", revision)
	if err != nil {
		// No .gitmodules file at this revision is not an error; just no submodules.
		return nil, nil
	}

	var subs []Submodule
	var cur *Submodule
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "[submodule"):
			if cur != nil {
				subs = append(subs, *cur)
			}
			cur = &Submodule{}
		case strings.HasPrefix(line, "path =") && cur != nil:
			cur.Path = strings.TrimSpace(strings.TrimPrefix(line, "path ="))
		case strings.HasPrefix(line, "url =") && cur != nil:
			cur.URL = strings.TrimSpace(strings.TrimPrefix(line, "url ="))
		}
	}
	if cur != nil {
		subs = append(subs, *cur)
	}

	for i := range subs {
		out, err := gitDir(repoDir, "ls-tree", revision, subs[i].Path)
		if err != nil {
			continue
		}
		fields := strings.Fields(out)
		if len(fields) >= 3 {
			subs[i].SHA = fields[2]
		}
	}
	return subs, nil
}
