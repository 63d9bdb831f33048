// Package txnio provides the atomic-write-with-rollback discipline the core
// uses for the lockfile and version files: write to a temp location, then
// rename into place, falling back to copy+unlink across devices. Grounded on
// the teacher's SafeWriter (txn_writer.go) and renameWithFallback (fs.go),
// generalized from "manifest/lock/vendor" to an arbitrary ordered set of
// (path, bytes) writes.
package txnio

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"github.com/termie/go-shutil"
)

// Write atomically writes contents to path: it stages the bytes in a
// sibling temp file in the same directory (so the final rename is same-
// device whenever possible) and renames into place. If path already exists,
// it is replaced; no intermediate state is observable to a concurrent
// reader of path.
func Write(path string, contents []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := ioutil.TempFile(dir, ".utica-tmp-")
	if err != nil {
		return errors.Wrapf(err, "creating temp file for atomic write to %s", path)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing temp file for atomic write to %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing temp file for atomic write to %s", path)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return errors.Wrapf(err, "setting permissions on temp file for %s", path)
	}

	return RenameWithFallback(tmpPath, path)
}

// WriteSet performs an all-or-nothing transactional write of several files:
// every entry is staged and swapped into place; if any swap fails, the
// entries already swapped are rolled back to their previous contents (or
// removed, if they did not previously exist).
type WriteSet struct {
	writes map[string][]byte
	perm   os.FileMode
}

// NewWriteSet creates an empty transactional write set.
func NewWriteSet(perm os.FileMode) *WriteSet {
	return &WriteSet{writes: map[string][]byte{}, perm: perm}
}

// Put stages contents to be written to path when Commit is called.
func (ws *WriteSet) Put(path string, contents []byte) {
	ws.writes[path] = contents
}

// Commit performs the staged writes as a pseudo-atomic group, rolling back
// whatever was already swapped in if a later swap fails.
func (ws *WriteSet) Commit() (err error) {
	type restore struct {
		path     string
		had      bool
		previous []byte
	}
	var done []restore

	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			r := done[i]
			if r.had {
				_ = ioutil.WriteFile(r.path, r.previous, ws.perm)
			} else {
				_ = os.Remove(r.path)
			}
		}
	}

	for path, contents := range ws.writes {
		prev, readErr := ioutil.ReadFile(path)
		had := readErr == nil

		if writeErr := Write(path, contents, ws.perm); writeErr != nil {
			rollback()
			return errors.Wrapf(writeErr, "committing transactional write of %s", path)
		}
		done = append(done, restore{path: path, had: had, previous: prev})
	}
	return nil
}

// RenameWithFallback attempts os.Rename, falling back to copy+unlink when
// src and dest are on different devices (syscall.EXDEV). src is always
// removed on success, emulating normal rename semantics.
func RenameWithFallback(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, "stat %s before rename", src)
	}

	if runtime.GOOS == "windows" && fi.IsDir() {
		if err := shutil.CopyTree(src, dest, nil); err != nil {
			return errors.Wrapf(err, "copying directory %s to %s", src, dest)
		}
		return os.RemoveAll(src)
	}

	err = os.Rename(src, dest)
	if err == nil {
		return nil
	}

	linkErr, ok := err.(*os.LinkError)
	if !ok || linkErr.Err != syscall.EXDEV {
		return errors.Wrapf(err, "renaming %s to %s", src, dest)
	}

	if fi.IsDir() {
		if err := shutil.CopyTree(src, dest, nil); err != nil {
			return errors.Wrapf(err, "cross-device copy of directory %s to %s", src, dest)
		}
	} else {
		if err := copyFile(src, dest); err != nil {
			return errors.Wrapf(err, "cross-device copy of file %s to %s", src, dest)
		}
	}
	return os.RemoveAll(src)
}

func copyFile(src, dest string) error {
	contents, err := ioutil.ReadFile(src)
	if err != nil {
		return err
	}
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(dest, contents, fi.Mode())
}
