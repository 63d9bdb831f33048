package checkout

import (
	"os/exec"

	"github.com/utica-dep/utica/internal/ucerr"
)

// addSubmodule registers workDir as a git submodule of projectRoot, sourced
// from mirrorDir (a local bare mirror used as the submodule's remote), then
// checks it out at revision.
func addSubmodule(projectRoot, mirrorDir, workDir, revision string) error {
	cmd := exec.Command("git", "submodule", "add", "--force", mirrorDir, workDir)
	cmd.Dir = projectRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return ucerr.WrapSubprocess([]string{"git", "submodule", "add", mirrorDir, workDir}, string(out), err)
	}
	return updateSubmoduleRevision(projectRoot, workDir, revision)
}

// updateSubmoduleRevision checks an already-registered submodule out at revision.
func updateSubmoduleRevision(projectRoot, workDir, revision string) error {
	cmd := exec.Command("git", "checkout", "--detach", revision)
	cmd.Dir = workDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return ucerr.WrapSubprocess([]string{"git", "checkout", revision}, string(out), err)
	}
	return nil
}
