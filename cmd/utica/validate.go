package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/manifest"
	"github.com/utica-dep/utica/internal/uclog"
	"github.com/utica-dep/utica/internal/uctx"
	"github.com/utica-dep/utica/internal/version"
)

// validateCmd implements the validate verb (SUPPLEMENTED FEATURES): parse
// the primary and private manifests, run duplicate-dependency detection,
// and, if a lockfile is present, check that it is resolver-sound against
// the current manifest -- without touching the network or any disk state
// beyond reading those files.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the project's manifests and lockfile for consistency, without touching the network",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := uctx.NewCtx(projectDirectory)
		if err != nil {
			return err
		}
		logger := uclog.New(os.Stdout)
		logger.Verbose = verbose
		a := &app{ctx: ctx, log: logger, manifest: manifest.Options{BaseDir: ctx.ProjectRoot}}

		entries, err := a.loadManifests()
		if err != nil {
			return err
		}
		a.log.Success("%d dependencies declared, no duplicates found", len(entries))

		lockEntries, hadLock, err := a.loadLock()
		if err != nil {
			return err
		}
		if !hadLock {
			return nil
		}

		if err := checkLockSoundness(entries, lockEntries); err != nil {
			return err
		}
		a.log.Success("lockfile is sound against the current manifest")
		return nil
	},
}

// checkLockSoundness verifies the lockfile-soundness property (spec §8's
// testable property #4): every root requirement is satisfied by the
// lockfile's pinned version for that identifier.
func checkLockSoundness(entries []manifest.Entry, lockEntries []manifest.LockEntry) error {
	pinned := make(map[depid.Id]version.PinnedVersion, len(lockEntries))
	for _, e := range lockEntries {
		pinned[e.Id] = e.Pinned
	}

	for _, root := range entries {
		got, ok := pinned[root.Id]
		if !ok {
			return fmt.Errorf("lockfile does not pin %s, which the manifest requires", root.Id.String())
		}
		if !root.Specifier.IsSatisfiedBy(got) {
			return fmt.Errorf("lockfile pins %s to %s, which does not satisfy %s", root.Id.String(), got.String(), root.Specifier.String())
		}
	}
	return nil
}
