package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/utica-dep/utica/internal/buildsched"
	"github.com/utica-dep/utica/internal/checkout"
	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/manifest"
	"github.com/utica-dep/utica/internal/resolve"
	"github.com/utica-dep/utica/internal/txnio"
	"github.com/utica-dep/utica/internal/version"
)

// resolveDependencies runs the resolver over the project's manifests,
// optionally restricted by dependenciesToUpdate (empty means "resolve
// everything freely"), and writes the resulting lockfile.
func (a *app) resolveDependencies(dependenciesToUpdate []string) ([]manifest.LockEntry, error) {
	entries, err := a.loadManifests()
	if err != nil {
		return nil, err
	}

	roots := make(map[depid.Id]version.VersionSpecifier, len(entries))
	for _, e := range entries {
		roots[e.Id] = e.Specifier
	}

	lastLock, hadLock, err := a.loadLock()
	if err != nil {
		return nil, err
	}
	lastResolved := map[depid.Id]version.PinnedVersion{}
	if hadLock {
		for _, e := range lastLock {
			lastResolved[e.Id] = e.Pinned
		}
	}

	toUpdate := map[string]bool{}
	for _, name := range dependenciesToUpdate {
		toUpdate[name] = true
	}

	resolved, err := resolve.Resolve(resolve.Input{
		Roots:                roots,
		LastResolved:         lastResolved,
		DependenciesToUpdate: toUpdate,
		Backend:              a.resolver,
	})
	if err != nil {
		return nil, err
	}

	lockEntries := make([]manifest.LockEntry, 0, len(resolved))
	for id, pinned := range resolved {
		lockEntries = append(lockEntries, manifest.LockEntry{Id: id, Pinned: pinned})
	}

	data := manifest.SerializeLock(lockEntries)
	if err := txnio.Write(a.ctx.LockPath(), data, 0644); err != nil {
		return nil, err
	}

	return lockEntries, nil
}

// runCheckout materializes lockEntries into the checkouts directory and its
// inter-dependency symlink tree (spec §4.6).
func (a *app) runCheckout(lockEntries []manifest.LockEntry) error {
	var checkoutEntries []checkout.Entry
	for _, e := range lockEntries {
		checkoutEntries = append(checkoutEntries, checkout.Entry{Id: e.Id, Pinned: e.Pinned})
	}
	engine := a.newCheckoutEngine(useSubmodules)
	if err := engine.Run(checkoutEntries); err != nil {
		return err
	}
	for _, e := range lockEntries {
		a.log.Event("Checked out", e.Id.DependencyName()+" @ "+e.Pinned.String())
	}
	return nil
}

// runBuild computes each lockfile entry's direct-dependency edges and drives
// the build scheduler to completion (spec §4.7), streaming events to the
// logger and, if configured, the event-log file.
func (a *app) runBuild(ctx context.Context, lockEntries []manifest.LockEntry, nameFilter map[string]bool) error {
	byId := map[depid.Id]manifest.LockEntry{}
	for _, e := range lockEntries {
		byId[e.Id] = e
	}

	var nodes []buildsched.BuildNode
	for _, e := range lockEntries {
		deps, err := a.resolver.DependenciesOf(e.Id, e.Pinned)
		if err != nil {
			return err
		}
		var direct []depid.Id
		for child := range deps {
			if _, ok := byId[child]; ok {
				direct = append(direct, child)
			}
		}
		nodes = append(nodes, buildsched.BuildNode{Id: e.Id, Pinned: e.Pinned, DirectDeps: direct})
	}

	targetPlatforms := platforms
	if len(targetPlatforms) == 0 {
		targetPlatforms = []string{"iOS", "macOS", "tvOS", "watchOS"}
	}

	sched := buildsched.NewScheduler(a.ctx, a.newBuilder(), a.newInstaller())
	events, wait := sched.Run(ctx, nodes, buildsched.Options{
		Platforms:           targetPlatforms,
		NameFilter:          nameFilter,
		CacheBuilds:         cacheBuilds,
		UseBinaries:         useBinaries,
		UseXCFrameworks:     useXCFrameworks,
		Concurrency:         jobs,
		DerivedDataPath:     derivedData,
		Configuration:       configuration,
		ToolchainIdentifier: toolchain,
	})

	for ev := range events {
		a.logEvent(ev)
	}
	return wait()
}

func (a *app) logEvent(ev buildsched.Event) {
	a.eventLog.Write(ev)
	switch ev.Kind {
	case buildsched.EventSkippedBuildingCached:
		a.log.Event("Skipped", ev.Dependency+" (cached)")
	case buildsched.EventRebuildingCached:
		a.log.Event("Rebuilding", ev.Dependency)
	case buildsched.EventBuildingUncached:
		a.log.Event("Building", ev.Dependency)
	case buildsched.EventDownloadingBinaries:
		a.log.Event("Downloading", ev.Dependency+" "+ev.Detail)
	case buildsched.EventSkippedInstallingBinaries, buildsched.EventSkippedDownloadingBinaries:
		a.log.Warn("%s: %s (%s)", ev.Dependency, "falling back to source build", ev.Detail)
	case buildsched.EventSkippedBuilding:
		a.log.Debugf("%s: %s", ev.Dependency, ev.Detail)
	default:
		a.log.Event(string(ev.Kind), ev.Dependency)
	}
}

// filterByName keeps only the lock entries whose DependencyName is in names.
func filterByName(entries []manifest.LockEntry, names map[string]bool) []manifest.LockEntry {
	var result []manifest.LockEntry
	for _, e := range entries {
		if names[e.Id.DependencyName()] {
			result = append(result, e)
		}
	}
	return result
}

// runCheckoutAndBuild drives the shared checkout-then-build tail shared by
// bootstrap and update, honoring --no-checkout/--no-build.
func runCheckoutAndBuild(cmd *cobra.Command, a *app, lockEntries []manifest.LockEntry) error {
	if !noCheckout {
		if err := a.runCheckout(lockEntries); err != nil {
			return err
		}
	}
	if !noBuild {
		if err := a.runBuild(cmd.Context(), lockEntries, nil); err != nil {
			return err
		}
	}
	a.log.Success("utica: done")
	return nil
}
