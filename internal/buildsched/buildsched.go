// Package buildsched implements the Build Scheduler (spec §4.7): it turns a
// lockfile into a topologically-sorted set of BuildNodes, skips nodes whose
// on-disk version file still matches, installs binaries where possible, and
// dispatches the remainder to a bounded worker pool, emitting a stream of
// structured events throughout.
//
// Grounded on the teacher's pkg_analysis.go/solver.go topological-sort
// shape and source_manager.go's bounded worker-pool pattern.
package buildsched

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/txnio"
	"github.com/utica-dep/utica/internal/ucerr"
	"github.com/utica-dep/utica/internal/uctx"
	"github.com/utica-dep/utica/internal/version"
	"github.com/utica-dep/utica/internal/versionfile"
)

// writeFile atomically writes data to path, creating its parent directory
// first (build directories are created on first use, not up front).
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return ucerr.WrapFilesystem(filepath.Dir(path), err)
	}
	if err := txnio.Write(path, data, 0644); err != nil {
		return ucerr.WrapFilesystem(path, err)
	}
	return nil
}

// BuildNode is the scheduler's unit of work: a dependency pinned at a
// version, together with the direct dependencies that must be
// built-or-skipped before it is dispatched.
type BuildNode struct {
	Id         depid.Id
	Pinned     version.PinnedVersion
	DirectDeps []depid.Id
}

// EventKind enumerates the scheduler's observable event stream (spec §4.7).
type EventKind string

const (
	EventCloning                    EventKind = "cloning"
	EventFetching                   EventKind = "fetching"
	EventCheckingOut                EventKind = "checkingOut"
	EventDownloadingBinaries        EventKind = "downloadingBinaries"
	EventSkippedDownloadingBinaries EventKind = "skippedDownloadingBinaries"
	EventSkippedBuilding            EventKind = "skippedBuilding"
	EventSkippedBuildingCached      EventKind = "skippedBuildingCached"
	EventRebuildingCached           EventKind = "rebuildingCached"
	EventBuildingUncached           EventKind = "buildingUncached"
	EventSkippedInstallingBinaries  EventKind = "skippedInstallingBinaries"
)

// Event is one observation emitted onto the scheduler's event stream.
// Within one dependency, events are totally ordered; no ordering between
// independent dependencies' events is promised (spec §5).
type Event struct {
	Kind       EventKind
	Dependency string
	Detail     string
	Err        error
}

// SourceBuilder performs the actual toolchain invocation for a Hosted/Git
// node, producing the set of built artifacts per platform.
type SourceBuilder interface {
	Build(ctx context.Context, node BuildNode, platforms []string, derivedDataPath string) (map[string][]versionfile.Artifact, error)
}

// BinaryInstaller installs a pre-built release asset in place of a source
// build, used by the binary-installation pass (spec §4.7 step 4).
type BinaryInstaller interface {
	// InstallHosted attempts a binary install for a Hosted node; ok is false
	// when no matching asset exists (a soft failure: the node falls through
	// to a source build).
	InstallHosted(ctx context.Context, node BuildNode, preferXCFrameworks bool) (artifacts map[string][]versionfile.Artifact, ok bool, err error)
	// InstallBinary installs a Binary node's JSON-declared asset. Failure
	// here is a hard error: a Binary node has no source-build fallback.
	InstallBinary(ctx context.Context, node BuildNode) (map[string][]versionfile.Artifact, error)
}

// Options configures one scheduler run (spec §4.7 inputs).
type Options struct {
	Platforms             []string
	NameFilter            map[string]bool // DependencyName set; empty means "everything"
	CacheBuilds           bool
	UseBinaries           bool
	UseXCFrameworks       bool
	Concurrency           int // 0 means runtime.NumCPU()
	DerivedDataPath       string
	Configuration         string
	ToolchainIdentifier   string
	SwiftToolchainVersion string
}

// Scheduler runs the build pipeline over a Ctx-rooted build directory.
type Scheduler struct {
	Ctx      *uctx.Ctx
	Builder  SourceBuilder
	Installer BinaryInstaller
}

// NewScheduler builds a Scheduler.
func NewScheduler(ctx *uctx.Ctx, builder SourceBuilder, installer BinaryInstaller) *Scheduler {
	return &Scheduler{Ctx: ctx, Builder: builder, Installer: installer}
}

// Run executes the full pipeline (topo sort, cache check, binary install
// pass, concurrent source build) and streams events onto the returned
// channel, which is closed when the run finishes. The second return value
// blocks until the run has finished and returns its error; events may still
// be buffered in the channel at that point. The run itself blocks whenever
// the channel's 64-event buffer is full and nobody is receiving.
func (s *Scheduler) Run(ctx context.Context, nodes []BuildNode, opts Options) (<-chan Event, func() error) {
	events := make(chan Event, 64)
	var runErr error

	done := make(chan struct{})
	go func() {
		defer close(events)
		defer close(done)
		runErr = s.run(ctx, nodes, opts, events)
	}()

	return events, func() error {
		<-done
		return runErr
	}
}

func (s *Scheduler) run(ctx context.Context, nodes []BuildNode, opts Options, events chan<- Event) error {
	sorted, err := topoSort(nodes)
	if err != nil {
		return err
	}

	filtered := restrictToFilter(sorted, opts.NameFilter)
	if len(filtered) != len(sorted) {
		kept := map[depid.Id]bool{}
		for _, n := range filtered {
			kept[n.Id] = true
		}
		for _, n := range sorted {
			if !kept[n.Id] {
				events <- Event{Kind: EventSkippedBuilding, Dependency: n.Id.DependencyName(), Detail: "excluded by name filter"}
			}
		}
	}
	sorted = filtered

	status := map[depid.Id]string{} // "skipped" | "rebuild" | "installed" | "built"
	artifactsByNode := map[depid.Id]map[string][]versionfile.Artifact{}

	for _, node := range sorted {
		name := node.Id.DependencyName()

		anAncestorRebuilding := false
		for _, dep := range node.DirectDeps {
			if status[dep] == "rebuild" {
				anAncestorRebuilding = true
				break
			}
		}

		if opts.CacheBuilds && !anAncestorRebuilding {
			vf, vfErr := versionfile.Load(s.versionFilePath(name))
			current, curErr := s.currentArtifacts(name, opts.Platforms)
			if vfErr == nil && curErr == nil && vf.Matches(string(node.Pinned), opts.Configuration, opts.ToolchainIdentifier, opts.SwiftToolchainVersion, current) {
				status[node.Id] = "skipped"
				artifactsByNode[node.Id] = current
				events <- Event{Kind: EventSkippedBuildingCached, Dependency: name}
				continue
			}
			if vfErr == nil {
				events <- Event{Kind: EventRebuildingCached, Dependency: name}
			}
		}

		status[node.Id] = "rebuild"
	}

	// Binary installation pass, before source builds (spec §4.7 step 4).
	for _, node := range sorted {
		if status[node.Id] != "rebuild" {
			continue
		}
		name := node.Id.DependencyName()

		switch node.Id.Kind {
		case depid.KindBinary:
			artifacts, err := s.Installer.InstallBinary(ctx, node)
			if err != nil {
				return ucerr.NewBinaryArchiveError(name, err.Error())
			}
			status[node.Id] = "installed"
			artifactsByNode[node.Id] = artifacts
			if err := s.writeVersionFile(node, opts, artifacts); err != nil {
				return err
			}

		case depid.KindHosted:
			if !opts.UseBinaries {
				continue
			}
			events <- Event{Kind: EventDownloadingBinaries, Dependency: name, Detail: string(node.Pinned)}
			artifacts, ok, err := s.Installer.InstallHosted(ctx, node, opts.UseXCFrameworks)
			if err != nil || !ok {
				events <- Event{Kind: EventSkippedInstallingBinaries, Dependency: name, Err: err}
				continue
			}
			status[node.Id] = "installed"
			artifactsByNode[node.Id] = artifacts
			if err := s.writeVersionFile(node, opts, artifacts); err != nil {
				return err
			}

		default:
			events <- Event{Kind: EventSkippedDownloadingBinaries, Dependency: name, Detail: "source dependency"}
		}
	}

	return s.buildRemaining(ctx, sorted, status, artifactsByNode, opts, events)
}

// buildRemaining dispatches every node still marked "rebuild" to a bounded
// worker pool, a node becoming eligible once every direct dependency has
// reached a terminal (built/installed/skipped) status (spec §4.7 step 5).
func (s *Scheduler) buildRemaining(
	ctx context.Context,
	sorted []BuildNode,
	status map[depid.Id]string,
	artifactsByNode map[depid.Id]map[string][]versionfile.Artifact,
	opts Options,
	events chan<- Event,
) error {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var firstErr error

	isReady := func(node BuildNode) bool {
		for _, dep := range node.DirectDeps {
			switch status[dep] {
			case "built", "skipped", "installed":
			default:
				return false
			}
		}
		return true
	}

	remaining := map[depid.Id]bool{}
	for _, n := range sorted {
		if status[n.Id] == "rebuild" {
			remaining[n.Id] = true
		}
	}

	for len(remaining) > 0 {
		mu.Lock()
		if firstErr != nil {
			mu.Unlock()
			break
		}
		var dispatched []BuildNode
		for _, n := range sorted {
			if !remaining[n.Id] {
				continue
			}
			if isReady(n) {
				dispatched = append(dispatched, n)
				delete(remaining, n.Id)
			}
		}
		mu.Unlock()

		if len(dispatched) == 0 {
			// Nothing ready yet but work remains: wait for an in-flight
			// build to complete and update status, unless a failure already
			// means no further node will ever become ready.
			mu.Lock()
			if firstErr != nil {
				mu.Unlock()
				break
			}
			cond.Wait()
			mu.Unlock()
			continue
		}

		for _, node := range dispatched {
			node := node
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				defer func() {
					mu.Lock()
					cond.Broadcast()
					mu.Unlock()
				}()

				select {
				case <-ctx.Done():
					mu.Lock()
					if firstErr == nil {
						firstErr = ctx.Err()
					}
					mu.Unlock()
					return
				default:
				}

				name := node.Id.DependencyName()
				events <- Event{Kind: EventBuildingUncached, Dependency: name}
				artifacts, err := s.Builder.Build(ctx, node, opts.Platforms, opts.DerivedDataPath)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("building %s: %w", name, err)
					}
					status[node.Id] = "failed"
					mu.Unlock()
					return
				}
				status[node.Id] = "built"
				artifactsByNode[node.Id] = artifacts
				mu.Unlock()

				if err := s.writeVersionFile(node, opts, artifacts); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
	}

	return firstErr
}

func (s *Scheduler) versionFilePath(name string) string {
	return filepath.Join(s.Ctx.BuildDir(), "."+name+".version")
}

func (s *Scheduler) writeVersionFile(node BuildNode, opts Options, artifacts map[string][]versionfile.Artifact) error {
	f := &versionfile.File{
		Commitish:             string(node.Pinned),
		Configuration:         opts.Configuration,
		ToolchainIdentifier:   opts.ToolchainIdentifier,
		SwiftToolchainVersion: opts.SwiftToolchainVersion,
		Platforms:             artifacts,
	}
	data, err := versionfile.Save(s.versionFilePath(node.Id.DependencyName()), f)
	if err != nil {
		return err
	}
	return writeFile(s.versionFilePath(node.Id.DependencyName()), data)
}

// currentArtifacts hashes whatever framework binaries already exist on disk
// for name, used by the cache check to decide whether a prior build's
// output is still exactly reproduced.
func (s *Scheduler) currentArtifacts(name string, platforms []string) (map[string][]versionfile.Artifact, error) {
	result := map[string][]versionfile.Artifact{}
	for _, platform := range platforms {
		for _, ext := range []string{".framework", ".xcframework"} {
			bundle := filepath.Join(s.Ctx.BuildDir(), platform, name+ext)
			binPath := filepath.Join(bundle, name)
			hash, err := versionfile.HashFile(binPath)
			if err != nil {
				continue
			}
			result[platform] = []versionfile.Artifact{{Name: name, Hash: hash}}
			break
		}
	}
	if len(result) != len(platforms) {
		return nil, fmt.Errorf("not every platform has a built artifact for %s", name)
	}
	return result, nil
}

// topoSort orders nodes so every DirectDeps entry precedes its dependent,
// failing with a *ucerr.ResolutionError (reason dependency-cycle) if the
// dependency graph is not a DAG (spec §4.7 step 2, §4.5 "Cycles").
func topoSort(nodes []BuildNode) ([]BuildNode, error) {
	byId := map[depid.Id]BuildNode{}
	indegree := map[depid.Id]int{}
	dependents := map[depid.Id][]depid.Id{}

	for _, n := range nodes {
		byId[n.Id] = n
		if _, ok := indegree[n.Id]; !ok {
			indegree[n.Id] = 0
		}
	}
	for _, n := range nodes {
		for _, dep := range n.DirectDeps {
			indegree[n.Id]++
			dependents[dep] = append(dependents[dep], n.Id)
		}
	}

	var queue []depid.Id
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].String() < queue[j].String() })

	var sorted []BuildNode
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byId[id])

		var freed []depid.Id
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				freed = append(freed, dep)
			}
		}
		sort.Slice(freed, func(i, j int) bool { return freed[i].String() < freed[j].String() })
		queue = append(queue, freed...)
	}

	if len(sorted) != len(nodes) {
		var cycle []string
		for id, deg := range indegree {
			if deg > 0 {
				cycle = append(cycle, id.String())
			}
		}
		sort.Strings(cycle)
		return nil, ucerr.DependencyCycle(cycle)
	}

	return sorted, nil
}

// restrictToFilter keeps only nodes reachable from the name filter (by
// transitive DirectDeps), preserving sorted's topological order. An empty
// filter keeps everything.
func restrictToFilter(sorted []BuildNode, filter map[string]bool) []BuildNode {
	if len(filter) == 0 {
		return sorted
	}

	byId := map[depid.Id]BuildNode{}
	for _, n := range sorted {
		byId[n.Id] = n
	}

	keep := map[depid.Id]bool{}
	var mark func(id depid.Id)
	mark = func(id depid.Id) {
		if keep[id] {
			return
		}
		keep[id] = true
		for _, dep := range byId[id].DirectDeps {
			mark(dep)
		}
	}

	for _, n := range sorted {
		if filter[n.Id.DependencyName()] {
			mark(n.Id)
		}
	}

	var result []BuildNode
	for _, n := range sorted {
		if keep[n.Id] {
			result = append(result, n)
		}
	}
	return result
}
