// Package resolve implements the Resolver (spec §4.5): a greedy,
// three-phase fixpoint over (candidates, requirements, resolved, filter),
// producing a map from DependencyId to PinnedVersion that satisfies every
// reachable constraint. Modeled as an immutable record passed through each
// phase (spec §9 design note), rather than a single mutable struct threaded
// by pointer, so each phase's effect is a pure function of its inputs.
package resolve

import (
	"sort"

	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/ucerr"
	"github.com/utica-dep/utica/internal/version"
)

// Backend abstracts the Source and Binary backends' resolver-facing surface:
// version enumeration and per-version transitive dependency declarations.
// Implementations are expected to return already hosted-canonicalized
// depid.Id values, matching what manifest.Parse would produce for the same
// identifier.
type Backend interface {
	// AvailableVersions lists every version of id known to the backend. For
	// a GitReference specifier this is never called; ResolveGitReference is
	// used instead.
	AvailableVersions(id depid.Id) ([]version.PinnedVersion, error)
	// ResolveGitReference resolves ref (a branch or commit name) against id
	// to a concrete commit SHA.
	ResolveGitReference(id depid.Id, ref string) (string, error)
	// DependenciesOf returns the direct dependency declarations of id at
	// pinned, or nil for a Binary id (which has no transitive dependencies).
	DependenciesOf(id depid.Id, pinned version.PinnedVersion) (map[depid.Id]version.VersionSpecifier, error)
}

// Filter optionally overrides free resolution of id, used to implement
// partial updates (spec §4.5 "Filter and partial updates"). ok == false
// means "resolve freely under the current specifier".
type Filter func(id depid.Id, spec version.VersionSpecifier) (pinned version.PinnedVersion, ok bool)

// NoFilter always resolves freely.
func NoFilter(depid.Id, version.VersionSpecifier) (version.PinnedVersion, bool) {
	return "", false
}

type requirement struct {
	Specifier  version.VersionSpecifier
	RequiredBy []depid.Id // empty for a root-declared requirement
}

// Input bundles the resolver's parameters (spec §4.5 signature).
type Input struct {
	Roots                map[depid.Id]version.VersionSpecifier
	LastResolved         map[depid.Id]version.PinnedVersion
	DependenciesToUpdate map[string]bool // by DependencyName
	Backend              Backend
}

// Resolve runs the fixpoint algorithm to completion, or returns a
// *ucerr.ResolutionError / *ucerr.ResolutionError-family failure.
func Resolve(in Input) (map[depid.Id]version.PinnedVersion, error) {
	roots, filter := applyPartialUpdate(in)

	requirements := map[depid.Id]requirement{}
	for id, spec := range roots {
		requirements[id] = requirement{Specifier: spec}
	}

	resolved := map[depid.Id]version.PinnedVersion{}

	for {
		candidates, err := selectCandidates(requirements, resolved, filter, in.Backend)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return resolved, nil
		}

		if err := expand(candidates, requirements, in.Backend); err != nil {
			return nil, err
		}

		resolved = commit(resolved, candidates, requirements)
	}
}

// applyPartialUpdate restricts roots and builds the pinning filter per spec
// §4.5: "restricts roots to identifiers that appear in lastResolved or whose
// name is in dependenciesToUpdate... pins any dependency not in
// dependenciesToUpdate to the version recorded in lastResolved whenever that
// version still satisfies the current specifier".
func applyPartialUpdate(in Input) (map[depid.Id]version.VersionSpecifier, Filter) {
	if len(in.DependenciesToUpdate) == 0 || len(in.LastResolved) == 0 {
		return in.Roots, NoFilter
	}

	restricted := map[depid.Id]version.VersionSpecifier{}
	for id, spec := range in.Roots {
		_, inLast := in.LastResolved[id]
		if inLast || in.DependenciesToUpdate[id.DependencyName()] {
			restricted[id] = spec
		}
	}

	filter := func(id depid.Id, spec version.VersionSpecifier) (version.PinnedVersion, bool) {
		if in.DependenciesToUpdate[id.DependencyName()] {
			return "", false
		}
		pinned, ok := in.LastResolved[id]
		if !ok {
			return "", false
		}
		if !spec.IsSatisfiedBy(pinned) {
			return "", false
		}
		return pinned, true
	}

	return restricted, filter
}

// selectCandidates implements phase 1: for each requirement not yet
// resolved, pick the highest satisfying, filter-compatible version.
func selectCandidates(
	requirements map[depid.Id]requirement,
	resolved map[depid.Id]version.PinnedVersion,
	filter Filter,
	backend Backend,
) (map[depid.Id]version.PinnedVersion, error) {
	candidates := map[depid.Id]version.PinnedVersion{}

	for id, req := range requirements {
		if _, done := resolved[id]; done {
			continue
		}

		if req.Specifier.Kind == version.SpecGitReference {
			sha, err := backend.ResolveGitReference(id, req.Specifier.GitRef)
			if err != nil {
				return nil, ucerr.RequiredVersionNotFound(id.String(), req.Specifier.String())
			}
			// Record the SHA as the requirement, so commit's satisfaction
			// check compares the SHA against itself rather than the ref name.
			requirements[id] = requirement{Specifier: version.GitReference(sha), RequiredBy: req.RequiredBy}
			candidates[id] = version.PinnedVersion(sha)
			continue
		}

		if pinned, ok := filter(id, req.Specifier); ok {
			candidates[id] = pinned
			continue
		}

		all, err := backend.AvailableVersions(id)
		if err != nil {
			return nil, ucerr.RequiredVersionNotFound(id.String(), req.Specifier.String())
		}

		var best version.PinnedVersion
		found := false
		for _, v := range all {
			if !req.Specifier.IsSatisfiedBy(v) {
				continue
			}
			if pin, ok := filter(id, req.Specifier); ok && pin != v {
				continue
			}
			if !found || best.Less(v) {
				best, found = v, true
			}
		}
		if !found {
			return nil, ucerr.RequiredVersionNotFound(id.String(), req.Specifier.String())
		}
		candidates[id] = best
	}

	return candidates, nil
}

// expand implements phase 2: fetch each candidate's transitive declarations
// and merge them into requirements, intersecting with any existing
// specifier on the same child.
func expand(
	candidates map[depid.Id]version.PinnedVersion,
	requirements map[depid.Id]requirement,
	backend Backend,
) error {
	// Deterministic order keeps conflict-attribution messages stable.
	parents := sortedIds(candidates)

	for _, parent := range parents {
		children, err := backend.DependenciesOf(parent, candidates[parent])
		if err != nil {
			return err
		}

		for _, child := range sortedIds(children) {
			childSpec := children[child]

			if childSpec.Kind == version.SpecGitReference {
				sha, err := backend.ResolveGitReference(child, childSpec.GitRef)
				if err != nil {
					return ucerr.RequiredVersionNotFound(child.String(), childSpec.String())
				}
				childSpec = version.GitReference(sha)
			}

			existing, had := requirements[child]
			if !had {
				requirements[child] = requirement{Specifier: childSpec, RequiredBy: []depid.Id{parent}}
				continue
			}

			merged, ok := version.Intersect(existing.Specifier, childSpec)
			if !ok {
				return ucerr.IncompatibleRequirements(child.String(), existing.Specifier.String(), childSpec.String())
			}
			requirements[child] = requirement{
				Specifier:  merged,
				RequiredBy: append(append([]depid.Id{}, existing.RequiredBy...), parent),
			}
		}
	}

	return nil
}

// commit implements phase 3: merge candidates into resolved, then drop (and
// implicitly re-queue, since they remain in requirements) any resolved
// entry that no longer satisfies the latest requirements.
func commit(
	resolved map[depid.Id]version.PinnedVersion,
	candidates map[depid.Id]version.PinnedVersion,
	requirements map[depid.Id]requirement,
) map[depid.Id]version.PinnedVersion {
	next := map[depid.Id]version.PinnedVersion{}
	for id, v := range resolved {
		next[id] = v
	}
	for id, v := range candidates {
		next[id] = v
	}

	result := map[depid.Id]version.PinnedVersion{}
	for id, v := range next {
		req, ok := requirements[id]
		if ok && req.Specifier.IsSatisfiedBy(v) {
			result[id] = v
		}
		// Else: a later-tightened requirement invalidated this resolution;
		// dropping it from `resolved` causes the next selectCandidates pass
		// to re-resolve it under the new requirement.
	}
	return result
}

func sortedIds(m interface{}) []depid.Id {
	var ids []depid.Id
	switch mm := m.(type) {
	case map[depid.Id]version.PinnedVersion:
		for id := range mm {
			ids = append(ids, id)
		}
	case map[depid.Id]version.VersionSpecifier:
		for id := range mm {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
