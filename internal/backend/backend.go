// Package backend wires internal/sourcevcs and internal/binaryfetch together
// into the resolve.Backend surface: the CLI layer's one concrete
// implementation of "where version and dependency data comes from" for the
// resolver (spec §4.5's Backend parameter).
//
// Grounded on the teacher's bridge.go, which plays the identical role of
// adapting gps.SourceManager onto the solver's narrower interface.
package backend

import (
	"github.com/utica-dep/utica/internal/binaryfetch"
	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/manifest"
	"github.com/utica-dep/utica/internal/sourcevcs"
	"github.com/utica-dep/utica/internal/ucerr"
	"github.com/utica-dep/utica/internal/version"
)

// ManifestName is the file read from a dependency's own working tree to
// discover its transitive requirements, matching uctx.ManifestName.
const ManifestName = "Cartfile"

// Resolver implements resolve.Backend over a live git mirror cache and
// binary-manifest fetcher.
type Resolver struct {
	Source       *sourcevcs.Backend
	Manifests    *binaryfetch.ManifestFetcher
	ManifestOpts manifest.Options
}

// New builds a Resolver.
func New(source *sourcevcs.Backend, manifests *binaryfetch.ManifestFetcher, opts manifest.Options) *Resolver {
	return &Resolver{Source: source, Manifests: manifests, ManifestOpts: opts}
}

// AvailableVersions lists id's known versions: a binary manifest's declared
// keys for a Binary id, or every tag in its mirror that parses as a semantic
// version for a Hosted/Git id.
func (r *Resolver) AvailableVersions(id depid.Id) ([]version.PinnedVersion, error) {
	if id.Kind == depid.KindBinary {
		m, err := r.Manifests.Fetch(id.URL)
		if err != nil {
			return nil, err
		}
		versions := make([]version.PinnedVersion, 0, len(m))
		for v := range m {
			versions = append(versions, v)
		}
		return versions, nil
	}

	mirrorDir, err := r.Source.CloneOrFetch(id, "")
	if err != nil {
		return nil, err
	}

	tags, err := sourcevcs.ListTags(mirrorDir)
	if err != nil {
		return nil, err
	}

	var versions []version.PinnedVersion
	for _, tag := range tags {
		if _, err := version.ParseSemanticVersion(tag); err != nil {
			continue // non-semantic tags are not resolver candidates
		}
		versions = append(versions, version.PinnedVersion(tag))
	}
	return versions, nil
}

// ResolveGitReference resolves ref against id's mirror to a concrete SHA.
func (r *Resolver) ResolveGitReference(id depid.Id, ref string) (string, error) {
	mirrorDir, err := r.Source.CloneOrFetch(id, ref)
	if err != nil {
		return "", err
	}
	return sourcevcs.ResolveRef(mirrorDir, ref)
}

// DependenciesOf reads id's own manifest at pinned and returns its direct
// requirements, or nil for a Binary id (which never declares dependencies).
func (r *Resolver) DependenciesOf(id depid.Id, pinned version.PinnedVersion) (map[depid.Id]version.VersionSpecifier, error) {
	if id.Kind == depid.KindBinary {
		return nil, nil
	}

	mirrorDir, err := r.Source.CloneOrFetch(id, string(pinned))
	if err != nil {
		return nil, err
	}

	data, err := sourcevcs.ReadFileAtRevision(mirrorDir, ManifestName, string(pinned))
	if err != nil {
		return map[depid.Id]version.VersionSpecifier{}, nil // no manifest at this revision: a leaf dependency
	}

	entries, err := manifest.Parse(data, id.DependencyName()+"/"+ManifestName, r.ManifestOpts)
	if err != nil {
		return nil, ucerr.NewParseError(id.DependencyName(), "parsing transitive manifest: %v", err)
	}

	result := make(map[depid.Id]version.VersionSpecifier, len(entries))
	for _, e := range entries {
		result[e.Id] = e.Specifier
	}
	return result, nil
}
