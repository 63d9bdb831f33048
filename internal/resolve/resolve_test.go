package resolve

import (
	"testing"

	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/version"
)

// fakeBackend is a fixed fixture: versions and dependency edges are
// supplied up front, keyed by DependencyName since that's all tests need to
// address distinct fixture repos unambiguously.
type fakeBackend struct {
	versions map[string][]version.PinnedVersion
	deps     map[string]map[string]map[depid.Id]version.VersionSpecifier // name -> pinned -> children
	refs     map[string]string                                           // name -> sha ref resolves to
}

func repoID(name string) depid.Id {
	return depid.Hosted(depid.Host{Kind: depid.HostPrimary}, "example", name)
}

func (f *fakeBackend) AvailableVersions(id depid.Id) ([]version.PinnedVersion, error) {
	return f.versions[id.DependencyName()], nil
}

func (f *fakeBackend) ResolveGitReference(id depid.Id, ref string) (string, error) {
	if sha, ok := f.refs[id.DependencyName()]; ok {
		return sha, nil
	}
	return ref, nil
}

func (f *fakeBackend) DependenciesOf(id depid.Id, pinned version.PinnedVersion) (map[depid.Id]version.VersionSpecifier, error) {
	byVersion := f.deps[id.DependencyName()]
	if byVersion == nil {
		return nil, nil
	}
	return byVersion[string(pinned)], nil
}

func mustVersion(t *testing.T, s string) version.SemanticVersion {
	t.Helper()
	v, err := version.ParseSemanticVersion(s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return v
}

// TestResolveDiamond covers the end-to-end scenario of spec §8: the roots
// require A at ~> 1.0.0 and B at >= 2.0.0; A 1.2.0 depends on C, whose own
// requirement on B (>= 2.1.0) tightens the constraint; the resolver must
// settle on the highest B version still satisfying both.
func TestResolveDiamond(t *testing.T) {
	a, b, c := repoID("A"), repoID("B"), repoID("C")

	backend := &fakeBackend{
		versions: map[string][]version.PinnedVersion{
			"A": {"1.0.0", "1.2.0"},
			"B": {"2.0.0", "2.1.0", "2.2.0"},
			"C": {"1.0.0"},
		},
		deps: map[string]map[string]map[depid.Id]version.VersionSpecifier{
			"A": {
				"1.2.0": {
					c: version.Any(),
				},
			},
			"C": {
				"1.0.0": {
					b: version.AtLeast(mustVersion(t, "2.1.0")),
				},
			},
		},
	}

	result, err := Resolve(Input{
		Roots: map[depid.Id]version.VersionSpecifier{
			a: version.CompatibleWith(mustVersion(t, "1.0.0")),
			b: version.AtLeast(mustVersion(t, "2.0.0")),
		},
		Backend: backend,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result[a] != "1.2.0" {
		t.Errorf("A: got %v, want 1.2.0", result[a])
	}
	if result[b] != "2.2.0" {
		t.Errorf("B: got %v, want 2.2.0 (highest satisfying both >=2.0.0 and >=2.1.0)", result[b])
	}
	if result[c] != "1.0.0" {
		t.Errorf("C: got %v, want 1.0.0", result[c])
	}
}

// TestResolveIncompatibleRequirements covers the conflict scenario: two
// parents require mutually exclusive major versions of the same dependency.
func TestResolveIncompatibleRequirements(t *testing.T) {
	a, b, c := repoID("A"), repoID("B"), repoID("C")

	backend := &fakeBackend{
		versions: map[string][]version.PinnedVersion{
			"A": {"1.0.0"},
			"B": {"1.0.0"},
			"C": {"1.0.0", "2.0.0"},
		},
		deps: map[string]map[string]map[depid.Id]version.VersionSpecifier{
			"A": {"1.0.0": {c: version.CompatibleWith(mustVersion(t, "1.0.0"))}},
			"B": {"1.0.0": {c: version.CompatibleWith(mustVersion(t, "2.0.0"))}},
		},
	}

	_, err := Resolve(Input{
		Roots: map[depid.Id]version.VersionSpecifier{
			a: version.Any(),
			b: version.Any(),
		},
		Backend: backend,
	})
	if err == nil {
		t.Fatal("expected an incompatible-requirements error, got nil")
	}
}

// TestResolveRequiredVersionNotFound covers a root requirement no
// available version satisfies.
func TestResolveRequiredVersionNotFound(t *testing.T) {
	a := repoID("A")
	backend := &fakeBackend{
		versions: map[string][]version.PinnedVersion{"A": {"1.0.0"}},
	}

	_, err := Resolve(Input{
		Roots: map[depid.Id]version.VersionSpecifier{
			a: version.AtLeast(mustVersion(t, "2.0.0")),
		},
		Backend: backend,
	})
	if err == nil {
		t.Fatal("expected a required-version-not-found error, got nil")
	}
}

// TestResolvePartialUpdate covers spec §8's partial-update scenario: with
// dependenciesToUpdate restricted to B, A must stay pinned at its last
// resolved version even though a newer one now satisfies its root
// specifier, while B is free to move to the newest satisfying version.
func TestResolvePartialUpdate(t *testing.T) {
	a, b := repoID("A"), repoID("B")

	backend := &fakeBackend{
		versions: map[string][]version.PinnedVersion{
			"A": {"1.0.0", "1.1.0"},
			"B": {"2.0.0", "2.1.0"},
		},
	}

	result, err := Resolve(Input{
		Roots: map[depid.Id]version.VersionSpecifier{
			a: version.AtLeast(mustVersion(t, "1.0.0")),
			b: version.AtLeast(mustVersion(t, "2.0.0")),
		},
		LastResolved: map[depid.Id]version.PinnedVersion{
			a: "1.0.0",
			b: "2.0.0",
		},
		DependenciesToUpdate: map[string]bool{"B": true},
		Backend:              backend,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result[a] != "1.0.0" {
		t.Errorf("A should stay pinned at 1.0.0 under a partial update of B, got %v", result[a])
	}
	if result[b] != "2.1.0" {
		t.Errorf("B should move to the newest satisfying version, got %v", result[b])
	}
}

// TestResolveGitReferencePinsToSHA covers the rule that a GitReference
// requirement is resolved to a concrete SHA before being recorded, so
// lockfiles don't drift under branch movement.
func TestResolveGitReferencePinsToSHA(t *testing.T) {
	a := repoID("A")
	backend := &fakeBackend{
		refs: map[string]string{"A": "abc123def456"},
	}

	result, err := Resolve(Input{
		Roots: map[depid.Id]version.VersionSpecifier{
			a: version.GitReference("main"),
		},
		Backend: backend,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result[a] != "abc123def456" {
		t.Errorf("got %v, want the resolved SHA abc123def456", result[a])
	}
}

// TestResolveNoRoots is the degenerate base case: an empty root set
// resolves to an empty graph with no backend calls.
func TestResolveNoRoots(t *testing.T) {
	result, err := Resolve(Input{Backend: &fakeBackend{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected an empty resolved graph, got %v", result)
	}
}
