package buildsched

import (
	"context"
	"testing"

	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/uctx"
	"github.com/utica-dep/utica/internal/version"
	"github.com/utica-dep/utica/internal/versionfile"
)

func node(name string, deps ...depid.Id) BuildNode {
	id := depid.Hosted(depid.Host{Kind: depid.HostPrimary}, "example", name)
	return BuildNode{Id: id, Pinned: "1.0.0", DirectDeps: deps}
}

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	b := node("B")
	a := node("A", b.Id)

	sorted, err := topoSort([]BuildNode{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sorted[0].Id != b.Id || sorted[1].Id != a.Id {
		t.Errorf("expected B before A, got %v", names(sorted))
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	a := node("A")
	b := node("B")
	a.DirectDeps = []depid.Id{b.Id}
	b.DirectDeps = []depid.Id{a.Id}

	_, err := topoSort([]BuildNode{a, b})
	if err == nil {
		t.Fatal("expected a cycle error, got nil")
	}
}

func TestRestrictToFilterKeepsTransitiveDeps(t *testing.T) {
	c := node("C")
	b := node("B", c.Id)
	a := node("A", b.Id)
	unrelated := node("D")

	sorted := []BuildNode{c, b, a, unrelated}
	result := restrictToFilter(sorted, map[string]bool{"A": true})

	if len(result) != 3 {
		t.Fatalf("expected A, B, C kept and D dropped, got %v", names(result))
	}
	for _, n := range result {
		if n.Id.DependencyName() == "D" {
			t.Error("D should have been filtered out")
		}
	}
}

func names(nodes []BuildNode) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Id.DependencyName())
	}
	return out
}

type fakeBuilder struct {
	built []string
}

func (f *fakeBuilder) Build(ctx context.Context, n BuildNode, platforms []string, derivedData string) (map[string][]versionfile.Artifact, error) {
	f.built = append(f.built, n.Id.DependencyName())
	return map[string][]versionfile.Artifact{"iOS": {{Name: n.Id.DependencyName(), Hash: "h"}}}, nil
}

type fakeInstaller struct{}

func (fakeInstaller) InstallHosted(ctx context.Context, n BuildNode, preferXC bool) (map[string][]versionfile.Artifact, bool, error) {
	return nil, false, nil
}
func (fakeInstaller) InstallBinary(ctx context.Context, n BuildNode) (map[string][]versionfile.Artifact, error) {
	return nil, nil
}

func TestRunBuildsEveryNodeWhenUncached(t *testing.T) {
	dir := t.TempDir()
	ctx, err := uctx.NewCtx(dir)
	if err != nil {
		t.Fatal(err)
	}

	b := node("B")
	a := node("A", b.Id)
	builder := &fakeBuilder{}
	sched := NewScheduler(ctx, builder, fakeInstaller{})

	events, wait := sched.Run(context.Background(), []BuildNode{a, b}, Options{Platforms: []string{"iOS"}})
	for range events {
	}
	if err := wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(builder.built) != 2 {
		t.Fatalf("expected both nodes built, got %v", builder.built)
	}
	if builder.built[0] != "B" {
		t.Errorf("B must build before A, got order %v", builder.built)
	}
}

func TestVersionPinnedOrdering(t *testing.T) {
	if !version.PinnedVersion("1.0.0").Less("1.1.0") {
		t.Error("sanity check on PinnedVersion.Less failed")
	}
}
