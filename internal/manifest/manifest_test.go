package manifest

import (
	"testing"

	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/version"
)

func TestParseGithubLine(t *testing.T) {
	entries, err := Parse([]byte(`github "ReactiveCocoa/ReactiveCocoa"`), "Cartfile", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	id := entries[0].Id
	if id.Kind != depid.KindHosted || id.Host.Kind != depid.HostPrimary || id.Owner != "ReactiveCocoa" || id.Name != "ReactiveCocoa" {
		t.Errorf("unexpected id: %+v", id)
	}
}

func TestParseGithubEnterpriseLine(t *testing.T) {
	entries, err := Parse([]byte(`github "http://ghe.example.com/o/n"`), "Cartfile", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := entries[0].Id
	if id.Host.Kind != depid.HostEnterprise || id.Host.BaseURL != "http://ghe.example.com" || id.Owner != "o" || id.Name != "n" {
		t.Errorf("unexpected id: %+v", id)
	}
}

func TestParseGithubInvalid(t *testing.T) {
	_, err := Parse([]byte(`github "Whatsthis"`), "Cartfile", Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != `invalid GitHub repository identifier "Whatsthis"` {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestGitToHostedCanonicalization(t *testing.T) {
	gitEntries, err := Parse([]byte(`git "ssh://git@github.com:owner/name"`), "Cartfile", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	githubEntries, err := Parse([]byte(`github "owner/name"`), "Cartfile", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gitEntries[0].Id.Equal(githubEntries[0].Id) {
		t.Errorf("expected canonicalized git id to equal github id: %+v vs %+v", gitEntries[0].Id, githubEntries[0].Id)
	}
}

func TestNameSanitizationScenario(t *testing.T) {
	entries, err := Parse([]byte(`git "...git"`), "Cartfile", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := entries[0].Id.DependencyName(); got != "．．" {
		t.Errorf("got %q, want %q", got, "．．")
	}

	nul := string([]byte{0})
	entries2, err := Parse([]byte(`git "./../../../../../`+nul+`myproject"`), "Cartfile", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := entries2[0].Id.DependencyName(); got != "␀myproject" {
		t.Errorf("got %q, want %q", got, "␀myproject")
	}
}

func TestSpecifierGrammar(t *testing.T) {
	cases := []struct {
		line string
		want version.SpecifierKind
	}{
		{`github "a/b" ~> 1.0.0`, version.SpecCompatibleWith},
		{`github "a/b" >= 1.0.0`, version.SpecAtLeast},
		{`github "a/b" == 1.0.0`, version.SpecExactly},
		{`github "a/b" "develop"`, version.SpecGitReference},
		{`github "a/b"`, version.SpecAny},
	}
	for _, c := range cases {
		entries, err := Parse([]byte(c.line), "Cartfile", Options{})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.line, err)
		}
		if entries[0].Specifier.Kind != c.want {
			t.Errorf("%q: got kind %v, want %v", c.line, entries[0].Specifier.Kind, c.want)
		}
	}
}

func TestCommentStripping(t *testing.T) {
	entries, err := Parse([]byte(`github "a/b" # a comment with a " quote`), "Cartfile", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestRoundTrip(t *testing.T) {
	src := []byte("github \"a/b\" ~> 1.0.0\ngit \"https://example.com/x.git\"\nbinary \"https://cdn.example.com/y.json\"\n")
	entries, err := Parse(src, "Cartfile", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	serialized := Serialize(entries)
	reparsed, err := Parse(serialized, "Cartfile", Options{})
	if err != nil {
		t.Fatalf("unexpected error reparsing: %v", err)
	}
	if len(reparsed) != len(entries) {
		t.Fatalf("round trip entry count mismatch: %d vs %d", len(reparsed), len(entries))
	}
	for i := range entries {
		if !entries[i].Id.Equal(reparsed[i].Id) || entries[i].Specifier != reparsed[i].Specifier {
			t.Errorf("round trip mismatch at %d: %+v vs %+v", i, entries[i], reparsed[i])
		}
	}
}

func TestMergeDuplicateRejected(t *testing.T) {
	primary, _ := Parse([]byte(`github "a/b"`), "Cartfile", Options{})
	private, _ := Parse([]byte(`github "a/b" ~> 2.0.0`), "Cartfile.private", Options{})
	_, err := Merge(primary, private)
	if err == nil {
		t.Fatal("expected duplicate dependency error")
	}
}

func TestLockRoundTrip(t *testing.T) {
	entries := []LockEntry{
		{Id: depid.Hosted(depid.Host{Kind: depid.HostPrimary}, "b", "b"), Pinned: "2.0.0"},
		{Id: depid.Hosted(depid.Host{Kind: depid.HostPrimary}, "a", "a"), Pinned: "1.0.0"},
	}
	serialized := SerializeLock(entries)
	reparsed, err := ParseLock(serialized, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reparsed) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(reparsed))
	}
	if reparsed[0].Id.Owner != "a" {
		t.Errorf("expected canonical sort order, got %+v", reparsed)
	}
}
