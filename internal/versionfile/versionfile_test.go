package versionfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatchesIdenticalArtifactSetOutOfOrder(t *testing.T) {
	f := &File{
		Commitish:     "1.0.0",
		Configuration: "Release",
		Platforms: map[string][]Artifact{
			"iOS": {{Name: "A", Hash: "aaa"}, {Name: "B", Hash: "bbb"}},
		},
	}
	current := map[string][]Artifact{
		"iOS": {{Name: "B", Hash: "bbb"}, {Name: "A", Hash: "aaa"}},
	}
	if !f.Matches("1.0.0", "Release", "", "", current) {
		t.Error("expected a match regardless of artifact ordering")
	}
}

func TestMatchesFailsOnCommitishDrift(t *testing.T) {
	f := &File{Commitish: "1.0.0", Platforms: map[string][]Artifact{}}
	if f.Matches("1.1.0", "", "", "", map[string][]Artifact{}) {
		t.Error("expected no match after the resolved version changed")
	}
}

func TestMatchesFailsOnMissingPlatform(t *testing.T) {
	f := &File{
		Commitish: "1.0.0",
		Platforms: map[string][]Artifact{"iOS": {{Name: "A", Hash: "aaa"}}},
	}
	current := map[string][]Artifact{
		"iOS":     {{Name: "A", Hash: "aaa"}},
		"tvOS":    {{Name: "A", Hash: "aaa"}},
	}
	if f.Matches("1.0.0", "", "", "", current) {
		t.Error("expected no match when a platform entry is missing from the file")
	}
}

func TestNilFileNeverMatches(t *testing.T) {
	var f *File
	if f.Matches("1.0.0", "", "", "", nil) {
		t.Error("a nil (absent) version file must never match")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".Alpha.version")
	want := &File{
		Commitish:     "2.0.0",
		Configuration: "Release",
		Platforms: map[string][]Artifact{
			"iOS": {{Name: "Alpha", Hash: "deadbeef"}},
		},
	}
	data, err := Save(path, want)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Matches(want.Commitish, want.Configuration, "", "", want.Platforms) {
		t.Error("round-tripped file should match its own original contents")
	}
}

func TestHashFileIsStableAndContentSensitive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin")
	if err := os.WriteFile(path, []byte("framework-binary-contents"), 0644); err != nil {
		t.Fatal(err)
	}

	h1, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	h2, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash should be stable across calls: %q vs %q", h1, h2)
	}

	if err := os.WriteFile(path, []byte("different-contents"), 0644); err != nil {
		t.Fatal(err)
	}
	h3, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if h1 == h3 {
		t.Error("hash should change when the file's contents change")
	}
}
