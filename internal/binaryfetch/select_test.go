package binaryfetch

import (
	"reflect"
	"testing"
)

func TestSelectAssetsPrioritizesXCFramework(t *testing.T) {
	urls := []string{
		"https://cdn.example.com/Alpha.framework.zip",
		"https://cdn.example.com/Alpha.xcframework.zip",
	}
	got := SelectAssets(urls, true)
	want := []string{"https://cdn.example.com/Alpha.xcframework.zip"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelectAssetsIgnoresXCFrameworkWhenNotPreferred(t *testing.T) {
	urls := []string{
		"https://cdn.example.com/Alpha.framework.zip",
		"https://cdn.example.com/Alpha.xcframework.zip",
	}
	got := SelectAssets(urls, false)
	want := []string{"https://cdn.example.com/Alpha.framework.zip"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelectAssetsDedupesByCommonKey(t *testing.T) {
	urls := []string{
		"https://mirror-b.example.com/Alpha.framework.zip",
		"https://mirror-a.example.com/Alpha.framework.zip",
	}
	got := SelectAssets(urls, false)
	if len(got) != 1 {
		t.Fatalf("expected dedup to keep exactly one asset, got %v", got)
	}
}

func TestParseVersionManifestSingleAndMulti(t *testing.T) {
	body := []byte(`{"1.0.0": "https://a.example.com/x.zip", "2.0.0": ["https://a.example.com/y.zip", "https://a.example.com/z.zip"]}`)
	m, err := ParseVersionManifest(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m["1.0.0"]) != 1 || len(m["2.0.0"]) != 2 {
		t.Errorf("unexpected manifest: %+v", m)
	}
}
