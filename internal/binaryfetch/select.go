package binaryfetch

import (
	"path"
	"sort"
	"strings"
)

// SelectAssets implements the asset-selection rule of spec §4.4: given the
// candidate asset URLs for one version, xcframework-style assets are
// prioritized over single-platform-framework assets when preferXCFrameworks
// is set; within the surviving priority tier, assets sharing a common key
// (their file name with the framework/xcframework token stripped) are
// deduplicated, keeping the one that sorts first by file name.
func SelectAssets(urls []string, preferXCFrameworks bool) []string {
	if len(urls) == 0 {
		return nil
	}

	xc := filterByKind(urls, true)
	plain := filterByKind(urls, false)

	var tier []string
	switch {
	case preferXCFrameworks && len(xc) > 0:
		tier = xc
	case len(plain) > 0:
		tier = plain
	default:
		tier = xc
	}

	return dedupeByKey(tier)
}

func filterByKind(urls []string, xcframework bool) []string {
	var out []string
	for _, u := range urls {
		name := strings.ToLower(path.Base(u))
		isXC := strings.Contains(name, "xcframework")
		if isXC == xcframework {
			out = append(out, u)
		}
	}
	return out
}

// dedupeByKey groups urls whose base file name, with the framework/
// xcframework token stripped, is identical, keeping the earliest by file
// name within each group.
func dedupeByKey(urls []string) []string {
	groups := map[string][]string{}
	var order []string

	for _, u := range urls {
		key := commonKey(u)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], u)
	}

	result := make([]string, 0, len(order))
	for _, key := range order {
		members := groups[key]
		sort.Slice(members, func(i, j int) bool {
			return path.Base(members[i]) < path.Base(members[j])
		})
		result = append(result, members[0])
	}
	return result
}

func commonKey(assetURL string) string {
	name := strings.ToLower(path.Base(assetURL))
	for _, token := range []string{".xcframework", ".framework"} {
		if idx := strings.Index(name, token); idx != -1 {
			return name[:idx]
		}
	}
	for _, ext := range []string{".zip", ".tar.gz", ".tgz"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
