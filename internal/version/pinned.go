package version

// PinnedVersion is an opaque string recorded in the lockfile: it either
// parses as a SemanticVersion or stands as an opaque commit identifier
// (a branch name or a SHA).
type PinnedVersion string

// Semantic attempts to interpret p as a SemanticVersion.
func (p PinnedVersion) Semantic() (SemanticVersion, bool) {
	sv, err := ParseSemanticVersion(string(p))
	if err != nil {
		return SemanticVersion{}, false
	}
	return sv, true
}

// sortKey returns the SemanticVersion used to order p against other
// PinnedVersions: its own parse if semantic, else the zero version, per
// spec ("unparseable values collate as 0.0.0").
func (p PinnedVersion) sortKey() SemanticVersion {
	if sv, ok := p.Semantic(); ok {
		return sv
	}
	return SemanticVersion{}
}

// Less orders p before o, preferring semantic comparison and falling back to
// the 0.0.0 collation rule for unparseable values.
func (p PinnedVersion) Less(o PinnedVersion) bool {
	return p.sortKey().Less(o.sortKey())
}

// String returns the literal lockfile form.
func (p PinnedVersion) String() string {
	return string(p)
}

// HighestPinnedVersion returns the greatest of vs under PinnedVersion
// ordering. It panics on an empty slice; callers are expected to have
// already handled the "no versions available" case.
func HighestPinnedVersion(vs []PinnedVersion) PinnedVersion {
	best := vs[0]
	for _, v := range vs[1:] {
		if best.Less(v) {
			best = v
		}
	}
	return best
}
