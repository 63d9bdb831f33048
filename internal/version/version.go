// Package version implements the semantic-version algebra of Utica: parsing,
// ordering, and specifier satisfaction/intersection.
//
// Construction and strict-grammar validation are hand-rolled (the pack's
// github.com/Masterminds/semver accepts forms this package must reject, such
// as a defaulted third component), but *ordering* once a version is known to
// be well-formed is delegated to semver.Version.Compare, which already
// implements the SemVer 2.0.0 precedence rules faithfully.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// semverPattern mirrors the canonical SemVer 2.0.0 grammar, with named
// groups for the three numeric components, the pre-release span, and the
// build-metadata span. Go's RE2 engine treats \d as strictly ASCII, which is
// what rejects full-width digit forms like "1.４.5".
var semverPattern = regexp.MustCompile(
	`^(?P<major>0|[1-9]\d*)\.(?P<minor>0|[1-9]\d*)\.(?P<patch>0|[1-9]\d*)` +
		`(?:-(?P<pre>(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?` +
		`(?:\+(?P<build>[0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`,
)

// SemanticVersion is a strictly-parsed SemVer 2.0.0 version: exactly three
// numeric components, with optional pre-release and build-metadata spans.
type SemanticVersion struct {
	Major, Minor, Patch uint64
	PreRelease          string
	BuildMetadata       string
}

// New constructs a SemanticVersion directly, bypassing string parsing. It is
// the only way to build an (M, m, 0) triple explicitly, since ParseSemanticVersion
// never defaults a missing component.
func New(major, minor, patch uint64) SemanticVersion {
	return SemanticVersion{Major: major, Minor: minor, Patch: patch}
}

// ParseSemanticVersion parses s, after stripping one optional leading "v",
// against the strict three-component SemVer 2.0.0 grammar. A version missing
// its patch component, carrying a leading zero in a numeric identifier, or
// written with non-ASCII digits is rejected rather than coerced.
func ParseSemanticVersion(s string) (SemanticVersion, error) {
	trimmed := strings.TrimPrefix(s, "v")
	m := semverPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return SemanticVersion{}, errors.Errorf("%q is not a valid semantic version", s)
	}
	names := semverPattern.SubexpNames()
	groups := make(map[string]string, len(names))
	for i, name := range names {
		if name != "" {
			groups[name] = m[i]
		}
	}

	major, err := strconv.ParseUint(groups["major"], 10, 64)
	if err != nil {
		return SemanticVersion{}, errors.Wrapf(err, "parsing major component of %q", s)
	}
	minor, err := strconv.ParseUint(groups["minor"], 10, 64)
	if err != nil {
		return SemanticVersion{}, errors.Wrapf(err, "parsing minor component of %q", s)
	}
	patch, err := strconv.ParseUint(groups["patch"], 10, 64)
	if err != nil {
		return SemanticVersion{}, errors.Wrapf(err, "parsing patch component of %q", s)
	}

	return SemanticVersion{
		Major:         major,
		Minor:         minor,
		Patch:         patch,
		PreRelease:    groups["pre"],
		BuildMetadata: groups["build"],
	}, nil
}

// IsPreRelease reports whether v carries a pre-release span.
func (v SemanticVersion) IsPreRelease() bool {
	return v.PreRelease != ""
}

// String renders v in canonical SemVer form.
func (v SemanticVersion) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		s += "-" + v.PreRelease
	}
	if v.BuildMetadata != "" {
		s += "+" + v.BuildMetadata
	}
	return s
}

// toSemver converts v, pre-release and build metadata included, to a
// *semver.Version, so comparisons can be delegated to semver.Version.Compare.
func (v SemanticVersion) toSemver() *semver.Version {
	sv, err := semver.NewVersion(v.String())
	if err != nil {
		// Unreachable: v was itself produced by ParseSemanticVersion or New,
		// both of which only ever produce strings semver.NewVersion accepts
		// (semver.NewVersion's grammar is a superset of ours).
		panic(errors.Wrapf(err, "internal: %q round-tripped through semver.NewVersion", v))
	}
	return sv
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than o,
// under SemVer 2.0.0 precedence (build metadata never participates).
func (v SemanticVersion) Compare(o SemanticVersion) int {
	return v.toSemver().Compare(o.toSemver())
}

// Less reports whether v orders strictly before o.
func (v SemanticVersion) Less(o SemanticVersion) bool {
	return v.Compare(o) < 0
}

// Equal reports whether v and o have the same core triple and pre-release
// (build metadata is ignored, matching SemVer precedence rules).
func (v SemanticVersion) Equal(o SemanticVersion) bool {
	return v.Compare(o) == 0
}

// EqualExact reports whether v and o are identical including build metadata,
// the stricter notion Exactly() uses.
func (v SemanticVersion) EqualExact(o SemanticVersion) bool {
	return v.Major == o.Major && v.Minor == o.Minor && v.Patch == o.Patch &&
		v.PreRelease == o.PreRelease && v.BuildMetadata == o.BuildMetadata
}

// withoutPreRelease returns the release version of v's core triple.
func (v SemanticVersion) withoutPreRelease() SemanticVersion {
	return SemanticVersion{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
}
