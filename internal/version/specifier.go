package version

import "fmt"

// SpecifierKind enumerates the closed set of VersionSpecifier variants.
type SpecifierKind int

const (
	// SpecAny matches every non-pre-release pinned version.
	SpecAny SpecifierKind = iota
	// SpecAtLeast matches a semantic version at or above a target, release versions only.
	SpecAtLeast
	// SpecCompatibleWith matches a semantic version compatible with a target per "~>" rules.
	SpecCompatibleWith
	// SpecExactly matches one exact semantic version, including pre-release.
	SpecExactly
	// SpecGitReference matches an opaque commitish (branch or commit name) exactly.
	SpecGitReference
)

// VersionSpecifier is the closed tagged sum of constraints a manifest entry
// can declare against a dependency.
type VersionSpecifier struct {
	Kind    SpecifierKind
	Version SemanticVersion // meaningful for AtLeast, CompatibleWith, Exactly
	GitRef  string          // meaningful for GitReference
}

// Any is the unconstrained specifier.
func Any() VersionSpecifier { return VersionSpecifier{Kind: SpecAny} }

// AtLeast requires a release version at or above v.
func AtLeast(v SemanticVersion) VersionSpecifier {
	return VersionSpecifier{Kind: SpecAtLeast, Version: v}
}

// CompatibleWith requires a version compatible with v under "~>" rules.
func CompatibleWith(v SemanticVersion) VersionSpecifier {
	return VersionSpecifier{Kind: SpecCompatibleWith, Version: v}
}

// Exactly requires precisely v (pre-release included, build metadata excluded
// from the satisfaction check but significant to intersection).
func Exactly(v SemanticVersion) VersionSpecifier {
	return VersionSpecifier{Kind: SpecExactly, Version: v}
}

// GitReference requires the pinned commitish to equal ref exactly.
func GitReference(ref string) VersionSpecifier {
	return VersionSpecifier{Kind: SpecGitReference, GitRef: ref}
}

// String renders the specifier in the manifest's surface syntax.
func (s VersionSpecifier) String() string {
	switch s.Kind {
	case SpecAny:
		return ""
	case SpecAtLeast:
		return ">= " + s.Version.String()
	case SpecCompatibleWith:
		return "~> " + s.Version.String()
	case SpecExactly:
		return "== " + s.Version.String()
	case SpecGitReference:
		return fmt.Sprintf("%q", s.GitRef)
	default:
		return "<invalid specifier>"
	}
}

// IsSatisfiedBy implements the satisfaction predicate of spec §4.2.
func (s VersionSpecifier) IsSatisfiedBy(pinned PinnedVersion) bool {
	sv, isSemantic := pinned.Semantic()

	switch s.Kind {
	case SpecAny:
		return !isSemantic || !sv.IsPreRelease()

	case SpecAtLeast:
		if !isSemantic {
			return true
		}
		if sv.IsPreRelease() {
			// Pre-releases never satisfy AtLeast, of their own base or any other.
			return false
		}
		return sv.Compare(s.Version) >= 0

	case SpecCompatibleWith:
		if !isSemantic {
			return true
		}
		if sv.IsPreRelease() {
			return false
		}
		if sv.Major != s.Version.Major {
			return false
		}
		if s.Version.Major == 0 {
			// Tightened 0.x rule: minor must match exactly.
			if sv.Minor != s.Version.Minor {
				return false
			}
			return sv.Patch >= s.Version.Patch
		}
		return sv.Compare(s.Version) >= 0

	case SpecExactly:
		if !isSemantic {
			return true
		}
		return sv.Major == s.Version.Major &&
			sv.Minor == s.Version.Minor &&
			sv.Patch == s.Version.Patch &&
			sv.PreRelease == s.Version.PreRelease

	case SpecGitReference:
		return pinned.String() == s.GitRef

	default:
		return false
	}
}

// rank implements the "stricter-than" partial order: Exactly > CompatibleWith
// > AtLeast > Any. GitReference is incomparable to every other kind.
func (k SpecifierKind) rank() int {
	switch k {
	case SpecAny:
		return 0
	case SpecAtLeast:
		return 1
	case SpecCompatibleWith:
		return 2
	case SpecExactly:
		return 3
	default:
		return -1
	}
}

// StricterThan reports whether s is strictly more restrictive than o under
// the partial order used to attribute blame on a resolution conflict.
// GitReference specifiers are incomparable to anything but themselves, so
// StricterThan always returns false when either side is a GitReference.
func (s VersionSpecifier) StricterThan(o VersionSpecifier) bool {
	if s.Kind == SpecGitReference || o.Kind == SpecGitReference {
		return false
	}
	return s.Kind.rank() > o.Kind.rank()
}

// Intersect computes the specifier satisfied by exactly the intersection of
// a and b's satisfaction sets, per spec §4.2. The second return value is
// false when that intersection is empty.
func Intersect(a, b VersionSpecifier) (VersionSpecifier, bool) {
	// Any is the identity element, both directions.
	if a.Kind == SpecAny {
		return b, true
	}
	if b.Kind == SpecAny {
		return a, true
	}

	// GitReference only ever intersects with an identical GitReference.
	if a.Kind == SpecGitReference || b.Kind == SpecGitReference {
		if a.Kind == SpecGitReference && b.Kind == SpecGitReference && a.GitRef == b.GitRef {
			return a, true
		}
		return VersionSpecifier{}, false
	}

	switch {
	case a.Kind == SpecAtLeast && b.Kind == SpecAtLeast:
		return AtLeast(maxVersion(a.Version, b.Version)), true

	case a.Kind == SpecAtLeast && b.Kind == SpecCompatibleWith:
		return intersectAtLeastCompatible(a, b)
	case a.Kind == SpecCompatibleWith && b.Kind == SpecAtLeast:
		return intersectAtLeastCompatible(b, a)

	case a.Kind == SpecAtLeast && b.Kind == SpecExactly:
		return intersectAtLeastExactly(a, b)
	case a.Kind == SpecExactly && b.Kind == SpecAtLeast:
		return intersectAtLeastExactly(b, a)

	case a.Kind == SpecCompatibleWith && b.Kind == SpecCompatibleWith:
		return intersectCompatibleCompatible(a, b)

	case a.Kind == SpecCompatibleWith && b.Kind == SpecExactly:
		return intersectCompatibleExactly(a, b)
	case a.Kind == SpecExactly && b.Kind == SpecCompatibleWith:
		return intersectCompatibleExactly(b, a)

	case a.Kind == SpecExactly && b.Kind == SpecExactly:
		if a.Version.EqualExact(b.Version) {
			return a, true
		}
		return VersionSpecifier{}, false

	default:
		return VersionSpecifier{}, false
	}
}

// maxVersion returns whichever of x, y orders higher under SemVer precedence;
// a pre-release base never wins over its corresponding release.
func maxVersion(x, y SemanticVersion) SemanticVersion {
	if x.Compare(y) >= 0 {
		return x
	}
	return y
}

func intersectAtLeastCompatible(atLeast, compat VersionSpecifier) (VersionSpecifier, bool) {
	if atLeast.IsSatisfiedBy(pinnedOf(compat.Version)) {
		return compat, true
	}
	return VersionSpecifier{}, false
}

func intersectAtLeastExactly(atLeast, exact VersionSpecifier) (VersionSpecifier, bool) {
	if atLeast.IsSatisfiedBy(pinnedOf(exact.Version)) {
		return exact, true
	}
	return VersionSpecifier{}, false
}

func intersectCompatibleCompatible(a, b VersionSpecifier) (VersionSpecifier, bool) {
	x, y := a.Version, b.Version
	if x.Major != y.Major {
		return VersionSpecifier{}, false
	}
	if x.Major == 0 && x.Minor != y.Minor {
		return VersionSpecifier{}, false
	}
	return CompatibleWith(maxVersion(x, y)), true
}

func intersectCompatibleExactly(compat, exact VersionSpecifier) (VersionSpecifier, bool) {
	if compat.IsSatisfiedBy(pinnedOf(exact.Version)) {
		return exact, true
	}
	return VersionSpecifier{}, false
}

// pinnedOf renders v into a PinnedVersion for reuse of IsSatisfiedBy, which
// always operates on the lockfile-level representation.
func pinnedOf(v SemanticVersion) PinnedVersion {
	return PinnedVersion(v.String())
}
