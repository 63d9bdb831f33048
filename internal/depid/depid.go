// Package depid models DependencyId and the filesystem-safe DependencyName
// derived from it, per spec §3/§4.1. Grounded on the teacher's
// ProjectIdentifier/ProjectRoot split (types.go) and its URL-deduction style
// (deduce.go), simplified to the three variants and single primary host this
// spec requires.
package depid

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Kind enumerates the closed set of DependencyId variants.
type Kind int

const (
	// KindHosted is a hosted VCS repository (the primary host or an
	// enterprise instance) addressed by owner/name.
	KindHosted Kind = iota
	// KindGit is an arbitrary VCS URL that did not canonicalize to Hosted.
	KindGit
	// KindBinary is a JSON artifact manifest URL.
	KindBinary
)

// HostKind distinguishes the primary host from an enterprise instance.
type HostKind int

const (
	// HostPrimary is the well-known public hosting service.
	HostPrimary HostKind = iota
	// HostEnterprise is a self-hosted instance identified by its base URL.
	HostEnterprise
)

// Host identifies where a Hosted repository lives.
type Host struct {
	Kind    HostKind
	BaseURL string // only meaningful when Kind == HostEnterprise
}

// Id is a DependencyId: a tagged sum with three variants (spec §3).
type Id struct {
	Kind Kind

	// Hosted fields.
	Host  Host
	Owner string
	Name  string

	// Git fields. URL is the normalized form used for identity and fetch.
	URL string

	// Binary fields. URL is the fully-resolved form; DisplayURL preserves
	// the user-written (possibly relative) form for error messages.
	DisplayURL string
}

// Hosted constructs a hosted-repository DependencyId.
func Hosted(host Host, owner, name string) Id {
	return Id{Kind: KindHosted, Host: host, Owner: owner, Name: name}
}

// Git constructs an arbitrary-VCS-URL DependencyId.
func Git(rawURL string) Id {
	return Id{Kind: KindGit, URL: rawURL}
}

// Binary constructs a binary-manifest DependencyId.
func Binary(resolvedURL, displayURL string) Id {
	return Id{Kind: KindBinary, URL: resolvedURL, DisplayURL: displayURL}
}

// Equal implements the identity comparison of spec §3: same variant and
// normalized identifying fields. Canonicalization from Git to Hosted happens
// at parse time (see hosted.go), so by the time two Ids reach Equal, a
// hosted-recognizable Git URL has already become a Hosted value.
func (id Id) Equal(o Id) bool {
	if id.Kind != o.Kind {
		return false
	}
	switch id.Kind {
	case KindHosted:
		return id.Host == o.Host && id.Owner == o.Owner && id.Name == o.Name
	case KindGit:
		return normalizeGitURL(id.URL) == normalizeGitURL(o.URL)
	case KindBinary:
		return id.URL == o.URL
	default:
		return false
	}
}

func normalizeGitURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}

// CanonicalKey returns a string that two Ids share iff Equal reports true
// for them, for use as a map key in identity-based deduplication (e.g. the
// manifest's duplicate-dependency check) where Equal's normalization must
// be applied before comparison, not after.
func (id Id) CanonicalKey() string {
	switch id.Kind {
	case KindHosted:
		if id.Host.Kind == HostEnterprise {
			return "hosted:" + id.Host.BaseURL + ":" + id.Owner + "/" + id.Name
		}
		return "hosted::" + id.Owner + "/" + id.Name
	case KindGit:
		return "git:" + normalizeGitURL(id.URL)
	case KindBinary:
		return "binary:" + id.URL
	default:
		return "invalid"
	}
}

// String renders a human-readable, stable textual form used both for error
// messages and as the lockfile's canonical sort key (spec §4.1).
func (id Id) String() string {
	switch id.Kind {
	case KindHosted:
		if id.Host.Kind == HostEnterprise {
			return id.Host.BaseURL + "/" + id.Owner + "/" + id.Name
		}
		return id.Owner + "/" + id.Name
	case KindGit:
		return id.URL
	case KindBinary:
		return id.DisplayURL
	default:
		return "<invalid dependency id>"
	}
}

// DependencyName returns the filesystem-safe name derived from id, per spec §4.1.
func (id Id) DependencyName() string {
	switch id.Kind {
	case KindHosted:
		return id.Name
	case KindGit:
		return sanitizeGitName(id.URL)
	case KindBinary:
		return binaryName(id.URL)
	default:
		return ""
	}
}

// binaryName takes the last path component of u and strips its final
// extension, e.g. ".../MyFramework.json" -> "MyFramework".
func binaryName(rawURL string) string {
	base := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		base = u.Path
	}
	base = path.Base(base)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// allDotsPattern matches a string composed entirely of one or more '.'
// characters -- the only two filesystem-meaningful forms are "." and "..".
var allDotsPattern = regexp.MustCompile(`^\.+$`)

// sanitizeGitName implements the name-sanitization algorithm of spec §4.1,
// authoritative test seeds reproduced in depid_test.go. It takes the last
// "/"-delimited segment of the raw identifier, strips a trailing ".git",
// neutralizes a segment made only of dots ("." or "..") by rendering each of
// its '.' characters as the fullwidth dot U+FF0E (dots inside any other name
// are kept), and renders every NUL byte as the symbol U+2400 so the derived
// name can never escape the checkout root.
func sanitizeGitName(raw string) string {
	trimmed := strings.TrimSuffix(raw, "/")
	segments := strings.Split(trimmed, "/")
	last := segments[len(segments)-1]
	last = strings.TrimSuffix(last, ".git")

	if allDotsPattern.MatchString(last) {
		last = strings.ReplaceAll(last, ".", "．")
	}
	last = strings.ReplaceAll(last, "\x00", "␀")

	return last
}
