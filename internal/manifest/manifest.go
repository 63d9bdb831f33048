// Package manifest parses and serializes Utica's line-oriented manifest and
// lockfile format (spec §6), producing depid.Id / version.VersionSpecifier
// values. The grammar is bespoke to this tool rather than TOML or JSON, so
// unlike the teacher's manifest.go/toml.go (which delegate to
// pelletier/go-toml), this package hand-rolls a small recursive-descent
// scanner -- the one place in the module the corpus offers no library to
// reach for, since no pack dependency implements this exact grammar.
package manifest

import (
	"bufio"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/ucerr"
	"github.com/utica-dep/utica/internal/version"
)

// Entry is one parsed manifest line: a dependency identity and the
// constraint declared against it.
type Entry struct {
	Id         depid.Id
	Specifier  version.VersionSpecifier
	SourceFile string // for duplicate-detection diagnostics
}

// Options configures identifier resolution during parsing.
type Options struct {
	// EnterpriseHosts lists hosts recognized as GitHub Enterprise instances
	// when canonicalizing a `git` URL to Hosted.
	EnterpriseHosts []string
	// BaseDir resolves a bare relative path given as a `binary` identifier.
	BaseDir string
}

var bareOwnerNamePattern = regexp.MustCompile(`^[^/\s]+/[^/\s]+$`)

// Parse reads a manifest document (Cartfile or Cartfile.private grammar)
// from data, attributing errors to sourceFile for diagnostics.
func Parse(data []byte, sourceFile string, opts Options) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		entry, err := parseEntry(trimmed, opts)
		if err != nil {
			return nil, err
		}
		entry.SourceFile = sourceFile
		entries = append(entries, *entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, ucerr.WrapFilesystem(sourceFile, err)
	}
	return entries, nil
}

// stripComment truncates line at the first '#' that appears outside a
// double-quoted span.
func stripComment(line string) string {
	inQuote := false
	for i, r := range line {
		switch r {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

func parseEntry(line string, opts Options) (*Entry, error) {
	kind, rest, err := scanWord(line)
	if err != nil {
		return nil, err
	}
	if kind != "github" && kind != "git" && kind != "binary" {
		return nil, ucerr.NewParseError(line, "unrecognized dependency type %q", kind)
	}

	identifier, rest, err := scanQuotedString(rest, line)
	if err != nil {
		return nil, err
	}

	id, err := resolveIdentifier(kind, identifier, opts)
	if err != nil {
		return nil, err
	}

	spec, err := parseSpecifier(strings.TrimSpace(rest), line)
	if err != nil {
		return nil, err
	}

	return &Entry{Id: id, Specifier: spec}, nil
}

func scanWord(s string) (word, rest string, err error) {
	s = strings.TrimLeft(s, " \t")
	idx := strings.IndexAny(s, " \t")
	if idx == -1 {
		return s, "", nil
	}
	return s[:idx], s[idx:], nil
}

// scanQuotedString consumes a leading double-quoted span. origLine is the
// full source line, retained for error messages.
func scanQuotedString(s, origLine string) (value, rest string, err error) {
	s = strings.TrimLeft(s, " \t")
	if s == "" || s[0] != '"' {
		return "", "", ucerr.NewParseError(origLine, "expected string after dependency type")
	}
	closeIdx := strings.IndexByte(s[1:], '"')
	if closeIdx == -1 {
		return "", "", ucerr.NewParseError(origLine, "empty or unterminated string after dependency type")
	}
	value = s[1 : 1+closeIdx]
	if value == "" {
		return "", "", ucerr.NewParseError(origLine, "empty or unterminated string after dependency type")
	}
	return value, s[1+closeIdx+1:], nil
}

func resolveIdentifier(kind, identifier string, opts Options) (depid.Id, error) {
	switch kind {
	case "github":
		return resolveGithubIdentifier(identifier)
	case "git":
		return resolveGitIdentifier(identifier, opts.EnterpriseHosts), nil
	case "binary":
		return resolveBinaryIdentifier(identifier, opts.BaseDir)
	default:
		return depid.Id{}, ucerr.NewParseError(identifier, "unrecognized dependency type %q", kind)
	}
}

func resolveGithubIdentifier(identifier string) (depid.Id, error) {
	if bareOwnerNamePattern.MatchString(identifier) {
		parts := strings.SplitN(identifier, "/", 2)
		return depid.Hosted(depid.Host{Kind: depid.HostPrimary}, parts[0], parts[1]), nil
	}

	u, err := url.Parse(identifier)
	if err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != "" {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) == 2 && segments[0] != "" && segments[1] != "" {
			owner, name := segments[0], strings.TrimSuffix(segments[1], ".git")
			if u.Host == depid.PrimaryHostName {
				return depid.Hosted(depid.Host{Kind: depid.HostPrimary}, owner, name), nil
			}
			baseURL := (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
			return depid.Hosted(depid.Host{Kind: depid.HostEnterprise, BaseURL: baseURL}, owner, name), nil
		}
	}

	return depid.Id{}, ucerr.NewParseError("", "invalid GitHub repository identifier %q", identifier)
}

func resolveGitIdentifier(identifier string, enterpriseHosts []string) depid.Id {
	if hosted, ok, err := depid.RecognizeHosted(identifier, enterpriseHosts); err == nil && ok {
		return hosted
	}
	return depid.Git(identifier)
}

func resolveBinaryIdentifier(identifier, baseDir string) (depid.Id, error) {
	u, err := url.Parse(identifier)
	if err == nil && u.Scheme != "" {
		if u.Scheme != "https" && u.Scheme != "file" {
			return depid.Id{}, ucerr.NewParseError("", "invalid URL found for dependency type `binary`")
		}
		return depid.Binary(identifier, identifier), nil
	}

	// Bare path: resolve against baseDir into a file:// URL.
	abs := identifier
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(baseDir, identifier)
	}
	resolved := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	return depid.Binary(resolved, identifier), nil
}

func parseSpecifier(rest, origLine string) (version.VersionSpecifier, error) {
	if rest == "" {
		return version.Any(), nil
	}

	for _, op := range []string{"~>", ">=", "=="} {
		if strings.HasPrefix(rest, op) {
			raw := strings.TrimSpace(rest[len(op):])
			v, err := version.ParseSemanticVersion(raw)
			if err != nil {
				return version.VersionSpecifier{}, ucerr.NewParseError(origLine, "invalid version %q", raw)
			}
			switch op {
			case "~>":
				return version.CompatibleWith(v), nil
			case ">=":
				return version.AtLeast(v), nil
			default:
				return version.Exactly(v), nil
			}
		}
	}

	if rest[0] == '"' {
		ref, _, err := scanQuotedString(rest, origLine)
		if err != nil {
			return version.VersionSpecifier{}, err
		}
		return version.GitReference(ref), nil
	}

	return version.VersionSpecifier{}, ucerr.NewParseError(origLine, "unrecognized specifier %q", rest)
}

// Merge combines a primary and private manifest's entries, rejecting any
// DependencyId declared in both (spec §3 invariant, §6).
func Merge(primary, private []Entry) ([]Entry, error) {
	seen := map[string]Entry{}
	var dupes []string

	for _, e := range append(append([]Entry{}, primary...), private...) {
		key := e.Id.CanonicalKey()
		if _, ok := seen[key]; ok {
			dupes = append(dupes, e.Id.String())
			continue
		}
		seen[key] = e
	}

	if len(dupes) > 0 {
		sort.Strings(dupes)
		return nil, &ucerr.DuplicateDependenciesError{Names: dupes}
	}

	merged := make([]Entry, 0, len(primary)+len(private))
	merged = append(merged, primary...)
	merged = append(merged, private...)
	return merged, nil
}

// Serialize renders entries back into manifest-grammar text, one line per
// entry, in the order given.
func Serialize(entries []Entry) []byte {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s \"%s\"", kindOf(e.Id), identifierOf(e.Id))
		if s := e.Specifier.String(); s != "" {
			fmt.Fprintf(&b, " %s", s)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func kindOf(id depid.Id) string {
	switch id.Kind {
	case depid.KindHosted:
		return "github"
	case depid.KindGit:
		return "git"
	case depid.KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

func identifierOf(id depid.Id) string {
	switch id.Kind {
	case depid.KindHosted:
		if id.Host.Kind == depid.HostEnterprise {
			return id.Host.BaseURL + "/" + id.Owner + "/" + id.Name
		}
		return id.Owner + "/" + id.Name
	case depid.KindGit:
		return id.URL
	case depid.KindBinary:
		return id.DisplayURL
	default:
		return ""
	}
}
