package manifest

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"github.com/utica-dep/utica/internal/depid"
	"github.com/utica-dep/utica/internal/ucerr"
	"github.com/utica-dep/utica/internal/version"
)

// LockEntry is one resolved, pinned dependency as recorded in the lockfile.
type LockEntry struct {
	Id     depid.Id
	Pinned version.PinnedVersion
}

// ParseLock reads a lockfile document (Cartfile.resolved grammar): identical
// to the manifest grammar but every entry's trailing specifier is a quoted
// exact pinned form rather than a constraint operator.
func ParseLock(data []byte, opts Options) ([]LockEntry, error) {
	var entries []LockEntry
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		kind, rest, err := scanWord(trimmed)
		if err != nil {
			return nil, err
		}
		if kind != "github" && kind != "git" && kind != "binary" {
			return nil, ucerr.NewParseError(trimmed, "unrecognized dependency type %q", kind)
		}

		identifier, rest, err := scanQuotedString(rest, trimmed)
		if err != nil {
			return nil, err
		}
		id, err := resolveIdentifier(kind, identifier, opts)
		if err != nil {
			return nil, err
		}

		pinnedStr, _, err := scanQuotedString(strings.TrimSpace(rest), trimmed)
		if err != nil {
			return nil, err
		}

		entries = append(entries, LockEntry{Id: id, Pinned: version.PinnedVersion(pinnedStr)})
	}
	if err := scanner.Err(); err != nil {
		return nil, ucerr.WrapFilesystem("lockfile", err)
	}
	return entries, nil
}

// SerializeLock renders entries in the canonical lockfile sort order: by
// DependencyId textual form (spec §4.1).
func SerializeLock(entries []LockEntry) []byte {
	sorted := make([]LockEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Id.String() < sorted[j].Id.String()
	})

	var b strings.Builder
	for _, e := range sorted {
		fmt.Fprintf(&b, "%s \"%s\" \"%s\"\n", kindOf(e.Id), identifierOf(e.Id), e.Pinned.String())
	}
	return []byte(b.String())
}
