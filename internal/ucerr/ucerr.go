// Package ucerr defines the closed set of error kinds Utica surfaces across
// package boundaries (manifest parsing, resolution, filesystem, network,
// subprocess, binary archives). Each kind is a concrete type rather than a
// sentinel, so callers can carry structured detail (the offending line, the
// conflicting parents, the failing path) out to the CLI layer. All wrapping
// goes through github.com/pkg/errors, matching the teacher's convention
// throughout errors.go/ensure.go/remote.go.
package ucerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind names one of the seven error classes of the error-handling design.
type Kind string

const (
	KindParse               Kind = "parse"
	KindDuplicateDependency Kind = "duplicate-dependencies"
	KindResolution          Kind = "resolution"
	KindNetwork             Kind = "network"
	KindFilesystem          Kind = "filesystem"
	KindSubprocess          Kind = "subprocess"
	KindBinaryArchive       Kind = "binary-archive"
)

// Classified is implemented by every error kind in this package, letting
// callers branch on Kind() without type-switching on concrete types.
type Classified interface {
	error
	Kind() Kind
}

// ParseError reports a malformed manifest line, version string, or URL. Line
// carries the offending source text verbatim for the message.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Line)
}
func (e *ParseError) Kind() Kind { return KindParse }

// NewParseError builds a ParseError, formatting Reason the way fmt.Sprintf would.
func NewParseError(line, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// DuplicateDependenciesError reports the same DependencyId declared twice
// across a primary and private manifest.
type DuplicateDependenciesError struct {
	Names []string
}

func (e *DuplicateDependenciesError) Error() string {
	return fmt.Sprintf("duplicate dependencies declared in both Cartfile and Cartfile.private: %v", e.Names)
}
func (e *DuplicateDependenciesError) Kind() Kind { return KindDuplicateDependency }

// ResolutionError is the family of failures the resolver can produce.
// Reason distinguishes the sub-case; the remaining fields are populated
// according to which sub-case fired.
type ResolutionError struct {
	Reason      ResolutionReason
	Dependency  string
	Specifier   string
	Existing    string
	New         string
	CycleGraph  []string
}

// ResolutionReason enumerates the four concrete resolution failures of §7.
type ResolutionReason string

const (
	ReasonRequiredVersionNotFound  ResolutionReason = "required-version-not-found"
	ReasonIncompatibleRequirements ResolutionReason = "incompatible-requirements"
	ReasonTaggedVersionNotFound    ResolutionReason = "tagged-version-not-found"
	ReasonDependencyCycle          ResolutionReason = "dependency-cycle"
)

func (e *ResolutionError) Error() string {
	switch e.Reason {
	case ReasonRequiredVersionNotFound:
		return fmt.Sprintf("required version not found for %s (constraint %s)", e.Dependency, e.Specifier)
	case ReasonIncompatibleRequirements:
		return fmt.Sprintf("incompatible requirements on %s: %s vs %s", e.Dependency, e.Existing, e.New)
	case ReasonTaggedVersionNotFound:
		return fmt.Sprintf("no tagged version found for %s", e.Dependency)
	case ReasonDependencyCycle:
		return fmt.Sprintf("dependency cycle detected: %v", e.CycleGraph)
	default:
		return "resolution failed"
	}
}
func (e *ResolutionError) Kind() Kind { return KindResolution }

// RequiredVersionNotFound builds the corresponding ResolutionError.
func RequiredVersionNotFound(dep, specifier string) *ResolutionError {
	return &ResolutionError{Reason: ReasonRequiredVersionNotFound, Dependency: dep, Specifier: specifier}
}

// IncompatibleRequirements builds the corresponding ResolutionError.
func IncompatibleRequirements(dep, existing, new string) *ResolutionError {
	return &ResolutionError{Reason: ReasonIncompatibleRequirements, Dependency: dep, Existing: existing, New: new}
}

// TaggedVersionNotFound builds the corresponding ResolutionError.
func TaggedVersionNotFound(dep string) *ResolutionError {
	return &ResolutionError{Reason: ReasonTaggedVersionNotFound, Dependency: dep}
}

// DependencyCycle builds the corresponding ResolutionError.
func DependencyCycle(graph []string) *ResolutionError {
	return &ResolutionError{Reason: ReasonDependencyCycle, CycleGraph: graph}
}

// NetworkError reports a failed fetch, wrapping the transport-level cause.
type NetworkError struct {
	URL   string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Cause)
}
func (e *NetworkError) Kind() Kind   { return KindNetwork }
func (e *NetworkError) Unwrap() error { return e.Cause }

// WrapNetwork builds a NetworkError, or returns nil if cause is nil.
func WrapNetwork(url string, cause error) error {
	if cause == nil {
		return nil
	}
	return &NetworkError{URL: url, Cause: errors.WithStack(cause)}
}

// FilesystemError reports a failed read/write/move, with the path involved.
type FilesystemError struct {
	Path  string
	Cause error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Cause)
}
func (e *FilesystemError) Kind() Kind   { return KindFilesystem }
func (e *FilesystemError) Unwrap() error { return e.Cause }

// WrapFilesystem builds a FilesystemError, or returns nil if cause is nil.
func WrapFilesystem(path string, cause error) error {
	if cause == nil {
		return nil
	}
	return &FilesystemError{Path: path, Cause: errors.WithStack(cause)}
}

// SubprocessError reports a non-zero exit from an external tool, with its
// captured combined output.
type SubprocessError struct {
	Command []string
	Output  string
	Cause   error
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("command %v failed: %v\n%s", e.Command, e.Cause, e.Output)
}
func (e *SubprocessError) Kind() Kind   { return KindSubprocess }
func (e *SubprocessError) Unwrap() error { return e.Cause }

// WrapSubprocess builds a SubprocessError, or returns nil if cause is nil.
func WrapSubprocess(command []string, output string, cause error) error {
	if cause == nil {
		return nil
	}
	return &SubprocessError{Command: command, Output: output, Cause: errors.WithStack(cause)}
}

// BinaryArchiveError reports a malformed binary archive: duplicate
// destination paths, or no recognizable framework inside.
type BinaryArchiveError struct {
	ArchivePath string
	Reason      string
}

func (e *BinaryArchiveError) Error() string {
	return fmt.Sprintf("%s: %s", e.ArchivePath, e.Reason)
}
func (e *BinaryArchiveError) Kind() Kind { return KindBinaryArchive }

// NewBinaryArchiveError builds a BinaryArchiveError.
func NewBinaryArchiveError(archivePath, reason string) *BinaryArchiveError {
	return &BinaryArchiveError{ArchivePath: archivePath, Reason: reason}
}
