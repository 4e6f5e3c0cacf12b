/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package plan

import (
	"fmt"
	"strings"

	"github.com/solidkit/buildcore/pkg/srcname"
	"github.com/solidkit/buildcore/pkg/xerrors"
)

// CreationErrorTag distinguishes the JobCreationError variants so callers
// can branch on the failure kind without string matching.
type CreationErrorTag int

const (
	TagNoCompatibleVersion CreationErrorTag = iota
	TagIncompatibleOverride
	TagDirectlyImportsIncompatible
	TagIndirectlyImportsIncompatible
	TagOther
)

// DependencyPath names one offending transitive dependency together with
// the import chain that reaches it, for IndirectlyImportsIncompatible.
type DependencyPath struct {
	Dependency srcname.Name
	Path       []srcname.Name
}

// CreationError is a single per-file planning failure. It wraps an
// xerrors.Error (Kind: Planning) so callers using the shared taxonomy still
// see a Planning-kind error, while exposing the richer tag and payload the
// planner promises.
type CreationError struct {
	Err                  *xerrors.Error
	Tag                  CreationErrorTag
	File                 srcname.Name
	IncompatibleDirect   []srcname.Name
	IncompatibleIndirect []DependencyPath
}

// Error satisfies the error interface by delegating to the wrapped
// taxonomy error's message.
func (e *CreationError) Error() string { return e.Err.Error() }

// Unwrap exposes the embedded taxonomy error itself (not its cause) so
// errors.As(err, &xerrorsErr) and xerrors.KindOf both see the Planning kind.
func (e *CreationError) Unwrap() error { return e.Err }

func newCreationError(tag CreationErrorTag, file srcname.Name, msg string) *CreationError {
	return &CreationError{
		Err:  xerrors.New(xerrors.KindPlanning, msg),
		Tag:  tag,
		File: file,
	}
}

func errNoCompatibleVersion(file srcname.Name, sources []string) *CreationError {
	return newCreationError(TagNoCompatibleVersion, file,
		fmt.Sprintf("%s: no configured compiler satisfies %s", file, strings.Join(sources, ", ")))
}

func errIncompatibleOverride(file srcname.Name, version string, sources []string) *CreationError {
	return newCreationError(TagIncompatibleOverride, file,
		fmt.Sprintf("%s: override version %s does not satisfy %s", file, version, strings.Join(sources, ", ")))
}

func errDirectlyImportsIncompatible(file srcname.Name, offenders []srcname.Name) *CreationError {
	e := newCreationError(TagDirectlyImportsIncompatible, file,
		fmt.Sprintf("%s: directly imports version-incompatible files: %v", file, offenders))
	e.IncompatibleDirect = offenders
	return e
}

func errIndirectlyImportsIncompatible(file srcname.Name, offenders []DependencyPath) *CreationError {
	e := newCreationError(TagIndirectlyImportsIncompatible, file,
		fmt.Sprintf("%s: transitively imports %d version-incompatible file(s)", file, len(offenders)))
	e.IncompatibleIndirect = offenders
	return e
}
