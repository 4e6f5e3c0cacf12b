/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package resolve

import (
	"fmt"

	"github.com/solidkit/buildcore/pkg/srcname"
	"github.com/solidkit/buildcore/pkg/xerrors"
)

func errFileNotFound(name srcname.Name, path string) error {
	return xerrors.New(xerrors.KindResolve, fmt.Sprintf("file not found for %q at %q", name, path))
}

func errIllegalImport(importer, imported srcname.Name) error {
	return xerrors.New(xerrors.KindResolve, fmt.Sprintf("illegal import: %q imports %q, which escapes the project root", importer, imported))
}

func errPackageNotInstalled(pkg string, cause error) error {
	return xerrors.Wrap(xerrors.KindResolve, fmt.Sprintf("package %q is not installed", pkg), cause)
}
