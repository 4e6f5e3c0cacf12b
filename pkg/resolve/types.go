/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

// Package resolve implements the Resolver: mapping SourceNames to
// ResolvedFiles, recursively, across the project root and third-party
// package trees.
package resolve

import (
	"time"

	"github.com/solidkit/buildcore/pkg/srcname"
)

// File is an immutable, fully-loaded and lexically-scanned source file.
type File struct {
	SourceName           srcname.Name
	AbsolutePath         string
	ContentText          string
	ContentHash          string
	LastModificationTime time.Time
	Imports              []srcname.Name
	VersionPragmas       []string
	PackageName          string // empty for project files
}

// PackageLocator resolves a third-party package name to the root directory
// its sources live under, the way a Go module's dependency manager maps an
// import path to a location on disk.
type PackageLocator interface {
	Locate(packageName string) (rootDir string, err error)
}
