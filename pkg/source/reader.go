/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

// Package source implements the Source Reader: loading a file from disk
// and lexically extracting its import directives and version pragmas,
// without any semantic understanding of Solidity.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/solidkit/buildcore/pkg/xerrors"
)

// Read is the result of ReadFile, a pure function over an absolute path
// that loads the file's UTF-8
// text and lexically extracts imports and version pragmas from it. The
// returned ContentHash is a stable digest of exactly the bytes returned in
// Text, since that is what gets sent to the compiler.
type Read struct {
	Text                 string
	ContentHash          string
	LastModificationTime time.Time
	Imports              []string
	VersionPragmas       []string
}

// ReadFile loads absPath and extracts its imports/pragmas. It never
// interprets the content beyond stripping comments and string literals to
// find IMPORT and PRAGMA directives (see extract.go).
func ReadFile(absPath string) (*Read, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindIo, "stat "+absPath, err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindIo, "read "+absPath, err)
	}
	text := string(data)
	sum := sha256.Sum256(data)
	imports, pragmas := Extract(text)
	return &Read{
		Text:                 text,
		ContentHash:          hex.EncodeToString(sum[:]),
		LastModificationTime: info.ModTime(),
		Imports:              imports,
		VersionPragmas:       pragmas,
	}, nil
}
