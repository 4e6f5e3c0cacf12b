/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package runner

import (
	"fmt"

	"github.com/solidkit/buildcore/pkg/xerrors"
)

func errCompilerFailed(version string, cause error) error {
	return xerrors.Wrap(xerrors.KindCompiler, fmt.Sprintf("compiler %s exited with an error", version), cause)
}

func errMalformedOutput(version string, cause error) error {
	return xerrors.Wrap(xerrors.KindProtocol, fmt.Sprintf("compiler %s produced malformed Standard JSON output", version), cause)
}
