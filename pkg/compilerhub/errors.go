/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package compilerhub

import (
	"fmt"

	"github.com/solidkit/buildcore/pkg/xerrors"
)

func errCannotAcquire(version string, cause error) error {
	return xerrors.Wrap(xerrors.KindAcquisition, fmt.Sprintf("cannot acquire compiler %s", version), cause)
}

func errVerifyFailed(version, path string) error {
	return xerrors.New(xerrors.KindAcquisition, fmt.Sprintf("integrity check failed for compiler %s at %s", version, path))
}

func errPlatformUnsupported(version string) error {
	return xerrors.New(xerrors.KindAcquisition, fmt.Sprintf("no build published for compiler %s on this platform", version))
}

func errOffline(version string) error {
	return xerrors.New(xerrors.KindAcquisition, fmt.Sprintf("compiler %s not cached and downloads are disabled (offline mode)", version))
}
