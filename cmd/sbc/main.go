/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package main

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/untillpro/goutils/cobrau"

	"github.com/solidkit/buildcore/pkg/xerrors"
)

//go:embed version
var version string

func main() {
	if err := execRootCmd(os.Args, version); err != nil {
		fmt.Println(err)
		os.Exit(xerrors.ExitCode(err))
	}
}

func execRootCmd(args []string, ver string) error {
	rootCmd := cobrau.PrepareRootCmd(
		"sbc",
		"Solidity build compiler driver",
		args,
		ver,
		newBuildCmd(),
		newCacheCmd(),
		newCompilersCmd(),
	)

	return cobrau.ExecCommandAndCatchInterrupt(rootCmd)
}
