/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	xsemver "golang.org/x/mod/semver"

	"github.com/solidkit/buildcore/pkg/compilerhub"
)

func newCompilersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "compilers", Short: "inspect the compiler build index"}
	cmd.AddCommand(newCompilersListCmd())
	return cmd
}

func newCompilersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list every compiler version published in the build index",
		RunE:  runCompilersList,
	}
	cmd.Flags().String("index-file", "", "path to a compiler build-index manifest (required)")
	return cmd
}

func runCompilersList(cmd *cobra.Command, args []string) error {
	indexPath, _ := cmd.Flags().GetString("index-file")
	if indexPath == "" {
		return fmt.Errorf("no compiler build index configured: pass --index-file")
	}
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return fmt.Errorf("read compiler index: %w", err)
	}
	index, err := compilerhub.ParseIndex(data)
	if err != nil {
		return fmt.Errorf("parse compiler index: %w", err)
	}

	versions := index.AllVersions()
	sort.Slice(versions, func(i, j int) bool {
		return xsemver.Compare("v"+versions[i], "v"+versions[j]) < 0
	})
	for _, v := range versions {
		_, native := index.NativeBuild(v)
		_, portable := index.PortableBuild(v)
		fmt.Printf("%s\tnative=%v\tportable=%v\n", v, native, portable)
	}
	return nil
}
