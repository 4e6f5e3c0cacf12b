/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/solidkit/buildcore/internal/config"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "inspect or clear the incremental build cache"}
	cmd.AddCommand(newCacheCleanCmd())
	return cmd
}

func newCacheCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [project-dir]",
		Short: "delete the project's cache file, forcing a full rebuild next run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCacheClean,
	}
	cmd.Flags().String("cache-dir", "", "override the compiler/build cache directory")
	cmd.Flags().Bool("offline", false, "forbid downloading compilers not already cached")
	cmd.Flags().String("log-level", "", "error|warning|info|verbose|trace")
	return cmd
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}
	absProjectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return err
	}

	cfg, err := config.NewLoader().LoadForBuild(cmd, absProjectDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cacheDir := cfg.CacheDir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(absProjectDir, cacheDir)
	}
	path := filepath.Join(cacheDir, cacheFileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file %s: %w", path, err)
	}
	fmt.Printf("removed %s\n", path)
	return nil
}
