/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/untillpro/goutils/logger"

	"github.com/solidkit/buildcore/internal/config"
	"github.com/solidkit/buildcore/pkg/artifact"
	"github.com/solidkit/buildcore/pkg/cache"
	"github.com/solidkit/buildcore/pkg/compilerhub"
	"github.com/solidkit/buildcore/pkg/orchestrate"
	"github.com/solidkit/buildcore/pkg/resolve"
	"github.com/solidkit/buildcore/pkg/runner"
	"github.com/solidkit/buildcore/pkg/wasmsolc"
)

const cacheFileName = "cache.json"

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [project-dir]",
		Short: "compile every configured root and its dependencies",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBuild,
	}
	cmd.Flags().String("cache-dir", "", "override the compiler/build cache directory")
	cmd.Flags().Bool("offline", false, "forbid downloading compilers not already cached")
	cmd.Flags().String("log-level", "", "error|warning|info|verbose|trace")
	cmd.Flags().String("index-file", "", "path to a compiler build-index manifest (required)")
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
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
	applyLogLevel(cfg.LogLevel)

	indexPath, _ := cmd.Flags().GetString("index-file")
	if indexPath == "" {
		return fmt.Errorf("no compiler build index configured: pass --index-file")
	}
	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		return fmt.Errorf("read compiler index: %w", err)
	}
	index, err := compilerhub.ParseIndex(indexData)
	if err != nil {
		return fmt.Errorf("parse compiler index: %w", err)
	}

	cacheDir := cfg.CacheDir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(absProjectDir, cacheDir)
	}
	compilerCacheDir := filepath.Join(cacheDir, "compilers")

	resolver := resolve.New(absProjectDir, nil)
	cacheStore := cache.Load(filepath.Join(cacheDir, cacheFileName))
	hub := compilerhub.New(compilerCacheDir, index, compilerhub.NewDownloader(), cfg.Offline)
	run := runner.New(newPortableEvaluator)
	artifacts := artifact.NewFSStore(filepath.Join(absProjectDir, "artifacts"))

	orch := orchestrate.New(resolver, cacheStore, hub, run, artifacts)
	report, err := orch.Run(cmd.Context(), orchestrate.Options{
		Roots:          cfg.Roots,
		AllowedConfigs: cfg.AllowedCompilers,
		Overrides:      cfg.Overrides,
	})

	logger.Info(fmt.Sprintf("build finished: %d job(s) run, %d skipped, elapsed %s", report.JobsRun, report.JobsSkipped, report.Elapsed))
	return err
}

// newPortableEvaluator reads the acquired portable build's WASM binary off
// disk and hands it to wasmsolc, wiring the native-probe-failed fallback
// path (compilerhub.Hub.Acquire) through to an actual compile.
func newPortableEvaluator(ctx context.Context, wasmPath string) (runner.Evaluator, error) {
	wasmBinary, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("read portable compiler binary %s: %w", wasmPath, err)
	}
	return wasmsolc.NewEvaluator(ctx, wasmBinary)
}

func applyLogLevel(level string) {
	switch level {
	case "error":
		logger.SetLogLevel(logger.LogLevelError)
	case "warning":
		logger.SetLogLevel(logger.LogLevelWarning)
	case "info":
		logger.SetLogLevel(logger.LogLevelInfo)
	case "verbose":
		logger.SetLogLevel(logger.LogLevelVerbose)
	case "trace":
		logger.SetLogLevel(logger.LogLevelTrace)
	}
}
