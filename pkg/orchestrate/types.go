/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

// Package orchestrate sequences the whole build: read every source, resolve
// and close the dependency graph, plan jobs per connected component,
// acquire the compilers those jobs need, run them, and persist artifacts
// and the incremental cache. It owns none of that logic itself, only their
// ordering and error policy.
package orchestrate

import (
	"time"

	"github.com/solidkit/buildcore/pkg/plan"
	"github.com/solidkit/buildcore/pkg/runner"
)

// JobReport is one job's outcome: the compiler it ran, whether it was
// skipped by the cache, and the diagnostics it produced (empty for a
// skipped job).
type JobReport struct {
	Version     string
	FileCount   int
	Diagnostics []runner.Diagnostic
	Skipped     bool
}

// Report is the BuildReport returned to the caller: how many jobs ran,
// how many the cache skipped, their diagnostics, wall time, and the exit
// code corresponding to the outcome.
type Report struct {
	JobsRun     int
	JobsSkipped int
	Jobs        []JobReport
	Elapsed     time.Duration
	ExitCode    int
}

// Options bundles what one Run call needs beyond the collaborators
// threaded in at construction time.
type Options struct {
	Roots          []string
	AllowedConfigs []plan.CompilerConfig
	Overrides      map[string]string
}
