/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

// Package plan implements the Job Planner: turning a connected component of
// resolved files into a minimal, cache-filtered, version-ordered set of
// CompilationJobs via an explicit four-step plan/merge/filter/order
// pipeline.
package plan

import (
	"reflect"

	"github.com/solidkit/buildcore/pkg/resolve"
	"github.com/solidkit/buildcore/pkg/srcname"
)

// CompilerConfig names a compiler version and the settings passed through to
// it verbatim. Two configs are equal only when both Version and every
// Settings entry match; that full-equality comparison is what Step B's
// "merge without bug" job-formation relies on.
type CompilerConfig struct {
	Version    string
	Settings   map[string]any
	IsOverride bool
}

// Equal reports whether c and other name the same compiler and settings.
func (c CompilerConfig) Equal(other CompilerConfig) bool {
	if c.Version != other.Version || len(c.Settings) != len(other.Settings) {
		return false
	}
	for k, v := range c.Settings {
		ov, ok := other.Settings[k]
		if !ok || !settingsEqual(v, ov) {
			return false
		}
	}
	return true
}

func settingsEqual(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok != bok {
		return false
	}
	if aok {
		if len(am) != len(bm) {
			return false
		}
		for k, v := range am {
			bv, ok := bm[k]
			if !ok || !settingsEqual(v, bv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Job is a candidate or final compilation job: one CompilerConfig, a set of
// input files, and the subset of those files that must have artifacts
// emitted (dependencies pulled in only so the compiler can see imports are
// not artifact-emitting).
type Job struct {
	Config  CompilerConfig
	Inputs  map[srcname.Name]*resolve.File
	Emitted map[srcname.Name]bool
}

// EmitsArtifacts reports whether name is one of this job's artifact-emitting
// roots.
func (j *Job) EmitsArtifacts(name srcname.Name) bool {
	return j.Emitted[name]
}

// Override is a user-configured per-file compiler version pin.
type Override struct {
	SourceName srcname.Name
	Version    string
}
