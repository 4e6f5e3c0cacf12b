/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sv "github.com/Masterminds/semver/v3"
	"github.com/untillpro/goutils/logger"

	"github.com/solidkit/buildcore/pkg/artifact"
	"github.com/solidkit/buildcore/pkg/cache"
	"github.com/solidkit/buildcore/pkg/compilerhub"
	"github.com/solidkit/buildcore/pkg/depgraph"
	"github.com/solidkit/buildcore/pkg/plan"
	"github.com/solidkit/buildcore/pkg/resolve"
	"github.com/solidkit/buildcore/pkg/runner"
	"github.com/solidkit/buildcore/pkg/srcname"
	"github.com/solidkit/buildcore/pkg/xerrors"
)

// Orchestrator sequences one build run: resolve every root's
// dependency closure, plan jobs per connected component, acquire the
// compilers those jobs need, run them in version-ascending order, and
// persist artifacts plus the incremental cache.
type Orchestrator struct {
	Resolver  *resolve.Resolver
	Cache     *cache.Store
	Compilers *compilerhub.Hub
	Runner    *runner.Runner
	Artifacts artifact.Store
}

// New wires the collaborators an Orchestrator needs; callers assemble the
// concrete implementations (compilerhub.Hub, artifact.FSStore, ...) and the
// CLI layer is the only place that constructs one for real.
func New(resolver *resolve.Resolver, c *cache.Store, hub *compilerhub.Hub, run *runner.Runner, artifacts artifact.Store) *Orchestrator {
	return &Orchestrator{Resolver: resolver, Cache: c, Compilers: hub, Runner: run, Artifacts: artifacts}
}

// Run executes one full build: resolve, plan, acquire, compile, persist.
// It never runs jobs concurrently and aborts before compiling anything if
// planning produced any error.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Report, error) {
	start := time.Now()

	roots := make([]srcname.Name, 0, len(opts.Roots))
	for _, r := range opts.Roots {
		roots = append(roots, srcname.Name(r))
	}

	// A deleted artifact must drop its cache entry before planning runs,
	// so filterCached recompiles the owning job on this build rather than
	// on the one after it.
	if o.Cache != nil {
		o.Cache.InvalidateMissingArtifacts(o.Artifacts)
	}

	graph, err := depgraph.Build(o.Resolver, roots)
	if err != nil {
		return o.fail(start, err)
	}

	universe := versionUniverse(o.Compilers)
	overrides := make(map[srcname.Name]string, len(opts.Overrides))
	for name, v := range opts.Overrides {
		overrides[srcname.Name(name)] = v
	}
	skipped := 0
	planOpts := plan.Options{AllowedConfigs: opts.AllowedConfigs, Overrides: overrides, Universe: universe, SkippedCounter: &skipped}

	var jobs []*plan.Job
	var planErrs []error
	for _, component := range graph.ConnectedComponents() {
		componentRoots := rootsIn(roots, component)
		componentJobs, err := plan.Build(graph, componentRoots, planOpts, o.Cache)
		if err != nil {
			planErrs = append(planErrs, err)
			continue
		}
		jobs = append(jobs, componentJobs...)
	}
	if len(planErrs) > 0 {
		return o.fail(start, errors.Join(planErrs...))
	}

	report := Report{JobsSkipped: skipped}
	keepArtifacts := map[string]bool{}
	keepBuildInfos := map[string]bool{}

	for _, job := range jobs {
		jr, err := o.runJob(ctx, job, keepArtifacts, keepBuildInfos)
		if err != nil {
			return o.fail(start, err)
		}
		report.Jobs = append(report.Jobs, jr)
		report.JobsRun++
	}

	// Every file this build left cache-valid (i.e. did not recompile) still
	// owns artifacts and a build-info record that must survive the sweep
	// below, not just what runJob emitted this run.
	if o.Cache != nil {
		for _, entry := range o.Cache.Entries() {
			for _, fq := range entry.EmittedArtifacts {
				keepArtifacts[fq] = true
			}
			if entry.BuildInfoPath != "" {
				keepBuildInfos[entry.BuildInfoPath] = true
			}
		}
	}

	if err := o.Artifacts.RemoveObsolete(keepArtifacts); err != nil {
		return o.fail(start, fmt.Errorf("remove obsolete artifacts: %w", err))
	}
	if err := o.Artifacts.RemoveObsoleteBuildInfos(keepBuildInfos); err != nil {
		return o.fail(start, fmt.Errorf("remove obsolete build-info: %w", err))
	}
	if o.Cache != nil {
		if err := o.Cache.Flush(); err != nil {
			return o.fail(start, fmt.Errorf("flush cache: %w", err))
		}
	}

	report.Elapsed = time.Since(start)
	report.ExitCode = 0
	return report, nil
}

// runJob invokes the compiler for one job, saves its artifacts, and updates
// the cache. Any severity-error diagnostic aborts the whole build, while
// warnings and the console.log note are printed and do not.
func (o *Orchestrator) runJob(ctx context.Context, job *plan.Job, keepArtifacts, keepBuildInfos map[string]bool) (JobReport, error) {
	build, err := o.Compilers.Acquire(ctx, job.Config.Version)
	if err != nil {
		return JobReport{}, err
	}

	if logger.IsInfo() {
		logger.Info(fmt.Sprintf("job: solc %s, %d file(s)", job.Config.Version, len(job.Inputs)))
	}

	out, err := o.Runner.Run(ctx, job, build)
	if err != nil {
		return JobReport{}, err
	}

	for _, d := range out.Errors {
		switch {
		case d.IsError():
			logger.Error(d.FormattedMessage)
		case d.IsConsoleLogNote():
			logger.Info(d.FormattedMessage)
		default:
			logger.Warning(d.FormattedMessage)
		}
	}
	if out.HasErrors() {
		return JobReport{}, xerrors.New(xerrors.KindCompiler, fmt.Sprintf("compiler %s reported one or more errors", job.Config.Version))
	}

	outputJSON, err := json.Marshal(out)
	if err != nil {
		return JobReport{}, fmt.Errorf("marshal build-info output: %w", err)
	}
	buildInfoPath, err := o.Artifacts.SaveBuildInfo(build.Version, build.LongVersion, out.Input, outputJSON)
	if err != nil {
		return JobReport{}, fmt.Errorf("save build-info: %w", err)
	}
	keepBuildInfos[buildInfoPath] = true

	// Every input, not just the artifact-emitting roots, gets a cache entry:
	// a pure dependency's content hash must be checkable too, or editing it
	// can never invalidate the jobs that import it.
	for name, f := range job.Inputs {
		var emittedArtifacts []string
		var solcConfig string
		var fileBuildInfo string

		if job.Emitted[name] {
			contracts := out.Contracts[string(name)]
			emittedArtifacts = make([]string, 0, len(contracts))
			for contractName, contractOutput := range contracts {
				c := artifact.Contract{SourceName: string(name), ContractName: contractName, Output: contractOutput}
				if err := o.Artifacts.SaveArtifact(c, buildInfoPath); err != nil {
					return JobReport{}, fmt.Errorf("save artifact %s: %w", c.FullyQualifiedName(), err)
				}
				keepArtifacts[c.FullyQualifiedName()] = true
				emittedArtifacts = append(emittedArtifacts, c.FullyQualifiedName())
			}
			solcConfig = serializeJobConfig(job.Config)
			fileBuildInfo = buildInfoPath
		}

		if o.Cache != nil {
			o.Cache.Put(cache.Entry{
				AbsolutePath:         f.AbsolutePath,
				SourceName:           string(f.SourceName),
				ContentHash:          f.ContentHash,
				LastModificationTime: f.LastModificationTime,
				SolcConfig:           solcConfig,
				Imports:              namesToStrings(f.Imports),
				VersionPragmas:       f.VersionPragmas,
				EmittedArtifacts:     emittedArtifacts,
				BuildInfoPath:        fileBuildInfo,
			})
		}
	}

	return JobReport{Version: build.Version, FileCount: len(job.Inputs), Diagnostics: out.Errors}, nil
}

func (o *Orchestrator) fail(start time.Time, err error) (Report, error) {
	return Report{Elapsed: time.Since(start), ExitCode: xerrors.ExitCode(err)}, err
}

// rootsIn filters roots to the subset that belong to component.
func rootsIn(roots []srcname.Name, component []*resolve.File) []srcname.Name {
	inComponent := make(map[srcname.Name]bool, len(component))
	for _, f := range component {
		inComponent[f.SourceName] = true
	}
	var out []srcname.Name
	for _, r := range roots {
		if inComponent[r] {
			out = append(out, r)
		}
	}
	return out
}

// versionUniverse asks the compiler hub's build index for every version it
// knows about, so the planner can tell a genuinely empty pragma
// intersection apart from one merely unsatisfied by the configured
// allow-list.
func versionUniverse(hub *compilerhub.Hub) []*sv.Version {
	if hub == nil {
		return nil
	}
	var out []*sv.Version
	for _, s := range hub.AllVersions() {
		if v, err := sv.NewVersion(s); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func serializeJobConfig(c plan.CompilerConfig) string {
	data, err := json.Marshal(c)
	if err != nil {
		return c.Version
	}
	return string(data)
}

func namesToStrings(names []srcname.Name) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
