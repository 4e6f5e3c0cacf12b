/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package orchestrate_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/solidkit/buildcore/pkg/artifact"
	"github.com/solidkit/buildcore/pkg/cache"
	"github.com/solidkit/buildcore/pkg/compilerhub"
	"github.com/solidkit/buildcore/pkg/orchestrate"
	"github.com/solidkit/buildcore/pkg/plan"
	"github.com/solidkit/buildcore/pkg/resolve"
	"github.com/solidkit/buildcore/pkg/runner"
)

type fakeIndex struct {
	native map[string]compilerhub.Manifest
}

func (f *fakeIndex) NativeBuild(v string) (compilerhub.Manifest, bool) {
	m, ok := f.native[v]
	return m, ok
}
func (f *fakeIndex) PortableBuild(string) (compilerhub.Manifest, bool) { return compilerhub.Manifest{}, false }
func (f *fakeIndex) AllVersions() []string {
	var out []string
	for v := range f.native {
		out = append(out, v)
	}
	return out
}

const fakeCompilerScript = "#!/bin/sh\ncat > /dev/null\necho '{\"errors\":[],\"contracts\":{\"A.sol\":{\"A\":{\"abi\":[]}}},\"sources\":{\"A.sol\":{\"id\":0,\"ast\":{}}}}'\n"

func digests(data []byte) (sha, keccak string) {
	s := sha256.Sum256(data)
	k := sha3.NewLegacyKeccak256()
	k.Write(data)
	return hex.EncodeToString(s[:]), hex.EncodeToString(k.Sum(nil))
}

func TestOrchestratorRunEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not a stand-in for a native binary on windows")
	}

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "A.sol"), []byte("pragma solidity ^0.8.0;\ncontract A {}\n"), 0o644))

	compilerData := []byte(fakeCompilerScript)
	sha, keccak := digests(compilerData)
	compilerDir := t.TempDir()
	cachedPath := filepath.Join(compilerDir, "solc-0.8.17-native-"+runtime.GOOS+"-"+runtime.GOARCH)
	require.NoError(t, os.WriteFile(cachedPath, compilerData, 0o755))

	index := &fakeIndex{native: map[string]compilerhub.Manifest{
		"0.8.17": {Version: "0.8.17", LongVersion: "0.8.17+commit.deadbeef", SHA256: sha, Keccak256: keccak},
	}}
	hub := compilerhub.New(compilerDir, index, compilerhub.NewDownloader(), true)

	resolver := resolve.New(projectDir, nil)
	cacheStore := cache.Load(filepath.Join(projectDir, ".sbc-cache.json"))
	artifacts := artifact.NewFSStore(filepath.Join(projectDir, "artifacts"))
	run := runner.New(nil)

	orch := orchestrate.New(resolver, cacheStore, hub, run, artifacts)
	report, err := orch.Run(context.Background(), orchestrate.Options{
		Roots:          []string{"A.sol"},
		AllowedConfigs: []plan.CompilerConfig{{Version: "0.8.17"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.JobsRun)
	require.Equal(t, 0, report.ExitCode)
	require.True(t, artifacts.ArtifactExists("A.sol:A"))

	// Re-running against unchanged input should skip the job via the cache.
	cacheStore2 := cache.Load(filepath.Join(projectDir, ".sbc-cache.json"))
	orch2 := orchestrate.New(resolve.New(projectDir, nil), cacheStore2, hub, run, artifacts)
	report2, err := orch2.Run(context.Background(), orchestrate.Options{
		Roots:          []string{"A.sol"},
		AllowedConfigs: []plan.CompilerConfig{{Version: "0.8.17"}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, report2.JobsRun)
	require.True(t, artifacts.ArtifactExists("A.sol:A"), "unchanged files' artifacts must survive a cache-hit rebuild's obsolete sweep")

	buildInfos, err := filepath.Glob(filepath.Join(projectDir, "artifacts", "build-info", "*.json"))
	require.NoError(t, err)
	require.Len(t, buildInfos, 1, "the surviving job's build-info record must survive a cache-hit rebuild's obsolete sweep too")
}

func TestOrchestratorRecompilesImmediatelyAfterArtifactDeleted(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not a stand-in for a native binary on windows")
	}

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "A.sol"), []byte("pragma solidity ^0.8.0;\ncontract A {}\n"), 0o644))

	compilerData := []byte(fakeCompilerScript)
	sha, keccak := digests(compilerData)
	compilerDir := t.TempDir()
	cachedPath := filepath.Join(compilerDir, "solc-0.8.17-native-"+runtime.GOOS+"-"+runtime.GOARCH)
	require.NoError(t, os.WriteFile(cachedPath, compilerData, 0o755))

	index := &fakeIndex{native: map[string]compilerhub.Manifest{
		"0.8.17": {Version: "0.8.17", LongVersion: "0.8.17+commit.deadbeef", SHA256: sha, Keccak256: keccak},
	}}
	hub := compilerhub.New(compilerDir, index, compilerhub.NewDownloader(), true)
	run := runner.New(nil)
	cachePath := filepath.Join(projectDir, ".sbc-cache.json")

	orch := orchestrate.New(resolve.New(projectDir, nil), cache.Load(cachePath), hub, run, artifact.NewFSStore(filepath.Join(projectDir, "artifacts")))
	_, err := orch.Run(context.Background(), orchestrate.Options{
		Roots:          []string{"A.sol"},
		AllowedConfigs: []plan.CompilerConfig{{Version: "0.8.17"}},
	})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(projectDir, "artifacts", "A.sol", "A.json")))

	// The content and config are unchanged, but the artifact is gone: this
	// build, not the one after it, must notice and recompile.
	orch2 := orchestrate.New(resolve.New(projectDir, nil), cache.Load(cachePath), hub, run, artifact.NewFSStore(filepath.Join(projectDir, "artifacts")))
	report2, err := orch2.Run(context.Background(), orchestrate.Options{
		Roots:          []string{"A.sol"},
		AllowedConfigs: []plan.CompilerConfig{{Version: "0.8.17"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report2.JobsRun)
}

func TestOrchestratorRecompilesWhenDependencyContentChanges(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not a stand-in for a native binary on windows")
	}

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "B.sol"), []byte("pragma solidity ^0.8.0;\ncontract B {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "A.sol"), []byte("pragma solidity ^0.8.0;\nimport \"./B.sol\";\ncontract A {}\n"), 0o644))

	compilerData := []byte(fakeCompilerScript)
	sha, keccak := digests(compilerData)
	compilerDir := t.TempDir()
	cachedPath := filepath.Join(compilerDir, "solc-0.8.17-native-"+runtime.GOOS+"-"+runtime.GOARCH)
	require.NoError(t, os.WriteFile(cachedPath, compilerData, 0o755))

	index := &fakeIndex{native: map[string]compilerhub.Manifest{
		"0.8.17": {Version: "0.8.17", LongVersion: "0.8.17+commit.deadbeef", SHA256: sha, Keccak256: keccak},
	}}
	hub := compilerhub.New(compilerDir, index, compilerhub.NewDownloader(), true)
	run := runner.New(nil)
	cachePath := filepath.Join(projectDir, ".sbc-cache.json")

	orch := orchestrate.New(resolve.New(projectDir, nil), cache.Load(cachePath), hub, run, artifact.NewFSStore(filepath.Join(projectDir, "artifacts")))
	report, err := orch.Run(context.Background(), orchestrate.Options{
		Roots:          []string{"A.sol"},
		AllowedConfigs: []plan.CompilerConfig{{Version: "0.8.17"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.JobsRun)

	// A.sol itself is untouched, but its dependency B.sol changes content;
	// the job that emits A.sol's artifact must still recompile.
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "B.sol"), []byte("pragma solidity ^0.8.0;\ncontract B { uint x; }\n"), 0o644))

	orch2 := orchestrate.New(resolve.New(projectDir, nil), cache.Load(cachePath), hub, run, artifact.NewFSStore(filepath.Join(projectDir, "artifacts")))
	report2, err := orch2.Run(context.Background(), orchestrate.Options{
		Roots:          []string{"A.sol"},
		AllowedConfigs: []plan.CompilerConfig{{Version: "0.8.17"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report2.JobsRun, "editing a pure dependency must invalidate the importer's cached job")

	// A third run with nothing changed must skip again.
	orch3 := orchestrate.New(resolve.New(projectDir, nil), cache.Load(cachePath), hub, run, artifact.NewFSStore(filepath.Join(projectDir, "artifacts")))
	report3, err := orch3.Run(context.Background(), orchestrate.Options{
		Roots:          []string{"A.sol"},
		AllowedConfigs: []plan.CompilerConfig{{Version: "0.8.17"}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, report3.JobsRun)
	require.Equal(t, 1, report3.JobsSkipped)
}

func TestOrchestratorAbortsOnCompilerError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not a stand-in for a native binary on windows")
	}

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "A.sol"), []byte("pragma solidity ^0.8.0;\ncontract A {}\n"), 0o644))

	failingScript := "#!/bin/sh\ncat > /dev/null\necho '{\"errors\":[{\"severity\":\"error\",\"type\":\"TypeError\",\"message\":\"boom\",\"formattedMessage\":\"boom\"}],\"contracts\":{},\"sources\":{}}'\n"
	compilerData := []byte(failingScript)
	sha, keccak := digests(compilerData)
	compilerDir := t.TempDir()
	cachedPath := filepath.Join(compilerDir, "solc-0.8.17-native-"+runtime.GOOS+"-"+runtime.GOARCH)
	require.NoError(t, os.WriteFile(cachedPath, compilerData, 0o755))

	index := &fakeIndex{native: map[string]compilerhub.Manifest{
		"0.8.17": {Version: "0.8.17", SHA256: sha, Keccak256: keccak},
	}}
	hub := compilerhub.New(compilerDir, index, compilerhub.NewDownloader(), true)

	resolver := resolve.New(projectDir, nil)
	cacheStore := cache.Load(filepath.Join(projectDir, ".sbc-cache.json"))
	artifacts := artifact.NewFSStore(filepath.Join(projectDir, "artifacts"))
	run := runner.New(nil)

	orch := orchestrate.New(resolver, cacheStore, hub, run, artifacts)
	report, err := orch.Run(context.Background(), orchestrate.Options{
		Roots:          []string{"A.sol"},
		AllowedConfigs: []plan.CompilerConfig{{Version: "0.8.17"}},
	})
	require.Error(t, err)
	require.Equal(t, 1, report.ExitCode)
}
