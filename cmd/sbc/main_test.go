/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

const fakeCompilerScript = "#!/bin/sh\ncat > /dev/null\necho '{\"errors\":[],\"contracts\":{\"A.sol\":{\"A\":{\"abi\":[]}}},\"sources\":{\"A.sol\":{\"id\":0,\"ast\":{}}}}'\n"

func digests(data []byte) (sha, keccak string) {
	s := sha256.Sum256(data)
	k := sha3.NewLegacyKeccak256()
	k.Write(data)
	return hex.EncodeToString(s[:]), hex.EncodeToString(k.Sum(nil))
}

func TestBuildCommandEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not a stand-in for a native binary on windows")
	}

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "A.sol"), []byte("pragma solidity ^0.8.0;\ncontract A {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "sbc.config.yaml"), []byte("roots:\n  - A.sol\ncompilers:\n  - version: \"0.8.17\"\n"), 0o644))

	cacheDir := t.TempDir()
	compilerData := []byte(fakeCompilerScript)
	sha, keccak := digests(compilerData)
	compilersSubdir := filepath.Join(cacheDir, "compilers")
	require.NoError(t, os.MkdirAll(compilersSubdir, 0o755))
	cachedPath := filepath.Join(compilersSubdir, "solc-0.8.17-native-"+runtime.GOOS+"-"+runtime.GOARCH)
	require.NoError(t, os.WriteFile(cachedPath, compilerData, 0o755))

	indexPath := filepath.Join(t.TempDir(), "index.json")
	indexDoc := fmt.Sprintf(`{"native":{"%s/%s":{"0.8.17":{"version":"0.8.17","longVersion":"0.8.17+commit.deadbeef","path":"unused","sha256":"%s","keccak256":"%s"}}},"portable":{}}`,
		runtime.GOOS, runtime.GOARCH, sha, keccak)
	require.NoError(t, os.WriteFile(indexPath, []byte(indexDoc), 0o644))

	err := execRootCmd([]string{"sbc", "build", projectDir,
		"--index-file", indexPath,
		"--cache-dir", cacheDir,
		"--offline",
	}, "test")
	require.NoError(t, err)
	require.True(t, fileExists(filepath.Join(projectDir, "artifacts", "A.sol", "A.json")))
}

func TestCompilersListCommand(t *testing.T) {
	sha, keccak := digests([]byte("x"))
	indexPath := filepath.Join(t.TempDir(), "index.json")
	indexDoc := fmt.Sprintf(`{"native":{"%s/%s":{"0.8.17":{"version":"0.8.17","sha256":"%s","keccak256":"%s"}}},"portable":{}}`,
		runtime.GOOS, runtime.GOARCH, sha, keccak)
	require.NoError(t, os.WriteFile(indexPath, []byte(indexDoc), 0o644))

	err := execRootCmd([]string{"sbc", "compilers", "list", "--index-file", indexPath}, "test")
	require.NoError(t, err)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
