/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package compilerhub

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/gofrs/flock"
	"github.com/untillpro/goutils/logger"
)

const defaultPermissions = 0o755

// Hub acquires compiler binaries: consult the cache directory, download and
// verify on a miss, probe native binaries and fall back to the portable
// build when a native probe fails.
type Hub struct {
	cacheDir   string
	index      BuildIndex
	downloader *Downloader
	offline    bool
}

// New builds a Hub rooted at cacheDir (typically $CACHE_DIR/compilers).
func New(cacheDir string, index BuildIndex, downloader *Downloader, offline bool) *Hub {
	return &Hub{cacheDir: cacheDir, index: index, downloader: downloader, offline: offline}
}

// Acquire returns a usable build for version: a cache hit, a probed and
// verified native binary, or a downloaded and verified portable fallback.
func (h *Hub) Acquire(ctx context.Context, version string) (SolcBuild, error) {
	if native, ok := h.index.NativeBuild(version); ok {
		build, err := h.acquireManifest(ctx, native)
		if err == nil {
			if probeErr := h.probeNative(ctx, build.CompilerPath); probeErr == nil {
				return build, nil
			}
			logger.Info("compiler %s: native binary failed probe, falling back to portable build", version)
		} else {
			logger.Info("compiler %s: could not acquire native build (%v), falling back to portable build", version, err)
		}
	}

	portable, ok := h.index.PortableBuild(version)
	if !ok {
		return SolcBuild{}, errPlatformUnsupported(version)
	}
	build, err := h.acquireManifest(ctx, portable)
	if err != nil {
		return SolcBuild{}, errCannotAcquire(version, err)
	}
	return build, nil
}

// AllVersions delegates to the underlying build index, giving the planner
// the full universe of versions the project could plausibly reach for
// as opposed to just the configured allow-list.
func (h *Hub) AllVersions() []string {
	return h.index.AllVersions()
}

// acquireManifest implements steps 1-3: reuse the cache if present and
// intact, otherwise download and verify, serialized per-version by a
// file-system lock so concurrent builds never download the same binary
// twice, the way node.Node.openDataDir guards its instance directory.
func (h *Hub) acquireManifest(ctx context.Context, m Manifest) (SolcBuild, error) {
	path := filepath.Join(h.cacheDir, cacheFileName(m))
	if err := os.MkdirAll(h.cacheDir, defaultPermissions); err != nil {
		return SolcBuild{}, err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return SolcBuild{}, err
	}
	defer lock.Unlock()

	if fileIntegrityOK(path, m) {
		return toBuild(path, m), nil
	}

	if h.offline {
		return SolcBuild{}, errOffline(m.Version)
	}
	if h.downloader == nil {
		return SolcBuild{}, errCannotAcquire(m.Version, fmt.Errorf("no downloader configured"))
	}

	data, err := h.downloader.Fetch(ctx, m)
	if err != nil {
		return SolcBuild{}, err
	}
	mode := os.FileMode(0o644)
	if !m.IsPortable {
		mode = 0o755
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return SolcBuild{}, err
	}
	return toBuild(path, m), nil
}

func cacheFileName(m Manifest) string {
	kind := "native"
	if m.IsPortable {
		kind = "portable"
	}
	return fmt.Sprintf("solc-%s-%s-%s-%s", m.Version, kind, runtime.GOOS, runtime.GOARCH)
}

func toBuild(path string, m Manifest) SolcBuild {
	return SolcBuild{CompilerPath: path, IsPortable: m.IsPortable, Version: m.Version, LongVersion: m.LongVersion}
}

func fileIntegrityOK(path string, m Manifest) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return verifyDigests(data, m)
}

// probeNative invokes the native binary's --version with a short timeout.
// A hard deadline needs the standard library's cancellable exec.Cmd here;
// the piped, no-timeout invocation used for the actual compile lives in
// pkg/runner instead.
func (h *Hub) probeNative(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, "--version")
	return cmd.Run()
}
