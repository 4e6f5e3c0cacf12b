/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package compilerhub

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// listEntry mirrors one release entry in the upstream build list manifest:
// a per-platform path plus both published digests.
type listEntry struct {
	Version     string `json:"version"`
	LongVersion string `json:"longVersion"`
	Path        string `json:"path"`
	SHA256      string `json:"sha256"`
	Keccak256   string `json:"keccak256"`
}

// list is the shape of the fetched manifest: one native entry per known
// (os, arch) pair, plus a single portable (WASM/JS) entry per version.
type list struct {
	Native   map[string]map[string]listEntry `json:"native"` // os/arch -> version -> entry
	Portable map[string]listEntry             `json:"portable"`
}

// JSONIndex is a BuildIndex backed by a parsed manifest document, the
// concrete production implementation the CLI wires in.
type JSONIndex struct {
	platformKey string
	list        list
}

// ParseIndex parses a manifest document as published by the compiler
// index / download endpoint.
func ParseIndex(data []byte) (*JSONIndex, error) {
	var l list
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse compiler index: %w", err)
	}
	return &JSONIndex{platformKey: runtime.GOOS + "/" + runtime.GOARCH, list: l}, nil
}

func (idx *JSONIndex) NativeBuild(version string) (Manifest, bool) {
	byVersion, ok := idx.list.Native[idx.platformKey]
	if !ok {
		return Manifest{}, false
	}
	e, ok := byVersion[version]
	if !ok {
		return Manifest{}, false
	}
	return toManifest(e, false), true
}

func (idx *JSONIndex) PortableBuild(version string) (Manifest, bool) {
	e, ok := idx.list.Portable[version]
	if !ok {
		return Manifest{}, false
	}
	return toManifest(e, true), true
}

func (idx *JSONIndex) AllVersions() []string {
	seen := map[string]bool{}
	var out []string
	for _, byVersion := range idx.list.Native {
		for v := range byVersion {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	for v := range idx.list.Portable {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func toManifest(e listEntry, portable bool) Manifest {
	return Manifest{
		Version:     e.Version,
		LongVersion: e.LongVersion,
		Path:        e.Path,
		SHA256:      e.SHA256,
		Keccak256:   e.Keccak256,
		IsPortable:  portable,
	}
}
