/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/untillpro/goutils/logger"
)

const defaultPermissions = 0o755

const buildInfoDirName = "build-info"

// FSStore is the default Store: one JSON file per contract under
// artifacts/<SourceName>/<ContractName>.json, one build-info file per job
// under artifacts/build-info/<uuid>.json.
type FSStore struct {
	root string
}

// NewFSStore roots artifact output at dir (typically "<project>/artifacts").
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

func (s *FSStore) contractPath(c Contract) string {
	return filepath.Join(s.root, filepath.FromSlash(c.SourceName), c.ContractName+".json")
}

func (s *FSStore) SaveArtifact(c Contract, buildInfoPath string) error {
	path := s.contractPath(c)
	if err := os.MkdirAll(filepath.Dir(path), defaultPermissions); err != nil {
		return err
	}
	payload := struct {
		SourceName    string          `json:"sourceName"`
		ContractName  string          `json:"contractName"`
		Output        json.RawMessage `json:"output"`
		BuildInfoPath string          `json:"buildInfoPath,omitempty"`
	}{c.SourceName, c.ContractName, c.Output, buildInfoPath}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if logger.IsVerbose() {
		logger.Verbose("artifact: writing %s", path)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *FSStore) SaveBuildInfo(version, longVersion string, input, output json.RawMessage) (string, error) {
	dir := filepath.Join(s.root, buildInfoDirName)
	if err := os.MkdirAll(dir, defaultPermissions); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()+".json")

	payload := struct {
		Version     string          `json:"solcVersion"`
		LongVersion string          `json:"solcLongVersion"`
		Input       json.RawMessage `json:"input"`
		Output      json.RawMessage `json:"output"`
	}{version, longVersion, input, output}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

func (s *FSStore) ArtifactExists(fullyQualifiedName string) bool {
	sourceName, contractName, ok := splitFQName(fullyQualifiedName)
	if !ok {
		return false
	}
	path := s.contractPath(Contract{SourceName: sourceName, ContractName: contractName})
	_, err := os.Stat(path)
	return err == nil
}

func (s *FSStore) RemoveObsolete(keep map[string]bool) error {
	return filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(rel, buildInfoDirName+string(filepath.Separator)) {
			return nil
		}
		fq := fqNameFromRelPath(rel)
		if !keep[fq] {
			if logger.IsVerbose() {
				logger.Verbose("artifact: removing obsolete %s", path)
			}
			return os.Remove(path)
		}
		return nil
	})
}

func (s *FSStore) RemoveObsoleteBuildInfos(keep map[string]bool) error {
	dir := filepath.Join(s.root, buildInfoDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !keep[path] {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove obsolete build-info %s: %w", path, err)
			}
		}
	}
	return nil
}

func splitFQName(fq string) (sourceName, contractName string, ok bool) {
	i := strings.LastIndex(fq, ":")
	if i < 0 {
		return "", "", false
	}
	return fq[:i], fq[i+1:], true
}

func fqNameFromRelPath(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, ".json")
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return rel
	}
	return rel[:i] + ":" + rel[i+1:]
}
