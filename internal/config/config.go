/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

// Package config loads BuildConfig, layering built-in defaults, an optional
// sbc.config.yaml project file, environment variables, and command-line
// flags, the way Norgate-AV-spc's internal/config package layers viper
// sources for its own compiler wrapper.
package config

import (
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/solidkit/buildcore/pkg/plan"
)

const (
	// DefaultCacheDirName is the compiler/build cache directory name,
	// relative to ProjectRoot, used when nothing else is configured.
	DefaultCacheDirName = ".sbc-cache"
	// DefaultLogLevel is used when neither the config file, environment,
	// nor flags name one.
	DefaultLogLevel = "info"
	// ConfigFileName is the project configuration file's base name; viper
	// resolves its extension (yaml, yml, json, toml, ...).
	ConfigFileName = "sbc.config"
)

// compilerEntry mirrors one entry of the config file's "compilers" list.
type compilerEntry struct {
	Version  string         `mapstructure:"version"`
	Settings map[string]any `mapstructure:"settings"`
}

// BuildConfig is the layered configuration record threaded from the CLI
// into the Orchestrator: project location, cache location, network policy,
// the allowed compiler versions (and any per-file overrides), which source
// names to compile, and the ambient logger's level.
type BuildConfig struct {
	ProjectRoot      string
	CacheDir         string
	Offline          bool
	AllowedCompilers []plan.CompilerConfig
	Overrides        map[string]string
	Roots            []string
	LogLevel         string
}

// Load reads the fully-layered BuildConfig out of v, which the caller has
// already populated via defaults, a config file, environment bindings, and
// flag bindings (see Loader). Relative ProjectRoot and CacheDir are left
// as given; the CLI resolves a relative CacheDir against the project
// directory it was given.
func Load(v *viper.Viper) (*BuildConfig, error) {
	var entries []compilerEntry
	if err := v.UnmarshalKey("compilers", &entries); err != nil {
		return nil, err
	}
	allowed := make([]plan.CompilerConfig, 0, len(entries))
	for _, e := range entries {
		allowed = append(allowed, plan.CompilerConfig{Version: e.Version, Settings: e.Settings})
	}

	cfg := &BuildConfig{
		ProjectRoot:      v.GetString("project_root"),
		CacheDir:         v.GetString("cache_dir"),
		Offline:          v.GetBool("offline"),
		AllowedCompilers: allowed,
		Overrides:        v.GetStringMapString("overrides"),
		Roots:            v.GetStringSlice("roots"),
		LogLevel:         v.GetString("log_level"),
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = "."
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.ProjectRoot, DefaultCacheDirName)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	return cfg, nil
}
