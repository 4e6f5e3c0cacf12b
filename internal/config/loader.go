/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader assembles one viper.Viper per invocation: defaults, an optional
// project config file, environment variables, then command flags, in that
// precedence order (flags override environment override config file
// override defaults).
type Loader struct {
	v *viper.Viper
}

// NewLoader builds a Loader with defaults already applied.
func NewLoader() *Loader {
	v := viper.New()
	v.SetDefault("project_root", ".")
	v.SetDefault("cache_dir", "")
	v.SetDefault("offline", false)
	v.SetDefault("log_level", DefaultLogLevel)
	return &Loader{v: v}
}

// LoadForBuild reads sbc.config.yaml from projectRoot (if present), binds
// the CACHE_DIR/OFFLINE/SBC_LOG_LEVEL environment variables, binds cmd's
// cache-dir/offline/log-level flags (those it defines), and returns the
// resulting BuildConfig.
func (l *Loader) LoadForBuild(cmd *cobra.Command, projectRoot string) (*BuildConfig, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.AddConfigPath(projectRoot)
	if err := l.v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	l.bindEnv()
	if err := l.bindFlags(cmd); err != nil {
		return nil, err
	}

	return Load(l.v)
}

func (l *Loader) bindEnv() {
	_ = l.v.BindEnv("cache_dir", "CACHE_DIR")
	_ = l.v.BindEnv("offline", "OFFLINE")
	_ = l.v.BindEnv("log_level", "SBC_LOG_LEVEL")
}

func (l *Loader) bindFlags(cmd *cobra.Command) error {
	for flag, key := range map[string]string{
		"cache-dir": "cache_dir",
		"offline":   "offline",
		"log-level": "log_level",
	} {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}
