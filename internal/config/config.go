// Package config loads repolex's on-disk configuration (spec §6.1):
// a global ~/.repolex/config/config.json read through viper, with
// REPOLEX_-prefixed environment variables taking precedence, plus an
// optional per-repo .repolexrc.toml override for query tuning.
//
// Grounded on BeadsLog's internal/config (viper singleton, env-prefix
// binding, search-path precedence), generalized from YAML to JSON per
// spec §6.1's literal config.json filename and from a CLI-flag-heavy
// defaults list to the handful of keys this core actually reads.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/repolex/repolex/internal/apperrors"
)

// Defaults mirror spec §5's stated figures: 30s query timeout, 100,000 row
// cap, 50-entry result cache.
const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultRowCap       = 100_000
	DefaultCacheEntries = 50
)

var v *viper.Viper

// Home resolves <HOME>/.repolex, honoring REPOLEX_HOME for tests and
// sandboxed environments the way BeadsLog honors BEADS_HOME-style
// overrides for its own dotdir.
func Home() (string, error) {
	if override := os.Getenv("REPOLEX_HOME"); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindStorage, "resolving home directory", err)
	}
	return filepath.Join(home, ".repolex"), nil
}

// Initialize sets up the viper singleton from ~/.repolex/config/config.json,
// falling back silently to defaults plus environment variables when no
// config file is present (spec §6.1 describes the file as present by
// convention, not as a hard requirement).
func Initialize() error {
	v = viper.New()
	v.SetConfigType("json")

	home, err := Home()
	if err != nil {
		return err
	}
	configPath := filepath.Join(home, "config", "config.json")

	v.SetEnvPrefix("REPOLEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("query.timeout", DefaultQueryTimeout.String())
	v.SetDefault("query.row-cap", DefaultRowCap)
	v.SetDefault("cache.entries", DefaultCacheEntries)
	v.SetDefault("oxigraph.bin", "oxigraph")
	v.SetDefault("oxigraph.port", 7878)
	v.SetDefault("log.level", "info")

	if _, statErr := os.Stat(configPath); statErr == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, "reading "+configPath, err)
		}
	}

	return nil
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// RepoOverride is the shape of a per-repository .repolexrc.toml file: it
// lets a single checkout pin query tuning without touching the global
// config (SPEC_FULL.md §1.1).
type RepoOverride struct {
	QueryTimeout *string `toml:"query_timeout"`
	RowCap       *int    `toml:"row_cap"`
}

// LoadRepoOverride reads <checkoutPath>/.repolexrc.toml if present. A
// missing file is not an error; it means "no override."
func LoadRepoOverride(checkoutPath string) (*RepoOverride, error) {
	path := filepath.Join(checkoutPath, ".repolexrc.toml")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	var override RepoOverride
	if _, err := toml.DecodeFile(path, &override); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "parsing "+path, err)
	}
	return &override, nil
}

// EffectiveQueryTimeout resolves the query timeout for a given repo
// checkout: override.QueryTimeout, else the global config, else
// DefaultQueryTimeout.
func EffectiveQueryTimeout(override *RepoOverride) time.Duration {
	if override != nil && override.QueryTimeout != nil {
		if d, err := time.ParseDuration(*override.QueryTimeout); err == nil {
			return d
		}
	}
	if d := GetDuration("query.timeout"); d > 0 {
		return d
	}
	return DefaultQueryTimeout
}

// EffectiveRowCap resolves the row cap the same way EffectiveQueryTimeout
// resolves the timeout.
func EffectiveRowCap(override *RepoOverride) int {
	if override != nil && override.RowCap != nil && *override.RowCap > 0 {
		return *override.RowCap
	}
	if n := GetInt("query.row-cap"); n > 0 {
		return n
	}
	return DefaultRowCap
}
