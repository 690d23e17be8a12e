// Package config loads the resolver core's policy and option defaults
// from a CUE or YAML file: a DefaultConfig() baseline overlaid with
// whatever the file (and environment) supplies, rather than a config
// object built up from inherited behavior.
package config

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"

	"github.com/sibilleb/hatstart/internal/conflict"
	"github.com/sibilleb/hatstart/internal/graphbuild"
	"github.com/sibilleb/hatstart/internal/plan"
)

// Default locations for the hatstart CLI's config, catalog, and cache
// directories.
const (
	DefaultConfigDir  = "~/.config/hatstart"
	DefaultCatalogDir = "~/.config/hatstart/catalog"
	DefaultCacheDir   = "~/.cache/hatstart"
	ConfigFileName    = "config.cue"
)

// Config is the top-level, file-loadable configuration for a hatstart
// run: where the tool catalog lives, where the plan cache persists,
// and the policy/option records the build, plan, and resolve entry
// points take as parameters.
type Config struct {
	CatalogDir string             `json:"catalogDir"`
	CacheDir   string             `json:"cacheDir"`
	Build      graphbuild.Options `json:"build"`
	Plan       plan.Options       `json:"plan"`
	Policy     conflict.Policy    `json:"policy"`
}

// DefaultConfig returns the baseline configuration: the builder,
// planner, and resolver's own documented defaults, pointed at the
// default catalog and cache directories.
func DefaultConfig() *Config {
	return &Config{
		CatalogDir: DefaultCatalogDir,
		CacheDir:   DefaultCacheDir,
		Build:      graphbuild.DefaultOptions(),
		Plan:       plan.DefaultOptions(),
		Policy:     conflict.DefaultPolicy(),
	}
}

// ToCue renders cfg as a CUE document under "package hatstart", the
// form `hatstart catalog init` writes out.
func (c *Config) ToCue() ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.Encode(c)
	if v.Err() != nil {
		return nil, fmt.Errorf("encoding config: %w", v.Err())
	}

	syn := v.Syntax()
	b, err := format.Node(syn)
	if err != nil {
		return nil, fmt.Errorf("formatting config: %w", err)
	}

	return append([]byte("package hatstart\n\n"), b...), nil
}

// mergeJSON unmarshals jsonBytes onto an already-defaulted cfg, so
// fields absent from the source file keep their DefaultConfig value
// rather than being zeroed.
func mergeJSON(cfg *Config, jsonBytes []byte) error {
	if err := json.Unmarshal(jsonBytes, cfg); err != nil {
		return fmt.Errorf("unmarshalling config: %w", err)
	}
	return nil
}
