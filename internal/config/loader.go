package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"github.com/goccy/go-yaml"
)

// Loader reads a Config from disk, dispatching on extension: CUE by
// default, plain YAML for .yaml/.yml files.
type Loader struct{}

// NewLoader builds an empty Loader; it carries no state of its own.
func NewLoader() *Loader { return &Loader{} }

// Load reads path and overlays it onto DefaultConfig(). A missing
// file is not an error: Load returns the defaults unchanged, so a
// fresh machine works before `hatstart catalog init` ever runs.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		applyEnvOverlay(cfg)
		return cfg, nil
	}

	expanded := expandTilde(path)
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverlay(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", expanded, err)
	}

	if err := decodeInto(cfg, expanded, data); err != nil {
		return nil, err
	}

	applyEnvOverlay(cfg)
	return cfg, nil
}

// LoadDir loads ConfigFileName from dir, the directory-oriented entry
// point cmd/hatstart uses for its default "~/.config/hatstart" lookup.
func (l *Loader) LoadDir(dir string) (*Config, error) {
	return l.Load(filepath.Join(dir, ConfigFileName))
}

// decodeInto dispatches on path's extension and merges the decoded
// document onto cfg, which already carries DefaultConfig()'s values.
func decodeInto(cfg *Config, path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decoding YAML config %s: %w", path, err)
		}
		return nil
	default: // .cue, or extensionless
		ctx := cuecontext.New()
		val := ctx.CompileBytes(data)
		if err := val.Err(); err != nil {
			return fmt.Errorf("compiling CUE config %s: %w", path, err)
		}
		jsonBytes, err := val.MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshalling CUE config %s: %w", path, err)
		}
		return mergeJSON(cfg, jsonBytes)
	}
}

// expandTilde replaces a leading ~/ with the user's home directory.
func expandTilde(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
