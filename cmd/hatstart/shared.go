package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sibilleb/hatstart/internal/catalog"
	"github.com/sibilleb/hatstart/internal/config"
	"github.com/sibilleb/hatstart/internal/core"
	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/probe"
)

// loadCLIConfig resolves the effective Config for this invocation:
// the --config file (or hatstart's default config directory), with
// the --catalog flag taking precedence over the file's catalogDir.
func loadCLIConfig() (*config.Config, error) {
	loader := config.NewLoader()
	var cfg *config.Config
	var err error
	if globalConfig != "" {
		cfg, err = loader.Load(globalConfig)
	} else {
		cfg, err = loader.LoadDir(config.DefaultConfigDir)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if globalCatalog != "" {
		cfg.CatalogDir = globalCatalog
	}
	return cfg, nil
}

// loadManifests reads the local catalog directory named by cfg into a
// manifest slice, the ManifestSource adapter step ahead of the core's
// BuildGraph.
func loadManifests(ctx context.Context, cfg *config.Config) ([]manifest.ToolManifest, error) {
	src := catalog.NewLocalSource(expandHomeDir(cfg.CatalogDir))
	return src.Manifests(ctx)
}

// buildGraph runs the core's graph-build step against the current
// platform/architecture, as detected by internal/probe.
func buildGraph(manifests []manifest.ToolManifest, cfg *config.Config) (*core.BuildResult, manifest.Platform, manifest.Architecture) {
	platform := probe.DetectPlatform()
	arch := probe.DetectArchitecture()
	result := core.BuildGraph(manifests, platform, arch, cfg.Build)
	return result, platform, arch
}

// expandHomeDir is the CLI-layer counterpart of config's unexported
// expandTilde — kept separate since cmd/hatstart must not reach into
// internal/config's private helpers.
func expandHomeDir(p string) string {
	if len(p) >= 2 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
