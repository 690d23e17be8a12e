package config

import (
	"os"
	"strconv"

	"github.com/sibilleb/hatstart/internal/conflict"
)

// applyEnvOverlay overlays a handful of environment variables onto an
// already-loaded Config. Environment wins over the file, which wins
// over DefaultConfig.
func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv("HATSTART_CATALOG_DIR"); v != "" {
		cfg.CatalogDir = v
	}
	if v := os.Getenv("HATSTART_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("HATSTART_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Policy.Automatic.MaxSteps = n
		}
	}
	if v := os.Getenv("HATSTART_RISK_TOLERANCE"); v != "" {
		switch conflict.RiskTolerance(v) {
		case conflict.RiskConservative, conflict.RiskModerate, conflict.RiskAggressive:
			cfg.Policy.Automatic.RiskTolerance = conflict.RiskTolerance(v)
		}
	}
}
