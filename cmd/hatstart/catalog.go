package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sibilleb/hatstart/internal/config"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or initialize the local tool catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the manifests found in the catalog directory",
	RunE:  runCatalogList,
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default config and catalog directories",
	RunE:  runCatalogInit,
}

func init() {
	catalogCmd.AddCommand(catalogListCmd, catalogInitCmd)
}

func runCatalogList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}

	manifests, err := loadManifests(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	sort.Slice(manifests, func(i, j int) bool { return manifests[i].ID < manifests[j].ID })

	cmd.Printf("%-24s %-28s %s\n", "ID", "NAME", "CATEGORY")
	for _, m := range manifests {
		cmd.Printf("%-24s %-28s %s\n", m.ID, m.Name, m.Category)
	}
	cmd.Printf("\n%d manifest(s) in %s\n", len(manifests), expandHomeDir(cfg.CatalogDir))
	return nil
}

func runCatalogInit(cmd *cobra.Command, _ []string) error {
	cfg := config.DefaultConfig()
	configDir := expandHomeDir(config.DefaultConfigDir)
	catalogDir := expandHomeDir(cfg.CatalogDir)

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		return fmt.Errorf("creating catalog directory: %w", err)
	}

	cueBytes, err := cfg.ToCue()
	if err != nil {
		return fmt.Errorf("rendering default config: %w", err)
	}

	configPath := filepath.Join(configDir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		cmd.Printf("%s already exists, leaving it unchanged\n", configPath)
	} else {
		if err := os.WriteFile(configPath, cueBytes, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}
		cmd.Printf("wrote %s\n", configPath)
	}

	cmd.Printf("catalog directory ready: %s\n", catalogDir)
	return nil
}
