package main

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/sibilleb/hatstart/internal/conflict"
	"github.com/sibilleb/hatstart/internal/core"
	"github.com/sibilleb/hatstart/internal/manifest"
)

var detectOutputFormat string
var detectThorough bool

var detectCmd = &cobra.Command{
	Use:   "detect <tool-id...>",
	Short: "Detect conflicts among a set of target tools",
	Long: `Builds the dependency graph for the current catalog and runs the
Conflict Detector over the given target tools, reporting every
version, circular, platform, cross-category, and resource conflict
found — without attempting to resolve any of them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringVarP(&detectOutputFormat, "output", "o", "text", "Output format: text, json, yaml")
	detectCmd.Flags().BoolVar(&detectThorough, "thorough", false, "Enable thorough analysis (more expensive compromise-version search)")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}

	manifests, err := loadManifests(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	buildResult, platform, arch := buildGraph(manifests, cfg)
	if !buildResult.Success() {
		return fmt.Errorf("graph build failed with %d error(s); run 'hatstart catalog list' to inspect the catalog", len(buildResult.Errors))
	}

	targets := make([]manifest.ToolID, len(args))
	for i, a := range args {
		targets[i] = manifest.ToolID(a)
	}

	report := core.DetectConflicts(buildResult.Graph, buildResult.Conflicts, targets, platform, arch, conflict.Options{
		EnableCaching:    true,
		ThoroughAnalysis: detectThorough,
	})

	switch detectOutputFormat {
	case outputJSON:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		data, err := yaml.MarshalWithOptions(report, yaml.Indent(2))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	default:
		return printTextReport(cmd, report)
	}
}

func printTextReport(cmd *cobra.Command, report *core.ConflictReport) error {
	cmd.Printf("overall severity: %s  can proceed: %v\n", report.OverallSeverity, report.CanProceed)
	cmd.Printf("%d conflict(s): %d blocking\n\n", report.Statistics.TotalConflicts, report.Statistics.BlockingConflicts)

	for _, c := range report.Conflicts {
		cmd.Printf("[%s/%s] %s — %s\n", c.Type, c.Severity, c.ID, c.RootCause)
		cmd.Printf("  tools: %v  blocking: %v\n", c.InvolvedTools, c.Blocking)
		for _, s := range c.SuggestedResolutions() {
			cmd.Printf("  suggestion: %s\n", s)
		}
		cmd.Println()
	}

	if len(report.Recommendations) > 0 {
		cmd.Println("recommendations:")
		for _, r := range report.Recommendations {
			cmd.Printf("  - %s\n", r)
		}
	}
	return nil
}
