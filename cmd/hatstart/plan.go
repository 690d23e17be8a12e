package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sibilleb/hatstart/internal/config"
	"github.com/sibilleb/hatstart/internal/core"
	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/plan"
	"github.com/sibilleb/hatstart/internal/plancache"
	"github.com/sibilleb/hatstart/internal/planexport"

	"github.com/sibilleb/hatstart/cmd/hatstart/tui"
)

var planCfg struct {
	strategy               string
	algorithm              string
	noParallel             bool
	withConflictResolution bool
	outputFormat           string
	dryRun                 bool
	tuiBrowse              bool
	maxExecTime            time.Duration
	noCache                bool
}

var planCmd = &cobra.Command{
	Use:   "plan <tool-id...>",
	Short: "Compute and print the installation plan for a set of target tools",
	Long: `Builds the dependency graph for the current catalog, then computes an
ordered, batched InstallationOrder for the given target tools.

With --with-conflict-resolution, blocking conflicts are detected and
automatically remediated (policy permitting) before planning, with the
progressively more restrictive retries described in the resolver's
design (dropping optional/suggested edges, then lazy strategy, then
disabling parallelism).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planCfg.strategy, "strategy", string(plan.StrategyEager), "Strategy: eager, lazy, conservative, aggressive, minimal, optimal")
	planCmd.Flags().StringVar(&planCfg.algorithm, "algorithm", string(plan.AlgorithmTopological), "Algorithm: topological, dfs, bfs")
	planCmd.Flags().BoolVar(&planCfg.noParallel, "no-parallel", false, "Disable batch parallelism")
	planCmd.Flags().BoolVar(&planCfg.withConflictResolution, "with-conflict-resolution", false, "Detect and auto-resolve blocking conflicts before planning")
	planCmd.Flags().StringVarP(&planCfg.outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	planCmd.Flags().BoolVar(&planCfg.dryRun, "dry-run", false, "Simulate batch execution with progress bars (text output only)")
	planCmd.Flags().BoolVar(&planCfg.tuiBrowse, "tui", false, "Open the interactive plan browser instead of printing text output")
	planCmd.Flags().DurationVar(&planCfg.maxExecTime, "max-execution-time", 30*time.Second, "Deadline for a single plan call")
	planCmd.Flags().BoolVar(&planCfg.noCache, "no-cache", false, "Disable the on-disk plan cache")
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	opts := cfg.Plan
	opts.Strategy = plan.Strategy(planCfg.strategy)
	opts.Algorithm = plan.Algorithm(planCfg.algorithm)
	opts.EnableParallel = !planCfg.noParallel
	opts.MaxExecutionTime = planCfg.maxExecTime
	opts.EnableCaching = !planCfg.noCache

	ctx, cancel := core.WithTimeout(cmd.Context(), opts.MaxExecutionTime)
	defer cancel()

	var order *core.InstallationOrder
	var report *core.ConflictReport
	if planCfg.withConflictResolution {
		order, report = core.PlanWithConflictResolution(ctx, buildResult.Graph, buildResult.Conflicts, targets, cfg.Policy, platform, arch, opts)
	} else {
		order = core.PlanInstallation(ctx, buildResult.Graph, targets, platform, arch, opts)
	}

	if !planCfg.noCache && order.Success {
		if err := cachePlan(cfg, targets, platform, arch, opts, order); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: plan cache write failed: %v\n", err)
		}
	}

	if planCfg.tuiBrowse {
		if !order.Success {
			return printTextPlan(cmd, buildResult, order, report)
		}
		return tui.RunBrowser(cmd.OutOrStdout(), buildResult.Graph, order)
	}

	switch planCfg.outputFormat {
	case outputJSON:
		return planexport.ExportJSON(cmd.OutOrStdout(), order)
	case "yaml":
		return planexport.ExportYAML(cmd.OutOrStdout(), order)
	default:
		return printTextPlan(cmd, buildResult, order, report)
	}
}

func printTextPlan(cmd *cobra.Command, buildResult *core.BuildResult, order *core.InstallationOrder, report *core.ConflictReport) error {
	if report != nil && len(report.Conflicts) > 0 {
		cmd.Printf("resolved %d conflict(s) before planning (overall severity %s)\n\n", len(report.Conflicts), report.OverallSeverity)
	}

	if !order.Success {
		cmd.Println("planning failed:")
		for _, e := range order.Errors {
			cmd.Printf("  [%s] %s\n", e.Code, e.Message)
		}
		return nil
	}

	printer := newPlanPrinter(cmd.OutOrStdout(), globalNoColor)
	cmd.Println("Dependency Graph:")
	printer.PrintTree(buildResult.Graph, order.InstallationSequence)
	printer.PrintBatches(order.Batches)
	printer.PrintSummary(order)

	if planCfg.dryRun {
		cmd.Println("\nSimulating batch execution:")
		simulateBatches(cmd.OutOrStdout(), order)
	}
	return nil
}

// cachePlan persists a successful order to the on-disk plan cache
// under cfg.CacheDir — the CLI-level counterpart to the Planner's own
// in-process cache, since the core package never touches disk.
func cachePlan(cfg *config.Config, targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts plan.Options, order *core.InstallationOrder) error {
	store, err := plancache.NewStore(expandHomeDir(cfg.CacheDir))
	if err != nil {
		return err
	}
	return store.Store(cliCacheKey(targets, platform, arch, opts), order)
}

// cliCacheKey derives the on-disk cache key from the sorted targets,
// platform, architecture, and the option fields that change a plan's
// shape, independent of the Planner's own unexported cacheKey.
func cliCacheKey(targets []manifest.ToolID, platform manifest.Platform, arch manifest.Architecture, opts plan.Options) string {
	sorted := append([]manifest.ToolID{}, targets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return fmt.Sprintf("%v-%s-%s-%s-%s-%v-%v-%v", sorted, platform, arch, opts.Strategy, opts.Algorithm,
		opts.IncludeOptional, opts.IncludeSuggested, opts.EnableParallel)
}
