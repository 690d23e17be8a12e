// Package probe implements the core's SystemInspector: it detects the
// running platform/architecture from the Go runtime, then shells out a
// small per-tool check command to discover what is already installed.
package probe

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"

	"github.com/sibilleb/hatstart/internal/manifest"
)

// CheckCommand names the executable (and arguments) used to test
// whether a tool is already present on the system, e.g. {"node",
// "--version"}. A zero-length Command always reports not-installed.
type CheckCommand struct {
	Tool    manifest.ToolID
	Command []string
}

// Inspector is the concrete SystemInspector. Checks run with a
// per-command timeout so one hung executable cannot stall detection
// for the whole catalog.
type Inspector struct {
	Checks  []CheckCommand
	Timeout time.Duration
}

// NewInspector builds an Inspector running checks, defaulting the
// per-check timeout to two seconds.
func NewInspector(checks []CheckCommand) *Inspector {
	return &Inspector{Checks: checks, Timeout: 2 * time.Second}
}

// DetectPlatform maps runtime.GOOS to the manifest.Platform enum.
func DetectPlatform() manifest.Platform {
	switch runtime.GOOS {
	case "darwin":
		return manifest.PlatformMacOS
	case "windows":
		return manifest.PlatformWindows
	default:
		return manifest.PlatformLinux
	}
}

// DetectArchitecture maps runtime.GOARCH to the manifest.Architecture enum.
func DetectArchitecture() manifest.Architecture {
	switch runtime.GOARCH {
	case "arm64":
		return manifest.ArchARM64
	case "386":
		return manifest.ArchX86
	case "arm":
		return manifest.ArchARM
	default:
		return manifest.ArchX64
	}
}

// Inspect implements core.SystemInspector.
func (p *Inspector) Inspect(ctx context.Context) (manifest.Platform, manifest.Architecture, map[manifest.ToolID]bool, error) {
	installed := make(map[manifest.ToolID]bool, len(p.Checks))
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	for _, check := range p.Checks {
		if ctx.Err() != nil {
			return "", "", nil, ctx.Err()
		}
		installed[check.Tool] = p.runCheck(ctx, timeout, check)
	}

	return DetectPlatform(), DetectArchitecture(), installed, nil
}

func (p *Inspector) runCheck(ctx context.Context, timeout time.Duration, check CheckCommand) bool {
	if len(check.Command) == 0 {
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(checkCtx, check.Command[0], check.Command[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	return cmd.Run() == nil
}
