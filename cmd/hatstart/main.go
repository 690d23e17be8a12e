// Command hatstart is the thin CLI glue around the resolver core:
// it loads a tool catalog, builds a dependency graph, and renders the
// installation plan a user would hand to their platform's package
// manager. This command never installs anything itself; it only
// produces and displays plans.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
