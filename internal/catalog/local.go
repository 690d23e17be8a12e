// Package catalog holds concrete ManifestSource adapters: local
// filesystem directories (CUE and YAML), git remotes, and OCI
// registries. Each adapter satisfies core.ManifestSource but the
// package intentionally never imports internal/core, so the adapters
// stay usable without pulling in the resolver pipeline.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/goccy/go-yaml"

	"github.com/sibilleb/hatstart/internal/manifest"
)

// manifestDoc mirrors manifest.ToolManifest with yaml struct tags so
// local catalog files can use either CUE or plain YAML without the
// manifest package itself carrying a yaml-specific tag set.
type manifestDoc struct {
	ID                  manifest.ToolID                                   `yaml:"id" json:"id"`
	Name                string                                            `yaml:"name" json:"name"`
	Category            manifest.Category                                 `yaml:"category" json:"category"`
	SystemRequirements  manifest.SystemRequirements                       `yaml:"systemRequirements" json:"systemRequirements"`
	VersionInfo         manifest.VersionInfo                              `yaml:"versionInfo" json:"versionInfo"`
	InstallationRecipes map[manifest.Platform]manifest.InstallationRecipe `yaml:"installationRecipes" json:"installationRecipes"`
	Dependencies        []manifest.ToolDependency                         `yaml:"dependencies" json:"dependencies"`
}

func (d manifestDoc) toManifest() manifest.ToolManifest {
	return manifest.ToolManifest{
		ID:                  d.ID,
		Name:                d.Name,
		Category:            d.Category,
		SystemRequirements:  d.SystemRequirements,
		VersionInfo:         d.VersionInfo,
		InstallationRecipes: d.InstallationRecipes,
		Dependencies:        d.Dependencies,
	}
}

// LocalSource is a ManifestSource reading .cue and .yaml/.yml tool
// manifest files from a directory, non-recursively.
type LocalSource struct {
	Dir string
}

// NewLocalSource builds a LocalSource rooted at dir.
func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{Dir: dir}
}

// Manifests implements core.ManifestSource.
func (s *LocalSource) Manifests(ctx context.Context) ([]manifest.ToolManifest, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading manifest directory %s: %w", s.Dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []manifest.ToolManifest
	for _, name := range names {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		path := filepath.Join(s.Dir, name)
		if !strings.HasSuffix(name, ".cue") && !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		m, err := decodeManifestBytes(name, data)
		if err != nil {
			return nil, err
		}
		out = append(out, m...)
	}
	return out, nil
}

// decodeManifestBytes decodes manifest content already read into
// memory, dispatching on name's extension. It backs both LocalSource
// (reading from disk) and OCISource (reading from a tar layer), so a
// manifest bundle can be distributed as a directory or as an OCI
// artifact interchangeably.
func decodeManifestBytes(name string, data []byte) ([]manifest.ToolManifest, error) {
	switch {
	case strings.HasSuffix(name, ".cue"):
		return decodeCUEBytes(name, data)
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return decodeYAMLBytes(name, data)
	default:
		return nil, fmt.Errorf("unrecognized manifest format: %s", name)
	}
}

// decodeCUEBytes compiles a single .cue document and looks up a
// top-level "manifests" field holding a list of tool manifest
// structs. No CUE-module resolution (registries, cue.mod, @tag() env
// substitution) is involved — catalog manifests are self-contained
// declarations, not a layered module tree.
func decodeCUEBytes(name string, data []byte) ([]manifest.ToolManifest, error) {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}

	manifestsVal := val.LookupPath(cue.ParsePath("manifests"))
	var docs []manifestDoc
	if manifestsVal.Exists() {
		if err := manifestsVal.Decode(&docs); err != nil {
			return nil, fmt.Errorf("decoding manifests in %s: %w", name, err)
		}
	} else {
		var single manifestDoc
		if err := val.Decode(&single); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		docs = []manifestDoc{single}
	}

	out := make([]manifest.ToolManifest, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toManifest())
	}
	return out, nil
}

// decodeYAMLBytes decodes a YAML document holding either a single
// tool manifest or a "manifests:" list of them.
func decodeYAMLBytes(name string, data []byte) ([]manifest.ToolManifest, error) {
	var wrapper struct {
		Manifests []manifestDoc `yaml:"manifests"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err == nil && len(wrapper.Manifests) > 0 {
		out := make([]manifest.ToolManifest, 0, len(wrapper.Manifests))
		for _, d := range wrapper.Manifests {
			out = append(out, d.toManifest())
		}
		return out, nil
	}

	var single manifestDoc
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return []manifest.ToolManifest{single.toManifest()}, nil
}
