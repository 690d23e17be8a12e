// Package planexport renders a plan.Order as a structured document
// for external consumers (CLI output, CI artifacts): the installation
// sequence, numbered parallel batches, and the deferred/circular/error
// fields a downstream installer needs to act on the plan.
package planexport

import (
	"encoding/json"
	"io"

	"github.com/goccy/go-yaml"

	hserrors "github.com/sibilleb/hatstart/internal/errors"
	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/plan"
)

// Document is the exported shape of an InstallationOrder.
type Document struct {
	Sequence  []manifest.ToolID    `json:"sequence" yaml:"sequence"`
	Batches   []Batch              `json:"batches" yaml:"batches"`
	Deferred  []manifest.ToolID    `json:"deferred,omitempty" yaml:"deferred,omitempty"`
	Circular  [][]manifest.ToolID  `json:"circular,omitempty" yaml:"circular,omitempty"`
	Summary   Summary              `json:"summary" yaml:"summary"`
	Success   bool                 `json:"success" yaml:"success"`
	Warnings  hserrors.Diagnostics `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors    hserrors.Diagnostics `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Batch is one parallel-installable group, indexed from 1.
type Batch struct {
	Index int               `json:"index" yaml:"index"`
	Tools []manifest.ToolID `json:"tools" yaml:"tools"`
}

// Summary aggregates counts over a Document.
type Summary struct {
	TotalTools    int `json:"totalTools" yaml:"totalTools"`
	BatchCount    int `json:"batchCount" yaml:"batchCount"`
	DeferredCount int `json:"deferredCount" yaml:"deferredCount"`
	CircularCount int `json:"circularCount" yaml:"circularCount"`
}

// BuildDocument converts an Order into its exported Document shape.
func BuildDocument(order *plan.Order) Document {
	doc := Document{
		Sequence: order.InstallationSequence,
		Deferred: order.DeferredDependencies,
		Circular: order.CircularDependencies,
		Success:  order.Success,
		Warnings: order.Warnings,
		Errors:   order.Errors,
	}

	doc.Batches = make([]Batch, 0, len(order.Batches))
	for i, batch := range order.Batches {
		doc.Batches = append(doc.Batches, Batch{Index: i + 1, Tools: batch})
	}

	doc.Summary = Summary{
		TotalTools:    len(order.InstallationSequence),
		BatchCount:    len(doc.Batches),
		DeferredCount: len(order.DeferredDependencies),
		CircularCount: len(order.CircularDependencies),
	}
	return doc
}

// ExportJSON writes order as indented JSON.
func ExportJSON(w io.Writer, order *plan.Order) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildDocument(order))
}

// ExportYAML writes order as YAML.
func ExportYAML(w io.Writer, order *plan.Order) error {
	data, err := yaml.MarshalWithOptions(BuildDocument(order), yaml.Indent(2))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
