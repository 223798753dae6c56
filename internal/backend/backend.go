// Package backend defines the boundary between the resolution engine and
// the external simulators that consume resolved parameter sets. Adapters
// receive one fully resolved sample at a time; a failed simulation is
// reported per sample and never aborts the rest of the dataset.
package backend

import (
	"context"

	"github.com/vk/phylogen/internal/skyline"
	"github.com/vk/phylogen/internal/value"
)

// Parameter is one resolved skyline parameter, in declaration order.
type Parameter struct {
	Name    string
	Skyline *skyline.Skyline
}

// Sample is the complete resolved parameter set for one dataset item.
type Sample struct {
	// FileID names the sample's output files and its metadata row.
	FileID string
	// Seed is the derived per-sample seed, forwarded so external
	// simulators can be seeded reproducibly too.
	Seed uint64
	// Context holds every resolved context variable.
	Context value.Context
	// ContextOrder lists the variable names in declaration order.
	ContextOrder []string
	// Params holds the resolved skyline parameters in declaration order.
	Params []Parameter
	// Populations is the declared population list.
	Populations []string
}

// Adapter hands one resolved sample to a simulator implementation.
type Adapter interface {
	// Simulate runs the external simulator for one sample, writing its
	// outputs under dataDir. The returned metadata (keyed by the columns
	// from Columns) is appended to the sample's metadata row. An error
	// marks this sample as failed; the orchestrator may retry it with a
	// fresh draw.
	Simulate(ctx context.Context, dataDir string, sample *Sample) (map[string]string, error)

	// Columns lists the extra metadata columns this adapter produces, in
	// a fixed order.
	Columns() []string
}
