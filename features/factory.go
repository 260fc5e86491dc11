package features

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/pkg/errors"

	. "github.com/gomlx/gomlx/graph"
)

// builderFn builds one raw feature tensor from a batch: [b, n, rawDim] in
// seq mode, [b, n, n, rawDim] in pair mode.
type builderFn func(b *Batch) *Node

var seqBuilders = map[string]builderFn{
	"diffusion_time":    diffusionTimeSeq,
	"residue_index":     residueIndex,
	"self_conditioning": selfConditioning,
}

var pairBuilders = map[string]builderFn{
	"relative_position":           relativePosition,
	"self_conditioning_distogram": selfConditioningDistogram,
	"diffusion_time":              diffusionTimePair,
}

// Factory turns a fixed list of named features into a single dense tensor.
// The list is resolved at construction; unknown names are an error. Build may
// then be called once per graph.
type Factory struct {
	mode     Mode
	names    []string
	builders []builderFn
	dimOut   int
	lnOut    bool
}

// NewFactory resolves the named features for the given mode. dimOut is the
// width of the projected output and lnOut selects a final layer
// normalization, as the trunk requires for the pair representation.
func NewFactory(mode Mode, names []string, dimOut int, lnOut bool) (*Factory, error) {
	if dimOut <= 0 {
		return nil, errors.Errorf("features.NewFactory: dimOut must be positive, got %d", dimOut)
	}
	table := seqBuilders
	if mode == ModePair {
		table = pairBuilders
	}
	f := &Factory{mode: mode, names: names, dimOut: dimOut, lnOut: lnOut}
	for _, name := range names {
		builder, found := table[name]
		if !found {
			return nil, errors.Errorf("features.NewFactory: unknown %s feature %q", mode, name)
		}
		f.builders = append(f.builders, builder)
	}
	return f, nil
}

// DimOut returns the width of the tensors built by the factory.
func (f *Factory) DimOut() int { return f.dimOut }

// Build creates the feature tensor for the batch: [b, n, dimOut] in seq mode,
// [b, n, n, dimOut] in pair mode. With no features configured it returns
// zeros. The result is not masked; the caller owns masking.
func (f *Factory) Build(ctx *context.Context, b *Batch) *Node {
	g := b.Graph()
	if len(f.builders) == 0 {
		if f.mode == ModePair {
			return Zeros(g, shapes.Make(b.DType(), b.BatchSize(), b.NumResidues(), b.NumResidues(), f.dimOut))
		}
		return Zeros(g, shapes.Make(b.DType(), b.BatchSize(), b.NumResidues(), f.dimOut))
	}
	raw := make([]*Node, 0, len(f.builders))
	for _, builder := range f.builders {
		raw = append(raw, builder(b))
	}
	x := raw[0]
	if len(raw) > 1 {
		x = Concatenate(raw, -1)
	}
	x = layers.Dense(ctx.In("project"), x, true, f.dimOut)
	if f.lnOut {
		x = layers.LayerNormalization(ctx.In("output_norm"), x, -1).Done()
	}
	return x
}
