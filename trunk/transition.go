package trunk

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"

	. "github.com/gomlx/gomlx/graph"
)

// transition is the gated (SwiGLU) feed-forward block: expand the last axis
// by the expansion factor with a swish-gated projection, then contract back.
// All projections are bias-free. The hidden activations and the output are
// masked. Works for any leading shape the mask covers.
func transition(ctx *context.Context, x, mask *Node, expansion int, layerNorm bool) *Node {
	dim := x.Shape().Dimensions[x.Rank()-1]
	if layerNorm {
		x = layers.LayerNormalization(ctx.In("norm"), x, -1).Done()
	}
	inner := dim * expansion
	hidden := Mul(
		activations.Swish(layers.Dense(ctx.In("gate"), x, false, inner)),
		layers.Dense(ctx.In("up"), x, false, inner))
	hidden = ApplyMask(hidden, mask)
	out := layers.Dense(ctx.In("down"), hidden, false, dim)
	return ApplyMask(out, mask)
}

// transitionADALN wraps transition with adaptive layer normalization on the
// input and adaptive output scaling, both driven by cond.
func transitionADALN(ctx *context.Context, x, cond, mask *Node, expansion int) *Node {
	x = adaptiveLayerNorm(ctx.In("adaln"), x, cond, mask)
	x = transition(ctx.In("transition"), x, mask, expansion, false)
	x = adaptiveScale(ctx.In("output_scale"), x, cond, mask)
	return ApplyMask(x, mask)
}
