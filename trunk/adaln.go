package trunk

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"

	. "github.com/gomlx/gomlx/graph"
)

// adaptiveLayerNorm normalizes x with scale and shift computed from the
// conditioning tensor instead of fixed learned constants. x and cond share
// their leading dimensions, which the boolean mask covers; it works
// unchanged for token tensors ([b, n, d] with [b, n] mask) and pair tensors
// ([b, n, n, d] with [b, n, n] mask).
func adaptiveLayerNorm(ctx *context.Context, x, cond, mask *Node) *Node {
	dim := x.Shape().Dimensions[x.Rank()-1]
	normed := layers.LayerNormalization(ctx.In("norm"), x, -1).
		LearnedGain(false).LearnedOffset(false).Done()
	cond = layers.LayerNormalization(ctx.In("cond_norm"), cond, -1).
		LearnedOffset(false).Done()
	scale := Sigmoid(layers.Dense(ctx.In("scale"), cond, true, dim))
	shift := layers.Dense(ctx.In("shift"), cond, false, dim)
	out := Add(Mul(normed, scale), shift)
	return ApplyMask(out, mask)
}

// gateBiasInit offsets the output-scale gate logits so gates start
// near-closed (sigmoid(-2) ~ 0.12) and blocks initially contribute little.
const gateBiasInit = -2.0

// adaptiveScale gates x elementwise with a sigmoid computed from the
// conditioning tensor; the adaptive counterpart of a learned output scale.
func adaptiveScale(ctx *context.Context, x, cond, mask *Node) *Node {
	dim := x.Shape().Dimensions[x.Rank()-1]
	gate := Sigmoid(AddScalar(layers.Dense(ctx.In("gate"), cond, true, dim), gateBiasInit))
	return ApplyMask(Mul(x, gate), mask)
}
