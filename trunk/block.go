package trunk

import (
	"github.com/gomlx/gomlx/ml/context"

	. "github.com/gomlx/gomlx/graph"
)

// transitionExpansion is the feed-forward expansion factor inside trunk
// blocks.
const transitionExpansion = 4

// attentionSubPath: adaptive layer norm, pair-biased attention, adaptive
// output scale, optional residual. Masked throughout.
func attentionSubPath(ctx *context.Context, cfg *Config, x, pair, cond, mask *Node) *Node {
	out := adaptiveLayerNorm(ctx.In("adaln"), x, cond, mask)
	out = pairBiasAttention(ctx.In("attention"), cfg, out, pair, mask)
	out = adaptiveScale(ctx.In("output_scale"), out, cond, mask)
	if cfg.ResidualMHA {
		out = Add(out, x)
	}
	return ApplyMask(out, mask)
}

// transitionSubPath: adaptively normalized and scaled gated feed-forward,
// optional residual. The residual flag observed here is the post-Validate
// one, so parallel blocks never double-count their input.
func transitionSubPath(ctx *context.Context, cfg *Config, x, cond, mask *Node) *Node {
	out := transitionADALN(ctx.In("transition"), x, cond, mask, transitionExpansion)
	if cfg.ResidualTransition {
		out = Add(out, x)
	}
	return ApplyMask(out, mask)
}

// attnTransitionBlock is one trunk unit: attention and transition sub-paths
// combined sequentially (attention feeds the transition) or in parallel
// (both consume the block input and their outputs are summed), per the
// configuration. pair may be nil.
func attnTransitionBlock(ctx *context.Context, cfg *Config, x, pair, cond, mask *Node) *Node {
	x = ApplyMask(x, mask)
	if cfg.ParallelMHATransition {
		x = Add(
			attentionSubPath(ctx.In("mha"), cfg, x, pair, cond, mask),
			transitionSubPath(ctx.In("ffn"), cfg, x, cond, mask))
	} else {
		x = attentionSubPath(ctx.In("mha"), cfg, x, pair, cond, mask)
		x = transitionSubPath(ctx.In("ffn"), cfg, x, cond, mask)
	}
	return ApplyMask(x, mask)
}
