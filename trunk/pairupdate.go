package trunk

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"

	. "github.com/gomlx/gomlx/graph"
)

const (
	// triMultMaxHidden caps the hidden width of the triangular
	// multiplicative updates; the effective width is
	// min(PairReprDim, triMultMaxHidden).
	triMultMaxHidden = 196

	// pairTransitionExpansion is the feed-forward expansion factor of the
	// pair transition, narrower than the token transition.
	pairTransitionExpansion = 2
)

// pairUpdate recomputes the pair representation from the current token
// tensor: each pair cell receives two bias-free projections of the
// normalized tokens, one broadcast along rows and one along columns, added
// to the existing pair tensor; then the refinement stack runs. Returns the
// new pair tensor, same shape, masked.
func pairUpdate(ctx *context.Context, cfg *Config, seqs, pair, mask *Node) *Node {
	pairMask := PairwiseMask(mask)
	x := ApplyMask(seqs, mask)
	x = layers.LayerNormalization(ctx.In("norm_in"), x, -1).Done()
	projections := layers.Dense(ctx.In("proj"), x, false, 2*cfg.PairReprDim)
	rowContrib := Slice(projections, AxisRange(), AxisRange(), AxisRangeFromStart(cfg.PairReprDim))
	colContrib := Slice(projections, AxisRange(), AxisRange(), AxisRange(cfg.PairReprDim))

	// pair[i, j] += rowContrib[j] + colContrib[i]
	pair = Add(pair, Add(InsertAxes(rowContrib, 1), InsertAxes(colContrib, 2)))
	pair = ApplyMask(pair, pairMask)
	return pairRefine(ctx, cfg, pair, pairMask)
}

// pairRefine holds the memory-heavy part of the pair update: the O(n^3)
// triangular multiplicative updates and the pair transition. It is kept as
// one unit so a recompute-on-backward boundary can wrap exactly these steps.
func pairRefine(ctx *context.Context, cfg *Config, pair, pairMask *Node) *Node {
	if cfg.UseTriMult {
		pair = Add(pair, triangleMultiplication(ctx.In("tri_mult_outgoing"), cfg, pair, pairMask, true))
		pair = ApplyMask(pair, pairMask)
		pair = Add(pair, triangleMultiplication(ctx.In("tri_mult_incoming"), cfg, pair, pairMask, false))
		pair = ApplyMask(pair, pairMask)
	}
	pair = Add(pair, transition(ctx.In("transition"), pair, pairMask, pairTransitionExpansion, true))
	return ApplyMask(pair, pairMask)
}

// triangleMultiplication refines each pair cell (i, j) from the third legs
// of all triangles through it: outgoing combines edges (i, k) and (j, k),
// incoming combines (k, i) and (k, j). Gated on both the hidden projections
// and the output, following the AlphaFold recipe. Returns the unmasked
// delta; the caller adds and masks it.
func triangleMultiplication(ctx *context.Context, cfg *Config, pair, pairMask *Node, outgoing bool) *Node {
	hidden := min(cfg.PairReprDim, triMultMaxHidden)
	z := layers.LayerNormalization(ctx.In("norm_in"), pair, -1).Done()

	left := Mul(
		Sigmoid(layers.Dense(ctx.In("left_gate"), z, true, hidden)),
		layers.Dense(ctx.In("left_proj"), z, false, hidden))
	left = ApplyMask(left, pairMask)
	right := Mul(
		Sigmoid(layers.Dense(ctx.In("right_gate"), z, true, hidden)),
		layers.Dense(ctx.In("right_proj"), z, false, hidden))
	right = ApplyMask(right, pairMask)

	var out *Node
	if outgoing {
		out = Einsum("bikc,bjkc->bijc", left, right)
	} else {
		out = Einsum("bkic,bkjc->bijc", left, right)
	}
	out = layers.LayerNormalization(ctx.In("norm_out"), out, -1).Done()
	out = layers.Dense(ctx.In("proj_out"), out, false, cfg.PairReprDim)
	gate := Sigmoid(layers.Dense(ctx.In("gate_out"), z, true, cfg.PairReprDim))
	return Mul(out, gate)
}
