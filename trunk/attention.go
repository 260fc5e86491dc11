package trunk

import (
	"math"

	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"

	. "github.com/gomlx/gomlx/graph"
)

// maskPenalty is added to the attention logits of invalid key positions.
// A large negative finite value, rather than -inf, so rows whose keys are
// all masked still produce finite softmax weights (they are zeroed by the
// output mask anyway).
const maskPenalty = -1e9

// pairBiasAttention is multi-head self-attention over the token tensor with
// the attention logits biased by a projection of the pair representation.
// pair may be nil, in which case it degrades to plain (gated) self-attention.
// The output is projected back to TokenDim and masked.
func pairBiasAttention(ctx *context.Context, cfg *Config, x, pair, mask *Node) *Node {
	b := x.Shape().Dimensions[0]
	n := x.Shape().Dimensions[1]
	h, hd := cfg.NHeads, cfg.headDim()

	query := layers.Dense(ctx.In("query"), x, true, cfg.TokenDim)
	key := layers.Dense(ctx.In("key"), x, false, cfg.TokenDim)
	value := layers.Dense(ctx.In("value"), x, false, cfg.TokenDim)
	query = Reshape(query, b, n, h, hd)
	key = Reshape(key, b, n, h, hd)
	value = Reshape(value, b, n, h, hd)
	if cfg.UseQKLN {
		query = layers.LayerNormalization(ctx.In("query_norm"), query, -1).LearnedOffset(false).Done()
		key = layers.LayerNormalization(ctx.In("key_norm"), key, -1).LearnedOffset(false).Done()
	}

	logits := Einsum("bqhd,bkhd->bhqk", query, key)
	logits = MulScalar(logits, 1.0/math.Sqrt(float64(hd)))
	if pair != nil {
		bias := layers.LayerNormalization(ctx.In("pair_norm"), pair, -1).Done()
		bias = layers.Dense(ctx.In("pair_bias"), bias, false, h) // [b, q, k, h]
		logits = Add(logits, TransposeAllDims(bias, 0, 3, 1, 2))
	}

	// Invalid keys get a large negative logit instead of being dropped, so
	// every row stays finite under softmax.
	pairMask := ConvertDType(PairwiseMask(mask), logits.DType()) // [b, q, k]
	penalty := MulScalar(OneMinus(pairMask), maskPenalty)
	logits = Add(logits, InsertAxes(penalty, 1)) // broadcast over heads

	weights := Softmax(logits, -1)
	out := Einsum("bhqk,bkhd->bqhd", weights, value)
	out = Reshape(out, b, n, cfg.TokenDim)

	gate := Sigmoid(layers.Dense(ctx.In("gate"), x, true, cfg.TokenDim))
	out = Mul(out, gate)
	out = layers.Dense(ctx.In("output"), out, false, cfg.TokenDim)
	return ApplyMask(out, mask)
}
