package trunk

import (
	"fmt"

	"github.com/Oxer11/proteina/features"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/ml/layers"

	. "github.com/gomlx/gomlx/graph"
)

// Output carries the denoiser predictions for one forward pass.
type Output struct {
	// CoorsPred are the predicted clean coordinates, shaped
	// [batch, numResidues, 3], zeroed at masked positions.
	CoorsPred *Node

	// PairPred are the distogram logits over the pair representation,
	// shaped [batch, numResidues, numResidues, NumBucketsPredictPair].
	// Nil when the configuration does not keep a pair representation or
	// sets NumBucketsPredictPair to zero.
	PairPred *Node
}

// condExpansion is the feed-forward expansion of the two transitions that
// refine the conditioning tensor before it drives the adaptive norms.
const condExpansion = 2

// Forward runs the full trunk on a batch: embed features and noisy
// coordinates, extend with registers, run the attention and transition
// blocks interleaved with pair updates, strip registers, and decode
// coordinates (plus distogram logits when configured).
//
// cfg must have been reconciled with Validate. Panics (via the graph
// building machinery) on invalid feature names or shape mismatches.
func Forward(ctx *context.Context, cfg *Config, batch *features.Batch) Output {
	ctx = ctx.WithInitializer(initializers.XavierNormalFn(ctx))
	mask := batch.Mask

	// Conditioning: embed, then refine with two plain transitions.
	cond := buildFeatures(ctx.In("cond_feats"), features.ModeSeq, cfg.FeatsCondSeq, cfg.DimCond, false, batch)
	cond = ApplyMask(cond, mask)
	cond = ApplyMask(transition(ctx.In("cond_transition_1"), cond, mask, condExpansion, false), mask)
	cond = ApplyMask(transition(ctx.In("cond_transition_2"), cond, mask, condExpansion, false), mask)

	// Token representation: embedded noisy coordinates plus sequence
	// features.
	coors := ApplyMask(batch.XT, mask)
	seqs := layers.Dense(ctx.In("coords_embed"), coors, false, cfg.TokenDim)
	seqs = Add(seqs, buildFeatures(ctx.In("seq_feats"), features.ModeSeq, cfg.FeatsInitSeq, cfg.TokenDim, false, batch))
	seqs = ApplyMask(seqs, mask)

	var pair *Node
	if cfg.UseAttnPairBias {
		pair = buildPairRepr(ctx, cfg, batch, mask)
	}

	seqs, pair, mask, cond = extendWithRegisters(ctx, cfg, seqs, pair, mask, cond)

	for i := 0; i < cfg.NLayers; i++ {
		seqs = attnTransitionBlock(ctx.In(fmt.Sprintf("layer_%d", i)), cfg, seqs, pair, cond, mask)
		if cfg.PairUpdateAt(i) {
			pair = pairUpdate(ctx.In(fmt.Sprintf("pair_update_%d", i)), cfg, seqs, pair, mask)
		}
	}

	seqs, pair, mask = undoRegisters(cfg, seqs, pair, mask)

	// Decode coordinates from the token tensor.
	out := layers.LayerNormalization(ctx.In("coords_norm"), seqs, -1).Done()
	coorsPred := layers.Dense(ctx.In("coords_decode"), out, false, 3)
	coorsPred = ApplyMask(coorsPred, mask)

	var pairPred *Node
	if pair != nil && cfg.NumBucketsPredictPair > 0 {
		p := layers.LayerNormalization(ctx.In("pair_pred_norm"), pair, -1).Done()
		pairPred = layers.Dense(ctx.In("pair_pred"), p, true, cfg.NumBucketsPredictPair)
		// Tie the distogram head into the coordinate gradient path
		// without changing the predicted values.
		coorsPred = Add(coorsPred, MulScalar(ReduceAllMean(pairPred), 0))
		coorsPred = ApplyMask(coorsPred, mask)
	}
	return Output{CoorsPred: coorsPred, PairPred: pairPred}
}

// buildPairRepr assembles the initial pair representation from the
// configured pair features, optionally modulated by pair-level conditioning
// features through an adaptive layer norm.
func buildPairRepr(ctx *context.Context, cfg *Config, batch *features.Batch, mask *Node) *Node {
	pairMask := PairwiseMask(mask)
	pair := buildFeatures(ctx.In("pair_feats"), features.ModePair, cfg.FeatsPairRepr, cfg.PairReprDim, true, batch)
	pair = ApplyMask(pair, pairMask)
	if len(cfg.FeatsPairCond) > 0 {
		pairCond := buildFeatures(ctx.In("pair_cond_feats"), features.ModePair, cfg.FeatsPairCond, cfg.DimCond, false, batch)
		pairCond = ApplyMask(pairCond, pairMask)
		pair = adaptiveLayerNorm(ctx.In("pair_adaln"), pair, pairCond, pairMask)
	}
	return pair
}

// buildFeatures constructs a feature factory and runs it. Factory
// construction only fails on unknown feature names, which is a
// configuration error, so it surfaces as a panic during graph building.
func buildFeatures(ctx *context.Context, mode features.Mode, names []string, dimOut int, lnOut bool, batch *features.Batch) *Node {
	factory, err := features.NewFactory(mode, names, dimOut, lnOut)
	if err != nil {
		exceptions.Panicf("building %s feature factory: %v", mode, err)
	}
	return factory.Build(ctx, batch)
}
