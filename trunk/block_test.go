package trunk

import (
	"testing"

	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/gomlx/gomlx/graph"
)

// With all weights initialized to zero, both sub-paths of a block output
// exactly zero, so the block reduces to its residual wiring. Under parallel
// wiring with both residuals requested, the reconciled configuration must
// add the input once, not twice.
func TestBlockParallelResidualReconciliation(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	cfg := &Config{
		NLayers:               1,
		TokenDim:              8,
		PairReprDim:           4,
		DimCond:               6,
		NHeads:                2,
		UseAttnPairBias:       true,
		ResidualMHA:           true,
		ResidualTransition:    true,
		ParallelMHATransition: true,
	}
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.ResidualTransition)

	b, n := 2, 4
	ctx := context.New().WithInitializer(initializers.Zero)
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, x, cond, mask *Node) *Node {
		g := x.Graph()
		pair := Zeros(g, shapes.Make(x.DType(), b, n, n, cfg.PairReprDim))
		return attnTransitionBlock(ctx, cfg, x, pair, cond, mask)
	})

	x := make([][][]float32, b)
	for i := range x {
		x[i] = make([][]float32, n)
		for j := range x[i] {
			x[i][j] = make([]float32, cfg.TokenDim)
			for k := range x[i][j] {
				x[i][j][k] = float32(i+1) * float32(j*cfg.TokenDim+k)
			}
		}
	}
	cond := make([][][]float32, b)
	for i := range cond {
		cond[i] = make([][]float32, n)
		for j := range cond[i] {
			cond[i][j] = make([]float32, cfg.DimCond)
		}
	}
	mask := [][]bool{
		{true, true, true, true},
		{true, true, true, true},
	}

	got := exec.Call(x, cond, mask)[0]
	assert.Equal(t, x, got.Value(), "parallel block with zero weights must be the identity")
}

// Sequential wiring with both residuals and zero weights is also the
// identity: the attention sub-path passes x through, and the zeroed
// transition adds nothing.
func TestBlockSequentialZeroWeights(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	cfg := &Config{
		NLayers:            1,
		TokenDim:           4,
		PairReprDim:        2,
		DimCond:            2,
		NHeads:             2,
		UseAttnPairBias:    false,
		ResidualMHA:        true,
		ResidualTransition: true,
	}
	require.NoError(t, cfg.Validate())

	ctx := context.New().WithInitializer(initializers.Zero)
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, x, cond, mask *Node) *Node {
		return attnTransitionBlock(ctx, cfg, x, nil, cond, mask)
	})

	x := [][][]float32{{{1, 2, 3, 4}, {5, 6, 7, 8}, {0, 0, 0, 0}}}
	cond := [][][]float32{{{0, 0}, {0, 0}, {0, 0}}}
	mask := [][]bool{{true, true, false}}

	got := exec.Call(x, cond, mask)[0]
	assert.Equal(t, x, got.Value())
}
