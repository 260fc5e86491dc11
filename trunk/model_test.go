package trunk

import (
	"math/rand"
	"testing"

	"github.com/Oxer11/proteina/features"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/gomlx/gomlx/graph"
)

func testConfig() *Config {
	return &Config{
		NLayers:               3,
		TokenDim:              32,
		PairReprDim:           16,
		DimCond:               8,
		NHeads:                4,
		UseAttnPairBias:       true,
		ResidualMHA:           true,
		ResidualTransition:    true,
		UseQKLN:               true,
		UpdatePairRepr:        true,
		UpdatePairReprEveryN:  2,
		UseTriMult:            true,
		NumBucketsPredictPair: 12,
		FeatsInitSeq:          []string{"residue_index", "self_conditioning"},
		FeatsCondSeq:          []string{"diffusion_time"},
		FeatsPairRepr:         []string{"relative_position"},
		FeatsPairCond:         []string{"diffusion_time"},
		DType:                 dtypes.Float32,
	}
}

func testBatchInputs(b, n int) (xt [][][]float32, diffT []float32, mask [][]bool) {
	rng := rand.New(rand.NewSource(42))
	xt = make([][][]float32, b)
	for i := range xt {
		xt[i] = make([][]float32, n)
		for j := range xt[i] {
			xt[i][j] = []float32{
				float32(rng.NormFloat64()),
				float32(rng.NormFloat64()),
				float32(rng.NormFloat64()),
			}
		}
	}
	diffT = make([]float32, b)
	for i := range diffT {
		diffT[i] = rng.Float32()
	}
	// First sample fully valid, second padded on the last 3 residues.
	mask = make([][]bool, b)
	for i := range mask {
		mask[i] = make([]bool, n)
		for j := range mask[i] {
			mask[i][j] = i == 0 || j < n-3
		}
	}
	return
}

func TestForward(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	cfg := testConfig()
	require.NoError(t, cfg.Validate())
	b, n := 2, 10

	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, xt, diffT, mask *Node) []*Node {
		out := Forward(ctx, cfg, &features.Batch{XT: xt, T: diffT, Mask: mask})
		return []*Node{out.CoorsPred, out.PairPred}
	})

	xt, diffT, mask := testBatchInputs(b, n)
	results := exec.Call(xt, diffT, mask)

	coors := results[0]
	require.Equal(t, []int{b, n, 3}, coors.Shape().Dimensions)
	values := coors.Value().([][][]float32)
	for i := 0; i < b; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < 3; k++ {
				v := values[i][j][k]
				assert.False(t, v != v, "NaN at [%d][%d][%d]", i, j, k)
				if !mask[i][j] {
					assert.Zero(t, v, "masked residue [%d][%d] must predict exact zeros", i, j)
				}
			}
		}
	}

	pairPred := results[1]
	require.Equal(t, []int{b, n, n, cfg.NumBucketsPredictPair}, pairPred.Shape().Dimensions)
}

func TestForwardWithRegisters(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	cfg := testConfig()
	cfg.NumRegisters = 4
	require.NoError(t, cfg.Validate())
	b, n := 2, 10

	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, xt, diffT, mask *Node) []*Node {
		out := Forward(ctx, cfg, &features.Batch{XT: xt, T: diffT, Mask: mask})
		return []*Node{out.CoorsPred, out.PairPred}
	})

	xt, diffT, mask := testBatchInputs(b, n)
	results := exec.Call(xt, diffT, mask)

	// Registers never leak into the outputs.
	require.Equal(t, []int{b, n, 3}, results[0].Shape().Dimensions)
	require.Equal(t, []int{b, n, n, cfg.NumBucketsPredictPair}, results[1].Shape().Dimensions)

	values := results[0].Value().([][][]float32)
	for j := n - 3; j < n; j++ {
		for k := 0; k < 3; k++ {
			assert.Zero(t, values[1][j][k])
		}
	}
}

func TestForwardWithoutPairBias(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	cfg := testConfig()
	cfg.UseAttnPairBias = false
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.UpdatePairRepr)
	b, n := 2, 10

	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, xt, diffT, mask *Node) *Node {
		out := Forward(ctx, cfg, &features.Batch{XT: xt, T: diffT, Mask: mask})
		require.Nil(t, out.PairPred)
		return out.CoorsPred
	})

	xt, diffT, mask := testBatchInputs(b, n)
	coors := exec.Call(xt, diffT, mask)[0]
	require.Equal(t, []int{b, n, 3}, coors.Shape().Dimensions)
}

func TestApproxFLOPs(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())
	withBias := cfg.ApproxFLOPs(2, 64)
	assert.Positive(t, withBias)

	// More layers cost proportionally more.
	cfg2 := testConfig()
	cfg2.NLayers = 6
	require.NoError(t, cfg2.Validate())
	assert.Equal(t, 2*withBias, cfg2.ApproxFLOPs(2, 64))

	// Dropping the pair bias makes the estimate strictly cheaper.
	cfg3 := testConfig()
	cfg3.UseAttnPairBias = false
	require.NoError(t, cfg3.Validate())
	assert.Less(t, cfg3.ApproxFLOPs(2, 64), withBias)
}
