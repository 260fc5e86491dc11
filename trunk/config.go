package trunk

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config defines the architecture of the denoising trunk. The zero value is
// not usable; start from DefaultConfig and call Validate before building any
// graph. Validate also reconciles dependent options (see its documentation),
// so the flags observed by the network are the post-Validate ones.
type Config struct {
	// NLayers is the number of attention+transition blocks in the trunk.
	NLayers int

	// TokenDim is the width of the per-residue representation. Must be a
	// multiple of NHeads.
	TokenDim int

	// PairReprDim is the width of the per-residue-pair representation.
	PairReprDim int

	// DimCond is the width of the per-residue conditioning variables derived
	// from the diffusion time and auxiliary features.
	DimCond int

	// NHeads is the attention head count.
	NHeads int

	// UseAttnPairBias enables the pair representation and pair-biased
	// attention. When false no pair tensor exists anywhere in the network
	// and UpdatePairRepr is forced off.
	UseAttnPairBias bool

	// ResidualMHA and ResidualTransition wire residual connections around
	// the attention and transition sub-paths of each block.
	ResidualMHA        bool
	ResidualTransition bool

	// ParallelMHATransition runs the two sub-paths of each block on the same
	// input and sums them, instead of feeding attention into the transition.
	// If both residual flags are set in parallel mode, ResidualTransition is
	// forced off so the block input is not summed twice.
	ParallelMHATransition bool

	// UseQKLN layer-normalizes queries and keys inside attention.
	UseQKLN bool

	// UpdatePairRepr recomputes the pair representation from the tokens
	// every UpdatePairReprEveryN blocks (never after the last block).
	UpdatePairRepr       bool
	UpdatePairReprEveryN int

	// UseTriMult adds triangular multiplicative refinement (outgoing then
	// incoming) to each pair update. O(n^3) compute.
	UseTriMult bool

	// NumRegisters prepends this many learned register tokens to every
	// batch element before the trunk and strips them after. 0 disables
	// register augmentation entirely.
	NumRegisters int

	// NumBucketsPredictPair, when positive, adds an auxiliary head
	// predicting pairwise distance-bucket logits from the final pair
	// representation. Requires UpdatePairRepr.
	NumBucketsPredictPair int

	// Feature lists forwarded to the feature factory, by name.
	FeatsInitSeq  []string
	FeatsCondSeq  []string
	FeatsPairRepr []string
	FeatsPairCond []string

	// DType of all floating point tensors. Defaults to Float32.
	DType dtypes.DType
}

// DefaultConfig returns a moderately sized configuration with pair bias,
// periodic pair updates and sequential block wiring.
func DefaultConfig() *Config {
	return &Config{
		NLayers:               8,
		TokenDim:              256,
		PairReprDim:           128,
		DimCond:               256,
		NHeads:                8,
		UseAttnPairBias:       true,
		ResidualMHA:           true,
		ResidualTransition:    true,
		ParallelMHATransition: false,
		UpdatePairRepr:        true,
		UpdatePairReprEveryN:  2,
		FeatsInitSeq:          []string{"residue_index"},
		FeatsCondSeq:          []string{"diffusion_time"},
		FeatsPairRepr:         []string{"relative_position"},
		DType:                 dtypes.Float32,
	}
}

// Validate reconciles dependent options and checks the configuration,
// mutating the receiver. It must be called (successfully) once before
// Forward; calling it again is a no-op. Reconciliations applied:
//
//   - no pair bias: pair updates, triangular refinement and the distance
//     bucket head are forced off;
//   - no pair updates: triangular refinement and the bucket head are forced
//     off;
//   - parallel wiring with both residuals: the transition residual is
//     dropped;
//   - unset UpdatePairReprEveryN defaults to 2, unset DType to Float32,
//     negative NumRegisters to 0.
func (c *Config) Validate() error {
	if c.DType == dtypes.InvalidDType {
		c.DType = dtypes.Float32
	}
	if c.UpdatePairReprEveryN == 0 {
		c.UpdatePairReprEveryN = 2
	}
	if c.NumRegisters < 0 {
		c.NumRegisters = 0
	}
	if !c.UseAttnPairBias && c.UpdatePairRepr {
		klog.Warningf("trunk.Config: UpdatePairRepr requested without UseAttnPairBias; disabling pair updates")
		c.UpdatePairRepr = false
	}
	if !c.UpdatePairRepr {
		c.UseTriMult = false
		if c.NumBucketsPredictPair > 0 {
			klog.Warningf("trunk.Config: NumBucketsPredictPair requires UpdatePairRepr; disabling the pair prediction head")
			c.NumBucketsPredictPair = 0
		}
	}
	if c.ParallelMHATransition && c.ResidualMHA && c.ResidualTransition {
		klog.V(1).Infof("trunk.Config: both sub-paths residual under parallel wiring; dropping the transition residual")
		c.ResidualTransition = false
	}

	if c.NLayers <= 0 {
		return errors.Errorf("trunk.Config: NLayers must be positive, got %d", c.NLayers)
	}
	if c.TokenDim <= 0 || c.DimCond <= 0 {
		return errors.Errorf("trunk.Config: TokenDim (%d) and DimCond (%d) must be positive", c.TokenDim, c.DimCond)
	}
	if c.NHeads <= 0 || c.TokenDim%c.NHeads != 0 {
		return errors.Errorf("trunk.Config: TokenDim (%d) must be a positive multiple of NHeads (%d)", c.TokenDim, c.NHeads)
	}
	if c.UseAttnPairBias && c.PairReprDim <= 0 {
		return errors.Errorf("trunk.Config: PairReprDim must be positive with UseAttnPairBias, got %d", c.PairReprDim)
	}
	if c.UpdatePairReprEveryN < 1 {
		return errors.Errorf("trunk.Config: UpdatePairReprEveryN must be >= 1, got %d", c.UpdatePairReprEveryN)
	}
	if c.NumBucketsPredictPair < 0 {
		return errors.Errorf("trunk.Config: NumBucketsPredictPair must be >= 0, got %d", c.NumBucketsPredictPair)
	}
	return nil
}

// PairUpdateAt reports whether the pair representation is recomputed after
// block i. Updates never fire after the last block.
func (c *Config) PairUpdateAt(i int) bool {
	return c.UpdatePairRepr && i < c.NLayers-1 && i%c.UpdatePairReprEveryN == 0
}

func (c *Config) headDim() int { return c.TokenDim / c.NHeads }
