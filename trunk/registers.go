package trunk

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"

	. "github.com/gomlx/gomlx/graph"
)

// registerInitStdDev matches the original randn/20 initialization of the
// register tokens.
const registerInitStdDev = 0.05

// extendWithRegisters prepends cfg.NumRegisters learned register tokens to
// the token tensor, broadcast identically to every batch element, and
// extends the other per-forward tensors consistently: the mask with true
// (registers are always valid), the pair tensor with zeros on both leading
// edges (registers start with no pairwise bias to anything, including each
// other), and the conditioning with zeros (registers receive no conditioning
// signal). pair may be nil and stays nil.
//
// With NumRegisters == 0 the inputs are returned unchanged.
func extendWithRegisters(ctx *context.Context, cfg *Config, seqs, pair, mask, cond *Node) (*Node, *Node, *Node, *Node) {
	r := cfg.NumRegisters
	if r == 0 {
		return seqs, pair, mask, cond
	}
	g := seqs.Graph()
	b := seqs.Shape().Dimensions[0]
	n := seqs.Shape().Dimensions[1]
	dtype := seqs.DType()

	registers := ctx.In("registers").
		WithInitializer(initializers.RandomNormalFn(ctx, registerInitStdDev)).
		VariableWithShape("tokens", shapes.Make(dtype, r, cfg.TokenDim)).
		ValueGraph(g)
	registers = BroadcastToDims(InsertAxes(registers, 0), b, r, cfg.TokenDim)
	seqs = Concatenate([]*Node{registers, seqs}, 1)

	alwaysValid := ConvertDType(Ones(g, shapes.Make(dtype, b, r)), dtypes.Bool)
	mask = Concatenate([]*Node{alwaysValid, mask}, 1)

	if pair != nil {
		padTop := Zeros(g, shapes.Make(dtype, b, r, n, cfg.PairReprDim))
		pair = Concatenate([]*Node{padTop, pair}, 1)
		padLeft := Zeros(g, shapes.Make(dtype, b, r+n, r, cfg.PairReprDim))
		pair = Concatenate([]*Node{padLeft, pair}, 2)
	}

	condPad := Zeros(g, shapes.Make(dtype, b, r, cfg.DimCond))
	cond = Concatenate([]*Node{condPad, cond}, 1)
	return seqs, pair, mask, cond
}

// undoRegisters strips the first cfg.NumRegisters positions from the token
// tensor, from both pair dimensions, and from the mask, restoring the
// batch-visible shapes. Must be called exactly once per forward pass,
// symmetric with extendWithRegisters.
func undoRegisters(cfg *Config, seqs, pair, mask *Node) (*Node, *Node, *Node) {
	r := cfg.NumRegisters
	if r == 0 {
		return seqs, pair, mask
	}
	seqs = Slice(seqs, AxisRange(), AxisRange(r), AxisRange())
	if pair != nil {
		pair = Slice(pair, AxisRange(), AxisRange(r), AxisRange(r), AxisRange())
	}
	mask = Slice(mask, AxisRange(), AxisRange(r))
	return seqs, pair, mask
}
