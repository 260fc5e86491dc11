package trunk

import (
	. "github.com/gomlx/gomlx/graph"
)

// ApplyMask zeroes x wherever mask is false. The mask's dimensions must
// match the leading dimensions of x; trailing axes of x are masked
// wholesale. Works for token tensors ([b, n, ...] with a [b, n] mask) and
// pair tensors ([b, n, n, ...] with a [b, n, n] mask) alike.
//
// ApplyMask is idempotent and produces exact zeros, which the trunk relies
// on: it is applied after every operation that could write non-zero values
// into padded positions.
func ApplyMask(x, mask *Node) *Node {
	m := ConvertDType(mask, x.DType())
	for m.Rank() < x.Rank() {
		m = InsertAxes(m, -1)
	}
	return Mul(x, m)
}

// PairwiseMask builds the [b, n, n] boolean mask of pairs whose both
// endpoints are valid, from the [b, n] token mask.
func PairwiseMask(mask *Node) *Node {
	return And(InsertAxes(mask, -1), InsertAxes(mask, 1))
}
