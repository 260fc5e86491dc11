// Package features builds the dense per-residue ("seq") and per-residue-pair
// ("pair") feature tensors consumed by the denoising trunk.
//
// A Factory is configured once with a list of named features, an output
// dimension and a mode; at graph-building time it concatenates the raw
// feature tensors, projects them to the output dimension and optionally
// layer-normalizes the result. An empty feature list yields a zero tensor of
// the right shape, so a network can be configured with no features at all.
package features

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gopjrt/dtypes"
)

// Batch holds the input tensors of one forward pass. All tensors share the
// batch dimension b and the residue dimension n.
type Batch struct {
	// XT are the current (possibly noisy) coordinates, shaped [b, n, 3].
	XT *Node

	// T is the diffusion time, shaped [b], values in [0, 1].
	T *Node

	// Mask is the valid-residue indicator, shaped [b, n], dtype Bool.
	Mask *Node

	// XSC are optional self-conditioning coordinates, shaped [b, n, 3].
	// May be nil, in which case features derived from it are zero.
	XSC *Node

	// Extra holds additional named tensors consumed opaquely by features.
	Extra map[string]*Node
}

// BatchSize returns b.
func (b *Batch) BatchSize() int { return b.XT.Shape().Dimensions[0] }

// NumResidues returns n.
func (b *Batch) NumResidues() int { return b.XT.Shape().Dimensions[1] }

// DType returns the floating point dtype of the batch tensors.
func (b *Batch) DType() dtypes.DType { return b.XT.DType() }

// Graph returns the computation graph the batch tensors belong to.
func (b *Batch) Graph() *Graph { return b.XT.Graph() }

// Mode selects whether a factory builds per-residue or per-residue-pair
// tensors.
type Mode int

const (
	// ModeSeq builds tensors shaped [b, n, dim].
	ModeSeq Mode = iota

	// ModePair builds tensors shaped [b, n, n, dim].
	ModePair
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeSeq:
		return "seq"
	case ModePair:
		return "pair"
	}
	return "invalid"
}
