package features

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

const (
	// relPosMax clips the signed residue offset i-j; offsets beyond the
	// window share the boundary bucket.
	relPosMax = 32

	// Distogram radial basis: distogramBins Gaussians centered between
	// distogramMin and distogramMax Angstroms.
	distogramBins = 16
	distogramMin  = 2.0
	distogramMax  = 22.0
)

// RelativePositionDim is the raw width of the relative_position feature.
const RelativePositionDim = 2*relPosMax + 1

// relativePosition builds a one-hot encoding of the clipped signed offset
// between residue indices: [b, n, n, 2*relPosMax+1].
func relativePosition(b *Batch) *Node {
	g := b.Graph()
	n := b.NumResidues()
	rows := Iota(g, shapes.Make(dtypes.Int32, n, n), 0)
	cols := Iota(g, shapes.Make(dtypes.Int32, n, n), 1)
	offset := ClipScalar(Sub(rows, cols), -relPosMax, relPosMax)
	offset = AddScalar(offset, relPosMax)
	oneHot := OneHot(offset, RelativePositionDim, b.DType()) // [n, n, dim]
	oneHot = InsertAxes(oneHot, 0)
	return BroadcastToDims(oneHot, b.BatchSize(), n, n, RelativePositionDim)
}

// selfConditioning exposes the raw self-conditioning coordinates as a
// per-residue feature, or zeros when the batch carries none: [b, n, 3].
func selfConditioning(b *Batch) *Node {
	if b.XSC == nil {
		return Zeros(b.Graph(), shapes.Make(b.DType(), b.BatchSize(), b.NumResidues(), 3))
	}
	return b.XSC
}

// selfConditioningDistogram encodes pairwise distances of the
// self-conditioning coordinates with a Gaussian radial basis:
// [b, n, n, distogramBins]. Zeros when the batch carries no x_sc.
func selfConditioningDistogram(b *Batch) *Node {
	g := b.Graph()
	n := b.NumResidues()
	if b.XSC == nil {
		return Zeros(g, shapes.Make(b.DType(), b.BatchSize(), n, n, distogramBins))
	}
	delta := Sub(InsertAxes(b.XSC, 2), InsertAxes(b.XSC, 1)) // [b, n, n, 3]
	// Epsilon keeps the gradient of Sqrt finite on the diagonal.
	dist := Sqrt(AddScalar(ReduceSum(Square(delta), -1), 1e-10)) // [b, n, n]
	dist = InsertAxes(dist, -1)                                  // [b, n, n, 1]

	binWidth := (distogramMax - distogramMin) / float64(distogramBins-1)
	centers := IotaFull(g, shapes.Make(b.DType(), distogramBins))
	centers = AddScalar(MulScalar(centers, binWidth), distogramMin)
	centers = ExpandLeftToRank(centers, 4) // [1, 1, 1, bins]

	z := Sub(dist, centers)
	return Exp(MulScalar(Square(z), -1.0/(2.0*binWidth*binWidth)))
}
