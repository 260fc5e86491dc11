package features

import (
	"math"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/shapes"
)

const (
	// timeEmbedHalfDim is half the width of the sinusoidal time embedding;
	// half the channels carry sines, half cosines.
	timeEmbedHalfDim = 32

	timeEmbedMinFreq = 1.0
	timeEmbedMaxFreq = 1000.0

	// posEmbedHalfDim and its frequency range cover residue indices up to a
	// few thousand positions.
	posEmbedHalfDim = 32
	posEmbedMinFreq = 1e-4
	posEmbedMaxFreq = 1.0
)

// sinusoidalEmbedding embeds the values in x (last axis must have dimension
// 1) at geometrically spaced frequencies, returning 2*halfDim channels of
// sine/cosine pairs. This lets downstream layers resolve both coarse and
// fine ranges of the embedded signal.
func sinusoidalEmbedding(x *Node, halfDim int, minFreq, maxFreq float64) *Node {
	g := x.Graph()
	logMin, logMax := math.Log(minFreq), math.Log(maxFreq)
	frequencies := IotaFull(g, shapes.Make(x.DType(), halfDim))
	frequencies = AddScalar(
		MulScalar(frequencies, (logMax-logMin)/float64(halfDim-1)),
		logMin)
	frequencies = Exp(frequencies)
	angularSpeeds := MulScalar(frequencies, 2.0*math.Pi)
	angularSpeeds = ExpandLeftToRank(angularSpeeds, x.Rank())
	angles := Mul(angularSpeeds, x)
	return Concatenate([]*Node{Sin(angles), Cos(angles)}, -1)
}

// diffusionTimeSeq embeds the diffusion time t and broadcasts it to every
// residue position: [b, n, 2*timeEmbedHalfDim].
func diffusionTimeSeq(b *Batch) *Node {
	t := InsertAxes(b.T, -1, -1) // [b, 1, 1]
	embed := sinusoidalEmbedding(t, timeEmbedHalfDim, timeEmbedMinFreq, timeEmbedMaxFreq)
	return BroadcastToDims(embed, b.BatchSize(), b.NumResidues(), 2*timeEmbedHalfDim)
}

// diffusionTimePair is the pair-mode variant of diffusionTimeSeq, broadcast
// to every residue pair: [b, n, n, 2*timeEmbedHalfDim].
func diffusionTimePair(b *Batch) *Node {
	t := InsertAxes(b.T, -1, -1, -1) // [b, 1, 1, 1]
	embed := sinusoidalEmbedding(t, timeEmbedHalfDim, timeEmbedMinFreq, timeEmbedMaxFreq)
	n := b.NumResidues()
	return BroadcastToDims(embed, b.BatchSize(), n, n, 2*timeEmbedHalfDim)
}

// residueIndex embeds the position of each residue in the chain:
// [b, n, 2*posEmbedHalfDim].
func residueIndex(b *Batch) *Node {
	g := b.Graph()
	idx := Iota(g, shapes.Make(b.DType(), b.BatchSize(), b.NumResidues(), 1), 1)
	return sinusoidalEmbedding(idx, posEmbedHalfDim, posEmbedMinFreq, posEmbedMaxFreq)
}
