package trunk

// ApproxFLOPs estimates the floating point operations of one forward pass
// over a batch of the given size and sequence length. It counts the
// per-layer matrix multiplications of attention and transition, and the
// pair bias projection when enabled; pair updates, registers, and
// elementwise work are excluded. Useful for comparing configurations, not
// for exact accounting.
func (c *Config) ApproxFLOPs(batchSize, seqLen int) int64 {
	n := int64(seqLen)
	d := int64(c.TokenDim)

	// QKV projections and attention output projection.
	perLayer := 3*n*d*d + d*n*n + n*n + d*n*n
	// Gated transition: two expanding matmuls and one contracting one.
	perLayer += 2*n*d*(transitionExpansion*d) + n*(transitionExpansion*d)
	if c.UseAttnPairBias {
		perLayer += int64(c.PairReprDim+1) * n * n
	}
	return perLayer * int64(batchSize) * int64(c.NLayers)
}
