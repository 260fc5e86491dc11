// Package trunk implements the denoising network used inside a
// diffusion-based protein backbone generator: an AlphaFold3-style stack of
// adaptively-normalized, pair-biased attention and transition blocks over a
// per-residue ("seq") representation, with a per-residue-pair
// representation that biases attention and is periodically recomputed from
// the tokens.
//
// The network is expressed as gomlx computation graphs: Forward builds the
// graph for one forward pass, creating its learned parameters as variables
// scoped under the given context. All configuration is resolved once, before
// any graph is built, by Config.Validate; per-call branching is limited to
// the static plan that validation produced.
//
// Padded residue positions are structurally zeroed: every operation that can
// produce non-zero values at masked positions is followed by a re-mask. This
// is a correctness invariant of the architecture, not an optimization.
package trunk
