// trunkdemo runs the denoising trunk on synthetic data: it samples random
// noisy coordinates, then iteratively refines them toward the model's
// predicted clean coordinates, reporting shapes and the estimated FLOPs.
// The model is randomly initialized, so the output is only useful to
// exercise the full forward pass end to end.
//
// Select the computation backend with the GOMLX_BACKEND environment
// variable (e.g. "go" for the pure Go backend).
package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/Oxer11/proteina/features"
	"github.com/Oxer11/proteina/trunk"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/simplego"

	. "github.com/gomlx/gomlx/graph"
)

var (
	flagBatchSize   = flag.Int("batch", 2, "Batch size.")
	flagNumResidues = flag.Int("residues", 48, "Number of residues per protein.")
	flagNumLayers   = flag.Int("layers", 4, "Number of trunk blocks.")
	flagNumSteps    = flag.Int("steps", 20, "Denoising steps.")
	flagRegisters   = flag.Int("registers", 0, "Number of register tokens.")
	flagSeed        = flag.Int64("seed", 42, "Random seed for the synthetic inputs.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg := trunk.DefaultConfig()
	cfg.NLayers = *flagNumLayers
	cfg.TokenDim = 128
	cfg.PairReprDim = 64
	cfg.DimCond = 128
	cfg.NumRegisters = *flagRegisters
	cfg.FeatsCondSeq = []string{"diffusion_time"}
	must.M(cfg.Validate())

	backend := backends.MustNew()
	fmt.Printf("Backend: %s\n", backend.Description())
	fmt.Printf("Estimated FLOPs per forward pass: %s\n",
		humanize.Comma(cfg.ApproxFLOPs(*flagBatchSize, *flagNumResidues)))

	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, xt, diffT, mask *Node) *Node {
		batch := &features.Batch{XT: xt, T: diffT, Mask: mask}
		return trunk.Forward(ctx, cfg, batch).CoorsPred
	})

	b, n := *flagBatchSize, *flagNumResidues
	rng := rand.New(rand.NewSource(*flagSeed))
	coords := make([][][]float32, b)
	for i := range coords {
		coords[i] = make([][]float32, n)
		for j := range coords[i] {
			coords[i][j] = []float32{
				float32(rng.NormFloat64()),
				float32(rng.NormFloat64()),
				float32(rng.NormFloat64()),
			}
		}
	}
	mask := make([][]bool, b)
	for i := range mask {
		mask[i] = make([]bool, n)
		for j := range mask[i] {
			mask[i][j] = true
		}
	}

	// Naive denoising: at each step predict clean coordinates at the
	// current time and move a fraction of the way toward them.
	steps := *flagNumSteps
	bar := progressbar.Default(int64(steps), "denoising")
	diffT := make([]float32, b)
	for step := 0; step < steps; step++ {
		tValue := 1.0 - float32(step)/float32(steps)
		for i := range diffT {
			diffT[i] = tValue
		}
		pred := exec.Call(coords, diffT, mask)[0].Value().([][][]float32)
		frac := 1.0 / float32(steps-step)
		for i := range coords {
			for j := range coords[i] {
				for k := range coords[i][j] {
					coords[i][j][k] += frac * (pred[i][j][k] - coords[i][j][k])
				}
			}
		}
		must.M(bar.Add(1))
	}
	must.M(bar.Finish())

	fmt.Printf("Generated %d backbones of %d residues each.\n", b, n)
	fmt.Printf("First residue of first sample: %v\n", coords[0][0])
}
