package trunk

import (
	"testing"

	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/stretchr/testify/assert"

	. "github.com/gomlx/gomlx/graph"
	_ "github.com/gomlx/gomlx/backends/simplego"
)

func TestApplyMask(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	x := [][][]float32{
		{{1, 2}, {3, 4}, {5, 6}},
		{{7, 8}, {9, 10}, {11, 12}},
	}
	mask := [][]bool{
		{true, false, true},
		{false, true, true},
	}
	want := [][][]float32{
		{{1, 2}, {0, 0}, {5, 6}},
		{{0, 0}, {9, 10}, {11, 12}},
	}

	got := ExecOnce(backend, func(x, mask *Node) *Node {
		return ApplyMask(x, mask)
	}, x, mask)
	assert.Equal(t, want, got.Value())

	// Masking twice changes nothing and the zeros are exact.
	gotTwice := ExecOnce(backend, func(x, mask *Node) *Node {
		return ApplyMask(ApplyMask(x, mask), mask)
	}, x, mask)
	assert.Equal(t, want, gotTwice.Value())
}

func TestPairwiseMask(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	mask := [][]bool{{true, true, false}}
	want := [][][]bool{{
		{true, true, false},
		{true, true, false},
		{false, false, false},
	}}
	got := ExecOnce(backend, func(mask *Node) *Node {
		return PairwiseMask(mask)
	}, mask)
	assert.Equal(t, want, got.Value())
}
