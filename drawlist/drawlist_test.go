package drawlist

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/stage/render"
)

func labels(ps []*RenderPass) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Label
	}
	return out
}

func TestSortKeepsInsertionOrder(t *testing.T) {
	var g Graph
	for _, l := range []string{"a", "b", "c"} {
		g.Pass(l, Target{}, render.LoadKeep, [4]float32{})
	}
	order, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, labels(order))
}

func TestSortHonorsEdges(t *testing.T) {
	var g Graph
	root := g.Pass("root", Target{}, render.LoadClear, [4]float32{})
	composite := g.Pass("composite", Target{}, render.LoadKeep, [4]float32{})
	content := g.Pass("content", Target{}, render.LoadClear, [4]float32{})
	blur := g.Pass("blur", Target{}, render.LoadClear, [4]float32{})
	g.After(composite, root, blur)
	g.After(blur, content)

	order, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "content", "blur", "composite"}, labels(order))
}

func TestSortTieBreak(t *testing.T) {
	var g Graph
	a := g.Pass("a", Target{}, render.LoadClear, [4]float32{})
	b := g.Pass("b", Target{}, render.LoadClear, [4]float32{})
	c := g.Pass("c", Target{}, render.LoadClear, [4]float32{})
	d := g.Pass("d", Target{}, render.LoadClear, [4]float32{})
	g.After(a, d)
	g.After(b, d)
	g.After(c, a, a, nil)

	order, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a", "b", "c"}, labels(order))
}

func TestSortCycle(t *testing.T) {
	var g Graph
	a := g.Pass("a", Target{}, render.LoadClear, [4]float32{})
	b := g.Pass("b", Target{}, render.LoadClear, [4]float32{})
	g.Pass("c", Target{}, render.LoadClear, [4]float32{})
	g.After(a, b)
	g.After(b, a)

	_, err := g.Sort()
	require.ErrorIs(t, err, ErrCycle)
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"a", "b"}, cerr.Passes)

	_, err = g.Encode()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestEncode(t *testing.T) {
	var g Graph
	target := Target{Texture: 7, Width: 10, Height: 10, Format: render.FormatRGBA8, Samples: 4}
	p := g.Pass("main", target, render.LoadClear, [4]float32{0, 0, 0, 1})
	p.Add(DrawCommand{Pipeline: 3, IndexCount: 6, Scissor: image.Rect(0, 0, 5, 5)})
	p.Add(DrawCommand{Pipeline: 4, IndexCount: 3})
	cp := g.CopyPass("backdrop", 7, image.Rect(2, 2, 6, 6), Target{Texture: 9, Width: 4, Height: 4}, image.Point{})
	g.After(cp, p)

	passes, err := g.Encode()
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, render.TextureHandle(7), passes[0].Target)
	assert.Equal(t, 4, passes[0].Samples)
	require.Len(t, passes[0].Draws, 2)
	assert.Equal(t, render.PipelineHandle(3), passes[0].Draws[0].Pipeline)
	assert.Equal(t, image.Rect(0, 0, 5, 5), passes[0].Draws[0].Scissor)
	require.NotNil(t, passes[1].Copy)
	assert.Equal(t, render.TextureHandle(7), passes[1].Copy.Source)
	assert.Nil(t, passes[1].Draws)
	assert.Equal(t, 2, g.Draws())
	assert.Equal(t, 1, cp.ID())

	g.Reset()
	assert.Equal(t, 0, g.Len())
}
