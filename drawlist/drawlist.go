package drawlist

import (
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/stage/pipeline"
	"github.com/gogpu/stage/render"
)

// DrawCommand is one draw of a frame.
type DrawCommand struct {
	Key        pipeline.Key
	Pipeline   render.PipelineHandle
	Vertices   render.BufferRange
	Indices    render.BufferRange
	IndexCount int
	Uniforms   render.BufferRange
	Textures   [2]render.TextureBinding
	// Scissor limits the draw in target pixels when non-empty.
	Scissor image.Rectangle
}

// Draw returns the device form of c.
func (c *DrawCommand) Draw() render.Draw {
	return render.Draw{
		Pipeline:   c.Pipeline,
		Vertices:   c.Vertices,
		Indices:    c.Indices,
		IndexCount: c.IndexCount,
		Uniforms:   c.Uniforms,
		Textures:   c.Textures,
		Scissor:    c.Scissor,
	}
}

// Target is the texture a pass renders into.
type Target struct {
	Texture render.TextureHandle
	Width   int
	Height  int
	Format  render.TextureFormat
	Samples int
}

// Bounds returns the target rectangle.
func (t Target) Bounds() image.Rectangle {
	return image.Rect(0, 0, t.Width, t.Height)
}

// RenderPass is a render pass or a copy pass of a frame.
type RenderPass struct {
	Label    string
	Target   Target
	Load     render.LoadOp
	Clear    [4]float32
	Commands []DrawCommand
	// Copy makes the pass a copy into Target.
	Copy *render.Copy

	id   int
	deps []int
}

// ID returns the insertion index of the pass in its graph.
func (p *RenderPass) ID() int { return p.id }

// Add appends a command.
func (p *RenderPass) Add(c DrawCommand) {
	p.Commands = append(p.Commands, c)
}

// Pass returns the device form of p.
func (p *RenderPass) Pass() render.Pass {
	out := render.Pass{
		Label:   p.Label,
		Target:  p.Target.Texture,
		Copy:    p.Copy,
		Load:    p.Load,
		Clear:   p.Clear,
		Samples: p.Target.Samples,
	}
	if p.Copy == nil && len(p.Commands) > 0 {
		out.Draws = make([]render.Draw, len(p.Commands))
		for i := range p.Commands {
			out.Draws[i] = p.Commands[i].Draw()
		}
	}
	return out
}

// Graph is the pass DAG of one frame.
type Graph struct {
	passes []*RenderPass
}

// Pass appends a render pass into target.
func (g *Graph) Pass(label string, target Target, load render.LoadOp, color [4]float32) *RenderPass {
	p := &RenderPass{Label: label, Target: target, Load: load, Clear: color, id: len(g.passes)}
	g.passes = append(g.passes, p)
	return p
}

// CopyPass appends a pass copying src of source into target at dst.
func (g *Graph) CopyPass(label string, source render.TextureHandle, src image.Rectangle, target Target, dst image.Point) *RenderPass {
	p := &RenderPass{
		Label:  label,
		Target: target,
		Load:   render.LoadKeep,
		Copy:   &render.Copy{Source: source, Src: src, DstPoint: dst},
		id:     len(g.passes),
	}
	g.passes = append(g.passes, p)
	return p
}

// After orders p after every pass in deps. Nil entries are ignored.
func (g *Graph) After(p *RenderPass, deps ...*RenderPass) {
	for _, d := range deps {
		if d == nil || d == p || slices.Contains(p.deps, d.id) {
			continue
		}
		p.deps = append(p.deps, d.id)
	}
}

// Len returns the number of passes.
func (g *Graph) Len() int { return len(g.passes) }

// Passes returns the passes in insertion order.
func (g *Graph) Passes() []*RenderPass { return g.passes }

// Reset drops every pass.
func (g *Graph) Reset() {
	clear(g.passes)
	g.passes = g.passes[:0]
}

// Sort returns the passes in dependency order. Among passes whose
// dependencies are met, the earliest inserted runs first, so a graph
// without edges keeps insertion order.
func (g *Graph) Sort() ([]*RenderPass, error) {
	n := len(g.passes)
	indegree := make([]int, n)
	next := make([][]int, n)
	for _, p := range g.passes {
		for _, d := range p.deps {
			if d < 0 || d >= n {
				return nil, fmt.Errorf("drawlist: pass %q depends on unknown pass %d", p.Label, d)
			}
			indegree[p.id]++
			next[d] = append(next[d], p.id)
		}
	}

	var ready []int
	for i, deg := range indegree {
		if deg == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]*RenderPass, 0, n)
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, g.passes[id])
		for _, m := range next[id] {
			indegree[m]--
			if indegree[m] == 0 {
				i, _ := slices.BinarySearch(ready, m)
				ready = slices.Insert(ready, i, m)
			}
		}
	}

	if len(order) < n {
		cerr := &CycleError{}
		for i, deg := range indegree {
			if deg > 0 {
				cerr.Passes = append(cerr.Passes, g.passes[i].Label)
			}
		}
		return nil, cerr
	}
	return order, nil
}

// Encode sorts the graph and converts it to device passes.
func (g *Graph) Encode() ([]render.Pass, error) {
	order, err := g.Sort()
	if err != nil {
		return nil, err
	}
	out := make([]render.Pass, len(order))
	for i, p := range order {
		out[i] = p.Pass()
	}
	return out, nil
}

// Draws returns the number of draw commands in the graph.
func (g *Graph) Draws() int {
	n := 0
	for _, p := range g.passes {
		n += len(p.Commands)
	}
	return n
}
