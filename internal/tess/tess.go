// Package tess triangulates filled outlines.
//
// Fill uses a band (trapezoidal) decomposition: the plane is cut into
// horizontal bands at every vertex and every edge crossing, so inside a
// band no two edges intersect and the covered spans are exact trapezoids.
// Self-intersecting outlines and both fill rules fall out of the same walk.
//
// The triangles never overlap. A translucent fill therefore blends every
// covered sample exactly once, and shared trapezoid edges use identical
// coordinates so no seams appear under multisampling.
package tess

import (
	"math"
	"slices"
	"sort"

	"github.com/gogpu/stage/internal/path"
)

// FillRule selects which winding numbers are inside.
type FillRule uint8

const (
	// NonZero fills regions with a non-zero winding number.
	NonZero FillRule = iota
	// EvenOdd fills regions with an odd winding number.
	EvenOdd
)

// String returns the rule name.
func (r FillRule) String() string {
	if r == EvenOdd {
		return "evenodd"
	}
	return "nonzero"
}

func (r FillRule) inside(w int) bool {
	if r == EvenOdd {
		return w&1 != 0
	}
	return w != 0
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []path.Point
	Indices  []uint32
}

// Empty reports whether the mesh has no triangles.
func (m *Mesh) Empty() bool { return len(m.Indices) == 0 }

const (
	// eps is the smallest band height worth splitting at.
	eps = 1e-6
	// maxSplits bounds crossing refinement per band so numerically
	// hostile input terminates.
	maxSplits = 1 << 12
)

type edge struct {
	x0, y0 float64 // top
	x1, y1 float64 // bottom
	dir    int     // +1 when the contour runs downward
}

func (e *edge) xAt(y float64) float64 {
	if y <= e.y0 {
		return e.x0
	}
	if y >= e.y1 {
		return e.x1
	}
	return e.x0 + (e.x1-e.x0)*(y-e.y0)/(e.y1-e.y0)
}

type span struct {
	e      *edge
	xt, xb float64 // x at band top and bottom
}

// Fill triangulates closed contours under rule. Open contours are closed
// implicitly.
func Fill(contours []path.Contour, rule FillRule) Mesh {
	var edges []*edge
	var ys []float64
	for _, c := range contours {
		n := len(c.Points)
		if n < 3 {
			continue
		}
		for i := range n {
			a, b := c.Points[i], c.Points[(i+1)%n]
			ys = append(ys, float64(a.Y))
			if a.Y == b.Y {
				continue
			}
			e := &edge{x0: float64(a.X), y0: float64(a.Y), x1: float64(b.X), y1: float64(b.Y), dir: 1}
			if e.y0 > e.y1 {
				e.x0, e.y0, e.x1, e.y1 = e.x1, e.y1, e.x0, e.y0
				e.dir = -1
			}
			edges = append(edges, e)
		}
	}
	if len(edges) == 0 {
		return Mesh{}
	}

	slices.Sort(ys)
	ys = slices.Compact(ys)
	sort.Slice(edges, func(i, j int) bool { return edges[i].y0 < edges[j].y0 })

	b := newBuilder()
	var active []*edge
	next := 0
	for i := 0; i+1 < len(ys); i++ {
		top, bottom := ys[i], ys[i+1]

		kept := active[:0]
		for _, e := range active {
			if e.y1 > top {
				kept = append(kept, e)
			}
		}
		active = kept
		for next < len(edges) && edges[next].y0 <= top {
			active = append(active, edges[next])
			next++
		}
		if len(active) < 2 {
			continue
		}
		b.band(active, top, bottom, rule)
	}
	return b.mesh
}

type builder struct {
	mesh  Mesh
	index map[path.Point]uint32
	spans []span
}

func newBuilder() *builder {
	return &builder{index: make(map[path.Point]uint32)}
}

// band emits the covered trapezoids between top and bottom, splitting at
// edge crossings first.
func (b *builder) band(active []*edge, top, bottom float64, rule FillRule) {
	for splits := 0; top < bottom; splits++ {
		b.spans = b.spans[:0]
		for _, e := range active {
			b.spans = append(b.spans, span{e: e, xt: e.xAt(top), xb: e.xAt(bottom)})
		}
		sort.SliceStable(b.spans, func(i, j int) bool {
			si, sj := &b.spans[i], &b.spans[j]
			if si.xt != sj.xt {
				return si.xt < sj.xt
			}
			return si.xb < sj.xb
		})

		cut := bottom
		if splits < maxSplits {
			for i := 0; i+1 < len(b.spans); i++ {
				l, r := &b.spans[i], &b.spans[i+1]
				if l.xb <= r.xb {
					continue
				}
				// l and r swap order inside the band.
				dl, dr := l.xb-l.xt, r.xb-r.xt
				if den := dl - dr; den != 0 {
					t := (r.xt - l.xt) / den
					if y := top + t*(bottom-top); y > top+eps && y < cut-eps {
						cut = y
					}
				}
			}
		}
		if cut < bottom {
			for i := range b.spans {
				b.spans[i].xb = b.spans[i].e.xAt(cut)
			}
		}
		b.emit(top, cut, rule)
		top = cut
	}
}

func (b *builder) emit(top, bottom float64, rule FillRule) {
	w := 0
	var left *span
	for i := range b.spans {
		s := &b.spans[i]
		was := rule.inside(w)
		w += s.e.dir
		now := rule.inside(w)
		switch {
		case !was && now:
			left = s
		case was && !now && left != nil:
			b.trapezoid(top, bottom, left.xt, left.xb, s.xt, s.xb)
			left = nil
		}
	}
}

func (b *builder) trapezoid(top, bottom, lt, lb, rt, rb float64) {
	if rt-lt <= 0 && rb-lb <= 0 {
		return
	}
	tl := b.vertex(lt, top)
	tr := b.vertex(rt, top)
	bl := b.vertex(lb, bottom)
	br := b.vertex(rb, bottom)

	switch {
	case tl == tr:
		b.mesh.Indices = append(b.mesh.Indices, tl, br, bl)
	case bl == br:
		b.mesh.Indices = append(b.mesh.Indices, tl, tr, bl)
	default:
		b.mesh.Indices = append(b.mesh.Indices, tl, tr, br, tl, br, bl)
	}
}

func (b *builder) vertex(x, y float64) uint32 {
	p := path.Point{X: float32(x), Y: float32(y)}
	if i, ok := b.index[p]; ok {
		return i
	}
	i := uint32(len(b.mesh.Vertices))
	b.mesh.Vertices = append(b.mesh.Vertices, p)
	b.index[p] = i
	return i
}

// Area returns the total triangle area of m, used by tests and stats.
func Area(m Mesh) float64 {
	var a float64
	for i := 0; i+2 < len(m.Indices); i += 3 {
		p0 := m.Vertices[m.Indices[i]]
		p1 := m.Vertices[m.Indices[i+1]]
		p2 := m.Vertices[m.Indices[i+2]]
		a += math.Abs(float64((p1.X-p0.X)*(p2.Y-p0.Y)-(p2.X-p0.X)*(p1.Y-p0.Y))) / 2
	}
	return a
}
