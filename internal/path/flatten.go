// Package path flattens shape outlines into polylines.
//
// Flattening happens once per shape in shape units, at a fixed tolerance.
// The result is independent of the transform the shape is later drawn
// with, so a zoom never invalidates a cached mesh.
package path

import "github.com/chewxy/math32"

// DefaultTolerance is the maximum distance between a curve and its
// flattened polyline, in shape units.
const DefaultTolerance = 0.1

// maxDepth bounds curve subdivision. 2^16 segments per curve is far more
// than any tolerance needs; the bound only stops degenerate input.
const maxDepth = 16

// Point is a 2D point in shape units.
type Point struct {
	X, Y float32
}

// Op identifies a path element.
type Op uint8

// Path element kinds.
const (
	MoveTo Op = iota
	LineTo
	QuadTo
	CubicTo
	Close
)

// Element is one path command. P holds up to three points: the end point
// for MoveTo/LineTo, control then end for QuadTo, and two controls then
// end for CubicTo.
type Element struct {
	Op Op
	P  [3]Point
}

// Contour is a flattened subpath.
type Contour struct {
	Points []Point
	Closed bool
}

// Flatten converts elements into polylines. Consecutive duplicate points
// are dropped; subpaths with fewer than two distinct points are dropped.
func Flatten(elements []Element, tolerance float32) []Contour {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	var (
		contours []Contour
		cur      []Point
		current  Point
	)
	flush := func(closed bool) {
		if len(cur) >= 2 {
			if closed && cur[0] == cur[len(cur)-1] {
				cur = cur[:len(cur)-1]
			}
			if len(cur) >= 2 {
				contours = append(contours, Contour{Points: cur, Closed: closed})
			}
		}
		cur = nil
	}
	push := func(p Point) {
		if n := len(cur); n > 0 && cur[n-1] == p {
			return
		}
		cur = append(cur, p)
	}

	for _, e := range elements {
		switch e.Op {
		case MoveTo:
			flush(false)
			current = e.P[0]
			push(current)
		case LineTo:
			if len(cur) == 0 {
				push(current)
			}
			current = e.P[0]
			push(current)
		case QuadTo:
			if len(cur) == 0 {
				push(current)
			}
			flattenQuad(current, e.P[0], e.P[1], tolerance, 0, push)
			current = e.P[1]
		case CubicTo:
			if len(cur) == 0 {
				push(current)
			}
			flattenCubic(current, e.P[0], e.P[1], e.P[2], tolerance, 0, push)
			current = e.P[2]
		case Close:
			start := current
			if len(cur) > 0 {
				start = cur[0]
			}
			flush(true)
			current = start
		}
	}
	flush(false)
	return contours
}

func (p Point) lerp(q Point, t float32) Point {
	return Point{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

// flattenQuad recursively subdivides a quadratic Bezier curve and emits
// every end point except p0.
func flattenQuad(p0, p1, p2 Point, tolerance float32, depth int, emit func(Point)) {
	if depth >= maxDepth || distanceToLine(p1, p0, p2) <= tolerance {
		emit(p2)
		return
	}

	q0 := p0.lerp(p1, 0.5)
	q1 := p1.lerp(p2, 0.5)
	q2 := q0.lerp(q1, 0.5)

	flattenQuad(p0, q0, q2, tolerance, depth+1, emit)
	flattenQuad(q2, q1, p2, tolerance, depth+1, emit)
}

// flattenCubic recursively subdivides a cubic Bezier curve using de
// Casteljau's algorithm and emits every end point except p0.
func flattenCubic(p0, p1, p2, p3 Point, tolerance float32, depth int, emit func(Point)) {
	d := math32.Max(distanceToLine(p1, p0, p3), distanceToLine(p2, p0, p3))
	if depth >= maxDepth || d <= tolerance {
		emit(p3)
		return
	}

	q0 := p0.lerp(p1, 0.5)
	q1 := p1.lerp(p2, 0.5)
	q2 := p2.lerp(p3, 0.5)
	r0 := q0.lerp(q1, 0.5)
	r1 := q1.lerp(q2, 0.5)
	s := r0.lerp(r1, 0.5)

	flattenCubic(p0, q0, r0, s, tolerance, depth+1, emit)
	flattenCubic(s, r1, q2, p3, tolerance, depth+1, emit)
}

// distanceToLine returns the distance from p to segment (a, b).
func distanceToLine(p, a, b Point) float32 {
	abx, aby := b.X-a.X, b.Y-a.Y
	lenSq := abx*abx + aby*aby
	if lenSq < 1e-12 {
		return math32.Hypot(p.X-a.X, p.Y-a.Y)
	}

	t := ((p.X-a.X)*abx + (p.Y-a.Y)*aby) / lenSq
	switch {
	case t < 0:
		return math32.Hypot(p.X-a.X, p.Y-a.Y)
	case t > 1:
		return math32.Hypot(p.X-b.X, p.Y-b.Y)
	}
	return math32.Hypot(p.X-(a.X+abx*t), p.Y-(a.Y+aby*t))
}
