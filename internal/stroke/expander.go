package stroke

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/stage/internal/path"
)

// Vec2 represents a 2D vector.
type Vec2 struct {
	X, Y float32
}

func sub(p, q path.Point) Vec2 {
	return Vec2{X: p.X - q.X, Y: p.Y - q.Y}
}

func add(p path.Point, v Vec2) path.Point {
	return path.Point{X: p.X + v.X, Y: p.Y + v.Y}
}

// Scale returns the vector scaled by s.
func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Neg returns the negated vector.
func (v Vec2) Neg() Vec2 {
	return Vec2{X: -v.X, Y: -v.Y}
}

// Dot returns the dot product of two vectors.
func (v Vec2) Dot(w Vec2) float32 {
	return v.X*w.X + v.Y*w.Y
}

// Cross returns the 2D cross product (z-component of 3D cross).
func (v Vec2) Cross(w Vec2) float32 {
	return v.X*w.Y - v.Y*w.X
}

// Length returns the length of the vector.
func (v Vec2) Length() float32 {
	return math32.Hypot(v.X, v.Y)
}

// Perp returns the perpendicular vector (rotated 90 degrees counter-clockwise).
func (v Vec2) Perp() Vec2 {
	return Vec2{X: -v.Y, Y: v.X}
}

// Angle returns the angle of the vector in radians.
func (v Vec2) Angle() float32 {
	return math32.Atan2(v.Y, v.X)
}

// LineCap specifies the shape of line endpoints.
type LineCap int

const (
	// LineCapButt specifies a flat line cap.
	LineCapButt LineCap = iota
	// LineCapRound specifies a rounded line cap.
	LineCapRound
	// LineCapSquare specifies a square line cap.
	LineCapSquare
)

// LineJoin specifies the shape of line joins.
type LineJoin int

const (
	// LineJoinMiter specifies a sharp (mitered) join.
	LineJoinMiter LineJoin = iota
	// LineJoinRound specifies a rounded join.
	LineJoinRound
	// LineJoinBevel specifies a beveled join.
	LineJoinBevel
)

// Style defines the style for stroke expansion.
type Style struct {
	Width      float32
	Cap        LineCap
	Join       LineJoin
	MiterLimit float32
}

// DefaultStyle returns a one unit wide stroke with round caps and joins.
func DefaultStyle() Style {
	return Style{
		Width:      1.0,
		Cap:        LineCapRound,
		Join:       LineJoinRound,
		MiterLimit: 3.0,
	}
}

// Expander converts flattened contours into closed outline polygons that
// cover the stroke when filled with the non-zero rule.
//
// An Expander is not safe for concurrent use; create one per goroutine.
type Expander struct {
	style Style

	// Maximum distance between a round join or cap and its polyline.
	tolerance float32

	forward  []path.Point
	backward []path.Point
	output   []path.Contour

	startPt   path.Point
	startNorm Vec2
	startTan  Vec2
	lastPt    path.Point
	lastTan   Vec2
	lastNorm  Vec2 // normal at lastPt scaled by the radius, used for the end cap

	// Joins with less angle change than this are skipped.
	joinThresh float32
}

// NewExpander creates a new stroke expander with the given style.
func NewExpander(style Style) *Expander {
	if style.MiterLimit <= 0 {
		style.MiterLimit = 3.0
	}
	return &Expander{
		style:     style,
		tolerance: path.DefaultTolerance,
	}
}

// SetTolerance sets the arc approximation tolerance.
func (e *Expander) SetTolerance(tolerance float32) {
	if tolerance > 0 {
		e.tolerance = tolerance
	}
}

// Expand converts flattened contours into stroke outline polygons.
// Every returned contour is closed.
func (e *Expander) Expand(contours []path.Contour) []path.Contour {
	e.output = nil
	if e.style.Width <= 0 {
		return nil
	}
	e.joinThresh = 2.0 * e.tolerance / e.style.Width

	for _, c := range contours {
		if len(c.Points) < 2 {
			continue
		}
		e.reset(c.Points[0])
		for _, p := range c.Points[1:] {
			e.lineTo(p)
		}
		if c.Closed {
			e.lineTo(e.startPt)
			e.finishClosed()
		} else {
			e.finish()
		}
	}
	return e.output
}

func (e *Expander) reset(start path.Point) {
	e.forward = nil
	e.backward = nil
	e.startPt = start
	e.startNorm = Vec2{}
	e.startTan = Vec2{}
	e.lastPt = start
	e.lastTan = Vec2{}
	e.lastNorm = Vec2{}
}

func (e *Expander) lineTo(p path.Point) {
	if p == e.lastPt {
		return
	}
	tangent := sub(p, e.lastPt)
	e.doJoin(tangent)
	e.lastTan = tangent
	e.doLine(tangent, p)
}

// doJoin handles joining the current segment to the previous one.
func (e *Expander) doJoin(tan0 Vec2) {
	scale := 0.5 * e.style.Width / tan0.Length()
	norm := tan0.Perp().Scale(scale)
	p0 := e.lastPt

	if len(e.forward) == 0 {
		e.forward = append(e.forward, add(p0, norm.Neg()))
		e.backward = append(e.backward, add(p0, norm))
		e.startTan = tan0
		e.startNorm = norm
		return
	}
	e.joinWithPrevious(p0, norm, tan0)
}

func (e *Expander) joinWithPrevious(p0 path.Point, norm, tan0 Vec2) {
	ab := e.lastTan
	cd := tan0
	cross := ab.Cross(cd)
	dot := ab.Dot(cd)
	hypot := math32.Hypot(cross, dot)

	// An insignificant angle change still needs both sides connected.
	if dot > 0.0 && math32.Abs(cross) < hypot*e.joinThresh {
		e.forward = append(e.forward, add(p0, norm.Neg()))
		e.backward = append(e.backward, add(p0, norm))
		return
	}

	switch e.style.Join {
	case LineJoinBevel:
		e.forward = append(e.forward, add(p0, norm.Neg()))
		e.backward = append(e.backward, add(p0, norm))
	case LineJoinMiter:
		e.applyMiterJoin(p0, norm, ab, cd, cross, dot, hypot)
	case LineJoinRound:
		e.applyRoundJoin(p0, norm, cross, dot)
	}
}

func (e *Expander) applyMiterJoin(p0 path.Point, norm, ab, cd Vec2, cross, dot, hypot float32) {
	miterLimitSq := e.style.MiterLimit * e.style.MiterLimit
	if 2.0*hypot < (hypot+dot)*miterLimitSq {
		e.computeMiterPoint(p0, norm, ab, cd, cross)
	}
	e.forward = append(e.forward, add(p0, norm.Neg()))
	e.backward = append(e.backward, add(p0, norm))
}

func (e *Expander) computeMiterPoint(p0 path.Point, norm, ab, cd Vec2, cross float32) {
	lastScale := 0.5 * e.style.Width / ab.Length()
	lastNorm := ab.Perp().Scale(lastScale)

	switch {
	case cross > 0.0:
		fpLast := add(p0, lastNorm.Neg())
		fpThis := add(p0, norm.Neg())
		h := ab.Cross(sub(fpThis, fpLast)) / cross
		e.forward = append(e.forward, add(fpThis, cd.Scale(-h)))
		e.backward = append(e.backward, p0)
	case cross < 0.0:
		fpLast := add(p0, lastNorm)
		fpThis := add(p0, norm)
		h := ab.Cross(sub(fpThis, fpLast)) / cross
		e.backward = append(e.backward, add(fpThis, cd.Scale(-h)))
		e.forward = append(e.forward, p0)
	}
}

// applyRoundJoin sweeps from the previous segment's normal to norm on the
// outer side of the turn.
func (e *Expander) applyRoundJoin(p0 path.Point, norm Vec2, cross, dot float32) {
	lastScale := 0.5 * e.style.Width / e.lastTan.Length()
	lastNorm := e.lastTan.Perp().Scale(lastScale)

	angle := math32.Atan2(cross, dot)
	if angle > 0.0 {
		e.backward = append(e.backward, add(p0, norm))
		e.forward = e.arc(e.forward, p0, lastNorm.Neg(), angle)
	} else {
		e.forward = append(e.forward, add(p0, norm.Neg()))
		e.backward = e.arc(e.backward, p0, lastNorm, angle)
	}
}

// doLine extends both sides with a line segment.
func (e *Expander) doLine(tangent Vec2, p1 path.Point) {
	scale := 0.5 * e.style.Width / tangent.Length()
	norm := tangent.Perp().Scale(scale)

	e.forward = append(e.forward, add(p1, norm.Neg()))
	e.backward = append(e.backward, add(p1, norm))
	e.lastPt = p1
	e.lastNorm = norm
}

// finish completes an open contour with caps at both ends.
func (e *Expander) finish() {
	if len(e.forward) == 0 {
		return
	}

	out := append([]path.Point(nil), e.forward...)
	// lastNorm points at the backward side; the cap starts from the forward one.
	out = e.applyCap(out, e.lastPt, e.lastNorm.Neg())
	for i := len(e.backward) - 1; i >= 0; i-- {
		out = push(out, e.backward[i])
	}
	out = e.applyCap(out, e.startPt, e.startNorm)
	e.output = append(e.output, path.Contour{Points: trimClosing(out), Closed: true})
}

// finishClosed completes a closed contour as two loops of opposite
// orientation, so the interior cancels under the non-zero rule.
func (e *Expander) finishClosed() {
	if len(e.forward) == 0 {
		return
	}
	e.doJoin(e.startTan)

	e.output = append(e.output, path.Contour{Points: trimClosing(e.forward), Closed: true})
	back := make([]path.Point, 0, len(e.backward))
	for i := len(e.backward) - 1; i >= 0; i-- {
		back = push(back, e.backward[i])
	}
	e.output = append(e.output, path.Contour{Points: trimClosing(back), Closed: true})
}

func trimClosing(pts []path.Point) []path.Point {
	if n := len(pts); n > 1 && pts[n-1] == pts[0] {
		return pts[:n-1]
	}
	return pts
}

// applyCap appends a cap at center, starting from center+norm and ending
// at center-norm.
func (e *Expander) applyCap(out []path.Point, center path.Point, norm Vec2) []path.Point {
	switch e.style.Cap {
	case LineCapRound:
		return e.arc(out, center, norm, math32.Pi)
	case LineCapSquare:
		out = push(out, transformPoint(center, norm, 1, 1))
		out = push(out, transformPoint(center, norm, -1, 1))
		return push(out, add(center, norm.Neg()))
	default:
		return push(out, add(center, norm.Neg()))
	}
}

// arc appends a polyline approximating the circular arc that starts at
// center+norm and sweeps angle radians. The start point is not appended.
func (e *Expander) arc(out []path.Point, center path.Point, norm Vec2, angle float32) []path.Point {
	radius := norm.Length()
	step := math32.Pi / 2
	if radius > e.tolerance {
		step = 2 * math32.Acos(1-e.tolerance/radius)
	}
	n := int(math32.Ceil(math32.Abs(angle) / step))
	if n < 1 {
		n = 1
	}

	a0 := norm.Angle()
	for i := 1; i <= n; i++ {
		s, c := math32.Sincos(a0 + angle*float32(i)/float32(n))
		out = push(out, path.Point{X: center.X + radius*c, Y: center.Y + radius*s})
	}
	return out
}

// transformPoint applies the affine transform [norm.x, norm.y, -norm.y, norm.x, center.x, center.y].
func transformPoint(center path.Point, norm Vec2, x, y float32) path.Point {
	return path.Point{
		X: norm.X*x - norm.Y*y + center.X,
		Y: norm.Y*x + norm.X*y + center.Y,
	}
}

func push(pts []path.Point, p path.Point) []path.Point {
	if n := len(pts); n > 0 && pts[n-1] == p {
		return pts
	}
	return append(pts, p)
}
