package displaylist

import (
	"fmt"
	"math"
)

// ShapeID identifies a shape definition. IDs are stable across frames and
// must change whenever the geometry or styles change.
type ShapeID uint64

// PathOp is a path command kind.
type PathOp uint8

// Path commands.
const (
	OpMoveTo PathOp = iota
	OpLineTo
	OpQuadTo
	OpCubicTo
	OpClose
)

// PathCommand is one path command. P holds the end point for MoveTo and
// LineTo, control then end for QuadTo, and two controls then end for
// CubicTo.
type PathCommand struct {
	Op PathOp
	P  [3]Point
}

// MoveTo starts a new subpath at (x, y).
func MoveTo(x, y float32) PathCommand {
	return PathCommand{Op: OpMoveTo, P: [3]Point{{x, y}}}
}

// LineTo draws a line to (x, y).
func LineTo(x, y float32) PathCommand {
	return PathCommand{Op: OpLineTo, P: [3]Point{{x, y}}}
}

// QuadTo draws a quadratic Bezier curve through control (cx, cy) to (x, y).
func QuadTo(cx, cy, x, y float32) PathCommand {
	return PathCommand{Op: OpQuadTo, P: [3]Point{{cx, cy}, {x, y}}}
}

// CubicTo draws a cubic Bezier curve to (x, y).
func CubicTo(c1x, c1y, c2x, c2y, x, y float32) PathCommand {
	return PathCommand{Op: OpCubicTo, P: [3]Point{{c1x, c1y}, {c2x, c2y}, {x, y}}}
}

// Close closes the current subpath.
func Close() PathCommand {
	return PathCommand{Op: OpClose}
}

// Rectangle returns the commands for an axis-aligned rectangle.
func Rectangle(x, y, w, h float32) []PathCommand {
	return []PathCommand{
		MoveTo(x, y), LineTo(x+w, y), LineTo(x+w, y+h), LineTo(x, y+h), Close(),
	}
}

// kappa is the cubic control distance for a quarter circle of radius 1.
const kappa = 0.5522847498

// Ellipse returns the commands for an ellipse centered at (cx, cy).
func Ellipse(cx, cy, rx, ry float32) []PathCommand {
	kx, ky := rx*kappa, ry*kappa
	return []PathCommand{
		MoveTo(cx+rx, cy),
		CubicTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry),
		CubicTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy),
		CubicTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry),
		CubicTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy),
		Close(),
	}
}

// Circle returns the commands for a circle.
func Circle(cx, cy, r float32) []PathCommand {
	return Ellipse(cx, cy, r, r)
}

// FillRule selects which regions of a self-overlapping path are filled.
type FillRule uint8

// Fill rules.
const (
	NonZero FillRule = iota
	EvenOdd
)

// FillKind selects the paint of a FillStyle.
type FillKind uint8

// Fill kinds.
const (
	FillSolid FillKind = iota
	FillGradient
	FillBitmap
)

// FillStyle is the paint used for a fill or a stroke.
type FillStyle struct {
	Kind     FillKind
	Color    Color
	Gradient *Gradient
	Bitmap   *BitmapFill
}

// SolidFill returns a solid color paint.
func SolidFill(c Color) *FillStyle {
	return &FillStyle{Kind: FillSolid, Color: c}
}

// GradientKind is the gradient geometry.
type GradientKind uint8

// Gradient kinds.
const (
	GradientLinear GradientKind = iota
	GradientRadial
	GradientFocal
)

// SpreadMode controls gradient behavior outside the 0..1 ratio range.
type SpreadMode uint8

// Spread modes.
const (
	SpreadPad SpreadMode = iota
	SpreadReflect
	SpreadRepeat
)

// Interpolation selects the color space gradient stops are blended in.
type Interpolation uint8

// Interpolation modes.
const (
	InterpolationRGB Interpolation = iota
	InterpolationLinearRGB
)

// GradientStop is a color at a ratio in 0..1.
type GradientStop struct {
	Ratio float32
	Color Color
}

// Gradient describes a gradient paint. Gradient space is the square
// [-1, 1] x [-1, 1]: a linear gradient runs from x = -1 (ratio 0) to
// x = 1 (ratio 1); a radial gradient has ratio 1 on the unit circle.
// Matrix maps gradient space into shape space.
type Gradient struct {
	Kind          GradientKind
	Matrix        Matrix
	Stops         []GradientStop
	Spread        SpreadMode
	Interpolation Interpolation
	// Focal is the focal point position on the x axis, in -1..1, for
	// GradientFocal.
	Focal float32
}

// BitmapFill paints with a bitmap. Matrix maps bitmap pixel space into
// shape space.
type BitmapFill struct {
	Bitmap    *Bitmap
	Matrix    Matrix
	Repeat    bool
	Smoothing bool
}

// LineCap is the shape of open stroke ends.
type LineCap uint8

// Line caps.
const (
	CapRound LineCap = iota
	CapNone
	CapSquare
)

// LineJoin is the shape of stroke corners.
type LineJoin uint8

// Line joins.
const (
	JoinRound LineJoin = iota
	JoinBevel
	JoinMiter
)

// StrokeStyle describes a stroke. A Width of 0 is a hairline.
type StrokeStyle struct {
	Width      float32
	Fill       FillStyle
	Cap        LineCap
	Join       LineJoin
	MiterLimit float32
}

// ShapePath is one styled path of a shape. A path with both Fill and
// Stroke draws the fill first.
type ShapePath struct {
	Commands []PathCommand
	Fill     *FillStyle
	Stroke   *StrokeStyle
	Rule     FillRule
}

// Shape is an immutable vector definition.
type Shape struct {
	ID    ShapeID
	Paths []ShapePath
}

// Validate reports whether the shape can be drawn. Errors wrap
// ErrMalformedShape.
func (s *Shape) Validate() error {
	for i := range s.Paths {
		if err := s.Paths[i].validate(); err != nil {
			return fmt.Errorf("%w: shape %d path %d: %v", ErrMalformedShape, s.ID, i, err)
		}
	}
	return nil
}

func (p *ShapePath) validate() error {
	for j, c := range p.Commands {
		if j == 0 && c.Op != OpMoveTo {
			return fmt.Errorf("command %d draws before MoveTo", j)
		}
		if c.Op > OpClose {
			return fmt.Errorf("command %d has unknown op %d", j, c.Op)
		}
		for _, pt := range c.P[:c.Op.points()] {
			if !finite(pt.X) || !finite(pt.Y) {
				return fmt.Errorf("command %d has a non-finite coordinate", j)
			}
		}
	}
	if p.Fill != nil {
		if err := p.Fill.validate(); err != nil {
			return fmt.Errorf("fill: %v", err)
		}
	}
	if p.Stroke != nil {
		if !finite(p.Stroke.Width) || p.Stroke.Width < 0 {
			return fmt.Errorf("stroke width %v", p.Stroke.Width)
		}
		if err := p.Stroke.Fill.validate(); err != nil {
			return fmt.Errorf("stroke: %v", err)
		}
	}
	return nil
}

func (f *FillStyle) validate() error {
	switch f.Kind {
	case FillSolid:
		return nil
	case FillGradient:
		g := f.Gradient
		if g == nil || len(g.Stops) == 0 {
			return fmt.Errorf("gradient without stops")
		}
		last := float32(0)
		for i, st := range g.Stops {
			if !finite(st.Ratio) || st.Ratio < last || st.Ratio > 1 {
				return fmt.Errorf("gradient stop %d ratio %v out of order", i, st.Ratio)
			}
			last = st.Ratio
		}
		return nil
	case FillBitmap:
		if f.Bitmap == nil || f.Bitmap.Bitmap == nil {
			return fmt.Errorf("bitmap fill without a bitmap")
		}
		return f.Bitmap.Bitmap.Validate()
	default:
		return fmt.Errorf("unknown fill kind %d", f.Kind)
	}
}

// points returns how many entries of PathCommand.P the op uses.
func (op PathOp) points() int {
	switch op {
	case OpMoveTo, OpLineTo:
		return 1
	case OpQuadTo:
		return 2
	case OpCubicTo:
		return 3
	default:
		return 0
	}
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Bounds returns the shape's bounds in shape units, including half the
// widest stroke. Curve control points are included, so the result may be
// slightly larger than the drawn area.
func (s *Shape) Bounds() Rect {
	r := EmptyRect()
	var pad float32
	for i := range s.Paths {
		p := &s.Paths[i]
		for _, c := range p.Commands {
			for _, pt := range c.P[:c.Op.points()] {
				r = r.Extend(float64(pt.X), float64(pt.Y))
			}
		}
		if p.Stroke != nil {
			w := max(p.Stroke.Width, 1)
			if p.Stroke.Join == JoinMiter && p.Stroke.MiterLimit > 1 {
				w *= p.Stroke.MiterLimit
			} else if p.Stroke.Cap == CapSquare {
				w *= math.Sqrt2
			}
			pad = max(pad, w/2)
		}
	}
	if math.IsInf(r.XMin, 1) {
		return r
	}
	return r.Inset(float64(pad), float64(pad))
}
