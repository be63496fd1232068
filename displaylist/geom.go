package displaylist

import "math"

// Point is a point in shape units.
type Point struct {
	X, Y float32
}

// Rect is an axis-aligned rectangle. A rectangle with XMin > XMax or
// YMin > YMax is empty.
type Rect struct {
	XMin, YMin, XMax, YMax float64
}

// EmptyRect returns a rectangle that Extend and Union treat as nothing.
func EmptyRect() Rect {
	return Rect{XMin: math.Inf(1), YMin: math.Inf(1), XMax: math.Inf(-1), YMax: math.Inf(-1)}
}

// RectXYWH returns the rectangle with origin (x, y) and size w x h.
func RectXYWH(x, y, w, h float64) Rect {
	return Rect{XMin: x, YMin: y, XMax: x + w, YMax: y + h}
}

// Empty reports whether r covers no area.
func (r Rect) Empty() bool {
	return !(r.XMin < r.XMax && r.YMin < r.YMax)
}

// Width returns the width of r, or 0 when empty.
func (r Rect) Width() float64 {
	if r.Empty() {
		return 0
	}
	return r.XMax - r.XMin
}

// Height returns the height of r, or 0 when empty.
func (r Rect) Height() float64 {
	if r.Empty() {
		return 0
	}
	return r.YMax - r.YMin
}

// Extend grows r to include (x, y).
func (r Rect) Extend(x, y float64) Rect {
	return Rect{
		XMin: math.Min(r.XMin, x), YMin: math.Min(r.YMin, y),
		XMax: math.Max(r.XMax, x), YMax: math.Max(r.YMax, y),
	}
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	switch {
	case o.Empty():
		return r
	case r.Empty():
		return o
	}
	return Rect{
		XMin: math.Min(r.XMin, o.XMin), YMin: math.Min(r.YMin, o.YMin),
		XMax: math.Max(r.XMax, o.XMax), YMax: math.Max(r.YMax, o.YMax),
	}
}

// Intersect returns the overlap of r and o.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		XMin: math.Max(r.XMin, o.XMin), YMin: math.Max(r.YMin, o.YMin),
		XMax: math.Min(r.XMax, o.XMax), YMax: math.Min(r.YMax, o.YMax),
	}
}

// Inset grows r by dx and dy on each side (shrinks for negative values).
func (r Rect) Inset(dx, dy float64) Rect {
	return Rect{XMin: r.XMin - dx, YMin: r.YMin - dy, XMax: r.XMax + dx, YMax: r.YMax + dy}
}

// Twips is a length in 1/20 pixel, the unit of SWF geometry.
type Twips int32

// TwipsPerPixel is the number of twips in one pixel.
const TwipsPerPixel = 20

// Pixels converts t to pixels.
func (t Twips) Pixels() float64 {
	return float64(t) / TwipsPerPixel
}

// TwipsFromPixels converts pixels to twips, rounding to the nearest twip.
func TwipsFromPixels(px float64) Twips {
	return Twips(math.Round(px * TwipsPerPixel))
}

// RectFromTwips builds a pixel rectangle from SWF rectangle bounds.
func RectFromTwips(xMin, xMax, yMin, yMax Twips) Rect {
	return Rect{XMin: xMin.Pixels(), YMin: yMin.Pixels(), XMax: xMax.Pixels(), YMax: yMax.Pixels()}
}
