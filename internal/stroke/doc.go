// Package stroke expands flattened contours into stroke outlines.
//
// Expansion follows the tiny-skia and kurbo stroker. Each contour is
// offset by half the width on both sides:
//   - Forward side: offset by -normal
//   - Backward side: offset by +normal
//
// An open contour becomes one closed polygon: the forward side, the end
// cap, the reversed backward side, then the start cap. A closed contour
// becomes two loops of opposite orientation. Either way the result covers
// the stroke exactly when filled with the non-zero rule, which is how the
// mesh builder consumes it.
//
// # Line Caps
//
//   - LineCapButt: Flat cap ending exactly at the endpoint
//   - LineCapRound: Semicircular cap with radius = width/2
//   - LineCapSquare: Square cap extending width/2 beyond the endpoint
//
// # Line Joins
//
//   - LineJoinMiter: Sharp corner, beveled past the miter limit
//   - LineJoinRound: Circular arc at corners
//   - LineJoinBevel: Straight line across the corner
//
// Round joins and caps are emitted as polylines within the expander's
// tolerance, so the output needs no further flattening.
//
// # Usage
//
//	contours := path.Flatten(elems, path.DefaultTolerance)
//	e := stroke.NewExpander(stroke.Style{Width: 2, Cap: stroke.LineCapRound})
//	outline := e.Expand(contours)
package stroke
