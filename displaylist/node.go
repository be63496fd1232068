package displaylist

// Node is a display list entry: *ShapeNode, *BitmapNode or *GroupNode.
type Node interface {
	node()
}

// ShapeNode draws a shape.
type ShapeNode struct {
	Shape          *Shape
	Transform      Matrix
	ColorTransform ColorTransform
}

// BitmapNode draws a bitmap as a quad covering its pixel rectangle.
type BitmapNode struct {
	Bitmap         *Bitmap
	Transform      Matrix
	ColorTransform ColorTransform
	Smoothing      bool
}

// MaskMode selects which channel of the mask content gates the group.
type MaskMode uint8

// Mask modes.
const (
	MaskAlpha MaskMode = iota
	MaskLuminance
)

// GroupNode composes its children. Transform and ColorTransform apply to
// all children. A zero Transform is the identity. Mask is drawn in the same space as the group's children
// (it is transformed by Transform too).
type GroupNode struct {
	Transform      Matrix
	ColorTransform ColorTransform
	Blend          BlendMode
	Filters        []Filter
	Mask           Node
	MaskMode       MaskMode
	// ScrollRect clips children to a rectangle in the group's local space.
	ScrollRect *Rect
	Children   []Node
}

// Isolated reports whether the group must be rendered into an off-screen
// target rather than flattened into its parent.
func (g *GroupNode) Isolated() bool {
	return g.Blend.NeedsGroup() || len(g.Filters) > 0 || g.Mask != nil
}

func (*ShapeNode) node()  {}
func (*BitmapNode) node() {}
func (*GroupNode) node()  {}

// List is one frame of content.
type List struct {
	// Background fills the frame before anything is drawn.
	Background Color
	Nodes      []Node
}

// Walk calls fn for every node in painter's order, depth first, including
// mask subtrees. Walk stops descending into a group when fn returns false.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if n == nil || !fn(n) {
			continue
		}
		if g, ok := n.(*GroupNode); ok {
			if g.Mask != nil {
				Walk([]Node{g.Mask}, fn)
			}
			Walk(g.Children, fn)
		}
	}
}

// Shapes returns every distinct shape referenced by the list.
func (l *List) Shapes() []*Shape {
	seen := make(map[ShapeID]bool)
	var out []*Shape
	Walk(l.Nodes, func(n Node) bool {
		if sn, ok := n.(*ShapeNode); ok && sn.Shape != nil && !seen[sn.Shape.ID] {
			seen[sn.Shape.ID] = true
			out = append(out, sn.Shape)
		}
		return true
	})
	return out
}

// NodeBounds returns the bounds of n in the space m maps into, including
// filter padding. Mask and scroll rect clipping are applied.
func NodeBounds(n Node, m Matrix) Rect {
	switch n := n.(type) {
	case *ShapeNode:
		if n.Shape == nil {
			return EmptyRect()
		}
		return m.Multiply(n.Transform.OrIdentity()).TransformRect(n.Shape.Bounds())
	case *BitmapNode:
		if n.Bitmap == nil {
			return EmptyRect()
		}
		return m.Multiply(n.Transform.OrIdentity()).TransformRect(n.Bitmap.Bounds())
	case *GroupNode:
		gm := m.Multiply(n.Transform.OrIdentity())
		r := EmptyRect()
		for _, c := range n.Children {
			r = r.Union(NodeBounds(c, gm))
		}
		if n.ScrollRect != nil {
			r = r.Intersect(gm.TransformRect(*n.ScrollRect))
		}
		if n.Mask != nil {
			r = r.Intersect(NodeBounds(n.Mask, gm))
		}
		for _, f := range n.Filters {
			dx, dy := f.Padding()
			r = r.Inset(dx, dy)
		}
		return r
	default:
		return EmptyRect()
	}
}
