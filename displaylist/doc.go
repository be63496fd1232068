// Package displaylist defines the per-frame input to the renderer.
//
// A List is rebuilt by the content player every frame. It is an already
// resolved tree: timelines, scripts and instance bookkeeping live upstream,
// and what arrives here is just what to draw and how.
//
//   - ShapeNode draws a Shape (vector fills and strokes) with a transform
//     and a color transform.
//   - BitmapNode draws a Bitmap as a textured quad.
//   - GroupNode composes children with a blend mode, filters, a mask or a
//     scroll rect. Groups that need any of those are rendered off-screen.
//
// Shapes and bitmaps carry stable IDs. The renderer caches tessellations
// and textures by ID, so a content change must come with a new ShapeID or a
// new bitmap Revision. Coordinates are in pixels; Twips converts from the
// 1/20 pixel units used by SWF content.
package displaylist
