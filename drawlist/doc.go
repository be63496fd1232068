// Package drawlist records the draw commands and render passes of a frame
// and orders them.
//
// A frame is a Graph of RenderPass values. Each pass targets one texture
// and holds its DrawCommand values in painter's order. A pass that reads
// another pass's output, or overwrites a texture another pass still
// reads, declares the dependency with After. Sort returns a topological
// order that keeps insertion order wherever the edges allow it, and
// reports cycles with a CycleError.
package drawlist
