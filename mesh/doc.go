// Package mesh tessellates shapes into cached triangle meshes.
//
// A shape is flattened once, in shape units, at a fixed tolerance. Fills
// are triangulated with a band decomposition that honors the fill rule;
// strokes are expanded into outlines and filled with the non-zero rule.
// The resulting Mesh carries premultiplied vertex colors and one Draw per
// style segment, and is reused for every transform the shape is drawn
// with.
//
// Two-stop linear gradients whose ratio span covers the whole mesh are
// baked into vertex colors. Every other gradient becomes a 256 texel ramp
// sampled by the gradient shader.
//
// Entries are keyed by shape ID and evicted after going unused for a
// number of frames. Their device buffers come from the static arena of an
// upload.Uploader and are returned to it on eviction.
package mesh
