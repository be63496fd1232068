// Package cache provides the generation-counted cache behind the mesh,
// texture and off-screen target caches.
//
// Entries carry the generation (frame number) they were last used in.
// The display list is rebuilt from scratch every frame, so object identity
// cannot be tracked by reference counts; instead every frame calls Advance,
// every lookup stamps the entry, and Sweep drops what has not been seen for
// a grace period:
//
//	c := cache.New[ShapeID, *Mesh]()
//	c.Advance()
//	m, ok := c.Get(id)
//	if !ok {
//	    m = c.Set(id, build())
//	}
//	c.Sweep(30, func(_ ShapeID, m *Mesh) { m.Release() })
//
// # Thread Safety
//
// All methods are safe for concurrent use. Values are append-only per key:
// Set never replaces a live entry.
package cache
