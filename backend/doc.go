// Package backend selects a render.Device implementation by name.
//
// Backends register themselves from init functions, so importing a backend
// package is enough to make it available:
//
//	import (
//		_ "github.com/gogpu/stage/backend/native"
//		_ "github.com/gogpu/stage/backend/software"
//	)
//
//	dev, err := backend.Open("") // best available
//
// Selection follows a fixed priority: native first, then the browser's
// WebGPU device (web, js/wasm builds only), then software. The software
// backend builds everywhere, so a binary that imports it always has a
// device.
package backend
