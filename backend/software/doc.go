// Package software is a pure-Go render.Device.
//
// It rasterizes triangles with multisampling, runs the fragment program of
// each shader variant on the CPU and blends with the same equations a GPU
// color target uses. It builds on every platform, including js/wasm, and
// is the reference the native backend is checked against.
//
// The device exposes hooks tests use to provoke failures a real GPU
// produces only under pressure: failing texture or pipeline creation,
// losing the surface or the device, and deferred texture readiness.
//
// Rasterization follows the usual GPU rules. Vertex positions are snapped
// to a 1/256 pixel grid and sample coverage uses exact integer edge
// functions with a top-left tie break, so triangles that share an edge
// cover every sample along it exactly once.
package software
