// Package filter holds the numeric side of filter effects: Gaussian
// kernels for separable blur passes and color matrix normalization.
//
// The passes themselves run on the device. The compositor packs the
// weights from HalfKernel and the matrix from NormalizeMatrix into the
// uniform block, so every backend reads the same numbers.
package filter
