package filter

import (
	"math"

	"github.com/gogpu/stage/internal/cache"
)

// MaxHalfTaps is the number of one-sided weights a single blur pass can
// carry, center included. It matches the kernel array in the uniform block.
const MaxHalfTaps = 32

// maxPassSigma is the largest sigma whose kernel fits in MaxHalfTaps.
const maxPassSigma = float64(MaxHalfTaps-1) / 3

// maxKernels bounds the kernel cache. Blur sizes are usually animated, so
// old entries are dropped once the bound is reached.
const maxKernels = 64

var kernels = cache.New[int, []float32]()

// BlurSigma converts a box blur of the given width, repeated quality
// times, into the Gaussian with the same variance. A box of width w has
// variance (w*w-1)/12 and variances of repeated passes add.
func BlurSigma(width float32, quality int) float64 {
	if width <= 1 || quality <= 0 {
		return 0
	}
	w := float64(width)
	return math.Sqrt(float64(quality) * (w*w - 1) / 12)
}

// SplitSigma splits a blur into passes that each fit in MaxHalfTaps.
// Gaussian blurs compose by adding variances, so n passes of
// sigma/sqrt(n) equal one pass of sigma.
func SplitSigma(sigma float64) []float64 {
	if sigma <= 0 {
		return nil
	}
	n := max(int(math.Ceil((sigma*sigma)/(maxPassSigma*maxPassSigma))), 1)
	per := sigma / math.Sqrt(float64(n))
	out := make([]float64, n)
	for i := range out {
		out[i] = per
	}
	return out
}

// HalfKernel returns the center weight followed by the weights for
// offsets 1, 2, ... of a Gaussian whose two-sided sum is 1. sigma must
// come from SplitSigma so the result fits in MaxHalfTaps. Results are
// shared between callers and must not be modified.
func HalfKernel(sigma float64) []float32 {
	key := int(math.Round(sigma * 100))
	if k, ok := kernels.Get(key); ok {
		return k
	}
	k := halfGaussian(float64(key) / 100)
	if kernels.Len() >= maxKernels {
		kernels.Advance()
		kernels.Sweep(0, nil)
	}
	return kernels.Set(key, k)
}

// halfGaussian samples exp(-x²/2σ²) out to 3σ.
func halfGaussian(sigma float64) []float32 {
	if sigma <= 0 {
		return []float32{1}
	}
	n := min(int(math.Ceil(sigma*3))+1, MaxHalfTaps)
	w := make([]float64, n)
	twoSigmaSq := 2 * sigma * sigma
	sum := 0.0
	for i := range w {
		x := float64(i)
		w[i] = math.Exp(-(x * x) / twoSigmaSq)
		if i == 0 {
			sum += w[i]
		} else {
			sum += 2 * w[i]
		}
	}
	out := make([]float32, n)
	for i := range w {
		out[i] = float32(w[i] / sum)
	}
	return out
}
