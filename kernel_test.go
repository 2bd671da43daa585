package convolve_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xswordsx/convolve"
)

func TestFixedKernelComputeImage(t *testing.T) {
	weights := []float64{1, 2, 3, 4, 5, 6}
	k, err := convolve.NewFixedKernel(weights, 3, 2)
	require.NoError(t, err)

	w, h := k.Dimensions()
	require.Equal(t, 3, w)
	require.Equal(t, 2, h)
	cx, cy := k.Center()
	require.Equal(t, 1, cx)
	require.Equal(t, 0, cy)
	require.False(t, k.IsSpatiallyVarying())

	img := convolve.NewImage(3, 2)
	sum, err := k.ComputeImage(img, false, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 21.0, sum)
	require.Equal(t, weights, img.Pix)

	sum, err = k.ComputeImage(img, true, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 21.0, sum)
	total := 0.0
	for _, v := range img.Pix {
		total += v
	}
	require.InDelta(t, 1.0, total, 1e-12)
}

func TestFixedKernelValidation(t *testing.T) {
	_, err := convolve.NewFixedKernel([]float64{1, 2}, 3, 2)
	require.Error(t, err)

	k, err := convolve.NewFixedKernel(make([]float64, 6), 3, 2)
	require.NoError(t, err)
	require.Error(t, k.SetCenter(3, 0))
	require.Error(t, k.SetCenter(0, -1))
	require.NoError(t, k.SetCenter(2, 1))

	img := convolve.NewImage(2, 2) // wrong size
	_, err = k.ComputeImage(img, false, 0, 0)
	require.Error(t, err)
}

func TestDeltaFunctionKernel(t *testing.T) {
	k, err := convolve.NewDeltaFunctionKernel(3, 3, 2, 1)
	require.NoError(t, err)
	px, py := k.Pixel()
	require.Equal(t, 2, px)
	require.Equal(t, 1, py)

	img := convolve.NewImage(3, 3)
	sum, err := k.ComputeImage(img, false, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1.0, sum)
	for i, v := range img.Pix {
		if i == 2+1*3 {
			require.Equal(t, 1.0, v)
		} else {
			require.Equal(t, 0.0, v)
		}
	}

	_, err = convolve.NewDeltaFunctionKernel(3, 3, 3, 0)
	require.Error(t, err)
}

func TestSeparableKernelMatchesOuterProduct(t *testing.T) {
	k, err := convolve.NewGaussianKernel(2, 1.0, 1.5)
	require.NoError(t, err)

	w, h := k.Dimensions()
	require.Equal(t, 5, w)
	require.Equal(t, 5, h)

	xw := make([]float64, w)
	yw := make([]float64, h)
	vecSum, err := k.ComputeVectors(xw, yw, false, 0, 0)
	require.NoError(t, err)

	img := convolve.NewImage(w, h)
	imgSum, err := k.ComputeImage(img, false, 0, 0)
	require.NoError(t, err)
	require.InDelta(t, vecSum, imgSum, 1e-12)

	for ky := 0; ky < h; ky++ {
		for kx := 0; kx < w; kx++ {
			require.InDelta(t, xw[kx]*yw[ky], img.At(kx, ky), 1e-14)
		}
	}
}

func TestSeparableKernelNormalization(t *testing.T) {
	k, err := convolve.NewGaussianKernel(3, 2.0, 2.0)
	require.NoError(t, err)

	w, h := k.Dimensions()
	img := convolve.NewImage(w, h)
	_, err = k.ComputeImage(img, true, 0, 0)
	require.NoError(t, err)

	total := 0.0
	for _, v := range img.Pix {
		total += v
	}
	require.InDelta(t, 1.0, total, 1e-12)

	// symmetric about the center
	cx, cy := k.Center()
	require.InDelta(t, img.At(cx-1, cy), img.At(cx+1, cy), 1e-14)
	require.InDelta(t, img.At(cx, cy-2), img.At(cx, cy+2), 1e-14)
}

func TestLinearCombinationKernel(t *testing.T) {
	b0, err := convolve.NewBoxKernel(3, 3)
	require.NoError(t, err)
	b1, err := convolve.NewDeltaFunctionKernel(3, 3, 1, 1)
	require.NoError(t, err)

	k, err := convolve.NewLinearCombinationKernel([]convolve.Kernel{b0, b1}, []float64{0.25, 0.75})
	require.NoError(t, err)
	require.False(t, k.IsSpatiallyVarying())
	require.Equal(t, 2, k.NumBasisKernels())

	img := convolve.NewImage(3, 3)
	sum, err := k.ComputeImage(img, false, 0, 0)
	require.NoError(t, err)
	require.InDelta(t, 1.0, sum, 1e-12) // both bases sum to one
	require.InDelta(t, 0.25/9+0.75, img.At(1, 1), 1e-14)
	require.InDelta(t, 0.25/9, img.At(0, 0), 1e-14)
}

func TestLinearCombinationKernelSpatiallyVarying(t *testing.T) {
	b0, err := convolve.NewBoxKernel(3, 3)
	require.NoError(t, err)
	b1, err := convolve.NewDeltaFunctionKernel(3, 3, 1, 1)
	require.NoError(t, err)

	k, err := convolve.NewSpatiallyVaryingLinearCombinationKernel(
		[]convolve.Kernel{b0, b1},
		[]convolve.SpatialFunction{
			convolve.Polynomial2(1, 0.5, 0, 0, 0, 0),
			convolve.Polynomial2(2, 0, -1, 0, 0, 0),
		},
	)
	require.NoError(t, err)
	require.True(t, k.IsSpatiallyVarying())
	require.Equal(t, 1.0+0.5*4, k.CoefficientAt(0, 4, 7))
	require.Equal(t, 2.0-7, k.CoefficientAt(1, 4, 7))
}

func TestLinearCombinationKernelValidation(t *testing.T) {
	b0, err := convolve.NewBoxKernel(3, 3)
	require.NoError(t, err)
	b1, err := convolve.NewBoxKernel(5, 5)
	require.NoError(t, err)

	_, err = convolve.NewLinearCombinationKernel([]convolve.Kernel{b0, b1}, []float64{1, 1})
	require.Error(t, err) // mismatched geometry

	_, err = convolve.NewLinearCombinationKernel([]convolve.Kernel{b0}, []float64{1, 2})
	require.Error(t, err) // coefficient count

	_, err = convolve.NewLinearCombinationKernel(nil, nil)
	require.Error(t, err)

	varying, err := convolve.NewAnalyticKernel(3, 3, true, func(dx, dy, x, y float64) float64 { return 1 })
	require.NoError(t, err)
	_, err = convolve.NewLinearCombinationKernel([]convolve.Kernel{varying}, []float64{1})
	require.Error(t, err) // basis kernels must not vary
}

func TestPolynomial2(t *testing.T) {
	f := convolve.Polynomial2(1, 2, 3, 4, 5, 6)
	x, y := 1.5, -2.0
	want := 1 + 2*x + 3*y + 4*x*x + 5*x*y + 6*y*y
	require.InDelta(t, want, f(x, y), 1e-14)
}

func TestGaussianKernelValidation(t *testing.T) {
	_, err := convolve.NewGaussianKernel(2, 0, 1)
	require.Error(t, err)
	_, err = convolve.NewGaussianKernel(-1, 1, 1)
	require.Error(t, err)
}

func TestAnalyticKernelVarying(t *testing.T) {
	k, err := convolve.NewAnalyticKernel(3, 3, true, func(dx, dy, x, y float64) float64 {
		return math.Exp(-0.5*(dx*dx+dy*dy)) * (1 + 0.1*x)
	})
	require.NoError(t, err)
	require.True(t, k.IsSpatiallyVarying())

	img := convolve.NewImage(3, 3)
	sum0, err := k.ComputeImage(img, false, 0, 0)
	require.NoError(t, err)
	sum10, err := k.ComputeImage(img, false, 10, 0)
	require.NoError(t, err)
	require.InDelta(t, 2.0*sum0, sum10, 1e-10)
}
