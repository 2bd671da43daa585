package convolve_test

import (
	stdimage "image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xswordsx/convolve"
)

func TestImageAtSet(t *testing.T) {
	im := convolve.NewImage(4, 3)
	im.Set(2, 1, 7.5)
	require.Equal(t, 7.5, im.At(2, 1))
	require.Equal(t, 7.5, im.Pix[2+1*4])

	require.False(t, im.HasMask())
	require.False(t, im.HasVariance())
	require.Equal(t, convolve.MaskPixel(0), im.MaskAt(2, 1))
	require.Equal(t, 0.0, im.VarianceAt(2, 1))

	masked := convolve.NewMaskedImage(4, 3)
	require.True(t, masked.HasMask())
	require.True(t, masked.HasVariance())
}

func TestImageCloneIsDeep(t *testing.T) {
	im := convolve.NewMaskedImage(5, 5)
	im.Fill(2)
	im.Mask[7] = convolve.MaskBad
	im.Variance[7] = 1.5
	im.X0, im.Y0 = 100, 200

	clone := im.Clone()
	require.Equal(t, im.Pix, clone.Pix)
	require.Equal(t, im.Mask, clone.Mask)
	require.Equal(t, im.Variance, clone.Variance)
	require.Equal(t, 100, clone.X0)
	require.Equal(t, 200, clone.Y0)

	clone.Pix[0] = -1
	clone.Mask[0] = convolve.MaskSaturated
	clone.Variance[0] = 9
	require.Equal(t, 2.0, im.Pix[0])
	require.Equal(t, convolve.MaskPixel(0), im.Mask[0])
	require.Equal(t, 0.0, im.Variance[0])
}

func TestCopyRegionFrom(t *testing.T) {
	src := convolve.NewMaskedImage(6, 6)
	for i := range src.Pix {
		src.Pix[i] = float64(i)
		src.Variance[i] = float64(i) * 0.1
	}
	src.Mask[2+2*6] = convolve.MaskInterpolated

	dst := convolve.NewMaskedImage(6, 6)
	dst.Fill(-1)
	require.NoError(t, dst.CopyRegionFrom(src, 2, 2, 3, 2, convolve.MaskEdge))

	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			inside := x >= 2 && x < 5 && y >= 2 && y < 4
			if inside {
				require.Equal(t, src.At(x, y), dst.At(x, y), "pixel (%d, %d)", x, y)
				require.Equal(t, src.VarianceAt(x, y), dst.VarianceAt(x, y), "pixel (%d, %d)", x, y)
				require.Equal(t, src.MaskAt(x, y)|convolve.MaskEdge, dst.MaskAt(x, y), "pixel (%d, %d)", x, y)
			} else {
				require.Equal(t, -1.0, dst.At(x, y), "pixel (%d, %d)", x, y)
				require.Equal(t, convolve.MaskPixel(0), dst.MaskAt(x, y), "pixel (%d, %d)", x, y)
			}
		}
	}
}

func TestCopyRegionFromErrors(t *testing.T) {
	dst := convolve.NewImage(6, 6)

	err := dst.CopyRegionFrom(convolve.NewImage(6, 6), 4, 4, 3, 3, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not contained")

	err = dst.CopyRegionFrom(convolve.NewImage(5, 6), 0, 0, 2, 2, 0)
	require.Error(t, err)
}

func TestScaledPlus(t *testing.T) {
	a := convolve.NewImage(3, 3)
	a.Fill(2)
	b := convolve.NewImage(3, 3)
	b.Fill(5)

	dst := convolve.NewImage(3, 3)
	require.NoError(t, convolve.ScaledPlus(dst, 0.5, a, 2, b))
	for _, v := range dst.Pix {
		require.Equal(t, 11.0, v)
	}

	require.Error(t, convolve.ScaledPlus(dst, 1, a, 1, convolve.NewImage(2, 3)))
}

func TestFromImageToGrayRoundTrip(t *testing.T) {
	gray := stdimage.NewGray(stdimage.Rect(0, 0, 5, 4))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i * 13)
	}

	im := convolve.FromImage(gray)
	require.Equal(t, 5, im.Width)
	require.Equal(t, 4, im.Height)
	require.InDelta(t, float64(gray.Pix[7])/255, im.Pix[7], 1e-12)

	back := im.ToGray()
	require.Equal(t, gray.Pix, back.Pix)
}

func TestFromImagePreservesOrigin(t *testing.T) {
	gray := stdimage.NewGray(stdimage.Rect(3, 7, 13, 15))
	im := convolve.FromImage(gray)
	require.Equal(t, 10, im.Width)
	require.Equal(t, 8, im.Height)
	require.Equal(t, 3, im.X0)
	require.Equal(t, 7, im.Y0)
}

func TestToGrayClamps(t *testing.T) {
	im := convolve.NewImage(2, 1)
	im.Set(0, 0, -0.5)
	im.Set(1, 0, 1.5)

	gray := im.ToGray()
	require.Equal(t, uint8(0), gray.Pix[0])
	require.Equal(t, uint8(255), gray.Pix[1])
}
