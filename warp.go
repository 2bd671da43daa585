/*
Warping
Copyright (C) 2024 Ivan Latunov

This program is free software; you can redistribute it and/or modify it under
the terms of the GNU General Public License as published by the Free Software
Foundation; either version 2 of the License, or (at your option) any later
version.

This program is distributed in the hope that it will be useful, but WITHOUT ANY
WARRANTY; without even the implied warranty of MERCHANTABILITY or FITNESS FOR A
PARTICULAR PURPOSE.  See the GNU General Public License for more details.

You should have received a copy of the GNU General Public License along with
this program; if not, write to the Free Software Foundation, Inc., 59 Temple
Place, Suite 330, Boston, MA 02111-1307 USA
*/

package convolve

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Wcs maps between parent pixel positions of one image and a sky coordinate
// system shared between images. PixelArea reports the sky area subtended by
// one pixel at the given position; the warper only ever uses ratios of pixel
// areas, so the unit cancels.
type Wcs interface {
	PixelToSky(x, y float64) (sx, sy float64)
	SkyToPixel(sx, sy float64) (x, y float64)
	PixelArea(x, y float64) float64
}

// AffineWcs is a Wcs backed by a 2-D affine transform
//
//	sky = A * pixel + b
//
// with the inverse computed once at construction.
type AffineWcs struct {
	fwd  [6]float64 // a00 a01 b0 a10 a11 b1
	inv  [6]float64
	area float64
}

// NewAffineWcs builds an AffineWcs from the 2x2 linear part and the offset.
// Fails if the linear part is singular.
func NewAffineWcs(a00, a01, a10, a11, b0, b1 float64) (*AffineWcs, error) {
	m := mat.NewDense(3, 3, []float64{
		a00, a01, b0,
		a10, a11, b1,
		0, 0, 1,
	})
	var minv mat.Dense
	if err := minv.Inverse(m); err != nil {
		return nil, errors.Wrap(err, "affine transform is not invertible")
	}
	w := &AffineWcs{
		fwd:  [6]float64{a00, a01, b0, a10, a11, b1},
		area: math.Abs(a00*a11 - a01*a10),
	}
	w.inv = [6]float64{
		minv.At(0, 0), minv.At(0, 1), minv.At(0, 2),
		minv.At(1, 0), minv.At(1, 1), minv.At(1, 2),
	}
	return w, nil
}

// IdentityWcs returns the WCS whose pixel grid coincides with the sky grid.
func IdentityWcs() *AffineWcs {
	w, _ := NewAffineWcs(1, 0, 0, 1, 0, 0)
	return w
}

func (w *AffineWcs) PixelToSky(x, y float64) (float64, float64) {
	return w.fwd[0]*x + w.fwd[1]*y + w.fwd[2], w.fwd[3]*x + w.fwd[4]*y + w.fwd[5]
}

func (w *AffineWcs) SkyToPixel(sx, sy float64) (float64, float64) {
	return w.inv[0]*sx + w.inv[1]*sy + w.inv[2], w.inv[3]*sx + w.inv[4]*sy + w.inv[5]
}

// PixelArea is the Jacobian determinant of the forward transform, constant
// for an affine mapping.
func (w *AffineWcs) PixelArea(x, y float64) float64 { return w.area }

// WarpingKernel interpolates a source image at a sub-pixel position. It is
// expected to have even width and height with the anchor at width/2,
// height/2: the kernel taps bracket the fractional position, tap i reading
// source column srcInt - ctr + 1 + i and weighted by the 1-D profile at
// offset i - ctr + 1 - frac for frac in [0, 1).
type WarpingKernel interface {
	Dimensions() (width, height int)
	Center() (x, y int)
	// ComputeVectors fills the row and column weight vectors for the
	// fractional position (fracX, fracY), each in [0, 1), and returns the
	// dense weight sum.
	ComputeVectors(xw, yw []float64, fracX, fracY float64) float64
}

// profileWarpingKernel derives both weight vectors from a single 1-D
// interpolation profile f, evaluated at the tap offsets from the fractional
// position.
type profileWarpingKernel struct {
	size    int // width == height
	profile func(t float64) float64
}

func (k *profileWarpingKernel) Dimensions() (int, int) { return k.size, k.size }
func (k *profileWarpingKernel) Center() (int, int)     { return k.size / 2, k.size / 2 }

func (k *profileWarpingKernel) ComputeVectors(xw, yw []float64, fracX, fracY float64) float64 {
	ctr := k.size / 2
	sumX, sumY := 0.0, 0.0
	for i := 0; i < k.size; i++ {
		t := float64(i - ctr + 1)
		xw[i] = k.profile(t - fracX)
		yw[i] = k.profile(t - fracY)
		sumX += xw[i]
		sumY += yw[i]
	}
	return sumX * sumY
}

// BilinearWarpingKernel returns the 2x2 bilinear interpolation kernel.
// At a zero fractional position it is an exact identity.
func BilinearWarpingKernel() WarpingKernel {
	return &profileWarpingKernel{
		size: 2,
		profile: func(t float64) float64 {
			if t < 0 {
				t = -t
			}
			if t >= 1 {
				return 0
			}
			return 1 - t
		},
	}
}

// NearestWarpingKernel returns the 2x2 nearest-neighbor kernel: all weight
// on whichever tap is closer to the fractional position.
func NearestWarpingKernel() WarpingKernel {
	return &profileWarpingKernel{
		size: 2,
		profile: func(t float64) float64 {
			if t < 0 {
				t = -t
			}
			if t < 0.5 {
				return 1
			}
			return 0
		},
	}
}

// LanczosWarpingKernel returns the order-n Lanczos interpolation kernel,
// a 2n x 2n separable windowed sinc.
func LanczosWarpingKernel(order int) (WarpingKernel, error) {
	if order < 1 {
		return nil, errors.Errorf("lanczos order %d < 1", order)
	}
	n := float64(order)
	return &profileWarpingKernel{
		size: 2 * order,
		profile: func(t float64) float64 {
			if t == 0 {
				return 1
			}
			if t <= -n || t >= n {
				return 0
			}
			pt := math.Pi * t
			return n * math.Sin(pt) * math.Sin(pt/n) / (pt * pt)
		},
	}, nil
}

// WarpControl configures WarpImage.
type WarpControl struct {
	// Workers bounds the number of destination rows warped concurrently.
	// Rows are independent; each worker owns private weight vectors.
	// Zero or negative means sequential.
	Workers int
}

// WarpImage resamples src onto the pixel grid of dst, with the two grids
// related through their coordinate transforms: each destination pixel is
// mapped through dstWcs to the sky and back through srcWcs to a source
// position, the warping kernel interpolates the source at the fractional
// part of that position, and the result is scaled by
//
//	dstArea / (srcArea * kernelSum)
//
// to conserve flux under the local area distortion (the variance plane, if
// present, is scaled by the square).
//
// A destination pixel whose source footprint extends off the source image is
// not an error: it is set to zero (zero variance, MaskEdge in the mask plane
// if present) and skipped. WarpImage returns the number of valid - not
// edge - destination pixels.
func WarpImage(dst *Image, dstWcs Wcs, src *Image, srcWcs Wcs, kernel WarpingKernel, ctl WarpControl) (int, error) {
	if dst == nil || src == nil {
		return 0, errors.New("nil image")
	}
	if dstWcs == nil || srcWcs == nil {
		return 0, errors.New("nil coordinate transform")
	}
	kw, kh := kernel.Dimensions()
	ctrX, ctrY := kernel.Center()
	if err := checkKernelGeometry(kw, kh, ctrX, ctrY); err != nil {
		return 0, err
	}

	// Margins of the source footprint around the integer source index.
	loX, hiX := ctrX-1, kw-ctrX
	loY, hiY := ctrY-1, kh-ctrY

	setMask := dst.Mask != nil
	setVariance := dst.Variance != nil
	rowCounts := make([]int, dst.Height)

	workers := ctl.Workers
	if workers < 1 {
		workers = 1
	}
	var group errgroup.Group
	group.SetLimit(workers)

	for y := 0; y < dst.Height; y++ {
		y := y
		group.Go(func() error {
			xw := make([]float64, kw)
			yw := make([]float64, kh)
			destPosY := float64(dst.Y0 + y)
			row := y * dst.Width
			for x := 0; x < dst.Width; x++ {
				destPosX := float64(dst.X0 + x)
				skyX, skyY := dstWcs.PixelToSky(destPosX, destPosY)
				srcPosX, srcPosY := srcWcs.SkyToPixel(skyX, skyY)

				// integer and fractional parts of the source index
				srcXf := srcPosX - float64(src.X0)
				srcYf := srcPosY - float64(src.Y0)
				srcIntX := int(math.Floor(srcXf))
				srcIntY := int(math.Floor(srcYf))
				fracX := srcXf - float64(srcIntX)
				fracY := srcYf - float64(srcIntY)

				if srcIntX-loX < 0 || srcIntX+hiX >= src.Width ||
					srcIntY-loY < 0 || srcIntY+hiY >= src.Height {
					dst.Pix[row+x] = 0
					if setVariance {
						dst.Variance[row+x] = 0
					}
					if setMask {
						dst.Mask[row+x] = MaskEdge
					}
					continue
				}
				rowCounts[y]++

				kSum := kernel.ComputeVectors(xw, yw, fracX, fracY)
				footX := srcIntX - ctrX + 1
				footY := srcIntY - ctrY + 1
				v := convolveAtPointSep(src, footX, footY, xw, yw)

				scale := dstWcs.PixelArea(destPosX, destPosY) / (srcWcs.PixelArea(srcPosX, srcPosY) * kSum)
				dst.Pix[row+x] = v * scale
				if setMask || setVariance {
					mask, variance := convolveAuxAtPoint(src, footX, footY, nil, xw, yw, kw, kh)
					if setMask {
						if src.Mask == nil {
							mask = 0
						}
						dst.Mask[row+x] = mask
					}
					if setVariance {
						dst.Variance[row+x] = variance * scale * scale
					}
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}

	numGoodPixels := 0
	for _, n := range rowCounts {
		numGoodPixels += n
	}
	return numGoodPixels, nil
}
