/*
Interpolated convolution
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

import "fmt"

// interpRegion is one rectangular sub-region of the valid output area along
// with the kernel weight images already evaluated at its four corners. The
// right/top corner images sit one pixel beyond the region so that adjacent
// regions share them exactly.
type interpRegion struct {
	x0, y0         int // local index of the bottom-left output pixel
	width, height  int
	bl, br, tl, tr *Image
}

// interpWorkingImages is the per-call scratch space of the interpolation
// inner loop. Not safe to share across concurrent calls.
type interpWorkingImages struct {
	kernelImage *Image
	deltaImage  *Image
	left        *Image
	right       *Image
	leftDelta   *Image
	rightDelta  *Image
}

func newInterpWorkingImages(kw, kh int) *interpWorkingImages {
	return &interpWorkingImages{
		kernelImage: NewImage(kw, kh),
		deltaImage:  NewImage(kw, kh),
		left:        NewImage(kw, kh),
		right:       NewImage(kw, kh),
		leftDelta:   NewImage(kw, kh),
		rightDelta:  NewImage(kw, kh),
	}
}

// gridBoundaries splits [start, start+extent) into n spans and returns the
// n+1 boundary indices. Every span is at least one pixel and at most
// ceil(extent/n) pixels wide.
func gridBoundaries(start, extent, n int) []int {
	b := make([]int, n+1)
	for i := 0; i <= n; i++ {
		b[i] = start + (i*extent)/n
	}
	return b
}

// ConvolveWithInterpolation fills the interior of dst with src convolved
// with a smoothly spatially varying kernel, approximating the kernel by
// bilinear interpolation: the valid output area is split into sub-regions no
// wider or taller than ctl.MaxInterpolationDistance, the kernel is evaluated
// exactly only at the region corners (each corner evaluation shared with the
// adjacent regions), and the per-pixel weights inside a region are
// interpolated with incremental additions only.
//
// ctl.DoNormalize applies to the corner evaluations only: the interpolated
// weights in between are not re-normalized, so the interior is only
// approximately normalized. Callers needing exact normalization must use
// Convolve.
//
// Border pixels are left untouched, as with BasicConvolve.
func ConvolveWithInterpolation(dst, src *Image, kernel Kernel, ctl ConvolutionControl) error {
	if err := checkConvolution(dst, src, kernel); err != nil {
		return err
	}
	debug := ctl.debug()

	goodX0, goodY0, goodWidth, goodHeight := interior(src, kernel)
	kw, kh := kernel.Dimensions()
	ctrX, ctrY := kernel.Center()

	maxDist := ctl.maxInterpolationDistance()
	nx := 1 + goodWidth/maxDist
	ny := 1 + goodHeight/maxDist
	fmt.Fprintf(debug, "convolve with interpolation: good region origin=(%d, %d) extent=(%d, %d), %d x %d subregions\n",
		goodX0, goodY0, goodWidth, goodHeight, nx, ny)

	bx := gridBoundaries(goodX0, goodWidth, nx)
	by := gridBoundaries(goodY0, goodHeight, ny)

	// evalLevel computes the kernel at every x boundary for one y level.
	// A level's images serve as the top corners of one grid row and the
	// bottom corners of the next, so each level is evaluated exactly once.
	evalLevel := func(y int) ([]*Image, error) {
		level := make([]*Image, nx+1)
		for i := 0; i <= nx; i++ {
			img := NewImage(kw, kh)
			pos := float64(src.X0 + bx[i])
			if _, err := kernel.ComputeImage(img, ctl.DoNormalize, pos, float64(src.Y0+y)); err != nil {
				return nil, err
			}
			level[i] = img
		}
		return level, nil
	}

	work := newInterpWorkingImages(kw, kh)
	bottom, err := evalLevel(by[0])
	if err != nil {
		return err
	}
	for j := 0; j < ny; j++ {
		top, err := evalLevel(by[j+1])
		if err != nil {
			return err
		}
		for i := 0; i < nx; i++ {
			region := interpRegion{
				x0:     bx[i],
				y0:     by[j],
				width:  bx[i+1] - bx[i],
				height: by[j+1] - by[j],
				bl:     bottom[i],
				br:     bottom[i+1],
				tl:     top[i],
				tr:     top[i+1],
			}
			if err := convolveRegionWithInterpolation(dst, src, region, work, ctrX, ctrY); err != nil {
				return err
			}
		}
		bottom = top
	}
	return nil
}

// convolveRegionWithInterpolation convolves one sub-region, interpolating
// the kernel weight image pixelwise between the four corner evaluations.
// The left and right working images track the interpolated kernel along the
// region's vertical edges; each output row derives a horizontal delta from
// them, and the inner loop advances the working kernel image by additions
// alone. The deltas are not applied after the last column or row of the
// region, where they would only feed the neighboring region's own corners.
func convolveRegionWithInterpolation(dst, src *Image, r interpRegion, work *interpWorkingImages, ctrX, ctrY int) error {
	kw, kh := work.kernelImage.Width, work.kernelImage.Height
	wantAux := (dst.Mask != nil && src.Mask != nil) || (dst.Variance != nil && src.Variance != nil)

	work.left.copyPixFrom(r.bl)
	work.right.copyPixFrom(r.br)
	work.kernelImage.copyPixFrom(work.left)

	xfrac := 1.0 / float64(r.width)
	yfrac := 1.0 / float64(r.height)
	if err := ScaledPlus(work.leftDelta, yfrac, r.tl, -yfrac, work.left); err != nil {
		return err
	}
	if err := ScaledPlus(work.rightDelta, yfrac, r.tr, -yfrac, work.right); err != nil {
		return err
	}

	// The input footprint origin for output pixel (x0, y0) is the output
	// index shifted back by the kernel anchor.
	inX0 := r.x0 - ctrX
	inY0 := r.y0 - ctrY
	for j := 0; ; {
		if err := ScaledPlus(work.deltaImage, xfrac, work.right, -xfrac, work.left); err != nil {
			return err
		}
		for i := 0; ; {
			dst.Pix[(r.y0+j)*dst.Width+r.x0+i] =
				convolveAtPoint(src, inX0+i, inY0+j, work.kernelImage.Pix, kw, kh)
			if wantAux {
				setAux(dst, src, inX0+i, inY0+j, r.x0+i, r.y0+j, work.kernelImage.Pix, nil, nil, kw, kh)
			}
			i++
			if i >= r.width {
				break
			}
			work.kernelImage.addPix(work.deltaImage)
		}
		j++
		if j >= r.height {
			break
		}
		work.left.addPix(work.leftDelta)
		work.right.addPix(work.rightDelta)
		work.kernelImage.copyPixFrom(work.left)
	}
	return nil
}
