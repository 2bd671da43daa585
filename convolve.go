/*
Convolution
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
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ConvolutionControl configures Convolve and ConvolveWithInterpolation.
type ConvolutionControl struct {
	// DoNormalize divides each output pixel by the local kernel sum.
	// A kernel summing to zero is not guarded against: the division
	// propagates Inf/NaN into the output.
	DoNormalize bool

	// MaxInterpolationDistance is the upper bound, in pixels, on the
	// width and height of an interpolation sub-region. Smaller values
	// increase both accuracy and cost. Zero or negative means the default.
	MaxInterpolationDistance int

	// EdgeMask, if nonzero, is OR'd into the mask plane of the border
	// pixels the convolution cannot compute. Ignored for images without
	// a mask plane.
	EdgeMask MaskPixel

	// Debug receives tracing output. Nil discards it.
	Debug io.Writer
}

// DefaultConvolutionControl is the configuration used when callers have no
// opinion.
var DefaultConvolutionControl = ConvolutionControl{
	DoNormalize:              true,
	MaxInterpolationDistance: 10,
}

func (c *ConvolutionControl) debug() io.Writer {
	if c.Debug == nil {
		return io.Discard
	}
	return c.Debug
}

func (c *ConvolutionControl) maxInterpolationDistance() int {
	if c.MaxInterpolationDistance <= 0 {
		return DefaultConvolutionControl.MaxInterpolationDistance
	}
	return c.MaxInterpolationDistance
}

// checkConvolution validates the shared convolution preconditions.
func checkConvolution(dst, src *Image, kernel Kernel) error {
	if !dst.SameDimensions(src) {
		return errors.Errorf("convolved image dimensions (%d, %d) != (%d, %d) = input image dimensions",
			dst.Width, dst.Height, src.Width, src.Height)
	}
	kw, kh := kernel.Dimensions()
	if src.Width < kw || src.Height < kh {
		return errors.Errorf("input image (%d, %d) smaller than kernel (%d, %d) in columns and/or rows",
			src.Width, src.Height, kw, kh)
	}
	return nil
}

// convolveAtPoint computes one output pixel: the weighted sum of the source
// footprint whose origin is local index (x0, y0) against the dense row-major
// weights. Zero weights are skipped; the skip never changes the result.
func convolveAtPoint(src *Image, x0, y0 int, weights []float64, kw, kh int) float64 {
	sum := 0.0
	wi := 0
	for ky := 0; ky < kh; ky++ {
		row := (y0+ky)*src.Width + x0
		for kx := 0; kx < kw; kx++ {
			if w := weights[wi]; w != 0 {
				sum += src.Pix[row+kx] * w
			}
			wi++
		}
	}
	return sum
}

// convolveAtPointSep is the separable form of convolveAtPoint: a column pass
// over row sums, equivalent to the dense outer-product sum up to
// floating-point associativity.
func convolveAtPointSep(src *Image, x0, y0 int, xw, yw []float64) float64 {
	outer := 0.0
	for ky, wy := range yw {
		if wy == 0 {
			continue
		}
		row := (y0+ky)*src.Width + x0
		inner := 0.0
		for kx, wx := range xw {
			if wx != 0 {
				inner += src.Pix[row+kx] * wx
			}
		}
		outer += inner * wy
	}
	return outer
}

// convolveAuxAtPoint computes the mask and variance of one output pixel over
// the same footprint: the OR of source mask bits under nonzero weights and
// the variance sum with squared weights. Pass dense weights, or nil dense
// weights with separable vectors.
func convolveAuxAtPoint(src *Image, x0, y0 int, dense, xw, yw []float64, kw, kh int) (MaskPixel, float64) {
	var mask MaskPixel
	variance := 0.0
	wi := 0
	for ky := 0; ky < kh; ky++ {
		row := (y0+ky)*src.Width + x0
		for kx := 0; kx < kw; kx++ {
			var w float64
			if dense != nil {
				w = dense[wi]
				wi++
			} else {
				w = xw[kx] * yw[ky]
			}
			if w == 0 {
				continue
			}
			if src.Mask != nil {
				mask |= src.Mask[row+kx]
			}
			if src.Variance != nil {
				variance += src.Variance[row+kx] * w * w
			}
		}
	}
	return mask, variance
}

// interior returns the output region the kernel can fully compute:
// start index (per axis the kernel anchor) and extent.
func interior(src *Image, kernel Kernel) (startX, startY, width, height int) {
	kw, kh := kernel.Dimensions()
	ctrX, ctrY := kernel.Center()
	return ctrX, ctrY, src.Width + 1 - kw, src.Height + 1 - kh
}

// BasicConvolve fills the interior of dst with src convolved with kernel,
// leaving the border pixels untouched (see CopyBorder for the border).
// The kernel shape picks the algorithm: a delta-function kernel degenerates
// to offset copies, a separable kernel uses the two-pass primitive, anything
// else the dense primitive; all produce the identical mathematical result.
func BasicConvolve(dst, src *Image, kernel Kernel, doNormalize bool) error {
	return basicConvolve(dst, src, kernel, doNormalize, io.Discard)
}

func basicConvolve(dst, src *Image, kernel Kernel, doNormalize bool, debug io.Writer) error {
	if err := checkConvolution(dst, src, kernel); err != nil {
		return err
	}
	switch k := kernel.(type) {
	case *DeltaFunctionKernel:
		fmt.Fprintln(debug, "kernel is a spatially invariant delta function")
		basicConvolveDelta(dst, src, k)
		return nil
	case *SeparableKernel:
		return basicConvolveSeparable(dst, src, k, doNormalize, debug)
	default:
		return basicConvolveGeneral(dst, src, kernel, doNormalize, debug)
	}
}

// basicConvolveDelta copies the input at a fixed offset; no multiplies.
func basicConvolveDelta(dst, src *Image, kernel *DeltaFunctionKernel) {
	startX, startY, cnvWidth, cnvHeight := interior(src, kernel)
	pixX, pixY := kernel.Pixel()
	copyMask := dst.Mask != nil && src.Mask != nil
	copyVar := dst.Variance != nil && src.Variance != nil
	for j := 0; j < cnvHeight; j++ {
		out := (startY+j)*dst.Width + startX
		in := (pixY+j)*src.Width + pixX
		copy(dst.Pix[out:out+cnvWidth], src.Pix[in:in+cnvWidth])
		if copyMask {
			copy(dst.Mask[out:out+cnvWidth], src.Mask[in:in+cnvWidth])
		}
		if copyVar {
			copy(dst.Variance[out:out+cnvWidth], src.Variance[in:in+cnvWidth])
		}
	}
}

func basicConvolveSeparable(dst, src *Image, kernel *SeparableKernel, doNormalize bool, debug io.Writer) error {
	startX, startY, cnvWidth, cnvHeight := interior(src, kernel)
	kw, kh := kernel.Dimensions()
	xw := make([]float64, kw)
	yw := make([]float64, kh)
	wantAux := (dst.Mask != nil && src.Mask != nil) || (dst.Variance != nil && src.Variance != nil)

	if kernel.IsSpatiallyVarying() {
		fmt.Fprintln(debug, "kernel is a spatially varying separable kernel")
		for j := 0; j < cnvHeight; j++ {
			rowPos := float64(dst.Y0 + startY + j)
			for i := 0; i < cnvWidth; i++ {
				colPos := float64(dst.X0 + startX + i)
				kSum, err := kernel.ComputeVectors(xw, yw, false, colPos, rowPos)
				if err != nil {
					return err
				}
				v := convolveAtPointSep(src, i, j, xw, yw)
				if doNormalize {
					v /= kSum
				}
				dst.Pix[(startY+j)*dst.Width+startX+i] = v
				if wantAux {
					setAux(dst, src, i, j, startX+i, startY+j, nil, xw, yw, kw, kh)
				}
			}
		}
		return nil
	}

	fmt.Fprintln(debug, "kernel is a spatially invariant separable kernel")
	if _, err := kernel.ComputeVectors(xw, yw, doNormalize, 0, 0); err != nil {
		return err
	}
	for j := 0; j < cnvHeight; j++ {
		for i := 0; i < cnvWidth; i++ {
			dst.Pix[(startY+j)*dst.Width+startX+i] = convolveAtPointSep(src, i, j, xw, yw)
			if wantAux {
				setAux(dst, src, i, j, startX+i, startY+j, nil, xw, yw, kw, kh)
			}
		}
	}
	return nil
}

func basicConvolveGeneral(dst, src *Image, kernel Kernel, doNormalize bool, debug io.Writer) error {
	startX, startY, cnvWidth, cnvHeight := interior(src, kernel)
	kw, kh := kernel.Dimensions()
	kernelImage := NewImage(kw, kh)
	wantAux := (dst.Mask != nil && src.Mask != nil) || (dst.Variance != nil && src.Variance != nil)

	if kernel.IsSpatiallyVarying() {
		fmt.Fprintln(debug, "kernel is spatially varying")
		for j := 0; j < cnvHeight; j++ {
			rowPos := float64(dst.Y0 + startY + j)
			for i := 0; i < cnvWidth; i++ {
				colPos := float64(dst.X0 + startX + i)
				kSum, err := kernel.ComputeImage(kernelImage, false, colPos, rowPos)
				if err != nil {
					return err
				}
				v := convolveAtPoint(src, i, j, kernelImage.Pix, kw, kh)
				if doNormalize {
					v /= kSum
				}
				dst.Pix[(startY+j)*dst.Width+startX+i] = v
				if wantAux {
					setAux(dst, src, i, j, startX+i, startY+j, kernelImage.Pix, nil, nil, kw, kh)
				}
			}
		}
		return nil
	}

	fmt.Fprintln(debug, "kernel is spatially invariant")
	if _, err := kernel.ComputeImage(kernelImage, doNormalize, 0, 0); err != nil {
		return err
	}
	for j := 0; j < cnvHeight; j++ {
		for i := 0; i < cnvWidth; i++ {
			dst.Pix[(startY+j)*dst.Width+startX+i] = convolveAtPoint(src, i, j, kernelImage.Pix, kw, kh)
			if wantAux {
				setAux(dst, src, i, j, startX+i, startY+j, kernelImage.Pix, nil, nil, kw, kh)
			}
		}
	}
	return nil
}

// setAux fills the mask and variance planes of one output pixel.
// (sx, sy) is the footprint origin in src, (dx, dy) the output index in dst.
func setAux(dst, src *Image, sx, sy, dx, dy int, dense, xw, yw []float64, kw, kh int) {
	mask, variance := convolveAuxAtPoint(src, sx, sy, dense, xw, yw, kw, kh)
	if dst.Mask != nil && src.Mask != nil {
		dst.Mask[dx+dy*dst.Width] = mask
	}
	if dst.Variance != nil && src.Variance != nil {
		dst.Variance[dx+dy*dst.Width] = variance
	}
}

// Convolve fills dst with src convolved with kernel: BasicConvolve over the
// interior, then CopyBorder for the pixels the kernel footprint cannot
// reach. ctl.EdgeMask, if nonzero, is OR'd into the border mask pixels.
func Convolve(dst, src *Image, kernel Kernel, ctl ConvolutionControl) error {
	if err := basicConvolve(dst, src, kernel, ctl.DoNormalize, ctl.debug()); err != nil {
		return err
	}
	return CopyBorder(dst, src, kernel, ctl.EdgeMask)
}

// ConvolveLinear convolves src with a spatially varying
// LinearCombinationKernel by convolving once per basis kernel and
// accumulating the coefficient-weighted basis convolutions, avoiding
// per-pixel kernel reconstruction entirely. The output is not normalized;
// use Convolve if normalization is needed. A non-varying kernel degenerates
// to a single ordinary convolution.
//
// The border is filled by CopyBorder with edgeMask at the end.
func ConvolveLinear(dst, src *Image, kernel *LinearCombinationKernel, edgeMask MaskPixel) error {
	if !kernel.IsSpatiallyVarying() {
		return Convolve(dst, src, kernel, ConvolutionControl{EdgeMask: edgeMask})
	}
	if err := checkConvolution(dst, src, kernel); err != nil {
		return err
	}

	startX, startY, cnvWidth, cnvHeight := interior(src, kernel)
	propagateMask := dst.Mask != nil && src.Mask != nil
	propagateVar := dst.Variance != nil && src.Variance != nil

	// Zero the interior so the per-basis contributions can accumulate.
	for j := 0; j < cnvHeight; j++ {
		row := (startY + j) * dst.Width
		for i := startX; i < startX+cnvWidth; i++ {
			dst.Pix[row+i] = 0
			if propagateMask {
				dst.Mask[row+i] = 0
			}
			if propagateVar {
				dst.Variance[row+i] = 0
			}
		}
	}

	var basisImage *Image
	if propagateMask || propagateVar {
		basisImage = NewMaskedImage(src.Width, src.Height)
	} else {
		basisImage = NewImage(src.Width, src.Height)
	}
	basisImage.X0, basisImage.Y0 = src.X0, src.Y0

	for b := 0; b < kernel.NumBasisKernels(); b++ {
		if err := BasicConvolve(basisImage, src, kernel.BasisKernel(b), false); err != nil {
			return err
		}
		for j := 0; j < cnvHeight; j++ {
			rowPos := float64(dst.Y0 + startY + j)
			row := (startY + j) * dst.Width
			for i := 0; i < cnvWidth; i++ {
				colPos := float64(dst.X0 + startX + i)
				coeff := kernel.CoefficientAt(b, colPos, rowPos)
				dst.Pix[row+startX+i] += coeff * basisImage.Pix[row+startX+i]
				if propagateMask {
					dst.Mask[row+startX+i] |= basisImage.Mask[row+startX+i]
				}
				if propagateVar {
					dst.Variance[row+startX+i] += coeff * coeff * basisImage.Variance[row+startX+i]
				}
			}
		}
	}
	return CopyBorder(dst, src, kernel, edgeMask)
}
