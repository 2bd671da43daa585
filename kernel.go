/*
Kernels
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
)

// Kernel is a small weight image used to compute weighted local sums. The
// weights may depend on the parent image position at which the kernel is
// evaluated (a "spatially varying" kernel).
//
// The kernel center ("anchor") is the kernel index aligned with the output
// pixel being computed; it must lie within [0, width) x [0, height).
type Kernel interface {
	// Dimensions returns the kernel width and height.
	Dimensions() (width, height int)
	// Center returns the anchor index.
	Center() (x, y int)
	// IsSpatiallyVarying reports whether the weights depend on position.
	IsSpatiallyVarying() bool
	// ComputeImage fills dst, which must be kernel-sized, with the weights
	// evaluated at parent position (x, y) and returns the weight sum before
	// normalization. If doNormalize is true the stored weights are divided
	// by that sum.
	ComputeImage(dst *Image, doNormalize bool, x, y float64) (float64, error)
}

// SpatialFunction is a scalar function of parent image position, used for
// the coefficients of a LinearCombinationKernel.
type SpatialFunction func(x, y float64) float64

// Polynomial2 returns the quadratic spatial function
// c0 + cx*x + cy*y + cxx*x*x + cxy*x*y + cyy*y*y.
func Polynomial2(c0, cx, cy, cxx, cxy, cyy float64) SpatialFunction {
	return func(x, y float64) float64 {
		return c0 + cx*x + cy*y + cxx*x*x + cxy*x*y + cyy*y*y
	}
}

func checkKernelGeometry(width, height, ctrX, ctrY int) error {
	if width < 1 || height < 1 {
		return errors.Errorf("kernel dimensions (%d, %d) must be positive", width, height)
	}
	if ctrX < 0 || ctrX >= width || ctrY < 0 || ctrY >= height {
		return errors.Errorf("kernel center (%d, %d) outside kernel (%d, %d)", ctrX, ctrY, width, height)
	}
	return nil
}

func checkKernelImage(dst *Image, width, height int) error {
	if dst.Width != width || dst.Height != height {
		return errors.Errorf("kernel image dimensions (%d, %d) != (%d, %d) = kernel dimensions",
			dst.Width, dst.Height, width, height)
	}
	return nil
}

// --- FixedKernel ---

// FixedKernel is a dense kernel with constant weights.
type FixedKernel struct {
	weights       []float64
	width, height int
	ctrX, ctrY    int
}

// NewFixedKernel builds a kernel from row-major weights. The anchor defaults
// to ((width-1)/2, (height-1)/2).
func NewFixedKernel(weights []float64, width, height int) (*FixedKernel, error) {
	if err := checkKernelGeometry(width, height, (width-1)/2, (height-1)/2); err != nil {
		return nil, err
	}
	if len(weights) != width*height {
		return nil, errors.Errorf("got %d weights for a (%d, %d) kernel", len(weights), width, height)
	}
	return &FixedKernel{
		weights: append([]float64(nil), weights...),
		width:   width,
		height:  height,
		ctrX:    (width - 1) / 2,
		ctrY:    (height - 1) / 2,
	}, nil
}

// NewBoxKernel returns a box-average kernel: every weight is 1/(width*height).
func NewBoxKernel(width, height int) (*FixedKernel, error) {
	w := make([]float64, width*height)
	for i := range w {
		w[i] = 1.0 / float64(width*height)
	}
	return NewFixedKernel(w, width, height)
}

// SetCenter moves the anchor.
func (k *FixedKernel) SetCenter(x, y int) error {
	if err := checkKernelGeometry(k.width, k.height, x, y); err != nil {
		return err
	}
	k.ctrX, k.ctrY = x, y
	return nil
}

func (k *FixedKernel) Dimensions() (int, int) { return k.width, k.height }
func (k *FixedKernel) Center() (int, int) { return k.ctrX, k.ctrY }
func (k *FixedKernel) IsSpatiallyVarying() bool { return false }

func (k *FixedKernel) ComputeImage(dst *Image, doNormalize bool, x, y float64) (float64, error) {
	if err := checkKernelImage(dst, k.width, k.height); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, w := range k.weights {
		sum += w
	}
	if doNormalize {
		for i, w := range k.weights {
			dst.Pix[i] = w / sum
		}
	} else {
		copy(dst.Pix, k.weights)
	}
	return sum, nil
}

// --- DeltaFunctionKernel ---

// DeltaFunctionKernel has a single unit weight at a fixed kernel pixel.
// Convolution with it degenerates to a pixel copy at a fixed offset.
type DeltaFunctionKernel struct {
	width, height int
	ctrX, ctrY    int
	pixX, pixY    int
}

// NewDeltaFunctionKernel builds a (width, height) delta kernel whose unit
// weight sits at kernel pixel (pixX, pixY). The anchor defaults to
// ((width-1)/2, (height-1)/2).
func NewDeltaFunctionKernel(width, height, pixX, pixY int) (*DeltaFunctionKernel, error) {
	if err := checkKernelGeometry(width, height, (width-1)/2, (height-1)/2); err != nil {
		return nil, err
	}
	if pixX < 0 || pixX >= width || pixY < 0 || pixY >= height {
		return nil, errors.Errorf("delta pixel (%d, %d) outside kernel (%d, %d)", pixX, pixY, width, height)
	}
	return &DeltaFunctionKernel{
		width:  width,
		height: height,
		ctrX:   (width - 1) / 2,
		ctrY:   (height - 1) / 2,
		pixX:   pixX,
		pixY:   pixY,
	}, nil
}

// Pixel returns the kernel index of the unit weight.
func (k *DeltaFunctionKernel) Pixel() (int, int) { return k.pixX, k.pixY }

func (k *DeltaFunctionKernel) Dimensions() (int, int) { return k.width, k.height }
func (k *DeltaFunctionKernel) Center() (int, int) { return k.ctrX, k.ctrY }
func (k *DeltaFunctionKernel) IsSpatiallyVarying() bool { return false }

func (k *DeltaFunctionKernel) ComputeImage(dst *Image, doNormalize bool, x, y float64) (float64, error) {
	if err := checkKernelImage(dst, k.width, k.height); err != nil {
		return 0, err
	}
	for i := range dst.Pix {
		dst.Pix[i] = 0
	}
	dst.Pix[k.pixX+k.pixY*k.width] = 1
	return 1, nil
}

// --- AnalyticKernel ---

// KernelFunc computes one dense kernel weight. (dx, dy) is the kernel pixel
// offset from the anchor; (x, y) is the parent position the kernel is being
// evaluated at (ignored by non-varying kernels).
type KernelFunc func(dx, dy, x, y float64) float64

// AnalyticKernel is a dense kernel whose weights come from a function,
// optionally varying with parent position.
type AnalyticKernel struct {
	fn            KernelFunc
	width, height int
	ctrX, ctrY    int
	varying       bool
}

// NewAnalyticKernel builds a function-backed dense kernel with anchor
// ((width-1)/2, (height-1)/2).
func NewAnalyticKernel(width, height int, varying bool, fn KernelFunc) (*AnalyticKernel, error) {
	if err := checkKernelGeometry(width, height, (width-1)/2, (height-1)/2); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("nil kernel function")
	}
	return &AnalyticKernel{
		fn:      fn,
		width:   width,
		height:  height,
		ctrX:    (width - 1) / 2,
		ctrY:    (height - 1) / 2,
		varying: varying,
	}, nil
}

func (k *AnalyticKernel) Dimensions() (int, int) { return k.width, k.height }
func (k *AnalyticKernel) Center() (int, int) { return k.ctrX, k.ctrY }
func (k *AnalyticKernel) IsSpatiallyVarying() bool { return k.varying }

func (k *AnalyticKernel) ComputeImage(dst *Image, doNormalize bool, x, y float64) (float64, error) {
	if err := checkKernelImage(dst, k.width, k.height); err != nil {
		return 0, err
	}
	sum := 0.0
	i := 0
	for ky := 0; ky < k.height; ky++ {
		dy := float64(ky - k.ctrY)
		for kx := 0; kx < k.width; kx++ {
			w := k.fn(float64(kx-k.ctrX), dy, x, y)
			dst.Pix[i] = w
			sum += w
			i++
		}
	}
	if doNormalize {
		for i := range dst.Pix {
			dst.Pix[i] /= sum
		}
	}
	return sum, nil
}

// --- SeparableKernel ---

// Function1 computes one 1-D kernel weight at offset t from the anchor,
// evaluated at parent position (x, y) (ignored by non-varying kernels).
type Function1 func(t, x, y float64) float64

// SeparableKernel is a kernel whose dense weights are the outer product of a
// row vector and a column vector, each produced by a 1-D function.
type SeparableKernel struct {
	xFunc, yFunc  Function1
	width, height int
	ctrX, ctrY    int
	varying       bool
}

// NewSeparableKernel builds a separable kernel with anchor
// ((width-1)/2, (height-1)/2).
func NewSeparableKernel(width, height int, varying bool, xFunc, yFunc Function1) (*SeparableKernel, error) {
	if err := checkKernelGeometry(width, height, (width-1)/2, (height-1)/2); err != nil {
		return nil, err
	}
	if xFunc == nil || yFunc == nil {
		return nil, errors.New("nil kernel function")
	}
	return &SeparableKernel{
		xFunc:   xFunc,
		yFunc:   yFunc,
		width:   width,
		height:  height,
		ctrX:    (width - 1) / 2,
		ctrY:    (height - 1) / 2,
		varying: varying,
	}, nil
}

// NewGaussianKernel returns a non-varying separable gaussian kernel of half
// width halfWidth (full size 2*halfWidth+1 on a side). The weights are the
// raw gaussian values; convolve with DoNormalize to get a unit-sum kernel.
func NewGaussianKernel(halfWidth int, sigmaX, sigmaY float64) (*SeparableKernel, error) {
	if halfWidth < 0 || sigmaX <= 0 || sigmaY <= 0 {
		return nil, errors.Errorf("bad gaussian parameters: halfWidth=%d sigma=(%g, %g)", halfWidth, sigmaX, sigmaY)
	}
	gauss := func(sigma float64) Function1 {
		return func(t, _, _ float64) float64 {
			u := t / sigma
			return math.Exp(-0.5 * u * u)
		}
	}
	size := 2*halfWidth + 1
	return NewSeparableKernel(size, size, false, gauss(sigmaX), gauss(sigmaY))
}

func (k *SeparableKernel) Dimensions() (int, int) { return k.width, k.height }
func (k *SeparableKernel) Center() (int, int) { return k.ctrX, k.ctrY }
func (k *SeparableKernel) IsSpatiallyVarying() bool { return k.varying }

// ComputeVectors fills the row and column weight vectors evaluated at parent
// position (x, y) and returns the dense kernel sum (sum of the outer
// product) before normalization. If doNormalize is true each vector is
// divided by its own sum, so the outer product sums to one.
func (k *SeparableKernel) ComputeVectors(xw, yw []float64, doNormalize bool, x, y float64) (float64, error) {
	if len(xw) != k.width || len(yw) != k.height {
		return 0, errors.Errorf("weight vector lengths (%d, %d) != (%d, %d) = kernel dimensions",
			len(xw), len(yw), k.width, k.height)
	}
	sumX := 0.0
	for i := range xw {
		xw[i] = k.xFunc(float64(i-k.ctrX), x, y)
		sumX += xw[i]
	}
	sumY := 0.0
	for i := range yw {
		yw[i] = k.yFunc(float64(i-k.ctrY), x, y)
		sumY += yw[i]
	}
	if doNormalize {
		for i := range xw {
			xw[i] /= sumX
		}
		for i := range yw {
			yw[i] /= sumY
		}
	}
	return sumX * sumY, nil
}

func (k *SeparableKernel) ComputeImage(dst *Image, doNormalize bool, x, y float64) (float64, error) {
	if err := checkKernelImage(dst, k.width, k.height); err != nil {
		return 0, err
	}
	xw := make([]float64, k.width)
	yw := make([]float64, k.height)
	sum, err := k.ComputeVectors(xw, yw, doNormalize, x, y)
	if err != nil {
		return 0, err
	}
	i := 0
	for _, wy := range yw {
		for _, wx := range xw {
			dst.Pix[i] = wx * wy
			i++
		}
	}
	return sum, nil
}

// --- LinearCombinationKernel ---

// LinearCombinationKernel expresses a kernel as a weighted sum of fixed basis
// kernels. The weights are either constants or spatial coefficient
// functions; in the latter case the kernel is spatially varying and
// ConvolveLinear can convolve once per basis instead of once per pixel.
type LinearCombinationKernel struct {
	basis       []Kernel
	basisImages []*Image
	funcs       []SpatialFunction
	coeffs      []float64

	width, height int
	ctrX, ctrY    int
}

func newLinearCombination(basis []Kernel) (*LinearCombinationKernel, error) {
	if len(basis) == 0 {
		return nil, errors.New("empty basis kernel list")
	}
	w0, h0 := basis[0].Dimensions()
	cx0, cy0 := basis[0].Center()
	k := &LinearCombinationKernel{
		basis:  basis,
		width:  w0,
		height: h0,
		ctrX:   cx0,
		ctrY:   cy0,
	}
	for i, b := range basis {
		if b.IsSpatiallyVarying() {
			return nil, errors.Errorf("basis kernel %d is spatially varying", i)
		}
		w, h := b.Dimensions()
		cx, cy := b.Center()
		if w != w0 || h != h0 || cx != cx0 || cy != cy0 {
			return nil, errors.Errorf("basis kernel %d geometry (%d, %d) center (%d, %d) differs from basis kernel 0",
				i, w, h, cx, cy)
		}
		img := NewImage(w, h)
		if _, err := b.ComputeImage(img, false, 0, 0); err != nil {
			return nil, err
		}
		k.basisImages = append(k.basisImages, img)
	}
	return k, nil
}

// NewLinearCombinationKernel builds a non-varying combination of the basis
// kernels with constant coefficients.
func NewLinearCombinationKernel(basis []Kernel, coeffs []float64) (*LinearCombinationKernel, error) {
	if len(coeffs) != len(basis) {
		return nil, errors.Errorf("got %d coefficients for %d basis kernels", len(coeffs), len(basis))
	}
	k, err := newLinearCombination(basis)
	if err != nil {
		return nil, err
	}
	k.coeffs = append([]float64(nil), coeffs...)
	return k, nil
}

// NewSpatiallyVaryingLinearCombinationKernel builds a spatially varying
// combination: coefficient i at position (x, y) is funcs[i](x, y).
func NewSpatiallyVaryingLinearCombinationKernel(basis []Kernel, funcs []SpatialFunction) (*LinearCombinationKernel, error) {
	if len(funcs) != len(basis) {
		return nil, errors.Errorf("got %d spatial functions for %d basis kernels", len(funcs), len(basis))
	}
	k, err := newLinearCombination(basis)
	if err != nil {
		return nil, err
	}
	k.funcs = append([]SpatialFunction(nil), funcs...)
	return k, nil
}

// NumBasisKernels returns the number of basis kernels.
func (k *LinearCombinationKernel) NumBasisKernels() int { return len(k.basis) }

// BasisKernel returns basis kernel i.
func (k *LinearCombinationKernel) BasisKernel(i int) Kernel { return k.basis[i] }

// CoefficientAt returns the weight of basis kernel i at parent position (x, y).
func (k *LinearCombinationKernel) CoefficientAt(i int, x, y float64) float64 {
	if k.funcs != nil {
		return k.funcs[i](x, y)
	}
	return k.coeffs[i]
}

func (k *LinearCombinationKernel) Dimensions() (int, int) { return k.width, k.height }
func (k *LinearCombinationKernel) Center() (int, int) { return k.ctrX, k.ctrY }
func (k *LinearCombinationKernel) IsSpatiallyVarying() bool { return k.funcs != nil }

func (k *LinearCombinationKernel) ComputeImage(dst *Image, doNormalize bool, x, y float64) (float64, error) {
	if err := checkKernelImage(dst, k.width, k.height); err != nil {
		return 0, err
	}
	for i := range dst.Pix {
		dst.Pix[i] = 0
	}
	for i, img := range k.basisImages {
		c := k.CoefficientAt(i, x, y)
		for j, w := range img.Pix {
			dst.Pix[j] += c * w
		}
	}
	sum := 0.0
	for _, w := range dst.Pix {
		sum += w
	}
	if doNormalize {
		for i := range dst.Pix {
			dst.Pix[i] /= sum
		}
	}
	return sum, nil
}
