/*
Package doc
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

// Package convolve implements image convolution with spatially varying
// kernels and flux-conserving geometric resampling ("warping").
//
// The central operation is [Convolve]: every output pixel becomes a weighted
// sum of an input neighborhood under a [Kernel]. Kernels come in a closed set
// of shapes - dense ([FixedKernel], [AnalyticKernel]), single-pixel
// ([DeltaFunctionKernel]), separable ([SeparableKernel]) and basis-decomposed
// ([LinearCombinationKernel]) - and the convolver dispatches once per call to
// the cheapest algorithm that reproduces the exact result.
//
// For kernels that vary smoothly with image position two shortcuts exist:
// [ConvolveWithInterpolation] evaluates the kernel only at the corners of
// rectangular sub-regions and bilinearly interpolates the weights in between,
// and [ConvolveLinear] convolves once per basis kernel of a
// [LinearCombinationKernel] instead of rebuilding the kernel at every pixel.
//
// [WarpImage] resamples an image from one pixel grid onto another, with the
// grids related through a pair of [Wcs] coordinate transforms, using a
// separable sub-pixel interpolation kernel and a per-pixel flux-conservation
// scale factor.
package convolve
