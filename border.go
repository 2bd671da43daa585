/*
Border filling
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

// CopyBorder copies the source pixels into the border of dst that
// convolution with kernel cannot compute: a bottom strip of height equal to
// the kernel's y anchor, a top strip of height kernelHeight-1-anchor, and
// left/right strips sized by the x anchor spanning the rows in between.
// The bottom and top strips span the full width, so the corners are written
// once; writing them from two strips would be idempotent anyway.
//
// edgeMask, if nonzero, is OR'd into the mask plane of every border pixel
// (ignored when dst has no mask plane).
func CopyBorder(dst, src *Image, kernel Kernel, edgeMask MaskPixel) error {
	if err := checkConvolution(dst, src, kernel); err != nil {
		return err
	}
	kw, kh := kernel.Dimensions()
	ctrX, ctrY := kernel.Center()
	width, height := dst.Width, dst.Height

	// bottom strip: full width, kernel anchor rows
	if err := dst.CopyRegionFrom(src, 0, 0, width, ctrY, edgeMask); err != nil {
		return err
	}
	// top strip: full width, remaining kernel rows
	topHeight := kh - 1 - ctrY
	if err := dst.CopyRegionFrom(src, 0, height-topHeight, width, topHeight, edgeMask); err != nil {
		return err
	}
	// left and right strips between the two
	midHeight := height + 1 - kh
	if err := dst.CopyRegionFrom(src, 0, ctrY, ctrX, midHeight, edgeMask); err != nil {
		return err
	}
	rightWidth := kw - 1 - ctrX
	return dst.CopyRegionFrom(src, width-rightWidth, ctrY, rightWidth, midHeight, edgeMask)
}
