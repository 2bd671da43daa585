/*
Image planes
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

import "github.com/pkg/errors"

// MaskPixel is one pixel of a mask plane: a bitset of pixel conditions.
type MaskPixel uint16

// Mask plane bits.
const (
	// MaskBad marks a pixel that is known to be broken.
	MaskBad MaskPixel = 1 << iota
	// MaskSaturated marks a pixel at or above the saturation level.
	MaskSaturated
	// MaskInterpolated marks a pixel whose value was interpolated over.
	MaskInterpolated
	// MaskEdge marks a pixel whose value could not be computed because the
	// kernel footprint would extend off the source image.
	MaskEdge
)

// Image is a dense 2-D pixel plane with an integer origin offset, optionally
// accompanied by a mask plane and a variance plane of the same geometry.
//
// Pixels are stored row-major: the pixel at local index (x, y) lives at
// Pix[x + y*Width]. Local index (0, 0) corresponds to the parent position
// (X0, Y0); spatially varying kernels and coordinate transforms always work
// in parent positions.
type Image struct {
	Pix      []float64
	Mask     []MaskPixel // nil unless the image carries a mask plane
	Variance []float64   // nil unless the image carries a variance plane

	Width  int
	Height int
	X0     int
	Y0     int
}

// NewImage returns a zero-filled image with only a pixel plane.
func NewImage(width, height int) *Image {
	return &Image{
		Pix:    make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// NewMaskedImage returns a zero-filled image carrying mask and variance
// planes in addition to the pixel plane.
func NewMaskedImage(width, height int) *Image {
	im := NewImage(width, height)
	im.Mask = make([]MaskPixel, width*height)
	im.Variance = make([]float64, width*height)
	return im
}

// HasMask reports whether the image carries a mask plane.
func (im *Image) HasMask() bool { return im.Mask != nil }

// HasVariance reports whether the image carries a variance plane.
func (im *Image) HasVariance() bool { return im.Variance != nil }

func (im *Image) offset(x, y int) int { return x + y*im.Width }

// At returns the pixel value at local index (x, y).
func (im *Image) At(x, y int) float64 { return im.Pix[x+y*im.Width] }

// Set stores the pixel value at local index (x, y).
func (im *Image) Set(x, y int, v float64) { im.Pix[x+y*im.Width] = v }

// MaskAt returns the mask value at local index (x, y); zero if the image has
// no mask plane.
func (im *Image) MaskAt(x, y int) MaskPixel {
	if im.Mask == nil {
		return 0
	}
	return im.Mask[x+y*im.Width]
}

// VarianceAt returns the variance value at local index (x, y); zero if the
// image has no variance plane.
func (im *Image) VarianceAt(x, y int) float64 {
	if im.Variance == nil {
		return 0
	}
	return im.Variance[x+y*im.Width]
}

// SameDimensions reports whether im and other have equal width and height.
// Origins are not compared.
func (im *Image) SameDimensions(other *Image) bool {
	return im.Width == other.Width && im.Height == other.Height
}

// Fill sets every pixel of the pixel plane to v.
func (im *Image) Fill(v float64) {
	for i := range im.Pix {
		im.Pix[i] = v
	}
}

// Clone returns a deep copy of the image and whatever planes it carries.
func (im *Image) Clone() *Image {
	out := &Image{
		Pix:    append([]float64(nil), im.Pix...),
		Width:  im.Width,
		Height: im.Height,
		X0:     im.X0,
		Y0:     im.Y0,
	}
	if im.Mask != nil {
		out.Mask = append([]MaskPixel(nil), im.Mask...)
	}
	if im.Variance != nil {
		out.Variance = append([]float64(nil), im.Variance...)
	}
	return out
}

// CopyRegionFrom copies the rectangle of width w and height h at local index
// (x, y) from src into the same rectangle of im. The pixel plane is always
// copied; the mask and variance planes are copied when both images carry
// them. orMask, if nonzero, is OR'd into the copied mask pixels.
//
// Copying a rectangle twice is idempotent apart from repeating the OR, which
// has no further effect.
func (im *Image) CopyRegionFrom(src *Image, x, y, w, h int, orMask MaskPixel) error {
	if x < 0 || y < 0 || x+w > im.Width || y+h > im.Height {
		return errors.Errorf("region (%d, %d) + (%d, %d) not contained in (%d, %d) image",
			x, y, w, h, im.Width, im.Height)
	}
	if !im.SameDimensions(src) {
		return errors.Errorf("destination dimensions (%d, %d) != (%d, %d) = source dimensions",
			im.Width, im.Height, src.Width, src.Height)
	}
	copyMask := im.Mask != nil && src.Mask != nil
	copyVar := im.Variance != nil && src.Variance != nil
	for j := y; j < y+h; j++ {
		row := j * im.Width
		copy(im.Pix[row+x:row+x+w], src.Pix[row+x:row+x+w])
		if copyVar {
			copy(im.Variance[row+x:row+x+w], src.Variance[row+x:row+x+w])
		}
		if copyMask {
			copy(im.Mask[row+x:row+x+w], src.Mask[row+x:row+x+w])
			if orMask != 0 {
				for i := row + x; i < row+x+w; i++ {
					im.Mask[i] |= orMask
				}
			}
		} else if orMask != 0 && im.Mask != nil {
			for i := row + x; i < row+x+w; i++ {
				im.Mask[i] |= orMask
			}
		}
	}
	return nil
}

// copyPixFrom overwrites the pixel plane of im with that of src.
// Both images must have identical dimensions; only used on kernel-sized
// working images, so the check is a plain panic guard via slice copy.
func (im *Image) copyPixFrom(src *Image) {
	copy(im.Pix, src.Pix)
}

// addPix adds the pixel plane of src to that of im, element by element.
func (im *Image) addPix(src *Image) {
	for i, v := range src.Pix {
		im.Pix[i] += v
	}
}

// ScaledPlus sets dst = c1*im1 + c2*im2 over the pixel planes. The three
// images must have identical dimensions.
func ScaledPlus(dst *Image, c1 float64, im1 *Image, c2 float64, im2 *Image) error {
	if !dst.SameDimensions(im1) || !dst.SameDimensions(im2) {
		return errors.Errorf("ScaledPlus dimensions differ: dst (%d, %d), im1 (%d, %d), im2 (%d, %d)",
			dst.Width, dst.Height, im1.Width, im1.Height, im2.Width, im2.Height)
	}
	for i := range dst.Pix {
		dst.Pix[i] = c1*im1.Pix[i] + c2*im2.Pix[i]
	}
	return nil
}
