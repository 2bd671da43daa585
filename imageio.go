/*
Standard image interop
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
	stdimage "image"

	"golang.org/x/image/draw"
)

// FromImage extracts the luminance of an image.Image into a pixel plane with
// values in [0, 1]. The plane origin follows the image bounds, so a sub-image
// keeps its parent coordinates.
func FromImage(src stdimage.Image) *Image {
	b := src.Bounds()
	gray := stdimage.NewGray16(b)
	draw.Copy(gray, b.Min, src, b, draw.Src, nil)

	im := NewImage(b.Dx(), b.Dy())
	im.X0, im.Y0 = b.Min.X, b.Min.Y
	const maxValue = float64(0xffff)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			im.Pix[i] = float64(gray.Gray16At(x, y).Y) / maxValue
			i++
		}
	}
	return im
}

// ToGray renders the pixel plane as an 8-bit grayscale image, clamping
// values to [0, 1]. The image bounds reproduce the plane's parent
// coordinates.
func (im *Image) ToGray() *stdimage.Gray {
	b := stdimage.Rect(im.X0, im.Y0, im.X0+im.Width, im.Y0+im.Height)
	gray := stdimage.NewGray(b)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := im.Pix[i]
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			gray.Pix[gray.PixOffset(x, y)] = uint8(v*255 + 0.5)
			i++
		}
	}
	return gray
}
