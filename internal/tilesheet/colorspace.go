package tilesheet

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// srgbToLinear maps an 8-bit sRGB channel value to 16-bit linear light.
var srgbToLinear [256]uint16

func init() {
	for i := range srgbToLinear {
		c := float64(i) / 255
		var l float64
		if c <= 0.04045 {
			l = c / 12.92
		} else {
			l = math.Pow((c+0.055)/1.055, 2.4)
		}
		srgbToLinear[i] = uint16(math.Round(l * 0xffff))
	}
}

func linearToSRGB(l float64) uint8 {
	if l <= 0 {
		return 0
	}
	if l >= 1 {
		return 0xff
	}
	var s float64
	if l <= 0.0031308 {
		s = l * 12.92
	} else {
		s = 1.055*math.Pow(l, 1/2.4) - 0.055
	}
	return uint8(math.Round(s * 0xff))
}

// ToLinear decodes an sRGB image into a premultiplied linear-light image whose
// bounds start at the origin.
func ToLinear(img image.Image) *image.RGBA64 {
	b := img.Bounds()
	out := image.NewRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			a := uint32(c.A) * 0x101
			out.SetRGBA64(x-b.Min.X, y-b.Min.Y, color.RGBA64{
				R: uint16(uint32(srgbToLinear[c.R]) * a / 0xffff),
				G: uint16(uint32(srgbToLinear[c.G]) * a / 0xffff),
				B: uint16(uint32(srgbToLinear[c.B]) * a / 0xffff),
				A: uint16(a),
			})
		}
	}
	return out
}

// ToSRGB encodes a premultiplied linear-light image back to straight-alpha sRGB.
func ToSRGB(lin *image.RGBA64) *image.NRGBA {
	b := lin.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := lin.RGBA64At(x, y)
			if c.A == 0 {
				continue
			}
			a := float64(c.A)
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, color.NRGBA{
				R: linearToSRGB(float64(c.R) / a),
				G: linearToSRGB(float64(c.G) / a),
				B: linearToSRGB(float64(c.B) / a),
				A: uint8((uint32(c.A)*0xff + 0x7fff) / 0xffff),
			})
		}
	}
	return out
}

// Resize resamples lin to size×size. The input is returned unchanged when it
// already has that size.
func Resize(lin *image.RGBA64, size int) *image.RGBA64 {
	b := lin.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return lin
	}
	dst := image.NewRGBA64(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), lin, b, xdraw.Src, nil)
	return dst
}
