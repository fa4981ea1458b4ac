package rimage

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// 16-bit samples are 8-bit samples scaled by 257 (0xff -> 0xffff).
const eightToSixteen = 257.0

// ResizeToFloat resamples a frame to width x height with an anti-aliased bilinear filter and
// returns the result in floating point, keeping the 0-255 value range and the BGR channel
// order. The resampling runs at 16-bit precision so fractional values survive the resize.
func ResizeToFloat(frame *Frame, width, height int) (*FloatImage, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid target size %dx%d", width, height)
	}
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, errors.New("cannot resize an empty frame")
	}

	// Channels are carried through the R, G and B slots untouched, so BGR stays BGR.
	wide := image.NewRGBA64(frame.Bounds())
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			b, g, r := frame.BGR(x, y)
			wide.SetRGBA64(x, y, color.RGBA64{
				R: uint16(b) * eightToSixteen,
				G: uint16(g) * eightToSixteen,
				B: uint16(r) * eightToSixteen,
				A: 0xffff,
			})
		}
	}

	resized := resize.Resize(uint(width), uint(height), wide, resize.Bilinear)
	out := &FloatImage{Width: width, Height: height, Channels: 3, Pix: make([]float32, width*height*3)}
	bounds := resized.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA64Model.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.RGBA64)
			i := (y*width + x) * 3
			out.Pix[i] = float32(c.R) / eightToSixteen
			out.Pix[i+1] = float32(c.G) / eightToSixteen
			out.Pix[i+2] = float32(c.B) / eightToSixteen
		}
	}
	return out, nil
}
