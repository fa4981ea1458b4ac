// Package rimage contains the in-memory image types shared by the perception pipeline: 8-bit BGR
// frames, floating point images used as network input, and the class color map.
package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Frame is an 8-bit, 3 channel image stored row-major in BGR channel order, the layout used by
// camera drivers and the `bgr8` transport encoding. Frame implements image.Image so it can be
// handed directly to encoders.
type Frame struct {
	Width  int
	Height int
	// Pix holds Width*Height*3 bytes: B, G, R for each pixel.
	Pix []uint8
}

// NewFrame returns a black frame of the given size.
func NewFrame(width, height int) *Frame {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Frame{Width: width, Height: height, Pix: make([]uint8, width*height*3)}
}

// NewFrameFromBGR wraps an existing BGR buffer. The buffer is not copied.
func NewFrameFromBGR(width, height int, pix []uint8) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return nil, errors.Errorf("frame %dx%d needs %d bytes, got %d", width, height, width*height*3, len(pix))
	}
	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// NewFrameFromImage converts any image into a BGR frame.
func NewFrameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	frame := NewFrame(bounds.Dx(), bounds.Dy())
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			c := color.RGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.RGBA)
			frame.SetBGR(x, y, c.B, c.G, c.R)
		}
	}
	return frame
}

func (f *Frame) offset(x, y int) int {
	return (y*f.Width + x) * 3
}

// BGR returns the channels of the pixel at (x, y).
func (f *Frame) BGR(x, y int) (b, g, r uint8) {
	i := f.offset(x, y)
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// SetBGR sets the channels of the pixel at (x, y).
func (f *Frame) SetBGR(x, y int, b, g, r uint8) {
	i := f.offset(x, y)
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = b, g, r
}

// ColorModel implements image.Image.
func (f *Frame) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// At implements image.Image.
func (f *Frame) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return color.RGBA{}
	}
	b, g, r := f.BGR(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	pix := make([]uint8, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// FloatImage is a height x width x channels image of float32 samples in interleaved (HWC) order.
type FloatImage struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32
}

// At returns the sample of channel c at (x, y).
func (fi *FloatImage) At(x, y, c int) float32 {
	return fi.Pix[(y*fi.Width+x)*fi.Channels+c]
}
