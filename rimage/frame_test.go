package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestNewFrameFromBGR(t *testing.T) {
	_, err := NewFrameFromBGR(0, 2, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewFrameFromBGR(2, 2, make([]uint8, 11))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "needs 12 bytes")

	frame, err := NewFrameFromBGR(2, 1, []uint8{1, 2, 3, 4, 5, 6})
	test.That(t, err, test.ShouldBeNil)
	b, g, r := frame.BGR(1, 0)
	test.That(t, []uint8{b, g, r}, test.ShouldResemble, []uint8{4, 5, 6})
}

func TestFrameImageInterface(t *testing.T) {
	frame := NewFrame(3, 2)
	frame.SetBGR(2, 1, 10, 20, 30)

	test.That(t, frame.Bounds(), test.ShouldResemble, image.Rect(0, 0, 3, 2))
	test.That(t, frame.At(2, 1), test.ShouldResemble, color.RGBA{R: 30, G: 20, B: 10, A: 0xff})
	test.That(t, frame.At(0, 0), test.ShouldResemble, color.RGBA{A: 0xff})
	test.That(t, frame.At(5, 5), test.ShouldResemble, color.RGBA{})

	back := NewFrameFromImage(frame)
	test.That(t, back.Pix, test.ShouldResemble, frame.Pix)
}

func TestNewFrameFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(4, 4, 6, 5))
	img.Set(5, 4, color.RGBA{R: 200, G: 100, B: 50, A: 0xff})

	frame := NewFrameFromImage(img)
	test.That(t, frame.Width, test.ShouldEqual, 2)
	test.That(t, frame.Height, test.ShouldEqual, 1)
	b, g, r := frame.BGR(1, 0)
	test.That(t, []uint8{b, g, r}, test.ShouldResemble, []uint8{50, 100, 200})
}

func TestFrameClone(t *testing.T) {
	frame := NewFrame(1, 1)
	frame.SetBGR(0, 0, 1, 2, 3)
	clone := frame.Clone()
	clone.SetBGR(0, 0, 9, 9, 9)

	b, _, _ := frame.BGR(0, 0)
	test.That(t, b, test.ShouldEqual, 1)
}
