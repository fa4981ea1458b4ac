package segmentation

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/semseg/rimage"
)

func TestDecodeAllBackground(t *testing.T) {
	labels := NewLabelMap(320, 240)
	frame := Decode(labels, NumClasses, rimage.ColorMap(NumClasses))
	test.That(t, frame.Width, test.ShouldEqual, 320)
	test.That(t, frame.Height, test.ShouldEqual, 240)
	test.That(t, frame.Pix, test.ShouldHaveLength, 240*320*3)
	for _, v := range frame.Pix {
		if v != 0 {
			t.Fatalf("expected an all black frame, found %d", v)
		}
	}
}

func TestDecodeUniform(t *testing.T) {
	palette := rimage.ColorMap(21)
	for _, class := range []int16{1, 2, 15} {
		labels := NewLabelMap(7, 5)
		for i := range labels.Labels {
			labels.Labels[i] = class
		}
		frame := Decode(labels, 21, palette)
		want := palette[class]
		for y := 0; y < frame.Height; y++ {
			for x := 0; x < frame.Width; x++ {
				b, g, r := frame.BGR(x, y)
				test.That(t, rimage.RGB{R: r, G: g, B: b}, test.ShouldResemble, want)
			}
		}
	}
}

func TestDecodeChannelOrder(t *testing.T) {
	labels := NewLabelMap(2, 1)
	labels.Set(1, 0, 1)
	frame := Decode(labels, NumClasses, rimage.ColorMap(NumClasses))
	// class 1 is (128, 0, 0) in RGB, so red lands in the third byte
	test.That(t, frame.Pix, test.ShouldResemble, []uint8{0, 0, 0, 0, 0, 128})
}

func TestDecodeInvalidLabels(t *testing.T) {
	labels, err := NewLabelMapFromSlice(4, 1, []int16{1, 2, -1, 0})
	test.That(t, err, test.ShouldBeNil)

	frame, invalid := DecodeWithStats(labels, NumClasses, rimage.ColorMap(NumClasses))
	test.That(t, invalid, test.ShouldEqual, 2)
	test.That(t, frame.Pix, test.ShouldResemble, []uint8{
		0, 0, 128,
		0, 0, 0,
		0, 0, 0,
		0, 0, 0,
	})

	// a palette shorter than the class count bounds the valid range too
	_, invalid = DecodeWithStats(labels, 5, rimage.ColorMap(2))
	test.That(t, invalid, test.ShouldEqual, 2)

	// without a palette everything is black
	frame, invalid = DecodeWithStats(labels, NumClasses, nil)
	test.That(t, invalid, test.ShouldEqual, 4)
	test.That(t, frame.Pix, test.ShouldResemble, make([]uint8, 12))
}

func TestLabelMapHelpers(t *testing.T) {
	_, err := NewLabelMapFromSlice(2, 2, []int16{0})
	test.That(t, err, test.ShouldNotBeNil)

	labels := NewLabelMap(3, 2)
	labels.Set(2, 1, 1)
	labels.Set(0, 0, 1)
	test.That(t, labels.At(2, 1), test.ShouldEqual, 1)
	test.That(t, labels.Count(1), test.ShouldEqual, 2)
	test.That(t, labels.Count(0), test.ShouldEqual, 4)

	conf := NewConfidenceMap(2, 1)
	test.That(t, conf.Mean(), test.ShouldEqual, 0)
	conf.Values[0], conf.Values[1] = 0.25, 0.75
	test.That(t, conf.At(1, 0), test.ShouldEqual, float32(0.75))
	test.That(t, conf.Mean(), test.ShouldAlmostEqual, 0.5)
	test.That(t, (&ConfidenceMap{}).Mean(), test.ShouldEqual, 0)
}
