package rimage

import (
	"testing"

	"go.viam.com/test"
)

func TestColorMapKnownValues(t *testing.T) {
	palette := ColorMap(256)
	test.That(t, palette, test.ShouldHaveLength, 256)
	test.That(t, palette[0], test.ShouldResemble, RGB{0, 0, 0})
	test.That(t, palette[1], test.ShouldResemble, RGB{128, 0, 0})
	test.That(t, palette[2], test.ShouldResemble, RGB{0, 128, 0})
	test.That(t, palette[3], test.ShouldResemble, RGB{128, 128, 0})
	test.That(t, palette[4], test.ShouldResemble, RGB{0, 0, 128})
	test.That(t, palette[8], test.ShouldResemble, RGB{64, 0, 0})
	test.That(t, palette[15], test.ShouldResemble, RGB{192, 128, 128})
	test.That(t, palette[255], test.ShouldResemble, RGB{224, 224, 192})

	// every class gets its own color
	seen := map[RGB]bool{}
	for _, c := range palette {
		test.That(t, seen[c], test.ShouldBeFalse)
		seen[c] = true
	}
}

func TestColorMapSizes(t *testing.T) {
	test.That(t, ColorMap(0), test.ShouldBeEmpty)
	test.That(t, ColorMap(-3), test.ShouldBeEmpty)
	test.That(t, NormalizedColorMap(0), test.ShouldBeEmpty)

	for _, n := range []int{1, 2, 21, 300} {
		palette := ColorMap(n)
		test.That(t, palette, test.ShouldHaveLength, n)
		test.That(t, palette[0], test.ShouldResemble, RGB{})
		// the palette is a prefix of any longer palette
		test.That(t, ColorMap(n+5)[:n], test.ShouldResemble, palette)
	}
}

func TestColorMapDeterministic(t *testing.T) {
	test.That(t, ColorMap(40), test.ShouldResemble, ColorMap(40))
	test.That(t, NormalizedColorMap(40), test.ShouldResemble, NormalizedColorMap(40))
}

func TestNormalizedColorMap(t *testing.T) {
	raw := ColorMap(64)
	normalized := NormalizedColorMap(64)
	test.That(t, normalized, test.ShouldHaveLength, len(raw))
	for i, c := range raw {
		test.That(t, normalized[i][0], test.ShouldAlmostEqual, float64(c.R)/255.0, 1e-9)
		test.That(t, normalized[i][1], test.ShouldAlmostEqual, float64(c.G)/255.0, 1e-9)
		test.That(t, normalized[i][2], test.ShouldAlmostEqual, float64(c.B)/255.0, 1e-9)
		for _, v := range normalized[i] {
			test.That(t, v, test.ShouldBeBetweenOrEqual, 0, 1)
		}
	}
}

func TestPaletteLookupAndHex(t *testing.T) {
	palette := ColorMap(2)
	c, ok := palette.Lookup(1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c, test.ShouldResemble, RGB{128, 0, 0})

	_, ok = palette.Lookup(2)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = palette.Lookup(-1)
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, palette.Hex(0), test.ShouldEqual, "#000000")
	test.That(t, palette.Hex(1), test.ShouldEqual, "#800000")
	test.That(t, palette.Hex(7), test.ShouldEqual, "")
}
