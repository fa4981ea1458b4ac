package rimage

import (
	"github.com/lucasb-eyer/go-colorful"
)

// RGB is one palette entry.
type RGB struct {
	R, G, B uint8
}

// Palette maps a class id (the index) to a display color.
type Palette []RGB

// ColorMap returns the PASCAL VOC color map for n classes. Colors depend only on the class index:
// the low three bits of the index are spread over the top bit of r, g and b, the next three bits
// over the next bit, and so on. Class 0 is always black.
func ColorMap(n int) Palette {
	if n < 0 {
		n = 0
	}
	palette := make(Palette, n)
	for i := 0; i < n; i++ {
		var r, g, b uint8
		c := i
		for j := 0; j < 8; j++ {
			r |= bitget(c, 0) << (7 - j)
			g |= bitget(c, 1) << (7 - j)
			b |= bitget(c, 2) << (7 - j)
			c >>= 3
		}
		palette[i] = RGB{R: r, G: g, B: b}
	}
	return palette
}

// NormalizedColorMap returns ColorMap(n) with every channel divided by 255.
func NormalizedColorMap(n int) [][3]float64 {
	palette := ColorMap(n)
	out := make([][3]float64, len(palette))
	for i, c := range palette {
		out[i] = [3]float64{float64(c.R) / 255.0, float64(c.G) / 255.0, float64(c.B) / 255.0}
	}
	return out
}

func bitget(val, idx int) uint8 {
	return uint8((val >> idx) & 1)
}

// Lookup returns the color of class id, and false when the id is outside the palette.
func (p Palette) Lookup(id int) (RGB, bool) {
	if id < 0 || id >= len(p) {
		return RGB{}, false
	}
	return p[id], true
}

// Hex renders the color of class id as "#rrggbb".
func (p Palette) Hex(id int) string {
	c, ok := p.Lookup(id)
	if !ok {
		return ""
	}
	return colorful.Color{R: float64(c.R) / 255.0, G: float64(c.G) / 255.0, B: float64(c.B) / 255.0}.Hex()
}
