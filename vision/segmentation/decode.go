package segmentation

import (
	"go.viam.com/semseg/rimage"
)

// Decode renders a label map as a BGR frame of the same size, painting each pixel with the
// palette color of its class. See DecodeWithStats for how invalid labels are handled.
func Decode(labels *LabelMap, numClasses int, palette rimage.Palette) *rimage.Frame {
	frame, _ := DecodeWithStats(labels, numClasses, palette)
	return frame
}

// DecodeWithStats is Decode that also reports how many pixels had a label outside
// [0, min(numClasses, len(palette))). Those pixels are painted as class 0.
func DecodeWithStats(labels *LabelMap, numClasses int, palette rimage.Palette) (*rimage.Frame, int) {
	frame := rimage.NewFrame(labels.Width, labels.Height)
	valid := numClasses
	if len(palette) < valid {
		valid = len(palette)
	}
	var background rimage.RGB
	if len(palette) > 0 {
		background = palette[0]
	}

	invalid := 0
	for i, label := range labels.Labels {
		c := background
		if int(label) >= 0 && int(label) < valid {
			c = palette[label]
		} else {
			invalid++
		}
		j := i * 3
		frame.Pix[j], frame.Pix[j+1], frame.Pix[j+2] = c.B, c.G, c.R
	}
	return frame, invalid
}
