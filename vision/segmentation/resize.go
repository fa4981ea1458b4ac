package segmentation

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Labels travel through a 16-bit gray image with this offset so negative ids survive.
const labelOffset = 1 << 15

// ResizeLabels resamples a label map with nearest-neighbour point sampling, so no new label
// values are ever introduced.
func ResizeLabels(labels *LabelMap, width, height int) (*LabelMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid target size %dx%d", width, height)
	}
	if labels.Width <= 0 || labels.Height <= 0 {
		return nil, errors.New("cannot resize an empty label map")
	}
	if labels.Width == width && labels.Height == height {
		out := NewLabelMap(width, height)
		copy(out.Labels, labels.Labels)
		return out, nil
	}

	src := image.NewGray16(image.Rect(0, 0, labels.Width, labels.Height))
	for i, l := range labels.Labels {
		v := uint16(int32(l) + labelOffset)
		src.Pix[2*i], src.Pix[2*i+1] = uint8(v>>8), uint8(v)
	}
	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := NewLabelMap(width, height)
	for i := range out.Labels {
		v := uint16(dst.Pix[2*i])<<8 | uint16(dst.Pix[2*i+1])
		out.Labels[i] = int16(int32(v) - labelOffset)
	}
	return out, nil
}

// ResizeConfidence resamples a confidence map with an anti-aliased bilinear filter.
func ResizeConfidence(conf *ConfidenceMap, width, height int) (*ConfidenceMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid target size %dx%d", width, height)
	}
	if conf.Width <= 0 || conf.Height <= 0 {
		return nil, errors.New("cannot resize an empty confidence map")
	}

	src := image.NewGray16(image.Rect(0, 0, conf.Width, conf.Height))
	for i, c := range conf.Values {
		v := uint16(clamp01(c)*0xffff + 0.5)
		src.Pix[2*i], src.Pix[2*i+1] = uint8(v>>8), uint8(v)
	}
	resized := resize.Resize(uint(width), uint(height), src, resize.Bilinear)
	gray, ok := resized.(*image.Gray16)
	if !ok {
		return nil, errors.Errorf("unexpected resize result %T", resized)
	}

	out := NewConfidenceMap(width, height)
	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < width; x++ {
			v := uint16(row[2*x])<<8 | uint16(row[2*x+1])
			out.Values[y*width+x] = float32(v) / 0xffff
		}
	}
	return out, nil
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
