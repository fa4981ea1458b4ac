package ros

import (
	"github.com/pkg/errors"

	"go.viam.com/semseg/rimage"
)

// Image encodings understood by ImageToFrame.
const (
	EncodingBGR8  = "bgr8"
	EncodingRGB8  = "rgb8"
	EncodingBGRA8 = "bgra8"
	EncodingRGBA8 = "rgba8"
	EncodingMono8 = "mono8"
)

// channel offsets of b, g and r within one pixel, for a given encoding.
var encodingLayouts = map[string]struct {
	channels int
	b, g, r  int
}{
	EncodingBGR8:  {3, 0, 1, 2},
	EncodingRGB8:  {3, 2, 1, 0},
	EncodingBGRA8: {4, 0, 1, 2},
	EncodingRGBA8: {4, 2, 1, 0},
	EncodingMono8: {1, 0, 0, 0},
}

// ImageToFrame converts an image message into a tightly packed BGR frame, honoring the row
// stride of the message.
func ImageToFrame(msg *Image) (*rimage.Frame, error) {
	if msg == nil {
		return nil, errors.New("nil image message")
	}
	layout, ok := encodingLayouts[msg.Encoding]
	if !ok {
		return nil, errors.Errorf("unsupported image encoding %q", msg.Encoding)
	}
	width, height := int(msg.Width), int(msg.Height)
	if width == 0 || height == 0 {
		return nil, errors.Errorf("empty image %dx%d", width, height)
	}
	step := int(msg.Step)
	if step == 0 {
		step = width * layout.channels
	}
	if step < width*layout.channels {
		return nil, errors.Errorf("step %d too small for %d %s pixels", step, width, msg.Encoding)
	}
	if len(msg.Data) < step*(height-1)+width*layout.channels {
		return nil, errors.Errorf("image %dx%d with step %d needs %d bytes, got %d",
			width, height, step, step*height, len(msg.Data))
	}

	frame := rimage.NewFrame(width, height)
	for y := 0; y < height; y++ {
		row := msg.Data[y*step:]
		for x := 0; x < width; x++ {
			p := row[x*layout.channels:]
			frame.SetBGR(x, y, p[layout.b], p[layout.g], p[layout.r])
		}
	}
	return frame, nil
}

// FrameToImage wraps a frame in a bgr8 image message with the given header. The frame's pixels
// are shared with the message.
func FrameToImage(frame *rimage.Frame, header Header) (*Image, error) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, errors.New("cannot encode an empty frame")
	}
	if len(frame.Pix) != frame.Width*frame.Height*3 {
		return nil, errors.Errorf("frame %dx%d has %d bytes", frame.Width, frame.Height, len(frame.Pix))
	}
	return &Image{
		Header:   header,
		Height:   uint32(frame.Height),
		Width:    uint32(frame.Width),
		Encoding: EncodingBGR8,
		Step:     uint32(frame.Width * 3),
		Data:     frame.Pix,
	}, nil
}
