// Package camera captures frames from a V4L device, a video file or a stream URL with OpenCV and
// publishes them as bgr8 images.
package camera

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	goutils "go.viam.com/utils"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/rimage"
	"go.viam.com/semseg/ros"
	"go.viam.com/semseg/transport"
)

// Config describes a capture source.
type Config struct {
	// Source is a device index ("0") or a file path / URL.
	Source  string
	Topic   string
	FrameID string
	// Width and Height request a capture size; zero keeps the device default.
	Width  int
	Height int
}

// Source reads frames from OpenCV and publishes them.
type Source struct {
	conf   Config
	pub    transport.Publisher
	logger logging.Logger
	seq    uint32
}

// NewSource validates conf; the device is opened by Run.
func NewSource(conf Config, pub transport.Publisher, logger logging.Logger) (*Source, error) {
	if conf.Source == "" || conf.Topic == "" {
		return nil, errors.New("camera source needs a source and a topic")
	}
	return &Source{conf: conf, pub: pub, logger: logger}, nil
}

func (s *Source) open() (*gocv.VideoCapture, error) {
	if id, err := strconv.Atoi(s.conf.Source); err == nil {
		return gocv.OpenVideoCapture(id)
	}
	return gocv.OpenVideoCapture(s.conf.Source)
}

// Run captures until ctx is done or the source ends. Empty reads are skipped.
func (s *Source) Run(ctx context.Context) error {
	capture, err := s.open()
	if err != nil {
		return errors.Wrapf(err, "error opening video capture %q", s.conf.Source)
	}
	defer goutils.UncheckedErrorFunc(capture.Close)
	if s.conf.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(s.conf.Width))
	}
	if s.conf.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(s.conf.Height))
	}
	s.logger.Infow("capturing", "source", s.conf.Source, "topic", s.conf.Topic)

	img := gocv.NewMat()
	defer goutils.UncheckedErrorFunc(img.Close)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if ok := capture.Read(&img); !ok {
			return errors.Errorf("failed to read image from %q", s.conf.Source)
		}
		if img.Empty() {
			s.logger.Debug("image is empty")
			continue
		}
		msg, err := s.toMessage(img)
		if err != nil {
			s.logger.Warnw("cannot convert captured image", "error", err)
			continue
		}
		if err := s.pub.Publish(ctx, s.conf.Topic, msg); err != nil {
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			s.logger.Warnw("failed to publish captured image", "error", err)
		}
	}
}

func (s *Source) toMessage(img gocv.Mat) (*ros.Image, error) {
	if img.Channels() != 3 || img.Type() != gocv.MatTypeCV8UC3 {
		return nil, errors.Errorf("expected an 8-bit 3 channel image, got type %v", img.Type())
	}
	frame, err := rimage.NewFrameFromBGR(img.Cols(), img.Rows(), img.ToBytes())
	if err != nil {
		return nil, err
	}
	s.seq++
	return ros.FrameToImage(frame, ros.Header{
		Seq:     s.seq,
		Stamp:   ros.NewTime(time.Now()),
		FrameID: s.conf.FrameID,
	})
}
