package camera

import (
	"context"
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gocv.io/x/gocv"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/transport"
)

func TestNewSource(t *testing.T) {
	logger := logging.NewTestLogger(t)
	bus := transport.NewBus(logger)
	defer bus.Close()

	_, err := NewSource(Config{Topic: "/camera/color"}, bus, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewSource(Config{Source: "0"}, bus, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestToMessage(t *testing.T) {
	logger := logging.NewTestLogger(t)
	source, err := NewSource(Config{Source: "0", Topic: "/camera/color", FrameID: "camera_left"}, nil, logger)
	test.That(t, err, test.ShouldBeNil)

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 2, 3, gocv.MatTypeCV8UC3)
	defer img.Close()
	msg, err := source.toMessage(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.Width, test.ShouldEqual, 3)
	test.That(t, msg.Height, test.ShouldEqual, 2)
	test.That(t, msg.Header.Seq, test.ShouldEqual, 1)
	test.That(t, msg.Header.FrameID, test.ShouldEqual, "camera_left")
	test.That(t, msg.Data[:3], test.ShouldResemble, []byte{10, 20, 30})

	gray := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8U)
	defer gray.Close()
	_, err = source.toMessage(gray)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunMissingFile(t *testing.T) {
	logger := logging.NewTestLogger(t)
	source, err := NewSource(Config{Source: filepath.Join(t.TempDir(), "missing.mp4"), Topic: "/camera/color"}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, source.Run(context.Background()), test.ShouldNotBeNil)
}
