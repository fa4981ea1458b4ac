// Package main dumps the images of one rosbag topic as PNG files, named after their headers so
// they line up with what the node records.
package main

import (
	"os"

	"github.com/pkg/errors"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/ros"
	"go.viam.com/semseg/transport"
)

var logger = logging.NewDebugLogger("rosbag_parser")

func main() {
	err := realMain(os.Args[1:])
	if err != nil {
		logger.Fatal(err)
	}
}

func realMain(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: rosbag_parser <bag> <image topic> [output dir]")
	}
	filename, topic := args[0], args[1]
	outDir := "."
	if len(args) > 2 {
		outDir = args[2]
	}

	rb, err := ros.ReadBag(filename)
	if err != nil {
		return err
	}
	msgs, err := ros.ImageMessagesForTopic(rb, topic)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return errors.Errorf("no images on topic %q", topic)
	}

	recorder, err := transport.NewRecorder(outDir, logger)
	if err != nil {
		return err
	}
	for i := range msgs {
		path, err := recorder.Save(&msgs[i].Data)
		if err != nil {
			return errors.Wrapf(err, "message %d", i)
		}
		logger.Debugw("saved", "path", path)
	}
	logger.Infow("done", "topic", topic, "images", recorder.Saved())
	return nil
}
