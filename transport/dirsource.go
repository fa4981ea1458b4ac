package transport

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/rimage"
	"go.viam.com/semseg/ros"
)

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// DirSource publishes every image file that appears in a directory, stamped with the time it
// was read. Files are best moved into the directory once complete; a file caught half written
// fails to decode, is logged, and is picked up again on its next write.
type DirSource struct {
	dir     string
	topic   string
	frameID string
	pub     Publisher
	logger  logging.Logger
	seq     uint32
}

// NewDirSource watches dir and publishes on topic with the given frame id.
func NewDirSource(dir, topic, frameID string, pub Publisher, logger logging.Logger) (*DirSource, error) {
	if dir == "" || topic == "" {
		return nil, errors.New("directory source needs a directory and a topic")
	}
	return &DirSource{dir: dir, topic: topic, frameID: frameID, pub: pub, logger: logger}, nil
}

// Run watches the directory until ctx is done. ready, if not nil, is closed once the watch is
// in place.
func (s *DirSource) Run(ctx context.Context, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot create file watcher")
	}
	defer goutils.UncheckedErrorFunc(watcher.Close)
	if err := watcher.Add(s.dir); err != nil {
		return errors.Wrapf(err, "cannot watch %q", s.dir)
	}
	s.logger.Infow("watching directory for images", "dir", s.dir, "topic", s.topic)
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warnw("file watcher error", "error", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !imageExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			if err := s.publishFile(ctx, event.Name); err != nil {
				s.logger.Debugw("skipping image file", "path", event.Name, "error", err)
			}
		}
	}
}

func (s *DirSource) publishFile(ctx context.Context, path string) error {
	img, err := imaging.Open(path)
	if err != nil {
		return err
	}
	s.seq++
	msg, err := ros.FrameToImage(rimage.NewFrameFromImage(img), ros.Header{
		Seq:     s.seq,
		Stamp:   ros.NewTime(time.Now()),
		FrameID: s.frameID,
	})
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, s.topic, msg)
}
