package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/ros"
)

// Recorder writes every image it receives to a directory as PNG, named after the header so
// recordings line up with the input stream.
type Recorder struct {
	dir    string
	logger logging.Logger
	saved  atomic.Uint64
}

// NewRecorder creates dir if needed.
func NewRecorder(dir string, logger logging.Logger) (*Recorder, error) {
	if dir == "" {
		return nil, errors.New("recorder needs a directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "cannot create record directory %q", dir)
	}
	return &Recorder{dir: dir, logger: logger}, nil
}

// FileName returns the name an image is stored under.
func FileName(header ros.Header) string {
	return fmt.Sprintf("%06d_%d.%09d.png", header.Seq, header.Stamp.Secs, header.Stamp.Nsecs)
}

// Save writes one image and returns its path.
func (r *Recorder) Save(msg *ros.Image) (string, error) {
	frame, err := ros.ImageToFrame(msg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.dir, FileName(msg.Header))
	if err := imaging.Save(frame, path); err != nil {
		return "", errors.Wrapf(err, "cannot save %q", path)
	}
	r.saved.Inc()
	return path, nil
}

// Saved returns how many images were written.
func (r *Recorder) Saved() uint64 {
	return r.saved.Load()
}

// Run saves the images of sub until ctx is done or sub is closed. Failed saves are logged and
// skipped.
func (r *Recorder) Run(ctx context.Context, sub *Subscription) error {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		path, err := r.Save(msg)
		if err != nil {
			r.logger.Warnw("failed to record image", "seq", msg.Header.Seq, "error", err)
			continue
		}
		r.logger.Debugw("recorded image", "path", path)
	}
}
