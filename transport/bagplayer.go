package transport

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/ros"
)

// Publisher publishes image messages on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *ros.Image) error
}

// BagPlayerConfig describes a rosbag replay.
type BagPlayerConfig struct {
	Path string
	// Topic is the image topic to read from the bag.
	Topic string
	// PublishTopic defaults to Topic.
	PublishTopic string
	// Rate scales the recorded timing; 1 replays in real time and 0 as fast as possible.
	Rate float64
	Loop bool
}

// BagPlayer replays the images of one bag topic onto a publisher, keeping the recorded headers.
type BagPlayer struct {
	conf   BagPlayerConfig
	pub    Publisher
	logger logging.Logger
}

// NewBagPlayer returns a player; nothing is read until Run.
func NewBagPlayer(conf BagPlayerConfig, pub Publisher, logger logging.Logger) (*BagPlayer, error) {
	if conf.Path == "" || conf.Topic == "" {
		return nil, errors.New("bag player needs a bag path and a topic")
	}
	if conf.Rate < 0 {
		return nil, errors.Errorf("invalid replay rate %v", conf.Rate)
	}
	if conf.PublishTopic == "" {
		conf.PublishTopic = conf.Topic
	}
	return &BagPlayer{conf: conf, pub: pub, logger: logger}, nil
}

// Run reads the bag and publishes its images until the bag ends (or, when looping, until ctx
// is done).
func (p *BagPlayer) Run(ctx context.Context) error {
	rb, err := ros.ReadBag(p.conf.Path)
	if err != nil {
		return err
	}
	msgs, err := ros.ImageMessagesForTopic(rb, p.conf.Topic)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return errors.Errorf("bag %q has no images on %s", p.conf.Path, p.conf.Topic)
	}
	p.logger.Infow("replaying bag", "path", p.conf.Path, "topic", p.conf.Topic, "messages", len(msgs))
	for {
		if err := p.play(ctx, msgs); err != nil {
			return err
		}
		if !p.conf.Loop {
			return nil
		}
	}
}

func (p *BagPlayer) play(ctx context.Context, msgs []ros.ImageMessage) error {
	var prev time.Time
	for i := range msgs {
		msg := &msgs[i].Data
		stamp := msg.Header.Stamp.Time()
		if p.conf.Rate > 0 && i > 0 {
			if gap := stamp.Sub(prev); gap > 0 {
				if !goutils.SelectContextOrWait(ctx, time.Duration(float64(gap)/p.conf.Rate)) {
					return ctx.Err()
				}
			}
		}
		prev = stamp
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.pub.Publish(ctx, p.conf.PublishTopic, msg); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			p.logger.Warnw("failed to publish bag image", "seq", msg.Header.Seq, "error", err)
		}
	}
	return nil
}
