// Package main runs the semantic perception node.
package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/semseg/config"
	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/node"
	"go.viam.com/semseg/transport"
	"go.viam.com/semseg/transport/camera"
	"go.viam.com/semseg/web"
)

const (
	flagParams    = "params"
	flagParam     = "param"
	flagDebug     = "debug"
	flagLogFile   = "log-file"
	flagBag       = "bag"
	flagBagTopic  = "bag-topic"
	flagRate      = "rate"
	flagLoop      = "loop"
	flagCamera    = "camera"
	flagFrameID   = "frame-id"
	flagWatchDir  = "watch-dir"
	flagRecordDir = "record-dir"
	flagPprof     = "pprof"
)

var logger = logging.NewLogger("semseg")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	return newApp(logger).RunContext(ctx, args)
}

func newApp(logger logging.Logger) *cli.App {
	return &cli.App{
		Name:  "semseg",
		Usage: "segment a color image topic and publish the colorized label map",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagParams,
				Aliases:  []string{"p"},
				Usage:    "load parameters from `FILE`",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  flagParam,
				Usage: "override a parameter, as /name=value",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated",
			},
			&cli.StringFlag{
				Name:  flagBag,
				Usage: "replay the images of a rosbag onto the input topic",
			},
			&cli.StringFlag{
				Name:  flagBagTopic,
				Usage: "image topic to read from the bag; defaults to the input topic",
			},
			&cli.Float64Flag{
				Name:  flagRate,
				Value: 1,
				Usage: "bag replay rate, 0 for as fast as possible",
			},
			&cli.BoolFlag{
				Name:  flagLoop,
				Usage: "replay the bag forever",
			},
			&cli.StringFlag{
				Name:  flagCamera,
				Usage: "capture the input from a camera index, video file or stream URL",
			},
			&cli.StringFlag{
				Name:  flagFrameID,
				Value: "camera_color_optical_frame",
				Usage: "frame id stamped on captured and watched images",
			},
			&cli.StringFlag{
				Name:  flagWatchDir,
				Usage: "publish every image file written into `DIR`",
			},
			&cli.StringFlag{
				Name:  flagRecordDir,
				Usage: "save every segmented image into `DIR`; overrides /semantic_pcl/record_dir",
			},
			&cli.BoolFlag{
				Name:  flagPprof,
				Usage: "serve the runtime profiler under /debug/pprof/",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c, logger)
		},
	}
}

func run(c *cli.Context, logger logging.Logger) (err error) {
	config.InitLoggingSettings(logger, c.Bool(flagDebug))
	logging.ReplaceGlobal(logger)
	if path := c.String(flagLogFile); path != "" {
		appender := logging.NewFileAppender(path, 100, 3)
		logger.AddAppender(appender)
		defer func() {
			err = multierr.Combine(err, appender.Close())
		}()
	}

	conf, err := config.Read(c.String(flagParams), c.StringSlice(flagParam), logger)
	if err != nil {
		return err
	}
	config.UpdateParamsDebug(conf.Node.Debug)
	if c.String(flagBag) == "" && c.String(flagCamera) == "" && c.String(flagWatchDir) == "" {
		return errors.New("no image source given, use --bag, --camera or --watch-dir")
	}
	if dir := c.String(flagRecordDir); dir != "" {
		conf.Node.RecordDir = dir
	}

	registry := logging.NewRegistry()
	sublogger := func(name string) logging.Logger {
		l := logger.Sublogger(name)
		registry.Register(name, l)
		return l
	}
	nodeLogger := sublogger("node")
	webLogger := sublogger("web")
	transportLogger := sublogger("transport")

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	bus := transport.NewBus(transportLogger)
	defer bus.Close()

	g, gctx := errgroup.WithContext(ctx)
	srv := web.NewServer(web.Options{Address: conf.WebAddress(), Pprof: c.Bool(flagPprof)}, registry, webLogger)
	g.Go(func() error {
		return srv.Serve(gctx, nil)
	})
	watched := bus.Subscribe(node.OutputTopic)
	g.Go(func() error {
		return srv.Watch(gctx, watched)
	})

	n, err := node.New(gctx, conf, bus, srv, nodeLogger)
	if err != nil {
		cancel()
		return multierr.Combine(err, g.Wait())
	}
	defer func() {
		err = multierr.Combine(err, n.Close(context.Background()))
	}()
	srv.SetStatsProvider(n)

	if conf.Node.RecordDir != "" {
		recorder, err := transport.NewRecorder(conf.Node.RecordDir, transportLogger.Sublogger("recorder"))
		if err != nil {
			cancel()
			return multierr.Combine(err, g.Wait())
		}
		recorded := bus.Subscribe(node.OutputTopic)
		g.Go(func() error {
			return recorder.Run(gctx, recorded)
		})
	}

	if err := startSources(gctx, g, c, conf, bus, transportLogger); err != nil {
		cancel()
		return multierr.Combine(err, g.Wait())
	}

	g.Go(func() error {
		return n.Run(gctx)
	})
	return g.Wait()
}

func startSources(
	ctx context.Context,
	g *errgroup.Group,
	c *cli.Context,
	conf *config.Config,
	bus *transport.Bus,
	logger logging.Logger,
) error {
	topic := conf.Node.ColorImageTopic
	if path := c.String(flagBag); path != "" {
		bagTopic := c.String(flagBagTopic)
		if bagTopic == "" {
			bagTopic = topic
		}
		player, err := transport.NewBagPlayer(transport.BagPlayerConfig{
			Path:         path,
			Topic:        bagTopic,
			PublishTopic: topic,
			Rate:         c.Float64(flagRate),
			Loop:         c.Bool(flagLoop),
		}, bus, logger.Sublogger("bag"))
		if err != nil {
			return err
		}
		g.Go(func() error {
			return player.Run(ctx)
		})
	}
	if source := c.String(flagCamera); source != "" {
		cam, err := camera.NewSource(camera.Config{
			Source:  source,
			Topic:   topic,
			FrameID: c.String(flagFrameID),
			Width:   conf.CameraWidth,
			Height:  conf.CameraHeight,
		}, bus, logger.Sublogger("camera"))
		if err != nil {
			return err
		}
		g.Go(func() error {
			return cam.Run(ctx)
		})
	}
	if dir := c.String(flagWatchDir); dir != "" {
		watcher, err := transport.NewDirSource(dir, topic, c.String(flagFrameID), bus, logger.Sublogger("dir"))
		if err != nil {
			return err
		}
		g.Go(func() error {
			return watcher.Run(ctx, nil)
		})
	}
	return nil
}
