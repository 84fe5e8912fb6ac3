// Command prism runs the compositor with a demo projection setup: two
// generated layers composited onto a canvas that is split across two
// edge-blended projector screens.
//
// By default it opens a window driven by Ebitengine and shows the canvas;
// keys 1-9 show a screen output and 0 returns to the canvas. With -headless
// it renders a fixed number of ticks on the CPU, writes screenshots and
// prints a status report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/phanxgames/prism"
)

type cliConfig struct {
	configPath string
	width      int
	height     int
	fps        int
	tempo      float64
	overlap    float64
	headless   bool
	frames     int
	outDir     string
	loadPath   string
	savePath   string
	logLevel   string
	debug      bool
}

func parseFlags() *cliConfig {
	c := &cliConfig{}
	flag.StringVar(&c.configPath, "config", "", "JSON engine config file")
	flag.IntVar(&c.width, "width", 0, "canvas width (overrides config)")
	flag.IntVar(&c.height, "height", 0, "canvas height (overrides config)")
	flag.IntVar(&c.fps, "fps", 0, "target ticks per second (overrides config)")
	flag.Float64Var(&c.tempo, "tempo", 0, "tempo in BPM (overrides config)")
	flag.Float64Var(&c.overlap, "overlap", 0.1, "projector overlap as a fraction of the canvas width")
	flag.BoolVar(&c.headless, "headless", false, "render on the CPU without a window")
	flag.IntVar(&c.frames, "frames", 120, "ticks to render in headless mode")
	flag.StringVar(&c.outDir, "out", "", "directory for headless screenshots")
	flag.StringVar(&c.loadPath, "load", "", "snapshot to load instead of the demo scene")
	flag.StringVar(&c.savePath, "save", "", "write a snapshot of the final model to this file")
	flag.StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.BoolVar(&c.debug, "debug", false, "log per-tick timing")
	flag.Parse()
	return c
}

// engineConfig merges the config file, defaults and flag overrides.
func (c *cliConfig) engineConfig() (prism.Config, error) {
	cfg := prism.DefaultConfig()
	if c.configPath != "" {
		var err error
		if cfg, err = prism.LoadConfig(c.configPath); err != nil {
			return cfg, err
		}
	}
	if c.width > 0 {
		cfg.Width = c.width
	}
	if c.height > 0 {
		cfg.Height = c.height
	}
	if c.fps > 0 {
		cfg.TargetFPS = c.fps
	}
	if c.tempo > 0 {
		cfg.Tempo = c.tempo
	}
	return cfg, cfg.Validate()
}

func setupLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l, nil
}

func main() {
	cli := parseFlags()

	logger, err := setupLogger(cli.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(2)
	}
	prism.SetLogger(logger)

	cfg, err := cli.engineConfig()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cli.headless {
		err = runHeadless(ctx, cli, cfg)
	} else {
		err = runWindow(ctx, cli, cfg)
	}
	if err != nil {
		logger.WithError(err).Fatal("prism exited")
	}
}

// buildScene loads a snapshot or sets up the demo scene.
func buildScene(ctx context.Context, eng *prism.Engine, cli *cliConfig) error {
	if cli.loadPath != "" {
		data, err := os.ReadFile(cli.loadPath)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		_, err = apply(ctx, eng, prism.LoadSnapshot{Data: data})
		return err
	}
	return demoScene(ctx, eng, cli.overlap)
}

// saveSnapshot writes the engine model to path when set.
func saveSnapshot(eng *prism.Engine, path string) error {
	if path == "" {
		return nil
	}
	data, err := eng.Snapshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	prism.Logger().WithField("path", path).Info("snapshot saved")
	return nil
}
