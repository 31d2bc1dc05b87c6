package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/screenwatch/internal/capture"
	"github.com/zsiec/screenwatch/internal/config"
	"github.com/zsiec/screenwatch/internal/device"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/gamestate"
	"github.com/zsiec/screenwatch/internal/gamestate/gauge"
	"github.com/zsiec/screenwatch/internal/health"
	"github.com/zsiec/screenwatch/internal/logger"
	"github.com/zsiec/screenwatch/internal/monitor"
	"github.com/zsiec/screenwatch/internal/server"
	"github.com/zsiec/screenwatch/internal/sink"
	"github.com/zsiec/screenwatch/pkg/version"
)

func main() {
	var (
		configPath  string
		serial      string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&serial, "serial", "", "Device serial (overrides device.serial)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if serial != "" {
		cfg.Device.Serial = serial
	}

	rootLog, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Service(rootLog)

	log.WithField("version", version.GetInfo().Short()).Info("Starting screenwatch")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	if err := run(ctx, cancel, cfg, rootLog, log); err != nil {
		log.WithError(err).Error("screenwatch exited with error")
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}

// run wires the pipeline and blocks until ctx is cancelled or the monitor
// loop runs out of frames.
func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, rootLog *logrus.Logger, log logger.Logger) error {
	var (
		source capture.Source
		adb    *device.ADB
	)
	if cfg.Device.ReplayFile != "" {
		log.WithField("file", cfg.Device.ReplayFile).Info("Replaying recorded stream")
		source = device.NewFileSource(cfg.Device.ReplayFile, log)
	} else {
		var err error
		adb, err = device.NewADB(&cfg.Device, log)
		if err != nil {
			return err
		}
		source = adb
	}

	session, err := capture.NewSession(source, &cfg.Capture, log)
	if err != nil {
		return err
	}

	cal, err := gauge.CalibrationFromConfig(&cfg.Capture, &cfg.Gauge)
	if err != nil {
		return fmt.Errorf("gauge calibration: %w", err)
	}
	gaugeDetector, err := gauge.NewDetector(cal, log)
	if err != nil {
		return err
	}

	sinks := sink.Multi{sink.NewLogSink(log)}
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = sink.NewRedisClient(&cfg.Redis)
		defer func() {
			if err := rdb.Close(); err != nil {
				log.WithError(err).Error("Failed to close Redis connection")
			}
		}()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis is not reachable yet, publishing will be retried per record")
		} else {
			log.Info("Connected to Redis successfully")
		}
		sinks = append(sinks, sink.NewRedisPublisher(rdb, cfg.Redis.KeyPrefix, cfg.Redis.StateTTL, log))
	}

	defer func() {
		if err := sinks.Close(); err != nil {
			log.WithError(err).Warn("Failed to close sinks")
		}
	}()

	store := monitor.NewStore()
	runner, err := monitor.NewRunner(session, []gamestate.Detector{gaugeDetector}, store, sinks, &cfg.Monitor, log)
	if err != nil {
		return err
	}

	if err := session.Start(ctx, cfg.Device.Serial); err != nil {
		return err
	}
	defer func() {
		if err := session.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop capture session")
		}
	}()

	serverDone := make(chan error, 1)
	if cfg.Server.Enabled {
		healthMgr := health.NewManager(log)
		registerHealthChecks(healthMgr, cfg, adb, session, rdb)

		srv := server.New(&cfg.Server, &cfg.Metrics, rootLog, healthMgr, store, session)
		go func() { serverDone <- srv.Start(ctx) }()
	} else {
		close(serverDone)
	}

	runErr := runner.Run(ctx)
	switch {
	case runErr == nil:
	case apperrors.IsType(runErr, apperrors.ErrorTypeFrameUnavailable):
		log.WithError(runErr).Warn("Frame stream ended")
		runErr = nil
	default:
		log.WithError(runErr).Error("Monitor stopped")
	}

	cancel()
	if err := <-serverDone; err != nil {
		log.WithError(err).Error("Status server error")
	}
	return runErr
}

func registerHealthChecks(mgr *health.Manager, cfg *config.Config, adb *device.ADB, session *capture.Session, rdb *redis.Client) {
	if cfg.Capture.Codec == "h264" {
		mgr.Register(health.NewFFmpegChecker(cfg.Capture.FFmpegPath))
	}
	if adb != nil {
		mgr.Register(health.NewADBChecker(adb))
	}
	if rdb != nil {
		mgr.Register(health.NewRedisChecker(rdb))
	}
	mgr.Register(health.NewCaptureChecker(session))
}
