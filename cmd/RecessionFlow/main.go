package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"recessionflow/config"
	"recessionflow/logger"
	"recessionflow/pipeline"
	"recessionflow/processor"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return 1
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		return 1
	}

	log.WithEnv("APP_ENV", "AWS_REGION").WithFields(logger.Fields{
		"service":     cfg.RecessionFlow.Name,
		"version":     cfg.RecessionFlow.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting recessionflow")

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := pipeline.NewFromConfig(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Failed to build pipeline")
		return 1
	}

	res, err := runner.Run(ctx)
	if cerr := runner.Close(); cerr != nil {
		log.WithError(cerr).Warn("failed to close storage")
	}
	if err != nil {
		var shapeErr *processor.ShapeError
		if errors.As(err, &shapeErr) {
			log.WithError(err).Error("series catalogue does not have the expected shape")
		} else {
			log.WithError(err).Error("run failed")
		}
		return 1
	}

	if res.ScoreErr != nil {
		log.WithError(res.ScoreErr).Warn("run finished without risk records")
		return 0
	}

	if n := len(res.Records); n > 0 {
		latest := res.Records[n-1]
		log.WithFields(logger.Fields{
			"date":        latest.Date.Format("2006-01-02"),
			"level":       latest.Level,
			"probability": latest.Probability,
		}).Info("latest recession risk")
	}
	return 0
}
