// README: Predictor API entry point; serves the rule-based leave-time model on POST /predict.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	httptransport "commute/internal/http"
	"commute/internal/logging"
	"commute/internal/prediction"
)

type predictorConfig struct {
	Addr     string `envconfig:"ADDR" default:":8090"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	_ = godotenv.Load()
	var cfg predictorConfig
	if err := envconfig.Process("PREDICTOR", &cfg); err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := httptransport.NewPredictorRouter(prediction.NewHeuristicModel(nil), logger)
	if err := httptransport.NewServer(cfg.Addr, router, logger).Run(ctx); err != nil {
		logger.Error("predictor-api stopped", "error", err)
		os.Exit(1)
	}
}
