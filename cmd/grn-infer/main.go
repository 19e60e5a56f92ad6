package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/grn-inference-service/pkg/config"
	"github.com/gilchrisn/grn-inference-service/pkg/pipeline"
)

func main() {
	configPath := flag.String("config", "config.json", "path to configuration file")
	tune := flag.Bool("tune", false, "force grid-search mode regardless of config")
	flag.Parse()

	// Bootstrap logging before config so load failures are visible.
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.New()
	if err := cfg.LoadFromFile(*configPath); err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}
	if *tune {
		cfg.Set("search.tune_hyperparameters", true)
	}

	logger := cfg.CreateLogger()
	logger.Info().
		Str("dataset", cfg.Dataset()).
		Str("mode", string(cfg.Mode())).
		Int("epochs", cfg.NumEpochs()).
		Msg("Starting GRN inference")

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}

	start := time.Now()
	metrics, err := p.Run()
	if err != nil {
		logger.Fatal().Err(err).Msg("Pipeline run failed")
	}

	logger.Info().
		Str("run_id", p.RunID()).
		Float64("roc_auc", metrics.RocAUC).
		Float64("precision", metrics.Precision).
		Float64("recall", metrics.Recall).
		Float64("f1", metrics.F1).
		Float64("epr", metrics.EPR).
		Float64("accuracy", metrics.Accuracy).
		Int("ground_truth_edges", metrics.NumGroundTruthEdges).
		Dur("total_time", time.Since(start)).
		Msg("GRN inference finished")
}
