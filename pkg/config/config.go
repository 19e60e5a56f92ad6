// Package config manages pipeline configuration using Viper, with sensible
// defaults and environment-variable overrides.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

// Config wraps a viper instance with typed getters.
type Config struct {
	v *viper.Viper
}

// New creates a configuration with defaults.
func New() *Config {
	v := viper.New()

	// Data and output paths
	v.SetDefault("data.expr_file", "")
	v.SetDefault("data.network_file", "")
	v.SetDefault("data.dataset", "")
	v.SetDefault("output.run_info_path", "run_info.csv")
	v.SetDefault("output.epoch_info_path", "epoch_info.csv")

	// Model hyperparameters
	v.SetDefault("model.num_neurons", 32)
	v.SetDefault("model.embedding_size", 16)
	v.SetDefault("model.num_heads", 4)
	v.SetDefault("model.dropout", 0.2)

	// Training parameters
	v.SetDefault("training.learning_rate", 0.001)
	v.SetDefault("training.num_epochs", 200)
	v.SetDefault("training.kl_weight", 0.0) // 0 selects 1/numNodes
	v.SetDefault("training.random_seed", int64(42))

	// Graph construction
	v.SetDefault("graph.threshold", 0.5)
	v.SetDefault("graph.noise_factor", 0.1)

	// Evaluation
	v.SetDefault("eval.k_fraction", 0.1)

	// Hyperparameter search
	v.SetDefault("search.tune_hyperparameters", false)
	v.SetDefault("search.num_neurons", []int{16, 32, 64, 128})
	v.SetDefault("search.embedding_size", []int{8, 16, 32, 64})
	v.SetDefault("search.num_heads", []int{2, 4, 8, 16})
	v.SetDefault("search.learning_rate", []float64{0.001, 0.0005})

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_interval", 10)
	v.SetDefault("logging.eval_interval", 50)

	v.SetEnvPrefix("GRN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile reads configuration from a file on top of the defaults.
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Set overrides a configuration value.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Data and output paths
func (c *Config) ExprFile() string      { return c.v.GetString("data.expr_file") }
func (c *Config) NetworkFile() string   { return c.v.GetString("data.network_file") }
func (c *Config) Dataset() string       { return c.v.GetString("data.dataset") }
func (c *Config) RunInfoPath() string   { return c.v.GetString("output.run_info_path") }
func (c *Config) EpochInfoPath() string { return c.v.GetString("output.epoch_info_path") }

// Model hyperparameters
func (c *Config) NumNeurons() int    { return c.v.GetInt("model.num_neurons") }
func (c *Config) EmbeddingSize() int { return c.v.GetInt("model.embedding_size") }
func (c *Config) NumHeads() int      { return c.v.GetInt("model.num_heads") }
func (c *Config) Dropout() float64   { return c.v.GetFloat64("model.dropout") }

// Training parameters
func (c *Config) LearningRate() float64 { return c.v.GetFloat64("training.learning_rate") }
func (c *Config) NumEpochs() int        { return c.v.GetInt("training.num_epochs") }
func (c *Config) KLWeight() float64     { return c.v.GetFloat64("training.kl_weight") }
func (c *Config) RandomSeed() int64     { return c.v.GetInt64("training.random_seed") }

// Graph construction
func (c *Config) Threshold() float64   { return c.v.GetFloat64("graph.threshold") }
func (c *Config) NoiseFactor() float64 { return c.v.GetFloat64("graph.noise_factor") }

// Evaluation
func (c *Config) KFraction() float64 { return c.v.GetFloat64("eval.k_fraction") }

// Search
func (c *Config) TuneHyperparameters() bool { return c.v.GetBool("search.tune_hyperparameters") }
func (c *Config) SearchNumNeurons() []int   { return c.v.GetIntSlice("search.num_neurons") }
func (c *Config) SearchEmbeddingSizes() []int {
	return c.v.GetIntSlice("search.embedding_size")
}
func (c *Config) SearchNumHeads() []int { return c.v.GetIntSlice("search.num_heads") }
func (c *Config) SearchLearningRates() []float64 {
	return toFloat64Slice(c.v.Get("search.learning_rate"))
}

// Logging
func (c *Config) LogLevel() string  { return c.v.GetString("logging.level") }
func (c *Config) LogInterval() int  { return c.v.GetInt("logging.log_interval") }
func (c *Config) EvalInterval() int { return c.v.GetInt("logging.eval_interval") }

// Mode returns the trial mode selected by the tuning flag.
func (c *Config) Mode() models.TrialMode {
	if c.TuneHyperparameters() {
		return models.ModeSearch
	}
	return models.ModeFixed
}

// HyperParams returns the fixed-mode hyperparameter set.
func (c *Config) HyperParams() models.HyperParams {
	return models.HyperParams{
		NumNeurons:    c.NumNeurons(),
		EmbeddingSize: c.EmbeddingSize(),
		NumHeads:      c.NumHeads(),
		LearningRate:  c.LearningRate(),
	}
}

// Validate checks value ranges. Violations surface as ErrConfig and abort
// startup.
func (c *Config) Validate() error {
	switch {
	case c.ExprFile() == "":
		return models.ConfigErrorf("data.expr_file is required")
	case c.NetworkFile() == "":
		return models.ConfigErrorf("data.network_file is required")
	case c.NumNeurons() <= 0:
		return models.ConfigErrorf("model.num_neurons must be positive, got %d", c.NumNeurons())
	case c.EmbeddingSize() <= 0:
		return models.ConfigErrorf("model.embedding_size must be positive, got %d", c.EmbeddingSize())
	case c.NumHeads() < 1:
		return models.ConfigErrorf("model.num_heads must be at least 1, got %d", c.NumHeads())
	case c.Dropout() < 0 || c.Dropout() >= 1:
		return models.ConfigErrorf("model.dropout %v outside [0,1)", c.Dropout())
	case c.LearningRate() <= 0:
		return models.ConfigErrorf("training.learning_rate must be positive, got %v", c.LearningRate())
	case c.NumEpochs() <= 0:
		return models.ConfigErrorf("training.num_epochs must be positive, got %d", c.NumEpochs())
	case c.Threshold() < 0 || c.Threshold() > 1:
		return models.ConfigErrorf("graph.threshold %v outside [0,1]", c.Threshold())
	case c.NoiseFactor() < 0 || c.NoiseFactor() > 1:
		return models.ConfigErrorf("graph.noise_factor %v outside [0,1]", c.NoiseFactor())
	case c.KFraction() < 0 || c.KFraction() > 1:
		return models.ConfigErrorf("eval.k_fraction %v outside [0,1]", c.KFraction())
	}
	return nil
}

// CreateLogger creates a zerolog logger based on config.
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Str("service", "grn-infer").Logger()
}

// toFloat64Slice converts viper's decoded slice forms into []float64.
func toFloat64Slice(raw interface{}) []float64 {
	switch vs := raw.(type) {
	case []float64:
		return vs
	case []interface{}:
		out := make([]float64, 0, len(vs))
		for _, v := range vs {
			switch x := v.(type) {
			case float64:
				out = append(out, x)
			case float32:
				out = append(out, float64(x))
			case int:
				out = append(out, float64(x))
			case int64:
				out = append(out, float64(x))
			}
		}
		return out
	default:
		return nil
	}
}
