// Package search runs an exhaustive hyperparameter grid search: trials are
// enumerated deterministically, executed sequentially, and the trial with
// the highest ROC-AUC wins.
package search

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

// Grid defines the search space, one axis per hyperparameter.
type Grid struct {
	NumNeurons     []int
	EmbeddingSizes []int
	NumHeads       []int
	LearningRates  []float64
}

// DefaultGrid returns the standard search space.
func DefaultGrid() Grid {
	return Grid{
		NumNeurons:     []int{16, 32, 64, 128},
		EmbeddingSizes: []int{8, 16, 32, 64},
		NumHeads:       []int{2, 4, 8, 16},
		LearningRates:  []float64{0.001, 0.0005},
	}
}

// Validate checks that every axis has at least one value.
func (g Grid) Validate() error {
	if len(g.NumNeurons) == 0 || len(g.EmbeddingSizes) == 0 ||
		len(g.NumHeads) == 0 || len(g.LearningRates) == 0 {
		return models.ConfigErrorf("search grid has an empty axis")
	}
	return nil
}

// Enumerate lists every hyperparameter combination in deterministic order:
// nested loops over the axes in declaration order.
func (g Grid) Enumerate() []models.HyperParams {
	out := make([]models.HyperParams, 0,
		len(g.NumNeurons)*len(g.EmbeddingSizes)*len(g.NumHeads)*len(g.LearningRates))
	for _, nn := range g.NumNeurons {
		for _, es := range g.EmbeddingSizes {
			for _, nh := range g.NumHeads {
				for _, lr := range g.LearningRates {
					out = append(out, models.HyperParams{
						NumNeurons:    nn,
						EmbeddingSize: es,
						NumHeads:      nh,
						LearningRate:  lr,
					})
				}
			}
		}
	}
	return out
}

// TrialFunc runs one trial and returns its final metrics.
type TrialFunc func(trial int, hp models.HyperParams) (models.Metrics, error)

// Outcome is the result of one trial.
type Outcome struct {
	Trial   int                `json:"trial"`
	Params  models.HyperParams `json:"params"`
	Metrics models.Metrics     `json:"metrics"`
	Failed  bool               `json:"failed"`
}

// Result holds all trial outcomes and the winning one.
type Result struct {
	Best     Outcome   `json:"best"`
	Outcomes []Outcome `json:"outcomes"`
}

// Run executes every grid combination sequentially. A trial failing with
// ErrTraining is recorded as failed and excluded from selection; a repeat
// would reproduce the same failure, so there is no retry. Any other error
// aborts the search. Ties on ROC-AUC keep the earlier trial.
func Run(grid Grid, run TrialFunc, logger zerolog.Logger) (*Result, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	combos := grid.Enumerate()
	logger.Info().Int("trials", len(combos)).Msg("Starting grid search")

	result := &Result{Outcomes: make([]Outcome, 0, len(combos))}
	bestIdx := -1

	for trial, hp := range combos {
		logger.Info().Int("trial", trial).Str("params", hp.String()).Msg("Running trial")

		metrics, err := run(trial, hp)
		if err != nil {
			if errors.Is(err, models.ErrTraining) {
				logger.Warn().Int("trial", trial).Err(err).Msg("Trial failed, excluding from selection")
				result.Outcomes = append(result.Outcomes, Outcome{Trial: trial, Params: hp, Failed: true})
				continue
			}
			return nil, fmt.Errorf("trial %d failed: %w", trial, err)
		}

		result.Outcomes = append(result.Outcomes, Outcome{Trial: trial, Params: hp, Metrics: metrics})
		logger.Info().Int("trial", trial).Float64("roc_auc", metrics.RocAUC).Msg("Trial completed")

		if bestIdx == -1 || metrics.RocAUC > result.Outcomes[bestIdx].Metrics.RocAUC {
			bestIdx = len(result.Outcomes) - 1
		}
	}

	if bestIdx == -1 {
		return nil, models.TrainingErrorf("all %d trials failed", len(combos))
	}
	result.Best = result.Outcomes[bestIdx]

	logger.Info().
		Int("trial", result.Best.Trial).
		Str("params", result.Best.Params.String()).
		Float64("roc_auc", result.Best.Metrics.RocAUC).
		Msg("Grid search completed")

	return result, nil
}
