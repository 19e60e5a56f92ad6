package search

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

func TestEnumerateDeterministicOrder(t *testing.T) {
	grid := Grid{
		NumNeurons:     []int{16, 32},
		EmbeddingSizes: []int{8},
		NumHeads:       []int{2, 4},
		LearningRates:  []float64{0.001},
	}

	combos := grid.Enumerate()
	require.Len(t, combos, 4)
	assert.Equal(t, models.HyperParams{NumNeurons: 16, EmbeddingSize: 8, NumHeads: 2, LearningRate: 0.001}, combos[0])
	assert.Equal(t, models.HyperParams{NumNeurons: 16, EmbeddingSize: 8, NumHeads: 4, LearningRate: 0.001}, combos[1])
	assert.Equal(t, models.HyperParams{NumNeurons: 32, EmbeddingSize: 8, NumHeads: 2, LearningRate: 0.001}, combos[2])

	// Same grid, same order.
	assert.Equal(t, combos, grid.Enumerate())
}

func TestDefaultGridSize(t *testing.T) {
	assert.Len(t, DefaultGrid().Enumerate(), 4*4*4*2)
}

func TestGridValidate(t *testing.T) {
	grid := DefaultGrid()
	grid.NumHeads = nil
	assert.ErrorIs(t, grid.Validate(), models.ErrConfig)
}

func smallGrid() Grid {
	return Grid{
		NumNeurons:     []int{16, 32},
		EmbeddingSizes: []int{8},
		NumHeads:       []int{2},
		LearningRates:  []float64{0.001},
	}
}

func TestRunSelectsBestByRocAUC(t *testing.T) {
	scores := []float64{0.6, 0.9}
	run := func(trial int, hp models.HyperParams) (models.Metrics, error) {
		return models.Metrics{RocAUC: scores[trial]}, nil
	}

	result, err := Run(smallGrid(), run, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Best.Trial)
	assert.InDelta(t, 0.9, result.Best.Metrics.RocAUC, 1e-12)
	assert.Len(t, result.Outcomes, 2)
}

func TestRunTieKeepsEarlierTrial(t *testing.T) {
	run := func(trial int, hp models.HyperParams) (models.Metrics, error) {
		return models.Metrics{RocAUC: 0.7}, nil
	}
	result, err := Run(smallGrid(), run, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Best.Trial)
}

func TestRunExcludesFailedTrials(t *testing.T) {
	run := func(trial int, hp models.HyperParams) (models.Metrics, error) {
		if trial == 0 {
			return models.Metrics{}, models.TrainingErrorf("non-finite loss")
		}
		return models.Metrics{RocAUC: 0.4}, nil
	}

	result, err := Run(smallGrid(), run, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Best.Trial)
	require.Len(t, result.Outcomes, 2)
	assert.True(t, result.Outcomes[0].Failed)
	assert.False(t, result.Outcomes[1].Failed)
}

func TestRunAbortsOnNonTrainingError(t *testing.T) {
	run := func(trial int, hp models.HyperParams) (models.Metrics, error) {
		return models.Metrics{}, models.DataErrorf("shape mismatch")
	}
	_, err := Run(smallGrid(), run, zerolog.Nop())
	assert.ErrorIs(t, err, models.ErrData)
}

func TestRunAllTrialsFailed(t *testing.T) {
	run := func(trial int, hp models.HyperParams) (models.Metrics, error) {
		return models.Metrics{}, models.TrainingErrorf("boom")
	}
	_, err := Run(smallGrid(), run, zerolog.Nop())
	assert.ErrorIs(t, err, models.ErrTraining)
}
