package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/grn-inference-service/pkg/config"
	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

// writeSyntheticDataset writes a 6-gene expression file with two strongly
// correlated pairs and a matching 2-edge reference network.
func writeSyntheticDataset(t *testing.T, dir string) (exprPath, netPath string) {
	t.Helper()

	expr := "gene,s1,s2,s3,s4,s5,s6,s7,s8\n" +
		"G1,1,2,3,4,5,6,7,8\n" +
		"G2,2,4,6,8,10,12,14,16\n" + // copy of G1 scaled: corr 1 with G1
		"G3,8,1,6,2,7,3,5,4\n" +
		"G4,16,2,12,4,14,6,10,8\n" + // copy of G3 scaled: corr 1 with G3
		"G5,3,1,4,1,5,9,2,6\n" +
		"G6,2,7,1,8,2,8,1,8\n"
	exprPath = filepath.Join(dir, "expr.csv")
	require.NoError(t, os.WriteFile(exprPath, []byte(expr), 0644))

	net := "Gene1,Gene2\n" +
		"G1,G2\n" +
		"G3,G4\n" +
		"G9,G1\n" // unknown endpoint, must be skipped
	netPath = filepath.Join(dir, "network.csv")
	require.NoError(t, os.WriteFile(netPath, []byte(net), 0644))

	return exprPath, netPath
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	exprPath, netPath := writeSyntheticDataset(t, dir)

	cfg := config.New()
	cfg.Set("data.expr_file", exprPath)
	cfg.Set("data.network_file", netPath)
	cfg.Set("data.dataset", "synthetic")
	cfg.Set("output.run_info_path", filepath.Join(dir, "run_info.csv"))
	cfg.Set("output.epoch_info_path", filepath.Join(dir, "epoch_info.csv"))
	cfg.Set("model.num_neurons", 4)
	cfg.Set("model.embedding_size", 2)
	cfg.Set("model.num_heads", 2)
	cfg.Set("model.dropout", 0.0)
	cfg.Set("training.num_epochs", 1)
	cfg.Set("graph.threshold", 0.5)
	cfg.Set("graph.noise_factor", 0.0)
	cfg.Set("eval.k_fraction", 1.0)
	return cfg
}

func TestEndToEndFixedRun(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	p, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, p.RunID())

	metrics, err := p.Run()
	require.NoError(t, err)

	assert.True(t, metrics.RocAUC >= 0 && metrics.RocAUC <= 1, "roc_auc %v outside [0,1]", metrics.RocAUC)
	assert.Equal(t, 6, metrics.NumNodes)
	assert.Equal(t, 2, metrics.NumGroundTruthEdges, "unknown-endpoint edge must be dropped")
	assert.GreaterOrEqual(t, metrics.Precision, 0.0)
	assert.GreaterOrEqual(t, metrics.Recall, 0.0)
	assert.GreaterOrEqual(t, metrics.F1, 0.0)
	assert.GreaterOrEqual(t, metrics.EPR, 0.0)
	assert.True(t, metrics.Accuracy >= 0 && metrics.Accuracy <= 1)

	// Records were persisted.
	runInfo, err := os.ReadFile(filepath.Join(dir, "run_info.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(runInfo), p.RunID())

	epochInfo, err := os.ReadFile(filepath.Join(dir, "epoch_info.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(epochInfo), p.RunID())
}

func TestRunTrialReproducible(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Set("output.run_info_path", "")
	cfg.Set("output.epoch_info_path", "")

	hp := models.HyperParams{NumNeurons: 4, EmbeddingSize: 2, NumHeads: 2, LearningRate: 0.001}

	p1, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	m1, err := p1.RunTrial(3, hp)
	require.NoError(t, err)

	p2, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	m2, err := p2.RunTrial(3, hp)
	require.NoError(t, err)

	assert.Equal(t, m1, m2, "same seed and trial index must reproduce identical metrics")
}

func TestSearchModeRunsGrid(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Set("search.tune_hyperparameters", true)
	cfg.Set("search.num_neurons", []int{2, 4})
	cfg.Set("search.embedding_size", []int{2})
	cfg.Set("search.num_heads", []int{1})
	cfg.Set("search.learning_rate", []float64{0.001})

	p, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	metrics, err := p.Run()
	require.NoError(t, err)
	assert.True(t, metrics.RocAUC >= 0 && metrics.RocAUC <= 1)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.New() // no data paths
	_, err := New(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, models.ErrConfig)
}
