package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

func validConfig() Config {
	return Config{
		NumFeatures:   3,
		NumNeurons:    4,
		EmbeddingSize: 2,
		NumHeads:      2,
		NumNodes:      5,
		Dropout:       0.1,
	}
}

func testFeatures(n, f int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n*f)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(n, f, data)
}

// ringEdges returns both directions of a ring over n nodes.
func ringEdges(n int) models.EdgeIndex {
	var idx models.EdgeIndex
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		idx.Src = append(idx.Src, i, j)
		idx.Dst = append(idx.Dst, j, i)
	}
	return idx
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero features", func(c *Config) { c.NumFeatures = 0 }},
		{"negative neurons", func(c *Config) { c.NumNeurons = -1 }},
		{"zero embedding", func(c *Config) { c.EmbeddingSize = 0 }},
		{"zero heads", func(c *Config) { c.NumHeads = 0 }},
		{"zero nodes", func(c *Config) { c.NumNodes = 0 }},
		{"dropout one", func(c *Config) { c.Dropout = 1.0 }},
		{"dropout negative", func(c *Config) { c.Dropout = -0.2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			_, err := New(cfg, rand.New(rand.NewSource(1)))
			assert.ErrorIs(t, err, models.ErrConfig)
		})
	}

	_, err := New(validConfig(), rand.New(rand.NewSource(1)))
	assert.NoError(t, err)
}

func TestReconstructShapeAndRange(t *testing.T) {
	cfg := validConfig()
	m, err := New(cfg, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	recon, err := m.Reconstruct(ringEdges(cfg.NumNodes), testFeatures(cfg.NumNodes, cfg.NumFeatures, 3))
	require.NoError(t, err)

	r, c := recon.Dims()
	require.Equal(t, cfg.NumNodes, r)
	require.Equal(t, cfg.NumNodes, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := recon.At(i, j)
			assert.True(t, v >= 0 && v <= 1, "probability %v at (%d,%d) outside [0,1]", v, i, j)
		}
	}
}

func TestReconstructDeterministic(t *testing.T) {
	cfg := validConfig()
	m, err := New(cfg, rand.New(rand.NewSource(4)))
	require.NoError(t, err)

	edges := ringEdges(cfg.NumNodes)
	features := testFeatures(cfg.NumNodes, cfg.NumFeatures, 5)

	a, err := m.Reconstruct(edges, features)
	require.NoError(t, err)
	b, err := m.Reconstruct(edges, features)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a, b), "inference path must not consume randomness")
}

func TestForwardShapes(t *testing.T) {
	cfg := validConfig()
	m, err := New(cfg, rand.New(rand.NewSource(6)))
	require.NoError(t, err)

	out, err := m.Forward(ringEdges(cfg.NumNodes), testFeatures(cfg.NumNodes, cfg.NumFeatures, 7), rand.New(rand.NewSource(8)))
	require.NoError(t, err)

	require.Len(t, out.Logits, cfg.NumNodes)
	require.Len(t, out.Mean, cfg.NumNodes)
	require.Len(t, out.LogVar, cfg.NumNodes)
	for i := 0; i < cfg.NumNodes; i++ {
		assert.Len(t, out.Logits[i], cfg.NumNodes)
		assert.Len(t, out.Mean[i], cfg.EmbeddingSize)
		assert.Len(t, out.LogVar[i], cfg.EmbeddingSize)
	}
}

func TestForwardRejectsBadInput(t *testing.T) {
	cfg := validConfig()
	m, err := New(cfg, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(10))

	// Wrong feature shape.
	_, err = m.Forward(ringEdges(cfg.NumNodes), testFeatures(cfg.NumNodes+1, cfg.NumFeatures, 11), rng)
	assert.ErrorIs(t, err, models.ErrData)

	// Edge outside node range.
	bad := models.EdgeIndex{Src: []int{0}, Dst: []int{cfg.NumNodes}}
	_, err = m.Forward(bad, testFeatures(cfg.NumNodes, cfg.NumFeatures, 12), rng)
	assert.ErrorIs(t, err, models.ErrData)
}

func TestParametersStableOrder(t *testing.T) {
	cfg := validConfig()
	m, err := New(cfg, rand.New(rand.NewSource(13)))
	require.NoError(t, err)

	a := m.Parameters()
	b := m.Parameters()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Same(t, a[i], b[i], "parameter order must be deterministic")
	}

	// Heads * (projection + two attention vectors) + mean/logvar projections.
	hidden := cfg.NumHeads * cfg.NumNeurons
	want := cfg.NumHeads*(cfg.NumNeurons*cfg.NumFeatures+2*cfg.NumNeurons) + 2*cfg.EmbeddingSize*hidden
	assert.Equal(t, want, len(a))
}

func TestIsolatedNodeAggregatesSelf(t *testing.T) {
	cfg := validConfig()
	m, err := New(cfg, rand.New(rand.NewSource(14)))
	require.NoError(t, err)

	// No edges at all: every node falls back to its self-loop.
	recon, err := m.Reconstruct(models.EdgeIndex{}, testFeatures(cfg.NumNodes, cfg.NumFeatures, 15))
	require.NoError(t, err)
	r, c := recon.Dims()
	assert.Equal(t, cfg.NumNodes, r)
	assert.Equal(t, cfg.NumNodes, c)
}
