// Package model implements the GAT-VGAE: a multi-head graph attention
// encoder producing per-node latent distributions, a reparameterized
// sampling step, and an inner-product decoder reconstructing a dense
// adjacency probability matrix.
package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	ag "github.com/gilchrisn/grn-inference-service/pkg/autograd"
	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

const attnSlope = 0.2 // negative slope of the attention LeakyReLU

// Config holds the model construction parameters.
type Config struct {
	NumFeatures   int
	NumNeurons    int
	EmbeddingSize int
	NumHeads      int
	NumNodes      int
	Dropout       float64
}

// Validate checks the construction parameters.
func (c Config) Validate() error {
	switch {
	case c.NumFeatures <= 0:
		return models.ConfigErrorf("num_features must be positive, got %d", c.NumFeatures)
	case c.NumNeurons <= 0:
		return models.ConfigErrorf("num_neurons must be positive, got %d", c.NumNeurons)
	case c.EmbeddingSize <= 0:
		return models.ConfigErrorf("embedding_size must be positive, got %d", c.EmbeddingSize)
	case c.NumHeads < 1:
		return models.ConfigErrorf("num_heads must be at least 1, got %d", c.NumHeads)
	case c.NumNodes <= 0:
		return models.ConfigErrorf("num_nodes must be positive, got %d", c.NumNodes)
	case c.Dropout < 0 || c.Dropout >= 1:
		return models.ConfigErrorf("dropout %v outside [0,1)", c.Dropout)
	}
	return nil
}

// Params holds the learned weights. They are owned by the Model and mutated
// only through the optimizer step applied to Parameters().
type Params struct {
	AttnW   [][][]*ag.Value // per head: numNeurons × numFeatures projection
	AttnSrc [][]*ag.Value   // per head: attention vector for the source role
	AttnDst [][]*ag.Value   // per head: attention vector for the target role
	MeanW   [][]*ag.Value   // embeddingSize × hidden latent mean projection
	LogVarW [][]*ag.Value   // embeddingSize × hidden latent log-variance projection
}

// Model is the GAT-VGAE. Each forward pass is a pure function of the current
// parameters, the input features, and the edge index; randomness comes only
// from the explicitly passed generator.
type Model struct {
	cfg    Config
	params *Params
}

// Output is the result of a training forward pass: decoder logits plus the
// per-node latent distribution needed for the KL term.
type Output struct {
	Logits [][]*ag.Value // numNodes × numNodes, sigmoid gives probabilities
	Mean   [][]*ag.Value // numNodes × embeddingSize
	LogVar [][]*ag.Value // numNodes × embeddingSize
}

// New validates cfg and creates a model with randomly initialized weights.
func New(cfg Config, rng *rand.Rand) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Params{
		AttnW:   make([][][]*ag.Value, cfg.NumHeads),
		AttnSrc: make([][]*ag.Value, cfg.NumHeads),
		AttnDst: make([][]*ag.Value, cfg.NumHeads),
	}
	for h := 0; h < cfg.NumHeads; h++ {
		p.AttnW[h] = weightMatrix(cfg.NumNeurons, cfg.NumFeatures, rng)
		p.AttnSrc[h] = weightVector(cfg.NumNeurons, rng)
		p.AttnDst[h] = weightVector(cfg.NumNeurons, rng)
	}
	hidden := cfg.NumHeads * cfg.NumNeurons
	p.MeanW = weightMatrix(cfg.EmbeddingSize, hidden, rng)
	p.LogVarW = weightMatrix(cfg.EmbeddingSize, hidden, rng)

	return &Model{cfg: cfg, params: p}, nil
}

// Config returns the model construction parameters.
func (m *Model) Config() Config { return m.cfg }

// Parameters returns all learned weights as a flat slice, in deterministic
// order. The optimizer mutates Data/Grad through this view.
func (m *Model) Parameters() []*ag.Value {
	var out []*ag.Value
	for h := range m.params.AttnW {
		for _, row := range m.params.AttnW[h] {
			out = append(out, row...)
		}
		out = append(out, m.params.AttnSrc[h]...)
		out = append(out, m.params.AttnDst[h]...)
	}
	for _, row := range m.params.MeanW {
		out = append(out, row...)
	}
	for _, row := range m.params.LogVarW {
		out = append(out, row...)
	}
	return out
}

// Forward runs the stochastic training path: encoder, reparameterized
// sample z = mean + exp(0.5*logvar)*eps, inner-product decoder. Fresh noise
// is drawn from rng for every latent dimension.
func (m *Model) Forward(edges models.EdgeIndex, features *mat.Dense, rng *rand.Rand) (*Output, error) {
	return m.forward(edges, features, rng, true)
}

// Reconstruct runs the deterministic inference path (z = mean, no dropout)
// and returns the dense adjacency probability matrix.
func (m *Model) Reconstruct(edges models.EdgeIndex, features *mat.Dense) (*mat.Dense, error) {
	out, err := m.forward(edges, features, nil, false)
	if err != nil {
		return nil, err
	}
	n := m.cfg.NumNodes
	recon := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			recon.Set(i, j, ag.Sigmoid(out.Logits[i][j]).Data)
		}
	}
	return recon, nil
}

func (m *Model) forward(edges models.EdgeIndex, features *mat.Dense, rng *rand.Rand, training bool) (*Output, error) {
	n := m.cfg.NumNodes
	rows, cols := features.Dims()
	if rows != n || cols != m.cfg.NumFeatures {
		return nil, models.DataErrorf("feature matrix is %dx%d, model expects %dx%d", rows, cols, n, m.cfg.NumFeatures)
	}
	if len(edges.Src) != len(edges.Dst) {
		return nil, models.DataErrorf("edge index has %d sources but %d targets", len(edges.Src), len(edges.Dst))
	}

	// Neighborhoods from the edge index, with a self-loop per node so
	// isolated nodes still aggregate their own projection.
	nbrs := make([][]int, n)
	for i := 0; i < n; i++ {
		nbrs[i] = []int{i}
	}
	for k := range edges.Src {
		src, dst := edges.Src[k], edges.Dst[k]
		if src < 0 || src >= n || dst < 0 || dst >= n {
			return nil, models.DataErrorf("edge (%d,%d) outside node range [0,%d)", src, dst, n)
		}
		nbrs[dst] = append(nbrs[dst], src)
	}

	// Node features as constant graph leaves.
	feat := make([][]*ag.Value, n)
	for i := 0; i < n; i++ {
		feat[i] = make([]*ag.Value, cols)
		for j := 0; j < cols; j++ {
			feat[i][j] = ag.V(features.At(i, j))
		}
	}

	// Multi-head attention encoder; head outputs are concatenated.
	hiddenWidth := m.cfg.NumHeads * m.cfg.NumNeurons
	hidden := make([][]*ag.Value, n)
	for i := range hidden {
		hidden[i] = make([]*ag.Value, 0, hiddenWidth)
	}

	for h := 0; h < m.cfg.NumHeads; h++ {
		// Projected features and per-node attention score halves.
		proj := make([][]*ag.Value, n)
		srcScore := make([]*ag.Value, n)
		dstScore := make([]*ag.Value, n)
		for i := 0; i < n; i++ {
			proj[i] = linear(feat[i], m.params.AttnW[h])
			srcScore[i] = ag.Dot(m.params.AttnSrc[h], proj[i])
			dstScore[i] = ag.Dot(m.params.AttnDst[h], proj[i])
		}

		for i := 0; i < n; i++ {
			// Attention over the neighborhood of i, softmax-normalized.
			scores := make([]*ag.Value, len(nbrs[i]))
			for k, j := range nbrs[i] {
				scores[k] = ag.LeakyReLU(ag.Add(srcScore[j], dstScore[i]), attnSlope)
			}
			alpha := ag.Softmax(scores)

			// Attention-weighted aggregation of neighbor projections.
			neighborDim := make([]*ag.Value, len(nbrs[i]))
			for d := 0; d < m.cfg.NumNeurons; d++ {
				for k, j := range nbrs[i] {
					neighborDim[k] = proj[j][d]
				}
				hidden[i] = append(hidden[i], ag.ELU(ag.WeightedSum(alpha, neighborDim)))
			}
		}
	}

	// Dropout on the hidden embedding, training passes only.
	if training && m.cfg.Dropout > 0 {
		keep := 1 - m.cfg.Dropout
		for i := range hidden {
			for d := range hidden[i] {
				if rng.Float64() < m.cfg.Dropout {
					hidden[i][d] = ag.V(0)
				} else {
					hidden[i][d] = ag.Scale(1/keep, hidden[i][d])
				}
			}
		}
	}

	// Variational head: per-node latent mean and log-variance.
	out := &Output{
		Logits: make([][]*ag.Value, n),
		Mean:   make([][]*ag.Value, n),
		LogVar: make([][]*ag.Value, n),
	}
	z := make([][]*ag.Value, n)
	for i := 0; i < n; i++ {
		out.Mean[i] = linear(hidden[i], m.params.MeanW)
		out.LogVar[i] = linear(hidden[i], m.params.LogVarW)
		if training {
			z[i] = make([]*ag.Value, m.cfg.EmbeddingSize)
			for d := 0; d < m.cfg.EmbeddingSize; d++ {
				eps := rng.NormFloat64()
				std := ag.Exp(ag.Scale(0.5, out.LogVar[i][d]))
				z[i][d] = ag.Add(out.Mean[i][d], ag.Scale(eps, std))
			}
		} else {
			z[i] = out.Mean[i]
		}
	}

	// Inner-product decoder: logits[i][j] = z_i . z_j.
	for i := 0; i < n; i++ {
		out.Logits[i] = make([]*ag.Value, n)
		for j := 0; j < n; j++ {
			out.Logits[i][j] = ag.Dot(z[i], z[j])
		}
	}

	return out, nil
}

// linear applies a weight matrix (rows are output neurons) to a vector.
func linear(x []*ag.Value, w [][]*ag.Value) []*ag.Value {
	out := make([]*ag.Value, len(w))
	for i, row := range w {
		out[i] = ag.Dot(row, x)
	}
	return out
}

func weightMatrix(rows, cols int, rng *rand.Rand) [][]*ag.Value {
	w := make([][]*ag.Value, rows)
	for i := range w {
		w[i] = weightVector(cols, rng)
	}
	return w
}

func weightVector(n int, rng *rand.Rand) []*ag.Value {
	v := make([]*ag.Value, n)
	for i := range v {
		v[i] = ag.V(rng.NormFloat64() * 0.1)
	}
	return v
}
