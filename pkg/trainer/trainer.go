// Package trainer runs the GAT-VGAE optimization loop: stochastic forward
// pass, reconstruction + KL loss, backward pass, Adam update, for a fixed
// number of epochs.
package trainer

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	ag "github.com/gilchrisn/grn-inference-service/pkg/autograd"
	"github.com/gilchrisn/grn-inference-service/pkg/eval"
	"github.com/gilchrisn/grn-inference-service/pkg/model"
	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

// Recorder persists per-epoch records. A nil Recorder disables persistence.
type Recorder interface {
	RecordEpoch(rec models.EpochRecord) error
}

// Config controls a training run.
type Config struct {
	NumEpochs    int
	Optimizer    AdamConfig
	KLWeight     float64 // weight of the KL term; 0 selects 1/numNodes
	EvalInterval int     // epochs between interim ROC-AUC evaluations; 0 disables
	LogInterval  int     // epochs between progress log lines; 0 disables
	RunID        string
	Trial        int
}

// EpochStats is one epoch of the training history.
type EpochStats struct {
	Epoch  int     `json:"epoch"`
	Loss   float64 `json:"loss"`
	RocAUC float64 `json:"roc_auc"` // NaN when not evaluated this epoch
}

// Result summarizes a completed training run.
type Result struct {
	FinalLoss float64      `json:"final_loss"`
	Epochs    []EpochStats `json:"epochs"`
	RuntimeMS int64        `json:"runtime_ms"`
}

// Train optimizes the model in place against the noisy adjacency target for
// exactly cfg.NumEpochs epochs. There is no early stopping and no
// convergence check, keeping trials comparable under a fixed budget. A
// non-finite loss aborts the run with ErrTraining; the failure is logged,
// never retried.
func Train(m *model.Model, edges models.EdgeIndex, features, target, trueAdj *mat.Dense,
	cfg Config, rng *rand.Rand, logger zerolog.Logger, rec Recorder) (*Result, error) {

	if cfg.NumEpochs <= 0 {
		return nil, models.ConfigErrorf("num_epochs must be positive, got %d", cfg.NumEpochs)
	}
	if err := cfg.Optimizer.Validate(); err != nil {
		return nil, err
	}
	numNodes := m.Config().NumNodes
	tr, tc := target.Dims()
	if tr != numNodes || tc != numNodes {
		return nil, models.DataErrorf("adjacency target is %dx%d, model has %d nodes", tr, tc, numNodes)
	}

	klWeight := cfg.KLWeight
	if klWeight == 0 {
		klWeight = 1 / float64(numNodes)
	}

	params := m.Parameters()
	opt, err := NewAdam(cfg.Optimizer, len(params))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{Epochs: make([]EpochStats, 0, cfg.NumEpochs)}

	for epoch := 1; epoch <= cfg.NumEpochs; epoch++ {
		out, err := m.Forward(edges, features, rng)
		if err != nil {
			return nil, err
		}

		loss := composeLoss(out, target, numNodes, klWeight)
		if math.IsNaN(loss.Data) || math.IsInf(loss.Data, 0) {
			logger.Error().Int("epoch", epoch).Float64("loss", loss.Data).Msg("Non-finite loss, aborting run")
			return nil, models.TrainingErrorf("non-finite loss %v at epoch %d", loss.Data, epoch)
		}

		ag.Backward(loss)
		opt.Step(params)

		stats := EpochStats{Epoch: epoch, Loss: loss.Data, RocAUC: math.NaN()}
		if cfg.EvalInterval > 0 && epoch%cfg.EvalInterval == 0 && trueAdj != nil {
			recon, err := m.Reconstruct(edges, features)
			if err != nil {
				return nil, err
			}
			stats.RocAUC = interimRocAUC(trueAdj, recon)
		}
		result.Epochs = append(result.Epochs, stats)

		if rec != nil {
			epochRec := models.EpochRecord{
				RunID:  cfg.RunID,
				Trial:  cfg.Trial,
				Epoch:  epoch,
				Loss:   stats.Loss,
				RocAUC: stats.RocAUC,
			}
			if err := rec.RecordEpoch(epochRec); err != nil {
				return nil, err
			}
		}

		if cfg.LogInterval > 0 && epoch%cfg.LogInterval == 0 {
			event := logger.Info().Int("epoch", epoch).Int("total_epochs", cfg.NumEpochs).Float64("loss", stats.Loss)
			if !math.IsNaN(stats.RocAUC) {
				event = event.Float64("roc_auc", stats.RocAUC)
			}
			event.Msg("Training progress")
		}

		result.FinalLoss = stats.Loss
	}

	result.RuntimeMS = time.Since(start).Milliseconds()
	logger.Info().
		Int("epochs", cfg.NumEpochs).
		Float64("final_loss", result.FinalLoss).
		Int64("runtime_ms", result.RuntimeMS).
		Msg("Training completed")

	return result, nil
}

// composeLoss builds mean binary cross-entropy over all n^2 entries plus the
// weighted closed-form KL divergence to the standard normal prior.
func composeLoss(out *model.Output, target *mat.Dense, numNodes int, klWeight float64) *ag.Value {
	bceTerms := make([]*ag.Value, 0, numNodes*numNodes)
	for i := 0; i < numNodes; i++ {
		for j := 0; j < numNodes; j++ {
			bceTerms = append(bceTerms, ag.BCEWithLogits(out.Logits[i][j], target.At(i, j)))
		}
	}
	bce := ag.Scale(1/float64(numNodes*numNodes), ag.Sum(bceTerms))

	// KL(N(mu, sigma^2) || N(0, I)) = -0.5 * sum(1 + logvar - mu^2 - e^logvar)
	klTerms := make([]*ag.Value, 0, numNodes*len(out.Mean[0]))
	for i := range out.Mean {
		for d := range out.Mean[i] {
			mu := out.Mean[i][d]
			lv := out.LogVar[i][d]
			term := ag.Sub(ag.Sub(ag.Add(ag.V(1), lv), ag.Mul(mu, mu)), ag.Exp(lv))
			klTerms = append(klTerms, term)
		}
	}
	kl := ag.Scale(-0.5, ag.Sum(klTerms))

	return ag.Add(bce, ag.Scale(klWeight, kl))
}

func interimRocAUC(trueAdj, recon *mat.Dense) float64 {
	n, _ := trueAdj.Dims()
	labels := make([]bool, 0, n*n)
	scores := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			labels = append(labels, trueAdj.At(i, j) == 1)
			scores = append(scores, recon.At(i, j))
		}
	}
	return eval.RocAUC(scores, labels)
}
