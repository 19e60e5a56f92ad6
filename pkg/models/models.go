package models

import "fmt"

// TrialMode selects how hyperparameters are supplied to the pipeline.
type TrialMode string

const (
	// ModeFixed runs a single trial with the configured hyperparameters.
	ModeFixed TrialMode = "fixed"
	// ModeSearch runs an exhaustive grid search and keeps the best trial.
	ModeSearch TrialMode = "search"
)

// HyperParams is the per-trial hyperparameter set consumed by the pipeline.
type HyperParams struct {
	NumNeurons    int     `json:"num_neurons"`
	EmbeddingSize int     `json:"embedding_size"`
	NumHeads      int     `json:"num_heads"`
	LearningRate  float64 `json:"learning_rate"`
}

func (hp HyperParams) String() string {
	return fmt.Sprintf("neurons=%d embedding=%d heads=%d lr=%g",
		hp.NumNeurons, hp.EmbeddingSize, hp.NumHeads, hp.LearningRate)
}

// EdgeIndex lists directed (source, target) pairs derived from the nonzero
// entries of an adjacency matrix. Src and Dst are parallel slices.
type EdgeIndex struct {
	Src []int
	Dst []int
}

// Len returns the number of edges in the index.
func (e EdgeIndex) Len() int { return len(e.Src) }

// GeneLink is a single reference-network edge between two named genes.
type GeneLink struct {
	Source string
	Target string
}

// Metrics is the evaluation result comparing a reconstructed adjacency
// against the ground-truth network.
type Metrics struct {
	RocAUC              float64 `json:"roc_auc"`
	Precision           float64 `json:"precision"`
	Recall              float64 `json:"recall"`
	F1                  float64 `json:"f1"`
	EPR                 float64 `json:"epr"`
	Accuracy            float64 `json:"accuracy"`
	NumGroundTruthEdges int     `json:"num_ground_truth_edges"`
	NumNodes            int     `json:"num_nodes"`
	OverlapCount        int     `json:"overlap_count"`
}

// RunRecord is the append-only per-run log row: hyperparameters plus final
// metrics for one trial.
type RunRecord struct {
	RunID   string      `json:"run_id"`
	Trial   int         `json:"trial"`
	Params  HyperParams `json:"params"`
	Metrics Metrics     `json:"metrics"`
	Dataset string      `json:"dataset"`
}

// EpochRecord is the append-only per-epoch log row.
type EpochRecord struct {
	RunID  string  `json:"run_id"`
	Trial  int     `json:"trial"`
	Epoch  int     `json:"epoch"`
	Loss   float64 `json:"loss"`
	RocAUC float64 `json:"roc_auc"` // interim metric, NaN when not computed
}
