// Package runlog persists run and epoch records as append-only CSV files.
// Each file gets a header row on first write; later runs append below it.
package runlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

var runHeader = []string{
	"run_id", "trial", "num_neurons", "embedding_size", "num_heads", "learning_rate",
	"roc_auc", "precision", "recall", "f1", "epr", "accuracy",
	"num_ground_truth_edges", "num_nodes", "overlap_count", "dataset",
}

var epochHeader = []string{"run_id", "trial", "epoch", "loss", "roc_auc"}

// Recorder appends run and epoch records to CSV files. An empty path
// disables the corresponding record kind.
type Recorder struct {
	runPath   string
	epochPath string
}

// NewRecorder creates a recorder writing run records to runPath and epoch
// records to epochPath.
func NewRecorder(runPath, epochPath string) *Recorder {
	return &Recorder{runPath: runPath, epochPath: epochPath}
}

// RecordRun appends one run row.
func (r *Recorder) RecordRun(rec models.RunRecord) error {
	if r.runPath == "" {
		return nil
	}
	row := []string{
		rec.RunID,
		strconv.Itoa(rec.Trial),
		strconv.Itoa(rec.Params.NumNeurons),
		strconv.Itoa(rec.Params.EmbeddingSize),
		strconv.Itoa(rec.Params.NumHeads),
		formatFloat(rec.Params.LearningRate),
		formatFloat(rec.Metrics.RocAUC),
		formatFloat(rec.Metrics.Precision),
		formatFloat(rec.Metrics.Recall),
		formatFloat(rec.Metrics.F1),
		formatFloat(rec.Metrics.EPR),
		formatFloat(rec.Metrics.Accuracy),
		strconv.Itoa(rec.Metrics.NumGroundTruthEdges),
		strconv.Itoa(rec.Metrics.NumNodes),
		strconv.Itoa(rec.Metrics.OverlapCount),
		rec.Dataset,
	}
	return appendRow(r.runPath, runHeader, row)
}

// RecordEpoch appends one epoch row.
func (r *Recorder) RecordEpoch(rec models.EpochRecord) error {
	if r.epochPath == "" {
		return nil
	}
	row := []string{
		rec.RunID,
		strconv.Itoa(rec.Trial),
		strconv.Itoa(rec.Epoch),
		formatFloat(rec.Loss),
		formatFloat(rec.RocAUC),
	}
	return appendRow(r.epochPath, epochHeader, row)
}

func appendRow(path string, header, row []string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open record file %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat record file %s: %w", path, err)
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write record to %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
