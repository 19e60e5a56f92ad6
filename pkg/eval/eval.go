// Package eval scores a reconstructed adjacency matrix against the
// ground-truth network: ROC-AUC, thresholded classification metrics, early
// precision rate over the top-k predicted edges, and whole-network overlap
// against a correlation baseline.
package eval

import (
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

const decisionThreshold = 0.5

// Edge is one scored unordered gene pair (I < J).
type Edge struct {
	I, J  int
	Score float64
}

// Evaluate compares the reconstructed probability matrix against the binary
// ground truth. Both matrices are flattened in full (all n^2 entries) for
// ROC-AUC and the thresholded metrics.
func Evaluate(trueAdj, recon *mat.Dense, kFraction float64) (models.Metrics, error) {
	tr, tc := trueAdj.Dims()
	rr, rc := recon.Dims()
	if tr != tc || rr != rc || tr != rr {
		return models.Metrics{}, models.DataErrorf(
			"adjacency shape mismatch: truth %dx%d vs reconstruction %dx%d", tr, tc, rr, rc)
	}
	if kFraction < 0 || kFraction > 1 {
		return models.Metrics{}, models.ConfigErrorf("k_fraction %v outside [0,1]", kFraction)
	}

	n := tr
	labels := make([]bool, 0, n*n)
	scores := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			labels = append(labels, trueAdj.At(i, j) == 1)
			scores = append(scores, recon.At(i, j))
		}
	}

	metricsResult := models.Metrics{
		RocAUC:              RocAUC(scores, labels),
		NumNodes:            n,
		NumGroundTruthEdges: countEdges(trueAdj),
	}

	// Classification metrics at the fixed 0.5 decision threshold.
	var tp, fp, tn, fn int
	for i, score := range scores {
		predicted := score > decisionThreshold
		switch {
		case predicted && labels[i]:
			tp++
		case predicted && !labels[i]:
			fp++
		case !predicted && labels[i]:
			fn++
		default:
			tn++
		}
	}
	metricsResult.Precision = ratio(tp, tp+fp)
	metricsResult.Recall = ratio(tp, tp+fn)
	if metricsResult.Precision+metricsResult.Recall > 0 {
		metricsResult.F1 = 2 * metricsResult.Precision * metricsResult.Recall /
			(metricsResult.Precision + metricsResult.Recall)
	}
	metricsResult.Accuracy = ratio(tp+tn, len(scores))

	epr, hits, _ := earlyPrecision(recon, trueAdj, kFraction, metricsResult.NumGroundTruthEdges)
	metricsResult.EPR = epr
	metricsResult.OverlapCount = hits

	return metricsResult, nil
}

// RocAUC computes the area under the ROC curve over all (score, label)
// pairs. When the truth contains a single class the curve is undefined and
// 0.5 is returned.
func RocAUC(scores []float64, labels []bool) float64 {
	var pos int
	for _, l := range labels {
		if l {
			pos++
		}
	}
	if pos == 0 || pos == len(labels) {
		return 0.5
	}

	y := make([]float64, len(scores))
	copy(y, scores)
	classes := make([]bool, len(labels))
	copy(classes, labels)

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// TopEdges returns the k highest-scoring unordered pairs (i < j, self-pairs
// excluded). The sort is stable with row-major matrix order as the
// tie-break among equal scores.
func TopEdges(m *mat.Dense, k int) []Edge {
	n, _ := m.Dims()
	edges := make([]Edge, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, Edge{I: i, J: j, Score: m.At(i, j)})
		}
	}
	sort.SliceStable(edges, func(a, b int) bool { return edges[a].Score > edges[b].Score })
	if k > len(edges) {
		k = len(edges)
	}
	return edges[:k]
}

// EarlyPrecisionRate computes precision over the top
// k = floor(kFraction * numGroundTruthEdges) predicted edges. Returns 0
// when k is 0 (zero fraction or no ground-truth edges).
func EarlyPrecisionRate(recon, trueAdj *mat.Dense, kFraction float64) float64 {
	epr, _, _ := earlyPrecision(recon, trueAdj, kFraction, countEdges(trueAdj))
	return epr
}

// WholeNetworkOverlap counts how many of the top-k predicted edges appear
// in the ground-truth graph (predOverlap) and in the correlation-based PCC
// baseline graph (pccOverlap). The edge definition and cutoff match
// EarlyPrecisionRate for consistency.
func WholeNetworkOverlap(recon, trueAdj, pcc *mat.Dense, kFraction float64) (predOverlap, pccOverlap int) {
	numTrue := countEdges(trueAdj)
	k := int(kFraction * float64(numTrue))
	if k == 0 {
		return 0, 0
	}
	for _, e := range TopEdges(recon, k) {
		if trueAdj.At(e.I, e.J) == 1 {
			predOverlap++
		}
		if pcc.At(e.I, e.J) == 1 {
			pccOverlap++
		}
	}
	return predOverlap, pccOverlap
}

func earlyPrecision(recon, trueAdj *mat.Dense, kFraction float64, numTrue int) (epr float64, hits, k int) {
	k = int(kFraction * float64(numTrue))
	if k == 0 {
		return 0, 0, 0
	}
	for _, e := range TopEdges(recon, k) {
		if trueAdj.At(e.I, e.J) == 1 {
			hits++
		}
	}
	return float64(hits) / float64(k), hits, k
}

// countEdges counts unordered ground-truth edges (upper triangle).
func countEdges(adj *mat.Dense) int {
	n, _ := adj.Dims()
	count := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if adj.At(i, j) == 1 {
				count++
			}
		}
	}
	return count
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
