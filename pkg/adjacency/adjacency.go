// Package adjacency builds gene-gene adjacency matrices: thresholded
// co-expression graphs (optionally noise-perturbed), the ground-truth
// matrix from a reference edge list, and the edge index consumed by the
// model.
package adjacency

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/grn-inference-service/pkg/expression"
	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

// Construct builds a binary co-expression adjacency matrix: entry (i,j) is 1
// when |Pearson corr| between gene columns i and j exceeds threshold and
// i != j. The result is symmetric with a zero diagonal. Correlations that
// are undefined (zero-variance columns) produce no edge.
func Construct(expr *expression.Matrix, threshold float64) (*mat.Dense, error) {
	if threshold < 0 || threshold > 1 {
		return nil, models.ConfigErrorf("threshold %v outside [0,1]", threshold)
	}
	numGenes := expr.NumGenes()
	if numGenes < 2 {
		return nil, models.DataErrorf("correlation undefined for %d genes, need at least 2", numGenes)
	}

	// Extract gene columns once; stat.Correlation works on vectors.
	cols := make([][]float64, numGenes)
	for j := 0; j < numGenes; j++ {
		cols[j] = mat.Col(nil, j, expr.Data)
	}

	adj := mat.NewDense(numGenes, numGenes, nil)
	for i := 0; i < numGenes; i++ {
		for j := i + 1; j < numGenes; j++ {
			corr := stat.Correlation(cols[i], cols[j], nil)
			if !math.IsNaN(corr) && math.Abs(corr) > threshold {
				adj.Set(i, j, 1)
				adj.Set(j, i, 1)
			}
		}
	}
	return adj, nil
}

// ConstructWithNoise builds the thresholded co-expression graph and then
// flips each unordered off-diagonal pair 0<->1 with probability noiseFactor.
// Flips are applied to (i,j) and (j,i) together so symmetry is preserved.
// A noiseFactor of 0 is an exact no-op.
func ConstructWithNoise(expr *expression.Matrix, threshold, noiseFactor float64, rng *rand.Rand) (*mat.Dense, error) {
	if noiseFactor < 0 || noiseFactor > 1 {
		return nil, models.ConfigErrorf("noise factor %v outside [0,1]", noiseFactor)
	}
	adj, err := Construct(expr, threshold)
	if err != nil {
		return nil, err
	}
	if noiseFactor == 0 {
		return adj, nil
	}

	n, _ := adj.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < noiseFactor {
				flipped := 1 - adj.At(i, j)
				adj.Set(i, j, flipped)
				adj.Set(j, i, flipped)
			}
		}
	}
	return adj, nil
}

// BuildTrue maps a reference edge list onto the gene ordering, producing a
// binary symmetric ground-truth adjacency matrix. Edges whose endpoints are
// absent from geneNames are skipped silently.
func BuildTrue(edges []models.GeneLink, geneNames []string) *mat.Dense {
	index := make(map[string]int, len(geneNames))
	for i, name := range geneNames {
		index[name] = i
	}

	n := len(geneNames)
	adj := mat.NewDense(n, n, nil)
	for _, edge := range edges {
		src, okSrc := index[edge.Source]
		dst, okDst := index[edge.Target]
		if !okSrc || !okDst {
			continue
		}
		adj.Set(src, dst, 1)
		adj.Set(dst, src, 1)
	}
	return adj
}

// EdgeIndexOf enumerates the nonzero entries of adj in row-major order as
// parallel (source, target) slices. Both directions of an undirected edge
// appear, matching the nonzero-entry enumeration the model expects.
func EdgeIndexOf(adj *mat.Dense) models.EdgeIndex {
	n, _ := adj.Dims()
	var idx models.EdgeIndex
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if adj.At(i, j) != 0 {
				idx.Src = append(idx.Src, i)
				idx.Dst = append(idx.Dst, j)
			}
		}
	}
	return idx
}
