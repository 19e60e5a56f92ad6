// Package expression loads gene-expression matrices and reference-network
// edge lists from tabular files.
package expression

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/grn-inference-service/pkg/models"
)

// Matrix pairs a samples×genes expression matrix with the ordered gene
// names, one per column.
type Matrix struct {
	Data      *mat.Dense // samples × genes
	GeneNames []string
}

// NumSamples returns the number of rows (samples/cells).
func (m *Matrix) NumSamples() int {
	r, _ := m.Data.Dims()
	return r
}

// NumGenes returns the number of columns (genes).
func (m *Matrix) NumGenes() int {
	_, c := m.Data.Dims()
	return c
}

// Load reads an expression file with genes in rows: a header line of sample
// identifiers, then one line per gene holding the gene name followed by its
// expression values. The result is transposed to samples×genes so columns
// align with GeneNames. Comma and tab delimiters are both accepted.
func Load(path string) (*Matrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open expression file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	// Header: sample identifiers (first field may be a row-label column name).
	if !scanner.Scan() {
		return nil, models.DataErrorf("expression file %s is empty", path)
	}
	header := splitFields(scanner.Text())
	if len(header) < 2 {
		return nil, models.DataErrorf("expression file %s: header has %d fields, need at least 2", path, len(header))
	}

	var geneNames []string
	var rows [][]float64 // one row per gene
	numSamples := -1
	lineNum := 1

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := splitFields(line)
		if len(fields) < 2 {
			return nil, models.DataErrorf("expression file %s line %d: expected gene name and values, got %d fields",
				path, lineNum, len(fields))
		}
		values := make([]float64, len(fields)-1)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, models.DataErrorf("expression file %s line %d: invalid value %q", path, lineNum, f)
			}
			values[i] = v
		}
		if numSamples == -1 {
			numSamples = len(values)
		} else if len(values) != numSamples {
			return nil, models.DataErrorf("expression file %s line %d: expected %d values, got %d",
				path, lineNum, numSamples, len(values))
		}
		geneNames = append(geneNames, fields[0])
		rows = append(rows, values)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expression file: %w", err)
	}
	if len(geneNames) == 0 {
		return nil, models.DataErrorf("expression file %s contains no gene rows", path)
	}

	// Transpose genes×samples rows into a samples×genes matrix.
	data := mat.NewDense(numSamples, len(geneNames), nil)
	for g, row := range rows {
		for s, v := range row {
			data.Set(s, g, v)
		}
	}

	return &Matrix{Data: data, GeneNames: geneNames}, nil
}

// LoadReferenceNetwork reads a ground-truth edge list: a header line, then
// one (source, target) gene-name pair per line. Lines starting with '#' and
// blank lines are skipped. Extra columns beyond the first two are ignored.
func LoadReferenceNetwork(path string) ([]models.GeneLink, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open network file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var edges []models.GeneLink
	first := true
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if first {
			// Header row with column names.
			first = false
			continue
		}
		fields := splitFields(line)
		if len(fields) < 2 {
			return nil, models.DataErrorf("network file %s line %d: expected source and target gene, got %d fields",
				path, lineNum, len(fields))
		}
		edges = append(edges, models.GeneLink{Source: fields[0], Target: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read network file: %w", err)
	}

	return edges, nil
}

// splitFields splits a line on commas or tabs, trimming whitespace.
func splitFields(line string) []string {
	var fields []string
	if strings.Contains(line, "\t") {
		fields = strings.Split(line, "\t")
	} else {
		fields = strings.Split(line, ",")
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
