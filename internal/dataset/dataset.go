// Package dataset loads labelled tabular data from CSV.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrMissingColumn is returned when the label column is not in the header.
	ErrMissingColumn = errors.New("dataset: label column not found")

	// ErrEmpty is returned when the file has a header but no rows, or no
	// feature columns.
	ErrEmpty = errors.New("dataset: no samples")
)

// Dataset is a feature matrix with one encoded label per row.
type Dataset struct {
	// FeatureNames are the header names of every non-label column, in file
	// order.
	FeatureNames []string

	// X holds one row per sample, len(FeatureNames) values each.
	X [][]float64

	// Y holds the class index of each sample.
	Y []int

	// Classes maps a class index back to the label read from the file.
	// Labels are sorted, numerically when every label is a number.
	Classes []string
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Y) }

// NumFeatures returns the number of feature columns.
func (d *Dataset) NumFeatures() int { return len(d.FeatureNames) }

// ClassCounts returns the number of samples per class index.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, len(d.Classes))
	for _, y := range d.Y {
		counts[y]++
	}

	return counts
}

// Load reads the CSV file at path. The first row is the header; the column
// named labelColumn holds labels and every other column is a feature.
func Load(path, labelColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "dataset: open")
	}
	defer f.Close()

	ds, err := Read(f, labelColumn)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: %s", path)
	}

	return ds, nil
}

// Read parses CSV from r. See Load.
func Read(r io.Reader, labelColumn string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	labelIdx := -1
	for i, name := range header {
		if strings.TrimSpace(name) == labelColumn {
			labelIdx = i
			break
		}
	}
	if labelIdx < 0 {
		return nil, errors.Wrapf(ErrMissingColumn, "%q", labelColumn)
	}

	ds := &Dataset{FeatureNames: make([]string, 0, len(header)-1)}
	for i, name := range header {
		if i != labelIdx {
			ds.FeatureNames = append(ds.FeatureNames, strings.TrimSpace(name))
		}
	}
	if len(ds.FeatureNames) == 0 {
		return nil, errors.Wrap(ErrEmpty, "no feature columns")
	}

	classIdx := map[string]int{}

	// Line 1 is the header.
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv reports ragged rows as csv.ErrFieldCount.
			return nil, errors.Wrapf(err, "line %d", line)
		}

		row := make([]float64, 0, len(ds.FeatureNames))
		for i, cell := range rec {
			cell = strings.TrimSpace(cell)
			if i == labelIdx {
				continue
			}
			if cell == "" {
				row = append(row, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d column %q", line, header[i])
			}
			row = append(row, v)
		}

		label := strings.TrimSpace(rec[labelIdx])
		c, ok := classIdx[label]
		if !ok {
			c = len(ds.Classes)
			classIdx[label] = c
			ds.Classes = append(ds.Classes, label)
		}

		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, c)
	}

	if len(ds.Y) == 0 {
		return nil, ErrEmpty
	}

	ds.sortClasses()

	return ds, nil
}

// sortClasses renumbers class indices so Classes is in ascending order.
func (d *Dataset) sortClasses() {
	numeric := make([]float64, len(d.Classes))
	allNumeric := true

	for i, c := range d.Classes {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			allNumeric = false
			break
		}
		numeric[i] = v
	}

	order := make([]int, len(d.Classes))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		if allNumeric {
			return numeric[order[a]] < numeric[order[b]]
		}

		return d.Classes[order[a]] < d.Classes[order[b]]
	})

	remap := make([]int, len(order))
	classes := make([]string, len(order))

	for newIdx, oldIdx := range order {
		remap[oldIdx] = newIdx
		classes[newIdx] = d.Classes[oldIdx]
	}

	for i, y := range d.Y {
		d.Y[i] = remap[y]
	}

	d.Classes = classes
}
