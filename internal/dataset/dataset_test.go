package dataset

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `battery_power,blue,price_range,ram
842,0,1,2549
1021,1,2,2631
563,1,2,
615,0,1,2769
`

func TestRead(t *testing.T) {
	ds, err := Read(strings.NewReader(sample), "price_range")
	require.NoError(t, err)

	assert.Equal(t, []string{"battery_power", "blue", "ram"}, ds.FeatureNames)
	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, 3, ds.NumFeatures())
	assert.Equal(t, []string{"1", "2"}, ds.Classes)
	assert.Equal(t, []int{0, 1, 1, 0}, ds.Y)
	assert.Equal(t, []float64{842, 0, 2549}, ds.X[0])
	assert.True(t, math.IsNaN(ds.X[2][2]))
	assert.Equal(t, []int{2, 2}, ds.ClassCounts())
}

func TestReadSortsClasses(t *testing.T) {
	ds, err := Read(strings.NewReader("x,y\n1,10\n2,2\n3,9\n4,2\n"), "y")
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "9", "10"}, ds.Classes)
	assert.Equal(t, []int{2, 0, 1, 0}, ds.Y)

	ds, err = Read(strings.NewReader("x,y\n1,low\n2,high\n3,mid\n"), "y")
	require.NoError(t, err)

	assert.Equal(t, []string{"high", "low", "mid"}, ds.Classes)
	assert.Equal(t, []int{1, 0, 2}, ds.Y)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		label string
		check func(t *testing.T, err error)
	}{
		{
			name:  "missing label column",
			input: sample,
			label: "price",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMissingColumn) },
		},
		{
			name:  "empty input",
			input: "",
			label: "price_range",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmpty) },
		},
		{
			name:  "header only",
			input: "a,price_range\n",
			label: "price_range",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmpty) },
		},
		{
			name:  "label only",
			input: "price_range\n1\n",
			label: "price_range",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmpty) },
		},
		{
			name:  "ragged row",
			input: "a,b,price_range\n1,2,0\n1,0\n",
			label: "price_range",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, csv.ErrFieldCount) },
		},
		{
			name:  "non numeric feature",
			input: "a,price_range\nx,0\n",
			label: "price_range",
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), `line 2 column "a"`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), tt.label)
			tt.check(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	ds, err := Load(path, "price_range")
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), "price_range")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
