package threshold

import (
	"fmt"
	"math"
	"sort"

	"gol50/domain/core"
)

// Dataset is a column-oriented table with a binary response and optional
// grouping labels for random-effect levels.
type Dataset struct {
	Response string               `json:"response"`
	Columns  map[string][]float64 `json:"columns"`
	Group    string               `json:"group,omitempty"`
	Groups   []string             `json:"groups,omitempty"`
}

// Len returns the number of observations.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Columns[d.Response])
}

// Column returns the named column.
func (d *Dataset) Column(name string) ([]float64, bool) {
	col, ok := d.Columns[name]
	return col, ok
}

// Row returns observation i as a covariate row (response excluded).
func (d *Dataset) Row(i int) CovariateRow {
	row := make(CovariateRow, len(d.Columns))
	for name, col := range d.Columns {
		if name == d.Response {
			continue
		}
		row[name] = col[i]
	}
	return row
}

// WithResponse returns a copy that shares covariate columns but carries a
// new response vector.
func (d *Dataset) WithResponse(y []float64) *Dataset {
	cols := make(map[string][]float64, len(d.Columns))
	for name, col := range d.Columns {
		cols[name] = col
	}
	resp := make([]float64, len(y))
	copy(resp, y)
	cols[d.Response] = resp
	return &Dataset{
		Response: d.Response,
		Columns:  cols,
		Group:    d.Group,
		Groups:   d.Groups,
	}
}

// GroupLevels returns the distinct group labels in sorted order and, for
// each observation, the index of its level.
func (d *Dataset) GroupLevels() ([]string, []int) {
	seen := make(map[string]bool)
	var levels []string
	for _, g := range d.Groups {
		if !seen[g] {
			seen[g] = true
			levels = append(levels, g)
		}
	}
	sort.Strings(levels)
	index := make(map[string]int, len(levels))
	for i, l := range levels {
		index[l] = i
	}
	membership := make([]int, len(d.Groups))
	for i, g := range d.Groups {
		membership[i] = index[g]
	}
	return levels, membership
}

// Range returns the min and max of a column.
func (d *Dataset) Range(name string) (Bounds, error) {
	col, ok := d.Columns[name]
	if !ok || len(col) == 0 {
		return Bounds{}, core.NewDatasetError(fmt.Sprintf("column %q missing or empty", name))
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range col {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return Bounds{Lower: lo, Upper: hi}, nil
}

// Validate checks column lengths, the binary response and the required columns.
func (d *Dataset) Validate(required ...string) error {
	if d == nil {
		return core.NewDatasetError("dataset is nil")
	}
	resp, ok := d.Columns[d.Response]
	if !ok {
		return core.NewDatasetError(fmt.Sprintf("response column %q missing", d.Response))
	}
	n := len(resp)
	if n == 0 {
		return core.NewDatasetError("dataset has no observations")
	}
	for name, col := range d.Columns {
		if len(col) != n {
			return core.NewDatasetError(fmt.Sprintf("column %q has %d values, want %d", name, len(col), n))
		}
	}
	for i, y := range resp {
		if y != 0 && y != 1 {
			return core.NewDatasetError(fmt.Sprintf("response %q row %d is %g, want 0 or 1", d.Response, i, y))
		}
	}
	for _, name := range required {
		if _, ok := d.Columns[name]; !ok {
			return core.NewDatasetError(fmt.Sprintf("required column %q missing", name))
		}
	}
	if d.Group != "" && len(d.Groups) != n {
		return core.NewDatasetError(fmt.Sprintf("group %q has %d labels, want %d", d.Group, len(d.Groups), n))
	}
	return nil
}
