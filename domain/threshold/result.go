package threshold

import (
	"fmt"
	"sort"
	"strings"

	"gol50/domain/core"
)

// Mode selects which uncertainty estimate accompanies the point solves.
type Mode string

const (
	ModePointOnly Mode = "point_only"
	ModeGaussian  Mode = "gaussian"
	ModeBootstrap Mode = "bootstrap"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePointOnly, "point", "":
		return ModePointOnly, nil
	case ModeGaussian:
		return ModeGaussian, nil
	case ModeBootstrap:
		return ModeBootstrap, nil
	}
	return "", fmt.Errorf("unknown mode %q (want point_only, gaussian or bootstrap)", s)
}

// ResultRow is one auxiliary-covariate combination and its estimates.
type ResultRow struct {
	Auxiliary CovariateRow         `json:"auxiliary"`
	Solve     SolveResult          `json:"solve"`
	Interval  *UncertaintyInterval `json:"interval,omitempty"`
	// Err is set when the row could not be solved at all.
	Err string `json:"error,omitempty"`
}

// OK reports whether the row was solved.
func (r ResultRow) OK() bool {
	return r.Err == ""
}

// ResultTable holds one row per requested auxiliary combination, in request order.
type ResultTable struct {
	RunID     core.RunID     `json:"run_id"`
	Model     string         `json:"model"`
	Target    string         `json:"target"`
	Threshold float64        `json:"threshold"`
	Mode      Mode           `json:"mode"`
	CreatedAt core.Timestamp `json:"created_at"`
	Rows      []ResultRow    `json:"rows"`
}

// TableHeader carries the run-level fields of a ResultTable.
type TableHeader struct {
	RunID     core.RunID
	Model     string
	Target    string
	Threshold float64
	Mode      Mode
	CreatedAt core.Timestamp
}

// NewResultTable folds rows into a table. The rows are copied so later
// changes by the caller do not leak into the table.
func NewResultTable(h TableHeader, rows []ResultRow) *ResultTable {
	if h.RunID == "" {
		h.RunID = core.NewRunID()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = core.Now()
	}
	copied := make([]ResultRow, len(rows))
	for i, row := range rows {
		copied[i] = row
		copied[i].Auxiliary = row.Auxiliary.Clone()
		if row.Interval != nil {
			interval := *row.Interval
			copied[i].Interval = &interval
		}
	}
	return &ResultTable{
		RunID:     h.RunID,
		Model:     h.Model,
		Target:    h.Target,
		Threshold: h.Threshold,
		Mode:      h.Mode,
		CreatedAt: h.CreatedAt,
		Rows:      copied,
	}
}

// AuxiliaryNames returns the union of auxiliary covariate names across rows, sorted.
func (t *ResultTable) AuxiliaryNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, row := range t.Rows {
		for _, name := range row.Auxiliary.Names() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Failed counts rows that could not be solved.
func (t *ResultTable) Failed() int {
	n := 0
	for _, row := range t.Rows {
		if !row.OK() {
			n++
		}
	}
	return n
}
