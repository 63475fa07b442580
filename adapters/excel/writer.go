package excel

import (
	"fmt"
	"io"
	"time"

	"gol50/domain/threshold"

	"github.com/xuri/excelize/v2"
)

const (
	resultSheet = "L50"
	runSheet    = "Run"
)

// ResultColumns are the fixed columns written after the auxiliary covariates
var ResultColumns = []string{
	"target_value", "converged", "objective", "iterations", "extrapolated",
	"lower", "upper", "replicates", "dropped", "censored", "method", "semantics", "error",
}

// BuildWorkbook lays a result table out as a workbook: one row per result
// row on the L50 sheet and the run metadata on the Run sheet.
func BuildWorkbook(table *threshold.ResultTable) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", resultSheet); err != nil {
		f.Close()
		return nil, err
	}

	aux := table.AuxiliaryNames()
	header := make([]interface{}, 0, len(aux)+len(ResultColumns))
	for _, name := range aux {
		header = append(header, name)
	}
	for _, name := range ResultColumns {
		header = append(header, name)
	}
	if err := f.SetSheetRow(resultSheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}

	for i, row := range table.Rows {
		values := make([]interface{}, 0, len(header))
		for _, name := range aux {
			if v, ok := row.Auxiliary[name]; ok {
				values = append(values, v)
			} else {
				values = append(values, nil)
			}
		}
		if row.OK() {
			values = append(values, row.Solve.TargetValue, row.Solve.Converged, row.Solve.ObjectiveAtMinimum,
				row.Solve.Iterations, row.Solve.Extrapolated)
		} else {
			values = append(values, nil, nil, nil, nil, nil)
		}
		if iv := row.Interval; iv != nil {
			values = append(values, iv.Lower, iv.Upper, iv.ReplicateCount, iv.Dropped, iv.Censored, string(iv.Method), string(iv.Semantics))
		} else {
			values = append(values, nil, nil, nil, nil, nil, nil, nil)
		}
		values = append(values, row.Err)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(resultSheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if _, err := f.NewSheet(runSheet); err != nil {
		f.Close()
		return nil, err
	}
	meta := [][]interface{}{
		{"run_id", table.RunID.String()},
		{"model", table.Model},
		{"target", table.Target},
		{"threshold", table.Threshold},
		{"mode", string(table.Mode)},
		{"created_at", table.CreatedAt.Time().Format(time.RFC3339)},
	}
	for i, kv := range meta {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(runSheet, cell, &kv); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// WriteResultTable writes the workbook to w
func WriteResultTable(w io.Writer, table *threshold.ResultTable) error {
	f, err := BuildWorkbook(table)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// SaveResultTable writes the workbook to path
func SaveResultTable(path string, table *threshold.ResultTable) error {
	f, err := BuildWorkbook(table)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
