package main

import (
	"fmt"
	"strconv"
	"strings"

	"gol50/domain/core"
	"gol50/domain/threshold"
)

// parseGrid turns "sex=1,area=2" specs into covariate rows
func parseGrid(specs []string) ([]threshold.CovariateRow, error) {
	grid := make([]threshold.CovariateRow, 0, len(specs))
	for _, spec := range specs {
		row := threshold.CovariateRow{}
		for _, pair := range strings.Split(spec, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			name, raw, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("%w: grid entry %q is not name=value", core.ErrInvalidCovariate, pair)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: grid entry %q: %v", core.ErrInvalidCovariate, pair, err)
			}
			row[strings.TrimSpace(name)] = v
		}
		grid = append(grid, row)
	}
	return grid, nil
}
