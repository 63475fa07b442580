package ports

import (
	"context"
	"time"

	"gol50/domain/core"
	"gol50/domain/threshold"
)

// ResultRepository persists result tables
type ResultRepository interface {
	Save(ctx context.Context, table *threshold.ResultTable) error
	Get(ctx context.Context, runID core.RunID) (*threshold.ResultTable, error)
	List(ctx context.Context, limit, offset int) ([]RunSummary, error)
}

// RunSummary is a listing entry for a persisted run
type RunSummary struct {
	RunID     core.RunID `json:"run_id" db:"run_id"`
	Model     string     `json:"model" db:"model"`
	Target    string     `json:"target" db:"target"`
	Mode      string     `json:"mode" db:"mode"`
	RowCount  int        `json:"row_count" db:"row_count"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
