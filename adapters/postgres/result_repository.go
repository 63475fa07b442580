package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal/errors"
	"gol50/ports"

	"github.com/jmoiron/sqlx"
)

// jsonColumn stores any JSON-encodable value in a JSONB column
type jsonColumn[T any] struct {
	V     T
	Valid bool
}

// Value implements driver.Valuer interface
func (j jsonColumn[T]) Value() (driver.Value, error) {
	if !j.Valid {
		return nil, nil
	}
	return json.Marshal(j.V)
}

// Scan implements sql.Scanner interface
func (j *jsonColumn[T]) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		j.Valid = false
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into a JSON column", value)
	}
	if len(bytes) == 0 {
		j.Valid = false
		return nil
	}
	if err := json.Unmarshal(bytes, &j.V); err != nil {
		return err
	}
	j.Valid = true
	return nil
}

type runRecord struct {
	RunID     string    `db:"run_id"`
	Model     string    `db:"model"`
	Target    string    `db:"target"`
	Threshold float64   `db:"threshold"`
	Mode      string    `db:"mode"`
	CreatedAt time.Time `db:"created_at"`
}

type rowRecord struct {
	RunID     string                                    `db:"run_id"`
	Position  int                                       `db:"position"`
	Auxiliary jsonColumn[threshold.CovariateRow]        `db:"auxiliary"`
	Solve     jsonColumn[threshold.SolveResult]         `db:"solve"`
	Interval  jsonColumn[threshold.UncertaintyInterval] `db:"interval"`
	Error     sql.NullString                            `db:"error_message"`
}

func toRecords(table *threshold.ResultTable) (runRecord, []rowRecord) {
	run := runRecord{
		RunID:     table.RunID.String(),
		Model:     table.Model,
		Target:    table.Target,
		Threshold: table.Threshold,
		Mode:      string(table.Mode),
		CreatedAt: table.CreatedAt.Time(),
	}
	rows := make([]rowRecord, len(table.Rows))
	for i, r := range table.Rows {
		rows[i] = rowRecord{
			RunID:     run.RunID,
			Position:  i,
			Auxiliary: jsonColumn[threshold.CovariateRow]{V: r.Auxiliary, Valid: true},
			Solve:     jsonColumn[threshold.SolveResult]{V: r.Solve, Valid: true},
			Error:     sql.NullString{String: r.Err, Valid: r.Err != ""},
		}
		if r.Interval != nil {
			rows[i].Interval = jsonColumn[threshold.UncertaintyInterval]{V: *r.Interval, Valid: true}
		}
	}
	return run, rows
}

func fromRecords(run runRecord, records []rowRecord) *threshold.ResultTable {
	rows := make([]threshold.ResultRow, len(records))
	for i, rec := range records {
		rows[i] = threshold.ResultRow{
			Auxiliary: rec.Auxiliary.V,
			Solve:     rec.Solve.V,
			Err:       rec.Error.String,
		}
		if rec.Interval.Valid {
			interval := rec.Interval.V
			rows[i].Interval = &interval
		}
	}
	return threshold.NewResultTable(threshold.TableHeader{
		RunID:     core.RunID(run.RunID),
		Model:     run.Model,
		Target:    run.Target,
		Threshold: run.Threshold,
		Mode:      threshold.Mode(run.Mode),
		CreatedAt: core.NewTimestamp(run.CreatedAt),
	}, rows)
}

// ResultRepositoryImpl implements ResultRepository for PostgreSQL
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new PostgreSQL result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &ResultRepositoryImpl{db: db}
}

// Save stores a result table and its rows in one transaction
func (r *ResultRepositoryImpl) Save(ctx context.Context, table *threshold.ResultTable) error {
	run, rows := toRecords(table)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO l50_runs (run_id, model, target, threshold, mode, created_at)
		VALUES (:run_id, :model, :target, :threshold, :mode, :created_at)
	`, run); err != nil {
		return errors.Wrapf(errors.WithCode(errors.CodeDatabaseError, err), "failed to insert run %s", run.RunID)
	}

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO l50_rows (run_id, position, auxiliary, solve, interval, error_message)
			VALUES (:run_id, :position, :auxiliary, :solve, :interval, :error_message)
		`, row); err != nil {
			return errors.Wrapf(errors.WithCode(errors.CodeDatabaseError, err), "failed to insert row %d of run %s", row.Position, run.RunID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to commit run")
	}
	return nil
}

// Get loads a result table by run ID
func (r *ResultRepositoryImpl) Get(ctx context.Context, runID core.RunID) (*threshold.ResultTable, error) {
	var run runRecord
	err := r.db.GetContext(ctx, &run, `
		SELECT run_id, model, target, threshold, mode, created_at
		FROM l50_runs
		WHERE run_id = $1
	`, runID.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to load run")
	}

	var rows []rowRecord
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT run_id, position, auxiliary, solve, interval, error_message
		FROM l50_rows
		WHERE run_id = $1
		ORDER BY position
	`, runID.String()); err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to load run rows")
	}
	return fromRecords(run, rows), nil
}

// List returns run summaries, newest first
func (r *ResultRepositoryImpl) List(ctx context.Context, limit, offset int) ([]ports.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ports.RunSummary
	if err := r.db.SelectContext(ctx, &out, `
		SELECT r.run_id, r.model, r.target, r.mode, r.created_at, COUNT(w.position) AS row_count
		FROM l50_runs r
		LEFT JOIN l50_rows w ON w.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset); err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to list runs")
	}
	return out, nil
}
