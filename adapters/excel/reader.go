package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	config   ReaderConfig
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, config ReaderConfig) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if config.Sheet == "" {
		config.Sheet = DefaultReaderConfig().Sheet
	}
	return &DataReader{filePath: filePath, fileType: fileType, config: config, logger: internal.DefaultLogger}
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// ReadDataset reads the file and converts the named columns
func (r *DataReader) ReadDataset(spec DatasetSpec) (*threshold.Dataset, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return r.ToDataset(data, spec)
}

func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.config.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.config.Sheet, err)
	}
	r.logger.Debug("[DataReader] %s read in %s (%d rows)", r.config.Sheet, time.Since(startTime), len(rows))

	if len(rows) < 2 {
		return nil, core.NewDatasetError("Excel file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug("[DataReader] CSV file read in %s (%d rows)", time.Since(readStart), len(rows))

	if len(rows) < 2 {
		return nil, core.NewDatasetError("CSV file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rowData := make(RawRowData)

		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}

		dataRows = append(dataRows, rowData)
	}

	r.logger.Info("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &ExcelData{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

// ToDataset converts raw rows into a column-oriented dataset. The response
// accepts 0/1, true/false and yes/no.
func (r *DataReader) ToDataset(data *ExcelData, spec DatasetSpec) (*threshold.Dataset, error) {
	present := make(map[string]bool, len(data.Headers))
	for _, h := range data.Headers {
		present[h] = true
	}
	required := append([]string{spec.Response}, spec.Covariates...)
	if spec.Group != "" {
		required = append(required, spec.Group)
	}
	for _, name := range required {
		if !present[name] {
			return nil, core.NewDatasetError(fmt.Sprintf("column %q not found in %s", name, r.filePath))
		}
	}

	columns := make(map[string][]float64, len(spec.Covariates)+1)
	var groups []string
	skipped := 0
	for i, row := range data.Rows {
		y, err := parseResponse(row[spec.Response])
		values := make([]float64, len(spec.Covariates))
		for k, name := range spec.Covariates {
			if err != nil {
				break
			}
			values[k], err = strconv.ParseFloat(row[name], 64)
			if err != nil {
				err = fmt.Errorf("column %q: %w", name, err)
			}
		}
		if err == nil && spec.Group != "" && row[spec.Group] == "" {
			err = fmt.Errorf("column %q is empty", spec.Group)
		}
		if err != nil {
			if r.config.DropIncomplete {
				skipped++
				continue
			}
			// header is line 1
			return nil, core.NewDatasetError(fmt.Sprintf("line %d: %v", i+2, err))
		}

		columns[spec.Response] = append(columns[spec.Response], y)
		for k, name := range spec.Covariates {
			columns[name] = append(columns[name], values[k])
		}
		if spec.Group != "" {
			groups = append(groups, row[spec.Group])
		}
	}
	if skipped > 0 {
		r.logger.Warn("[DataReader] skipped %d incomplete rows", skipped)
	}

	ds := &threshold.Dataset{
		Response: spec.Response,
		Columns:  columns,
		Group:    spec.Group,
		Groups:   groups,
	}
	if err := ds.Validate(spec.Covariates...); err != nil {
		return nil, err
	}
	return ds, nil
}

func parseResponse(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "yes", "y":
		return 1, nil
	case "0", "0.0", "false", "no", "n":
		return 0, nil
	}
	return 0, fmt.Errorf("response %q is not binary", s)
}
