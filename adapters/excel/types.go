package excel

// RawRowData represents a row of raw spreadsheet data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete spreadsheet dataset
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// DatasetSpec names the columns that become a threshold dataset
type DatasetSpec struct {
	Response   string   `json:"response" validate:"required"`
	Covariates []string `json:"covariates" validate:"required,min=1"`
	// Group is an optional label column for random-effect levels
	Group string `json:"group,omitempty"`
}
