package excel

// ReaderConfig holds spreadsheet reading settings
type ReaderConfig struct {
	Sheet string `json:"sheet" yaml:"sheet"`
	// DropIncomplete skips rows with a missing or non-numeric value
	// instead of failing
	DropIncomplete bool `json:"drop_incomplete" yaml:"drop_incomplete"`
}

// DefaultReaderConfig reads Sheet1 and fails on incomplete rows
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{Sheet: "Sheet1"}
}
