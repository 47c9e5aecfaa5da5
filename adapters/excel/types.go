package excel

// RawRowData represents a row of raw spreadsheet data as header-keyed strings
type RawRowData map[string]string

// ExcelData represents the complete spreadsheet contents
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
	// RowNumbers holds the 1-based data-row position of each entry in Rows
	// before blank rows were dropped.
	RowNumbers []int
}

// RowNumber returns the original data-row number of Rows[i].
func (d *ExcelData) RowNumber(i int) int {
	if i < len(d.RowNumbers) {
		return d.RowNumbers[i]
	}
	return i + 1
}

// FileType identifies a supported upload format
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeXLSX FileType = "xlsx"
)
