package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"unidss/internal"
	apperrors "unidss/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DataReader reads CSV and Excel uploads into header-keyed rows
type DataReader struct {
	fileType FileType
	logger   *internal.Logger
}

// DetectFileType maps a filename extension to a FileType
func DetectFileType(filename string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FileTypeCSV, nil
	case ".xlsx":
		return FileTypeXLSX, nil
	default:
		return "", apperrors.UnsupportedFile(filename)
	}
}

// NewDataReader creates a reader for the given file type
func NewDataReader(fileType FileType, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{fileType: fileType, logger: logger}
}

// NewDataReaderForFile creates a reader based on the filename extension
func NewDataReaderForFile(filename string, logger *internal.Logger) (*DataReader, error) {
	ft, err := DetectFileType(filename)
	if err != nil {
		return nil, err
	}
	return NewDataReader(ft, logger), nil
}

// ReadData reads the whole input into structured rows
func (r *DataReader) ReadData(in io.Reader) (*ExcelData, error) {
	start := time.Now()

	var rows [][]string
	var lines []int
	var err error
	switch r.fileType {
	case FileTypeCSV:
		rows, lines, err = r.readCSVRows(in)
	case FileTypeXLSX:
		rows, lines, err = r.readExcelRows(in)
	default:
		return nil, apperrors.Newf(apperrors.CodeUnsupportedFile, "unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("[DataReader] %s read in %.2fms (%d rows)",
		strings.ToUpper(string(r.fileType)), float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	if len(rows) == 0 {
		return nil, apperrors.InvalidInput("file is empty: a header row is required")
	}
	return r.processRows(rows, lines), nil
}

// readCSVRows returns the records and the 1-based line each one starts on.
// encoding/csv skips empty lines, so lines may have gaps.
func (r *DataReader) readCSVRows(in io.Reader) ([][]string, []int, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	var lines []int
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("failed to read CSV file: %w", err))
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, lines, nil
}

// readExcelRows reads the first sheet of the workbook. GetRows keeps empty
// rows between data rows, so the sheet row is the index plus one.
func (r *DataReader) readExcelRows(in io.Reader) ([][]string, []int, error) {
	f, err := excelize.OpenReader(in)
	if err != nil {
		return nil, nil, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("failed to open Excel file: %w", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, apperrors.InvalidInput("Excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err))
	}
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return rows, lines, nil
}

// processRows converts raw string rows into ExcelData format, dropping
// rows whose cells are all blank. lines[i] is the file line (or sheet row)
// of rows[i]; data rows are numbered from the header line.
func (r *DataReader) processRows(rows [][]string, lines []int) *ExcelData {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	rowNumbers := make([]int, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rowNumbers = append(rowNumbers, lines[i+1]-lines[0])
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	return &ExcelData{
		Headers:    headers,
		Rows:       dataRows,
		RowNumbers: rowNumbers,
	}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ReadBytes is a convenience wrapper around ReadData for in-memory uploads
func (r *DataReader) ReadBytes(b []byte) (*ExcelData, error) {
	return r.ReadData(bytes.NewReader(b))
}
