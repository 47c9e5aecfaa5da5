package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"unidss/domain/department"

	"github.com/xuri/excelize/v2"
)

// Export header names for the derived columns
const (
	RatioHeader            = "Student-Faculty Ratio"
	BudgetPerStudentHeader = "Budget per Student"
)

const exportSheet = "Sheet1"

// WriteDepartments writes the derived table, input columns first. Non-finite
// metrics are written as empty cells. The output can be read back by
// ReadDepartments with the same Columns.
func WriteDepartments(w io.Writer, ft FileType, cols Columns, records []department.DerivedRecord) error {
	headers := []string{cols.Department, cols.Students, cols.Faculty, cols.Budget, RatioHeader, BudgetPerStudentHeader}
	switch ft {
	case FileTypeCSV:
		return writeCSV(w, headers, records)
	case FileTypeXLSX:
		return writeXLSX(w, headers, records)
	default:
		return fmt.Errorf("unsupported export format: %s", ft)
	}
}

func writeCSV(w io.Writer, headers []string, records []department.DerivedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Name,
			strconv.Itoa(r.Students),
			strconv.Itoa(r.Faculty),
			strconv.FormatFloat(r.Budget, 'f', -1, 64),
			fToStr(r.StudentFacultyRatio),
			fToStr(r.BudgetPerStudent),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, headers []string, records []department.DerivedRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return err
		}
	}

	for i, r := range records {
		values := []interface{}{r.Name, r.Students, r.Faculty, r.Budget, cellValue(r.StudentFacultyRatio), cellValue(r.BudgetPerStudent)}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return err
			}
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func fToStr(x float64) string {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func cellValue(x float64) interface{} {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return ""
	}
	return x
}
