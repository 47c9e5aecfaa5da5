package excel

import (
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"unidss/domain/department"
	apperrors "unidss/internal/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RowError describes why one data row could not be turned into a record.
// Row is 1-based and counts data rows only (the header is row 0), blank
// lines included.
type RowError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *RowError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("row %d: %s %q %s", e.Row, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Reason)
}

// maxReportedRows bounds the message size for badly broken files
const maxReportedRows = 10

// ParseDepartments converts header-keyed rows into typed department
// records. Missing columns and invalid rows are reported together; any
// problem rejects the whole file.
func ParseDepartments(data *ExcelData, cols Columns) ([]department.Record, error) {
	if data == nil {
		return nil, apperrors.InvalidInput("no data")
	}

	keys, missing := resolveColumns(data.Headers, cols)
	if len(missing) > 0 {
		return nil, apperrors.Newf(apperrors.CodeMissingColumn,
			"missing required column(s): %s", strings.Join(missing, ", "))
	}

	records := make([]department.Record, 0, len(data.Rows))
	var rowErrs []error
	for i, row := range data.Rows {
		rec, errs := parseRow(data.RowNumber(i), row, keys, cols)
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}
		records = append(records, rec)
	}

	if len(rowErrs) > 0 {
		return nil, invalidRowsError(rowErrs)
	}
	return records, nil
}

// resolveColumns maps each required column to the header key actually used
// in the file.
func resolveColumns(headers []string, cols Columns) (map[string]string, []string) {
	byLower := make(map[string]string, len(headers))
	for _, h := range headers {
		k := strings.ToLower(strings.TrimSpace(h))
		if _, dup := byLower[k]; !dup {
			byLower[k] = h
		}
	}

	keys := make(map[string]string, 4)
	var missing []string
	for _, want := range cols.required() {
		if actual, ok := byLower[strings.ToLower(want)]; ok {
			keys[want] = actual
		} else {
			missing = append(missing, want)
		}
	}
	return keys, missing
}

func parseRow(n int, row RawRowData, keys map[string]string, cols Columns) (department.Record, []error) {
	var errs []error
	fail := func(field, value, reason string) {
		errs = append(errs, &RowError{Row: n, Field: field, Value: value, Reason: reason})
	}

	rec := department.Record{Name: row[keys[cols.Department]]}

	studentsRaw := row[keys[cols.Students]]
	if v, err := parseCount(studentsRaw); err != nil {
		fail(cols.Students, studentsRaw, err.Error())
	} else {
		rec.Students = v
	}

	facultyRaw := row[keys[cols.Faculty]]
	if v, err := parseCount(facultyRaw); err != nil {
		fail(cols.Faculty, facultyRaw, err.Error())
	} else {
		rec.Faculty = v
	}

	budgetRaw := row[keys[cols.Budget]]
	if v, err := parseAmount(budgetRaw); err != nil {
		fail(cols.Budget, budgetRaw, err.Error())
	} else {
		rec.Budget = v
	}

	if len(errs) > 0 {
		return rec, errs
	}

	if err := validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			for _, fe := range verrs {
				field := columnFor(fe.Field(), cols)
				fail(field, fmt.Sprint(fe.Value()), describeTag(fe))
			}
		} else {
			fail(cols.Department, rec.Name, err.Error())
		}
	}
	return rec, errs
}

func columnFor(structField string, cols Columns) string {
	switch structField {
	case "Name":
		return cols.Department
	case "Students":
		return cols.Students
	case "Faculty":
		return cols.Faculty
	case "Budget":
		return cols.Budget
	}
	return structField
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "is invalid"
	}
}

// parseCount accepts integers, optionally with thousands separators or an
// integral decimal form such as "450.0".
func parseCount(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("is required")
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("is not an integer")
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("is not an integer")
	}
	return int(f), nil
}

// parseAmount accepts plain numbers plus a leading "$" and "," separators.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("is required")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("is not a number")
	}
	return f, nil
}

// RowErrors collects every row problem found in one file
type RowErrors []error

func (e RowErrors) Error() string {
	shown := e
	if len(shown) > maxReportedRows {
		shown = shown[:maxReportedRows]
	}
	msgs := make([]string, len(shown))
	for i, err := range shown {
		msgs[i] = err.Error()
	}
	msg := strings.Join(msgs, "; ")
	if extra := len(e) - len(shown); extra > 0 {
		msg += fmt.Sprintf("; and %d more", extra)
	}
	return msg
}

func (e RowErrors) Unwrap() []error { return e }

func invalidRowsError(rowErrs []error) error {
	return &apperrors.AppError{
		Code:    apperrors.CodeInvalidRow,
		Message: "invalid data",
		Cause:   RowErrors(rowErrs),
	}
}

// ReadDepartments reads and parses a file in one step
func (r *DataReader) ReadDepartments(b []byte, cols Columns) ([]department.Record, error) {
	data, err := r.ReadBytes(b)
	if err != nil {
		return nil, err
	}
	return ParseDepartments(data, cols)
}
