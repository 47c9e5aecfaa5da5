// Package testkit provides the bundled sample departments used by the
// "Use Sample Data" action and as a golden fixture in tests.
package testkit

import (
	_ "embed"
	"fmt"
	"os"

	"unidss/adapters/excel"
	"unidss/domain/department"
	"unidss/internal"
)

//go:embed data/sample_data.csv
var sampleCSV []byte

// SampleSource labels datasets loaded from the bundled sample.
const SampleSource = "sample data"

// TestKit loads sample department data
type TestKit struct {
	path    string
	columns excel.Columns
	logger  *internal.Logger
}

// NewTestKit returns a kit serving the embedded sample
func NewTestKit(logger *internal.Logger) *TestKit {
	return NewTestKitWithFile("", logger)
}

// NewTestKitWithFile returns a kit reading the sample from a CSV file on
// disk instead of the embedded copy. An empty path means embedded.
func NewTestKitWithFile(path string, logger *internal.Logger) *TestKit {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &TestKit{path: path, columns: excel.DefaultColumns(), logger: logger}
}

// SampleRecords parses and returns the sample departments in file order
func (k *TestKit) SampleRecords() ([]department.Record, error) {
	raw := sampleCSV
	if k.path != "" {
		b, err := os.ReadFile(k.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sample data %s: %w", k.path, err)
		}
		raw = b
		k.logger.Debug("[TestKit] Using sample data from %s", k.path)
	}

	records, err := excel.NewDataReader(excel.FileTypeCSV, k.logger).ReadDepartments(raw, k.columns)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sample data: %w", err)
	}
	return records, nil
}

// SampleCSV returns the embedded sample file contents
func SampleCSV() []byte {
	out := make([]byte, len(sampleCSV))
	copy(out, sampleCSV)
	return out
}
