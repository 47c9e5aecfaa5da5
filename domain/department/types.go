// Package department holds the department statistics model and the pure
// derivation, recommendation and summary engines that run over it.
package department

import (
	"time"

	"unidss/domain/core"
)

// Record is one department row as read from the upload.
type Record struct {
	Name     string  `json:"department" validate:"required"`
	Students int     `json:"students" validate:"gte=0"`
	Faculty  int     `json:"faculty" validate:"gte=0"`
	Budget   float64 `json:"budget" validate:"gte=0"`
}

// DerivedRecord is a Record plus the metrics computed from it. Values are
// produced by Derive and never mutated afterwards.
type DerivedRecord struct {
	Record
	StudentFacultyRatio float64 `json:"student_faculty_ratio"`
	BudgetPerStudent    float64 `json:"budget_per_student"`
}

// Dataset is the ordered set of derived records shown by the dashboard.
// A new Dataset replaces the previous one on every load.
type Dataset struct {
	ID       core.DatasetID  `json:"id"`
	Source   string          `json:"source"`
	LoadedAt time.Time       `json:"loaded_at"`
	Records  []DerivedRecord `json:"records"`
}

// Len returns the number of departments in the dataset.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Severity categorises a recommendation.
type Severity string

const (
	SeverityRatioWarning  Severity = "ratio-warning"
	SeverityBudgetWarning Severity = "budget-warning"
)

// Recommendation is one advisory message about a department.
type Recommendation struct {
	Severity   Severity `json:"severity"`
	Department string   `json:"department"`
	Message    string   `json:"message"`
}

// Summary holds dataset-wide reductions.
type Summary struct {
	TotalStudents int     `json:"total_students"`
	TotalFaculty  int     `json:"total_faculty"`
	AverageRatio  float64 `json:"average_ratio"`
	TotalBudget   float64 `json:"total_budget"`
}
