package department

import (
	"encoding/json"
	"math"
)

// JSON cannot carry Inf or NaN, so derived metrics and summary averages are
// written as null when they are not finite.

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// MarshalJSON implements json.Marshaler.
func (d DerivedRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name                string   `json:"department"`
		Students            int      `json:"students"`
		Faculty             int      `json:"faculty"`
		Budget              float64  `json:"budget"`
		StudentFacultyRatio *float64 `json:"student_faculty_ratio"`
		BudgetPerStudent    *float64 `json:"budget_per_student"`
	}{
		Name:                d.Name,
		Students:            d.Students,
		Faculty:             d.Faculty,
		Budget:              d.Budget,
		StudentFacultyRatio: finite(d.StudentFacultyRatio),
		BudgetPerStudent:    finite(d.BudgetPerStudent),
	})
}

// MarshalJSON implements json.Marshaler.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalStudents int      `json:"total_students"`
		TotalFaculty  int      `json:"total_faculty"`
		AverageRatio  *float64 `json:"average_ratio"`
		TotalBudget   float64  `json:"total_budget"`
	}{
		TotalStudents: s.TotalStudents,
		TotalFaculty:  s.TotalFaculty,
		AverageRatio:  finite(s.AverageRatio),
		TotalBudget:   s.TotalBudget,
	})
}

// UnmarshalJSON accepts the shape written by MarshalJSON; a null average is
// read back as NaN.
func (s *Summary) UnmarshalJSON(b []byte) error {
	var raw struct {
		TotalStudents int      `json:"total_students"`
		TotalFaculty  int      `json:"total_faculty"`
		AverageRatio  *float64 `json:"average_ratio"`
		TotalBudget   float64  `json:"total_budget"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.TotalStudents = raw.TotalStudents
	s.TotalFaculty = raw.TotalFaculty
	s.TotalBudget = raw.TotalBudget
	s.AverageRatio = math.NaN()
	if raw.AverageRatio != nil {
		s.AverageRatio = *raw.AverageRatio
	}
	return nil
}
