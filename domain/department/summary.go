package department

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// Summarize reduces the dataset to its headline numbers. An empty input
// yields a zero Summary. AverageRatio skips undefined (NaN) ratios and is
// NaN only when every ratio is undefined.
func Summarize(records []DerivedRecord) Summary {
	if len(records) == 0 {
		return Summary{}
	}

	var s Summary
	ratios := make([]float64, len(records))
	budgets := make([]float64, len(records))
	for i, rec := range records {
		s.TotalStudents += rec.Students
		s.TotalFaculty += rec.Faculty
		ratios[i] = rec.StudentFacultyRatio
		budgets[i] = rec.Budget
	}
	s.TotalBudget = floats.Sum(budgets)

	avg, err := stats.Mean(withoutNaN(ratios))
	if err != nil {
		avg = math.NaN()
	}
	s.AverageRatio = avg
	return s
}
