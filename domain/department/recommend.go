package department

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Rules holds the thresholds used by Recommend.
type Rules struct {
	// HighRatioThreshold: a ratio strictly above this is flagged.
	HighRatioThreshold float64 `yaml:"high_ratio_threshold"`
	// LowBudgetFactor: budget per student strictly below
	// LowBudgetFactor * mean is flagged.
	LowBudgetFactor float64 `yaml:"low_budget_factor"`
}

// DefaultRules returns the standard thresholds (ratio 30, 80% of mean).
func DefaultRules() Rules {
	return Rules{
		HighRatioThreshold: 30,
		LowBudgetFactor:    0.8,
	}
}

// Recommend evaluates the high-ratio and low-budget rules for every record,
// in input order. For a single department the ratio warning precedes the
// budget warning.
func (r Rules) Recommend(records []DerivedRecord) []Recommendation {
	if len(records) == 0 {
		return []Recommendation{}
	}

	budgetCutoff, budgetRuleOn := r.lowBudgetCutoff(records)

	recs := make([]Recommendation, 0, len(records))
	for _, rec := range records {
		if rec.StudentFacultyRatio > r.HighRatioThreshold {
			recs = append(recs, Recommendation{
				Severity:   SeverityRatioWarning,
				Department: rec.Name,
				Message: fmt.Sprintf("🚨 High student-faculty ratio in %s (%.1f:1). Consider hiring more faculty.",
					rec.Name, rec.StudentFacultyRatio),
			})
		}
		if budgetRuleOn && rec.BudgetPerStudent < budgetCutoff {
			recs = append(recs, Recommendation{
				Severity:   SeverityBudgetWarning,
				Department: rec.Name,
				Message: fmt.Sprintf("💰 Low budget per student in %s ($%.2f). Consider budget increase.",
					rec.Name, rec.BudgetPerStudent),
			})
		}
	}
	return recs
}

// lowBudgetCutoff returns LowBudgetFactor * mean(BudgetPerStudent). The
// mean is computed once per call and skips NaN entries; ok is false when
// no entry is left.
func (r Rules) lowBudgetCutoff(records []DerivedRecord) (cutoff float64, ok bool) {
	mean, err := stats.Mean(budgetsPerStudent(records))
	if err != nil || math.IsNaN(mean) {
		return 0, false
	}
	return mean * r.LowBudgetFactor, true
}

// Recommend runs the default rules.
func Recommend(records []DerivedRecord) []Recommendation {
	return DefaultRules().Recommend(records)
}

func budgetsPerStudent(records []DerivedRecord) stats.Float64Data {
	data := make(stats.Float64Data, 0, len(records))
	for _, rec := range records {
		data = append(data, rec.BudgetPerStudent)
	}
	return withoutNaN(data)
}

// withoutNaN drops undefined values (0/0) so a single empty department does
// not poison a dataset-wide mean. Infinities are kept.
func withoutNaN(data stats.Float64Data) stats.Float64Data {
	out := data[:0]
	for _, v := range data {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
