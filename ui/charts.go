package ui

import (
	"math"

	"unidss/domain/department"
)

// ChartConfig is a declarative Chart.js configuration
type ChartConfig struct {
	Type    string       `json:"type"`
	Data    ChartData    `json:"data"`
	Options ChartOptions `json:"options"`
}

type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartDataset values are pointers so that non-finite numbers encode as
// null, which Chart.js renders as a gap.
type ChartDataset struct {
	Label string     `json:"label"`
	Data  []*float64 `json:"data"`
}

type ChartOptions struct {
	Responsive bool                 `json:"responsive"`
	Plugins    ChartPlugins         `json:"plugins"`
	Scales     map[string]ChartAxis `json:"scales,omitempty"`
}

type ChartPlugins struct {
	Title ChartTitle `json:"title"`
}

type ChartTitle struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

type ChartAxis struct {
	Title       ChartTitle `json:"title"`
	BeginAtZero bool       `json:"beginAtZero,omitempty"`
}

// Charts groups the two dashboard charts
type Charts struct {
	Ratio  ChartConfig `json:"ratio"`
	Budget ChartConfig `json:"budget"`
}

const (
	RatioChartTitle  = "Student-Faculty Ratio by Department"
	BudgetChartTitle = "Budget Distribution Across Departments"
)

// BuildCharts produces the ratio bar chart and the budget pie chart for the
// records, in record order.
func BuildCharts(records []department.DerivedRecord) Charts {
	labels := make([]string, len(records))
	ratios := make([]*float64, len(records))
	budgets := make([]*float64, len(records))
	for i, r := range records {
		labels[i] = r.Name
		ratios[i] = finite(r.StudentFacultyRatio)
		budgets[i] = finite(r.Budget)
	}

	return Charts{
		Ratio: ChartConfig{
			Type: "bar",
			Data: ChartData{
				Labels:   labels,
				Datasets: []ChartDataset{{Label: "Student-Faculty Ratio", Data: ratios}},
			},
			Options: ChartOptions{
				Responsive: true,
				Plugins:    ChartPlugins{Title: ChartTitle{Display: true, Text: RatioChartTitle}},
				Scales: map[string]ChartAxis{
					"x": {Title: ChartTitle{Display: true, Text: "Department"}},
					"y": {Title: ChartTitle{Display: true, Text: "Student-Faculty Ratio"}, BeginAtZero: true},
				},
			},
		},
		Budget: ChartConfig{
			Type: "pie",
			Data: ChartData{
				Labels:   labels,
				Datasets: []ChartDataset{{Label: "Budget", Data: budgets}},
			},
			Options: ChartOptions{
				Responsive: true,
				Plugins:    ChartPlugins{Title: ChartTitle{Display: true, Text: BudgetChartTitle}},
			},
		},
	}
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
