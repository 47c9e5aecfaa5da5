package ai

import (
	"os"
	"path/filepath"
	"testing"

	"unidss/domain/department"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleSummary = department.Summary{
	TotalStudents: 2480,
	TotalFaculty:  91,
	AverageRatio:  27.344877,
	TotalBudget:   10900000,
}

func TestRenderInsightPrompt_Builtin(t *testing.T) {
	got, err := NewPromptManager("").RenderInsightPrompt(sampleSummary)

	require.NoError(t, err)
	assert.Equal(t, "Analyze this university data and provide strategic insights:\n"+
		"- Total students: 2480\n"+
		"- Average student-faculty ratio: 27.3\n"+
		"- Total budget: $10,900,000.00\n"+
		"What are the key challenges and opportunities?", got)
}

func TestRenderInsightPrompt_Override(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "insight.txt"),
		[]byte("{TOTAL_FACULTY} faculty, {TOTAL_BUDGET}\n"), 0o600))

	got, err := NewPromptManager(dir).RenderInsightPrompt(sampleSummary)

	require.NoError(t, err)
	assert.Equal(t, "91 faculty, $10,900,000.00", got)
}

func TestLoadPrompt_MissingDirFallsBack(t *testing.T) {
	pm := NewPromptManager(filepath.Join(t.TempDir(), "absent"))

	got, err := pm.LoadPrompt(InsightPrompt)
	require.NoError(t, err)
	assert.Contains(t, got, "{TOTAL_BUDGET}")

	_, err = pm.LoadPrompt("nope")
	assert.Error(t, err)
}
