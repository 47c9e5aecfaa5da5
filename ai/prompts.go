package ai

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"unidss/domain/department"
	"unidss/internal/format"
)

//go:embed prompts/*.txt
var builtinPrompts embed.FS

// InsightPrompt is the template name used for the narrative summary
const InsightPrompt = "insight"

// PromptManager loads prompt templates, preferring files in PromptsDir and
// falling back to the built-in copies
type PromptManager struct {
	PromptsDir string
}

// NewPromptManager creates a prompt manager. An empty dir uses only the
// built-in templates.
func NewPromptManager(promptsDir string) *PromptManager {
	return &PromptManager{PromptsDir: promptsDir}
}

// LoadPrompt loads a prompt template by name
func (pm *PromptManager) LoadPrompt(name string) (string, error) {
	if pm.PromptsDir != "" {
		content, err := os.ReadFile(filepath.Join(pm.PromptsDir, name+".txt"))
		if err == nil {
			return string(content), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
		}
	}

	content, err := builtinPrompts.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("prompt template not found: %s", name)
	}
	return string(content), nil
}

// RenderPrompt replaces {PLACEHOLDER} with values
func (pm *PromptManager) RenderPrompt(name string, replacements map[string]string) (string, error) {
	template, err := pm.LoadPrompt(name)
	if err != nil {
		return "", err
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, "{"+placeholder+"}", value)
	}
	return strings.TrimRight(result, "\n"), nil
}

// RenderInsightPrompt embeds the summary figures into the insight prompt:
// students as a plain integer, ratio to one decimal, budget as money.
func (pm *PromptManager) RenderInsightPrompt(s department.Summary) (string, error) {
	return pm.RenderPrompt(InsightPrompt, map[string]string{
		"TOTAL_STUDENTS": strconv.Itoa(s.TotalStudents),
		"TOTAL_FACULTY":  strconv.Itoa(s.TotalFaculty),
		"AVERAGE_RATIO":  format.Ratio(s.AverageRatio),
		"TOTAL_BUDGET":   format.Money(s.TotalBudget),
	})
}
