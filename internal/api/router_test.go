package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"unidss/adapters/llm"
	"unidss/app"
	"unidss/domain/department"
	"unidss/internal"
	"unidss/internal/testkit"
	"unidss/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const csvBody = "Department,Students,Faculty,Budget\n" +
	"Computer Science,450,12,2000000\n" +
	"English,320,9,800000\n"

func newRouter(client *llm.MockLLMClient) *Router {
	logger := internal.NewNopLogger()
	var insights *app.InsightService
	if client != nil {
		insights = app.NewInsightService(client, nil, app.InsightConfig{Model: "gpt-3.5-turbo"}, logger)
	}
	return NewRouter(Config{
		Insights:     insights,
		TestKit:      testkit.NewTestKit(logger),
		Rules:        department.DefaultRules(),
		MaxBodyBytes: 1 << 16,
		Logger:       logger,
	})
}

func serve(r *Router, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type analysis struct {
	Records []struct {
		Name  string   `json:"department"`
		Ratio *float64 `json:"student_faculty_ratio"`
	} `json:"records"`
	Recommendations []department.Recommendation `json:"recommendations"`
	Summary         department.Summary          `json:"summary"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestAnalyze_CSV(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")

	w := serve(newRouter(nil), req)

	require.Equal(t, http.StatusOK, w.Code)
	var got analysis
	decode(t, w, &got)
	require.Len(t, got.Records, 2)
	assert.Equal(t, 37.5, *got.Records[0].Ratio)
	assert.Equal(t, 770, got.Summary.TotalStudents)
	assert.Equal(t, 2800000.0, got.Summary.TotalBudget)
	require.Len(t, got.Recommendations, 3)
	assert.Equal(t, "English", got.Recommendations[2].Department)
	assert.Equal(t, department.SeverityBudgetWarning, got.Recommendations[2].Severity)
	assert.NotEmpty(t, w.Header().Get("Content-Type"))
}

func TestAnalyze_XLSXByQuery(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Department", "Students", "Faculty", "Budget"},
		{"Physics", 200, 10, 1500000},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?format=xlsx", &buf)
	w := serve(newRouter(nil), req)

	require.Equal(t, http.StatusOK, w.Code)
	var got analysis
	decode(t, w, &got)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "Physics", got.Records[0].Name)
	assert.Equal(t, 20.0, *got.Records[0].Ratio)
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		status      int
		code        string
	}{
		{"missing column", "/api/v1/analyze", "text/csv", "Department,Students\nX,1\n", http.StatusBadRequest, "MISSING_COLUMN"},
		{"bad row", "/api/v1/analyze", "text/csv", "Department,Students,Faculty,Budget\nX,-1,1,1\n", http.StatusBadRequest, "INVALID_ROW"},
		{"empty body", "/api/v1/analyze", "", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown format", "/api/v1/analyze?format=ods", "", csvBody, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE"},
		{"unknown content type", "/api/v1/analyze", "image/png", csvBody, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			w := serve(newRouter(nil), req)

			assert.Equal(t, tt.status, w.Code)
			var resp ErrorResponse
			decode(t, w, &resp)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestAnalyze_RowDetails(t *testing.T) {
	body := "Department,Students,Faculty,Budget\nA,x,1,1\nB,1,y,1\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))

	w := serve(newRouter(nil), req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "invalid data", resp.Error)
	assert.Len(t, resp.Details, 2)
}

func TestAnalyze_BodyTooLarge(t *testing.T) {
	body := strings.Repeat("x", 1<<17)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))

	w := serve(newRouter(nil), req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSample(t *testing.T) {
	w := serve(newRouter(nil), httptest.NewRequest(http.MethodGet, "/api/v1/sample", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got analysis
	decode(t, w, &got)
	assert.Len(t, got.Records, 8)
	assert.Len(t, got.Recommendations, 5)
	assert.Equal(t, 2480, got.Summary.TotalStudents)
	assert.Equal(t, 91, got.Summary.TotalFaculty)
	assert.InDelta(t, 27.344877, got.Summary.AverageRatio, 1e-6)
}

func TestInsights(t *testing.T) {
	summary := `{"total_students":2480,"total_faculty":91,"average_ratio":27.3,"total_budget":10900000}`

	t.Run("success", func(t *testing.T) {
		r := newRouter(&llm.MockLLMClient{Response: "Invest in English."})
		w := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/insights", strings.NewReader(summary)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"text":"Invest in English.","failed":false}`, w.Body.String())
	})

	t.Run("no client configured", func(t *testing.T) {
		w := serve(newRouter(nil), httptest.NewRequest(http.MethodPost, "/api/v1/insights", strings.NewReader(summary)))

		require.Equal(t, http.StatusOK, w.Code)
		var resp InsightResponse
		decode(t, w, &resp)
		assert.True(t, resp.Failed)
		assert.Equal(t, app.FallbackMessage, resp.Text)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := serve(newRouter(nil), httptest.NewRequest(http.MethodPost, "/api/v1/insights", strings.NewReader("{")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthz(t *testing.T) {
	w := serve(newRouter(nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
}

func TestUsage(t *testing.T) {
	logger := internal.NewNopLogger()
	tracker := usage.NewTracker(5, logger)
	insights := app.NewInsightService(&llm.MockLLMClient{Response: "ok"}, nil, app.InsightConfig{Model: "m"}, logger).
		WithUsageTracker(tracker)
	r := NewRouter(Config{Insights: insights, Usage: tracker, Logger: logger})

	body := `{"total_students":1,"total_faculty":1,"average_ratio":1,"total_budget":1}`
	require.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/insights", strings.NewReader(body))).Code)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Summary usage.Summary  `json:"summary"`
		Recent  []usage.Record `json:"recent"`
	}
	decode(t, w, &got)
	assert.Equal(t, 1, got.Summary.Requests)
	assert.Len(t, got.Recent, 1)

	disabled := serve(newRouter(nil), httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil))
	assert.Equal(t, http.StatusNotFound, disabled.Code)
}
