package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"unidss/adapters/llm"
	"unidss/ai"
	"unidss/app"
	"unidss/domain/department"
	"unidss/internal"
	"unidss/internal/testkit"
	"unidss/internal/usage"
	"unidss/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRowCSV = "Department,Students,Faculty,Budget\n" +
	"Computer Science,450,12,2000000\n" +
	"History,180,8,600000\n"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, client ports.LLMClient, maxUpload int64) *Server {
	t.Helper()
	logger := internal.NewNopLogger()
	insights := app.NewInsightService(client, ai.NewPromptManager(""), app.InsightConfig{Model: "gpt-3.5-turbo"}, logger)
	dash := app.NewDashboard(department.DefaultRules(), insights, logger)
	s := NewServer(Assets, dash, testkit.NewTestKit(logger), Options{MaxUploadBytes: maxUpload, Logger: logger})
	require.NoError(t, s.Initialize())
	return s
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	return do(s, httptest.NewRequest(http.MethodGet, path, nil))
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("dataset", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIndex_Idle(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := get(s, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Upload a CSV file to get started!")
	assert.Contains(t, w.Body.String(), "Use Sample Data")
	assert.NotContains(t, w.Body.String(), "chart-data")
}

func TestSample_LoadsBundledDepartments(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := do(s, httptest.NewRequest(http.MethodPost, "/sample", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	page := get(s, "/").Body.String()
	assert.Contains(t, page, "Total Students")
	assert.Contains(t, page, "2,480")
	assert.Contains(t, page, "$10,900,000.00")
	assert.Contains(t, page, "High student-faculty ratio in Computer Science (37.5:1). Consider hiring more faculty.")
	assert.Contains(t, page, "Low budget per student in History ($3333.33). Consider budget increase.")
	assert.Contains(t, page, `id="chart-data"`)
	assert.Contains(t, page, RatioChartTitle)
}

func TestUpload_JSONClient(t *testing.T) {
	s := newTestServer(t, nil, 0)
	req := uploadRequest(t, "departments.csv", []byte(twoRowCSV))
	req.Header.Set("Accept", "application/json")

	w := do(s, req)

	require.Equal(t, http.StatusOK, w.Code)
	var v struct {
		State   string `json:"state"`
		Dataset struct {
			Source  string            `json:"source"`
			Records []json.RawMessage `json:"records"`
		} `json:"dataset"`
		Recommendations []department.Recommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "loaded", v.State)
	assert.Equal(t, "departments.csv", v.Dataset.Source)
	assert.Len(t, v.Dataset.Records, 2)
	assert.Len(t, v.Recommendations, 2)
}

func TestUpload_RejectedKeepsPreviousDataset(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		status   int
		banner   string
	}{
		{"missing column", "bad.csv", "Department,Students,Faculty\nX,1,1\n", http.StatusBadRequest,
			"Error processing file: missing required column(s): Budget"},
		{"bad number", "bad.csv", "Department,Students,Faculty,Budget\nX,many,1,10\n", http.StatusBadRequest,
			"Error processing file: invalid data"},
		{"empty", "empty.csv", "", http.StatusBadRequest, "Error processing file:"},
		{"unsupported", "notes.txt", twoRowCSV, http.StatusBadRequest,
			"Error processing file: unsupported file type: notes.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, 0)
			require.Equal(t, http.StatusSeeOther, do(s, uploadRequest(t, "good.csv", []byte(twoRowCSV))).Code)

			w := do(s, uploadRequest(t, tt.filename, []byte(tt.content)))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.banner)
			assert.Contains(t, w.Body.String(), "good.csv", "previous dataset is still shown")
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	s := newTestServer(t, nil, 64)

	w := do(s, uploadRequest(t, "big.csv", []byte(twoRowCSV)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, app.StateIdle, s.dashboard.Snapshot().State)
}

func TestUpload_MissingFile(t *testing.T) {
	s := newTestServer(t, nil, 0)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("Accept", "application/json")

	w := do(s, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INVALID_INPUT"`)
}

func TestInsights_NoDataset(t *testing.T) {
	s := newTestServer(t, nil, 0)
	req := httptest.NewRequest(http.MethodPost, "/insights", nil)
	req.Header.Set("Accept", "application/json")

	w := do(s, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NO_DATASET"`)
}

func TestInsights_RenderedAsMarkdown(t *testing.T) {
	client := &llm.MockLLMClient{Response: "## Key challenges\n\n- **English** is understaffed\n\n<script>alert(1)</script>"}
	s := newTestServer(t, client, 0)
	do(s, httptest.NewRequest(http.MethodPost, "/sample", nil))

	w := do(s, httptest.NewRequest(http.MethodPost, "/insights", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)

	page := get(s, "/").Body.String()
	assert.Contains(t, page, "Key challenges</h2>")
	assert.Contains(t, page, "<strong>English</strong>")
	assert.NotContains(t, page, "alert(1)")
	assert.Equal(t, app.StateInsightReady, s.dashboard.Snapshot().State)
}

func TestInsights_FailureShowsFallback(t *testing.T) {
	client := &llm.MockLLMClient{Error: assert.AnError}
	s := newTestServer(t, client, 0)
	do(s, httptest.NewRequest(http.MethodPost, "/sample", nil))

	do(s, httptest.NewRequest(http.MethodPost, "/insights", nil))

	page := get(s, "/").Body.String()
	assert.Contains(t, page, app.FallbackMessage)
	assert.Contains(t, page, "banner-error")
}

// blockingClient holds every completion until release is closed
type blockingClient struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingClient) ChatCompletion(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	close(b.started)
	<-b.release
	return "done", nil
}

func (b *blockingClient) ChatCompletionWithUsage(ctx context.Context, model, prompt string, maxTokens int) (*ports.LLMResponse, error) {
	content, err := b.ChatCompletion(ctx, model, prompt, maxTokens)
	return &ports.LLMResponse{Content: content}, err
}

func TestInsights_BusyIsConflict(t *testing.T) {
	client := &blockingClient{started: make(chan struct{}), release: make(chan struct{})}
	s := newTestServer(t, client, 0)
	do(s, httptest.NewRequest(http.MethodPost, "/sample", nil))

	first := make(chan int)
	go func() {
		first <- do(s, httptest.NewRequest(http.MethodPost, "/insights", nil)).Code
	}()
	<-client.started

	assert.Contains(t, get(s, "/").Body.String(), "Getting AI insights...")
	w := do(s, httptest.NewRequest(http.MethodPost, "/insights", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	close(client.release)
	select {
	case code := <-first:
		assert.Equal(t, http.StatusSeeOther, code)
	case <-time.After(5 * time.Second):
		t.Fatal("first insight request did not finish")
	}
}

func TestDashboardJSON_NonFiniteAsNull(t *testing.T) {
	s := newTestServer(t, nil, 0)
	csv := "Department,Students,Faculty,Budget\nGhost,10,0,1000\nReal,20,2,4000\n"
	require.Equal(t, http.StatusSeeOther, do(s, uploadRequest(t, "zero.csv", []byte(csv))).Code)

	w := get(s, "/api/dashboard")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Dataset struct {
			Records []struct {
				Ratio *float64 `json:"student_faculty_ratio"`
			} `json:"records"`
		} `json:"dataset"`
		Charts Charts `json:"charts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Dataset.Records, 2)
	assert.Nil(t, resp.Dataset.Records[0].Ratio)
	assert.Equal(t, 10.0, *resp.Dataset.Records[1].Ratio)
	assert.Nil(t, resp.Charts.Ratio.Data.Datasets[0].Data[0])
	assert.Equal(t, "pie", resp.Charts.Budget.Type)

	assert.Contains(t, get(s, "/").Body.String(), "∞")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := get(s, "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","state":"idle"}`, w.Body.String())
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, nil, 0)

	assert.Equal(t, http.StatusOK, get(s, "/static/js/dashboard.js").Code)
	assert.Equal(t, http.StatusOK, get(s, "/static/css/dashboard.css").Code)
}

func TestUsageEndpoint(t *testing.T) {
	logger := internal.NewNopLogger()
	tracker := usage.NewTracker(0, logger)
	insights := app.NewInsightService(&llm.MockLLMClient{Response: "ok"}, nil, app.InsightConfig{Model: "m"}, logger).
		WithUsageTracker(tracker)
	dash := app.NewDashboard(department.DefaultRules(), insights, logger)
	s := NewServer(Assets, dash, testkit.NewTestKit(logger), Options{Logger: logger, Usage: tracker})
	require.NoError(t, s.Initialize())

	do(s, httptest.NewRequest(http.MethodPost, "/sample", nil))
	do(s, httptest.NewRequest(http.MethodPost, "/insights", nil))
	w := get(s, "/api/usage")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"requests":1`)
	assert.Equal(t, http.StatusNotFound, get(newTestServer(t, nil, 0), "/api/usage").Code)
}

func TestExport(t *testing.T) {
	s := newTestServer(t, nil, 0)
	assert.Equal(t, http.StatusBadRequest, get(s, "/export").Code)

	do(s, uploadRequest(t, "two.csv", []byte(twoRowCSV)))

	w := get(s, "/export")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "departments.csv")
	assert.Contains(t, w.Body.String(), "Department,Students,Faculty,Budget,Student-Faculty Ratio,Budget per Student")
	assert.Contains(t, w.Body.String(), "History,180,8,600000,22.5,")

	xlsx := get(s, "/export?format=xlsx")
	require.Equal(t, http.StatusOK, xlsx.Code)
	assert.True(t, bytes.HasPrefix(xlsx.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	assert.Equal(t, http.StatusBadRequest, get(s, "/export?format=ods").Code)
}

func TestExport_PinnedDataset(t *testing.T) {
	s := newTestServer(t, nil, 0)
	do(s, uploadRequest(t, "two.csv", []byte(twoRowCSV)))
	first := s.dashboard.Snapshot().Dataset.ID

	assert.Contains(t, get(s, "/").Body.String(), "/export?format=csv&amp;dataset="+first.String())
	assert.Equal(t, http.StatusOK, get(s, "/export?dataset="+first.String()).Code)
	assert.Equal(t, http.StatusBadRequest, get(s, "/export?dataset=not-a-uuid").Code)

	do(s, httptest.NewRequest(http.MethodPost, "/sample", nil))

	w := get(s, "/export?format=xlsx&dataset="+first.String())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "has been replaced")
}
