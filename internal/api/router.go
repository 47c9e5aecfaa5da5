// Package api serves the stateless JSON API: analyze an uploaded file, the
// bundled sample, or ask for a narrative of a summary.
package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"unidss/adapters/excel"
	"unidss/app"
	"unidss/domain/department"
	"unidss/internal"
	"unidss/internal/errors"
	"unidss/internal/testkit"
	"unidss/internal/usage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Config holds the router dependencies
type Config struct {
	Insights     *app.InsightService
	Usage        *usage.Tracker
	TestKit      *testkit.TestKit
	Rules        department.Rules
	Columns      excel.Columns
	MaxBodyBytes int64
	Logger       *internal.Logger
}

// Router is the chi-based JSON API
type Router struct {
	mux      *chi.Mux
	insights *app.InsightService
	usage    *usage.Tracker
	kit      *testkit.TestKit
	rules    department.Rules
	columns  excel.Columns
	maxBody  int64
	logger   *internal.Logger
}

// AnalysisResponse is the result of analyzing one dataset
type AnalysisResponse struct {
	Records         []department.DerivedRecord  `json:"records"`
	Recommendations []department.Recommendation `json:"recommendations"`
	Summary         department.Summary          `json:"summary"`
}

// InsightResponse carries the narrative, or the fallback when Failed
type InsightResponse struct {
	Text   string `json:"text"`
	Failed bool   `json:"failed"`
}

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// NewRouter wires middleware and routes
func NewRouter(config Config) *Router {
	if config.Logger == nil {
		config.Logger = internal.DefaultLogger
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 10 << 20
	}
	if config.Columns == (excel.Columns{}) {
		config.Columns = excel.DefaultColumns()
	}
	if config.TestKit == nil {
		config.TestKit = testkit.NewTestKit(config.Logger)
	}
	if config.Insights == nil {
		config.Insights = app.NewInsightService(nil, nil, app.InsightConfig{}, config.Logger)
	}

	r := &Router{
		mux:      chi.NewRouter(),
		insights: config.Insights,
		usage:    config.Usage,
		kit:      config.TestKit,
		rules:    config.Rules,
		columns:  config.Columns,
		maxBody:  config.MaxBodyBytes,
		logger:   config.Logger,
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

func (r *Router) setupMiddleware() {
	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.RealIP)
	r.mux.Use(middleware.Logger)
	r.mux.Use(middleware.Recoverer)
}

func (r *Router) setupRoutes() {
	r.mux.Get("/healthz", r.handleHealth)
	r.mux.Route("/api/v1", func(api chi.Router) {
		api.Post("/analyze", r.handleAnalyze)
		api.Get("/sample", r.handleSample)
		api.Post("/insights", r.handleInsights)
		api.Get("/usage", r.handleUsage)
	})
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze parses the raw request body as CSV or xlsx. ?format= wins
// over Content-Type; CSV is the default.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) {
	ft, err := requestFileType(req)
	if err != nil {
		r.writeError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "request body too large",
				Code:  errors.CodeInvalidInput,
			})
			return
		}
		r.writeError(w, errors.Wrap(errors.WithCode(errors.CodeInvalidInput, err), "failed to read request body"))
		return
	}

	records, err := excel.NewDataReader(ft, r.logger).ReadDepartments(body, r.columns)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, r.analyze(records))
}

func (r *Router) handleSample(w http.ResponseWriter, req *http.Request) {
	records, err := r.kit.SampleRecords()
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, r.analyze(records))
}

func (r *Router) handleInsights(w http.ResponseWriter, req *http.Request) {
	var summary department.Summary
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.maxBody))
	if err := dec.Decode(&summary); err != nil {
		r.writeError(w, errors.Wrap(errors.WithCode(errors.CodeInvalidInput, err), "invalid summary"))
		return
	}

	ins, err := r.insights.TryGenerate(req.Context(), summary)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InsightResponse{Text: ins.Text, Failed: ins.Failed})
}

// handleUsage reports completion usage totals and the most recent calls
func (r *Router) handleUsage(w http.ResponseWriter, req *http.Request) {
	if r.usage == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "usage tracking is disabled", Code: errors.CodeInvalidInput})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": r.usage.Summary(),
		"recent":  r.usage.Recent(10),
	})
}

func (r *Router) analyze(records []department.Record) AnalysisResponse {
	derived := department.Derive(records)
	return AnalysisResponse{
		Records:         derived,
		Recommendations: r.rules.Recommend(derived),
		Summary:         department.Summarize(derived),
	}
}

func requestFileType(req *http.Request) (excel.FileType, error) {
	if f := strings.ToLower(req.URL.Query().Get("format")); f != "" {
		switch excel.FileType(f) {
		case excel.FileTypeCSV, excel.FileTypeXLSX:
			return excel.FileType(f), nil
		}
		return "", errors.Newf(errors.CodeUnsupportedFile, "unsupported format: %s", f)
	}

	ct := req.Header.Get("Content-Type")
	if ct == "" {
		return excel.FileTypeCSV, nil
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", errors.Newf(errors.CodeInvalidInput, "invalid Content-Type %q", ct)
	}
	switch mt {
	case xlsxContentType:
		return excel.FileTypeXLSX, nil
	case "text/csv", "application/csv", "text/plain", "application/octet-stream":
		return excel.FileTypeCSV, nil
	default:
		return "", errors.Newf(errors.CodeUnsupportedFile, "unsupported content type: %s", mt)
	}
}

func (r *Router) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: errors.GetCode(err)}

	var rowErrs excel.RowErrors
	if stderrors.As(err, &rowErrs) {
		resp.Error = "invalid data"
		for _, e := range rowErrs {
			resp.Details = append(resp.Details, e.Error())
		}
	}

	if status >= http.StatusInternalServerError {
		r.logger.Error("[api] %v", err)
	} else {
		r.logger.Debug("[api] %s: %v", resp.Code, err)
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput, errors.CodeMissingColumn, errors.CodeInvalidRow, errors.CodeValidationError:
		return http.StatusBadRequest
	case errors.CodeUnsupportedFile:
		return http.StatusUnsupportedMediaType
	case errors.CodeInsightBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
