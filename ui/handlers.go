package ui

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"unidss/adapters/excel"
	"unidss/app"
	"unidss/domain/core"
	"unidss/internal/errors"
	"unidss/internal/testkit"

	"github.com/gin-gonic/gin"
)

const pageTitle = "University Decision Support System"

// pageData is what index.html renders
type pageData struct {
	Title       string
	View        app.View
	Charts      *Charts
	InsightHTML template.HTML
	Error       string
	MaxUploadMB int64
}

// DashboardResponse is the JSON form of the dashboard
type DashboardResponse struct {
	app.View
	Charts *Charts `json:"charts,omitempty"`
}

func (s *Server) page(v app.View, errMsg string) pageData {
	data := pageData{
		Title:       pageTitle,
		View:        v,
		Error:       errMsg,
		MaxUploadMB: s.maxUpload >> 20,
	}
	if v.HasData() {
		charts := BuildCharts(v.Dataset.Records)
		data.Charts = &charts
	}
	if v.Insight != "" {
		data.InsightHTML = renderMarkdown(v.Insight)
	}
	return data
}

// handleIndex renders the dashboard for the current snapshot
func (s *Server) handleIndex(c *gin.Context) {
	s.renderTemplate(c, http.StatusOK, "index.html", s.page(s.dashboard.Snapshot(), ""))
}

// handleUpload parses the multipart "dataset" file and replaces the
// dataset. On any error the previous dataset is kept.
func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+(1<<20))

	file, header, err := c.Request.FormFile("dataset")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds the %d MB limit", s.maxUpload>>20))
			return
		}
		s.fail(c, http.StatusBadRequest, errors.InvalidInput("no file uploaded"))
		return
	}
	defer file.Close()

	if header.Size > s.maxUpload {
		s.fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("file size (%.1f MB) exceeds the %d MB limit", float64(header.Size)/(1<<20), s.maxUpload>>20))
		return
	}

	reader, err := excel.NewDataReaderForFile(header.Filename, s.logger)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.fail(c, http.StatusBadRequest, errors.Wrap(err, "failed to read upload"))
		return
	}

	records, err := reader.ReadDepartments(content, s.columns)
	if err != nil {
		s.logger.Warn("[handleUpload] rejected %s: %v", header.Filename, err)
		s.fail(c, statusFor(err), err)
		return
	}

	v := s.dashboard.Load(header.Filename, records)
	s.respond(c, v)
}

// handleSample loads the bundled sample departments
func (s *Server) handleSample(c *gin.Context) {
	records, err := s.testkit.SampleRecords()
	if err != nil {
		s.logger.Error("[handleSample] %v", err)
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	v := s.dashboard.Load(testkit.SampleSource, records)
	s.respond(c, v)
}

// handleInsights blocks until the narrative for the current dataset is
// ready (or has failed)
func (s *Server) handleInsights(c *gin.Context) {
	v, err := s.dashboard.RequestInsight(c.Request.Context())
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	s.respond(c, v)
}

// handleExport downloads the derived table as CSV (default) or xlsx
func (s *Server) handleExport(c *gin.Context) {
	v := s.dashboard.Snapshot()
	if !v.HasData() {
		s.fail(c, http.StatusBadRequest, errors.NoDataset())
		return
	}

	// dataset pins the download to the load the page was rendered from
	if want := core.DatasetID(c.Query("dataset")); !want.IsEmpty() {
		id, err := core.ParseDatasetID(want.String())
		if err != nil {
			s.fail(c, http.StatusBadRequest, errors.ValidationError(err.Error()))
			return
		}
		if id != v.Dataset.ID {
			s.fail(c, http.StatusConflict, errors.StaleDataset(id.String()))
			return
		}
	}

	ft := excel.FileType(strings.ToLower(c.DefaultQuery("format", string(excel.FileTypeCSV))))
	contentType := "text/csv; charset=utf-8"
	switch ft {
	case excel.FileTypeCSV:
	case excel.FileTypeXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		s.fail(c, http.StatusBadRequest, errors.Newf(errors.CodeUnsupportedFile, "unsupported export format: %s", ft))
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteDepartments(&buf, ft, s.columns, v.Dataset.Records); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"departments.%s\"", ft))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) handleDashboardJSON(c *gin.Context) {
	v := s.dashboard.Snapshot()
	resp := DashboardResponse{View: v}
	if v.HasData() {
		charts := BuildCharts(v.Dataset.Records)
		resp.Charts = &charts
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": s.dashboard.Snapshot().State})
}

func (s *Server) handleUsage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"summary": s.usage.Summary(), "recent": s.usage.Recent(10)})
}

// respond answers a successful form action: JSON clients get the view,
// browsers are redirected back to the dashboard.
func (s *Server) respond(c *gin.Context, v app.View) {
	if wantsJSON(c) {
		c.JSON(http.StatusOK, v)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// fail re-renders the dashboard with an error banner, keeping whatever
// dataset is loaded
func (s *Server) fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	if wantsJSON(c) {
		c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
		return
	}
	s.renderTemplate(c, status, "index.html", s.page(s.dashboard.Snapshot(), errorBanner(err)))
}

func errorBanner(err error) string {
	switch errors.GetCode(err) {
	case errors.CodeInsightBusy, errors.CodeNoDataset, errors.CodeStaleDataset, errors.CodeValidationError:
		return err.Error()
	default:
		return "Error processing file: " + err.Error()
	}
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput, errors.CodeMissingColumn, errors.CodeInvalidRow,
		errors.CodeUnsupportedFile, errors.CodeValidationError, errors.CodeNoDataset:
		return http.StatusBadRequest
	case errors.CodeInsightBusy, errors.CodeStaleDataset:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
