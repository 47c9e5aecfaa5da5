package ui

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"unidss/adapters/excel"
	"unidss/app"
	"unidss/internal"
	"unidss/internal/testkit"
	"unidss/internal/usage"

	"github.com/gin-gonic/gin"
)

// Options tunes the dashboard server
type Options struct {
	// MaxUploadBytes bounds the multipart request body of POST /upload
	MaxUploadBytes int64
	Columns        excel.Columns
	Logger         *internal.Logger
	// Usage, when set, is served at GET /api/usage
	Usage *usage.Tracker
}

// Server represents the web server for the dashboard
type Server struct {
	router        *gin.Engine
	dashboard     *app.Dashboard
	testkit       *testkit.TestKit
	templates     *template.Template
	embeddedFiles fs.FS
	logger        *internal.Logger
	maxUpload     int64
	columns       excel.Columns
	usage         *usage.Tracker
	httpServer    *http.Server
}

// NewServer creates a new web server instance. assets must contain the
// templates/ and static/ directories, normally the package's Assets.
func NewServer(assets fs.FS, dashboard *app.Dashboard, kit *testkit.TestKit, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = internal.DefaultLogger
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.Columns == (excel.Columns{}) {
		opts.Columns = excel.DefaultColumns()
	}
	router := gin.New()
	router.MaxMultipartMemory = opts.MaxUploadBytes
	return &Server{
		router:        router,
		dashboard:     dashboard,
		testkit:       kit,
		embeddedFiles: assets,
		logger:        opts.Logger,
		maxUpload:     opts.MaxUploadBytes,
		columns:       opts.Columns,
		usage:         opts.Usage,
	}
}

// Initialize parses templates and registers middleware and routes
func (s *Server) Initialize() error {
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(s.embeddedFiles, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = tmpl
	s.logger.Debug("[TemplateInit] parsed templates: %s", tmpl.DefinedTemplates())

	if err := s.setupMiddleware(); err != nil {
		return err
	}
	s.setupRoutes()
	return nil
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.POST("/upload", s.handleUpload)
	s.router.POST("/sample", s.handleSample)
	s.router.POST("/insights", s.handleInsights)

	s.router.GET("/export", s.handleExport)
	s.router.GET("/api/dashboard", s.handleDashboardJSON)
	s.router.GET("/healthz", s.handleHealth)
	if s.usage != nil {
		s.router.GET("/api/usage", s.handleUsage)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting dashboard on http://%s", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	s.logger.Info("Shutting down dashboard")
	return s.httpServer.Shutdown(shutdownCtx)
}
