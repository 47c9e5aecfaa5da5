package ui

import (
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"unidss/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// setupMiddleware configures Gin middleware and the static file tree
func (s *Server) setupMiddleware() error {
	s.router.Use(requestLogger(s.logger), gin.Recovery())

	staticFS, err := fs.Sub(s.embeddedFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create static filesystem: %w", err)
	}
	s.router.StaticFS("/static", http.FS(staticFS))
	return nil
}

// requestLogger logs one line per request with typed zap fields
func requestLogger(logger *internal.Logger) gin.HandlerFunc {
	zl := logger.Zap().Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			zl.Error("request", fields...)
		case status >= http.StatusBadRequest:
			zl.Warn("request", fields...)
		default:
			zl.Info("request", fields...)
		}
	}
}
