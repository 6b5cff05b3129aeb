// Package server exposes the document pipeline over HTTP.
package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/docvault/docvault/internal/pipeline"
)

// Pipeline is the processing surface the handlers call.
type Pipeline interface {
	Process(ctx context.Context, path, mimeType, declaredType, ownerID string) (pipeline.ProcessResult, error)
	Confirm(ctx context.Context, pendingID, ownerID, finalType string, useAIClassification bool) (pipeline.ConfirmResult, error)
	Reject(ctx context.Context, pendingID, ownerID string) error
}

// Health reports readiness of a dependency.
type Health func(ctx context.Context) error

type Server struct {
	pipeline  Pipeline
	exporter  Exporter
	health    Health
	logger    *slog.Logger
	maxBytes  int64
	uploadDir string
}

type Options struct {
	// MaxUploadBytes bounds multipart uploads. Default 20 MiB.
	MaxUploadBytes int64
	// UploadDir receives uploads before the pipeline consumes them.
	// Default os.TempDir().
	UploadDir string
}

func New(p Pipeline, exporter Exporter, health Health, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	return &Server{
		pipeline:  p,
		exporter:  exporter,
		health:    health,
		logger:    logger,
		maxBytes:  opts.MaxUploadBytes,
		uploadDir: opts.UploadDir,
	}
}

// Router assembles the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestID(), logging(s.logger), recovery(s.logger))

	r.GET("/health", s.handleHealth)

	docs := r.Group("/documents", auth(s.logger))
	{
		docs.POST("/process", s.handleProcess)
		docs.POST("/confirm", s.handleConfirm)
		docs.POST("/reject", s.handleReject)
		docs.GET("/export", s.handleExport)
	}
	return r
}
