package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docvault/docvault/constants"
	"github.com/docvault/docvault/internal/pipeline"
)

// Exporter builds the XLSX workbook for an owner.
type Exporter interface {
	Workbook(ctx context.Context, ownerID string) (*bytes.Buffer, error)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			respondError(c, s.logger, http.StatusServiceUnavailable, "unhealthy", err.Error())
			return
		}
	}
	respondOK(c, gin.H{"status": "ok"})
}

// handleProcess accepts a multipart upload with a "file" part and a
// "documentType" field, runs the pipeline and returns the pending analysis.
func (s *Server) handleProcess(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes)

	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, s.logger, http.StatusBadRequest, "invalid_upload", "Missing or oversized file part")
		return
	}

	declaredType := c.PostForm("documentType")
	if cat, ok := constants.Canonicalize(declaredType); !ok || cat == constants.Unknown {
		respondError(c, s.logger, http.StatusBadRequest, "invalid_document_type",
			fmt.Sprintf("Unknown document type %q", declaredType))
		return
	}

	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = constants.GuessMIME(file.Filename)
	}

	path := filepath.Join(s.uploadDir, "dv-upload-"+uuid.NewString()+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, path); err != nil {
		respondError(c, s.logger, http.StatusInternalServerError, "upload_failed", "Could not store upload")
		return
	}

	result, err := s.pipeline.Process(c.Request.Context(), path, mimeType, declaredType, c.GetString(userIDKey))
	if err != nil {
		respondError(c, s.logger, http.StatusInternalServerError, "processing_failed", "Document processing failed")
		return
	}
	respondOK(c, result)
}

type confirmRequest struct {
	RecordID            string `json:"recordId" binding:"required"`
	DocumentType        string `json:"documentType"`
	UseAIClassification bool   `json:"useAiClassification"`
}

func (s *Server) handleConfirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, s.logger, http.StatusBadRequest, "invalid_body", "Malformed JSON body or missing recordId")
		return
	}
	if req.DocumentType != "" {
		if cat, ok := constants.Canonicalize(req.DocumentType); !ok || cat == constants.Unknown {
			respondError(c, s.logger, http.StatusBadRequest, "invalid_document_type",
				fmt.Sprintf("Unknown document type %q", req.DocumentType))
			return
		}
	}

	result, err := s.pipeline.Confirm(c.Request.Context(), req.RecordID, c.GetString(userIDKey), req.DocumentType, req.UseAIClassification)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}
	respondOK(c, result)
}

type rejectRequest struct {
	RecordID string `json:"recordId" binding:"required"`
}

func (s *Server) handleReject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, s.logger, http.StatusBadRequest, "invalid_body", "Malformed JSON body or missing recordId")
		return
	}
	if err := s.pipeline.Reject(c.Request.Context(), req.RecordID, c.GetString(userIDKey)); err != nil {
		s.respondPipelineError(c, err)
		return
	}
	respondOK(c, gin.H{"status": constants.IngestionRejected})
}

func (s *Server) handleExport(c *gin.Context) {
	buf, err := s.exporter.Workbook(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		respondError(c, s.logger, http.StatusInternalServerError, "export_failed", "Could not build spreadsheet")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="documentos.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (s *Server) respondPipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		respondError(c, s.logger, http.StatusNotFound, "not_found", "Pending document not found or expired")
	case errors.Is(err, pipeline.ErrForbidden):
		respondError(c, s.logger, http.StatusForbidden, "forbidden", "Pending document belongs to another user")
	default:
		respondError(c, s.logger, http.StatusInternalServerError, "internal", "Operation failed")
	}
}
