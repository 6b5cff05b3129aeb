// Package pipeline chains extraction, analysis and insight generation for an
// uploaded document, parks the result for user confirmation, and persists it
// once the owner confirms.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/docvault/constants"
	"github.com/docvault/docvault/internal/analyze"
	"github.com/docvault/docvault/internal/insights"
	"github.com/docvault/docvault/internal/pending"
)

var (
	// ErrNotFound means the pending entry is missing, expired or already
	// resolved.
	ErrNotFound = errors.New("pending document not found or expired")
	// ErrForbidden means the caller does not own the pending entry.
	ErrForbidden = errors.New("pending document belongs to another user")
)

// TextExtractor yields the text content of an uploaded file, or a sentinel
// message when nothing legible comes out.
type TextExtractor interface {
	Extract(ctx context.Context, path, mimeType string) string
}

// Analyzer produces the structured analysis for extracted text.
type Analyzer interface {
	Analyze(ctx context.Context, text, declaredType string) analyze.Result
}

// InsightGenerator produces the summary and attention points.
type InsightGenerator interface {
	Generate(ctx context.Context, text, category string) insights.Insights
}

// RecordStore persists confirmed documents.
type RecordStore interface {
	SaveMedical(ctx context.Context, ownerID string, res analyze.Result) (uuid.UUID, error)
	SaveFinancial(ctx context.Context, ownerID string, res analyze.Result) (uuid.UUID, error)
	SaveBudget(ctx context.Context, ownerID string, res analyze.Result) (uuid.UUID, error)
	SaveDocument(ctx context.Context, ownerID, docType string, res analyze.Result) (uuid.UUID, error)
}

type Config struct {
	// ReclassifyConfidence gates the opt-in switch to the AI category on
	// confirm. Default 70.
	ReclassifyConfidence int
}

type Processor struct {
	extractor TextExtractor
	analyzer  Analyzer
	insights  InsightGenerator
	pending   pending.Store
	records   RecordStore
	cfg       Config
	logger    *slog.Logger
}

func New(
	extractor TextExtractor,
	analyzer Analyzer,
	gen InsightGenerator,
	pendingStore pending.Store,
	records RecordStore,
	cfg Config,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReclassifyConfidence <= 0 {
		cfg.ReclassifyConfidence = 70
	}
	return &Processor{
		extractor: extractor,
		analyzer:  analyzer,
		insights:  gen,
		pending:   pendingStore,
		records:   records,
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessResult is returned to the caller for review before confirmation.
// RecordID is the pending identifier; it becomes a durable record id only
// after Confirm.
type ProcessResult struct {
	RecordID               string                    `json:"recordId"`
	Status                 constants.IngestionStatus `json:"status"`
	DocumentType           string                    `json:"documentType"`
	ExtractedText          string                    `json:"extractedText"`
	ClassificationMismatch *analyze.Mismatch         `json:"classificationMismatch,omitempty"`
	Analysis               analyze.Result            `json:"analysis"`
}

// Process runs the full pipeline on an uploaded file and parks the outcome
// as a pending entry. The upload file is deleted before returning, on every
// path.
func (p *Processor) Process(ctx context.Context, path, mimeType, declaredType, ownerID string) (ProcessResult, error) {
	pendingID := uuid.NewString()
	logger := p.logger.With("pending_id", pendingID, "owner_id", ownerID, "declared_type", declaredType)
	start := time.Now()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("pipeline.cleanup_failed", "path", path, "error", err)
		}
	}()

	logger.Info("pipeline.process.start", "mime_type", mimeType)

	text := p.extractor.Extract(ctx, path, mimeType)
	result := p.analyzer.Analyze(ctx, text, declaredType)

	// the generator owns the narrative; the analyzer's one-line summary only
	// survives when generation fell back to the generic text
	ins := p.insights.Generate(ctx, text, declaredType)
	if ins.Summary != insights.FallbackSummary || result.Summary == "" {
		result.Summary = ins.Summary
	}
	if len(result.PointsOfAttention) == 0 || ins.Summary != insights.FallbackSummary {
		result.PointsOfAttention = ins.PointsOfAttention
	}

	entry := pending.Entry{
		ID:            pendingID,
		OwnerID:       ownerID,
		DeclaredType:  declaredType,
		ExtractedText: text,
		Analysis:      result,
		CreatedAt:     time.Now(),
	}
	if err := p.pending.Put(ctx, entry); err != nil {
		logger.Error("pipeline.process.store_failed", "error", err)
		return ProcessResult{}, fmt.Errorf("store pending analysis: %w", err)
	}

	logger.Info("pipeline.process.ok",
		"text_chars", len(text),
		"mismatch", result.ClassificationMismatch != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ProcessResult{
		RecordID:               pendingID,
		Status:                 constants.IngestionAnalyzed,
		DocumentType:           declaredType,
		ExtractedText:          text,
		ClassificationMismatch: result.ClassificationMismatch,
		Analysis:               result,
	}, nil
}

// ConfirmResult reports where the confirmed document landed.
type ConfirmResult struct {
	RecordID     uuid.UUID                 `json:"recordId"`
	Status       constants.IngestionStatus `json:"status"`
	DocumentType string                    `json:"documentType"`
	Reclassified bool                      `json:"reclassified"`
}

// Confirm consumes a pending entry and persists the document. finalType,
// when non-empty, replaces the type declared at upload. With
// useAIClassification set, a confident AI verdict overrides both; otherwise
// the user's choice always wins.
func (p *Processor) Confirm(ctx context.Context, pendingID, ownerID, finalType string, useAIClassification bool) (ConfirmResult, error) {
	entry, err := p.pending.Get(ctx, pendingID)
	if err != nil {
		return ConfirmResult{}, ErrNotFound
	}
	if entry.OwnerID != ownerID {
		p.logger.Warn("pipeline.confirm.forbidden", "pending_id", pendingID, "owner_id", ownerID)
		return ConfirmResult{}, ErrForbidden
	}

	// the winner of the take performs the write; a concurrent confirm or
	// reject loses here
	entry, err = p.pending.Take(ctx, pendingID)
	if err != nil {
		return ConfirmResult{}, ErrNotFound
	}

	docType, reclassified := p.resolveType(entry, finalType, useAIClassification)

	res := entry.Analysis
	category, _ := constants.Canonicalize(docType)

	var recordID uuid.UUID
	switch category {
	case constants.Medical:
		recordID, err = p.records.SaveMedical(ctx, ownerID, res)
	case constants.Financial:
		recordID, err = p.records.SaveFinancial(ctx, ownerID, res)
	case constants.Budget:
		recordID, err = p.records.SaveBudget(ctx, ownerID, res)
	default:
		recordID, err = p.records.SaveDocument(ctx, ownerID, docType, res)
	}
	if err != nil {
		// the entry is gone; repark it so the user can retry the confirm
		if putErr := p.pending.Put(ctx, entry); putErr != nil {
			p.logger.Error("pipeline.confirm.repark_failed", "pending_id", pendingID, "error", putErr)
		}
		p.logger.Error("pipeline.confirm.save_failed", "pending_id", pendingID, "error", err)
		return ConfirmResult{}, fmt.Errorf("persist document: %w", err)
	}

	p.logger.Info("pipeline.confirm.ok",
		"pending_id", pendingID,
		"record_id", recordID,
		"document_type", docType,
		"reclassified", reclassified,
	)
	return ConfirmResult{
		RecordID:     recordID,
		Status:       constants.IngestionConfirmed,
		DocumentType: docType,
		Reclassified: reclassified,
	}, nil
}

func (p *Processor) resolveType(entry pending.Entry, finalType string, useAIClassification bool) (string, bool) {
	chosen := entry.DeclaredType
	if finalType != "" {
		chosen = finalType
	}
	if !useAIClassification {
		return chosen, false
	}
	cls := entry.Analysis.Classification
	if cls == nil || cls.Category == constants.Unknown {
		return chosen, false
	}
	if cls.Confidence <= p.cfg.ReclassifyConfidence {
		return chosen, false
	}
	chosenCat, _ := constants.Canonicalize(chosen)
	if cls.Category == chosenCat {
		return chosen, false
	}
	return string(cls.Category), true
}

// Reject discards a pending entry. Nothing is persisted.
func (p *Processor) Reject(ctx context.Context, pendingID, ownerID string) error {
	entry, err := p.pending.Get(ctx, pendingID)
	if err != nil {
		return ErrNotFound
	}
	if entry.OwnerID != ownerID {
		p.logger.Warn("pipeline.reject.forbidden", "pending_id", pendingID, "owner_id", ownerID)
		return ErrForbidden
	}
	if _, err := p.pending.Take(ctx, pendingID); err != nil {
		return ErrNotFound
	}
	p.logger.Info("pipeline.reject.ok", "pending_id", pendingID)
	return nil
}
