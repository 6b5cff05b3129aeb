// Package analyze extracts structured fields and a narrative summary from
// document text via the completion endpoint, cross-checking the user's
// declared type against the classifier's verdict.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docvault/docvault/constants"
	"github.com/docvault/docvault/internal/classify"
	"github.com/docvault/docvault/internal/llm"
)

// BudgetItem is one line of a quoted budget.
type BudgetItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Mismatch flags a disagreement between the declared type and a confident
// AI classification. It is surfaced for manual reconciliation, never
// auto-applied.
type Mismatch struct {
	DeclaredType  string `json:"declaredType"`
	SuggestedType string `json:"suggestedType"`
	Confidence    int    `json:"confidence"`
	Reason        string `json:"reason"`
}

// Result is the superset analysis payload. Category-specific fields are nil
// when the document (or the model) does not provide them.
type Result struct {
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	PointsOfAttention []string `json:"pointsOfAttention"`

	// medical
	DoctorName  *string  `json:"doctorName"`
	Specialty   *string  `json:"specialty"`
	Diagnosis   *string  `json:"diagnosis"`
	ExamDate    *string  `json:"examDate"`
	Medications []string `json:"medications"`

	// financial
	Institution *string  `json:"institution"`
	Amount      *float64 `json:"amount"`
	DueDate     *string  `json:"dueDate"`
	Status      *string  `json:"status"`

	// budget
	Provider    *string      `json:"provider"`
	TotalAmount *float64     `json:"totalAmount"`
	ValidUntil  *string      `json:"validUntil"`
	Items       []BudgetItem `json:"items"`

	DeclaredType           string           `json:"declaredType"`
	Classification         *classify.Result `json:"classification,omitempty"`
	ClassificationMismatch *Mismatch        `json:"classificationMismatch,omitempty"`
	RawText                string           `json:"rawText"`
	Error                  string           `json:"error,omitempty"`
}

const minTextLength = 10

type Config struct {
	Model              string
	MaxChars           int           // prompt prefix bound, default 3500
	Temperature        float32       // default 0.2
	Timeout            time.Duration // default 90s
	MismatchConfidence int           // default 70; classifier must beat this to flag a mismatch
}

// CategoryGuesser is the slice of the classifier the analyzer needs.
type CategoryGuesser interface {
	Classify(ctx context.Context, text string) classify.Result
}

type Analyzer struct {
	completer  llm.Completer
	classifier CategoryGuesser
	cfg        Config
	logger     *slog.Logger
}

func New(completer llm.Completer, classifier CategoryGuesser, cfg Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 3500
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MismatchConfidence <= 0 {
		cfg.MismatchConfidence = 70
	}
	return &Analyzer{completer: completer, classifier: classifier, cfg: cfg, logger: logger.With("stage", "analyze")}
}

// Analyze never returns an error: extraction success is decoupled from
// analysis success, so the caller always receives at least the raw text and
// the declared type back.
func (a *Analyzer) Analyze(ctx context.Context, text, declaredType string) Result {
	result := Result{
		DeclaredType: declaredType,
		RawText:      text,
		Title:        defaultTitle(declaredType),
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minTextLength || strings.HasPrefix(trimmed, "[") {
		a.logger.Debug("llm.analyze.short_circuit", "chars", len(trimmed))
		result.Error = "texto insuficiente para análise"
		return result
	}

	cls := a.classifier.Classify(ctx, text)
	result.Classification = &cls
	if mismatch := a.detectMismatch(declaredType, cls); mismatch != nil {
		a.logger.Info("llm.analyze.classification_mismatch",
			"declared", declaredType,
			"suggested", mismatch.SuggestedType,
			"confidence", mismatch.Confidence,
		)
		result.ClassificationMismatch = mismatch
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.completer.Complete(callCtx, llm.Request{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		Messages: []llm.Message{
			{Role: "system", Content: analysisSystemPrompt(declaredType)},
			{Role: "user", Content: analysisUserPrompt(declaredType, llm.TruncateRunes(trimmed, a.cfg.MaxChars))},
		},
	})
	if err != nil {
		a.logger.Warn("llm.analyze.call_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		result.Error = fmt.Sprintf("falha na análise automática: %v", err)
		return result
	}

	obj, err := llm.ExtractObject(raw)
	if err != nil {
		a.logger.Warn("llm.analyze.parse_failed", "error", err, "raw_chars", len(raw))
		result.Error = "resposta do modelo sem JSON válido"
		return result
	}
	if err := llm.ValidateJSONAgainstSchema(fieldsSchema, obj); err != nil {
		// lenient: log and keep going, the decode below drops offending types
		a.logger.Warn("llm.analyze.schema_mismatch", "error", err)
	}

	var payload fieldsPayload
	if err := llm.DecodeObject(string(obj), &payload); err != nil {
		a.logger.Warn("llm.analyze.decode_failed", "error", err)
		result.Error = "resposta do modelo fora do formato esperado"
		return result
	}

	payload.apply(&result, declaredType)
	a.logger.Info("llm.analyze.ok",
		"declared", declaredType,
		"title", result.Title,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result
}

func (a *Analyzer) detectMismatch(declaredType string, cls classify.Result) *Mismatch {
	declared, _ := constants.Canonicalize(declaredType)
	if cls.Category == constants.Unknown || cls.Category == declared {
		return nil
	}
	if cls.Confidence <= a.cfg.MismatchConfidence {
		return nil
	}
	return &Mismatch{
		DeclaredType:  declaredType,
		SuggestedType: string(cls.Category),
		Confidence:    cls.Confidence,
		Reason:        cls.Reason,
	}
}

func defaultTitle(declaredType string) string {
	return "Documento " + declaredType
}

// fieldsPayload mirrors the model's JSON; everything is optional.
type fieldsPayload struct {
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	PointsOfAttention []string `json:"pointsOfAttention"`

	DoctorName  *string  `json:"doctorName"`
	Specialty   *string  `json:"specialty"`
	Diagnosis   *string  `json:"diagnosis"`
	ExamDate    *string  `json:"examDate"`
	Medications []string `json:"medications"`

	Institution *string  `json:"institution"`
	Amount      *float64 `json:"amount"`
	DueDate     *string  `json:"dueDate"`
	Status      *string  `json:"status"`

	Provider    *string      `json:"provider"`
	TotalAmount *float64     `json:"totalAmount"`
	ValidUntil  *string      `json:"validUntil"`
	Items       []BudgetItem `json:"items"`
}

func (p fieldsPayload) apply(r *Result, declaredType string) {
	if strings.TrimSpace(p.Title) != "" {
		r.Title = p.Title
	} else {
		r.Title = defaultTitle(declaredType)
	}
	r.Summary = p.Summary
	r.PointsOfAttention = p.PointsOfAttention

	r.DoctorName = p.DoctorName
	r.Specialty = p.Specialty
	r.Diagnosis = p.Diagnosis
	r.ExamDate = p.ExamDate
	r.Medications = p.Medications

	r.Institution = p.Institution
	r.Amount = p.Amount
	r.DueDate = p.DueDate
	r.Status = p.Status

	r.Provider = p.Provider
	r.TotalAmount = p.TotalAmount
	r.ValidUntil = p.ValidUntil
	r.Items = p.Items
}

var fieldsSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": true,
	"properties": map[string]any{
		"title":             map[string]any{"type": "string"},
		"summary":           map[string]any{"type": "string"},
		"pointsOfAttention": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"doctorName":        map[string]any{"type": []any{"string", "null"}},
		"specialty":         map[string]any{"type": []any{"string", "null"}},
		"diagnosis":         map[string]any{"type": []any{"string", "null"}},
		"examDate":          map[string]any{"type": []any{"string", "null"}},
		"medications":       map[string]any{"type": []any{"array", "null"}},
		"institution":       map[string]any{"type": []any{"string", "null"}},
		"amount":            map[string]any{"type": []any{"number", "null"}},
		"dueDate":           map[string]any{"type": []any{"string", "null"}},
		"status":            map[string]any{"type": []any{"string", "null"}},
		"provider":          map[string]any{"type": []any{"string", "null"}},
		"totalAmount":       map[string]any{"type": []any{"number", "null"}},
		"validUntil":        map[string]any{"type": []any{"string", "null"}},
		"items":             map[string]any{"type": []any{"array", "null"}},
	},
}
