// Package classify guesses a document's category from its extracted text,
// independent of the type the uploading user declared.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docvault/docvault/constants"
	"github.com/docvault/docvault/internal/llm"
)

// Result is the classifier's verdict.
type Result struct {
	Category   constants.Category `json:"classification"`
	Confidence int                `json:"confidence"` // 0-100
	Reason     string             `json:"reason"`
}

// Unknown builds the degraded verdict used whenever classification cannot
// or should not run.
func Unknown(reason string) Result {
	return Result{Category: constants.Unknown, Confidence: 0, Reason: reason}
}

const minTextLength = 10

type Config struct {
	Model       string
	MaxChars    int           // prompt prefix bound, default 2000
	Temperature float32       // default 0.1, low for determinism
	Timeout     time.Duration // default 15s
}

type Classifier struct {
	completer llm.Completer
	cfg       Config
	logger    *slog.Logger
}

func New(completer llm.Completer, cfg Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 2000
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Classifier{completer: completer, cfg: cfg, logger: logger.With("stage", "classify")}
}

var resultSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": true,
	"properties": map[string]any{
		"classification": map[string]any{"type": "string", "minLength": 1},
		"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0},
		"reason":         map[string]any{"type": "string"},
	},
	"required": []string{"classification", "confidence"},
}

// Classify returns the model's category guess. It never returns an error:
// insufficient text short-circuits without an external call, and any API or
// parse failure degrades to the unknown verdict with the cause in Reason.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minTextLength || strings.HasPrefix(trimmed, "[") {
		c.logger.Debug("llm.classify.short_circuit", "chars", len(trimmed))
		return Unknown("texto insuficiente para classificação")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.completer.Complete(ctx, llm.Request{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt()},
			{Role: "user", Content: userPrompt(llm.TruncateRunes(trimmed, c.cfg.MaxChars))},
		},
	})
	if err != nil {
		c.logger.Warn("llm.classify.call_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Unknown(fmt.Sprintf("falha na classificação automática: %v", err))
	}

	obj, err := llm.ExtractObject(raw)
	if err != nil {
		c.logger.Warn("llm.classify.parse_failed", "error", err, "raw_chars", len(raw))
		return Unknown("resposta do modelo sem JSON válido")
	}
	if err := llm.ValidateJSONAgainstSchema(resultSchema, obj); err != nil {
		c.logger.Warn("llm.classify.schema_failed", "error", err)
		return Unknown("resposta do modelo fora do formato esperado")
	}

	var parsed struct {
		Classification string  `json:"classification"`
		Confidence     float64 `json:"confidence"`
		Reason         string  `json:"reason"`
	}
	if err := llm.DecodeObject(string(obj), &parsed); err != nil {
		return Unknown("resposta do modelo fora do formato esperado")
	}

	category, _ := constants.Canonicalize(parsed.Classification)
	confidence := int(parsed.Confidence)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	c.logger.Info("llm.classify.ok",
		"category", string(category),
		"confidence", confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Category: category, Confidence: confidence, Reason: parsed.Reason}
}

func systemPrompt() string {
	return "Você é um classificador de documentos pessoais. " +
		"Responda APENAS com JSON no formato {\"classification\": \"...\", \"confidence\": 0-100, \"reason\": \"...\"}. " +
		"A classificação DEVE ser exatamente uma destas: " + strings.Join(constants.AsStringSlice(), ", ") + ". " +
		"Se não for possível determinar, use \"other\" com confiança baixa."
}

func userPrompt(text string) string {
	return "Classifique o documento a seguir com base no seu conteúdo:\n\n" + text
}
