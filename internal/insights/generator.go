// Package insights produces the user-facing summary and attention points for
// an analyzed document. Generation degrades gracefully: a malformed model
// response triggers a shorter retry, then a regex salvage of whatever partial
// JSON arrived, and finally a generic fallback. The pipeline never stalls on
// this stage.
package insights

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/docvault/docvault/internal/llm"
)

// Insights is the generated payload.
type Insights struct {
	Summary           string   `json:"summary"`
	PointsOfAttention []string `json:"pointsOfAttention"`
}

// FallbackSummary and FallbackPoint are returned when every generation
// attempt failed.
const (
	FallbackSummary = "Não foi possível gerar um resumo automático para este documento."
	FallbackPoint   = "Revise o documento manualmente."
)

// truncationRetryChars is the minimum length of an unparsable completion
// before it is treated as truncated and retried with a concise prompt.
const truncationRetryChars = 512

// TemplateStore yields the active prompt template for a category, or an
// error when none is configured (the built-in default is used then).
type TemplateStore interface {
	FindActive(ctx context.Context, category string) (string, error)
}

type Config struct {
	Model          string
	MaxChars       int           // document prefix bound, default 5000
	Temperature    float32       // default 0.4
	Timeout        time.Duration // covers all attempts, default 120s
	MaxTokens      int           // first attempt, default 1200
	RetryMaxTokens int           // concise retry, default 600
}

type Generator struct {
	completer llm.Completer
	templates TemplateStore
	cfg       Config
	logger    *slog.Logger
}

func New(completer llm.Completer, templates TemplateStore, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 5000
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1200
	}
	if cfg.RetryMaxTokens <= 0 {
		cfg.RetryMaxTokens = 600
	}
	return &Generator{completer: completer, templates: templates, cfg: cfg, logger: logger.With("stage", "insights")}
}

// Generate never returns an error; the zero-information path is the generic
// fallback payload.
func (g *Generator) Generate(ctx context.Context, text, category string) Insights {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasPrefix(trimmed, "[") {
		g.logger.Debug("llm.insights.short_circuit", "chars", len(trimmed))
		return fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	prompt := g.buildPrompt(ctx, category, llm.TruncateRunes(trimmed, g.cfg.MaxChars))

	raw, err := g.complete(ctx, prompt, g.cfg.MaxTokens)
	if err != nil {
		g.logger.Warn("llm.insights.call_failed", "error", err)
		return fallback()
	}
	if ins, ok := parse(raw); ok {
		g.logger.Info("llm.insights.ok", "attempt", 1, "points", len(ins.PointsOfAttention))
		return ins
	}

	// a long unparsable response was probably cut off by the token budget;
	// retry asking for less. Short garbage goes straight to salvage.
	if len(raw) >= truncationRetryChars {
		g.logger.Warn("llm.insights.retry", "raw_chars", len(raw))
		retryRaw, err := g.complete(ctx, concisePrompt(category, llm.TruncateRunes(trimmed, g.cfg.MaxChars/2)), g.cfg.RetryMaxTokens)
		if err == nil {
			if ins, ok := parse(retryRaw); ok {
				g.logger.Info("llm.insights.ok", "attempt", 2, "points", len(ins.PointsOfAttention))
				return ins
			}
			if ins, ok := salvage(retryRaw); ok {
				g.logger.Info("llm.insights.salvaged", "attempt", 2)
				return ins
			}
		}
	}

	if ins, ok := salvage(raw); ok {
		g.logger.Info("llm.insights.salvaged", "attempt", 1)
		return ins
	}

	g.logger.Warn("llm.insights.fallback")
	return fallback()
}

func (g *Generator) complete(ctx context.Context, userPrompt string, maxTokens int) (string, error) {
	return g.completer.Complete(ctx, llm.Request{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		MaxTokens:   maxTokens,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
}

func (g *Generator) buildPrompt(ctx context.Context, category, text string) string {
	if g.templates != nil {
		tpl, err := g.templates.FindActive(ctx, category)
		if err == nil && strings.Contains(tpl, placeholder) {
			return strings.ReplaceAll(tpl, placeholder, text)
		}
		if err != nil {
			g.logger.Debug("llm.insights.template_default", "category", category, "error", err)
		}
	}
	return strings.ReplaceAll(defaultTemplate(category), placeholder, text)
}

func parse(raw string) (Insights, bool) {
	obj, err := llm.ExtractObject(raw)
	if err != nil {
		return Insights{}, false
	}
	var ins Insights
	if err := json.Unmarshal(obj, &ins); err != nil {
		return Insights{}, false
	}
	if strings.TrimSpace(ins.Summary) == "" {
		return Insights{}, false
	}
	if ins.PointsOfAttention == nil {
		ins.PointsOfAttention = []string{}
	}
	return ins, true
}

var (
	reSummary = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	rePoint   = regexp.MustCompile(`"((?:[^"\\]|\\.)+)"`)
	rePoints  = regexp.MustCompile(`"pointsOfAttention"\s*:\s*\[([^\]]*)`)
)

// salvage recovers fields from a truncated or otherwise unparsable response.
func salvage(raw string) (Insights, bool) {
	m := reSummary.FindStringSubmatch(raw)
	if m == nil {
		return Insights{}, false
	}
	ins := Insights{Summary: unescape(m[1]), PointsOfAttention: []string{}}
	if pm := rePoints.FindStringSubmatch(raw); pm != nil {
		for _, item := range rePoint.FindAllStringSubmatch(pm[1], -1) {
			ins.PointsOfAttention = append(ins.PointsOfAttention, unescape(item[1]))
		}
	}
	return ins, true
}

func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

func fallback() Insights {
	return Insights{
		Summary:           FallbackSummary,
		PointsOfAttention: []string{FallbackPoint},
	}
}
