// Package ocr turns uploaded files into text. It never returns an error to
// callers: when nothing usable can be extracted it yields a bracketed
// sentinel string which downstream stages recognize as "no usable text".
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/docvault/docvault/constants"
)

// Sentinel texts returned when extraction cannot produce usable output.
const (
	SentinelUnreadableFile  = "[Não foi possível ler o arquivo enviado]"
	SentinelPDFNoText       = "[Não foi possível extrair texto do PDF]"
	SentinelImageIllegible  = "[Não foi possível extrair texto legível da imagem]"
	sentinelUnsupportedType = "[Tipo de arquivo não suportado: %s]"
)

// IsSentinel reports whether text is an in-band extraction-failure marker.
func IsSentinel(text string) bool {
	return len(text) > 0 && text[0] == '['
}

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Magick    string // binary name or absolute path; if empty -> "magick"

	TesseractLang string // default "por+eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // page cap for PDF rasterization, default 10

	SubprocessTimeout time.Duration // per external call, default 60s
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Magick == "" {
		cfg.Magick = "magick"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "por+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.SubprocessTimeout <= 0 {
		cfg.SubprocessTimeout = 60 * time.Second
	}
	return &Extractor{cfg: cfg, runner: execRunner{timeout: cfg.SubprocessTimeout}, logger: logger}
}

// WithRunner swaps the subprocess runner; used by tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract picks a strategy based on the declared MIME type.
func (e *Extractor) Extract(ctx context.Context, path, mimeType string) string {
	start := time.Now()
	format := constants.MapMIMEToFormat(mimeType)
	e.logger.Debug("ocr.extract.start", "path", path, "mime", mimeType, "format", string(format))

	var text string
	switch format {
	case constants.TEXT:
		text = e.extractPlain(path)
	case constants.PDF:
		text = e.extractPDF(ctx, path)
	case constants.IMAGE:
		text = e.extractImage(ctx, path)
	default:
		e.logger.Warn("ocr.extract.unsupported", "mime", mimeType)
		return fmt.Sprintf(sentinelUnsupportedType, mimeType)
	}

	e.logger.Info("ocr.extract.done",
		"path", path,
		"format", string(format),
		"chars", len(text),
		"sentinel", IsSentinel(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text
}

func (e *Extractor) extractPlain(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Error("ocr.plain.read_failed", "path", path, "error", err)
		return SentinelUnreadableFile
	}
	return string(data)
}
