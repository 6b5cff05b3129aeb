package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/docvault/docvault/constants"
	"github.com/docvault/docvault/internal/common"
	"github.com/docvault/docvault/internal/ocr"
)

// runocr extracts text from a local file and prints it, for tuning the OCR
// tournament without the full pipeline.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file>")
		os.Exit(2)
	}
	path := os.Args[1]

	mimeType := constants.GuessMIME(path)
	if constants.MapMIMEToFormat(mimeType) == "" {
		logger.Error("unsupported file type", "path", path, "mime_type", mimeType)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:         cfg.OCR.Pdftotext,
		Pdftoppm:          cfg.OCR.Pdftoppm,
		Tesseract:         cfg.OCR.Tesseract,
		Magick:            cfg.OCR.Magick,
		TesseractLang:     cfg.OCR.TesseractLang,
		DPI:               cfg.OCR.DPI,
		MaxPages:          cfg.OCR.MaxPages,
		SubprocessTimeout: cfg.OCR.SubprocessTimeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	text := extractor.Extract(ctx, path, mimeType)

	logger.Info("extraction done",
		"chars", len(text),
		"quality", ocr.Score(text),
		"sentinel", ocr.IsSentinel(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	fmt.Println(text)
}
