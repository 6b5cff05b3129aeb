package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// extractPDF tries the text layer first, retries in layout mode when the
// output looks tabular, and only rasterizes to OCR when the text layer is
// empty.
func (e *Extractor) extractPDF(ctx context.Context, path string) string {
	text, err := e.pdfToText(ctx, path, false)
	if err != nil {
		e.logger.Warn("ocr.pdf.text_layer_failed", "path", path, "error", err)
	}

	if strings.TrimSpace(text) != "" {
		if looksTabular(text) {
			layout, lerr := e.pdfToText(ctx, path, true)
			if lerr == nil && strings.TrimSpace(layout) != "" {
				e.logger.Debug("ocr.pdf.layout_mode_preferred", "path", path)
				return layout
			}
		}
		return text
	}

	// No text layer; rasterize and OCR page by page.
	ocrText, err := e.pdfToOCR(ctx, path)
	if err != nil {
		e.logger.Error("ocr.pdf.raster_failed", "path", path, "error", err)
		return SentinelPDFNoText
	}
	if strings.TrimSpace(ocrText) == "" {
		return SentinelPDFNoText
	}
	return ocrText
}

func (e *Extractor) pdfToText(ctx context.Context, path string, layout bool) (string, error) {
	args := []string{"-enc", "UTF-8", "-eol", "unix"}
	if layout {
		args = append(args, "-layout")
	}
	args = append(args, path, "-")

	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, args...)
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w (%s)", err, truncate(string(errb), 512))
	}
	return string(out), nil
}

var reSpaceRun = regexp.MustCompile(` {2,}`)

// looksTabular flags text-layer output whose lines carry three or more runs
// of multiple spaces, the usual signature of a flattened table.
func looksTabular(text string) bool {
	var nonEmpty, tabular int
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonEmpty++
		if len(reSpaceRun.FindAllStringIndex(line, 4)) >= 3 {
			tabular++
		}
	}
	return tabular >= 5 && tabular*5 >= nonEmpty
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "dv-pdf-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.pdf.temp_cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > e.cfg.MaxPages {
		e.logger.Warn("ocr.pdf.page_cap", "pages", len(matches), "cap", e.cfg.MaxPages)
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no images")
	}

	var b strings.Builder
	for _, img := range matches {
		txt, err := e.tesseract(ctx, img, nil)
		if err != nil {
			e.logger.Warn("ocr.pdf.page_failed", "image", img, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // page break marker
		}
		b.WriteString(CleanText(txt))
	}
	return b.String(), nil
}
