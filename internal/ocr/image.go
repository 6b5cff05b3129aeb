package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tesseractConfig is one parameter combination in the OCR tournament.
type tesseractConfig struct {
	PSM int
	OEM int
}

// The bounded grid of page-segmentation and engine modes tried per variant.
var tournamentConfigs = []tesseractConfig{
	{PSM: 3, OEM: 3},
	{PSM: 6, OEM: 3},
	{PSM: 4, OEM: 3},
	{PSM: 6, OEM: 1},
}

// preprocessVariant describes one image pre-processing pass produced with
// ImageMagick before OCR.
type preprocessVariant struct {
	name string
	args []string // magick <in> <args...> <out>
}

var preprocessVariants = []preprocessVariant{
	{name: "grayscale", args: []string{"-colorspace", "Gray"}},
	{name: "enhanced", args: []string{"-colorspace", "Gray", "-sigmoidal-contrast", "4x50%", "-sharpen", "0x1"}},
	{name: "binarized", args: []string{"-colorspace", "Gray", "-threshold", "55%"}},
}

// extractImage runs the multi-configuration tournament: every preprocessing
// variant (plus the original) crossed with every tesseract configuration,
// keeping the highest-scoring cleaned text. A minimal baseline run is the
// last resort before giving up.
func (e *Extractor) extractImage(ctx context.Context, path string) string {
	tmpDir, err := os.MkdirTemp("", "dv-img-*")
	if err != nil {
		e.logger.Error("ocr.image.tempdir_failed", "error", err)
		return SentinelImageIllegible
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.image.temp_cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	candidates := append([]string{path}, e.preprocess(ctx, path, tmpDir)...)

	bestScore := 0.0
	bestText := ""
	for _, img := range candidates {
		for _, cfg := range tournamentConfigs {
			raw, err := e.tesseract(ctx, img, &cfg)
			if err != nil {
				continue
			}
			text := CleanText(raw)
			if text == "" {
				continue
			}
			score := Score(text)
			e.logger.Debug("ocr.image.attempt",
				"image", filepath.Base(img),
				"psm", cfg.PSM,
				"oem", cfg.OEM,
				"score", score,
				"chars", len(text),
			)
			if score > bestScore {
				bestScore = score
				bestText = text
			}
		}
	}

	if bestText != "" && bestScore > 0 {
		e.logger.Info("ocr.image.tournament_winner", "score", bestScore, "chars", len(bestText))
		return bestText
	}

	// Nothing scored above zero: one minimal baseline attempt.
	raw, err := e.tesseract(ctx, path, nil)
	if err == nil {
		if text := CleanText(raw); text != "" {
			e.logger.Warn("ocr.image.baseline_fallback", "chars", len(text))
			return text
		}
	}

	return SentinelImageIllegible
}

// preprocess renders the configured ImageMagick variants into tmpDir,
// skipping any that fail (the original image always stays in the race).
func (e *Extractor) preprocess(ctx context.Context, path, tmpDir string) []string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".png"
	}

	var produced []string
	for _, v := range preprocessVariants {
		out := filepath.Join(tmpDir, v.name+ext)
		args := append([]string{path}, v.args...)
		args = append(args, out)
		if _, errb, err := e.runner.Run(ctx, e.cfg.Magick, args...); err != nil {
			e.logger.Warn("ocr.image.preprocess_failed",
				"variant", v.name,
				"error", err,
				"stderr", truncate(string(errb), 512),
			)
			continue
		}
		if _, statErr := os.Stat(out); statErr != nil {
			continue
		}
		produced = append(produced, out)
	}
	return produced
}

// tesseract runs one OCR attempt. A nil config is the minimal baseline
// invocation (engine defaults).
func (e *Extractor) tesseract(ctx context.Context, path string, cfg *tesseractConfig) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if cfg != nil {
		if cfg.PSM > 0 {
			args = append(args, "--psm", fmt.Sprintf("%d", cfg.PSM))
		}
		if cfg.OEM > 0 {
			args = append(args, "--oem", fmt.Sprintf("%d", cfg.OEM))
		}
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return string(out), nil
}
