package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner scripts subprocess behavior per binary name.
type fakeRunner struct {
	calls []string
	run   func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	out, err := f.run(name, args)
	return out, nil, err
}

func newTestExtractor(t *testing.T, run func(name string, args []string) ([]byte, error)) (*Extractor, *fakeRunner) {
	t.Helper()
	fr := &fakeRunner{run: run}
	e := NewExtractor(Config{}, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	return e.WithRunner(fr), fr
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtractPlainText(t *testing.T) {
	e, _ := newTestExtractor(t, func(string, []string) ([]byte, error) { return nil, nil })
	path := writeTemp(t, "doc.txt", "Fatura NotaFiscal valor 150,00")

	got := e.Extract(context.Background(), path, "text/plain")
	assert.Equal(t, "Fatura NotaFiscal valor 150,00", got)
}

func TestExtractPlainTextMissingFile(t *testing.T) {
	e, _ := newTestExtractor(t, func(string, []string) ([]byte, error) { return nil, nil })

	got := e.Extract(context.Background(), "/nonexistent/file.txt", "text/plain")
	assert.Equal(t, SentinelUnreadableFile, got)
	assert.True(t, IsSentinel(got))
}

func TestExtractUnsupportedType(t *testing.T) {
	e, fr := newTestExtractor(t, func(string, []string) ([]byte, error) { return nil, nil })

	got := e.Extract(context.Background(), "whatever.zip", "application/zip")
	assert.True(t, IsSentinel(got))
	assert.Contains(t, got, "application/zip")
	assert.Empty(t, fr.calls, "unsupported types must not spawn subprocesses")
}

func TestExtractPDFTextLayer(t *testing.T) {
	e, fr := newTestExtractor(t, func(name string, args []string) ([]byte, error) {
		if name == "pdftotext" {
			return []byte("Contrato de prestação de serviços.\nCláusula primeira.\n"), nil
		}
		return nil, fmt.Errorf("unexpected binary %s", name)
	})

	got := e.Extract(context.Background(), "contract.pdf", "application/pdf")
	assert.Contains(t, got, "Contrato de prestação")
	assert.Len(t, fr.calls, 1, "text layer hit must not rasterize")
	assert.NotContains(t, fr.calls[0], "-layout")
}

func TestExtractPDFTabularRetriesWithLayout(t *testing.T) {
	tabular := strings.Repeat("Item  X   12,00   un   24,00\n", 8)
	e, fr := newTestExtractor(t, func(name string, args []string) ([]byte, error) {
		if name != "pdftotext" {
			return nil, fmt.Errorf("unexpected binary %s", name)
		}
		for _, a := range args {
			if a == "-layout" {
				return []byte("LAYOUT " + tabular), nil
			}
		}
		return []byte(tabular), nil
	})

	got := e.Extract(context.Background(), "table.pdf", "application/pdf")
	assert.True(t, strings.HasPrefix(got, "LAYOUT "), "layout-mode output must win for tabular PDFs")
	assert.Len(t, fr.calls, 2)
}

func TestExtractPDFFallsBackToOCR(t *testing.T) {
	e, fr := newTestExtractor(t, func(name string, args []string) ([]byte, error) {
		switch name {
		case "pdftotext":
			return []byte("   \n"), nil
		case "pdftoppm":
			// last arg is the output prefix; simulate two rendered pages
			prefix := args[len(args)-1]
			for i := 1; i <= 2; i++ {
				if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o600); err != nil {
					return nil, err
				}
			}
			return nil, nil
		case "tesseract":
			return []byte("Página digitalizada com texto reconhecido.\n"), nil
		}
		return nil, fmt.Errorf("unexpected binary %s", name)
	})

	got := e.Extract(context.Background(), "scan.pdf", "application/pdf")
	assert.Contains(t, got, "Página digitalizada")
	assert.Contains(t, got, "\f", "page break marker must separate pages")

	var tesseractRuns int
	for _, c := range fr.calls {
		if strings.HasPrefix(c, "tesseract") {
			tesseractRuns++
		}
	}
	assert.Equal(t, 2, tesseractRuns)
}

func TestExtractPDFNothingUsable(t *testing.T) {
	e, _ := newTestExtractor(t, func(name string, args []string) ([]byte, error) {
		if name == "pdftotext" {
			return []byte(""), nil
		}
		return nil, fmt.Errorf("raster unavailable")
	})

	got := e.Extract(context.Background(), "broken.pdf", "application/pdf")
	assert.Equal(t, SentinelPDFNoText, got)
}

func TestExtractImageTournamentPicksBest(t *testing.T) {
	garbled := "## ~~ ^^ !! ]] {{ @@ ·· ¶¶ ×× ·· ~~"
	clean := "Recibo de pagamento no valor de duzentos reais referente a consulta médica."

	e, _ := newTestExtractor(t, func(name string, args []string) ([]byte, error) {
		switch name {
		case "magick":
			out := args[len(args)-1]
			return nil, os.WriteFile(out, []byte("png"), 0o600)
		case "tesseract":
			// psm 6 produces the clean read, everything else is garbage
			for i, a := range args {
				if a == "--psm" && args[i+1] == "6" {
					return []byte(clean), nil
				}
			}
			return []byte(garbled), nil
		}
		return nil, fmt.Errorf("unexpected binary %s", name)
	})

	got := e.Extract(context.Background(), writeTemp(t, "receipt.png", "img"), "image/png")
	assert.Equal(t, clean, got)
}

func TestExtractImageBaselineFallback(t *testing.T) {
	e, _ := newTestExtractor(t, func(name string, args []string) ([]byte, error) {
		switch name {
		case "magick":
			return nil, fmt.Errorf("magick not installed")
		case "tesseract":
			for _, a := range args {
				if a == "--psm" || a == "--oem" {
					// configured attempts yield nothing usable
					return []byte("\x01\x02 \x03\x04"), nil
				}
			}
			// minimal baseline invocation succeeds
			return []byte("Texto recuperado pela configuração mínima."), nil
		}
		return nil, fmt.Errorf("unexpected binary %s", name)
	})

	got := e.Extract(context.Background(), writeTemp(t, "hard.png", "img"), "image/png")
	assert.Equal(t, "Texto recuperado pela configuração mínima.", got)
}

func TestExtractImageIllegibleSentinel(t *testing.T) {
	e, _ := newTestExtractor(t, func(name string, args []string) ([]byte, error) {
		if name == "magick" {
			return nil, fmt.Errorf("magick not installed")
		}
		return []byte("   "), nil
	})

	got := e.Extract(context.Background(), writeTemp(t, "blank.png", "img"), "image/png")
	assert.Equal(t, SentinelImageIllegible, got)
}

func TestExtractImageCleansTemporaryVariants(t *testing.T) {
	var variantDirs []string
	e, _ := newTestExtractor(t, func(name string, args []string) ([]byte, error) {
		switch name {
		case "magick":
			out := args[len(args)-1]
			variantDirs = append(variantDirs, filepath.Dir(out))
			return nil, os.WriteFile(out, []byte("png"), 0o600)
		case "tesseract":
			return []byte("Comprovante de transferência bancária realizada."), nil
		}
		return nil, fmt.Errorf("unexpected binary %s", name)
	})

	_ = e.Extract(context.Background(), writeTemp(t, "ok.png", "img"), "image/png")

	require.NotEmpty(t, variantDirs)
	for _, dir := range variantDirs {
		_, err := os.Stat(dir)
		assert.True(t, os.IsNotExist(err), "variant temp dir %s must be removed", dir)
	}
}
