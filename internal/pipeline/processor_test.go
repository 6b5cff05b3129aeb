package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/constants"
	"github.com/docvault/docvault/internal/analyze"
	"github.com/docvault/docvault/internal/classify"
	"github.com/docvault/docvault/internal/insights"
	"github.com/docvault/docvault/internal/ocr"
	"github.com/docvault/docvault/internal/pending"
)

type stubExtractor struct {
	text string
}

func (s stubExtractor) Extract(_ context.Context, _, _ string) string { return s.text }

type stubAnalyzer struct {
	result analyze.Result
}

func (s stubAnalyzer) Analyze(_ context.Context, text, declaredType string) analyze.Result {
	r := s.result
	r.RawText = text
	r.DeclaredType = declaredType
	return r
}

type stubInsights struct {
	ins insights.Insights
}

func (s stubInsights) Generate(_ context.Context, _, _ string) insights.Insights { return s.ins }

type memStore struct {
	medical   []analyze.Result
	financial []analyze.Result
	budget    []analyze.Result
	generic   map[string][]analyze.Result
	err       error
}

func newMemStore() *memStore {
	return &memStore{generic: make(map[string][]analyze.Result)}
}

func (m *memStore) SaveMedical(_ context.Context, _ string, res analyze.Result) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	m.medical = append(m.medical, res)
	return uuid.New(), nil
}

func (m *memStore) SaveFinancial(_ context.Context, _ string, res analyze.Result) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	m.financial = append(m.financial, res)
	return uuid.New(), nil
}

func (m *memStore) SaveBudget(_ context.Context, _ string, res analyze.Result) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	m.budget = append(m.budget, res)
	return uuid.New(), nil
}

func (m *memStore) SaveDocument(_ context.Context, _ string, docType string, res analyze.Result) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	m.generic[docType] = append(m.generic[docType], res)
	return uuid.New(), nil
}

func uploadFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.txt")
	require.NoError(t, os.WriteFile(path, []byte("Fatura NotaFiscal valor 150,00"), 0o644))
	return path
}

func newProcessor(t *testing.T, extractor TextExtractor, analyzer Analyzer, gen InsightGenerator, store *memStore) (*Processor, *pending.MemoryStore) {
	t.Helper()
	ps := pending.NewMemoryStore(time.Minute)
	t.Cleanup(ps.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(extractor, analyzer, gen, ps, store, Config{}, logger), ps
}

func TestProcessParksPendingAndDeletesUpload(t *testing.T) {
	store := newMemStore()
	p, ps := newProcessor(t,
		stubExtractor{text: "Fatura NotaFiscal valor 150,00"},
		stubAnalyzer{result: analyze.Result{Title: "Fatura"}},
		stubInsights{ins: insights.Insights{Summary: "Fatura no valor de R$ 150,00.", PointsOfAttention: []string{"Conferir vencimento"}}},
		store,
	)

	path := uploadFile(t)
	res, err := p.Process(context.Background(), path, "text/plain", "financial", "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RecordID)
	assert.Equal(t, constants.IngestionAnalyzed, res.Status)
	assert.Equal(t, "financial", res.DocumentType)
	assert.Equal(t, "Fatura NotaFiscal valor 150,00", res.ExtractedText)
	assert.Equal(t, "Fatura no valor de R$ 150,00.", res.Analysis.Summary)
	assert.Equal(t, []string{"Conferir vencimento"}, res.Analysis.PointsOfAttention)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "upload removed after processing")

	entry, err := ps.Get(context.Background(), res.RecordID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", entry.OwnerID)
	assert.Equal(t, "financial", entry.DeclaredType)
	assert.Empty(t, store.financial, "nothing persisted before confirm")
}

func TestProcessKeepsAnalyzerSummaryWhenInsightsFallBack(t *testing.T) {
	store := newMemStore()
	p, _ := newProcessor(t,
		stubExtractor{text: "Fatura NotaFiscal valor 150,00"},
		stubAnalyzer{result: analyze.Result{Title: "Fatura", Summary: "Fatura com valor de R$ 150,00."}},
		stubInsights{ins: insights.Insights{Summary: insights.FallbackSummary, PointsOfAttention: []string{insights.FallbackPoint}}},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "financial", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Fatura com valor de R$ 150,00.", res.Analysis.Summary)
}

func TestProcessSurfacesMismatchAtTopLevel(t *testing.T) {
	store := newMemStore()
	mismatch := &analyze.Mismatch{
		DeclaredType:  "medical",
		SuggestedType: "financial",
		Confidence:    88,
		Reason:        "contém código de barras e vencimento",
	}
	p, _ := newProcessor(t,
		stubExtractor{text: "Fatura cartão de crédito vencimento 10/09"},
		stubAnalyzer{result: analyze.Result{Title: "Fatura", ClassificationMismatch: mismatch}},
		stubInsights{},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "medical", "user-1")
	require.NoError(t, err)

	require.NotNil(t, res.ClassificationMismatch)
	assert.Equal(t, "financial", res.ClassificationMismatch.SuggestedType)
	assert.Equal(t, res.Analysis.ClassificationMismatch, res.ClassificationMismatch)
}

func TestConfirmPersistsAndConsumesEntry(t *testing.T) {
	store := newMemStore()
	p, _ := newProcessor(t,
		stubExtractor{text: "Fatura NotaFiscal valor 150,00"},
		stubAnalyzer{result: analyze.Result{Title: "Fatura"}},
		stubInsights{ins: insights.Insights{Summary: "s"}},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "financial", "user-1")
	require.NoError(t, err)

	confirmed, err := p.Confirm(context.Background(), res.RecordID, "user-1", "", false)
	require.NoError(t, err)
	assert.Equal(t, "financial", confirmed.DocumentType)
	assert.Equal(t, constants.IngestionConfirmed, confirmed.Status)
	assert.False(t, confirmed.Reclassified)
	assert.NotEqual(t, uuid.Nil, confirmed.RecordID)
	require.Len(t, store.financial, 1)

	// second confirm finds nothing, and so does a late reject
	_, err = p.Confirm(context.Background(), res.RecordID, "user-1", "", false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, p.Reject(context.Background(), res.RecordID, "user-1"), ErrNotFound)
	assert.Len(t, store.financial, 1, "no duplicate record")
}

func TestConfirmRejectsForeignOwnerWithoutConsuming(t *testing.T) {
	store := newMemStore()
	p, ps := newProcessor(t,
		stubExtractor{text: "Laudo médico detalhado do paciente"},
		stubAnalyzer{result: analyze.Result{Title: "Laudo"}},
		stubInsights{},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "medical", "user-1")
	require.NoError(t, err)

	_, err = p.Confirm(context.Background(), res.RecordID, "user-2", "", false)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, store.medical)

	// the entry is untouched; the real owner can still confirm
	_, err = ps.Get(context.Background(), res.RecordID)
	require.NoError(t, err)
	_, err = p.Confirm(context.Background(), res.RecordID, "user-1", "", false)
	require.NoError(t, err)
	assert.Len(t, store.medical, 1)
}

func TestConfirmAppliesConfidentReclassification(t *testing.T) {
	store := newMemStore()
	cls := classify.Result{Category: constants.Budget, Confidence: 90, Reason: "proposta com validade"}
	p, _ := newProcessor(t,
		stubExtractor{text: "Orçamento para reforma, validade 30 dias"},
		stubAnalyzer{result: analyze.Result{Title: "Orçamento", Classification: &cls}},
		stubInsights{},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "financial", "user-1")
	require.NoError(t, err)

	confirmed, err := p.Confirm(context.Background(), res.RecordID, "user-1", "", true)
	require.NoError(t, err)
	assert.Equal(t, "budget", confirmed.DocumentType)
	assert.True(t, confirmed.Reclassified)
	assert.Len(t, store.budget, 1)
	assert.Empty(t, store.financial)

	// same verdict without the opt-in keeps the declared type
	res, err = p.Process(context.Background(), uploadFile(t), "text/plain", "financial", "user-1")
	require.NoError(t, err)
	confirmed, err = p.Confirm(context.Background(), res.RecordID, "user-1", "", false)
	require.NoError(t, err)
	assert.Equal(t, "financial", confirmed.DocumentType)
	assert.False(t, confirmed.Reclassified)
	assert.Len(t, store.financial, 1)
}

func TestConfirmHonorsFinalTypeOverride(t *testing.T) {
	store := newMemStore()
	p, _ := newProcessor(t,
		stubExtractor{text: "Contrato de prestação de serviços educacionais"},
		stubAnalyzer{result: analyze.Result{Title: "Contrato"}},
		stubInsights{},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "personal", "user-1")
	require.NoError(t, err)

	// the user corrects the category at confirm time
	confirmed, err := p.Confirm(context.Background(), res.RecordID, "user-1", "education", false)
	require.NoError(t, err)
	assert.Equal(t, "education", confirmed.DocumentType)
	assert.False(t, confirmed.Reclassified)
	require.Len(t, store.generic["education"], 1)
	assert.Empty(t, store.generic["personal"])
}

func TestConfirmIgnoresLowConfidenceReclassification(t *testing.T) {
	store := newMemStore()
	cls := classify.Result{Category: constants.Budget, Confidence: 60, Reason: "talvez"}
	p, _ := newProcessor(t,
		stubExtractor{text: "Documento ambíguo com valores"},
		stubAnalyzer{result: analyze.Result{Title: "Documento", Classification: &cls}},
		stubInsights{},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "financial", "user-1")
	require.NoError(t, err)

	confirmed, err := p.Confirm(context.Background(), res.RecordID, "user-1", "", true)
	require.NoError(t, err)
	assert.Equal(t, "financial", confirmed.DocumentType)
	assert.False(t, confirmed.Reclassified)
	assert.Len(t, store.financial, 1)
}

func TestConfirmReparksEntryWhenSaveFails(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection reset")
	p, ps := newProcessor(t,
		stubExtractor{text: "Fatura NotaFiscal valor 150,00"},
		stubAnalyzer{result: analyze.Result{Title: "Fatura"}},
		stubInsights{},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "financial", "user-1")
	require.NoError(t, err)

	_, err = p.Confirm(context.Background(), res.RecordID, "user-1", "", false)
	require.Error(t, err)

	_, err = ps.Get(context.Background(), res.RecordID)
	assert.NoError(t, err, "entry reparked for retry")

	store.err = nil
	_, err = p.Confirm(context.Background(), res.RecordID, "user-1", "", false)
	require.NoError(t, err)
}

func TestRejectDiscardsEntry(t *testing.T) {
	store := newMemStore()
	p, ps := newProcessor(t,
		stubExtractor{text: "Fatura NotaFiscal valor 150,00"},
		stubAnalyzer{result: analyze.Result{Title: "Fatura"}},
		stubInsights{},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "financial", "user-1")
	require.NoError(t, err)

	require.NoError(t, p.Reject(context.Background(), res.RecordID, "user-1"))

	_, err = ps.Get(context.Background(), res.RecordID)
	assert.ErrorIs(t, err, pending.ErrNotFound)
	assert.Empty(t, store.financial)

	assert.ErrorIs(t, p.Reject(context.Background(), res.RecordID, "user-1"), ErrNotFound)
}

func TestRejectChecksOwnership(t *testing.T) {
	store := newMemStore()
	p, _ := newProcessor(t,
		stubExtractor{text: "Fatura NotaFiscal valor 150,00"},
		stubAnalyzer{result: analyze.Result{Title: "Fatura"}},
		stubInsights{},
		store,
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "financial", "user-1")
	require.NoError(t, err)

	assert.ErrorIs(t, p.Reject(context.Background(), res.RecordID, "user-2"), ErrForbidden)
	require.NoError(t, p.Reject(context.Background(), res.RecordID, "user-1"))
}

func TestProcessPlainTextEndToEnd(t *testing.T) {
	store := newMemStore()
	extractor := ocr.NewExtractor(ocr.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var analyzedText string
	analyzer := captureAnalyzer{text: &analyzedText}
	p, _ := newProcessor(t, extractor, analyzer, stubInsights{}, store)

	content := "Fatura NotaFiscal valor 150,00"
	path := filepath.Join(t.TempDir(), "fatura.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res, err := p.Process(context.Background(), path, "text/plain", "financial", "user-1")
	require.NoError(t, err)

	assert.Equal(t, content, analyzedText, "extracted text equals the file contents")
	assert.Equal(t, content, res.Analysis.RawText)
	assert.Equal(t, "financial", res.Analysis.DeclaredType)
}

type captureAnalyzer struct {
	text *string
}

func (c captureAnalyzer) Analyze(_ context.Context, text, declaredType string) analyze.Result {
	*c.text = text
	return analyze.Result{RawText: text, DeclaredType: declaredType}
}

func TestConfirmAfterExpiry(t *testing.T) {
	store := newMemStore()
	ps := pending.NewMemoryStore(20 * time.Millisecond)
	t.Cleanup(ps.Close)
	p := New(
		stubExtractor{text: "Fatura NotaFiscal valor 150,00"},
		stubAnalyzer{result: analyze.Result{Title: "Fatura"}},
		stubInsights{},
		ps, store, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	res, err := p.Process(context.Background(), uploadFile(t), "text/plain", "financial", "user-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := ps.Get(context.Background(), res.RecordID)
		return err != nil
	}, time.Second, 5*time.Millisecond)

	_, err = p.Confirm(context.Background(), res.RecordID, "user-1", "", false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, store.financial)
}
