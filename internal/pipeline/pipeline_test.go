package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"github.com/pagesift/pagesift/internal/batch"
	"github.com/pagesift/pagesift/internal/clean"
	"github.com/pagesift/pagesift/internal/content"
	"github.com/pagesift/pagesift/internal/detect"
)

// memorySink collects records in memory.
type memorySink struct {
	mu      sync.Mutex
	records []Record
}

func (s *memorySink) Store(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) all() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

func pdfFixture(t *testing.T) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	doc.MultiCell(180, 8, "Ingestion pipeline report body.", "", "L", false)
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

func TestPipeline_PDFOverHTTP(t *testing.T) {
	pdf := pdfFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf)
	}))
	defer srv.Close()

	sink := &memorySink{}
	p, err := New(nil, sink)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	out, err := p.Run(context.Background(), batch.URLConfig{URL: srv.URL + "/doc.pdf", SourceID: "report-1"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Classification.Type != content.TypePDF {
		t.Fatalf("expected PDF classification, got %s", out.Classification.Type)
	}
	if out.Classification.Confidence < detect.ConfidenceExtension {
		t.Fatalf("expected high confidence, got %f", out.Classification.Confidence)
	}
	if out.Processed.Metadata["pageCount"] != "1" {
		t.Fatalf("expected pageCount metadata, got %q", out.Processed.Metadata["pageCount"])
	}
	if !strings.Contains(out.Record.FinalText, "Ingestion pipeline report body") {
		t.Fatalf("final text missing content: %q", out.Record.FinalText)
	}

	recs := sink.all()
	if len(recs) != 1 || recs[0].SourceID != "report-1" {
		t.Fatalf("expected one stored record for report-1, got %+v", recs)
	}
	if recs[0].FinalLength != len(recs[0].FinalText) {
		t.Fatalf("final length mismatch: %d vs %d", recs[0].FinalLength, len(recs[0].FinalText))
	}
	if recs[0].ID == "" {
		t.Fatal("record ID not assigned")
	}
	if len(recs[0].CleanersUsed) == 0 {
		t.Fatalf("expected cleaner names in record")
	}
}

func TestPipeline_HTMLCleansRawMarkup(t *testing.T) {
	page := `<html><head><title>Post</title></head><body>` +
		`<script>alert(1)</script><main><p>Readable body text.</p></main></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	p, err := New(nil, nil)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	out, err := p.Run(context.Background(), batch.URLConfig{URL: srv.URL + "/post"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Classification.Type != content.TypeHTML {
		t.Fatalf("expected HTML, got %s", out.Classification.Type)
	}
	if strings.Contains(out.Record.FinalText, "alert(1)") {
		t.Fatalf("script survived cleaning: %q", out.Record.FinalText)
	}
	if !strings.Contains(out.Record.FinalText, "Readable body text") {
		t.Fatalf("content lost: %q", out.Record.FinalText)
	}
	if len(out.Cleaned.Warnings) == 0 {
		t.Fatalf("expected sanitizer warning for removed script")
	}
}

func TestPipeline_PerSourceCleanOverride(t *testing.T) {
	store := clean.NewMemoryStore()
	if err := store.SetConfig("quiet-source", "string-normalization", clean.Config{Enabled: false}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("spaced    out    text"))
	}))
	defer srv.Close()

	p, err := New(store, nil)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	out, err := p.Run(context.Background(), batch.URLConfig{URL: srv.URL + "/a.txt", SourceID: "quiet-source"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.Record.FinalText, "spaced    out") {
		t.Fatalf("disabled normalizer still collapsed whitespace: %q", out.Record.FinalText)
	}

	out, err = p.Run(context.Background(), batch.URLConfig{URL: srv.URL + "/a.txt", SourceID: "default-source"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(out.Record.FinalText, "spaced    out") {
		t.Fatalf("default chain should collapse whitespace: %q", out.Record.FinalText)
	}
}

func TestPipeline_BatchIntegration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain body"))
	}))
	defer srv.Close()

	sink := &memorySink{}
	p, err := New(nil, sink)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	configs := []batch.URLConfig{
		{URL: srv.URL + "/one.txt"},
		{URL: srv.URL + "/missing.txt"},
		{URL: srv.URL + "/two.txt"},
	}
	res, err := batch.New(p.Runner()).ProcessBatch(context.Background(), configs, batch.Options{
		Concurrency:     2,
		ContinueOnError: true,
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(res.Successful) != 2 || len(res.Failed) != 1 || res.Summary.Total != 3 {
		t.Fatalf("unexpected batch outcome: %d/%d/%d",
			len(res.Successful), len(res.Failed), res.Summary.Total)
	}
	if len(sink.all()) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(sink.all()))
	}
}

func TestFileSink_AppendsJSONLines(t *testing.T) {
	path := t.TempDir() + "/records.jsonl"
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	if err := sink.Store(context.Background(), Record{SourceID: "a", FinalText: "x"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := sink.Store(context.Background(), Record{SourceID: "b", FinalText: "y"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"sourceId":"a"`) {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
}

func TestSubjectToken(t *testing.T) {
	cases := map[string]string{
		"https://example.com/path": "https_example_com_path",
		"plain-id":                 "plain-id",
		"":                         "unknown",
	}
	for in, want := range cases {
		if got := subjectToken(in); got != want {
			t.Fatalf("subjectToken(%q) = %q, want %q", in, got, want)
		}
	}
}

// faultyNormalizer stands in for the whitespace normalizer and always
// reports a critical failure.
type faultyNormalizer struct{}

func (faultyNormalizer) Name() string                { return "string-normalization" }
func (faultyNormalizer) Priority() int               { return 60 }
func (faultyNormalizer) Formats() []clean.TextFormat { return []clean.TextFormat{clean.FormatMixed} }

func (faultyNormalizer) Clean(_ context.Context, text string, _ clean.Config) (clean.StageResult, error) {
	return clean.StageResult{CleanerName: "string-normalization", Critical: true, Text: text},
		errors.New("nesting limit exceeded")
}

func TestPipeline_CriticalCleanerHaltsStagesNotResource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("plain body text"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	reg := clean.DefaultRegistry()
	reg.Add(faultyNormalizer{})
	cleaners, err := clean.NewOrchestrator(reg, clean.NewMemoryStore())
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}

	sink := &memorySink{}
	p, err := New(clean.NewMemoryStore(), sink)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	p.Cleaners = cleaners

	out, err := p.Run(context.Background(), batch.URLConfig{URL: path, SourceID: "faulty"})
	if err != nil {
		t.Fatalf("critical cleaning failure must not fail the resource: %v", err)
	}
	if !out.Cleaned.Halted {
		t.Fatal("expected cleaning to halt on the critical stage")
	}
	if !strings.Contains(out.Record.FinalText, "plain body text") {
		t.Fatalf("expected partial record text, got %q", out.Record.FinalText)
	}
	if got := sink.all(); len(got) != 1 {
		t.Fatalf("stored %d records, want 1", len(got))
	}

	rr, err := p.RunBatch(context.Background(), batch.URLConfig{URL: path, SourceID: "faulty"})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if rr.CriticalCount != 1 {
		t.Fatalf("critical count = %d, want 1", rr.CriticalCount)
	}
}
