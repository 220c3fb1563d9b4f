package clean

import (
	"context"
	"strings"
	"testing"
)

func TestStructuralSanitizer_RemovesScriptWithWarning(t *testing.T) {
	s := NewStructuralSanitizer()
	res, err := s.Clean(context.Background(), `<script>alert(1)</script><p onclick="x()">Hi</p>`, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Text, "alert(1)") {
		t.Fatalf("script content survived: %q", res.Text)
	}
	if strings.Contains(res.Text, "onclick") {
		t.Fatalf("event handler survived: %q", res.Text)
	}
	if !strings.Contains(res.Text, "Hi") {
		t.Fatalf("content lost: %q", res.Text)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected warnings for removed content")
	}
}

func TestMarkupSanitizer_ConvertsToMarkdown(t *testing.T) {
	m := NewMarkupSanitizer()
	res, err := m.Clean(context.Background(), "<h1>Title</h1><p>Body with <strong>bold</strong>.</p>", DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Text, "# Title") {
		t.Fatalf("expected markdown heading, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "**bold**") {
		t.Fatalf("expected markdown emphasis, got %q", res.Text)
	}
}

func TestStringNormalizer_CollapsesWhitespace(t *testing.T) {
	s := NewStringNormalizer()
	res, err := s.Clean(context.Background(), "a    b\t\tc\n\n\n\nd  ", DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "a b c\n\nd" {
		t.Fatalf("unexpected normalization: %q", res.Text)
	}
	if res.CleanedLength >= res.OriginalLength {
		t.Fatalf("expected length reduction: %d -> %d", res.OriginalLength, res.CleanedLength)
	}
}

func TestUnicodeNormalizer_NFCAndControlStrip(t *testing.T) {
	u := NewUnicodeNormalizer()
	// "é" as combining sequence plus a stray control byte.
	in := "café done"
	res, err := u.Clean(context.Background(), in, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Text, "café") {
		t.Fatalf("expected NFC composition, got %q", res.Text)
	}
	if strings.ContainsRune(res.Text, '') {
		t.Fatalf("control character survived: %q", res.Text)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected control-strip warning")
	}
}

func TestUnicodeNormalizer_StripsByteOrderMark(t *testing.T) {
	u := NewUnicodeNormalizer()
	res, err := u.Clean(context.Background(), "\uFEFFlead\uFEFFing", DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "leading" {
		t.Fatalf("expected byte order marks stripped, got %q", res.Text)
	}
}

func TestMarkdownNormalizer_TidiesConversionNoise(t *testing.T) {
	m := NewMarkdownNormalizer()
	in := "# Title ##\n\n\n\n** **\n\nBody   \n\n##\n\nEnd"
	res, err := m.Clean(context.Background(), in, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Text, "** **") {
		t.Fatalf("empty emphasis survived: %q", res.Text)
	}
	if strings.Contains(res.Text, "\n\n\n") {
		t.Fatalf("excessive blank lines survived: %q", res.Text)
	}
	if !strings.Contains(res.Text, "# Title\n") && !strings.HasPrefix(res.Text, "# Title") {
		t.Fatalf("heading mangled: %q", res.Text)
	}
}

func TestOrchestrator_HTMLChainStripsScript(t *testing.T) {
	o, err := NewOrchestrator(DefaultRegistry(), nil)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	res, err := o.Process(context.Background(), "<script>alert(1)</script><p>Hi</p>", FormatHTML, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.FinalText, "Hi") {
		t.Fatalf("content lost: %q", res.FinalText)
	}
	if strings.Contains(res.FinalText, "alert(1)") || strings.Contains(res.FinalText, "script") {
		t.Fatalf("script content survived cleaning: %q", res.FinalText)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a warning noting removed content")
	}
}

func TestOrchestrator_PerSourceOverrideUsesClone(t *testing.T) {
	registry := DefaultRegistry()
	store := NewMemoryStore()
	if err := store.SetConfig("src-1", "string-normalization", Config{Enabled: false}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	o, err := NewOrchestrator(registry, store)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}

	overridden, err := o.ChainFor(FormatPlain, "src-1")
	if err != nil {
		t.Fatalf("chain for overridden source: %v", err)
	}
	plain, err := o.ChainFor(FormatPlain, "src-2")
	if err != nil {
		t.Fatalf("chain for plain source: %v", err)
	}
	if overridden == plain {
		t.Fatalf("override must operate on a clone, not the shared default")
	}

	in := "a    b"
	res, err := overridden.Process(context.Background(), in, FormatPlain)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.FinalText != "a    b" {
		t.Fatalf("disabled normalizer still ran: %q", res.FinalText)
	}
	res, err = plain.Process(context.Background(), in, FormatPlain)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.FinalText != "a b" {
		t.Fatalf("default chain should collapse whitespace: %q", res.FinalText)
	}
}

func TestCleaningConverges(t *testing.T) {
	o, err := NewOrchestrator(DefaultRegistry(), nil)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	first, err := o.Process(context.Background(), "Some   text\n\n\n\nwith  ragged   spacing", FormatPlain, "")
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := o.Process(context.Background(), first.FinalText, FormatPlain, "")
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(first.FinalText)-len(second.FinalText) > 2 {
		t.Fatalf("cleaning did not converge: %d -> %d", len(first.FinalText), len(second.FinalText))
	}
}
