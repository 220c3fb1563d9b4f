package clean

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// recordingCleaner appends its tag to the text so execution order is
// observable.
type recordingCleaner struct {
	name     string
	priority int
	formats  []TextFormat
	fail     error
	critical bool
}

func (c *recordingCleaner) Name() string          { return c.name }
func (c *recordingCleaner) Priority() int         { return c.priority }
func (c *recordingCleaner) Formats() []TextFormat { return c.formats }

func (c *recordingCleaner) Clean(_ context.Context, text string, cfg Config) (StageResult, error) {
	res := StageResult{CleanerName: c.name, OriginalLength: len(text)}
	if c.fail != nil {
		res.Critical = c.critical
		res.Text = text
		return res, c.fail
	}
	out := text + "|" + c.name
	res.Text = out
	res.CleanedLength = len(out)
	return res, nil
}

func mixed(name string, priority int) *recordingCleaner {
	return &recordingCleaner{name: name, priority: priority, formats: []TextFormat{FormatMixed}}
}

func TestChain_RunsInDescendingPriorityOrder(t *testing.T) {
	chain := NewChain()
	chain.Add(mixed("low", 10), DefaultConfig())
	chain.Add(mixed("high", 90), DefaultConfig())
	chain.Add(mixed("mid", 50), DefaultConfig())

	res, err := chain.Process(context.Background(), "x", FormatPlain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalText != "x|high|mid|low" {
		t.Fatalf("unexpected order: %q", res.FinalText)
	}
}

func TestChain_PriorityTiesKeepInsertionOrder(t *testing.T) {
	chain := NewChain()
	chain.Add(mixed("first", 50), DefaultConfig())
	chain.Add(mixed("second", 50), DefaultConfig())

	res, err := chain.Process(context.Background(), "x", FormatPlain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalText != "x|first|second" {
		t.Fatalf("unexpected order: %q", res.FinalText)
	}
}

func TestChain_SkipsDisabledAndFormatMismatch(t *testing.T) {
	htmlOnly := &recordingCleaner{name: "html-only", priority: 80, formats: []TextFormat{FormatHTML}}
	disabled := mixed("disabled", 70)
	active := mixed("active", 60)

	chain := NewChain()
	chain.Add(htmlOnly, DefaultConfig())
	chain.Add(disabled, Config{Enabled: false})
	chain.Add(active, DefaultConfig())

	res, err := chain.Process(context.Background(), "x", FormatPlain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalText != "x|active" {
		t.Fatalf("expected only the active mixed cleaner to run, got %q", res.FinalText)
	}
}

func TestChain_CriticalFailureHaltsWithoutError(t *testing.T) {
	boom := &recordingCleaner{
		name: "boom", priority: 90, formats: []TextFormat{FormatMixed},
		fail: errors.New("cannot parse"), critical: true,
	}
	chain := NewChain()
	chain.Add(boom, DefaultConfig())
	chain.Add(mixed("after", 10), DefaultConfig())

	res, err := chain.Process(context.Background(), "x", FormatPlain)
	if err != nil {
		t.Fatalf("critical stage failure must not fail the chain: %v", err)
	}
	if !res.Halted {
		t.Fatalf("expected halted result")
	}
	if len(res.StageResults) != 1 || !res.StageResults[0].Critical {
		t.Fatalf("expected one critical stage result, got %+v", res.StageResults)
	}
	if res.FinalText != "x" {
		t.Fatalf("text should be unchanged on critical halt, got %q", res.FinalText)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "cannot parse") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected critical failure warning, got %v", res.Warnings)
	}
}

func TestChain_FailOnCriticalReturnsError(t *testing.T) {
	boom := &recordingCleaner{
		name: "boom", priority: 90, formats: []TextFormat{FormatMixed},
		fail: errors.New("cannot parse"), critical: true,
	}
	chain := NewChain()
	chain.FailOnCritical = true
	chain.Add(boom, DefaultConfig())

	res, err := chain.Process(context.Background(), "x", FormatPlain)
	if err == nil {
		t.Fatalf("expected critical error")
	}
	var cerr *Error
	if !errors.As(err, &cerr) || !cerr.Critical {
		t.Fatalf("expected critical clean.Error, got %v", err)
	}
	if !res.Halted {
		t.Fatalf("expected halted result")
	}
}

func TestChain_RecoverableFailureContinuesWithWarning(t *testing.T) {
	soft := &recordingCleaner{
		name: "soft", priority: 90, formats: []TextFormat{FormatMixed},
		fail: errors.New("minor trouble"),
	}
	chain := NewChain()
	chain.Add(soft, DefaultConfig())
	chain.Add(mixed("after", 10), DefaultConfig())

	res, err := chain.Process(context.Background(), "x", FormatPlain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalText != "x|after" {
		t.Fatalf("expected chain to continue past soft failure, got %q", res.FinalText)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "minor trouble") {
		t.Fatalf("expected warning recording the failure, got %v", res.Warnings)
	}
}

func TestChain_EmptyTextHalts(t *testing.T) {
	eraser := &recordingCleaner{name: "eraser", priority: 90, formats: []TextFormat{FormatMixed}}
	chain := NewChain()
	chain.Add(&emptyingCleaner{}, DefaultConfig())
	chain.Add(eraser, DefaultConfig())

	res, err := chain.Process(context.Background(), "x", FormatPlain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Halted || res.FinalText != "" {
		t.Fatalf("expected early halt on empty text: %+v", res)
	}
	if len(res.StageResults) != 1 {
		t.Fatalf("second stage should not run, got %d stages", len(res.StageResults))
	}
}

type emptyingCleaner struct{}

func (c *emptyingCleaner) Name() string          { return "empty-out" }
func (c *emptyingCleaner) Priority() int         { return 100 }
func (c *emptyingCleaner) Formats() []TextFormat { return []TextFormat{FormatMixed} }
func (c *emptyingCleaner) Clean(_ context.Context, text string, cfg Config) (StageResult, error) {
	return StageResult{CleanerName: c.Name(), OriginalLength: len(text), Text: ""}, nil
}

func TestChain_CloneDoesNotMutateOriginal(t *testing.T) {
	chain := NewChain()
	chain.Add(mixed("a", 50), DefaultConfig())

	clone := chain.Clone()
	if !clone.Configure("a", Config{Enabled: false}) {
		t.Fatalf("configure on clone failed")
	}

	res, err := chain.Process(context.Background(), "x", FormatPlain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FinalText != "x|a" {
		t.Fatalf("original chain was mutated by clone override: %q", res.FinalText)
	}

	cres, err := clone.Process(context.Background(), "x", FormatPlain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cres.FinalText != "x" {
		t.Fatalf("clone override not applied: %q", cres.FinalText)
	}
}

func TestRegistry_AddGetRemoveListCount(t *testing.T) {
	r := NewRegistry()
	r.Add(NewStringNormalizer())
	r.Add(NewUnicodeNormalizer())
	if r.Count() != 2 {
		t.Fatalf("expected 2, got %d", r.Count())
	}
	if _, ok := r.Get("string-normalization"); !ok {
		t.Fatalf("expected lookup to succeed")
	}
	if !r.Remove("string-normalization") {
		t.Fatalf("remove failed")
	}
	if got := r.List(); len(got) != 1 || got[0] != "normalization" {
		t.Fatalf("unexpected list: %v", got)
	}
}

func TestMemoryStore_TemplateMatchesGlob(t *testing.T) {
	store := NewMemoryStore()
	for _, id := range []string{"docs.example.com", "blog.example.com", "other.net"} {
		if err := store.SetConfig(id, "normalization", DefaultConfig()); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	off := Config{Enabled: false}
	n, err := store.ApplyConfigTemplate("*.example.com", "normalization", off)
	if err != nil {
		t.Fatalf("apply template: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 affected, got %d", n)
	}
	cfg, ok, err := store.GetConfig("docs.example.com", "normalization")
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if cfg.Enabled {
		t.Fatalf("template override not applied")
	}
	cfg, _, _ = store.GetConfig("other.net", "normalization")
	if !cfg.Enabled {
		t.Fatalf("non-matching source should be untouched")
	}
}
