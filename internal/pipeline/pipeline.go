// Package pipeline composes the ingestion stages for one resource: fetch,
// detect when the transport left the type unknown, process, clean, and hand
// the cleaned record to a knowledge sink.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pagesift/pagesift/internal/batch"
	"github.com/pagesift/pagesift/internal/clean"
	"github.com/pagesift/pagesift/internal/content"
	"github.com/pagesift/pagesift/internal/detect"
	"github.com/pagesift/pagesift/internal/fetch"
	"github.com/pagesift/pagesift/internal/process"
)

// Pipeline wires the stage registries together. Construct once and share;
// every field is safe for concurrent use.
type Pipeline struct {
	Fetchers   *fetch.Registry
	Detectors  *detect.Registry
	Sniffer    *detect.ContentDetector
	Processors *process.Registry
	Cleaners   *clean.Orchestrator
	Sink       Sink

	// FetchOptions and ProcessOptions are the batch-wide defaults,
	// overridable per resource.
	FetchOptions   fetch.Options
	ProcessOptions process.Options
}

// New assembles a pipeline from default registries, with per-source cleaner
// overrides served by the given store (nil disables overrides).
func New(store clean.ConfigStore, sink Sink) (*Pipeline, error) {
	cleaners, err := clean.NewOrchestrator(clean.DefaultRegistry(), store)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Fetchers:       fetch.DefaultRegistry(),
		Detectors:      detect.DefaultRegistry(),
		Sniffer:        detect.NewContentDetector(),
		Processors:     process.DefaultRegistry(),
		Cleaners:       cleaners,
		Sink:           sink,
		FetchOptions:   fetch.Options{},
		ProcessOptions: process.DefaultOptions(),
	}, nil
}

// Outcome collects everything one run produced, for callers that want more
// than the stored record.
type Outcome struct {
	Classification content.Classification
	Processed      *process.Result
	Cleaned        *clean.ChainResult
	Record         Record
}

// Run executes the full pipeline for one resource and emits the record to
// the sink when one is configured. It implements the scheduling contract
// the batch orchestrator expects via RunBatch.
func (p *Pipeline) Run(ctx context.Context, cfg batch.URLConfig) (*Outcome, error) {
	start := time.Now()

	fetchOpts := p.FetchOptions
	if cfg.Fetch != nil {
		fetchOpts = *cfg.Fetch
	}
	fetched, err := p.Fetchers.Fetch(ctx, cfg.URL, fetchOpts)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", cfg.URL, err)
	}

	classification := p.classify(ctx, cfg.URL, fetched)
	log.Debug().
		Str("url", cfg.URL).
		Str("type", classification.Type.String()).
		Float64("confidence", classification.Confidence).
		Msg("classified resource")

	procOpts := p.ProcessOptions
	if cfg.Process != nil {
		procOpts = *cfg.Process
	}
	processed, err := p.Processors.Process(ctx, fetched.Bytes, classification.Type, procOpts)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", cfg.URL, err)
	}

	text, format := cleaningInput(fetched, processed, classification.Type)
	sourceID := cfg.SourceID
	if sourceID == "" {
		sourceID = cfg.URL
	}
	cleaned, err := p.Cleaners.Process(ctx, text, format, sourceID)
	if err != nil {
		return nil, fmt.Errorf("clean %s: %w", cfg.URL, err)
	}

	record := Record{
		ID:                  uuid.NewString(),
		SourceID:            sourceID,
		FinalText:           cleaned.FinalText,
		CleanersUsed:        stageNames(cleaned),
		TotalProcessingTime: time.Since(start),
		OriginalLength:      len(text),
		FinalLength:         len(cleaned.FinalText),
	}
	if p.Sink != nil {
		if err := p.Sink.Store(ctx, record); err != nil {
			return nil, fmt.Errorf("store record for %s: %w", cfg.URL, err)
		}
	}

	return &Outcome{
		Classification: classification,
		Processed:      processed,
		Cleaned:        cleaned,
		Record:         record,
	}, nil
}

// RunBatch adapts Run to the batch orchestrator's Runner contract.
func (p *Pipeline) RunBatch(ctx context.Context, cfg batch.URLConfig) (*batch.RunResult, error) {
	out, err := p.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	critical := 0
	for _, sr := range out.Cleaned.StageResults {
		if sr.Critical {
			critical++
		}
	}
	return &batch.RunResult{
		SourceID:       out.Record.SourceID,
		URL:            cfg.URL,
		FinalText:      out.Record.FinalText,
		CleanersUsed:   out.Record.CleanersUsed,
		Duration:       out.Record.TotalProcessingTime,
		OriginalLength: out.Record.OriginalLength,
		FinalLength:    out.Record.FinalLength,
		Warnings:       out.Cleaned.Warnings,
		CriticalCount:  critical,
	}, nil
}

// Runner returns the pipeline as a batch.Runner.
func (p *Pipeline) Runner() batch.Runner {
	return batch.RunnerFunc(p.RunBatch)
}

// classify resolves the content type: the transport's declared MIME type
// when conclusive, then the detector strategies, then a sniff of the bytes
// already in hand.
func (p *Pipeline) classify(ctx context.Context, locator string, fetched *fetch.Content) content.Classification {
	if t, ok := content.ByMIME(fetched.MIMEType); ok && t != content.TypeUnknown {
		return content.Classification{
			Type:       t,
			MIMEType:   fetched.MIMEType,
			Confidence: detect.ConfidenceHeader,
			SizeBytes:  fetched.SizeBytes,
			Metadata:   map[string]string{detect.MetaMethod: "transport"},
		}
	}

	if c := p.Detectors.Detect(ctx, locator); c.Type != content.TypeUnknown {
		return c
	}

	sample := fetched.Bytes
	if len(sample) > detect.SampleSize {
		sample = sample[:detect.SampleSize]
	}
	return p.Sniffer.Classify(sample)
}

// cleaningInput decides what text the cleaner chain receives. HTML sources
// are cleaned from the raw markup so the sanitizing stages see the full
// document; everything else cleans the processor's extracted text.
func cleaningInput(fetched *fetch.Content, processed *process.Result, t content.Type) (string, clean.TextFormat) {
	switch t {
	case content.TypeHTML, content.TypeWebpage:
		return string(fetched.Bytes), clean.FormatHTML
	case content.TypeMarkdown:
		return processed.Text, clean.FormatMarkdown
	default:
		return processed.Text, clean.FormatPlain
	}
}

func stageNames(res *clean.ChainResult) []string {
	names := make([]string, 0, len(res.StageResults))
	for _, sr := range res.StageResults {
		names = append(names, sr.CleanerName)
	}
	return names
}
