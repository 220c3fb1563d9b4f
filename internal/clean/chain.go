package clean

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// stage pairs a cleaner with its per-chain configuration.
type stage struct {
	cleaner Cleaner
	cfg     Config
	seq     int
}

// Chain is an ordered list of cleaner stages. Stages run in descending
// priority order; priority ties keep insertion order. A Chain is built once
// and then read-only; use Clone before applying per-source overrides.
type Chain struct {
	stages  []stage
	nextSeq int

	// FailOnCritical makes Process return an error on a critical stage
	// failure instead of yielding the halted result.
	FailOnCritical bool
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a cleaner with its configuration and re-sorts the stages.
func (c *Chain) Add(cleaner Cleaner, cfg Config) *Chain {
	c.stages = append(c.stages, stage{cleaner: cleaner, cfg: cfg, seq: c.nextSeq})
	c.nextSeq++
	sort.SliceStable(c.stages, func(i, j int) bool {
		pi, pj := c.stages[i].cleaner.Priority(), c.stages[j].cleaner.Priority()
		if pi != pj {
			return pi > pj
		}
		return c.stages[i].seq < c.stages[j].seq
	})
	return c
}

// Len returns the stage count.
func (c *Chain) Len() int { return len(c.stages) }

// Names returns the cleaner names in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.cleaner.Name()
	}
	return names
}

// Clone returns a chain sharing the cleaner instances but owning its own
// stage list and configurations, so overrides never touch the original.
func (c *Chain) Clone() *Chain {
	dup := &Chain{stages: make([]stage, len(c.stages)), nextSeq: c.nextSeq, FailOnCritical: c.FailOnCritical}
	copy(dup.stages, c.stages)
	for i := range dup.stages {
		if p := dup.stages[i].cfg.Params; p != nil {
			params := make(map[string]any, len(p))
			for k, v := range p {
				params[k] = v
			}
			dup.stages[i].cfg.Params = params
		}
	}
	return dup
}

// Configure replaces the configuration of the named stage on this chain.
// It reports whether the stage exists.
func (c *Chain) Configure(name string, cfg Config) bool {
	for i := range c.stages {
		if c.stages[i].cleaner.Name() == name {
			c.stages[i].cfg = cfg
			return true
		}
	}
	return false
}

// Process pipes text through the enabled, format-matching stages. The chain
// halts early when a stage reports a critical failure or empties the text;
// recoverable stage errors are recorded as warnings and the input text is
// carried forward unchanged. A critical failure stops the remaining stages
// but still yields the partial result; it becomes an error only when
// FailOnCritical is set.
func (c *Chain) Process(ctx context.Context, text string, format TextFormat) (*ChainResult, error) {
	start := time.Now()
	res := &ChainResult{}

	for _, s := range c.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.cfg.Enabled {
			continue
		}
		if !supportsFormat(s.cleaner, format) {
			continue
		}

		sr, err := s.cleaner.Clean(ctx, text, s.cfg)
		if err != nil {
			if sr.Critical {
				sr.CleanerName = s.cleaner.Name()
				res.StageResults = append(res.StageResults, sr)
				res.Warnings = append(res.Warnings, sr.Warnings...)
				res.Halted = true
				if c.FailOnCritical {
					res.FinalText = text
					res.TotalDuration = time.Since(start)
					return res, &Error{Cleaner: s.cleaner.Name(), Critical: true, Err: err}
				}
				log.Warn().Str("cleaner", s.cleaner.Name()).Err(err).Msg("critical cleaner failure, halting remaining stages")
				res.Warnings = append(res.Warnings, "critical failure in "+s.cleaner.Name()+": "+err.Error())
				break
			}
			log.Debug().Str("cleaner", s.cleaner.Name()).Err(err).Msg("cleaner stage failed, continuing")
			sr = StageResult{
				CleanerName:    s.cleaner.Name(),
				OriginalLength: len(text),
				CleanedLength:  len(text),
				Warnings:       []string{"stage failed: " + err.Error()},
				Text:           text,
			}
		}
		if sr.CleanerName == "" {
			sr.CleanerName = s.cleaner.Name()
		}
		res.StageResults = append(res.StageResults, sr)
		res.Warnings = append(res.Warnings, sr.Warnings...)
		text = sr.Text

		if text == "" {
			res.Halted = true
			break
		}
	}

	res.FinalText = text
	res.TotalDuration = time.Since(start)
	return res, nil
}
