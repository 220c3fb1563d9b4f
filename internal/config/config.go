// Package config loads pipeline settings from a YAML or JSON file with
// environment fallback. Explicit values win over file values, which win
// over environment, which win over built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/pagesift/pagesift/internal/batch"
	"github.com/pagesift/pagesift/internal/fetch"
	"github.com/pagesift/pagesift/internal/process"
)

// FileConfig is the single-file configuration schema. Nested sections map
// naturally to the pipeline stages.
type FileConfig struct {
	Fetch struct {
		Timeout   Duration `yaml:"timeout" json:"timeout"`
		MaxSize   int64    `yaml:"maxSize" json:"maxSize"`
		UserAgent string   `yaml:"userAgent" json:"userAgent"`
		CacheDir  string   `yaml:"cacheDir" json:"cacheDir"`
		// CacheMaxAge purges cache entries older than this before a run.
		CacheMaxAge Duration `yaml:"cacheMaxAge" json:"cacheMaxAge"`
		// RespectRobots makes HTTP fetches honor robots.txt.
		RespectRobots bool `yaml:"respectRobots" json:"respectRobots"`
	} `yaml:"fetch" json:"fetch"`

	Batch struct {
		Concurrency      int                 `yaml:"concurrency" json:"concurrency"`
		ContinueOnError  *bool               `yaml:"continueOnError" json:"continueOnError"`
		DomainRateLimit  Duration            `yaml:"domainRateLimit" json:"domainRateLimit"`
		DomainRateLimits map[string]Duration `yaml:"domainRateLimits" json:"domainRateLimits"`
		GlobalDelay      Duration            `yaml:"globalDelay" json:"globalDelay"`
		CollectIssues    bool                `yaml:"collectIssues" json:"collectIssues"`
	} `yaml:"batch" json:"batch"`

	Process struct {
		MaxTextLength  int     `yaml:"maxTextLength" json:"maxTextLength"`
		ExtractImages  *bool   `yaml:"extractImages" json:"extractImages"`
		ExtractLinks   *bool   `yaml:"extractLinks" json:"extractLinks"`
		TableAgreement float64 `yaml:"tableAgreement" json:"tableAgreement"`
		TableWindow    int     `yaml:"tableWindow" json:"tableWindow"`
	} `yaml:"process" json:"process"`

	Sink struct {
		NATSURL       string `yaml:"natsUrl" json:"natsUrl"`
		SubjectPrefix string `yaml:"subjectPrefix" json:"subjectPrefix"`
		OutputPath    string `yaml:"outputPath" json:"outputPath"`
	} `yaml:"sink" json:"sink"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// Load reads YAML or JSON into FileConfig. A missing path yields the zero
// configuration without error so env and defaults still apply.
func Load(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyEnv fills unset fields from PAGESIFT_* environment variables.
// Explicit file values take precedence over env.
func ApplyEnv(fc *FileConfig) {
	if fc == nil {
		return
	}
	if fc.Fetch.UserAgent == "" {
		fc.Fetch.UserAgent = os.Getenv("PAGESIFT_USER_AGENT")
	}
	if fc.Fetch.CacheDir == "" {
		fc.Fetch.CacheDir = os.Getenv("PAGESIFT_CACHE_DIR")
	}
	if fc.Fetch.Timeout == 0 {
		if d, err := time.ParseDuration(os.Getenv("PAGESIFT_FETCH_TIMEOUT")); err == nil {
			fc.Fetch.Timeout = Duration(d)
		}
	}
	if fc.Batch.Concurrency == 0 {
		if n, err := strconv.Atoi(os.Getenv("PAGESIFT_CONCURRENCY")); err == nil && n > 0 {
			fc.Batch.Concurrency = n
		}
	}
	if fc.Batch.DomainRateLimit == 0 {
		if d, err := time.ParseDuration(os.Getenv("PAGESIFT_DOMAIN_RATE_LIMIT")); err == nil {
			fc.Batch.DomainRateLimit = Duration(d)
		}
	}
	if fc.Sink.NATSURL == "" {
		fc.Sink.NATSURL = os.Getenv("PAGESIFT_NATS_URL")
	}
	if fc.Sink.OutputPath == "" {
		fc.Sink.OutputPath = os.Getenv("PAGESIFT_OUTPUT")
	}
	if !fc.Verbose {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("PAGESIFT_VERBOSE"))) {
		case "1", "true", "yes", "on":
			fc.Verbose = true
		}
	}
}

// FetchOptions converts the fetch section into fetcher options.
func (fc FileConfig) FetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:      fc.Fetch.Timeout.D(),
		MaxSizeBytes: fc.Fetch.MaxSize,
		UserAgent:    fc.Fetch.UserAgent,
	}
}

// BatchOptions converts the batch section into orchestrator options.
func (fc FileConfig) BatchOptions() batch.Options {
	opts := batch.DefaultOptions()
	if fc.Batch.Concurrency > 0 {
		opts.Concurrency = fc.Batch.Concurrency
	}
	if fc.Batch.ContinueOnError != nil {
		opts.ContinueOnError = *fc.Batch.ContinueOnError
	}
	opts.DomainRateLimit = fc.Batch.DomainRateLimit.D()
	if len(fc.Batch.DomainRateLimits) > 0 {
		opts.DomainRateLimits = make(map[string]time.Duration, len(fc.Batch.DomainRateLimits))
		for domain, d := range fc.Batch.DomainRateLimits {
			opts.DomainRateLimits[domain] = d.D()
		}
	}
	opts.GlobalDelay = fc.Batch.GlobalDelay.D()
	opts.CollectIssues = fc.Batch.CollectIssues
	return opts
}

// ProcessOptions converts the process section into processor options.
func (fc FileConfig) ProcessOptions() process.Options {
	opts := process.DefaultOptions()
	if fc.Process.MaxTextLength > 0 {
		opts.MaxTextLength = fc.Process.MaxTextLength
	}
	if fc.Process.ExtractImages != nil {
		opts.ExtractImages = *fc.Process.ExtractImages
	}
	if fc.Process.ExtractLinks != nil {
		opts.ExtractLinks = *fc.Process.ExtractLinks
	}
	if fc.Process.TableAgreement > 0 {
		opts.TableTolerance.MinAgreement = fc.Process.TableAgreement
	}
	if fc.Process.TableWindow > 0 {
		opts.TableTolerance.OffsetWindow = fc.Process.TableWindow
	}
	return opts
}
