package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Record is the shape handed to the knowledge store after a successful run.
type Record struct {
	ID                  string        `json:"id"`
	SourceID            string        `json:"sourceId"`
	FinalText           string        `json:"finalText"`
	CleanersUsed        []string      `json:"cleanersUsed"`
	TotalProcessingTime time.Duration `json:"totalProcessingTimeNs"`
	OriginalLength      int           `json:"originalLength"`
	FinalLength         int           `json:"finalLength"`
}

// Sink persists records outside the pipeline.
type Sink interface {
	Store(ctx context.Context, rec Record) error
}

// SubjectPrefix is the default NATS subject tree for ingested knowledge.
const SubjectPrefix = "knowledge.ingest"

// subjectTokenRe keeps source identifiers safe as NATS subject tokens.
var subjectTokenRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// NATSSink publishes each record as JSON to <prefix>.<sourceID>.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSSink connects to the given NATS URL. An empty prefix uses
// SubjectPrefix.
func NewNATSSink(url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	if prefix == "" {
		prefix = SubjectPrefix
	}
	return &NATSSink{nc: nc, prefix: prefix}, nil
}

// Store publishes the record. NATS publishes are synchronous and do not
// take a context, so cancellation is checked up front.
func (s *NATSSink) Store(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	subject := s.prefix + "." + subjectToken(rec.SourceID)
	if err := s.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection, flushing pending publishes.
func (s *NATSSink) Close() error {
	return s.nc.Drain()
}

func subjectToken(sourceID string) string {
	tok := subjectTokenRe.ReplaceAllString(sourceID, "_")
	if tok == "" {
		return "unknown"
	}
	return tok
}

// FileSink appends records as JSON lines to one file, for CLI runs without
// a broker.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileSink opens (or creates) the output file for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sink file: %w", err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Store(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	return s.f.Close()
}
