package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pagesift/pagesift/internal/content"
)

// SampleSize is how much of the resource the content detector downloads.
const SampleSize = 2048

// magicSignature matches a binary file signature at a fixed offset.
type magicSignature struct {
	prefix  []byte
	offset  int
	typ     content.Type
	mime    string
	pattern string
}

// magicTable is ordered by specificity; first match wins. Zip containers get
// a second look for office document internal path markers.
var magicTable = []magicSignature{
	{[]byte("%PDF"), 0, content.TypePDF, "application/pdf", "%PDF"},
	{[]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, 0, content.TypeDOC, "application/msword", "OLE2"},
	{[]byte(`{\rtf`), 0, content.TypeRTF, "application/rtf", `{\rtf`},
	{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, 0, content.TypeImage, "image/png", "PNG"},
	{[]byte{0xFF, 0xD8, 0xFF}, 0, content.TypeImage, "image/jpeg", "JPEG"},
	{[]byte("GIF87a"), 0, content.TypeImage, "image/gif", "GIF87a"},
	{[]byte("GIF89a"), 0, content.TypeImage, "image/gif", "GIF89a"},
	{[]byte("WEBP"), 8, content.TypeImage, "image/webp", "RIFF/WEBP"},
	{[]byte("ftyp"), 4, content.TypeVideo, "video/mp4", "ftyp"},
	{[]byte{0x1A, 0x45, 0xDF, 0xA3}, 0, content.TypeVideo, "video/webm", "EBML"},
	{[]byte("ID3"), 0, content.TypeAudio, "audio/mpeg", "ID3"},
	{[]byte("OggS"), 0, content.TypeAudio, "audio/ogg", "OggS"},
	{[]byte{0x1F, 0x8B}, 0, content.TypeArchive, "application/gzip", "gzip"},
	{[]byte("Rar!"), 0, content.TypeArchive, "application/vnd.rar", "Rar!"},
	{[]byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}, 0, content.TypeArchive, "application/x-7z-compressed", "7z"},
	{[]byte("PK\x03\x04"), 0, content.TypeArchive, "application/zip", "PK"},
}

// ContentDetector downloads a bounded sample and runs layered heuristics in
// order of specificity: magic numbers, text ratio, then structural sniffing.
// The highest-confidence outcome wins.
type ContentDetector struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
}

// NewContentDetector returns the content sniffing strategy.
func NewContentDetector() *ContentDetector {
	return &ContentDetector{Timeout: 15 * time.Second}
}

func (d *ContentDetector) Name() string  { return "content" }
func (d *ContentDetector) Priority() int { return 3 }

// CanDetect accepts http(s) URLs and local paths.
func (d *ContentDetector) CanDetect(locator string) bool {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return false
	}
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "file", "":
		return true
	default:
		return false
	}
}

// Detect samples the resource and classifies the bytes.
func (d *ContentDetector) Detect(ctx context.Context, locator string) (content.Classification, error) {
	sample, err := d.sample(ctx, locator)
	if err != nil {
		return content.Classification{}, &Error{Strategy: d.Name(), Locator: locator, Err: err}
	}
	c := d.Classify(sample)
	c.Metadata[MetaDetector] = d.Name()
	c.Metadata[MetaPriority] = strconv.Itoa(d.Priority())
	return c, nil
}

// Classify runs the layered heuristics over a byte sample. It always
// returns a classification; an unrecognizable sample maps to UNKNOWN.
func (d *ContentDetector) Classify(sample []byte) content.Classification {
	best := content.Unknown()
	best.Metadata = map[string]string{MetaMethod: "content"}

	consider := func(c content.Classification) {
		c.ClampConfidence()
		if c.Confidence > best.Confidence {
			if c.Metadata == nil {
				c.Metadata = map[string]string{}
			}
			c.Metadata[MetaMethod] = "content"
			best = c
		}
	}

	if c, ok := matchMagic(sample); ok {
		consider(c)
	}
	if best.Confidence >= ConfidenceMagic {
		return best
	}

	if !looksTextual(sample) {
		// Binary with no known signature: keep UNKNOWN.
		return best
	}

	if c, ok := sniffStructure(sample); ok {
		consider(c)
	} else {
		// Plain text with no recognizable structure.
		consider(content.Classification{
			Type:       content.TypeTXT,
			MIMEType:   "text/plain",
			Confidence: 0.6,
			Metadata:   map[string]string{MetaPattern: "text-ratio"},
		})
	}
	return best
}

// matchMagic checks the signature table, refining zip containers by their
// office internal path markers.
func matchMagic(sample []byte) (content.Classification, bool) {
	for _, sig := range magicTable {
		if len(sample) < sig.offset+len(sig.prefix) {
			continue
		}
		if !bytes.Equal(sample[sig.offset:sig.offset+len(sig.prefix)], sig.prefix) {
			continue
		}
		c := content.Classification{
			Type:       sig.typ,
			MIMEType:   sig.mime,
			Confidence: ConfidenceMagic,
			Metadata:   map[string]string{MetaPattern: sig.pattern},
		}
		if sig.typ == content.TypeArchive && sig.pattern == "PK" {
			// Office documents are zip containers with well-known entries.
			switch {
			case bytes.Contains(sample, []byte("word/")):
				c.Type = content.TypeDOCX
				c.MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
				c.Metadata[MetaPattern] = "PK+word/"
			case bytes.Contains(sample, []byte("xl/")):
				c.Type = content.TypeXLSX
				c.MIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
				c.Metadata[MetaPattern] = "PK+xl/"
			}
		}
		return c, true
	}
	return content.Classification{}, false
}

// looksTextual reports whether at least 70% of the sample is printable or
// common whitespace, ruling out unrecognized binary.
func looksTextual(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	printable := 0
	for _, b := range sample {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b < 0x7F) || b >= 0x80 {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) >= 0.7
}

// sniffStructure applies structural heuristics to a textual sample.
func sniffStructure(sample []byte) (content.Classification, bool) {
	trimmed := bytes.TrimLeft(sample, " \t\r\n\xef\xbb\xbf")

	// JSON: a leading brace or bracket, confirmed by the parser when the
	// sample is small enough to be complete.
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		conf := 0.7
		if json.Valid(trimmed) {
			conf = 0.85
		}
		return content.Classification{
			Type: content.TypeJSON, MIMEType: "application/json", Confidence: conf,
			Metadata: map[string]string{MetaPattern: string(trimmed[0])},
		}, true
	}

	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return content.Classification{
			Type: content.TypeXML, MIMEType: "application/xml", Confidence: 0.9,
			Metadata: map[string]string{MetaPattern: "<?xml"},
		}, true
	}

	// HTML: tag co-occurrence rather than a single tag, to avoid matching
	// XML fragments.
	lower := bytes.ToLower(trimmed)
	htmlTags := 0
	for _, tag := range [][]byte{[]byte("<html"), []byte("<head"), []byte("<body"), []byte("<div"), []byte("<p>"), []byte("<!doctype html")} {
		if bytes.Contains(lower, tag) {
			htmlTags++
		}
	}
	if htmlTags >= 2 || bytes.Contains(lower, []byte("<!doctype html")) {
		return content.Classification{
			Type: content.TypeHTML, MIMEType: "text/html", Confidence: 0.85,
			Metadata: map[string]string{MetaPattern: fmt.Sprintf("html-tags:%d", htmlTags)},
		}, true
	}
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return content.Classification{
			Type: content.TypeXML, MIMEType: "application/xml", Confidence: 0.6,
			Metadata: map[string]string{MetaPattern: "<"},
		}, true
	}

	if ok, cols := csvRegularity(trimmed); ok {
		return content.Classification{
			Type: content.TypeCSV, MIMEType: "text/csv", Confidence: 0.7,
			Metadata: map[string]string{MetaPattern: fmt.Sprintf("csv-cols:%d", cols)},
		}, true
	}

	return content.Classification{}, false
}

// csvRegularity reports whether at least three consecutive lines share the
// same nonzero comma count.
func csvRegularity(sample []byte) (bool, int) {
	lines := bytes.Split(sample, []byte("\n"))
	if len(lines) < 3 {
		return false, 0
	}
	want := -1
	run := 0
	for _, line := range lines {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		n := bytes.Count(line, []byte(","))
		if n == 0 {
			want, run = -1, 0
			continue
		}
		if want == -1 || n == want {
			want = n
			run++
			if run >= 3 {
				return true, want + 1
			}
			continue
		}
		want, run = n, 1
	}
	return false, 0
}

// sample downloads or reads the first SampleSize bytes of the resource.
func (d *ContentDetector) sample(ctx context.Context, locator string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, err
		}
		if d.UserAgent != "" {
			req.Header.Set("User-Agent", d.UserAgent)
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", SampleSize-1))
		client := d.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 400 {
			return nil, fmt.Errorf("sample status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, SampleSize))
	}

	path := locator
	if u.Scheme == "file" {
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, SampleSize))
}
