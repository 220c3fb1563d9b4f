package detect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pagesift/pagesift/internal/content"
)

// HeaderDetector issues a lightweight network probe and classifies from the
// Content-Type and Content-Disposition response headers. HEAD is tried
// first; when the server rejects it, a one-byte ranged GET is used instead.
type HeaderDetector struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
}

// NewHeaderDetector returns the header strategy with a default client.
func NewHeaderDetector() *HeaderDetector {
	return &HeaderDetector{Timeout: 10 * time.Second}
}

func (d *HeaderDetector) Name() string  { return "header" }
func (d *HeaderDetector) Priority() int { return 2 }

// CanDetect reports whether the locator is an http or https URL.
func (d *HeaderDetector) CanDetect(locator string) bool {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Detect probes the resource headers.
func (d *HeaderDetector) Detect(ctx context.Context, locator string) (content.Classification, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := d.probe(ctx, locator, http.MethodHead, false)
	if err != nil {
		return content.Classification{}, &Error{Strategy: d.Name(), Locator: locator, Err: err}
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp.Body.Close()
		resp, err = d.probe(ctx, locator, http.MethodGet, true)
		if err != nil {
			return content.Classification{}, &Error{Strategy: d.Name(), Locator: locator, Err: err}
		}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return content.Classification{}, &Error{Strategy: d.Name(), Locator: locator,
			Err: fmt.Errorf("probe status %d", resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	typ, ok := content.ByMIME(contentType)
	pattern := contentType

	// Content-Disposition filenames often carry the truth when servers send
	// a generic octet-stream.
	if !ok || typ == content.TypeUnknown {
		if filename := dispositionFilename(resp.Header.Get("Content-Disposition")); filename != "" {
			if i := strings.LastIndexByte(filename, '.'); i >= 0 {
				if tm, found := content.ByExtension(filename[i+1:]); found {
					typ, ok = tm.Type, true
					contentType = tm.MIME
					pattern = "content-disposition: " + filename
				}
			}
		}
	}
	if !ok {
		return content.Classification{}, &Error{Strategy: d.Name(), Locator: locator,
			Err: fmt.Errorf("unclassifiable content type %q", contentType)}
	}

	var size int64
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		size, _ = strconv.ParseInt(cl, 10, 64)
	}
	c := content.Classification{
		Type:       typ,
		MIMEType:   contentType,
		Confidence: ConfidenceHeader,
		SizeBytes:  size,
		Metadata: map[string]string{
			MetaMethod:   "header",
			MetaPattern:  pattern,
			MetaDetector: d.Name(),
			MetaPriority: strconv.Itoa(d.Priority()),
		},
	}
	c.ClampConfidence()
	return c, nil
}

func (d *HeaderDetector) probe(ctx context.Context, locator, method string, ranged bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, locator, nil)
	if err != nil {
		return nil, err
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	if ranged {
		req.Header.Set("Range", "bytes=0-0")
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

// dispositionFilename extracts filename="..." from a Content-Disposition
// header value.
func dispositionFilename(v string) string {
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToLower(part), "filename=") {
			return strings.Trim(part[len("filename="):], `"'`)
		}
	}
	return ""
}
