package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pagesift/pagesift/internal/content"
)

// HTTPFetcher retrieves http and https resources. It normalizes response
// headers, classifies transport failures, enforces the size cap both from
// Content-Length and during body read, and resolves non-standard redirects
// embedded in HTML when the declared MIME type conflicts with the locator's
// file extension.
type HTTPFetcher struct {
	// Client is the underlying HTTP client. A default client is used when nil.
	Client *http.Client
	// Cache optionally stores bodies on disk with conditional revalidation.
	Cache *HTTPCache
	// Robots optionally enforces robots.txt before each fetch.
	Robots *RobotsPolicy
}

// NewHTTPFetcher returns an HTTP fetcher with a default transport.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{}
}

// Name returns the strategy tag stamped into fetch metadata.
func (f *HTTPFetcher) Name() string { return "http" }

// CanFetch reports whether the locator is an http or https URL.
func (f *HTTPFetcher) CanFetch(locator string) bool {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Fetch retrieves the resource. At most one embedded-redirect hop is followed
// after the initial response.
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string, opts Options) (*Content, error) {
	if f.Robots != nil {
		allowed, err := f.Robots.Allowed(ctx, locator)
		if err != nil {
			return nil, newError(KindUnknown, locator, err)
		}
		if !allowed {
			return nil, newError(KindAccessDenied, locator, errors.New("disallowed by robots.txt"))
		}
	}

	c, err := f.fetchOnce(ctx, locator, opts)
	if err != nil {
		return nil, err
	}

	// An office or PDF extension answered with HTML usually means a viewer
	// page or an interstitial. Look for an embedded redirect target.
	if target := embeddedRedirectTarget(locator, c); target != "" {
		log.Debug().Str("url", locator).Str("target", target).Msg("following embedded redirect")
		redirected, err := f.fetchOnce(ctx, target, opts)
		if err != nil {
			// Keep the original response rather than failing the fetch.
			log.Warn().Err(err).Str("target", target).Msg("embedded redirect fetch failed")
			return c, nil
		}
		redirected.Metadata[MetaRedirectCount] = incr(c.Metadata[MetaRedirectCount])
		return redirected, nil
	}
	return c, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, locator string, opts Options) (*Content, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, newError(KindUnknown, locator, err)
	}
	req.Header.Set("User-Agent", opts.userAgent())
	req.Header.Set("Accept", "*/*")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	var etag, lastMod string
	if f.Cache != nil {
		if meta, err := f.Cache.LoadMeta(ctx, locator); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		if lastMod != "" {
			req.Header.Set("If-Modified-Since", lastMod)
		}
	}

	redirects := 0
	client := f.client(opts, &redirects)
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransport(locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && f.Cache != nil {
		body, cerr := f.Cache.LoadBody(ctx, locator)
		meta, merr := f.Cache.LoadMeta(ctx, locator)
		if cerr == nil && merr == nil && meta != nil {
			c := f.newContent(locator, body, meta.ContentType, resp, redirects)
			c.Metadata[MetaFromCache] = "true"
			return c, nil
		}
		// Cache promised revalidation but cannot serve; fall through to the
		// status classification below.
	}

	if err := classifyStatus(locator, resp.StatusCode); err != nil {
		return nil, err
	}

	maxSize := opts.maxSize()
	if resp.ContentLength > maxSize {
		return nil, newError(KindSizeExceeded, locator,
			fmt.Errorf("content length %d exceeds limit %d", resp.ContentLength, maxSize))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, classifyTransport(locator, err)
	}
	if int64(len(body)) > maxSize {
		return nil, newError(KindSizeExceeded, locator,
			fmt.Errorf("body exceeds limit %d", maxSize))
	}

	if f.Cache != nil && resp.StatusCode == http.StatusOK {
		_ = f.Cache.Save(ctx, locator, resp.Header.Get("Content-Type"),
			resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), body)
	}

	return f.newContent(locator, body, resp.Header.Get("Content-Type"), resp, redirects), nil
}

func (f *HTTPFetcher) newContent(locator string, body []byte, mimeType string, resp *http.Response, redirects int) *Content {
	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[http.CanonicalHeaderKey(k)] = resp.Header.Get(k)
	}
	return &Content{
		Bytes:     body,
		MIMEType:  mimeType,
		SourceURL: locator,
		Headers:   headers,
		SizeBytes: int64(len(body)),
		Metadata: map[string]string{
			MetaFetchedAt:     time.Now().UTC().Format(time.RFC3339),
			MetaStatusCode:    strconv.Itoa(resp.StatusCode),
			MetaRedirectCount: strconv.Itoa(redirects),
			MetaFetcher:       f.Name(),
		},
	}
}

func (f *HTTPFetcher) client(opts Options, redirects *int) *http.Client {
	base := f.Client
	if base == nil {
		base = http.DefaultClient
	}
	// Clone to attach a redirect policy without mutating the caller's client.
	c := *base
	if !opts.followRedirects() {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return &c
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		*redirects = len(via)
		if len(via) >= 10 {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		return nil
	}
	return &c
}

// TestConnectivity performs a cheap existence check without downloading the
// body: HEAD first, then a one-byte ranged GET when HEAD is rejected.
func (f *HTTPFetcher) TestConnectivity(ctx context.Context, locator string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	do := func(method string, ranged bool) (int, error) {
		req, err := http.NewRequestWithContext(ctx, method, locator, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("User-Agent", DefaultUserAgent)
		if ranged {
			req.Header.Set("Range", "bytes=0-0")
		}
		client := f.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1)) //nolint:errcheck
		return resp.StatusCode, nil
	}

	status, err := do(http.MethodHead, false)
	if err != nil {
		return classifyTransport(locator, err)
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = do(http.MethodGet, true)
		if err != nil {
			return classifyTransport(locator, err)
		}
	}
	if status == http.StatusPartialContent {
		return nil
	}
	return classifyStatus(locator, status)
}

// classifyStatus maps an HTTP status outside 2xx to a fetch error kind.
func classifyStatus(locator string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return newError(KindNotFound, locator, fmt.Errorf("status %d", status))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindAccessDenied, locator, fmt.Errorf("status %d", status))
	case status == http.StatusTooManyRequests:
		return newError(KindRateLimited, locator, fmt.Errorf("status %d", status))
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newError(KindTimeout, locator, fmt.Errorf("status %d", status))
	case status >= 500:
		return newError(KindServerError, locator, fmt.Errorf("status %d", status))
	default:
		return newError(KindUnknown, locator, fmt.Errorf("unexpected status %d", status))
	}
}

// classifyTransport maps a transport-level error to a fetch error kind.
func classifyTransport(locator string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, locator, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "Client.Timeout") || strings.Contains(msg, "deadline exceeded") {
		return newError(KindTimeout, locator, err)
	}
	return newError(KindUnknown, locator, err)
}

// expectedTypeByExtension returns the content type suggested by the locator's
// trailing extension, if any.
func expectedTypeByExtension(locator string) (content.TypeAndMIME, bool) {
	u, err := url.Parse(locator)
	if err != nil {
		return content.TypeAndMIME{}, false
	}
	path := u.Path
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return content.TypeAndMIME{}, false
	}
	return content.ByExtension(path[i+1:])
}

func incr(s string) string {
	n, _ := strconv.Atoi(s)
	return strconv.Itoa(n + 1)
}
