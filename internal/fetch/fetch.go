// Package fetch retrieves raw bytes for remote or local resources. It exposes
// a strategy interface, an HTTP fetcher with retry and optional on-disk
// caching, a local file fetcher, and a composite registry that tries capable
// strategies in registration order.
package fetch

import (
	"time"
)

// Default limits applied when Options fields are zero.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxSize   = 50 << 20 // 50 MiB
	DefaultUserAgent = "pagesift/1.0 (+https://github.com/pagesift/pagesift)"
)

// Options controls a single fetch.
type Options struct {
	// Timeout bounds the whole fetch attempt.
	Timeout time.Duration
	// MaxSizeBytes rejects payloads larger than this. Zero means DefaultMaxSize.
	MaxSizeBytes int64
	// FollowRedirects enables standard HTTP redirect following. Defaults on;
	// use the pointer to explicitly disable.
	FollowRedirects *bool
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// Headers are extra request headers, applied after defaults.
	Headers map[string]string
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

func (o Options) maxSize() int64 {
	if o.MaxSizeBytes > 0 {
		return o.MaxSizeBytes
	}
	return DefaultMaxSize
}

func (o Options) followRedirects() bool {
	if o.FollowRedirects == nil {
		return true
	}
	return *o.FollowRedirects
}

func (o Options) userAgent() string {
	if o.UserAgent != "" {
		return o.UserAgent
	}
	return DefaultUserAgent
}

// Content is the immutable result of one successful fetch attempt. It is
// created once per attempt and never mutated afterwards.
type Content struct {
	Bytes     []byte
	MIMEType  string
	SourceURL string
	Headers   map[string]string
	SizeBytes int64
	// Metadata carries free-form fetch facts: timestamp, redirect count,
	// status code.
	Metadata map[string]string
}

// Metadata keys stamped by fetchers.
const (
	MetaFetchedAt     = "fetchedAt"
	MetaStatusCode    = "statusCode"
	MetaRedirectCount = "redirectCount"
	MetaFetcher       = "fetcher"
	MetaFromCache     = "fromCache"
)
