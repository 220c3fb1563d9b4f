package fetch

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileFetcher retrieves local filesystem resources, either bare paths or
// file:// URLs.
type FileFetcher struct{}

// NewFileFetcher returns a filesystem fetcher.
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{}
}

// Name returns the strategy tag stamped into fetch metadata.
func (f *FileFetcher) Name() string { return "file" }

// CanFetch reports whether the locator is a file URL or a plain path.
func (f *FileFetcher) CanFetch(locator string) bool {
	locator = strings.TrimSpace(locator)
	if strings.HasPrefix(locator, "file://") {
		return true
	}
	if strings.Contains(locator, "://") {
		return false
	}
	return locator != ""
}

// Fetch reads the file, enforcing the size cap before reading.
func (f *FileFetcher) Fetch(ctx context.Context, locator string, opts Options) (*Content, error) {
	path, err := f.path(locator)
	if err != nil {
		return nil, newError(KindUnknown, locator, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newError(KindNotFound, locator, err)
		}
		if os.IsPermission(err) {
			return nil, newError(KindAccessDenied, locator, err)
		}
		return nil, newError(KindUnknown, locator, err)
	}
	if info.IsDir() {
		return nil, newError(KindUnknown, locator, fmt.Errorf("%s is a directory", path))
	}
	if max := opts.maxSize(); info.Size() > max {
		return nil, newError(KindSizeExceeded, locator,
			fmt.Errorf("file size %d exceeds limit %d", info.Size(), max))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, newError(KindAccessDenied, locator, err)
		}
		return nil, newError(KindUnknown, locator, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &Content{
		Bytes:     data,
		MIMEType:  mimeType,
		SourceURL: locator,
		Headers:   map[string]string{},
		SizeBytes: int64(len(data)),
		Metadata: map[string]string{
			MetaFetchedAt:     time.Now().UTC().Format(time.RFC3339),
			MetaStatusCode:    strconv.Itoa(200),
			MetaRedirectCount: "0",
			MetaFetcher:       f.Name(),
		},
	}, nil
}

// TestConnectivity stats the file without reading it.
func (f *FileFetcher) TestConnectivity(_ context.Context, locator string) error {
	path, err := f.path(locator)
	if err != nil {
		return newError(KindUnknown, locator, err)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return newError(KindNotFound, locator, err)
		}
		return newError(KindUnknown, locator, err)
	}
	return nil
}

func (f *FileFetcher) path(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return "", fmt.Errorf("parse file url: %w", err)
		}
		return u.Path, nil
	}
	return locator, nil
}
