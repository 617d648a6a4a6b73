package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/imgbed/internal/gallery"
)

const defaultMaxFetchBytes = 20 << 20 // 20 MB

// Content types the codec can decode, as reported by http.DetectContentType.
var imageMIMEs = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// fetcher turns URLs handed to add_image into gallery sources.
type fetcher struct {
	maxBytes  int64
	client    *http.Client
	checkHost func(host string) error
}

func newFetcher(maxBytes int64) *fetcher {
	if maxBytes <= 0 {
		maxBytes = defaultMaxFetchBytes
	}
	f := &fetcher{maxBytes: maxBytes, checkHost: checkBlockedHost}
	f.client = &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return f.checkHost(req.URL.Hostname())
		},
	}
	return f
}

// source downloads or decodes rawURL and checks that the bytes look like an
// image before the codec sees them.
func (f *fetcher) source(ctx context.Context, rawURL string) (gallery.Source, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURI(rawURL)
	} else {
		data, err = f.fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return gallery.Source{}, err
	}
	if int64(len(data)) > f.maxBytes {
		return gallery.Source{}, fmt.Errorf("file too large: %d bytes (max %d)", len(data), f.maxBytes)
	}
	ext, err := sniffImage(data)
	if err != nil {
		return gallery.Source{}, err
	}
	return gallery.Source{
		Name: sourceName(rawURL, ext),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}, nil
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// fetchHTTP downloads an image from an HTTP/HTTPS URL with security checks.
func (f *fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := f.checkHost(parsed.Hostname()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}

// checkBlockedHost rejects loopback, link-local and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	switch {
	case ip.IsLoopback():
		return fmt.Errorf("blocked host: loopback address %s", host)
	case ip.IsUnspecified():
		return fmt.Errorf("blocked host: unspecified address %s", host)
	case ip.IsLinkLocalUnicast():
		// Covers the 169.254.169.254 metadata endpoint.
		return fmt.Errorf("blocked host: link-local address %s", host)
	}
	return nil
}

// sniffImage reports the extension matching data's magic bytes.
func sniffImage(data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
		return ".tiff", nil
	}
	detected := http.DetectContentType(data)
	ext, ok := imageMIMEs[strings.Split(detected, ";")[0]]
	if !ok {
		return "", fmt.Errorf("content is not a supported image (detected: %s)", detected)
	}
	return ext, nil
}

// sourceName labels the source for batch reports; it never becomes a file name.
func sourceName(rawURL, ext string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" {
				return base
			}
		}
	}
	return uuid.New().String() + ext
}
