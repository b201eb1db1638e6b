// Package fetcher downloads the remote list archive to a local temp file.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/proxy"
)

const (
	DefaultMaxBytes  = 256 << 20
	DefaultUserAgent = "ipsift/1.0"
	defaultTimeout   = 5 * time.Minute
	errorBodyLimit   = 2048
)

// ErrTooLarge is returned when the body exceeds Options.MaxBytes.
var ErrTooLarge = errors.New("download exceeds size limit")

type Options struct {
	// HTTPClient overrides the client built from Timeout and ProxyURL.
	HTTPClient *http.Client
	UserAgent  string
	MaxBytes   int64
	Timeout    time.Duration
	// ProxyURL routes the download through an http(s) or socks5 proxy.
	ProxyURL string
}

type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func New(opts Options) (*Fetcher, error) {
	f := &Fetcher{
		client:    opts.HTTPClient,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxBytes
	}
	if f.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		transport, err := newTransport(opts.ProxyURL)
		if err != nil {
			return nil, err
		}
		f.client = &http.Client{Timeout: timeout, Transport: transport}
	}
	return f, nil
}

func newTransport(proxyURL string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, &net.Dialer{Timeout: 30 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("socks proxy: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return transport, nil
}

// Fetch downloads rawURL into a new temp file under destDir and returns its
// path. On failure no file is left behind.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", redact(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", fmt.Errorf("download %s: unexpected status %d: %s", redact(rawURL), resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(destDir, "archive-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(tmpFile, io.LimitReader(resp.Body, f.maxBytes+1))
	if err == nil && n > f.maxBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	if closeErr := tmpFile.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close temp file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmpFile.Name())
		return "", fmt.Errorf("download %s: %w", redact(rawURL), err)
	}

	log.Info("Archive downloaded", "bytes", n, "path", tmpFile.Name())
	return tmpFile.Name(), nil
}

// redact drops credentials and query strings from a URL before logging.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
