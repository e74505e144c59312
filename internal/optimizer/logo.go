package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

const (
	defaultLogoTimeout  = 10 * time.Second
	defaultLogoMaxBytes = 5 << 20
)

var (
	ErrLogoTooLarge = errors.New("watermark logo exceeds size limit")
	// ErrLogoHostBlocked is returned for non-http(s) URLs and for hosts that
	// resolve to loopback, private, link-local or unspecified addresses.
	ErrLogoHostBlocked = errors.New("watermark logo host is not allowed")
)

// LogoFetcher loads watermark logo bytes.
type LogoFetcher interface {
	FetchLogo(ctx context.Context, url string) ([]byte, error)
}

type HTTPLogoFetcher struct {
	httpClient   *http.Client
	timeout      time.Duration
	maxBytes     int64
	allowPrivate bool
}

type LogoFetcherOption func(*HTTPLogoFetcher)

// AllowPrivateNetworks lifts the address check, for logos served from the
// same network (and for tests against httptest servers).
func AllowPrivateNetworks() LogoFetcherOption {
	return func(f *HTTPLogoFetcher) { f.allowPrivate = true }
}

func NewHTTPLogoFetcher(timeout time.Duration, maxBytes int64, opts ...LogoFetcherOption) *HTTPLogoFetcher {
	if timeout <= 0 {
		timeout = defaultLogoTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultLogoMaxBytes
	}
	f := &HTTPLogoFetcher{timeout: timeout, maxBytes: maxBytes}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{Timeout: timeout}
	if !f.allowPrivate {
		// Checked on the resolved address so redirects and DNS rebinding
		// cannot reach internal hosts.
		dialer.Control = publicAddressOnly
	}
	f.httpClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               nil,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConns:        4,
			IdleConnTimeout:     30 * time.Second,
		},
	}
	return f
}

func publicAddressOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrLogoHostBlocked, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrLogoHostBlocked, address)
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsMulticast() || addr.IsUnspecified() {
		return fmt.Errorf("%w: %s", ErrLogoHostBlocked, addr)
	}
	return nil
}

func (f *HTTPLogoFetcher) FetchLogo(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("watermark logo url is empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse logo url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrLogoHostBlocked, parsed.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build logo request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch logo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch logo: status=%d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read logo body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrLogoTooLarge
	}
	if len(data) == 0 {
		return nil, errors.New("watermark logo is empty")
	}
	return data, nil
}
