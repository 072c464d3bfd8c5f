package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/quickblock/internal/config"
	"github.com/nao1215/quickblock/internal/model"
)

// maxRedirects stops redirect loops such as consent interstitials that
// bounce back to themselves.
const maxRedirects = 10

// Fetcher retrieves pages over HTTP, optionally through a SOCKS5 proxy.
type Fetcher struct {
	client       *http.Client
	proxyAddress string
	timeout      time.Duration
	userAgent    string
	headers      map[string]string
	maxBodySize  int64
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithProxy routes every request through the SOCKS5 proxy at address
// ("host:port").
func WithProxy(address string) Option {
	return func(f *Fetcher) {
		f.proxyAddress = address
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithMaxBodySize limits how much of a response body is read.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client. The proxy option is ignored
// when a client is supplied.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// New creates a Fetcher. The proxy address is validated but not contacted.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		timeout:     config.DefaultTimeout,
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.maxBodySize <= 0 {
		f.maxBodySize = config.DefaultMaxBodySize
	}
	if f.client != nil {
		return f, nil
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	if f.proxyAddress != "" {
		if !IsValidProxyAddress(f.proxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, f.proxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", f.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = dialContext(dialer)
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options
	f.client = &http.Client{
		Transport: transport,
		Timeout:   f.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return f, nil
}

// NewFromConfig creates a Fetcher from the fetch settings of cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Fetcher, error) {
	return New(
		WithProxy(cfg.ProxyAddress),
		WithTimeout(cfg.Timeout),
		WithUserAgent(cfg.UserAgent),
		WithHeaders(cfg.Headers),
		WithMaxBodySize(cfg.MaxBodySize),
		WithLogger(logger),
	)
}

// dialContext adapts a proxy.Dialer to http.Transport. Dialers that do not
// take a context are raced against it.
func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			ch <- result{conn, err}
		}()
		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ProxyAddress returns the configured SOCKS5 proxy, empty for direct
// connections.
func (f *Fetcher) ProxyAddress() string {
	return f.proxyAddress
}

// Fetch retrieves rawURL. The final URL after redirects becomes the page
// location.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	f.logger.Debug("fetching page", "url", rawURL)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	raw, err := readLimited(resp.Body, f.maxBodySize)
	if err != nil {
		return nil, err
	}

	return &model.Page{
		Source:      rawURL,
		Location:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Raw:         raw,
		LoadedAt:    f.now(),
	}, nil
}

// LoadFile reads a saved page from disk. location is the navigation target
// the page is evaluated under.
func (f *Fetcher) LoadFile(path, location string) (*model.Page, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided page path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer file.Close()

	raw, err := readLimited(file, f.maxBodySize)
	if err != nil {
		return nil, err
	}
	return &model.Page{
		Source:   path,
		Location: location,
		Raw:      raw,
		LoadedAt: f.now(),
	}, nil
}

// IsURL reports whether source should be fetched rather than read from disk.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit)
	}
	return raw, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// IsValidProxyAddress reports whether address has the "host:port" form.
func IsValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}
