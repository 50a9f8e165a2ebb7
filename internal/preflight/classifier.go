package preflight

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/cookiecrawl/internal/model"
)

const (
	// DefaultTimeout bounds a single probe, redirects included.
	DefaultTimeout = 20 * time.Second

	// DefaultMaxRedirects is the number of redirects followed before the
	// probe stops and reports the site as reachable.
	DefaultMaxRedirects = 10
)

// Result is the outcome of Classify.
type Result struct {
	Kind Kind

	// StatusCode is the HTTP status of the last response, when one arrived.
	StatusCode int

	// Err is the underlying error for failed probes.
	Err error

	// Elapsed is how long the probe took.
	Elapsed time.Duration
}

// OK reports whether the site is reachable.
func (r Result) OK() bool {
	return r.Kind == KindOK
}

// Status maps the result onto the crawl status taxonomy.
func (r Result) Status() model.Status {
	switch r.Kind {
	case KindOK:
		return model.StatusOK
	case KindTLS:
		return model.StatusTLS
	case KindTimeout:
		return model.StatusTimeout
	default:
		return model.StatusConnection
	}
}

// Classifier runs reachability probes. It is safe for concurrent use.
type Classifier struct {
	client       *http.Client
	timeout      time.Duration
	maxRedirects int
	userAgent    string
	proxyAddress string
	logger       *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout sets the probe time limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRedirects sets how many redirects are followed.
func WithMaxRedirects(n int) Option {
	return func(c *Classifier) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// WithUserAgent sets the User-Agent header of the probe.
func WithUserAgent(ua string) Option {
	return func(c *Classifier) {
		c.userAgent = ua
	}
}

// WithProxy routes probes through a SOCKS5 proxy ("host:port" or
// "socks5://host:port"). An empty address disables the proxy.
func WithProxy(address string) Option {
	return func(c *Classifier) {
		c.proxyAddress = address
	}
}

// WithHTTPClient replaces the HTTP client. The client's CheckRedirect is
// overwritten so that redirect loops are still reported as reachable.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Classifier) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// NewClassifier creates a Classifier.
// It returns ErrInvalidProxyAddress when a malformed proxy is configured.
func NewClassifier(opts ...Option) (*Classifier, error) {
	c := &Classifier{
		timeout:      DefaultTimeout,
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
		if c.proxyAddress != "" {
			address, err := normalizeProxyAddress(c.proxyAddress)
			if err != nil {
				return nil, err
			}
			dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			transport.Proxy = nil
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		}
		c.client = &http.Client{Transport: transport}
	}

	maxRedirects := c.maxRedirects
	c.client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return ErrTooManyRedirects
		}
		return nil
	}
	return c, nil
}

// Classify probes rawURL and classifies the outcome. It never returns an
// error; failures are carried in the Result.
func (c *Classifier) Classify(ctx context.Context, rawURL string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	res := c.probe(ctx, rawURL)
	res.Elapsed = time.Since(start)

	c.logger.Debug("preflight probe finished",
		"url", rawURL,
		"kind", res.Kind.String(),
		"status_code", res.StatusCode,
		"elapsed", res.Elapsed,
		"error", res.Err,
	)
	return res
}

func (c *Classifier) probe(ctx context.Context, rawURL string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{Kind: KindConnection, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if resp != nil {
		// The body is never needed; closing it is enough.
		_ = resp.Body.Close() //nolint:errcheck // nothing useful to do on failure
	}
	if err != nil {
		res := Result{Kind: ClassifyError(err), Err: err}
		if resp != nil {
			res.StatusCode = resp.StatusCode
		}
		if res.Kind == KindOK {
			res.Err = nil
		}
		return res
	}
	return Result{Kind: KindOK, StatusCode: resp.StatusCode}
}

// ClassifyError maps a probe error onto a Kind.
func ClassifyError(err error) Kind {
	if err == nil || errors.Is(err, ErrTooManyRedirects) {
		return KindOK
	}
	if isTLSError(err) {
		return KindTLS
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	// Handshake alerts sent by the peer are not exported as a type.
	if strings.Contains(err.Error(), "tls: ") {
		return KindTLS
	}
	return KindConnection
}

func isTLSError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		recordErr    tls.RecordHeaderError
		alertErr     tls.AlertError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
		systemRoots  x509.SystemRootsError
		constraintEr x509.ConstraintViolationError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &systemRoots) ||
		errors.As(err, &constraintEr)
}

// normalizeProxyAddress strips an optional socks5:// scheme and checks that
// the remainder is host:port with a valid port.
func normalizeProxyAddress(address string) (string, error) {
	address = strings.TrimPrefix(strings.TrimPrefix(address, "socks5://"), "socks5h://")
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return "", ErrInvalidProxyAddress
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", ErrInvalidProxyAddress
	}
	return address, nil
}
