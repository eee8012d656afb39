package relay

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"mercator-hq/tlsrelay/pkg/config"

	"github.com/hashicorp/go-cleanhttp"
)

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	// OutcomeSuccess means the upstream answered and its body was read in full.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeTransportFailure means no usable upstream response was obtained.
	OutcomeTransportFailure
)

// String returns the kind name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of one upstream fetch.
//
// For OutcomeSuccess, StatusOK reports a 2xx status and StatusCode and Body
// hold the upstream response. For OutcomeTransportFailure only Err is set.
type Outcome struct {
	Kind       OutcomeKind
	StatusOK   bool
	StatusCode int
	Body       []byte
	Err        error
	Duration   time.Duration
}

// Class returns the metrics label for the outcome: the status class such
// as "2xx" or "5xx", or "transport_error".
func (o Outcome) Class() string {
	if o.Kind != OutcomeSuccess {
		return "transport_error"
	}
	return fmt.Sprintf("%dxx", o.StatusCode/100)
}

// Fetcher produces an upstream Outcome. *Dispatcher is the production
// implementation.
type Fetcher interface {
	Fetch(ctx context.Context) Outcome
}

// Dispatcher performs the single upstream GET made for every connection.
type Dispatcher struct {
	target       string
	client       *http.Client
	maxBodyBytes int64
	allowHTTP    bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxBodyBytes caps the upstream body; a larger body is a transport
// failure. Zero means no limit.
func WithMaxBodyBytes(n int64) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxBodyBytes = n
	}
}

// WithInsecureScheme permits an http:// target. Local testing only.
func WithInsecureScheme() DispatcherOption {
	return func(d *Dispatcher) {
		d.allowHTTP = true
	}
}

// NewDispatcher creates a dispatcher for target, which must be an absolute
// https URL.
func NewDispatcher(target string, client *http.Client, opts ...DispatcherOption) (*Dispatcher, error) {
	if client == nil {
		return nil, errors.New("upstream client is required")
	}

	d := &Dispatcher{target: target, client: client}
	for _, opt := range opts {
		opt(d)
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", target, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be absolute", target)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !d.allowHTTP {
			return nil, fmt.Errorf("upstream URL %q must use https", target)
		}
	default:
		return nil, fmt.Errorf("upstream URL %q has unsupported scheme %q", target, u.Scheme)
	}

	return d, nil
}

// Target returns the upstream URL.
func (d *Dispatcher) Target() string {
	return d.target
}

// Fetch issues one GET to the target with no custom headers and no retries,
// and blocks until the whole body has been read or the exchange fails.
func (d *Dispatcher) Fetch(ctx context.Context) Outcome {
	start := time.Now()
	fail := func(err error) Outcome {
		return Outcome{
			Kind:     OutcomeTransportFailure,
			Err:      &TransportError{URL: d.target, Cause: err},
			Duration: time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.target, nil)
	if err != nil {
		return fail(err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body, d.maxBodyBytes)
	if err != nil {
		return fail(err)
	}

	return Outcome{
		Kind:       OutcomeSuccess,
		StatusOK:   resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   time.Since(start),
	}
}

func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// NewHTTPClient builds the upstream client from cfg. The transport comes
// from go-cleanhttp with keep-alives disabled, so every fetch uses a fresh
// connection. CAFile roots are added to the system pool.
func NewHTTPClient(cfg config.UpstreamConfig) (*http.Client, error) {
	transport := cleanhttp.DefaultTransport()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CAFile != "" {
		pool, err := loadRootCAs(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig.RootCAs = pool
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}

func loadRootCAs(path string) (*x509.CertPool, error) {
	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream CA file: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("no certificates found in upstream CA file %s", path)
	}
	return pool, nil
}
