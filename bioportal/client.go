package bioportal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/retry"
)

// DefaultBaseURL is the public BioPortal REST endpoint.
const DefaultBaseURL = "https://data.bioontology.org"

const defaultTimeout = 120 * time.Second

// Client issues authenticated GET requests against the BioPortal API. It is
// stateless across resources and safe for concurrent use by multiple
// orchestrator tasks; every call constructs its request object fresh.
type Client struct {
	apiKey  string
	baseURL string

	// httpClient serves JSON endpoints with an overall request timeout;
	// streamClient serves file downloads where the body may take longer
	// than any sane fixed timeout to drain.
	httpClient   *http.Client
	streamClient *http.Client

	retryCfg retry.Config

	requests *prometheus.CounterVec
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client for both JSON and
// stream requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
		c.streamClient = hc
	}
}

// WithRetryConfig overrides the inline retry policy.
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retryCfg = cfg
	}
}

// WithClientMetrics registers a request counter, labeled by outcome, with
// the given Prometheus registerer.
func WithClientMetrics(reg prometheus.Registerer) ClientOption {
	return func(c *Client) {
		c.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bioportal_client_requests_total",
			Help: "Total BioPortal API requests by outcome",
		}, []string{"outcome"})
		reg.MustRegister(c.requests)
	}
}

// NewClient creates a client. The API key is required by every remote call;
// without it the server answers with an error.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		streamClient: &http.Client{},
		retryCfg:     retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get fetches the URL and returns the response body. Permanent failures
// (ErrNotFound, ErrAccessDenied) surface immediately; transient ones are
// retried with backoff, each attempt on a fresh request, before giving up
// with ErrDownload in the chain.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	body, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]byte, error) {
		data, attemptErr := c.doGet(ctx, url)
		if attemptErr != nil && errors.IsPermanent(attemptErr) {
			return nil, retry.NonRetryable(attemptErr)
		}
		return data, attemptErr
	})
	if err != nil {
		slog.Debug("Request failed", "url", url, "error", err)
	}
	return body, err
}

func (c *Client) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapPermanent(err, "client", "Get", "build request")
	}
	req.Header.Set("Authorization", "apikey token="+c.apiKey)

	slog.Debug("Sending request", "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countRequest("network_error")
		return nil, errors.WrapTransient(err, "client", "Get", "execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		// The error body is small and worth keeping for the report.
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.countRequest(outcomeForStatus(resp.StatusCode))
		return nil, errors.FromStatus(resp.StatusCode, url, strings.TrimSpace(string(excerpt)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countRequest("network_error")
		return nil, errors.WrapTransient(err, "client", "Get", "read response body")
	}
	c.countRequest("success")
	return body, nil
}

// GetStream opens the URL for streaming and returns the body together with
// the filename declared in the Content-Disposition header, if any. A non-200
// answer means the resource has no downloadable artifact and yields
// ErrFileNotAvailable with the server's message.
func (c *Client) GetStream(ctx context.Context, url string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errors.WrapPermanent(err, "client", "GetStream", "build request")
	}
	req.Header.Set("Authorization", "apikey token="+c.apiKey)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		c.countRequest("network_error")
		return nil, "", errors.WrapTransient(err, "client", "GetStream", "execute request")
	}

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		c.countRequest(outcomeForStatus(resp.StatusCode))
		return nil, "", fmt.Errorf("%w (server message: %s)",
			errors.ErrFileNotAvailable, strings.TrimSpace(string(excerpt)))
	}

	c.countRequest("success")
	return resp.Body, filenameFromHeader(resp.Header.Get("Content-Disposition")), nil
}

// filenameFromHeader extracts the filename parameter of a
// Content-Disposition header, empty when absent or unparsable.
func filenameFromHeader(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func (c *Client) countRequest(outcome string) {
	if c.requests != nil {
		c.requests.WithLabelValues(outcome).Inc()
	}
}

func outcomeForStatus(status int) string {
	switch status {
	case 400, 404:
		return "not_found"
	case 403:
		return "access_denied"
	default:
		return "server_error"
	}
}
