package rally

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxInFlight is the default ceiling on concurrent outbound
	// requests. The tracker enforces a hard server-side limit of 12 per
	// session; 5 leaves headroom for other clients of the same key.
	DefaultMaxInFlight = 5

	// DefaultTimeout is the default per-request ceiling.
	DefaultTimeout = 30 * time.Second

	apiKeyHeader = "zsessionid"

	maxBodySnippet = 256
)

// DispatcherConfig configures a Dispatcher. Zero values for MaxInFlight,
// Timeout, Transport and Logger fall back to defaults.
type DispatcherConfig struct {
	BaseURL     string
	APIKey      string
	MaxInFlight int64
	Timeout     time.Duration
	Transport   http.RoundTripper
	Logger      *logrus.Entry
}

// Dispatcher performs single-attempt HTTP calls against the tracker under a
// shared admission gate. It never retries: it classifies failures into the
// typed error taxonomy and leaves retry policy to the caller.
type Dispatcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
	slots   *semaphore.Weighted
	timeout time.Duration
	log     *logrus.Entry
}

// NewDispatcher creates a dispatcher for the given configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Dispatcher{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Transport: cfg.Transport},
		slots:   semaphore.NewWeighted(maxInFlight),
		timeout: timeout,
		log:     logger,
	}
}

// Get performs a GET request against a relative endpoint path.
func (d *Dispatcher) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return d.do(ctx, http.MethodGet, path, params, nil)
}

// Post performs a POST request with a JSON payload against a relative
// endpoint path.
func (d *Dispatcher) Post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cannot encode request payload: %w", err)
	}
	return d.do(ctx, http.MethodPost, path, nil, body)
}

func (d *Dispatcher) do(ctx context.Context, method, path string, params url.Values, payload []byte) ([]byte, error) {
	requestURL := d.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	// The slot must be released on every exit path, including caller
	// cancellation while blocked here. Acquire honors ctx, and the deferred
	// Release covers the rest.
	if err := d.slots.Acquire(ctx, 1); err != nil {
		return nil, &TransportError{URL: requestURL, Err: err}
	}
	defer d.slots.Release(1)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, d.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	d.log.WithFields(logrus.Fields{"method": method, "path": path}).Debug("dispatching tracker request")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: requestURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: requestURL, Err: err}
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	snippet := bodySnippet(body)
	if statusCode == http.StatusUnauthorized || strings.Contains(strings.ToLower(snippet), "unauthorized") {
		return &AuthenticationError{StatusCode: statusCode, Message: snippet}
	}

	return &APIError{StatusCode: statusCode, Message: snippet}
}

func bodySnippet(body []byte) string {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxBodySnippet {
		snippet = snippet[:maxBodySnippet]
	}
	return snippet
}
