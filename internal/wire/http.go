package wire

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout is the default deadline for a single HTTP round trip
// to the authentication server (spec §5).
const DefaultTimeout = 10 * time.Second

// HTTPClient performs the POST/GET round trips the M-Pin client needs,
// over a TLS stack that verifies the server against a configurable CA
// chain.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient builds an HTTPClient. A nil caCertPool uses the host's
// default trust store.
func NewHTTPClient(timeout time.Duration, caCertPool *x509.CertPool) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    caCertPool,
		},
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout, Transport: transport}}
}

// Post sends body as a JSON-encoded POST to url and returns the parsed
// JSON response body.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*Value, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newJSONError("%v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &NetworkError{URL: url, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// Get performs a GET request and returns the parsed JSON response
// body.
func (c *HTTPClient) Get(ctx context.Context, url string) (*Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) (*Value, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: req.URL.String(), Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: req.URL.String(), Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	return ParseObject(respBody)
}
