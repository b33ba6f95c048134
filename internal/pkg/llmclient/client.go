// Package llmclient provides the base HTTP client for model providers:
// JSON request marshaling, provider error parsing and request hooks.
//
// The client makes exactly one attempt per call. Retries and quota handling
// live in the retry package so every resolver shares a single policy.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"agrohub/internal/core"
	"agrohub/internal/httpclient"
	"agrohub/internal/observability"
)

// Config holds configuration for the LLM client
type Config struct {
	// ProviderName identifies the provider for error messages and metrics
	ProviderName string

	// BaseURL is the API base URL
	BaseURL string

	// Hooks receive request and response events. Optional.
	Hooks *observability.Hooks
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for model providers
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
}

// New creates a new client. A nil httpClient selects httpclient defaults.
func New(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = httpclient.NewHTTPClient(nil)
	}
	return &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Body     interface{} // Will be JSON marshaled if not nil
	Headers  map[string]string
	// Model is reported to hooks only
	Model string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes a request and unmarshals a successful response into result.
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewUpstreamError(c.config.ProviderName, "failed to unmarshal response: "+err.Error(), err)
		}
	}

	return nil
}

// DoRaw executes a single request and returns the raw body of a 2xx response.
// Non-2xx responses are converted with core.ParseProviderError.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	c.config.Hooks.SafeUpstreamRequest(ctx, c.config.ProviderName, req.Model)
	start := time.Now()

	resp, err := c.doRequest(ctx, req)
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
		resp = nil
	}

	c.config.Hooks.SafeUpstreamResponse(ctx, c.config.ProviderName, req.Model, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// doRequest executes a single HTTP request
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewUpstreamError(c.config.ProviderName, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewUpstreamError(c.config.ProviderName, "failed to read response: "+err.Error(), err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := c.config.BaseURL + req.Endpoint

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// Apply provider-specific headers
	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	// Apply request-specific headers
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}
