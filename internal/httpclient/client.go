// Package httpclient provides the HTTP client factory used for upstream calls.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single upstream request when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// ClientConfig holds configuration options for creating HTTP clients
type ClientConfig struct {
	// MaxIdleConnsPerHost controls the maximum idle (keep-alive) connections to keep per-host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is the maximum amount of time an idle connection will remain idle before closing itself
	IdleConnTimeout time.Duration

	// Timeout specifies a time limit for a whole request, body included
	Timeout time.Duration

	// DialTimeout is the maximum amount of time a dial will wait for a connect to complete
	DialTimeout time.Duration

	// TLSHandshakeTimeout specifies the maximum amount of time to wait for a TLS handshake
	TLSHandshakeTimeout time.Duration
}

// DefaultConfig returns a ClientConfig for a single upstream host.
// A non-positive timeout selects DefaultTimeout.
func DefaultConfig(timeout time.Duration) ClientConfig {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return ClientConfig{
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		Timeout:             timeout,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// NewHTTPClient creates a new HTTP client with the provided configuration.
// If config is nil, DefaultConfig(0) is used.
func NewHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig(0)
		config = &cfg
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConnsPerHost,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}
