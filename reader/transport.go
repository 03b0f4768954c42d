package reader

import (
	"net/http"

	"recessionflow/config"
)

// UserAgent is sent with every provider request.
const UserAgent = "recessionflow/1.0"

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// NewHTTPClient builds the pooled client shared by the provider adapters.
// The per-request timeout comes from the reader configuration.
func NewHTTPClient(cfg config.ReaderConfig) *http.Client {
	pool := cfg.ConnectionPool
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
		DisableCompression:  false,
	}

	return &http.Client{
		Transport: userAgentTransport{agent: UserAgent, base: transport},
		Timeout:   cfg.Timeout,
	}
}
