// Package httpclient builds outbound HTTP clients that honour the configured proxy.
package httpclient

import (
	"net/http"
	"net/url"
	"time"
)

// New returns a client with the given timeout, routed through proxyURL when set.
// An unparsable proxy is ignored and the client connects directly.
func New(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
