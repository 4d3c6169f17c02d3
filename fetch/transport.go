package fetch

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// newHTTPClient returns a pooled client whose transport negotiates HTTP/2
// over TLS. Timeouts are applied per request by the caller's context.
func newHTTPClient(log *zap.Logger) *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     100,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		log.Warn("http2 unavailable, using http/1.1", zap.Error(err))
	}
	return &http.Client{Transport: transport}
}
