package backend

import (
	"net"
	"net/http"
	"time"

	"persai-chat/internal/infra/config"
)

// Default connection pool settings. The client talks to a single backend
// host over long-lived streaming connections.
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 5
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 120 * time.Second
)

// Default backend timeouts. RespTimeout bounds time-to-first-byte only;
// an open turn stream may deliver chunks for much longer.
const (
	defaultConnTimeout = 10 * time.Second
	defaultRespTimeout = 300 * time.Second
)

// newPooledTransport creates an http.Transport with connection pooling for
// the backend client. ResponseHeaderTimeout covers stream initiation; body
// reads are unbounded so streaming turns are never cut off mid-chunk.
func newPooledTransport(connTimeout, respTimeout time.Duration, pool config.PoolConfig) *http.Transport {
	if connTimeout == 0 {
		connTimeout = defaultConnTimeout
	}
	if respTimeout == 0 {
		respTimeout = defaultRespTimeout
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}

	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       idleTimeout,
		ForceAttemptHTTP2:     true,
	}
}

// newHTTPClient creates an *http.Client with pooled transport. No overall
// client timeout is set: turn streams stay open until the turn completes,
// and per-request deadlines come from the caller's context.
func newHTTPClient(cfg config.BackendConfig) *http.Client {
	return &http.Client{
		Transport: newPooledTransport(cfg.ConnTimeout, cfg.RespTimeout, cfg.Pool),
	}
}
