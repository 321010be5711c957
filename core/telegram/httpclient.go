package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/ytmp3bot/core/telegram/netutil"
)

const (
	dialTimeout       = 5 * time.Second
	tlsTimeout        = 5 * time.Second
	idleConnTimeout   = 30 * time.Second
	respHeaderTimeout = 5 * time.Second
	requestTimeout    = 30 * time.Second
	keepAlivePeriod   = 30 * time.Second
	transportRetries  = 3
	transportBackoff  = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. Transient
// transport failures are retried below the client timeout so a single
// flaky dial does not surface as a failed send.
func BuildHTTPClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &retryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlivePeriod}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       idleConnTimeout,
				TLSHandshakeTimeout:   tlsTimeout,
				ResponseHeaderTimeout: respHeaderTimeout,
				ExpectContinueTimeout: time.Second,
			},
			retries: transportRetries,
			backoff: transportBackoff,
		},
	}
}

// retryTransport retries request errors netutil classifies as
// transient. Responses, including 5xx, pass through untouched.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		r, err := rewindRequest(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt >= t.retries || !netutil.ShouldRetry(err) {
			return nil, lastErr
		}
		// A body without GetBody cannot be replayed.
		if req.Body != nil && req.GetBody == nil {
			return nil, lastErr
		}
		if !sleepRequest(req, t.backoff*time.Duration(attempt+1)) {
			return nil, req.Context().Err()
		}
	}
}

// rewindRequest clones the request with a fresh body for re-sends.
func rewindRequest(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func sleepRequest(req *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return false
	case <-timer.C:
		return true
	}
}
