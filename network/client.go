// Package network provides the HTTP client shared by every remote media load.
package network

import (
	"net/http"
	"time"

	"github.com/anisan-cli/reelplay/constant"
)

// Client is shared by all loaders so that connections to the same host are pooled.
// It carries no overall timeout: media bodies are streamed for as long as the request context allows.
var Client = &http.Client{
	Transport: &userAgentTransport{base: newTransport()},
}

// newTransport clones the default transport with larger pools and bounded handshakes.
func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 16
	t.IdleConnTimeout = 90 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = time.Second
	return t
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", constant.UserAgent)
	return t.base.RoundTrip(req)
}
