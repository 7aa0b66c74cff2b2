package mp4source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anisan-cli/reelplay/filesystem"
	"github.com/anisan-cli/reelplay/network"
)

// maxRetryDelay caps the wait between attempts, in units of the retry backoff.
const maxRetryDelay = 5

// IsRemote reports whether uri is fetched over HTTP.
func IsRemote(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// open returns the contents of uri. Remote files come from the shared HTTP client, local ones from the
// active filesystem backend.
func open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if path, local := filesystem.LocalPath(uri); local {
		return filesystem.API().Open(path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	resp, err := network.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %s", resp.Status)
	}
	return resp.Body, nil
}

// fetch opens and parses uri.
func fetch(ctx context.Context, uri string) (*movie, error) {
	r, err := open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return parse(r)
}

// Probe reads uri and returns the formats of its playable tracks.
func Probe(ctx context.Context, uri string) ([]*FormatInfo, error) {
	m, err := fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	return m.info(), nil
}

// retryDelay returns how long to wait before the next attempt after errorCount failures.
func retryDelay(backoff time.Duration, errorCount int) time.Duration {
	return min(time.Duration(errorCount-1)*backoff, maxRetryDelay*backoff)
}
