package internal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sensiblebit/revcheck/internal/crlstore"
)

// maxCRLDownload bounds a single CRL download. Full CRLs from large public
// CAs reach tens of megabytes.
const maxCRLDownload = 64 << 20

// NewHTTPFetcher returns a crlstore.CRLFetcher that downloads over HTTP with
// the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) crlstore.CRLFetcher {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, crlURL string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, crlURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, crlURL)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxCRLDownload+1))
		if err != nil {
			return nil, err
		}
		if len(body) > maxCRLDownload {
			return nil, fmt.Errorf("CRL at %s exceeds %d bytes", crlURL, maxCRLDownload)
		}
		return body, nil
	}
}
