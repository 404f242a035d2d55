package readiness

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPChecker asks the HLS origin for the stream's playlist.
type HTTPChecker struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPChecker creates a checker against baseURL, e.g.
// http://localhost:8080/hls.
func NewHTTPChecker(baseURL string) *HTTPChecker {
	return &HTTPChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Ready reports whether GET <baseURL>/<key>.m3u8 answers 200.
func (c *HTTPChecker) Ready(ctx context.Context, streamKey string) (bool, error) {
	target := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(PlaylistName(streamKey)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}
