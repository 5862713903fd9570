// Package feed ingests the timing provider's live results page and turns
// it into runner snapshots. The provider exposes no stable API: payload
// shape drifts between events, so parsing runs a chain of strategies from
// most to least structured.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/ultralive/pkg/logger"
	"github.com/okian/ultralive/pkg/metrics"
)

// maxBodyBytes caps the provider response read. Live results pages are a
// few hundred KB at most.
const maxBodyBytes = 8 << 20

// Source produces one raw provider payload per call.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPSource fetches the provider page over HTTP.
type HTTPSource struct {
	url    string
	client *http.Client
	log    logger.Logger
}

// NewHTTPSource builds a source with its own timeout-bounded client.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    logger.Named("feed"),
	}
}

// Fetch downloads the results page. Any transport error or non-200 status
// wraps ErrFetch so the tick can abort cleanly.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "ultralive/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	metrics.ObserveFeedFetch(time.Since(start))
	s.log.Debug(ctx, "fetched feed",
		logger.Int("bytes", len(body)),
		logger.Duration("took", time.Since(start)))
	return body, nil
}
