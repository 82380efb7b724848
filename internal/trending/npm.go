package trending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/involvex/involvex-server/internal/apperror"
	"github.com/involvex/involvex-server/internal/model"
)

const npmBaseURL = "https://registry.npmjs.org"

// NpmClient searches the npm registry's /-/v1/search endpoint.
// Cache keys include the query text, so different searches don't evict each
// other.
type NpmClient struct {
	http    *http.Client
	baseURL string        // overridable in tests
	delay   time.Duration // retry delay, shortened in tests
	cache   *Cache
	logger  *slog.Logger
}

func NewNpmClient(cache *Cache, logger *slog.Logger) *NpmClient {
	return &NpmClient{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: npmBaseURL,
		delay:   fetchDelay,
		cache:   cache,
		logger:  logger,
	}
}

// SearchPackages returns up to size packages matching text, ranked by the
// registry's popularity-weighted score. refresh busts the cache entry for
// this query.
func (c *NpmClient) SearchPackages(ctx context.Context, text string, size int, refresh bool) ([]model.NpmSearchObject, error) {
	if text == "" {
		return nil, apperror.ValidationFailed("text", "search text is required")
	}
	if size <= 0 || size > 50 {
		size = 20
	}

	cacheKey := "npm_search_" + text
	if refresh {
		c.cache.Invalidate(cacheKey)
	} else if cached, ok := c.cache.get(cacheKey); ok {
		return cached.([]model.NpmSearchObject), nil
	}

	var objects []model.NpmSearchObject
	err := retry.Do(
		func() error {
			var fetchErr error
			objects, fetchErr = c.fetch(ctx, text, size)
			return fetchErr
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, apperror.ErrRateLimited)
		}),
	)
	if err != nil {
		c.cache.Invalidate(cacheKey)
		return nil, err
	}

	c.cache.set(cacheKey, objects)
	return objects, nil
}

func (c *NpmClient) fetch(ctx context.Context, text string, size int) ([]model.NpmSearchObject, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("size", fmt.Sprintf("%d", size))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/-/v1/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("trending: building npm request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Unavailable("npm registry", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("npm registry rate limited")
		return nil, apperror.RateLimited("npm registry")
	case resp.StatusCode != http.StatusOK:
		return nil, apperror.Unavailable("npm registry",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var result model.NpmSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperror.Unavailable("npm registry", fmt.Errorf("decoding response: %w", err))
	}

	c.logger.Debug("fetched npm packages",
		slog.String("text", text),
		slog.Int("count", len(result.Objects)),
	)
	return result.Objects, nil
}
