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

const (
	githubBaseURL = "https://api.github.com"
	githubAccept  = "application/vnd.github.v3+json"
	userAgent     = "involvex-server"

	repoCacheKey = "github_trending_repos"

	// Bounded retry with a fixed backoff; no retry on rate limits or 404 —
	// repeating those only burns more quota.
	fetchAttempts = 3
	fetchDelay    = 2 * time.Second
)

// GitHubClient fetches trending repositories from the GitHub search API.
// The API contract is fixed by GitHub; unauthenticated requests get a small
// rate budget, which is why results are cached and 403 maps to a dedicated
// rate-limit error the UI can message.
type GitHubClient struct {
	http    *http.Client
	baseURL string        // overridable in tests
	delay   time.Duration // retry delay, shortened in tests
	cache   *Cache
	logger  *slog.Logger
}

func NewGitHubClient(cache *Cache, logger *slog.Logger) *GitHubClient {
	return &GitHubClient{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: githubBaseURL,
		delay:   fetchDelay,
		cache:   cache,
		logger:  logger,
	}
}

// TrendingRepos returns the top starred repositories created in the last
// week. refresh busts the cache and forces a fetch.
func (c *GitHubClient) TrendingRepos(ctx context.Context, refresh bool) ([]model.TrendingRepo, error) {
	if refresh {
		c.cache.Invalidate(repoCacheKey)
	} else if cached, ok := c.cache.get(repoCacheKey); ok {
		return cached.([]model.TrendingRepo), nil
	}

	var repos []model.TrendingRepo
	err := retry.Do(
		func() error {
			var fetchErr error
			repos, fetchErr = c.fetch(ctx)
			return fetchErr
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, apperror.ErrRateLimited) && !errors.Is(err, apperror.ErrNotFound)
		}),
	)
	if err != nil {
		c.cache.Invalidate(repoCacheKey)
		return nil, err
	}

	c.cache.set(repoCacheKey, repos)
	return repos, nil
}

func (c *GitHubClient) fetch(ctx context.Context) ([]model.TrendingRepo, error) {
	since := time.Now().AddDate(0, 0, -7).Format("2006-01-02")

	q := url.Values{}
	q.Set("q", fmt.Sprintf("stars:>10 created:>%s", since))
	q.Set("sort", "stars")
	q.Set("order", "desc")
	q.Set("per_page", "20")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search/repositories?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("trending: building GitHub request: %w", err)
	}
	req.Header.Set("Accept", githubAccept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Unavailable("GitHub", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		// Unauthenticated search quota exhausted.
		c.logger.Warn("GitHub search rate limited")
		return nil, apperror.RateLimited("GitHub")
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperror.NotFound("GitHub search", "repositories")
	case resp.StatusCode != http.StatusOK:
		return nil, apperror.Unavailable("GitHub",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var result model.RepoSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperror.Unavailable("GitHub", fmt.Errorf("decoding response: %w", err))
	}

	c.logger.Debug("fetched trending repos", slog.Int("count", len(result.Items)))
	return result.Items, nil
}
